// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotPCM is returned for WAV files that do not carry integer PCM.
var ErrNotPCM = errors.New("wav file is not integer PCM")

// WAV format tags for integer PCM.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVOptions configures a WAVSource.
type WAVOptions struct {
	FrameSize int  // Mono samples per frame (the FFT size)
	Loop      bool // Restart from the beginning at the end of the file
	Realtime  bool // Deliver frames no faster than the file's sample rate
}

// WAVSource reads frames from a PCM WAV file, downmixing to mono and
// scaling to [-1, 1].
type WAVSource struct {
	opts       WAVOptions
	path       string
	file       *os.File
	dec        *wav.Decoder
	channels   int
	sampleRate float64
	scale      float32
	offset     int // 8-bit PCM is unsigned

	pcm         *audio.IntBuffer
	interleaved []float32

	frameDur time.Duration
	next     time.Time
	now      func() time.Time
	eof      bool
}

// OpenWAV opens path and positions the decoder at the PCM data.
func OpenWAV(path string, opts WAVOptions) (*WAVSource, error) {
	if opts.FrameSize < 1 {
		return nil, fmt.Errorf("invalid frame size: %d", opts.FrameSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		if err := dec.Err(); err != nil {
			return nil, fmt.Errorf("invalid wav file %s: %w", path, err)
		}
		return nil, fmt.Errorf("invalid wav file %s", path)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		f.Close()
		return nil, fmt.Errorf("%w: %s has format tag %d", ErrNotPCM, path, dec.WavAudioFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to locate PCM data in %s: %w", path, err)
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	s := &WAVSource{
		opts:        opts,
		path:        path,
		file:        f,
		dec:         dec,
		channels:    channels,
		sampleRate:  float64(dec.SampleRate),
		scale:       1 / float32(int64(1)<<(bitDepth-1)),
		pcm:         &audio.IntBuffer{Data: make([]int, opts.FrameSize*channels)},
		interleaved: make([]float32, opts.FrameSize*channels),
		now:         time.Now,
	}
	if bitDepth == 8 {
		s.offset = 128
	}
	s.frameDur = time.Duration(float64(opts.FrameSize) / s.sampleRate * float64(time.Second))

	logger.Infof("Reading %s (Channels: %d, SampleRate: %.0f Hz, BitDepth: %d, Loop: %v, Realtime: %v)",
		path, channels, s.sampleRate, bitDepth, opts.Loop, opts.Realtime)
	return s, nil
}

// ReadFrame fills frame with the next FrameSize mono samples. The last
// partial frame of a file is zero-padded; after it ReadFrame returns
// io.EOF unless looping.
func (s *WAVSource) ReadFrame(ctx context.Context, frame []float32) error {
	if err := checkFrame(frame, s.opts.FrameSize); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.eof {
		return io.EOF
	}

	n, err := s.fill()
	if err != nil {
		return err
	}
	if n == 0 {
		s.eof = true
		return io.EOF
	}
	// Zero-pad a short tail; only whole sample frames count.
	n -= n % s.channels
	clear(s.interleaved[n:])
	for i := range n {
		s.interleaved[i] = float32(s.pcm.Data[i]-s.offset) * s.scale
	}
	downmix(frame, s.interleaved, s.channels)

	if s.opts.Realtime {
		return s.pace(ctx)
	}
	return nil
}

// fill reads up to one frame of interleaved samples into s.pcm, rewinding
// once at the end of the file when looping.
func (s *WAVSource) fill() (int, error) {
	want := len(s.pcm.Data)
	total := 0
	rewound := false
	for total < want {
		chunk := &audio.IntBuffer{Data: s.pcm.Data[total:want]}
		n, err := s.dec.PCMBuffer(chunk)
		if err != nil {
			return 0, fmt.Errorf("failed to decode %s: %w", s.path, err)
		}
		total += n
		if n > 0 {
			rewound = false
			continue
		}
		// End of data.
		if !s.opts.Loop {
			s.eof = true
			break
		}
		if rewound {
			break // empty file
		}
		if err := s.dec.Rewind(); err != nil {
			return 0, fmt.Errorf("failed to rewind %s: %w", s.path, err)
		}
		logger.Debugf("Looping %s", s.path)
		rewound = true
	}
	return total, nil
}

// pace sleeps until the frame's wall-clock slot. A reader that falls
// more than a frame behind resynchronises rather than bursting.
func (s *WAVSource) pace(ctx context.Context) error {
	now := s.now()
	if s.next.IsZero() || now.Sub(s.next) > s.frameDur {
		s.next = now
	}
	s.next = s.next.Add(s.frameDur)

	wait := s.next.Sub(now)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SampleRate returns the file's sample rate.
func (s *WAVSource) SampleRate() float64 { return s.sampleRate }

// Channels returns the file's channel count.
func (s *WAVSource) Channels() int { return s.channels }

// Close closes the file.
func (s *WAVSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

var _ Source = (*WAVSource)(nil)
