// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrRecorderClosed is returned by Write after Close.
var ErrRecorderClosed = errors.New("recorder is closed")

// Recorder writes mono float32 frames to a PCM WAV file.
type Recorder struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	enc       *wav.Encoder
	buf       *audio.IntBuffer
	fullRange float64
	frames    int64
}

// RecordingPath returns a timestamped file name in dir.
func RecordingPath(dir string, now time.Time) string {
	return filepath.Join(dir, "visbridge-"+now.Format("20060102-150405")+".wav")
}

// NewRecorder creates path (and its directory) and writes a WAV header for
// mono audio at sampleRate with the given bit depth (16, 24 or 32).
func NewRecorder(path string, sampleRate float64, bitDepth int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	format := &audio.Format{NumChannels: 1, SampleRate: int(sampleRate)}
	logger.Infof("Recording to %s (%d-bit, %.0f Hz)", path, bitDepth, sampleRate)
	return &Recorder{
		path:      path,
		file:      file,
		enc:       wav.NewEncoder(file, int(sampleRate), bitDepth, 1, 1),
		buf:       &audio.IntBuffer{Format: format, SourceBitDepth: bitDepth},
		fullRange: float64(int64(1)<<(bitDepth-1) - 1),
	}, nil
}

// Write appends one frame, clamping samples to [-1, 1].
func (r *Recorder) Write(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enc == nil {
		return ErrRecorderClosed
	}
	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		v := float64(s)
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		case v != v: // NaN
			v = 0
		}
		r.buf.Data[i] = int(v * r.fullRange)
	}
	if err := r.enc.Write(r.buf); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}
	r.frames += int64(len(samples))
	return nil
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// Samples returns the number of samples written so far.
func (r *Recorder) Samples() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalises the WAV header and closes the file. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enc == nil {
		return nil
	}
	encErr := r.enc.Close()
	r.enc = nil
	fileErr := r.file.Close()
	r.file = nil
	if encErr != nil {
		return fmt.Errorf("failed to finalise recording: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close recording: %w", fileErr)
	}
	logger.Infof("Recording closed: %s (%d samples)", r.path, r.frames)
	return nil
}

// StartRecording begins writing captured frames to path.
func (e *Engine) StartRecording(path string, bitDepth int) error {
	if e.recorder.Load() != nil {
		return fmt.Errorf("already recording")
	}
	rec, err := NewRecorder(path, e.source.SampleRate(), bitDepth)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, rec) {
		rec.Close()
		os.Remove(path)
		return fmt.Errorf("already recording")
	}
	return nil
}

// StopRecording finalises the current recording, if any.
func (e *Engine) StopRecording() error {
	rec := e.recorder.Swap(nil)
	if rec == nil {
		return nil
	}
	return rec.Close()
}

// IsRecording reports whether frames are being recorded.
func (e *Engine) IsRecording() bool {
	return e.recorder.Load() != nil
}
