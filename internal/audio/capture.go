// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"
)

// inputStream is the part of *portaudio.Stream the capture path uses.
type inputStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// openStream opens a blocking stream that reads into buf.
var openStream = func(p portaudio.StreamParameters, buf []float32) (inputStream, error) {
	return portaudio.OpenStream(p, buf)
}

// DeviceOptions configures a DeviceSource.
type DeviceOptions struct {
	DeviceID   int     // -1 for the system default
	Channels   int     // Channels captured and averaged to mono
	SampleRate float64 // Stream sample rate in Hz
	FrameSize  int     // Mono samples per frame (the FFT size)
	LowLatency bool    // Use the device's low input latency
}

// DeviceSource captures frames from a PortAudio input device using a
// blocking stream. PortAudio must be initialized for the lifetime of the
// source.
type DeviceSource struct {
	opts    DeviceOptions
	device  *portaudio.DeviceInfo
	latency time.Duration
	stream  inputStream

	// interleaved is the buffer PortAudio fills; frames × channels.
	interleaved []float32

	overflows atomic.Uint64
	closeOnce sync.Once
	closeErr  error
}

// OpenDevice opens and starts an input stream on the configured device.
func OpenDevice(opts DeviceOptions) (*DeviceSource, error) {
	if opts.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", opts.Channels)
	}
	if opts.FrameSize < 1 {
		return nil, fmt.Errorf("invalid frame size: %d", opts.FrameSize)
	}

	device, err := InputDevice(opts.DeviceID)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < opts.Channels {
		return nil, fmt.Errorf("device %q supports %d input channels, %d requested",
			device.Name, device.MaxInputChannels, opts.Channels)
	}

	s := &DeviceSource{
		opts:        opts,
		device:      device,
		interleaved: make([]float32, opts.FrameSize*opts.Channels),
	}
	if opts.LowLatency {
		s.latency = device.DefaultLowInputLatency
	} else {
		s.latency = device.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: opts.Channels,
			Latency:  s.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: opts.FrameSize,
		SampleRate:      opts.SampleRate,
	}

	stream, err := openStream(params, s.interleaved)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream on %q: %w", device.Name, err)
	}
	s.stream = stream

	logger.Infof("Capturing from %q (Channels: %d, SampleRate: %.0f Hz, Frame: %d, Latency: %s)",
		device.Name, opts.Channels, opts.SampleRate, opts.FrameSize, s.latency)
	return s, nil
}

// ReadFrame blocks for one frame of audio and downmixes it into frame.
// An input overflow means samples were lost upstream; the frame read is
// still valid, so it is counted and not returned as an error.
func (s *DeviceSource) ReadFrame(ctx context.Context, frame []float32) error {
	if err := checkFrame(frame, s.opts.FrameSize); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return fmt.Errorf("failed to read input stream: %w", err)
		}
		if n := s.overflows.Add(1); n == 1 || n%100 == 0 {
			logger.Warnf("Input overflowed (%d times); analysis is not keeping up", n)
		}
	}

	downmix(frame, s.interleaved, s.opts.Channels)
	return nil
}

// SampleRate returns the stream's sample rate.
func (s *DeviceSource) SampleRate() float64 { return s.opts.SampleRate }

// Overflows returns how many reads reported lost input.
func (s *DeviceSource) Overflows() uint64 { return s.overflows.Load() }

// DeviceName returns the name of the capture device.
func (s *DeviceSource) DeviceName() string { return s.device.Name }

// Close stops and closes the stream. It is safe to call more than once.
func (s *DeviceSource) Close() error {
	s.closeOnce.Do(func() {
		if err := s.stream.Stop(); err != nil {
			s.closeErr = fmt.Errorf("failed to stop input stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("failed to close input stream: %w", err)
		}
	})
	return s.closeErr
}

var _ Source = (*DeviceSource)(nil)
