// SPDX-License-Identifier: MIT
//
// Package app assembles a running pipeline from a Config: an audio source,
// the analyzer, the capture engine and the transports that carry bars to
// viewers.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"visbridge/internal/analysis"
	"visbridge/internal/audio"
	"visbridge/internal/config"
	applog "visbridge/internal/log"
	"visbridge/internal/transport"
	"visbridge/internal/transport/udp"
	"visbridge/internal/tui"
)

var logger = applog.For("app")

// Mode selects where bars are delivered.
type Mode int

const (
	// Serve sends bars to WebSocket viewers (and UDP when enabled).
	Serve Mode = iota
	// Preview draws bars in the terminal.
	Preview
)

func (m Mode) String() string {
	if m == Preview {
		return "preview"
	}
	return "serve"
}

// openDevice is replaced in tests; live capture needs PortAudio.
var openDevice = func(cfg *config.Config) (audio.Source, func() error, error) {
	if err := audio.Initialize(); err != nil {
		return nil, nil, err
	}
	src, err := audio.OpenDevice(audio.DeviceOptions{
		DeviceID:   cfg.Audio.InputDevice,
		Channels:   cfg.Audio.InputChannels,
		SampleRate: cfg.Audio.SampleRate,
		FrameSize:  cfg.Analysis.FFTSize,
		LowLatency: cfg.Audio.LowLatency,
	})
	if err != nil {
		audio.Terminate()
		return nil, nil, err
	}
	return src, audio.Terminate, nil
}

// OpenSource opens the configured input: the WAV file when one is set,
// the capture device otherwise. release must be called after the source
// is closed.
func OpenSource(cfg *config.Config) (src audio.Source, release func() error, err error) {
	if cfg.Audio.InputFile == "" {
		return openDevice(cfg)
	}
	wav, err := audio.OpenWAV(cfg.Audio.InputFile, audio.WAVOptions{
		FrameSize: cfg.Analysis.FFTSize,
		Loop:      cfg.Audio.Loop,
		Realtime:  cfg.Audio.Realtime,
	})
	if err != nil {
		return nil, nil, err
	}
	return wav, func() error { return nil }, nil
}

// AnalysisParams resolves the analyzer configuration against the sample
// rate the source actually delivers. A FreqMax above that rate's Nyquist
// frequency is lowered to it.
func AnalysisParams(cfg *config.Config, sampleRate float64) (analysis.Params, error) {
	p, err := cfg.AnalysisParams()
	if err != nil {
		return analysis.Params{}, err
	}
	if sampleRate > 0 {
		p.SampleRate = sampleRate
	}
	if nyquist := p.SampleRate / 2; p.FreqMax > nyquist {
		logger.Warnf("freq_max %.0f Hz is above Nyquist for %.0f Hz input; using %.0f Hz",
			p.FreqMax, p.SampleRate, nyquist)
		p.FreqMax = nyquist
	}
	return p, p.Validate()
}

// Run captures and analyses audio until ctx is cancelled, the input is
// exhausted or, in Preview mode, the user quits the meter.
func Run(ctx context.Context, cfg *config.Config, mode Mode) error {
	src, release, err := OpenSource(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			logger.Warnf("Failed to release audio host: %v", rerr)
		}
	}()

	params, err := AnalysisParams(cfg, src.SampleRate())
	if err != nil {
		src.Close()
		return err
	}
	analyzer, err := analysis.NewAnalyzer(params)
	if err != nil {
		src.Close()
		return err
	}
	analyzer.Init()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// --- Sinks ---
	var (
		sinks   transport.Multi
		program *tea.Program
	)
	switch mode {
	case Preview:
		program = tea.NewProgram(
			tui.NewMeter(meterTitle(params), tui.BarLabels(params)),
			tea.WithContext(ctx),
			tea.WithAltScreen(),
		)
		sinks = append(sinks, tui.NewTransport(program))
	default:
		if cfg.Transport.WSEnabled {
			ws := transport.NewWebSocketServer(cfg.Transport.WSAddress, cfg.Transport.WSPath)
			if err := ws.Start(); err != nil {
				src.Close()
				return err
			}
			sinks = append(sinks, ws)
			g.Go(func() error {
				select {
				case <-ctx.Done():
					return nil
				case err, ok := <-ws.Done():
					if ok && err != nil {
						return fmt.Errorf("websocket server stopped: %w", err)
					}
					return nil
				}
			})
		} else {
			sinks = append(sinks, transport.NewLoggingTransport())
		}
	}
	defer func() {
		if cerr := sinks.Close(); cerr != nil {
			logger.Warnf("Error closing transports: %v", cerr)
		}
	}()

	engine, err := audio.NewEngine(src, analyzer, sinks, audio.Options{
		SendInterval: cfg.FrameInterval(),
		// A UDP listener cannot be counted, so capture keeps running for it.
		IdleWithoutClients: mode == Serve && cfg.Transport.WSEnabled &&
			cfg.Transport.IdleWithoutClients && !cfg.Transport.UDPEnabled,
		GateThreshold: cfg.Audio.GateThreshold,
	})
	if err != nil {
		src.Close()
		return err
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			logger.Warnf("Error closing engine: %v", cerr)
		}
		s := engine.Stats()
		logger.Infof("Frames read: %d, analysed: %d, gated: %d, sent: %d, send errors: %d, overruns: %d",
			s.FramesRead, s.FramesAnalysed, s.FramesGated, s.FramesSent, s.SendErrors, s.Overruns)
	}()

	// --- UDP ---
	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()
		publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, analyzer)
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Stop()
	}

	// --- Recording ---
	if cfg.Recording.Enabled {
		path := audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		if err := engine.StartRecording(path, cfg.Recording.BitDepth); err != nil {
			return err
		}
	}

	logger.Infof("Running in %s mode", mode)

	g.Go(func() error {
		defer cancel()
		return engine.Run(ctx)
	})
	if program != nil {
		applog.SetOutput(io.Discard)
		defer applog.SetOutput(os.Stderr)
		g.Go(func() error {
			defer cancel()
			_, err := program.Run()
			if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

func meterTitle(p analysis.Params) string {
	return fmt.Sprintf("visbridge  %.0f Hz  FFT %d  %d bars", p.SampleRate, p.FFTSize, p.BarCount)
}
