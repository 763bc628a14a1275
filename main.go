package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"visbridge/cmd"
	"visbridge/internal/app"
	"visbridge/internal/audio"
	"visbridge/internal/config"
	log "visbridge/internal/log"
	"visbridge/internal/tui"
	"visbridge/pkg/build"
)

// main is the entry point for visbridge.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the capture source and start the engine
//   - Serve viewers or draw the terminal meter
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Close transports, recording and the source
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds have no ldflags; the defaults are fine for them.
	if err := build.Initialize(); err != nil {
		log.Debugf("Build information incomplete: %v", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if cfg.Command == "" {
		return
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = executeCommand(ctx, cfg)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	stop()
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// executeCommand runs the command selected on the command line.
func executeCommand(ctx context.Context, cfg *config.Config) error {
	switch cfg.Command {
	case cmd.CommandServe:
		return app.Run(ctx, cfg, app.Serve)

	case cmd.CommandPreview:
		return app.Run(ctx, cfg, app.Preview)

	case cmd.CommandList:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)

	case cmd.CommandPick:
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		sel, ok, err := tui.PickDevice(audio.HostDevices)
		if err != nil || !ok {
			return err
		}
		fmt.Printf("Selected [%d] %s at %.0f Hz\n", sel.DeviceID, sel.DeviceName, sel.SampleRate)
		fmt.Printf("Run: %s --device %d --sample-rate %.0f\n",
			build.GetBuildFlags().Name, sel.DeviceID, sel.SampleRate)
		return nil

	case cmd.CommandBins:
		params, err := cfg.AnalysisParams()
		if err != nil {
			return err
		}
		fmt.Println(tui.BinTable(params))
		return nil

	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
		return nil
	}
	return fmt.Errorf("unknown command %q", cfg.Command)
}
