// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"audioviz/cmd"
	"audioviz/internal/audio"
	"audioviz/internal/config"
	"audioviz/internal/log"
	"audioviz/internal/transport"
	"audioviz/internal/transport/udp"
	"audioviz/internal/tui"
	"audioviz/internal/visual"
	"audioviz/pkg/build"
)

// debugLogFile receives log output while the terminal UI owns the screen.
const debugLogFile = "audioviz.log"

// main is the entry point for the player.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load the config file
//   - Initialize PortAudio when it is needed
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Decode the file and start the output stream
//   - Run the visual scheduler and frame transports
//   - Run the terminal UI, or wait for the end of playback when headless
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Unstamped development builds keep their defaults.
	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v", err)
	}

	cfg, err := cmd.ParseArgs()
	if err != nil {
		log.Fatal(err)
	}
	if cfg == nil {
		return
	}
	configureLogging(cfg)

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func configureLogging(cfg *config.Config) {
	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Warnf("Unknown log level %q, using %s", cfg.LogLevel, level)
	}
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
}

func run(cfg *config.Config) error {
	if cfg.Command == cmd.CommandVersion {
		fmt.Println(build.Get())
		return nil
	}

	// Initialize PortAudio subsystem
	if cfg.Audio.Backend == config.BackendPortAudio || cfg.Command != "" {
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer func() {
			if err := audio.Terminate(); err != nil {
				log.Errorf("%v", err)
			}
		}()
	}

	// Handle one-off commands (e.g., device listing) that don't require
	// the playback engine
	if cfg.Command != "" {
		return executeCommand(cfg.Command)
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := audio.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		// ==================== SHUTDOWN PHASE (Cold Path) ====================
		if err := engine.Close(); err != nil {
			log.Errorf("Error closing audio engine: %v", err)
		}
	}()

	styles, err := visual.NewStyles(cfg.Visual.Styles)
	if err != nil {
		return err
	}
	sched, err := visual.NewScheduler(engine, styles...)
	if err != nil {
		return err
	}
	if err := sched.SetActive(cfg.Visual.Style); err != nil {
		return err
	}

	frames, err := openTransports(cfg)
	if err != nil {
		return err
	}
	if frames != nil {
		sched.SetTransport(frames)
		defer func() {
			if err := frames.Close(); err != nil {
				log.Errorf("Error closing transports: %v", err)
			}
		}()
	}

	var ctl tui.Controller = engine
	if cfg.Recording.Enabled {
		ctl = &recordOnLoad{Engine: engine}
	}

	if cfg.Headless {
		return runHeadless(ctx, cfg, ctl, engine, sched)
	}
	return runTUI(ctx, cfg, ctl, sched)
}

// runHeadless plays cfg.File once, publishing frames until playback ends or
// a signal arrives.
func runHeadless(ctx context.Context, cfg *config.Config, ctl tui.Controller, engine *audio.Engine, sched *visual.Scheduler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	engine.OnFinished(cancel)

	if err := ctl.Load(ctx, cfg.File); err != nil {
		return err
	}
	if err := ctl.Play(); err != nil {
		return err
	}
	log.Infof("Playing %s (%.1fs) with style %s", cfg.File, engine.TotalTime(), sched.Active().Name())

	// Block until playback finishes or a termination signal is received
	return sched.Run(ctx)
}

func runTUI(ctx context.Context, cfg *config.Config, ctl tui.Controller, sched *visual.Scheduler) error {
	restore, err := redirectLogs(cfg)
	if err != nil {
		return err
	}
	defer restore()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil {
			log.Errorf("Visual scheduler: %v", err)
		}
	}()

	err = tui.Run(ctx, ctl, sched, cfg.File)
	cancel()
	wg.Wait()
	return err
}

// redirectLogs keeps log lines off the alternate screen. Debug output goes
// to a file; everything else is discarded.
func redirectLogs(cfg *config.Config) (func(), error) {
	if log.GetLevel() > log.LevelDebug {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }, nil
	}
	f, err := os.OpenFile(debugLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
		if cfg.Verbose {
			fmt.Fprintf(os.Stderr, "Debug log written to %s\n", debugLogFile)
		}
	}, nil
}

// openTransports starts every enabled frame transport. It returns nil when
// none is enabled.
func openTransports(cfg *config.Config) (transport.Transport, error) {
	var frames transport.Multi
	fail := func(err error) (transport.Transport, error) {
		return nil, errors.Join(err, frames.Close())
	}

	if cfg.Transport.UDPEnabled {
		pub, err := udp.Dial(cfg.Transport.UDPTargetAddress, udp.DefaultInterval)
		if err != nil {
			return fail(err)
		}
		log.Infof("Transport: sending frames to udp://%s", cfg.Transport.UDPTargetAddress)
		frames = append(frames, pub)
	}
	if cfg.Transport.WSEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WSAddress)
		if err != nil {
			return fail(err)
		}
		log.Infof("Transport: serving frames on ws://%s%s", ws.Addr(), transport.FramesPath)
		frames = append(frames, ws)
	}
	if cfg.Transport.LogFrames {
		frames = append(frames, transport.NewLoggingTransport())
	}

	if len(frames) == 0 {
		return nil, nil
	}
	return frames, nil
}

// recordOnLoad starts the recording tap once the first file is loaded.
type recordOnLoad struct {
	*audio.Engine
	once sync.Once
}

func (r *recordOnLoad) Load(ctx context.Context, path string) error {
	if err := r.Engine.Load(ctx, path); err != nil {
		return err
	}
	r.once.Do(func() {
		if err := r.Engine.StartRecording(""); err != nil {
			log.Errorf("Recording: %v", err)
		}
	})
	return nil
}

// executeCommand handles one-off commands that don't require the playback
// engine, such as listing available output devices.
func executeCommand(command string) error {
	switch command {
	case cmd.CommandList:
		return audio.ListDevices(os.Stdout)
	case cmd.CommandDevices:
		return tui.StartDeviceListUI()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
