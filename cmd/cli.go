// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"os"

	"audioviz/internal/config"
	"audioviz/pkg/build"

	"github.com/spf13/cobra"
)

// Commands that run instead of playback.
const (
	CommandList    = "list"
	CommandDevices = "devices"
	CommandVersion = "version"
)

// ParseArgs parses os.Args into a configuration. The config file named by
// --config (or found in the working directory) is loaded first and the flags
// that were set override it. A nil config with a nil error means cobra
// already handled the invocation, e.g. --help.
func ParseArgs() (*config.Config, error) {
	return parseArgs(os.Args[1:])
}

type flagValues struct {
	configPath string
	device     int
	frames     int
	volume     float64
	style      string
	backend    string
	record     bool
	headless   bool
	verbose    bool
}

func parseArgs(args []string) (*config.Config, error) {
	buildInfo := build.Get()
	var (
		options *config.Config
		flags   flagValues
	)

	load := func(cmd *cobra.Command) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		if err := flags.apply(cmd, cfg); err != nil {
			return err
		}
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name + " [file]",
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				options.File = args[0]
			}
			if options.Headless && options.File == "" {
				return errors.New("--headless needs a file to play")
			}
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandList,
		Short: "List available output devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
		},
	})

	// Device browser
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandDevices,
		Short: "Browse output devices interactively",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandDevices
		},
	})

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandVersion,
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandVersion
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "",
		"Path to a YAML config file. Defaults to config.yaml or audioviz.yaml if present.")

	// Playback Configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultOutputDevice,
		"Output device ID (-1 for the system default). Use 'list' to see available devices.")
	pf.IntVarP(&flags.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Frames per callback block, also the FFT size")
	pf.Float64Var(&flags.volume, "volume", config.DefaultVolume,
		"Initial volume in [0, 1]")
	pf.StringVar(&flags.backend, "backend", config.DefaultBackend,
		"Output backend: portaudio or oto")

	// Visual Configuration
	pf.StringVar(&flags.style, "style", config.DefaultStyle,
		"Visual style: spectrum, circular or waveform")
	pf.BoolVar(&flags.headless, "headless", false,
		"Play without the terminal UI, publishing frames to the configured transports")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", false,
		"Record the played audio to a WAV file in recording.output_dir")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// apply copies the flags that were set on the command line over cfg and
// validates the result.
func (f flagValues) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.OutputDevice = f.device
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.frames
	}
	if changed("volume") {
		cfg.Audio.Volume = f.volume
	}
	if changed("backend") {
		cfg.Audio.Backend = f.backend
	}
	if changed("style") {
		cfg.Visual.Style = f.style
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	cfg.Headless = f.headless
	if f.verbose {
		cfg.Verbose = true
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
