// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"audioviz.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks value ranges. It collects every violation so a broken
// config file is reported in one pass.
func (c *Config) Validate() error {
	var errs []error

	switch c.Audio.Backend {
	case BackendPortAudio, BackendOto:
	default:
		errs = append(errs, fmt.Errorf("audio.backend %q is not one of %q, %q",
			c.Audio.Backend, BackendPortAudio, BackendOto))
	}
	if c.Audio.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.output_device must be >= %d, got %d", MinDeviceID, c.Audio.OutputDevice))
	}
	if c.Audio.FramesPerBuffer < MinBufferFrames || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be in [%d, %d], got %d",
			MinBufferFrames, MaxBufferFrames, c.Audio.FramesPerBuffer))
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		errs = append(errs, fmt.Errorf("audio.volume must be in [0, 1], got %g", c.Audio.Volume))
	}
	if c.Audio.NormalizeTarget <= 0 || c.Audio.NormalizeTarget > 1 {
		errs = append(errs, fmt.Errorf("audio.normalize_target must be in (0, 1], got %g", c.Audio.NormalizeTarget))
	}
	if c.Audio.DemuxSampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.demux_sample_rate must be positive, got %d", c.Audio.DemuxSampleRate))
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.gate_threshold must be in [0, 1], got %g", c.Audio.GateThreshold))
	}
	if c.Analysis.BeatThreshold < 0 {
		errs = append(errs, fmt.Errorf("analysis.beat_threshold must be >= 0, got %g", c.Analysis.BeatThreshold))
	}
	if c.Visual.Style == "" {
		errs = append(errs, errors.New("visual.style must be set"))
	}
	if c.Recording.BitDepth != 16 && c.Recording.BitDepth != 24 {
		errs = append(errs, fmt.Errorf("recording.bit_depth must be 16 or 24, got %d", c.Recording.BitDepth))
	}
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)",
				c.Transport.UDPTargetAddress))
		}
	}
	if c.Transport.WSEnabled && c.Transport.WSAddress == "" {
		errs = append(errs, errors.New("transport.ws_address must be set when ws is enabled"))
	}

	return errors.Join(errs...)
}

// StyleOptions returns the physics overrides for the named style, or nil.
func (c *Config) StyleOptions(name string) map[string]float64 {
	if c.Visual.Styles == nil {
		return nil
	}
	return c.Visual.Styles[name]
}

// applyEnvOverrides lets deployment scripts tweak a handful of settings
// without shipping a config file. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok && val != "" {
		c.LogLevel = val
	}

	// ENV_AUDIO_{...}
	if val, ok := os.LookupEnv("ENV_AUDIO_BACKEND"); ok && val != "" {
		c.Audio.Backend = strings.ToLower(val)
	}
	if val, ok := os.LookupEnv("ENV_AUDIO_FFMPEG_PATH"); ok {
		c.Audio.FFmpegPath = val
	}

	// ENV_UDP_{...}
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}

	// ENV_WS_{...}
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok && val != "" {
		c.Transport.WSEnabled = true
		c.Transport.WSAddress = val
	}
}
