// SPDX-License-Identifier: MIT
package config

// Core configuration constants that define the boundaries and defaults
// for the playback and analysis engine.
const (
	DefaultBackend          = BackendPortAudio
	DefaultOutputDevice     = MinDeviceID // System default output device
	DefaultFramesPerBuffer  = 2048        // One block per callback, also the FFT size
	DefaultVolume           = 0.7
	DefaultLowLatency       = false
	DefaultNormalizeTarget  = 0.9 // Peak amplitude after loading
	DefaultFFmpegPath       = "ffmpeg"
	DefaultDemuxSampleRate  = 44100 // Rate requested from the ffmpeg fallback
	DefaultGateThreshold    = 0.0   // Gate open
	DefaultFFTWindow        = "Hann"
	DefaultBeatThreshold    = 0.3
	DefaultStyle            = "spectrum"
	DefaultRecordingDir     = "./recordings"
	DefaultRecordingDepth   = 16
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultWSAddress        = ":8080"

	BackendPortAudio = "portaudio"
	BackendOto       = "oto"

	// Hardware and processing limits
	MinDeviceID     = -1   // -1 represents system default device
	MinBufferFrames = 64   // Smallest useful analysis block
	MaxBufferFrames = 8192 // Maximum frames per buffer (power of 2)
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Loader and playback settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Per-block analysis settings.
	Visual    VisualConfig    `yaml:"visual"`    // Visual style selection and physics overrides.
	Recording RecordingConfig `yaml:"recording"` // Recording tap settings.
	Transport TransportConfig `yaml:"transport"` // Frame publishing settings.

	// Runtime options populated by the CLI, never read from YAML.
	Command  string `yaml:"-"` // A one-off command to execute instead of playing (e.g., "list").
	File     string `yaml:"-"` // Audio file to load.
	Headless bool   `yaml:"-"` // Run without the terminal UI.
	Verbose  bool   `yaml:"-"` // Shortcut for log_level=debug.
}

// AudioConfig holds loader and output stream settings.
type AudioConfig struct {
	Backend         string  `yaml:"backend"`           // Output backend: "portaudio" or "oto".
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for output (-1 for default).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback block.
	Volume          float64 `yaml:"volume"`            // Initial volume in [0,1].
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio.
	NormalizeTarget float64 `yaml:"normalize_target"`  // Peak amplitude after loading, in (0,1].
	FFmpegPath      string  `yaml:"ffmpeg_path"`       // ffmpeg binary used by the demux fallback ("" disables it).
	DemuxSampleRate int     `yaml:"demux_sample_rate"` // Sample rate requested from ffmpeg.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Blocks with peak below this are analysed as silence.
}

// AnalysisConfig holds settings for the per-block spectral analysis.
type AnalysisConfig struct {
	FFTWindow     string  `yaml:"fft_window"`     // Window function name (e.g., "Hann", "Hamming").
	BeatThreshold float64 `yaml:"beat_threshold"` // RMS above which a block is flagged as a beat.
}

// VisualConfig selects the active style and carries per-style physics overrides,
// keyed by style name, e.g. styles: {circular: {smoothing: 0.9, damping: 0.9}}.
type VisualConfig struct {
	Style  string                        `yaml:"style"`
	Styles map[string]map[string]float64 `yaml:"styles"`
}

// RecordingConfig holds settings for the playback recording tap.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record delivered blocks to a WAV file.
	OutputDir string `yaml:"output_dir"` // Directory for recordings.
	BitDepth  int    `yaml:"bit_depth"`  // Bit depth for recorded audio (16 or 24).
}

// TransportConfig holds settings for publishing visual frames to external renderers.
type TransportConfig struct {
	UDPEnabled       bool   `yaml:"udp_enabled"`        // Send frames over UDP.
	UDPTargetAddress string `yaml:"udp_target_address"` // Target address and port for UDP packets.
	WSEnabled        bool   `yaml:"ws_enabled"`         // Serve frames over WebSocket.
	WSAddress        string `yaml:"ws_address"`         // Listen address for the WebSocket server.
	LogFrames        bool   `yaml:"log_frames"`         // Log frame summaries at debug level.
}

// NewConfig creates a Config holding the built-in defaults. LoadConfig starts
// from this value before applying a file and environment overrides.
func NewConfig() *Config {
	return &Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			OutputDevice:    DefaultOutputDevice,
			FramesPerBuffer: DefaultFramesPerBuffer,
			Volume:          DefaultVolume,
			LowLatency:      DefaultLowLatency,
			NormalizeTarget: DefaultNormalizeTarget,
			FFmpegPath:      DefaultFFmpegPath,
			DemuxSampleRate: DefaultDemuxSampleRate,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			FFTWindow:     DefaultFFTWindow,
			BeatThreshold: DefaultBeatThreshold,
		},
		Visual: VisualConfig{
			Style:  DefaultStyle,
			Styles: map[string]map[string]float64{},
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultRecordingDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			WSAddress:        DefaultWSAddress,
		},
	}
}
