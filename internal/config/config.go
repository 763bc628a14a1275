package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture, analysis and transport layers.
const (
	// Audio defaults
	DefaultInputDevice   = MinDeviceID // System default device
	DefaultSampleRate    = 44100       // CD-quality audio
	DefaultInputChannels = 1           // Mono capture
	DefaultLowLatency    = true        // One FFT frame of latency is the goal

	// Analysis defaults (~23 ms frames at 44.1 kHz)
	DefaultFFTSize  = 1024
	DefaultBarCount = 24
	DefaultFreqMin  = 20.0
	DefaultFreqMax  = 20000.0
	DefaultFloorDB  = -60.0
	DefaultWindow   = "hann"
	DefaultBackend  = "radix2"

	// Recording defaults
	DefaultRecordingDir = "./recordings"
	DefaultBitDepth     = 16

	// Transport defaults
	DefaultWSAddress       = "127.0.0.1:8080"
	DefaultWSPath          = "/"
	DefaultSendFPS         = 60
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPSendInterval = 16 * time.Millisecond // ~60Hz

	DefaultLogLevel = "info"

	// Hardware and processing limits
	MinDeviceID   = -1     // -1 represents system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MinFFTSize    = 4      // Smallest size with a usable bin between DC and Nyquist
	MaxFFTSize    = 32768  // Largest frame we analyse in real time
	MaxChannels   = 32
	MaxSendFPS    = 240
)

// Config represents the application configuration, loaded from YAML and
// overridden by environment variables and command line flags.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Enable debug logging.
	LogLevel  string          `yaml:"log_level"`         // Logging level ("debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty"` // One-off command selected on the command line.
	Audio     AudioConfig     `yaml:"audio"`             // Capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`          // Spectrum settings.
	Recording RecordingConfig `yaml:"recording"`         // Recording of captured frames.
	Transport TransportConfig `yaml:"transport"`         // Delivery of bars to viewers.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice   int     `yaml:"input_device"`   // PortAudio device index (-1 for default).
	SampleRate    float64 `yaml:"sample_rate"`    // Sample rate in Hz.
	InputChannels int     `yaml:"input_channels"` // Channels captured; downmixed to mono.
	LowLatency    bool    `yaml:"low_latency"`    // Request the device's low input latency.
	InputFile     string  `yaml:"input_file"`     // Analyse a WAV file instead of a device.
	Loop          bool    `yaml:"loop"`           // Restart the WAV file at EOF.
	Realtime      bool    `yaml:"realtime"`       // Pace WAV frames at the stream's sample rate.
	GateThreshold float64 `yaml:"gate_threshold"` // Peak level (0-1) below which frames are treated as silent; 0 disables.
}

// AnalysisConfig holds settings for the spectrum pipeline. Any change to
// fft_size, bar_count, freq_min, freq_max or window selects a new table set.
type AnalysisConfig struct {
	FFTSize       int     `yaml:"fft_size"`       // Frame length, power of 2.
	BarCount      int     `yaml:"bar_count"`      // Number of output bars.
	FreqMin       float64 `yaml:"freq_min"`       // Lower edge of the first bar (Hz).
	FreqMax       float64 `yaml:"freq_max"`       // Upper edge of the last bar (Hz).
	FloorDB       float64 `yaml:"floor_db"`       // Level mapped to 0.0.
	Window        string  `yaml:"window"`         // Window function name.
	Backend       string  `yaml:"backend"`        // "radix2" or "gonum".
	SanitizeInput bool    `yaml:"sanitize_input"` // Zero NaN/Inf samples.
}

// RecordingConfig holds settings for recording captured frames.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record captured mono frames to WAV.
	OutputDir string `yaml:"output_dir"` // Directory for recordings.
	BitDepth  int    `yaml:"bit_depth"`  // 16, 24 or 32.
}

// TransportConfig holds settings related to sending bars to viewers.
type TransportConfig struct {
	WSEnabled          bool          `yaml:"ws_enabled"`           // Serve bars over WebSocket.
	WSAddress          string        `yaml:"ws_address"`           // Listen address, host:port.
	WSPath             string        `yaml:"ws_path"`              // HTTP path upgraded to WebSocket.
	SendFPS            int           `yaml:"send_fps"`             // Maximum frames per second sent.
	IdleWithoutClients bool          `yaml:"idle_without_clients"` // Stop reading audio while nobody is connected.
	UDPEnabled         bool          `yaml:"udp_enabled"`          // Publish bars over UDP.
	UDPTargetAddress   string        `yaml:"udp_target_address"`   // Target host:port.
	UDPSendInterval    time.Duration `yaml:"udp_send_interval"`    // Interval between UDP packets.
}

// NewConfig returns a Config populated with defaults. It is the base onto
// which files, environment variables and flags are layered.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:   DefaultInputDevice,
			SampleRate:    DefaultSampleRate,
			InputChannels: DefaultInputChannels,
			LowLatency:    DefaultLowLatency,
			Realtime:      true,
		},
		Analysis: AnalysisConfig{
			FFTSize:       DefaultFFTSize,
			BarCount:      DefaultBarCount,
			FreqMin:       DefaultFreqMin,
			FreqMax:       DefaultFreqMax,
			FloorDB:       DefaultFloorDB,
			Window:        DefaultWindow,
			Backend:       DefaultBackend,
			SanitizeInput: true,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WSEnabled:          true,
			WSAddress:          DefaultWSAddress,
			WSPath:             DefaultWSPath,
			SendFPS:            DefaultSendFPS,
			IdleWithoutClients: true,
			UDPTargetAddress:   DefaultUDPTarget,
			UDPSendInterval:    DefaultUDPSendInterval,
		},
	}
}

// FrameInterval returns the minimum spacing between sent frames.
func (c *Config) FrameInterval() time.Duration {
	if c.Transport.SendFPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Transport.SendFPS)
}
