// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"visbridge/internal/analysis"
	applog "visbridge/internal/log"
)

var logger = applog.For("config")

// ErrInvalidConfig wraps every validation failure returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// envPrefix namespaces every environment override.
const envPrefix = "VIS_"

// configCandidates are searched, in order, when LoadConfig is given no path.
var configCandidates = []string{
	"visbridge.yaml",
	"config.yaml",
}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it searches the default locations. If no file is found, it uses
// built-in defaults. Environment overrides are applied last and the result
// is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		for _, candidate := range configCandidates {
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
		logger.Debugf("Loaded configuration from %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every section and returns the first problem found,
// wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, ok := applog.ParseLevel(c.LogLevel); !ok {
			return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
		}
	}

	// Audio
	a := c.Audio
	if a.InputDevice < MinDeviceID {
		return invalid("audio.input_device must be >= %d, got %d", MinDeviceID, a.InputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate must be within [%d, %d], got %g", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	if a.InputChannels < 1 || a.InputChannels > MaxChannels {
		return invalid("audio.input_channels must be within [1, %d], got %d", MaxChannels, a.InputChannels)
	}
	if a.GateThreshold < 0 || a.GateThreshold > 1 {
		return invalid("audio.gate_threshold must be within [0, 1], got %g", a.GateThreshold)
	}

	// Analysis
	if c.Analysis.FFTSize > MaxFFTSize {
		return invalid("analysis.fft_size must be <= %d, got %d", MaxFFTSize, c.Analysis.FFTSize)
	}
	p, err := c.AnalysisParams()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: analysis: %w", ErrInvalidConfig, err)
	}

	// Recording
	if c.Recording.Enabled {
		if c.Recording.OutputDir == "" {
			return invalid("recording.output_dir must be set when recording is enabled")
		}
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return invalid("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
		}
	}

	// Transport
	t := c.Transport
	if t.SendFPS < 1 || t.SendFPS > MaxSendFPS {
		return invalid("transport.send_fps must be within [1, %d], got %d", MaxSendFPS, t.SendFPS)
	}
	if t.WSEnabled {
		if _, _, err := net.SplitHostPort(t.WSAddress); err != nil {
			return invalid("transport.ws_address %q: %v", t.WSAddress, err)
		}
		if !strings.HasPrefix(t.WSPath, "/") {
			return invalid("transport.ws_path %q must start with '/'", t.WSPath)
		}
	}
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return invalid("transport.udp_target_address %q: %v", t.UDPTargetAddress, err)
		}
		if t.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	return nil
}

// AnalysisParams converts the analysis section into analyzer parameters.
func (c *Config) AnalysisParams() (analysis.Params, error) {
	window, err := analysis.ParseWindowFunc(c.Analysis.Window)
	if err != nil {
		return analysis.Params{}, err
	}
	backend, err := analysis.ParseBackend(c.Analysis.Backend)
	if err != nil {
		return analysis.Params{}, err
	}
	return analysis.Params{
		FFTSize:       c.Analysis.FFTSize,
		BarCount:      c.Analysis.BarCount,
		SampleRate:    c.Audio.SampleRate,
		FreqMin:       c.Analysis.FreqMin,
		FreqMax:       c.Analysis.FreqMax,
		FloorDB:       c.Analysis.FloorDB,
		Window:        window,
		Backend:       backend,
		SanitizeInput: c.Analysis.SanitizeInput,
	}, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// applyEnvOverrides reads VIS_* variables. A variable that is present but
// cannot be parsed is an error rather than silently ignored.
func (c *Config) applyEnvOverrides() error {
	// VIS_{...}
	// These are general overrides.
	if err := envBool("DEBUG", &c.Debug); err != nil {
		return err
	}
	envString("LOG_LEVEL", &c.LogLevel)

	// Audio and analysis.
	if err := envFloat("SAMPLE_RATE", &c.Audio.SampleRate); err != nil {
		return err
	}
	if err := envInt("FFT_SIZE", &c.Analysis.FFTSize); err != nil {
		return err
	}
	if err := envInt("BAR_COUNT", &c.Analysis.BarCount); err != nil {
		return err
	}

	// VIS_WS_{...} and VIS_UDP_{...}
	// These are specific to the transport layer.
	envString("WS_ADDRESS", &c.Transport.WSAddress)
	if err := envInt("SEND_FPS", &c.Transport.SendFPS); err != nil {
		return err
	}
	if err := envBool("UDP_ENABLED", &c.Transport.UDPEnabled); err != nil {
		return err
	}
	envString("UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	if val, ok := os.LookupEnv(envPrefix + "UDP_SEND_INTERVAL"); ok {
		dur, err := time.ParseDuration(val)
		if err != nil {
			return envError("UDP_SEND_INTERVAL", val, err)
		}
		c.Transport.UDPSendInterval = dur
		logger.Infof("Overriding transport.udp_send_interval from env: %s", dur)
	}
	return nil
}

func envString(name string, dst *string) {
	if val, ok := os.LookupEnv(envPrefix + name); ok {
		*dst = val
		logger.Infof("Overriding %s from env: %s", strings.ToLower(name), val)
	}
}

func envBool(name string, dst *bool) error {
	val, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return envError(name, val, err)
	}
	*dst = b
	logger.Infof("Overriding %s from env: %v", strings.ToLower(name), b)
	return nil
}

func envInt(name string, dst *int) error {
	val, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return envError(name, val, err)
	}
	*dst = n
	logger.Infof("Overriding %s from env: %d", strings.ToLower(name), n)
	return nil
}

func envFloat(name string, dst *float64) error {
	val, ok := os.LookupEnv(envPrefix + name)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return envError(name, val, err)
	}
	*dst = f
	logger.Infof("Overriding %s from env: %g", strings.ToLower(name), f)
	return nil
}

func envError(name, val string, err error) error {
	return fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidConfig, envPrefix, name, val, err)
}
