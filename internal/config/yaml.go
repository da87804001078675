// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	applog "voicefft/internal/log"
	"voicefft/pkg/bitint"

	"gopkg.in/yaml.v3"
)

var configLog = applog.Named("config")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`             // Enable debug logging.
	LogLevel  string          `yaml:"log_level"`         // Logging level ("debug", "info", "warn", "error").
	Command   string          `yaml:"command,omitempty"` // A one-off command to execute instead of running the engine.
	Analysis  AnalysisConfig  `yaml:"analysis"`          // Transform and feature extraction settings.
	Audio     AudioConfig     `yaml:"audio"`             // Audio capture settings.
	Recording RecordingConfig `yaml:"recording"`         // Audio recording settings.
	Transport TransportConfig `yaml:"transport"`         // Feature publishing settings.
}

// AnalysisConfig holds the transform and extractor settings.
type AnalysisConfig struct {
	SampleRate        int     `yaml:"sample_rate"`        // Sample rate in Hz, shared by capture and analysis.
	FFTSize           int     `yaml:"fft_size"`           // Frame length; rounded up to a power of two.
	NumBands          int     `yaml:"num_bands"`          // Length of the published band vector.
	ActivityThreshold float64 `yaml:"activity_threshold"` // RMS level in [0,1] that counts as speech, 0 disables detection.
	ActivityHangover  int     `yaml:"activity_hangover"`  // Quiet frames before speech is considered finished.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	InputChannels   int     `yaml:"input_channels"`    // Captured channels, downmixed to mono before analysis.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // PortAudio buffer size in frames.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low latency settings.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Peak amplitude in [0,1] below which frames are treated as silence.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`              // Record the captured input to a WAV file.
	OutputDir   string `yaml:"output_dir"`           // Directory to save recorded audio files.
	BitDepth    int    `yaml:"bit_depth"`            // Bit depth for recorded audio (16, 24 or 32).
	MaxDuration int    `yaml:"max_duration_seconds"` // Maximum duration of a recording in seconds (0 for unlimited).
}

// TransportConfig holds settings related to publishing features over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Publish feature packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target "host:port" for UDP packets.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketAddress string        `yaml:"ws_address"`         // Listen address for the WebSocket server, empty to disable.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Analysis: AnalysisConfig{
			SampleRate: DefaultSampleRate,
			FFTSize:    DefaultFFTSize,
			NumBands:   DefaultNumBands,

			ActivityThreshold: DefaultActivityThreshold,
			ActivityHangover:  DefaultActivityHangover,
		},
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			InputChannels:   DefaultChannels,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			GateThreshold:   DefaultGateThreshold,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultOutputDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "voicefft.yaml"} {
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
		configLog.Debugf("loaded %s", path)
	}

	// Environment overrides apply after the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and normalizes the values that have an
// obvious correction. A non-power-of-two fft_size is rounded up.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level '%s' is not one of debug, info, warn, error, fatal", c.LogLevel)
	}

	// Analysis
	a := &c.Analysis
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("analysis.sample_rate must be in [%d, %d], got %d", MinSampleRate, MaxSampleRate, a.SampleRate)
	}
	if a.FFTSize <= 0 || a.FFTSize > MaxFFTSize {
		return fmt.Errorf("analysis.fft_size must be in [1, %d], got %d", MaxFFTSize, a.FFTSize)
	}
	if !bitint.IsPowerOfTwo(a.FFTSize) {
		rounded := bitint.NextPowerOfTwo(a.FFTSize)
		configLog.Warnf("analysis.fft_size %d is not a power of 2, using %d", a.FFTSize, rounded)
		a.FFTSize = rounded
	}
	if a.NumBands == 0 {
		a.NumBands = DefaultNumBands
	}
	if a.NumBands < 0 || a.NumBands > MaxNumBands {
		return fmt.Errorf("analysis.num_bands must be in [1, %d], got %d", MaxNumBands, a.NumBands)
	}
	if a.ActivityThreshold < 0 || a.ActivityThreshold > 1 {
		return fmt.Errorf("analysis.activity_threshold must be in [0, 1], got %g", a.ActivityThreshold)
	}
	if a.ActivityHangover < 0 {
		return fmt.Errorf("analysis.activity_hangover must not be negative, got %d", a.ActivityHangover)
	}

	// Audio
	if c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > MaxChannels {
		return fmt.Errorf("audio.input_channels must be in [1, %d], got %d", MaxChannels, c.Audio.InputChannels)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer must be in [1, %d], got %d", MaxBufferFrames, c.Audio.FramesPerBuffer)
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 {
		return fmt.Errorf("audio.gate_threshold must be in [0, 1], got %g", c.Audio.GateThreshold)
	}

	// Recording
	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth)
		}
		if c.Recording.OutputDir == "" {
			return fmt.Errorf("recording.output_dir must be set when recording is enabled")
		}
	}
	if c.Recording.MaxDuration < 0 {
		return fmt.Errorf("recording.max_duration_seconds must not be negative")
	}

	// Transport
	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			return fmt.Errorf("transport.udp_target_address '%s' is invalid: %w", c.Transport.UDPTargetAddress, err)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Transport.WebSocketAddress != "" {
		if _, _, err := net.SplitHostPort(c.Transport.WebSocketAddress); err != nil {
			return fmt.Errorf("transport.ws_address '%s' is invalid: %w", c.Transport.WebSocketAddress, err)
		}
	}

	return nil
}

// applyEnvOverrides replaces settings with ENV_* variables when present.
// Values that fail to parse are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
			configLog.Infof("overriding debug from env: %v", b)
		} else {
			configLog.Warnf("ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		configLog.Infof("overriding log_level from env: %s", val)
	}

	// ENV_SAMPLE_RATE, ENV_FFT_SIZE
	// These are specific to the analysis pipeline.
	if val, ok := os.LookupEnv("ENV_SAMPLE_RATE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Analysis.SampleRate = n
			configLog.Infof("overriding analysis.sample_rate from env: %d", n)
		} else {
			configLog.Warnf("ignoring ENV_SAMPLE_RATE=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("ENV_FFT_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Analysis.FFTSize = n
			configLog.Infof("overriding analysis.fft_size from env: %d", n)
		} else {
			configLog.Warnf("ignoring ENV_FFT_SIZE=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...}, ENV_WS_ADDRESS
	// These are specific to the transport layer.
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
			configLog.Infof("overriding transport.udp_enabled from env: %v", b)
		} else {
			configLog.Warnf("ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		configLog.Infof("overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = d
			configLog.Infof("overriding transport.udp_send_interval from env: %s", d)
		} else {
			configLog.Warnf("ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		configLog.Infof("overriding transport.ws_address from env: %s", val)
	}
}
