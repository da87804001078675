// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Analysis.SampleRate != DefaultSampleRate || cfg.Analysis.FFTSize != DefaultFFTSize || cfg.Analysis.NumBands != DefaultNumBands {
		t.Errorf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.BinSize() != 31.25 {
		t.Errorf("BinSize() = %f, want 31.25", cfg.BinSize())
	}
	if cfg.SpectrumLen() != 257 {
		t.Errorf("SpectrumLen() = %d, want 257", cfg.SpectrumLen())
	}
	if cfg.FrameDuration() != 32*time.Millisecond {
		t.Errorf("FrameDuration() = %s, want 32ms", cfg.FrameDuration())
	}
	if cfg.WebSocketEnabled() {
		t.Error("WebSocket should be disabled by default")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeTempConfig(t, `
log_level: debug
analysis:
  sample_rate: 48000
  fft_size: 1000
  num_bands: 12
audio:
  input_channels: 2
  gate_threshold: 0.05
transport:
  udp_enabled: true
  udp_target_address: "127.0.0.1:7000"
  udp_send_interval: 20ms
  ws_address: "localhost:8081"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Analysis.SampleRate != 48000 || cfg.Analysis.NumBands != 12 {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Analysis.FFTSize != 1024 {
		t.Errorf("fft_size = %d, want 1000 rounded up to 1024", cfg.Analysis.FFTSize)
	}
	if cfg.Audio.InputChannels != 2 || cfg.Audio.GateThreshold != 0.05 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	// Unset keys keep their defaults.
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer || cfg.Audio.InputDevice != DefaultDeviceID {
		t.Errorf("audio defaults lost: %+v", cfg.Audio)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 20*time.Millisecond {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if !cfg.WebSocketEnabled() {
		t.Error("WebSocket should be enabled")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"low sample rate", func(c *Config) { c.Analysis.SampleRate = 100 }, "analysis.sample_rate"},
		{"zero fft size", func(c *Config) { c.Analysis.FFTSize = 0 }, "analysis.fft_size"},
		{"huge fft size", func(c *Config) { c.Analysis.FFTSize = MaxFFTSize + 1 }, "analysis.fft_size"},
		{"negative bands", func(c *Config) { c.Analysis.NumBands = -1 }, "analysis.num_bands"},
		{"too many bands", func(c *Config) { c.Analysis.NumBands = MaxNumBands + 1 }, "analysis.num_bands"},
		{"activity above one", func(c *Config) { c.Analysis.ActivityThreshold = 2 }, "analysis.activity_threshold"},
		{"activity disabled", func(c *Config) { c.Analysis.ActivityThreshold = 0 }, ""},
		{"negative hangover", func(c *Config) { c.Analysis.ActivityHangover = -1 }, "analysis.activity_hangover"},
		{"bad device", func(c *Config) { c.Audio.InputDevice = -2 }, "audio.input_device"},
		{"no channels", func(c *Config) { c.Audio.InputChannels = 0 }, "audio.input_channels"},
		{"no frames", func(c *Config) { c.Audio.FramesPerBuffer = 0 }, "audio.frames_per_buffer"},
		{"gate above one", func(c *Config) { c.Audio.GateThreshold = 1.5 }, "audio.gate_threshold"},
		{"bad bit depth", func(c *Config) { c.Recording.Enabled = true; c.Recording.BitDepth = 12 }, "recording.bit_depth"},
		{"bit depth ignored when disabled", func(c *Config) { c.Recording.BitDepth = 12 }, ""},
		{"udp without port", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "transport.udp_target_address"},
		{"udp zero interval", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPSendInterval = 0
		}, "transport.udp_send_interval"},
		{"bad ws address", func(c *Config) { c.Transport.WebSocketAddress = "8080" }, "transport.ws_address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDefaultsNumBands(t *testing.T) {
	cfg := Default()
	cfg.Analysis.NumBands = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Analysis.NumBands != DefaultNumBands {
		t.Errorf("NumBands = %d, want %d", cfg.Analysis.NumBands, DefaultNumBands)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_LOG_LEVEL", "warn")
	t.Setenv("ENV_SAMPLE_RATE", "22050")
	t.Setenv("ENV_FFT_SIZE", "300")
	t.Setenv("ENV_UDP_ENABLED", "1")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:9999")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "50ms")
	t.Setenv("ENV_WS_ADDRESS", ":8090")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.Debug || cfg.LogLevel != "warn" {
		t.Errorf("debug/log level = %v/%s", cfg.Debug, cfg.LogLevel)
	}
	if cfg.Analysis.SampleRate != 22050 || cfg.Analysis.FFTSize != 512 {
		t.Errorf("analysis = %+v, want 22050 Hz and 300 rounded to 512", cfg.Analysis)
	}
	tr := cfg.Transport
	if !tr.UDPEnabled || tr.UDPTargetAddress != "10.0.0.2:9999" || tr.UDPSendInterval != 50*time.Millisecond || tr.WebSocketAddress != ":8090" {
		t.Errorf("transport = %+v", tr)
	}
}

func TestEnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("ENV_DEBUG", "maybe")
	t.Setenv("ENV_SAMPLE_RATE", "fast")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "soon")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Debug || cfg.Analysis.SampleRate != DefaultSampleRate || cfg.Transport.UDPSendInterval != DefaultUDPSendInterval {
		t.Errorf("garbage env values were applied: %+v", cfg)
	}
}
