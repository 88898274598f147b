package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/pcmfeed/pkg/stream"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.ChannelType() != stream.ChannelAuto {
		t.Errorf("ChannelType = %v, want auto", cfg.ChannelType())
	}
	if cfg.PoolBytes() != 0 {
		t.Errorf("PoolBytes = %d, want 0", cfg.PoolBytes())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"device upper case", func(c *Config) { c.Device = " MOCK " }, ""},
		{"unknown device", func(c *Config) { c.Device = "alsa" }, "invalid device"},
		{"zero frames", func(c *Config) { c.BufferFrames = 0 }, "buffer_frames"},
		{"huge frames", func(c *Config) { c.BufferFrames = MaxBufferFrames + 1 }, "buffer_frames"},
		{"negative device buffer", func(c *Config) { c.DeviceBuffer = -time.Second }, "device_buffer"},
		{"negative pool", func(c *Config) { c.PoolKB = -1 }, "pool_kb"},
		{"loud", func(c *Config) { c.Volume = 5 }, "volume"},
		{"negative volume", func(c *Config) { c.Volume = -0.1 }, "volume"},
		{"tone above nyquist", func(c *Config) { c.ToneHz = 30000 }, "tone_hz"},
		{"negative cache", func(c *Config) { c.CacheMB = -1 }, "cache_mb"},
		{"cache disabled", func(c *Config) { c.CacheMB = 0 }, ""},
		{"negative duration", func(c *Config) { c.Duration = -time.Second }, "duration"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	cfg := Default()
	cfg.Device = " MOCK "
	_ = cfg.Validate()
	if cfg.Device != "mock" || cfg.ChannelType() != stream.ChannelMock {
		t.Errorf("device not normalized: %q", cfg.Device)
	}
}

func TestSetupReadsExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	content := "device: mock\nbuffer_frames: 512\ndevice_buffer: 20ms\nvolume: 0.5\nduration: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	used, err := Setup(v, path)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if used != path {
		t.Errorf("used = %q, want %q", used, path)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Device != "mock" || cfg.BufferFrames != 512 || cfg.Volume != 0.5 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.DeviceBuffer != 20*time.Millisecond || cfg.Duration != 2*time.Second {
		t.Errorf("durations not decoded: %v / %v", cfg.DeviceBuffer, cfg.Duration)
	}
	if cfg.ToneHz != 440 {
		t.Errorf("ToneHz = %v, want default 440", cfg.ToneHz)
	}
}

func TestSetupSearchesConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PCMFEED_CONFIG_HOME", dir)

	v := viper.New()
	used, err := Setup(v, "")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if want := filepath.Join(dir, "pcmfeed.yml"); used != want {
		t.Errorf("missing config should resolve to %q, got %q", want, used)
	}

	if err := os.WriteFile(filepath.Join(dir, "pcmfeed.yml"), []byte("tone_hz: 880\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v = viper.New()
	if _, err := Setup(v, ""); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ToneHz != 880 {
		t.Errorf("ToneHz = %v, want 880", cfg.ToneHz)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcmfeed.yaml")
	if err := os.WriteFile(path, []byte("volume: 0.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PCMFEED_VOLUME", "0.25")
	t.Setenv("PCMFEED_BUFFER_FRAMES", "1024")

	v := viper.New()
	if _, err := Setup(v, path); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Volume != 0.25 || cfg.BufferFrames != 1024 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("volume", 9.0)

	if _, err := Load(v); err == nil {
		t.Error("expected validation error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pcmfeed.yml")

	cfg := Default()
	cfg.Device = "mock"
	cfg.Duration = 1500 * time.Millisecond
	cfg.Record = "/tmp/out.wav"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	v := viper.New()
	if _, err := Setup(v, path); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	got, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestExampleParses(t *testing.T) {
	example := Example()
	if !strings.HasPrefix(example, "# pcmfeed configuration") {
		t.Error("example should start with its header")
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(example), &cfg); err != nil {
		t.Fatalf("example is not valid YAML: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("example config invalid: %v", err)
	}
	if cfg.BufferFrames != Default().BufferFrames {
		t.Errorf("BufferFrames = %d", cfg.BufferFrames)
	}
}

func TestParseEnv(t *testing.T) {
	t.Setenv("PCMFEED_DEBUG", "true")
	t.Setenv("PCMFEED_NO_TUI", "1")
	t.Setenv("PCMFEED_CONFIG_HOME", "/etc/pcmfeed")

	e, err := ParseEnv()
	if err != nil {
		t.Fatalf("ParseEnv failed: %v", err)
	}
	if !e.Debug || !e.NoTUI || e.ConfigHome != "/etc/pcmfeed" || e.MockAudio {
		t.Errorf("unexpected env %+v", e)
	}
}

func TestDirsPrefersConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("PCMFEED_CONFIG_HOME", "/custom")

	dirs, err := Dirs()
	if err != nil {
		t.Fatalf("Dirs failed: %v", err)
	}
	if len(dirs) < 2 || dirs[0] != "/custom" || dirs[1] != filepath.Join("/xdg", "pcmfeed") {
		t.Errorf("unexpected dirs %v", dirs)
	}
}

func TestCacheDir(t *testing.T) {
	t.Setenv("PCMFEED_CACHE_HOME", "/tmp/pcmfeed-cache")

	dir, err := CacheDir()
	if err != nil {
		t.Fatalf("CacheDir failed: %v", err)
	}
	if dir != "/tmp/pcmfeed-cache" {
		t.Errorf("CacheDir = %q, want override", dir)
	}

	cfg := Default()
	if cfg.CacheBytes() != 64<<20 {
		t.Errorf("CacheBytes = %d", cfg.CacheBytes())
	}
}
