// Package config loads pcmfeed settings from the config file, flags and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/pcmfeed/pkg/engine"
	"github.com/dgnsrekt/pcmfeed/pkg/stream"
)

const (
	// AppName names the config file and directories
	AppName = "pcmfeed"
	// EnvPrefix prefixes environment overrides, e.g. PCMFEED_VOLUME
	EnvPrefix = "PCMFEED"

	// MaxBufferFrames bounds buffer_frames
	MaxBufferFrames = 1 << 16
)

// Config holds everything a playback run needs.
type Config struct {
	// Playback channel: auto, oto or mock
	Device string `yaml:"device" mapstructure:"device"`

	// Frames per stream buffer; latency is two of these
	BufferFrames int `yaml:"buffer_frames" mapstructure:"buffer_frames"`

	// Audio kept ahead of the speaker by the device
	DeviceBuffer time.Duration `yaml:"device_buffer" mapstructure:"device_buffer"`

	// Linear memory available for stream buffers in KiB, 0 for unbounded
	PoolKB int `yaml:"pool_kb" mapstructure:"pool_kb"`

	// Master gain
	Volume float64 `yaml:"volume" mapstructure:"volume"`

	// Tone played when no source file is given
	ToneHz float64 `yaml:"tone_hz" mapstructure:"tone_hz"`

	// Restart file sources at the end
	Loop bool `yaml:"loop" mapstructure:"loop"`

	// Stop after this long, 0 to play until the source ends
	Duration time.Duration `yaml:"duration" mapstructure:"duration"`

	// Disk cache for decoded MP3 and FLAC files in MiB, 0 to disable
	CacheMB int `yaml:"cache_mb" mapstructure:"cache_mb"`

	// Record everything submitted to the device (.wav, .zst or raw)
	Record string `yaml:"record" mapstructure:"record"`

	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	LogFile  string `yaml:"log_file" mapstructure:"log_file"`
}

// Env holds process-level knobs read only from the environment, all
// prefixed with PCMFEED_.
type Env struct {
	ConfigHome string `env:"CONFIG_HOME"`
	CacheHome  string `env:"CACHE_HOME"`
	MockAudio  bool   `env:"MOCK_AUDIO"`
	Debug      bool   `env:"DEBUG"`
	NoTUI      bool   `env:"NO_TUI"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device:       "auto",
		BufferFrames: 2048,
		DeviceBuffer: 50 * time.Millisecond,
		PoolKB:       0,
		Volume:       1.0,
		ToneHz:       440,
		Loop:         false,
		Duration:     0,
		CacheMB:      64,
		LogLevel:     "info",
	}
}

// Validate checks ranges and normalizes names.
func (c *Config) Validate() error {
	if _, err := stream.ParseChannelType(c.Device); err != nil {
		return fmt.Errorf("invalid device: %w", err)
	}
	c.Device = strings.ToLower(strings.TrimSpace(c.Device))

	if c.BufferFrames < 1 || c.BufferFrames > MaxBufferFrames {
		return fmt.Errorf("buffer_frames must be between 1 and %d, got %d", MaxBufferFrames, c.BufferFrames)
	}
	if c.DeviceBuffer < 0 {
		return fmt.Errorf("device_buffer cannot be negative, got %v", c.DeviceBuffer)
	}
	if c.PoolKB < 0 {
		return fmt.Errorf("pool_kb cannot be negative, got %d", c.PoolKB)
	}
	if c.Volume < 0 || c.Volume > engine.MaxVolume {
		return fmt.Errorf("volume must be between 0.0 and %.1f, got %f", engine.MaxVolume, c.Volume)
	}
	if c.ToneHz < 0 || c.ToneHz >= stream.SampleRate/2 {
		return fmt.Errorf("tone_hz must be between 0 and %d, got %f", stream.SampleRate/2, c.ToneHz)
	}
	if c.CacheMB < 0 {
		return fmt.Errorf("cache_mb cannot be negative, got %d", c.CacheMB)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration cannot be negative, got %v", c.Duration)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return nil
}

// ChannelType returns the parsed device setting.
func (c Config) ChannelType() stream.ChannelType {
	t, _ := stream.ParseChannelType(c.Device)
	return t
}

// PoolBytes returns the linear pool capacity in bytes.
func (c Config) PoolBytes() uint64 {
	return uint64(c.PoolKB) * 1024
}

// ParseEnv reads the PCMFEED_ process knobs.
func ParseEnv() (Env, error) {
	return env.ParseAsWithOptions[Env](env.Options{Prefix: EnvPrefix + "_"})
}

// SetDefaults registers every key with v so file, env and flag values
// all unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("device", d.Device)
	v.SetDefault("buffer_frames", d.BufferFrames)
	v.SetDefault("device_buffer", d.DeviceBuffer)
	v.SetDefault("pool_kb", d.PoolKB)
	v.SetDefault("volume", d.Volume)
	v.SetDefault("tone_hz", d.ToneHz)
	v.SetDefault("loop", d.Loop)
	v.SetDefault("duration", d.Duration)
	v.SetDefault("cache_mb", d.CacheMB)
	v.SetDefault("record", d.Record)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
}

// CacheBytes returns the decode cache capacity in bytes.
func (c Config) CacheBytes() int64 {
	return int64(c.CacheMB) << 20
}

// CacheDir returns where decoded sources are cached.
func CacheDir() (string, error) {
	if e, err := ParseEnv(); err == nil && e.CacheHome != "" {
		return e.CacheHome, nil
	}
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil {
		return "", fmt.Errorf("could not find cache directory: %w", err)
	}
	return dir, nil
}

// Dirs returns the directories searched for the config file, most
// specific first.
func Dirs() ([]string, error) {
	scope := gap.NewScope(gap.User, AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		return nil, fmt.Errorf("could not find configuration directory: %w", err)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if e, err := ParseEnv(); err == nil && e.ConfigHome != "" {
		dirs = append([]string{e.ConfigHome}, dirs...)
	}
	return dirs, nil
}

// Setup points v at the config file and the environment. With an explicit
// file that file is read; otherwise the default directories are searched.
// It returns the file in use, or the path a new one should be created at.
func Setup(v *viper.Viper, file string) (string, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return file, fmt.Errorf("could not read configuration file: %w", err)
		}
		log.Debug("Using configuration file", "path", file)
		return file, nil
	}

	dirs, err := Dirs()
	if err != nil {
		return "", err
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	v.SetConfigName(AppName)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return used, nil
	}
	return filepath.Join(dirs[0], AppName+".yml"), nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info("Saved configuration", "path", path)
	return nil
}

// Example returns a commented config file holding the defaults.
func Example() string {
	cfg := Default()
	cfg.Record = "~/pcmfeed-capture.wav"

	data, _ := yaml.Marshal(cfg)

	header := `# pcmfeed configuration
#
# Searched in:
#   - $PCMFEED_CONFIG_HOME
#   - $XDG_CONFIG_HOME/pcmfeed
#   - the user config directory (e.g. ~/.config/pcmfeed)
#
# Every key can be overridden with PCMFEED_<KEY>, e.g. PCMFEED_VOLUME=0.5.
# device: auto, oto or mock. Remove record to play without capturing.

`
	return header + string(data)
}

// Watch reloads the configuration whenever the file changes and passes
// each valid result to fn. Invalid edits are logged and skipped.
func Watch(v *viper.Viper, fn func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Debug("Configuration changed", "file", e.Name, "event", e.Op)

		cfg, err := Load(v)
		if err != nil {
			log.Warn("Ignoring invalid configuration", "file", e.Name, "error", err)
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
}
