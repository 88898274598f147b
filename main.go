// Package main provides the entry point for the pcmfeed CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/pcmfeed/internal/cache"
	"github.com/dgnsrekt/pcmfeed/internal/config"
	"github.com/dgnsrekt/pcmfeed/internal/lifecycle"
	"github.com/dgnsrekt/pcmfeed/internal/logging"
	"github.com/dgnsrekt/pcmfeed/internal/ui"
	"github.com/dgnsrekt/pcmfeed/pkg/engine"
	"github.com/dgnsrekt/pcmfeed/pkg/source"
	"github.com/dgnsrekt/pcmfeed/pkg/stream"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	closeLog   = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "pcmfeed [SOURCE]",
		Short: "Stream audio through a double-buffered output",
		Long: paragraph(
			fmt.Sprintf("\nStream a tone or an audio file to the speaker through %s. SOURCE is a WAV, MP3 or FLAC file at 44100 Hz, %s or %s; without it a tone plays.",
				keyword("two alternating 16-bit stereo buffers"), keyword("tone"), keyword("silence")),
		),
		Example:          paragraph("pcmfeed\npcmfeed --tone-hz 880 --duration 3s\npcmfeed song.flac --loop --tui\npcmfeed song.wav --device mock --record out.wav"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"wav", "mp3", "flac"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setup()
		},
		RunE: execute,
	}
)

// setup reads the config file and installs the logger.
func setup() error {
	used, err := config.Setup(viper.GetViper(), configFile)
	if err != nil {
		return err
	}
	configFile = used

	closer, err := setupLog()
	if err != nil {
		return err
	}
	closeLog = closer
	return nil
}

func setupLog() (func() error, error) {
	envCfg, err := config.ParseEnv()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	return logging.Setup(logging.Options{
		Level: viper.GetString("log_level"),
		File:  viper.GetString("log_file"),
		Debug: envCfg.Debug,
	})
}

func execute(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	envCfg, err := config.ParseEnv()
	if err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}
	if envCfg.MockAudio {
		cfg.Device = stream.ChannelMock.String()
	}

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	dc := openCache(cfg)
	if dc != nil {
		defer dc.Close()
	}
	src, label, err := openSource(arg, cfg, dc)
	if err != nil {
		return err
	}

	ch, err := newChannel(cfg)
	if err != nil {
		return err
	}

	eng := engine.New()
	eng.SetVolume(cfg.Volume)

	opts := stream.DefaultOptions(cfg.BufferFrames)
	if err := eng.Init(ch, stream.NewLinearPool(cfg.PoolBytes()), opts); err != nil {
		return fmt.Errorf("%w (status %s)", err, stream.StatusOf(err))
	}

	lm := lifecycle.NewManager(5 * time.Second)
	lm.Register(lifecycle.NewEngineComponent(eng))
	lm.Start()

	eng.Play(src)
	log.Info("Playing", "source", label, "device", cfg.Device, "volume", cfg.Volume)

	if used := viper.ConfigFileUsed(); used != "" {
		config.Watch(viper.GetViper(), func(c config.Config) {
			eng.SetVolume(c.Volume)
			log.Info("Volume updated from configuration", "volume", c.Volume)
		})
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	if useTUI(envCfg) {
		err = runTUI(ctx, eng, lm, ui.Config{
			Source:   label,
			Device:   cfg.Device,
			Duration: cfg.Duration,
		})
	} else {
		waitForPlayback(ctx, eng, lm.Stopping())
	}

	st := eng.Stats()
	if serr := lm.Shutdown(); serr != nil && err == nil {
		err = serr
	}
	log.Info("Playback finished",
		"refills", st.Stream.Refills,
		"stale", st.Stream.StaleNotifications,
		"submit_errors", st.Stream.SubmitErrors,
		"frames", humanize.Comma(int64(st.FramesMixed)))
	return err
}

// openSource resolves the SOURCE argument.
func openSource(arg string, cfg config.Config, dc *cache.DiskCache) (source.Source, string, error) {
	switch strings.ToLower(arg) {
	case "", "tone":
		return source.NewTone(cfg.ToneHz, 0.5, 0), fmt.Sprintf("tone %g Hz", cfg.ToneHz), nil
	case "silence":
		return source.NewSilence(0), "silence", nil
	}

	b, err := openDecoded(arg, dc)
	if err != nil {
		return nil, "", fmt.Errorf("unable to open source: %w", err)
	}
	b.Loop = cfg.Loop

	label := fmt.Sprintf("%s (%v)", filepath.Base(arg), b.Duration().Round(time.Millisecond))
	return b, label, nil
}

// openDecoded opens a file source, going through dc for formats that are
// costly to decode. dc may be nil.
func openDecoded(path string, dc *cache.DiskCache) (*source.Buffer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if dc == nil || (ext != ".mp3" && ext != ".flac") {
		return source.Open(path)
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	key, err := cache.Key(expanded)
	if err != nil {
		return source.Open(path)
	}
	if samples, ok := dc.Get(key); ok {
		log.Debug("Using cached decode", "path", expanded)
		return source.NewBuffer(samples), nil
	}

	b, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	if err := dc.Put(key, b.Samples()); err != nil {
		log.Warn("Could not cache decoded source", "path", expanded, "err", err)
	}
	return b, nil
}

// openCache opens the decode cache, or returns nil when it is disabled or
// unusable.
func openCache(cfg config.Config) *cache.DiskCache {
	if cfg.CacheMB == 0 {
		return nil
	}
	dir, err := config.CacheDir()
	if err != nil {
		log.Warn("Decode cache disabled", "err", err)
		return nil
	}
	dc, err := cache.NewDiskCache(dir, cfg.CacheBytes())
	if err != nil {
		log.Warn("Decode cache disabled", "err", err)
		return nil
	}
	return dc
}

// newChannel creates the playback channel, wrapped in a recorder when
// requested.
func newChannel(cfg config.Config) (stream.Channel, error) {
	ch, err := stream.NewChannel(cfg.ChannelType(), stream.ChannelOptions{
		DeviceBuffer: cfg.DeviceBuffer,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Record == "" {
		return ch, nil
	}

	path, err := homedir.Expand(cfg.Record)
	if err != nil {
		return nil, fmt.Errorf("invalid record path: %w", err)
	}
	tap, err := stream.NewTapChannel(ch, path)
	if err != nil {
		return nil, err
	}
	return tap, nil
}

// waitForPlayback blocks until ctx ends, shutdown begins or every voice
// finished.
func waitForPlayback(ctx context.Context, eng *engine.Engine, stopping <-chan struct{}) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopping:
			return
		case <-ticker.C:
			if eng.Idle() {
				return
			}
		}
	}
}

func useTUI(envCfg config.Env) bool {
	if !viper.GetBool("tui") || envCfg.NoTUI {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func runTUI(ctx context.Context, eng *engine.Engine, lm *lifecycle.Manager, cfg ui.Config) error {
	p := ui.NewProgram(ui.New(eng, cfg))

	go func() {
		waitForPlayback(ctx, eng, lm.Stopping())
		p.Send(ui.DoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_ = closeLog()
		os.Exit(1)
	}
	_ = closeLog()
}

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	d := config.Default()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/pcmfeed/pcmfeed.yml)")
	rootCmd.PersistentFlags().String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-file", "", "write the log to a file instead of stderr")

	rootCmd.Flags().StringP("device", "d", d.Device, "playback device: auto, oto or mock")
	rootCmd.Flags().IntP("buffer-frames", "b", d.BufferFrames, "frames per stream buffer")
	rootCmd.Flags().Duration("device-buffer", d.DeviceBuffer, "audio the device keeps ahead of the speaker")
	rootCmd.Flags().Int("pool-kb", d.PoolKB, "linear memory for stream buffers in KiB (0 for unbounded)")
	rootCmd.Flags().Float64("volume", d.Volume, "master volume (0.0 to 4.0)")
	rootCmd.Flags().Float64("tone-hz", d.ToneHz, "tone frequency when no source is given")
	rootCmd.Flags().BoolP("loop", "l", d.Loop, "loop file sources")
	rootCmd.Flags().Duration("duration", d.Duration, "stop after this long (0 plays until the source ends)")
	rootCmd.Flags().Int("cache-mb", d.CacheMB, "disk cache for decoded MP3 and FLAC files in MiB (0 disables)")
	rootCmd.Flags().StringP("record", "r", "", "record submitted buffers to a .wav, .zst or raw file")
	rootCmd.Flags().BoolP("tui", "t", false, "show a live status view")

	// Config bindings
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("device", rootCmd.Flags().Lookup("device"))
	_ = viper.BindPFlag("buffer_frames", rootCmd.Flags().Lookup("buffer-frames"))
	_ = viper.BindPFlag("device_buffer", rootCmd.Flags().Lookup("device-buffer"))
	_ = viper.BindPFlag("pool_kb", rootCmd.Flags().Lookup("pool-kb"))
	_ = viper.BindPFlag("volume", rootCmd.Flags().Lookup("volume"))
	_ = viper.BindPFlag("tone_hz", rootCmd.Flags().Lookup("tone-hz"))
	_ = viper.BindPFlag("loop", rootCmd.Flags().Lookup("loop"))
	_ = viper.BindPFlag("duration", rootCmd.Flags().Lookup("duration"))
	_ = viper.BindPFlag("cache_mb", rootCmd.Flags().Lookup("cache-mb"))
	_ = viper.BindPFlag("record", rootCmd.Flags().Lookup("record"))
	_ = viper.BindPFlag("tui", rootCmd.Flags().Lookup("tui"))

	rootCmd.AddCommand(configCmd, manCmd)
}
