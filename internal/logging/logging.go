// Package logging configures the process-wide charmbracelet logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
)

// Options select where log output goes and how much of it.
type Options struct {
	Level string
	// File receives the log instead of stderr when set
	File string
	// Debug forces the debug level regardless of Level
	Debug bool
}

// Setup installs the default logger and returns a closer for the log file.
func Setup(opts Options) (func() error, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		l, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}
	if opts.Debug {
		level = log.DebugLevel
	}

	var (
		w      io.Writer = os.Stderr
		closer           = func() error { return nil }
	)

	if opts.File != "" {
		path, err := homedir.Expand(opts.File)
		if err != nil {
			return nil, fmt.Errorf("invalid log file %q: %w", opts.File, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closer = f.Close
	}

	log.SetDefault(New(w, level))
	log.Debug("Logging initialized", "level", level, "file", opts.File)
	return closer, nil
}

// New creates a logger writing timestamped entries to w.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
}
