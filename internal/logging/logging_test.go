package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestSetupWritesToFile(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "logs", "pcmfeed.log")
	closer, err := Setup(Options{Level: "warn", File: path})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	log.Info("hidden message")
	log.Warn("visible message", "slot", 1)

	if err := closer(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden message") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "visible message") || !strings.Contains(out, "slot=1") {
		t.Errorf("warn message missing from log: %q", out)
	}
}

func TestSetupLevels(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	tests := []struct {
		name    string
		opts    Options
		want    log.Level
		wantErr bool
	}{
		{"default", Options{}, log.InfoLevel, false},
		{"error", Options{Level: "error"}, log.ErrorLevel, false},
		{"debug overrides", Options{Level: "error", Debug: true}, log.DebugLevel, false},
		{"invalid", Options{Level: "loud"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closer, err := Setup(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Setup error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer closer()

			if got := log.GetLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}
