package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/pcmfeed/pkg/engine"
	"github.com/dgnsrekt/pcmfeed/pkg/stream"
)

type fakeControls struct {
	volume float64
	stats  engine.Stats
}

func (f *fakeControls) Stats() engine.Stats {
	s := f.stats
	s.Volume = f.volume
	return s
}

func (f *fakeControls) SetVolume(v float64) {
	f.volume = v
}

func (f *fakeControls) Volume() float64 {
	return f.volume
}

func newTestModel() (Model, *fakeControls) {
	fc := &fakeControls{
		volume: 1,
		stats: engine.Stats{
			Voices: 1,
			Stream: stream.Stats{FrameCount: 2048, Refills: 1234, ActiveSlot: 1},
		},
	}
	return New(fc, Config{Source: "tone 440 Hz", Device: "mock", Duration: 10 * time.Second}), fc
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTickRefreshesStats(t *testing.T) {
	m, _ := newTestModel()

	next, cmd := m.Update(tickMsg(m.started.Add(5 * time.Second)))
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	view := next.View()

	for _, want := range []string{"tone 440 Hz", "mock", "1,234", "2,048", "0:05 / 0:10", "46.4"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestQuitKeys(t *testing.T) {
	tests := []tea.KeyMsg{
		keyMsg("q"),
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	}

	for _, key := range tests {
		t.Run(key.String(), func(t *testing.T) {
			m, _ := newTestModel()
			next, cmd := m.Update(key)
			if cmd == nil {
				t.Fatal("expected quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("expected tea.QuitMsg")
			}
			if !next.(Model).done {
				t.Error("model should be done")
			}
		})
	}
}

func TestVolumeKeys(t *testing.T) {
	m, fc := newTestModel()

	next, _ := m.Update(keyMsg("+"))
	next, _ = next.Update(keyMsg("+"))
	if fc.volume < 1.19 || fc.volume > 1.21 {
		t.Errorf("volume = %v, want 1.2", fc.volume)
	}

	next, _ = next.Update(keyMsg("-"))
	if fc.volume < 1.09 || fc.volume > 1.11 {
		t.Errorf("volume = %v, want 1.1", fc.volume)
	}
	if !strings.Contains(next.View(), "volume 1.1") {
		t.Errorf("view should show the new volume:\n%s", next.View())
	}
}

func TestDoneMessage(t *testing.T) {
	m, _ := newTestModel()

	next, cmd := m.Update(DoneMsg{Err: errors.New("device lost")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	view := next.View()
	if !strings.Contains(view, "device lost") || !strings.Contains(view, "error") {
		t.Errorf("view should report the error:\n%s", view)
	}

	// ticks after the end do not reschedule
	if _, cmd := next.Update(tickMsg(time.Now())); cmd != nil {
		t.Error("no tick expected after DoneMsg")
	}
}

func TestProgressBar(t *testing.T) {
	m, _ := newTestModel()
	m.elapsed = 5 * time.Second

	bar := m.progressBar(20)
	if got := strings.Count(bar, "█"); got != 10 {
		t.Errorf("filled = %d, want 10", got)
	}
	if got := strings.Count(bar, "░"); got != 10 {
		t.Errorf("empty = %d, want 10", got)
	}

	m.elapsed = time.Minute
	if got := strings.Count(m.progressBar(20), "█"); got != 20 {
		t.Errorf("overrun filled = %d, want 20", got)
	}
	if m.progressBar(5) != "" {
		t.Error("narrow bar should be empty")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		-time.Second:     "0:00",
		0:                "0:00",
		65 * time.Second: "1:05",
		10 * time.Minute: "10:00",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}
