// Package ui renders a live status view of a playing stream.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/pcmfeed/pkg/engine"
	"github.com/dgnsrekt/pcmfeed/pkg/stream"
)

// Controls is the part of the engine the status view drives.
type Controls interface {
	Stats() engine.Stats
	SetVolume(v float64)
	Volume() float64
}

// Config describes what is playing.
type Config struct {
	Source   string
	Device   string
	Duration time.Duration // 0 when playback has no fixed end
	Interval time.Duration
}

// DoneMsg tells the view playback ended.
type DoneMsg struct {
	Err error
}

type tickMsg time.Time

const volumeStep = 0.1

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00AAFF"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8800"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
	filledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
)

// Model is the bubbletea model of the status view.
type Model struct {
	controls Controls
	cfg      Config
	spinner  spinner.Model
	stats    engine.Stats
	started  time.Time
	elapsed  time.Duration
	width    int
	done     bool
	err      error
}

// New creates the status view.
func New(controls Controls, cfg Config) Model {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = okStyle

	return Model{
		controls: controls,
		cfg:      cfg,
		spinner:  sp,
		started:  time.Now(),
		width:    60,
	}
}

// NewProgram wraps m in a bubbletea program.
func NewProgram(m Model, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, opts...)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.cfg.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.done = true
			return m, tea.Quit
		case "+", "=", "up":
			m.controls.SetVolume(m.controls.Volume() + volumeStep)
			m.stats = m.controls.Stats()
		case "-", "_", "down":
			m.controls.SetVolume(m.controls.Volume() - volumeStep)
			m.stats = m.controls.Stats()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.stats = m.controls.Stats()
		m.elapsed = time.Time(msg).Sub(m.started)
		if m.done {
			return m, nil
		}
		return m, m.tick()

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.stats = m.controls.Stats()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	st := m.stats.Stream
	state := okStyle.Render("playing")
	if m.err != nil {
		state = errorStyle.Render("error")
	} else if m.done {
		state = labelStyle.Render("stopped")
	} else if st.StaleNotifications > 0 || st.SubmitErrors > 0 {
		state = warnStyle.Render("playing")
	}

	fmt.Fprintf(&b, "%s %s %s\n\n", m.spinner.View(), titleStyle.Render("pcmfeed"), state)

	m.line(&b, "Source", m.cfg.Source)
	m.line(&b, "Device", m.cfg.Device)
	if st.FrameCount > 0 {
		latency := time.Duration(st.FrameCount) * time.Second / stream.SampleRate
		m.line(&b, "Buffers", fmt.Sprintf("2 x %s frames (%s, %v each)",
			humanize.Comma(int64(st.FrameCount)),
			humanize.IBytes(uint64(st.FrameCount*stream.BytesPerFrame)),
			latency))
	}
	m.line(&b, "Slot", fmt.Sprintf("%d   refills %s   stale %d   submit errors %d",
		st.ActiveSlot, humanize.Comma(int64(st.Refills)), st.StaleNotifications, st.SubmitErrors))
	m.line(&b, "Mix", fmt.Sprintf("%d voices   volume %.1f   clipped %s",
		m.stats.Voices, m.stats.Volume, humanize.Comma(int64(m.stats.ClippedSamples))))
	m.line(&b, "Time", formatDuration(m.elapsed)+m.totalSuffix())

	if m.cfg.Duration > 0 {
		b.WriteString("\n" + m.progressBar(m.width-4) + "\n")
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("q quit • +/- volume") + "\n")
	return b.String()
}

func (m Model) line(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-8s", label)), value)
}

func (m Model) totalSuffix() string {
	if m.cfg.Duration <= 0 {
		return ""
	}
	return " / " + formatDuration(m.cfg.Duration)
}

// progressBar renders elapsed time against the configured duration.
func (m Model) progressBar(width int) string {
	if width < 10 || m.cfg.Duration <= 0 {
		return ""
	}

	progress := float64(m.elapsed) / float64(m.cfg.Duration)
	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return filledStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("░", width-filled))
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
