package stream

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Submission records one buffer handed to a MockChannel.
type Submission struct {
	Slot int
	Data []int16 // copy of the buffer contents at submit time
}

// MockChannel implements Channel without audio hardware. Completions are
// driven explicitly with Complete, or in real time by Start.
type MockChannel struct {
	mu      sync.Mutex
	format  Format
	enabled bool
	queue   []*WaveBuf

	// cbMu is held for reading while a callback runs so Disable can wait
	// for it.
	cbMu     sync.RWMutex
	callback CompletionFunc

	// Error injection, set before use
	ConfigureErr error
	submitErr    error

	// Record keeps a copy of every submission
	Record bool

	// Autoplay starts real-time completions on Configure
	Autoplay bool

	submissions    []Submission
	configureCount int
	clearCount     int
	disableCount   int
	completed      int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMockChannel creates a mock channel that records submissions.
func NewMockChannel() *MockChannel {
	log.Debug("Creating mock playback channel")
	return &MockChannel{Record: true}
}

// Configure enables the channel for f.
func (m *MockChannel) Configure(f Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configureCount++
	if m.ConfigureErr != nil {
		return m.ConfigureErr
	}

	m.format = f
	m.enabled = true

	if m.Autoplay && m.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.wg.Add(1)
		go m.simulatePlayback(ctx)
	}
	return nil
}

// Submit queues b. The first buffer of an idle queue starts playing.
func (m *MockChannel) Submit(b *WaveBuf) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return ErrChannelDisabled
	}
	if m.submitErr != nil {
		return m.submitErr
	}
	if len(m.queue) >= SlotCount {
		return ErrQueueFull
	}

	if len(m.queue) == 0 {
		b.SetStatus(StatusPlaying)
	} else {
		b.SetStatus(StatusQueued)
	}
	m.queue = append(m.queue, b)

	if m.Record {
		data := make([]int16, len(b.Data))
		copy(data, b.Data)
		m.submissions = append(m.submissions, Submission{Slot: b.Slot, Data: data})
	}
	return nil
}

// SetCallback installs the completion handler.
func (m *MockChannel) SetCallback(fn CompletionFunc) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callback = fn
}

// ClearQueue drops every queued buffer.
func (m *MockChannel) ClearQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.queue {
		b.SetStatus(StatusFree)
	}
	m.queue = nil
	m.clearCount++
}

// Disable stops autoplay, waits for a running callback and removes it.
func (m *MockChannel) Disable() error {
	m.Stop()

	m.cbMu.Lock()
	m.callback = nil
	m.cbMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.queue {
		b.SetStatus(StatusFree)
	}
	m.queue = nil
	m.enabled = false
	m.disableCount++
	return nil
}

// Complete finishes the buffer at the head of the queue, marks it done and
// delivers its notification. It returns the finished slot, or -1 when
// nothing was playing.
func (m *MockChannel) Complete() int {
	m.mu.Lock()
	if !m.enabled || len(m.queue) == 0 {
		m.mu.Unlock()
		return -1
	}

	b := m.queue[0]
	copy(m.queue, m.queue[1:])
	m.queue = m.queue[:len(m.queue)-1]
	b.SetStatus(StatusDone)
	if len(m.queue) > 0 {
		m.queue[0].SetStatus(StatusPlaying)
	}
	m.completed++
	m.mu.Unlock()

	m.deliver(b.Slot)
	return b.Slot
}

// Notify delivers a notification for slot without changing any buffer.
func (m *MockChannel) Notify(slot int) {
	m.deliver(slot)
}

func (m *MockChannel) deliver(slot int) {
	m.cbMu.RLock()
	defer m.cbMu.RUnlock()

	if m.callback != nil {
		m.callback(slot)
	}
}

// Start completes buffers in real time, one buffer duration apart, until
// ctx is done or the channel is disabled. It does nothing before Configure.
func (m *MockChannel) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil || !m.enabled {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.simulatePlayback(ctx)
}

// Stop halts autoplay started by Start.
func (m *MockChannel) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		m.wg.Wait()
	}
}

func (m *MockChannel) simulatePlayback(ctx context.Context) {
	defer m.wg.Done()

	timer := time.NewTimer(m.headDuration())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.Complete()
			timer.Reset(m.headDuration())
		}
	}
}

// headDuration returns the play time of the buffer at the head of the
// queue, or a short poll interval when idle.
func (m *MockChannel) headDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 || m.queue[0].Frames == 0 {
		return 10 * time.Millisecond
	}
	return time.Duration(m.queue[0].Frames) * time.Second / SampleRate
}

// SetSubmitError makes every following Submit fail with err.
func (m *MockChannel) SetSubmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}

// Submissions returns a copy of the recorded submissions.
func (m *MockChannel) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Submission, len(m.submissions))
	copy(out, m.submissions)
	return out
}

// SubmittedSlots returns the slot of every recorded submission in order.
func (m *MockChannel) SubmittedSlots() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots := make([]int, len(m.submissions))
	for i, s := range m.submissions {
		slots[i] = s.Slot
	}
	return slots
}

// QueuedSlots returns the slots currently queued, head first.
func (m *MockChannel) QueuedSlots() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots := make([]int, len(m.queue))
	for i, b := range m.queue {
		slots[i] = b.Slot
	}
	return slots
}

// IsEnabled reports whether the channel is configured and not disabled.
func (m *MockChannel) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Format returns the last configured format.
func (m *MockChannel) Format() Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.format
}

// HasCallback reports whether a completion handler is installed.
func (m *MockChannel) HasCallback() bool {
	m.cbMu.RLock()
	defer m.cbMu.RUnlock()
	return m.callback != nil
}

// Counts returns how often Configure, ClearQueue and Disable ran.
func (m *MockChannel) Counts() (configured, cleared, disabled int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configureCount, m.clearCount, m.disableCount
}

// Completed returns the number of buffers finished so far.
func (m *MockChannel) Completed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}
