//go:build !nocgo
// +build !nocgo

package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

var (
	// oto allows a single context per process
	sharedOtoContext *oto.Context
	otoContextOnce   sync.Once
	otoContextErr    error
)

// otoContext creates the process-wide oto context on first use.
func otoContext(bufferSize time.Duration) (*oto.Context, error) {
	otoContextOnce.Do(func() {
		options := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   bufferSize,
		}

		log.Debug("Initializing oto context",
			"sample_rate", options.SampleRate,
			"channels", options.ChannelCount,
			"buffer_size", options.BufferSize)

		ctx, readyChan, err := oto.NewContext(options)
		if err != nil {
			otoContextErr = fmt.Errorf("failed to create audio context: %w", err)
			return
		}

		select {
		case <-readyChan:
			sharedOtoContext = ctx
		case <-time.After(5 * time.Second):
			otoContextErr = fmt.Errorf("audio context initialization timeout")
		}
	})

	return sharedOtoContext, otoContextErr
}

// OtoChannel implements Channel on the system audio device through oto.
// The oto player pulls bytes from the submitted buffers; finished slots are
// delivered to the completion callback from a dedicated goroutine.
type OtoChannel struct {
	mu         sync.Mutex
	bufferSize time.Duration
	player     *oto.Player
	queue      *pcmQueue
	enabled    bool
	playing    bool

	cbMu     sync.RWMutex
	callback CompletionFunc

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewOtoChannel creates an oto-backed channel. bufferSize is the device
// buffer oto keeps ahead of the speaker.
func NewOtoChannel(bufferSize time.Duration) *OtoChannel {
	return &OtoChannel{bufferSize: bufferSize}
}

// Configure opens the device and creates the player. Playback starts once
// the first SlotCount buffers are submitted.
func (c *OtoChannel) Configure(f Format) error {
	if f != OutputFormat() {
		return fmt.Errorf("%w: %d Hz, %d channels, %d bit", ErrUnsupportedFormat, f.SampleRate, f.Channels, f.BitDepth)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.enabled {
		return nil
	}

	ctx, err := otoContext(c.bufferSize)
	if err != nil {
		return err
	}
	if err := ctx.Resume(); err != nil {
		return fmt.Errorf("failed to resume audio context: %w", err)
	}

	c.queue = newPCMQueue()
	c.player = ctx.NewPlayer(c.queue)
	c.stop = make(chan struct{})

	c.wg.Add(1)
	go c.deliverCompletions(c.queue, c.stop)

	c.playing = false
	c.enabled = true

	log.Debug("Oto channel configured", "buffer_size", c.bufferSize)
	return nil
}

// deliverCompletions runs the completion callback for every slot the
// player drained, in order.
func (c *OtoChannel) deliverCompletions(q *pcmQueue, stop <-chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case <-stop:
			return
		case slot := <-q.done:
			c.cbMu.RLock()
			if c.callback != nil {
				c.callback(slot)
			}
			c.cbMu.RUnlock()
		}
	}
}

// Submit queues b behind the buffer currently playing. The submit that
// fills the queue for the first time sizes the player to one buffer and
// starts it.
func (c *OtoChannel) Submit(b *WaveBuf) error {
	c.mu.Lock()
	q := c.queue
	enabled := c.enabled
	c.mu.Unlock()

	if !enabled || q == nil {
		return ErrChannelDisabled
	}
	if err := q.push(b); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled && !c.playing && c.player != nil && q.depth() >= SlotCount {
		c.player.SetBufferSize(playerBufferBytes(b.Frames))
		c.player.Play()
		c.playing = true
		log.Debug("Oto player started", "player_buffer", playerBufferBytes(b.Frames))
	}
	return nil
}

// SetCallback installs the completion handler.
func (c *OtoChannel) SetCallback(fn CompletionFunc) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callback = fn
}

// ClearQueue drops queued buffers; the player continues with silence.
func (c *OtoChannel) ClearQueue() {
	c.mu.Lock()
	q := c.queue
	c.mu.Unlock()

	if q != nil {
		q.clear()
	}
}

// Disable stops the delivery goroutine and closes the player.
func (c *OtoChannel) Disable() error {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return nil
	}
	c.enabled = false
	c.playing = false
	close(c.stop)
	player := c.player
	q := c.queue
	c.player = nil
	c.queue = nil
	c.mu.Unlock()

	c.wg.Wait()

	c.cbMu.Lock()
	c.callback = nil
	c.cbMu.Unlock()

	q.close()

	var err error
	if player != nil {
		player.Pause()
		err = player.Close()
	}

	log.Debug("Oto channel disabled", "underruns", q.underruns.Load())
	return err
}

// Underruns returns how often the player found the queue empty.
func (c *OtoChannel) Underruns() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue == nil {
		return 0
	}
	return c.queue.underruns.Load()
}

// probeDevice reports whether the audio device can be opened.
func probeDevice(bufferSize time.Duration) error {
	_, err := otoContext(bufferSize)
	return err
}
