package stream

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Stream is the state of one active output: two sample buffers, the slot
// to refill next, and the collaborators that feed and drain them.
//
// The completion path takes no locks. A slot is only touched after the
// channel reported it done, and the active slot is written by the
// completion handler alone.
type Stream struct {
	id      string
	host    Host
	channel Channel
	mem     Memory
	bufs    [SlotCount]*WaveBuf
	frames  int
	flags   int

	active atomic.Int32
	closed atomic.Bool

	refills      atomic.Uint64
	stale        atomic.Uint64
	submitErrors atomic.Uint64
	mixerPanics  atomic.Uint64

	// throttles logging from the completion path
	warnLimiter *rate.Limiter
}

// Stats is a snapshot of a stream's counters.
type Stats struct {
	ID                 string
	ActiveSlot         int
	FrameCount         int
	Refills            uint64
	StaleNotifications uint64
	SubmitErrors       uint64
	MixerPanics        uint64
	Closed             bool
}

// Initialize configures ch for 16-bit stereo at 44100 Hz, allocates and
// zeroes two buffers of opts.BufferFrames frames from mem, attaches the
// stream to host and queues both buffers so playback starts immediately.
//
// On failure nothing stays configured: a rejected format touches nothing,
// a failed Configure allocates nothing, and a failed allocation disables
// the channel again before returning.
func Initialize(host Host, ch Channel, mem Memory, opts Options) (*Stream, error) {
	if opts.SampleRate != SampleRate || opts.Channels != Channels {
		return nil, newStreamError("initialize", ErrUnsupportedFormat).
			WithContext("sample_rate", opts.SampleRate).
			WithContext("channels", opts.Channels)
	}
	if opts.BufferFrames <= 0 {
		return nil, newStreamError("initialize",
			fmt.Errorf("%w: buffer frames must be positive", ErrUnsupportedFormat)).
			WithContext("buffer_frames", opts.BufferFrames)
	}
	if host == nil || ch == nil || mem == nil {
		return nil, newStreamError("initialize",
			fmt.Errorf("%w: missing host, channel or memory", ErrDeviceInitFailed))
	}

	if err := ch.Configure(OutputFormat()); err != nil {
		return nil, newStreamError("configure", fmt.Errorf("%w: %w", ErrDeviceInitFailed, err))
	}

	s := &Stream{
		id:          uuid.NewString(),
		host:        host,
		channel:     ch,
		mem:         mem,
		frames:      opts.BufferFrames,
		flags:       opts.Flags,
		warnLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}

	for i := range s.bufs {
		data, err := mem.Alloc(opts.BufferFrames * Channels)
		if err != nil {
			s.freeBuffers()
			if derr := ch.Disable(); derr != nil {
				log.Warn("Failed to disable channel after allocation failure", "error", derr)
			}
			return nil, newStreamError("alloc", fmt.Errorf("%w: %w", ErrAllocationFailed, err)).
				WithContext("slot", i)
		}
		clear(data)
		s.bufs[i] = &WaveBuf{
			Data:   data,
			Frames: opts.BufferFrames,
			Slot:   i,
		}
	}

	host.Attach(s)
	host.PostInit(Geometry{
		SampleRate:    SampleRate,
		BufferSamples: s.frames * Channels,
		Flags:         s.flags,
		Channels:      Channels,
	})

	ch.SetCallback(s.OnBufferComplete)

	for _, b := range s.bufs {
		if err := ch.Submit(b); err != nil {
			s.closed.Store(true)
			s.teardown()
			return nil, newStreamError("submit", fmt.Errorf("%w: %w", ErrDeviceInitFailed, err)).
				WithContext("slot", b.Slot)
		}
	}

	log.Info("Output stream initialized",
		"id", s.id,
		"frames", s.frames,
		"buffer_size", humanize.IBytes(uint64(s.frames*BytesPerFrame)),
		"latency", s.BufferDuration())

	return s, nil
}

// OnBufferComplete is the channel's completion handler. When slot is the
// active slot and the channel marked it done, the host mixes fresh frames
// into it, it is queued behind the other buffer and the active slot flips.
// Anything else is a stale notification and changes nothing.
func (s *Stream) OnBufferComplete(slot int) {
	if s == nil || s.closed.Load() {
		return
	}
	if slot < 0 || slot >= SlotCount {
		s.noteStale(slot, StatusFree)
		return
	}

	active := int(s.active.Load())
	buf := s.bufs[slot]
	if slot != active || buf.Status() != StatusDone {
		s.noteStale(slot, buf.Status())
		return
	}

	s.refill(buf)

	if err := s.channel.Submit(buf); err != nil {
		s.submitErrors.Add(1)
		if s.warnLimiter.Allow() {
			log.Warn("Failed to resubmit buffer", "stream", s.id, "slot", slot, "error", err)
		}
	}

	s.active.Store(int32(1 - active))
}

// refill pulls fresh frames from the host into buf. A panicking host is
// contained here so nothing escapes into the channel's context.
func (s *Stream) refill(buf *WaveBuf) {
	defer func() {
		if r := recover(); r != nil {
			s.mixerPanics.Add(1)
			if s.warnLimiter.Allow() {
				log.Error("Mixer panicked during refill", "stream", s.id, "slot", buf.Slot, "panic", r)
			}
		}
	}()

	s.host.MixSigned16(buf.Data, s.frames)
	s.refills.Add(1)
}

func (s *Stream) noteStale(slot int, status BufferStatus) {
	s.stale.Add(1)
	if s.warnLimiter.Allow() {
		log.Debug("Ignoring stale completion",
			"stream", s.id,
			"slot", slot,
			"active", s.active.Load(),
			"status", status)
	}
}

// Shutdown stops playback, releases both buffers and detaches the stream
// from its host. It is safe on a nil stream and safe to call twice.
func (s *Stream) Shutdown() {
	if s == nil {
		return
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.teardown()

	log.Info("Output stream shut down",
		"id", s.id,
		"refills", s.refills.Load(),
		"stale", s.stale.Load())
}

func (s *Stream) teardown() {
	s.channel.ClearQueue()
	if err := s.channel.Disable(); err != nil {
		log.Warn("Failed to disable channel", "stream", s.id, "error", err)
	}
	s.freeBuffers()
	s.host.Detach(s)
}

func (s *Stream) freeBuffers() {
	for _, b := range s.bufs {
		if b == nil || b.Data == nil {
			continue
		}
		s.mem.Free(b.Data)
		b.Data = nil
	}
}

// ID returns the stream's identifier used in logs.
func (s *Stream) ID() string {
	return s.id
}

// ActiveIndex returns the slot that will be refilled next.
func (s *Stream) ActiveIndex() int {
	return int(s.active.Load())
}

// FrameCount returns the frame capacity of each buffer.
func (s *Stream) FrameCount() int {
	return s.frames
}

// Buffer returns the buffer in slot, or nil if slot is out of range.
func (s *Stream) Buffer(slot int) *WaveBuf {
	if slot < 0 || slot >= SlotCount {
		return nil
	}
	return s.bufs[slot]
}

// BufferDuration returns how long one buffer plays.
func (s *Stream) BufferDuration() time.Duration {
	return time.Duration(s.frames) * time.Second / SampleRate
}

// Closed reports whether Shutdown ran.
func (s *Stream) Closed() bool {
	return s.closed.Load()
}

// Stats returns a snapshot of the stream's counters.
func (s *Stream) Stats() Stats {
	return Stats{
		ID:                 s.id,
		ActiveSlot:         int(s.active.Load()),
		FrameCount:         s.frames,
		Refills:            s.refills.Load(),
		StaleNotifications: s.stale.Load(),
		SubmitErrors:       s.submitErrors.Load(),
		MixerPanics:        s.mixerPanics.Load(),
		Closed:             s.closed.Load(),
	}
}
