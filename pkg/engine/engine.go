// Package engine owns an output stream and mixes sample sources into it.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/pcmfeed/pkg/source"
	"github.com/dgnsrekt/pcmfeed/pkg/stream"
)

// ErrAlreadyInitialized is returned by Init while a stream is attached.
var ErrAlreadyInitialized = errors.New("engine already initialized")

// MaxVolume caps the master gain.
const MaxVolume = 4.0

// Engine is the stream host. It keeps a set of playing voices and sums
// them into each buffer the stream hands over.
type Engine struct {
	mu       sync.Mutex
	stream   *stream.Stream
	geometry stream.Geometry
	mix      []float32
	scratch  []float32
	voices   []*voice
	nextID   int
	volume   float32

	initMu sync.Mutex

	framesMixed atomic.Uint64
	clipped     atomic.Uint64

	clipLimiter *rate.Limiter
}

type voice struct {
	id  int
	src source.Source
}

// Stats is a snapshot of the engine and its stream.
type Stats struct {
	Stream         stream.Stats
	Voices         int
	Volume         float64
	FramesMixed    uint64
	ClippedSamples uint64
}

// New creates an idle engine at unity gain.
func New() *Engine {
	return &Engine{
		volume:      1,
		clipLimiter: rate.NewLimiter(rate.Limit(1), 1),
	}
}

// Init starts an output stream on ch with buffers from mem.
func (e *Engine) Init(ch stream.Channel, mem stream.Memory, opts stream.Options) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.Stream() != nil {
		return ErrAlreadyInitialized
	}

	// Initialize calls back into Attach and PostInit, so e.mu is not held.
	if _, err := stream.Initialize(e, ch, mem, opts); err != nil {
		return fmt.Errorf("failed to initialize output: %w", err)
	}
	return nil
}

// Deinit shuts the stream down. It is safe to call when not initialized.
func (e *Engine) Deinit() {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	s := e.Stream()
	if s == nil {
		return
	}
	s.Shutdown()
}

// Attach implements stream.Host.
func (e *Engine) Attach(s *stream.Stream) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stream = s
}

// Detach implements stream.Host.
func (e *Engine) Detach(s *stream.Stream) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == s {
		e.stream = nil
	}
}

// PostInit implements stream.Host. It sizes the mixing buffers so the
// completion path does not allocate.
func (e *Engine) PostInit(g stream.Geometry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.geometry = g
	e.mix = make([]float32, g.BufferSamples)
	e.scratch = make([]float32, g.BufferSamples)

	log.Debug("Engine geometry set",
		"sample_rate", g.SampleRate,
		"buffer_samples", g.BufferSamples,
		"flags", g.Flags)
}

// MixSigned16 implements stream.Host.
func (e *Engine) MixSigned16(dst []int16, frames int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	samples := frames * stream.Channels
	if samples > len(dst) {
		samples = len(dst)
	}
	if samples > len(e.mix) {
		e.mix = make([]float32, samples)
		e.scratch = make([]float32, samples)
	}

	mix := e.mix[:samples]
	clear(mix)

	live := e.voices[:0]
	for _, v := range e.voices {
		scratch := e.scratch[:samples]
		n := v.src.ReadFrames(scratch) * stream.Channels
		for i := 0; i < n; i++ {
			mix[i] += scratch[i]
		}
		if !v.src.Done() {
			live = append(live, v)
		}
	}
	clear(e.voices[len(live):])
	e.voices = live

	var clipped uint64
	for i, v := range mix {
		v *= e.volume
		if v > 1 {
			v = 1
			clipped++
		} else if v < -1 {
			v = -1
			clipped++
		}
		dst[i] = int16(v * 32767)
	}

	e.framesMixed.Add(uint64(samples / stream.Channels))
	if clipped > 0 {
		e.clipped.Add(clipped)
		if e.clipLimiter.Allow() {
			log.Debug("Mix clipped", "samples", clipped)
		}
	}
}

// Play adds src to the mix and returns its voice handle.
func (e *Engine) Play(src source.Source) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	e.voices = append(e.voices, &voice{id: e.nextID, src: src})
	return e.nextID
}

// Stop removes a voice. It reports whether the voice was still playing.
func (e *Engine) Stop(handle int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, v := range e.voices {
		if v.id == handle {
			e.voices = append(e.voices[:i], e.voices[i+1:]...)
			return true
		}
	}
	return false
}

// StopAll removes every voice.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.voices)
	e.voices = e.voices[:0]
}

// SetVolume sets the master gain, clamped to [0, MaxVolume].
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > MaxVolume {
		v = MaxVolume
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = float32(v)
}

// Volume returns the master gain.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(e.volume)
}

// Voices returns the number of playing voices.
func (e *Engine) Voices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// Idle reports whether no voice is playing.
func (e *Engine) Idle() bool {
	return e.Voices() == 0
}

// Geometry returns what the stream reported at start-up.
func (e *Engine) Geometry() stream.Geometry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.geometry
}

// Stream returns the attached stream, or nil.
func (e *Engine) Stream() *stream.Stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	st := Stats{
		Voices: len(e.voices),
		Volume: float64(e.volume),
	}
	s := e.stream
	e.mu.Unlock()

	if s != nil {
		st.Stream = s.Stats()
	}
	st.FramesMixed = e.framesMixed.Load()
	st.ClippedSamples = e.clipped.Load()
	return st
}
