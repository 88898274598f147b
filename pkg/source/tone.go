package source

import (
	"math"
	"time"

	"github.com/dgnsrekt/pcmfeed/pkg/stream"
)

// Tone is a sine wave on both channels.
type Tone struct {
	Frequency float64
	Amplitude float64

	phase     float64
	remaining int // frames left, negative means endless
}

// NewTone creates a sine at hz with the given amplitude. A zero duration
// plays forever.
func NewTone(hz, amplitude float64, d time.Duration) *Tone {
	return &Tone{
		Frequency: hz,
		Amplitude: amplitude,
		remaining: framesFor(d),
	}
}

// ReadFrames implements Source.
func (t *Tone) ReadFrames(dst []float32) int {
	frames := len(dst) / 2
	if t.remaining >= 0 && frames > t.remaining {
		frames = t.remaining
	}

	step := 2 * math.Pi * t.Frequency / stream.SampleRate
	for i := 0; i < frames; i++ {
		v := float32(t.Amplitude * math.Sin(t.phase))
		dst[i*2] = v
		dst[i*2+1] = v

		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}

	if t.remaining >= 0 {
		t.remaining -= frames
	}
	return frames
}

// Done implements Source.
func (t *Tone) Done() bool {
	return t.remaining == 0
}

// Silence yields zero frames for a fixed time.
type Silence struct {
	remaining int
}

// NewSilence creates d of silence. A zero duration never ends.
func NewSilence(d time.Duration) *Silence {
	return &Silence{remaining: framesFor(d)}
}

// ReadFrames implements Source.
func (s *Silence) ReadFrames(dst []float32) int {
	frames := len(dst) / 2
	if s.remaining >= 0 && frames > s.remaining {
		frames = s.remaining
	}
	clear(dst[:frames*2])
	if s.remaining >= 0 {
		s.remaining -= frames
	}
	return frames
}

// Done implements Source.
func (s *Silence) Done() bool {
	return s.remaining == 0
}

func framesFor(d time.Duration) int {
	if d <= 0 {
		return -1
	}
	return int(d * stream.SampleRate / time.Second)
}
