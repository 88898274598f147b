package source

import (
	"time"

	"github.com/dgnsrekt/pcmfeed/pkg/stream"
)

// Buffer plays decoded interleaved stereo samples held in memory.
type Buffer struct {
	samples []float32
	pos     int

	// Loop restarts playback at the end instead of finishing
	Loop bool
}

// NewBuffer wraps interleaved stereo samples.
func NewBuffer(samples []float32) *Buffer {
	return &Buffer{samples: samples[:len(samples)/2*2]}
}

// ReadFrames implements Source.
func (b *Buffer) ReadFrames(dst []float32) int {
	want := len(dst) / 2 * 2
	n := 0
	for n < want {
		if b.pos >= len(b.samples) {
			if !b.Loop || len(b.samples) == 0 {
				break
			}
			b.pos = 0
		}
		c := copy(dst[n:want], b.samples[b.pos:])
		n += c
		b.pos += c
	}
	return n / 2
}

// Done implements Source.
func (b *Buffer) Done() bool {
	if b.Loop && len(b.samples) > 0 {
		return false
	}
	return b.pos >= len(b.samples)
}

// Rewind restarts playback from the first frame.
func (b *Buffer) Rewind() {
	b.pos = 0
}

// Samples returns the interleaved samples backing the buffer.
func (b *Buffer) Samples() []float32 {
	return b.samples
}

// Frames returns the number of frames held.
func (b *Buffer) Frames() int {
	return len(b.samples) / 2
}

// Duration returns the play time of one pass.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Frames()) * time.Second / stream.SampleRate
}
