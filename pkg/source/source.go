package source

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/pcmfeed/pkg/stream"
)

// Source produces interleaved stereo frames in the range [-1, 1].
type Source interface {
	// ReadFrames fills dst with up to len(dst)/2 frames and returns the
	// number of frames written. Frames not written are left untouched.
	ReadFrames(dst []float32) int

	// Done reports whether the source is exhausted.
	Done() bool
}

var (
	ErrUnknownExtension = errors.New("unknown audio file extension")
	ErrInvalidFile      = errors.New("invalid audio file")
	ErrUnsupportedDepth = errors.New("unsupported bit depth")
)

// checkFormat rejects anything the output stream cannot play unchanged.
func checkFormat(sampleRate, channels int) error {
	if sampleRate != stream.SampleRate {
		return fmt.Errorf("%w: %d Hz", stream.ErrUnsupportedFormat, sampleRate)
	}
	if channels < 1 || channels > stream.Channels {
		return fmt.Errorf("%w: %d channels", stream.ErrUnsupportedFormat, channels)
	}
	return nil
}

// interleave converts samples with the given channel count to stereo.
// Mono is duplicated into both channels.
func interleave(samples []float32, channels int) []float32 {
	if channels == stream.Channels {
		return samples
	}
	out := make([]float32, len(samples)*2)
	for i, v := range samples {
		out[i*2] = v
		out[i*2+1] = v
	}
	return out
}
