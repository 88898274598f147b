package stream

// Output format constants. This package drives exactly one format.
const (
	// SampleRate is the output sample rate in Hz
	SampleRate = 44100
	// Channels is the number of interleaved output channels
	Channels = 2
	// BitDepth is the bit depth per sample
	BitDepth = 16
	// BytesPerFrame is the size of one interleaved stereo frame
	BytesPerFrame = Channels * BitDepth / 8
	// SlotCount is the number of buffers cycled through the channel
	SlotCount = 2
)

// Format describes the PCM layout a channel is configured for.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// OutputFormat returns the one format this package supports.
func OutputFormat() Format {
	return Format{
		SampleRate: SampleRate,
		Channels:   Channels,
		BitDepth:   BitDepth,
	}
}

// Options are the parameters passed to Initialize.
type Options struct {
	// Flags are passed through to the host untouched
	Flags int
	// SampleRate must be 44100
	SampleRate int
	// Channels must be 2
	Channels int
	// BufferFrames is the frame capacity of each of the two buffers
	BufferFrames int
}

// DefaultOptions returns options for the supported format with the given
// buffer size.
func DefaultOptions(bufferFrames int) Options {
	return Options{
		SampleRate:   SampleRate,
		Channels:     Channels,
		BufferFrames: bufferFrames,
	}
}

// Geometry is what the stream reports to its host once buffers exist, so
// the host can size its mixing pipeline.
type Geometry struct {
	SampleRate    int
	BufferSamples int // frames per buffer * channels
	Flags         int
	Channels      int
}

// BufferFrames returns the frame capacity of one buffer.
func (g Geometry) BufferFrames() int {
	if g.Channels == 0 {
		return 0
	}
	return g.BufferSamples / g.Channels
}
