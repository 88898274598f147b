package stream

// CompletionFunc is invoked by a channel when it finished playing the
// buffer in slot.
type CompletionFunc func(slot int)

// Channel is the playback channel contract. It consumes submitted buffers
// in FIFO order and reports each finished one through the completion
// callback.
type Channel interface {
	// Configure prepares the channel for f
	Configure(f Format) error

	// Submit appends b to the playback queue
	Submit(b *WaveBuf) error

	// SetCallback installs the completion handler; nil removes it
	SetCallback(fn CompletionFunc)

	// ClearQueue drops every queued buffer and stops pending playback
	ClearQueue()

	// Disable shuts the channel down. It returns only after any running
	// completion callback has returned, and no callback runs afterwards.
	Disable() error
}

// Host is the engine that owns a Stream.
type Host interface {
	// MixSigned16 writes frames interleaved stereo frames into dst
	MixSigned16(dst []int16, frames int)

	// PostInit reports the buffer geometry once the stream is running
	PostInit(g Geometry)

	// Attach stores s as the host's active output
	Attach(s *Stream)

	// Detach clears s from the host
	Detach(s *Stream)
}
