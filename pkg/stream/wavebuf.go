package stream

import "sync/atomic"

// BufferStatus is the channel-side state of a WaveBuf.
type BufferStatus int32

const (
	// StatusFree means the channel does not reference the buffer
	StatusFree BufferStatus = iota
	// StatusQueued means the buffer waits behind the one playing
	StatusQueued
	// StatusPlaying means the channel is consuming the buffer
	StatusPlaying
	// StatusDone means playback of the buffer finished
	StatusDone
)

// String returns the status name.
func (s BufferStatus) String() string {
	switch s {
	case StatusFree:
		return "free"
	case StatusQueued:
		return "queued"
	case StatusPlaying:
		return "playing"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// WaveBuf is one of the two sample buffers cycled through a channel.
// Data holds Frames interleaved stereo frames. Status is written by the
// channel and read by the stream.
type WaveBuf struct {
	Data   []int16
	Frames int
	Slot   int

	status atomic.Int32
}

// Status returns the channel-side status.
func (b *WaveBuf) Status() BufferStatus {
	return BufferStatus(b.status.Load())
}

// SetStatus is called by channel implementations.
func (b *WaveBuf) SetStatus(s BufferStatus) {
	b.status.Store(int32(s))
}

// Samples returns the number of int16 samples the buffer plays.
func (b *WaveBuf) Samples() int {
	return b.Frames * Channels
}
