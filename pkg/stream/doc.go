// Package stream keeps a playback channel fed with freshly mixed PCM.
//
// Two equal-size sample buffers alternate between being played by the
// channel and being refilled by the owning engine. Every completion
// notification from the channel refills the buffer that just finished and
// queues it behind the one still playing.
package stream
