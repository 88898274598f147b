//go:build nocgo
// +build nocgo

package stream

import "time"

// Stub implementations for builds without CGO

// OtoChannel stub for nocgo builds
type OtoChannel struct{}

// NewOtoChannel creates a stub channel that cannot be configured.
func NewOtoChannel(bufferSize time.Duration) *OtoChannel {
	return &OtoChannel{}
}

func (c *OtoChannel) Configure(f Format) error {
	return ErrAudioUnavailable
}

func (c *OtoChannel) Submit(b *WaveBuf) error {
	return ErrAudioUnavailable
}

func (c *OtoChannel) SetCallback(fn CompletionFunc) {}

func (c *OtoChannel) ClearQueue() {}

func (c *OtoChannel) Disable() error {
	return nil
}

func (c *OtoChannel) Underruns() uint64 {
	return 0
}

func probeDevice(bufferSize time.Duration) error {
	return ErrAudioUnavailable
}
