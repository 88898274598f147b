package stream

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ChannelType selects the Channel implementation NewChannel returns.
type ChannelType int

const (
	// ChannelAuto uses the audio device unless running under CI
	ChannelAuto ChannelType = iota
	// ChannelOto plays through the system audio device
	ChannelOto
	// ChannelMock completes buffers in real time without a device
	ChannelMock
)

// String returns the name used in configuration.
func (t ChannelType) String() string {
	switch t {
	case ChannelAuto:
		return "auto"
	case ChannelOto:
		return "oto"
	case ChannelMock:
		return "mock"
	default:
		return fmt.Sprintf("ChannelType(%d)", int(t))
	}
}

// ParseChannelType parses "auto", "oto" or "mock".
func ParseChannelType(s string) (ChannelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ChannelAuto, nil
	case "oto", "device":
		return ChannelOto, nil
	case "mock", "null":
		return ChannelMock, nil
	default:
		return ChannelAuto, fmt.Errorf("unknown channel type: %q", s)
	}
}

// ChannelOptions configure NewChannel.
type ChannelOptions struct {
	// DeviceBuffer is the buffer oto keeps ahead of the speaker
	DeviceBuffer time.Duration
}

// IsCI detects if we're running in a CI environment
func IsCI() bool {
	ciVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}

	for _, envVar := range ciVars {
		if val := os.Getenv(envVar); val != "" && val != "false" {
			log.Debug("CI environment detected", "variable", envVar, "value", val)
			return true
		}
	}

	if os.Getenv("PCMFEED_MOCK_AUDIO") == "true" {
		log.Debug("Mock audio requested via environment variable")
		return true
	}

	return false
}

// NewChannel creates a channel of the requested type. The returned channel
// is not configured yet; Initialize does that.
func NewChannel(t ChannelType, opts ChannelOptions) (Channel, error) {
	switch t {
	case ChannelOto:
		log.Debug("Creating oto playback channel")
		return NewOtoChannel(opts.DeviceBuffer), nil

	case ChannelMock:
		return newAutoplayMock(), nil

	case ChannelAuto:
		if IsCI() {
			log.Info("Using mock playback channel", "reason", "CI environment")
			return newAutoplayMock(), nil
		}

		// probe the device so a missing one falls back to the mock
		if err := probeDevice(opts.DeviceBuffer); err != nil {
			log.Warn("Audio device unavailable, falling back to mock", "error", err)
			return newAutoplayMock(), nil
		}
		return NewOtoChannel(opts.DeviceBuffer), nil

	default:
		return nil, fmt.Errorf("unknown channel type: %v", t)
	}
}

// newAutoplayMock returns a mock that plays in real time once configured
// and does not keep copies of every submission.
func newAutoplayMock() *MockChannel {
	m := NewMockChannel()
	m.Record = false
	m.Autoplay = true
	return m
}
