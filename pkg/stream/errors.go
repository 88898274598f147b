package stream

import (
	"errors"
	"fmt"
)

// Errors reported by the stream and its channels.
var (
	// Initialization errors
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrDeviceInitFailed  = errors.New("playback device initialization failed")
	ErrAllocationFailed  = errors.New("sample buffer allocation failed")

	// Memory errors
	ErrOutOfMemory = errors.New("out of linear memory")

	// Channel errors
	ErrNotConfigured    = errors.New("channel is not configured")
	ErrChannelDisabled  = errors.New("channel is disabled")
	ErrQueueFull        = errors.New("channel queue is full")
	ErrAudioUnavailable = errors.New("audio not available in this build")
)

// StatusCode is the result of initializing an output.
type StatusCode int

const (
	// StatusOK means the output is running
	StatusOK StatusCode = iota
	// StatusUnsupportedFormat means the sample rate or channel count was rejected
	StatusUnsupportedFormat
	// StatusDeviceInitFailed means the playback channel could not be set up
	StatusDeviceInitFailed
	// StatusAllocationFailed means the sample buffers could not be allocated
	StatusAllocationFailed
)

// String returns the status name.
func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "Ok"
	case StatusUnsupportedFormat:
		return "UnsupportedFormat"
	case StatusDeviceInitFailed:
		return "DeviceInitFailed"
	case StatusAllocationFailed:
		return "AllocationFailed"
	default:
		return fmt.Sprintf("StatusCode(%d)", int(c))
	}
}

// StatusOf maps an error returned by Initialize to its status code.
func StatusOf(err error) StatusCode {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrUnsupportedFormat):
		return StatusUnsupportedFormat
	case errors.Is(err, ErrAllocationFailed):
		return StatusAllocationFailed
	default:
		return StatusDeviceInitFailed
	}
}

// StreamError carries the operation that failed along with the cause.
type StreamError struct {
	Op      string                 // Operation being performed
	Err     error                  // The underlying error
	Context map[string]interface{} // Additional context
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Err == nil {
		return e.Op + ": unknown stream error"
	}
	if len(e.Context) == 0 {
		return e.Op + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %v %v", e.Op, e.Err, e.Context)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// newStreamError creates a StreamError for op.
func newStreamError(op string, err error) *StreamError {
	return &StreamError{
		Op:  op,
		Err: err,
	}
}

// WithContext adds context to the error.
func (e *StreamError) WithContext(key string, value interface{}) *StreamError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}
