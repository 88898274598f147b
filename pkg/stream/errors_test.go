package stream

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want StatusCode
	}{
		{"nil", nil, StatusOK},
		{"unsupported", newStreamError("initialize", ErrUnsupportedFormat), StatusUnsupportedFormat},
		{"wrapped allocation", fmt.Errorf("%w: %w", ErrAllocationFailed, ErrOutOfMemory), StatusAllocationFailed},
		{"device", fmt.Errorf("%w: boom", ErrDeviceInitFailed), StatusDeviceInitFailed},
		{"anything else", errors.New("unexpected"), StatusDeviceInitFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusCodeString(t *testing.T) {
	tests := map[StatusCode]string{
		StatusOK:                "Ok",
		StatusUnsupportedFormat: "UnsupportedFormat",
		StatusDeviceInitFailed:  "DeviceInitFailed",
		StatusAllocationFailed:  "AllocationFailed",
		StatusCode(42):          "StatusCode(42)",
	}
	for code, want := range tests {
		if got := code.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(code), got, want)
		}
	}
}

func TestStreamError(t *testing.T) {
	err := newStreamError("alloc", ErrOutOfMemory).WithContext("slot", 1)

	if !errors.Is(err, ErrOutOfMemory) {
		t.Error("StreamError should unwrap to its cause")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "alloc: out of linear memory") {
		t.Errorf("unexpected message %q", msg)
	}
	if !strings.Contains(msg, "slot:1") {
		t.Errorf("message %q should include context", msg)
	}

	var se *StreamError
	if !errors.As(fmt.Errorf("outer: %w", err), &se) || se.Op != "alloc" {
		t.Error("errors.As should find the StreamError")
	}

	empty := &StreamError{Op: "submit"}
	if empty.Error() != "submit: unknown stream error" {
		t.Errorf("unexpected message %q", empty.Error())
	}
}
