package stream

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/klauspost/compress/zstd"
)

// runTapped streams two refills through a TapChannel writing to name and
// returns the recording path.
func runTapped(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	inner := NewMockChannel()
	tap, err := NewTapChannel(inner, path)
	if err != nil {
		t.Fatalf("NewTapChannel failed: %v", err)
	}

	host := &testHost{}
	s, err := Initialize(host, tap, NewLinearPool(0), DefaultOptions(32))
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	host.setFill(0x1111)
	inner.Complete()
	host.setFill(0x2222)
	inner.Complete()
	s.Shutdown()

	if tap.Dropped() != 0 {
		t.Fatalf("dropped %d buffers", tap.Dropped())
	}
	return path
}

// expectedRecording is two silent buffers followed by the two refills.
func expectedRecording() []int16 {
	samples := 32 * Channels
	out := make([]int16, 0, 4*samples)
	out = append(out, make([]int16, 2*samples)...)
	for _, v := range []int16{0x1111, 0x2222} {
		for i := 0; i < samples; i++ {
			out = append(out, v)
		}
	}
	return out
}

func decodeRaw(t *testing.T, data []byte) []int16 {
	t.Helper()
	if len(data)%2 != 0 {
		t.Fatalf("odd recording length %d", len(data))
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

func compareSamples(t *testing.T, got, want []int16) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("recorded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %#x, want %#x", i, uint16(got[i]), uint16(want[i]))
		}
	}
}

func TestTapChannelRaw(t *testing.T) {
	path := runTapped(t, "out.pcm")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	compareSamples(t, decodeRaw(t, data), expectedRecording())
}

func TestTapChannelZstd(t *testing.T) {
	path := runTapped(t, "out.pcm.zst")

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd.NewReader failed: %v", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	compareSamples(t, decodeRaw(t, buf.Bytes()), expectedRecording())
}

func TestTapChannelWAV(t *testing.T) {
	path := runTapped(t, "out.wav")

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		t.Fatal("recording is not a valid WAV file")
	}
	if d.SampleRate != SampleRate || d.NumChans != Channels || d.BitDepth != BitDepth {
		t.Errorf("format = %d Hz, %d ch, %d bit", d.SampleRate, d.NumChans, d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer failed: %v", err)
	}
	got := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		got[i] = int16(v)
	}
	compareSamples(t, got, expectedRecording())
}

func TestTapChannelBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.wav")
	if _, err := NewTapChannel(NewMockChannel(), path); err == nil {
		t.Error("expected error for unwritable path")
	}
}
