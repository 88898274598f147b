package source

import (
	"math"
	"testing"
	"time"
)

func TestToneStaysWithinAmplitude(t *testing.T) {
	tone := NewTone(440, 0.5, 0)
	dst := make([]float32, 2048)

	if n := tone.ReadFrames(dst); n != 1024 {
		t.Fatalf("ReadFrames = %d, want 1024", n)
	}
	if dst[0] != 0 || dst[1] != 0 {
		t.Errorf("first frame = %v/%v, want silence at phase 0", dst[0], dst[1])
	}

	var peak float32
	for i := 0; i < len(dst); i += 2 {
		if dst[i] != dst[i+1] {
			t.Fatalf("frame %d channels differ: %v vs %v", i/2, dst[i], dst[i+1])
		}
		if a := float32(math.Abs(float64(dst[i]))); a > peak {
			peak = a
		}
	}
	if peak > 0.5 || peak < 0.49 {
		t.Errorf("peak = %v, want about 0.5", peak)
	}
	if tone.Done() {
		t.Error("endless tone reported done")
	}
}

func TestToneDuration(t *testing.T) {
	tone := NewTone(1000, 1, 10*time.Millisecond) // 441 frames
	dst := make([]float32, 600)

	if n := tone.ReadFrames(dst); n != 300 {
		t.Fatalf("first read = %d, want 300", n)
	}
	if n := tone.ReadFrames(dst); n != 141 {
		t.Fatalf("second read = %d, want 141", n)
	}
	if !tone.Done() {
		t.Error("tone should be done")
	}
	if n := tone.ReadFrames(dst); n != 0 {
		t.Errorf("read after done = %d, want 0", n)
	}
}

func TestSilence(t *testing.T) {
	s := NewSilence(time.Second / 100)
	dst := []float32{1, 1, 1, 1}

	if n := s.ReadFrames(dst); n != 2 {
		t.Fatalf("ReadFrames = %d, want 2", n)
	}
	for i, v := range dst {
		if v != 0 {
			t.Errorf("dst[%d] = %v, want 0", i, v)
		}
	}

	big := make([]float32, 2000)
	if n := s.ReadFrames(big); n != 439 {
		t.Errorf("remaining frames = %d, want 439", n)
	}
	if !s.Done() {
		t.Error("silence should be done")
	}
}

func TestBuffer(t *testing.T) {
	tests := []struct {
		name   string
		loop   bool
		reads  []int
		want   []int
		done   bool
		sample float32 // first sample of the final read
	}{
		{"plays once", false, []int{2, 2}, []int{2, 1}, true, 0.3},
		{"loops", true, []int{2, 2, 3}, []int{2, 2, 3}, false, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer([]float32{0.1, -0.1, 0.2, -0.2, 0.3, -0.3})
			b.Loop = tt.loop

			var last []float32
			for i, frames := range tt.reads {
				dst := make([]float32, frames*2)
				if n := b.ReadFrames(dst); n != tt.want[i] {
					t.Fatalf("read %d = %d frames, want %d", i, n, tt.want[i])
				}
				last = dst
			}
			if last[0] != tt.sample {
				t.Errorf("first sample of last read = %v, want %v", last[0], tt.sample)
			}
			if b.Done() != tt.done {
				t.Errorf("Done = %v, want %v", b.Done(), tt.done)
			}
		})
	}
}

func TestBufferMetrics(t *testing.T) {
	b := NewBuffer(make([]float32, 44100*2+1))
	if b.Frames() != 44100 {
		t.Errorf("Frames = %d, want 44100", b.Frames())
	}
	if b.Duration() != time.Second {
		t.Errorf("Duration = %v, want 1s", b.Duration())
	}

	b.ReadFrames(make([]float32, 44100*2))
	if !b.Done() {
		t.Fatal("buffer should be done")
	}
	b.Rewind()
	if b.Done() {
		t.Error("rewound buffer should not be done")
	}

	empty := NewBuffer(nil)
	empty.Loop = true
	if n := empty.ReadFrames(make([]float32, 8)); n != 0 {
		t.Errorf("empty looping buffer read %d frames", n)
	}
	if !empty.Done() {
		t.Error("empty buffer should be done even when looping")
	}
}
