package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/klauspost/compress/zstd"
)

// TapChannel wraps a Channel and records every submitted buffer to a file.
// Recording happens on a background writer; when it falls behind, buffers
// are dropped from the recording instead of delaying the submit.
type TapChannel struct {
	Channel

	path    string
	sink    tapSink
	frames  chan *[]int16
	pool    sync.Pool
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
	written atomic.Uint64
}

type tapSink interface {
	write(samples []int16) error
	close() error
}

// NewTapChannel records to path. The extension picks the format: ".wav"
// writes a WAV file, ".zst" zstd-compressed raw PCM, anything else raw
// little-endian PCM.
func NewTapChannel(inner Channel, path string) (*TapChannel, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	var sink tapSink
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		sink = newWAVSink(f)
	case ".zst":
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		sink = &rawSink{file: f, w: bufio.NewWriter(zw), zw: zw}
	default:
		sink = &rawSink{file: f, w: bufio.NewWriter(f)}
	}

	t := &TapChannel{
		Channel: inner,
		path:    path,
		sink:    sink,
		frames:  make(chan *[]int16, 8),
	}

	t.wg.Add(1)
	go t.writeLoop()

	log.Info("Recording output", "path", path)
	return t, nil
}

// Submit copies b into the recording and forwards it.
func (t *TapChannel) Submit(b *WaveBuf) error {
	if !t.closed.Load() {
		t.capture(b)
	}
	return t.Channel.Submit(b)
}

func (t *TapChannel) capture(b *WaveBuf) {
	samples := b.Samples()
	if samples > len(b.Data) {
		samples = len(b.Data)
	}

	var buf *[]int16
	if v := t.pool.Get(); v != nil {
		buf = v.(*[]int16)
	} else {
		s := make([]int16, 0, samples)
		buf = &s
	}
	*buf = append((*buf)[:0], b.Data[:samples]...)

	select {
	case t.frames <- buf:
	default:
		t.dropped.Add(1)
		t.pool.Put(buf)
	}
}

func (t *TapChannel) writeLoop() {
	defer t.wg.Done()

	for buf := range t.frames {
		if err := t.sink.write(*buf); err != nil {
			log.Error("Recording write failed", "path", t.path, "error", err)
		} else {
			t.written.Add(uint64(len(*buf) * 2))
		}
		t.pool.Put(buf)
	}
}

// Disable disables the wrapped channel and finalizes the recording.
func (t *TapChannel) Disable() error {
	err := t.Channel.Disable()

	t.once.Do(func() {
		t.closed.Store(true)
		close(t.frames)
		t.wg.Wait()
		if cerr := t.sink.close(); cerr != nil {
			log.Error("Failed to finalize recording", "path", t.path, "error", cerr)
		}
		log.Info("Recording finished",
			"path", t.path,
			"pcm", humanize.IBytes(t.written.Load()),
			"dropped_buffers", t.dropped.Load())
	})

	return err
}

// Dropped returns the number of buffers missing from the recording.
func (t *TapChannel) Dropped() uint64 {
	return t.dropped.Load()
}

// rawSink writes little-endian samples, optionally through zstd.
type rawSink struct {
	file    *os.File
	w       *bufio.Writer
	zw      *zstd.Encoder
	scratch [2]byte
}

func (s *rawSink) write(samples []int16) error {
	for _, v := range samples {
		binary.LittleEndian.PutUint16(s.scratch[:], uint16(v))
		if _, err := s.w.Write(s.scratch[:]); err != nil {
			return err
		}
	}
	return nil
}

func (s *rawSink) close() error {
	if err := s.w.Flush(); err != nil {
		s.file.Close()
		return err
	}
	if s.zw != nil {
		if err := s.zw.Close(); err != nil {
			s.file.Close()
			return err
		}
	}
	return s.file.Close()
}

// wavSink writes a 16-bit stereo WAV file.
type wavSink struct {
	file *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
}

func newWAVSink(f *os.File) *wavSink {
	return &wavSink{
		file: f,
		enc:  wav.NewEncoder(f, SampleRate, BitDepth, Channels, 1),
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: Channels,
				SampleRate:  SampleRate,
			},
			SourceBitDepth: BitDepth,
		},
	}
}

func (s *wavSink) write(samples []int16) error {
	data := s.buf.Data[:0]
	for _, v := range samples {
		data = append(data, int(v))
	}
	s.buf.Data = data
	return s.enc.Write(s.buf)
}

func (s *wavSink) close() error {
	if err := s.enc.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
