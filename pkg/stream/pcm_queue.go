//go:build !nocgo
// +build !nocgo

package stream

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// pcmQueue is the FIFO behind a pull-based device. The device reads bytes
// from it; each buffer that runs dry is marked done and its slot is handed
// to the done channel for delivery.
//
// Nothing is consumed until SlotCount buffers have been queued, so a device
// that starts pulling early cannot complete a slot before the stream has
// submitted the other one.
type pcmQueue struct {
	mu     sync.Mutex
	bufs   []*WaveBuf
	offset int // samples already read from bufs[0]
	primed bool
	closed bool

	done      chan int
	underruns atomic.Uint64
}

func newPCMQueue() *pcmQueue {
	return &pcmQueue{
		done: make(chan int, SlotCount),
	}
}

func (q *pcmQueue) push(b *WaveBuf) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrChannelDisabled
	}
	if len(q.bufs) >= SlotCount {
		return ErrQueueFull
	}

	if len(q.bufs) == 0 {
		b.SetStatus(StatusPlaying)
	} else {
		b.SetStatus(StatusQueued)
	}
	q.bufs = append(q.bufs, b)
	if len(q.bufs) >= SlotCount {
		q.primed = true
	}
	return nil
}

// playerBufferBytes is how much the device may pull ahead per read: one
// stream buffer, so the other one is always still queued.
func playerBufferBytes(frames int) int {
	return frames * BytesPerFrame
}

// Read copies queued samples into p as little-endian bytes. It stops where
// the queue runs dry and returns the bytes copied; only a read that finds
// nothing queued is padded with silence and counted as an underrun. Before
// the queue is primed every read is silence.
func (q *pcmQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.primed {
		clear(p)
		return len(p), nil
	}

	n := 0
	for n+1 < len(p) && len(q.bufs) > 0 {
		b := q.bufs[0]
		samples := b.Samples()
		if samples > len(b.Data) {
			samples = len(b.Data)
		}

		for q.offset < samples && n+1 < len(p) {
			binary.LittleEndian.PutUint16(p[n:], uint16(b.Data[q.offset]))
			n += 2
			q.offset++
		}

		if q.offset >= samples {
			q.popLocked()
		}
	}

	if n > 0 {
		return n, nil
	}

	clear(p)
	if !q.closed && len(p) > 1 {
		q.underruns.Add(1)
	}
	return len(p), nil
}

func (q *pcmQueue) popLocked() {
	b := q.bufs[0]
	copy(q.bufs, q.bufs[1:])
	q.bufs = q.bufs[:len(q.bufs)-1]
	q.offset = 0

	b.SetStatus(StatusDone)
	if len(q.bufs) > 0 {
		q.bufs[0].SetStatus(StatusPlaying)
	}

	// the done channel holds SlotCount entries, one per buffer in flight
	select {
	case q.done <- b.Slot:
	default:
	}
}

func (q *pcmQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, b := range q.bufs {
		b.SetStatus(StatusFree)
	}
	q.bufs = nil
	q.offset = 0
	q.primed = false

	for {
		select {
		case <-q.done:
		default:
			return
		}
	}
}

func (q *pcmQueue) close() {
	q.clear()

	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *pcmQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.bufs)
}
