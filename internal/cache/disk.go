package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const fileExt = ".pcm.zst"

// DiskCache stores interleaved float32 samples under a directory, one
// compressed file per entry. The directory is rescanned on open so entries
// survive between runs.
type DiskCache struct {
	dir      string
	capacity int64 // Maximum size on disk in bytes
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	path       string
	size       int64 // Size on disk (compressed)
	lastAccess time.Time
}

// NewDiskCache opens or creates a cache in dir holding at most capacity
// bytes on disk.
func NewDiskCache(dir string, capacity int64) (*DiskCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		encoder:  encoder,
		decoder:  decoder,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}
	if err := dc.scan(); err != nil {
		dc.Close()
		return nil, err
	}
	for dc.size > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}
	return dc, nil
}

// Key derives a cache key for the file at path. The key changes whenever
// the file is modified, so stale decodes are never returned.
func Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano()))
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the samples stored under key.
func (dc *DiskCache) Get(key string) ([]float32, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	e, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	samples, err := dc.read(e.path)
	if err != nil {
		log.Debug("Dropping unreadable cache entry", "key", key, "err", err)
		dc.remove(key, e)
		dc.stats.Misses++
		return nil, false
	}

	now := time.Now()
	e.lastAccess = now
	_ = os.Chtimes(e.path, now, now)

	dc.stats.Hits++
	dc.stats.LastAccess = now
	return samples, true
}

// Put stores samples under key, evicting the least recently used entries
// to make room.
func (dc *DiskCache) Put(key string, samples []float32) error {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid cache key %q", key)
	}

	raw := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(s))
	}
	data := dc.encoder.EncodeAll(raw, nil)
	diskSize := int64(len(data))

	dc.mu.Lock()
	defer dc.mu.Unlock()

	if diskSize > dc.capacity {
		return ErrItemTooLarge
	}
	if existing, ok := dc.index[key]; ok {
		dc.remove(key, existing)
	}
	for dc.size+diskSize > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	path := filepath.Join(dc.dir, key+fileExt)
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	dc.index[key] = &diskEntry{path: path, size: diskSize, lastAccess: time.Now()}
	dc.size += diskSize
	return nil
}

// Delete removes the entry stored under key, if any.
func (dc *DiskCache) Delete(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if e, ok := dc.index[key]; ok {
		dc.remove(key, e)
	}
}

// Clear removes every entry.
func (dc *DiskCache) Clear() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for key, e := range dc.index {
		dc.remove(key, e)
	}
}

// Stats returns a snapshot of the cache counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	s := dc.stats
	s.Size = dc.size
	s.ItemCount = int64(len(dc.index))
	return s
}

// Close releases the compression state. Entries stay on disk.
func (dc *DiskCache) Close() {
	dc.encoder.Close()
	dc.decoder.Close()
}

func (dc *DiskCache) scan() error {
	entries, err := os.ReadDir(dc.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(name, fileExt)
		dc.index[key] = &diskEntry{
			path:       filepath.Join(dc.dir, name),
			size:       info.Size(),
			lastAccess: info.ModTime(),
		}
		dc.size += info.Size()
	}
	return nil
}

func (dc *DiskCache) read(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := dc.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	if len(raw)%4 != 0 {
		return nil, ErrCacheCorrupted
	}

	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return samples, nil
}

// must hold dc.mu
func (dc *DiskCache) remove(key string, e *diskEntry) {
	os.Remove(e.path)
	delete(dc.index, key)
	dc.size -= e.size
}

// must hold dc.mu
func (dc *DiskCache) evictOldest() {
	var oldestKey string
	var oldest *diskEntry
	for key, e := range dc.index {
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) {
			oldestKey, oldest = key, e
		}
	}
	if oldest == nil {
		return
	}
	log.Debug("Evicting cached decode", "key", oldestKey, "size", oldest.size)
	dc.remove(oldestKey, oldest)
	dc.stats.Evictions++
}

// writeFile writes through a temp file so readers never see a partial entry.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
