package cache

import (
	"errors"
	"time"
)

var (
	// ErrItemTooLarge is returned when an entry alone exceeds the capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when an entry cannot be decoded
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Stats holds cache counters.
type Stats struct {
	Capacity  int64 // Maximum size on disk in bytes
	Size      int64 // Current size on disk in bytes
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64

	LastAccess time.Time
}

// HitRate returns hits over lookups, 0 before the first lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}
