// Package cache keeps decoded PCM on disk so compressed sources only pay
// the decode cost once. Entries are zstd-compressed and evicted oldest
// first when the cache grows past its capacity.
package cache
