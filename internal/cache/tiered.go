package cache

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Config configures a tiered cache.
type Config struct {
	MemoryBytes int64  // L1 capacity
	DiskDir     string // L2 directory, empty disables the disk tier
	DiskBytes   int64  // L2 capacity
	Level       int    // zstd level for the disk tier
}

// DefaultConfig returns a memory-only configuration.
func DefaultConfig() Config {
	return Config{
		MemoryBytes: 64 << 20,
		DiskBytes:   512 << 20,
		Level:       3,
	}
}

// Tiered checks memory before disk and promotes disk hits to memory.
type Tiered struct {
	memory *MemoryCache
	disk   *DiskCache
}

var _ Store = (*Tiered)(nil)

// New creates a tiered cache.
func New(cfg Config) (*Tiered, error) {
	if cfg.MemoryBytes <= 0 {
		return nil, errors.New("memory capacity must be positive")
	}
	t := &Tiered{memory: NewMemoryCache(cfg.MemoryBytes)}
	if cfg.DiskDir != "" {
		disk, err := NewDiskCache(cfg.DiskDir, cfg.DiskBytes, cfg.Level)
		if err != nil {
			return nil, err
		}
		t.disk = disk
	}
	log.Debug("Clip cache ready",
		"memory", humanize.IBytes(uint64(cfg.MemoryBytes)),
		"disk", cfg.DiskDir,
	)
	return t, nil
}

// Get implements Store.
func (t *Tiered) Get(key string) ([]byte, bool) {
	if v, ok := t.memory.Get(key); ok {
		return v, true
	}
	if t.disk == nil {
		return nil, false
	}
	v, ok := t.disk.Get(key)
	if ok {
		_ = t.memory.Put(key, v)
	}
	return v, ok
}

// Put implements Store. A clip too large for memory may still be stored on
// disk.
func (t *Tiered) Put(key string, value []byte) error {
	memErr := t.memory.Put(key, value)
	if t.disk == nil {
		return memErr
	}
	if err := t.disk.Put(key, value); err != nil {
		return err
	}
	return nil
}

// Delete implements Store.
func (t *Tiered) Delete(key string) error {
	_ = t.memory.Delete(key)
	if t.disk != nil {
		return t.disk.Delete(key)
	}
	return nil
}

// Stats returns the combined counters. Hits count a lookup served by either
// tier.
func (t *Tiered) Stats() Stats {
	s := t.memory.Stats()
	if t.disk != nil {
		d := t.disk.Stats()
		s.Capacity += d.Capacity
		s.Size += d.Size
		s.Hits += d.Hits
		s.Misses = d.Misses
		s.Evictions += d.Evictions
	}
	return s
}

// Summary returns a short human-readable description of the cache.
func (t *Tiered) Summary() string {
	s := t.Stats()
	return humanize.IBytes(uint64(s.Size)) + " cached, " +
		humanize.FormatFloat("#.#", s.HitRate()*100) + "% hits"
}

// Close flushes the disk index.
func (t *Tiered) Close() error {
	if t.disk != nil {
		return t.disk.Close()
	}
	return nil
}
