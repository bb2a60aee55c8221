// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package cache

import (
	"sync/atomic"
	"time"
)

// DefaultTTL applies when Config.TTL is not positive.
const DefaultTTL = 24 * time.Hour

// Cacher stores string values with a fixed time-to-live.
//
// Usage:
//
//	c, err := cache.New(cache.Config{TTL: 24 * time.Hour})
//	if err != nil { ... }
//	defer c.Close()
//
//	c.Set("tmdb:poster:movie:603", "/x.jpg")
//	if path, ok := c.Get("tmdb:poster:movie:603"); ok {
//	    // use cached poster_path
//	}
type Cacher interface {
	// Get returns the value and true if present and not expired.
	Get(key string) (string, bool)

	// Set stores a value with the cache's TTL. Failures are logged, not returned.
	Set(key, value string)

	// Stats returns hit and miss counters since creation.
	Stats() Stats

	// Close releases the underlying store.
	Close() error
}

// Config selects where entries live.
type Config struct {
	// Dir is the badger directory. Empty keeps the cache in memory.
	Dir string

	// TTL is how long an entry stays readable.
	TTL time.Duration
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits   int64
	Misses int64
}

// HitRate returns hits as a percentage of lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Nop is a Cacher that never stores anything.
type Nop struct{ counters }

// Get always misses.
func (n *Nop) Get(string) (string, bool) {
	n.record(false)
	return "", false
}

// Set discards the value.
func (n *Nop) Set(string, string) {}

// Stats returns the miss count.
func (n *Nop) Stats() Stats { return n.snapshot() }

// Close is a no-op.
func (n *Nop) Close() error { return nil }

// Verify interface implementations at compile time
var (
	_ Cacher = (*BadgerCache)(nil)
	_ Cacher = (*Nop)(nil)
)
