// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/embynotify/internal/logging"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache is closed")

// BadgerCache is a Cacher backed by BadgerDB. Expiry is delegated to
// badger entry TTLs, so there is no cleanup goroutine.
type BadgerCache struct {
	db  *badger.DB
	cfg Config

	mu     sync.RWMutex
	closed bool

	counters
}

// New opens a badger-backed cache. An empty Dir runs badger in memory.
func New(cfg Config) (*BadgerCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerCache{db: db, cfg: cfg}, nil
}

// Get returns a live entry.
func (c *BadgerCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", false
	}

	var value string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Debug().Err(err).Str("key", key).Msg("Cache read failed")
		}
		c.record(false)
		return "", false
	}
	c.record(true)
	return value, true
}

// Set stores value under key with the configured TTL.
func (c *BadgerCache) Set(key, value string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), []byte(value)).WithTTL(c.cfg.TTL))
	})
	if err != nil {
		logging.Debug().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// Stats returns hit and miss counters.
func (c *BadgerCache) Stats() Stats { return c.snapshot() }

// Close closes the database. Further calls are no-ops.
func (c *BadgerCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
