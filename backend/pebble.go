// Package backend wraps an embedded ordered KV store as the disk spill
// target for qbufs whose in-memory footprint has exceeded budget (spec
// §4.1). It is treated as a black box: qbuf/manager never see a *pebble.DB,
// only the KVPair/Options vocabulary below.
package backend

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// ErrClosed is returned by any operation on a Backend after Close.
var ErrClosed = errors.New("backend: closed")

// KVPair is one row's composite key and encoded payload, as produced by
// package keycodec.
type KVPair struct {
	Key   []byte
	Value []byte
}

// Options configures Backend.Open. Sizes mirror what a single qbuf's spilled
// rows realistically need — this is not a general-purpose database, so the
// defaults favor low memory overhead over write throughput.
type Options struct {
	MemTableSize uint64
	CacheSize    int64
	Logger       *slog.Logger
}

// DefaultOptions returns the tuning the manager uses unless overridden by
// config (spec §4.1: ~10MiB memtable, no compression — spilled rows are
// already compact tag+payload encodings and short-lived).
func DefaultOptions() Options {
	return Options{
		MemTableSize: 10 << 20,
		CacheSize:    8 << 20,
	}
}

// Backend is a single embedded KV store instance shared by every qbuf the
// owning manager spills to disk. Callers isolate qbufs from one another by
// prefixing keys (package keycodec's BucketTag+QBufRef), not by opening one
// Backend per qbuf.
type Backend struct {
	db     *pebble.DB
	path   string
	logger *slog.Logger

	closed atomic.Bool
	mu     sync.RWMutex
}

// Open creates a fresh on-disk store at path. It fails if a store already
// exists there; an empty or missing directory is accepted.
func Open(path string, opts Options) (*Backend, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "backend", "path", path)

	if opts.MemTableSize == 0 {
		opts.MemTableSize = DefaultOptions().MemTableSize
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultOptions().CacheSize
	}

	cache := pebble.NewCache(opts.CacheSize)
	defer cache.Unref()

	pOpts := &pebble.Options{
		Cache:         cache,
		MemTableSize:  opts.MemTableSize,
		ErrorIfExists: true,
		// Spilled rows are read once per Fetch and never re-read after the
		// qbuf expires; there is nothing worth spending CPU compressing.
		Levels: []pebble.LevelOptions{{Compression: pebble.NoCompression}},
	}

	db, err := pebble.Open(path, pOpts)
	if err != nil {
		return nil, fmt.Errorf("backend: open %s: %w", path, err)
	}

	log.Info("backend opened")
	return &Backend{db: db, path: path, logger: log}, nil
}

// Put atomically writes every pair in the batch. A partial failure leaves
// the store unchanged (spec §4.6: a rejected chunk must never be partially
// applied).
func (b *Backend) Put(pairs []KVPair) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed.Load() {
		return ErrClosed
	}
	if len(pairs) == 0 {
		return nil
	}

	batch := b.db.NewBatch()
	defer batch.Close()

	for _, p := range pairs {
		if err := batch.Set(p.Key, p.Value, nil); err != nil {
			return fmt.Errorf("backend: batch set: %w", err)
		}
	}
	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("backend: batch commit: %w", err)
	}
	return nil
}

// Scan returns up to limit key/value pairs from [low, high) in key order,
// after skipping the first offset matches. limit <= 0 means unbounded.
func (b *Backend) Scan(low, high []byte, offset, limit int) ([]KVPair, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed.Load() {
		return nil, ErrClosed
	}

	iter, err := b.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, fmt.Errorf("backend: new iterator: %w", err)
	}
	defer iter.Close()

	var out []KVPair
	skipped := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		key := append([]byte(nil), iter.Key()...)
		val, err := iter.ValueAndErr()
		if err != nil {
			return nil, fmt.Errorf("backend: read value: %w", err)
		}
		out = append(out, KVPair{Key: key, Value: append([]byte(nil), val...)})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("backend: iteration: %w", err)
	}
	return out, nil
}

// Count returns the number of keys in [low, high) without materializing
// their values.
func (b *Backend) Count(low, high []byte) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed.Load() {
		return 0, ErrClosed
	}

	iter, err := b.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return 0, fmt.Errorf("backend: new iterator: %w", err)
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}

// DeleteRange removes every key in [low, high), used to reclaim a qbuf's
// disk footprint once it expires (spec §4.6).
func (b *Backend) DeleteRange(low, high []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed.Load() {
		return ErrClosed
	}
	if err := b.db.DeleteRange(low, high, pebble.NoSync); err != nil {
		return fmt.Errorf("backend: delete range: %w", err)
	}
	return nil
}

// Close flushes and shuts the store down. Safe to call once; a second call
// returns ErrClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return ErrClosed
	}
	b.closed.Store(true)

	if err := b.db.Flush(); err != nil {
		b.logger.Warn("flush failed during shutdown", "error", err)
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("backend: close: %w", err)
	}
	b.logger.Info("backend closed")
	return nil
}

// Destroy closes the store (if still open) and removes its on-disk
// directory. Used by tests and by the manager's KillAll — a manager never
// carries qbuf state across restarts (spec §1 Non-goals).
func (b *Backend) Destroy() error {
	if !b.closed.Load() {
		if err := b.Close(); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("backend: destroy %s: %w", b.path, err)
	}
	return nil
}
