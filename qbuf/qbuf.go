// Package qbuf holds the in-memory state of a single query buffer: its
// status, progress counters, sorted in-memory staging list, and whether it
// has spilled to the shared backend (spec §3). Every method
// here is called only from the owning manager's single actor goroutine —
// QBuf carries no internal locking.
package qbuf

import (
	"time"

	"github.com/INLOpen/nexusqbuf/core"
	"github.com/INLOpen/skiplist"
)

// Status is one of the four lifecycle states a QBuf moves through.
type Status byte

const (
	CollectingChunks Status = iota
	ServingFetches
	Expiring
	Expired
)

func (s Status) String() string {
	switch s {
	case CollectingChunks:
		return "collecting_chunks"
	case ServingFetches:
		return "serving_fetches"
	case Expiring:
		return "expiring"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// stagingKey orders in-memory staging entries by (sort_key, chunk_id,
// row_index), matching the tiebreak order the composite storage key
// encodes (spec §4.2). It implements the comparator skiplist.go expects.
type stagingKey struct {
	sortKey  []byte
	chunkID  uint64
	rowIndex uint64
}

func compareStagingKeys(a, b *stagingKey) int {
	if c := compareBytes(a.sortKey, b.sortKey); c != 0 {
		return c
	}
	if a.chunkID != b.chunkID {
		if a.chunkID < b.chunkID {
			return -1
		}
		return 1
	}
	if a.rowIndex != b.rowIndex {
		if a.rowIndex < b.rowIndex {
			return -1
		}
		return 1
	}
	return 0
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// QBuf is one query buffer's entire in-process state.
type QBuf struct {
	Ref    core.QBufRef
	Schema core.Schema
	Status Status

	ExpireAfter time.Duration

	ChunksGot  uint64
	ChunksNeed uint64

	TotalRecords uint64
	SizeBytes    int64

	LastAccessed time.Time
	CreatedAt    time.Time

	// Spilled is true once any chunk of this qbuf has been written to the
	// shared backend. Monotonic: never reverts to false (spec §4.4).
	Spilled bool

	// staging holds (sort_key, chunk_id, row_index) -> row while
	// CollectingChunks and not yet spilled. Nil once spilled or finalized.
	staging *skiplist.SkipList[*stagingKey, core.Row]

	// FrozenRows holds the final row order once the qbuf has finished
	// collecting without ever spilling: the composite keys are stripped,
	// leaving a plain ordered slice for O(1) Fetch slicing (spec §3
	// "ordered sequence of rows (keys stripped) once serving_fetches").
	FrozenRows []core.Row

	readyNotifier func()
	notifierFired bool
}

// New constructs a QBuf in CollectingChunks status, ready to accept chunks.
func New(ref core.QBufRef, schema core.Schema, chunksNeed uint64, expireAfter time.Duration, now time.Time) *QBuf {
	return &QBuf{
		Ref:          ref,
		Schema:       schema,
		Status:       CollectingChunks,
		ExpireAfter:  expireAfter,
		ChunksNeed:   chunksNeed,
		LastAccessed: now,
		CreatedAt:    now,
		staging:      skiplist.NewWithComparator[*stagingKey, core.Row](compareStagingKeys),
	}
}

// Stage inserts one row into the in-memory sorted staging list. Only valid
// while the qbuf has not spilled; callers must check Spilled first.
func (q *QBuf) Stage(sortKey []byte, chunkID, rowIndex uint64, row core.Row) {
	q.staging.Insert(&stagingKey{sortKey: sortKey, chunkID: chunkID, rowIndex: rowIndex}, row)
}

// StagingLen returns the number of rows currently held in memory.
func (q *QBuf) StagingLen() int {
	if q.staging == nil {
		return 0
	}
	return q.staging.Len()
}

// StagedEntry is one row currently held in a QBuf's in-memory staging list,
// exposed for callers that need to flush it elsewhere (the manager's spill
// path) without depending on the unexported staging key type.
type StagedEntry struct {
	SortKey  []byte
	ChunkID  uint64
	RowIndex uint64
	Row      core.Row
}

// StagedEntries returns every row currently held in memory, in the staging
// list's (sort_key, chunk_id, row_index) order.
func (q *QBuf) StagedEntries() []StagedEntry {
	if q.staging == nil {
		return nil
	}
	entries := make([]StagedEntry, 0, q.staging.Len())
	it := q.staging.NewIterator()
	for it.Next() {
		k := it.Key()
		entries = append(entries, StagedEntry{
			SortKey:  k.sortKey,
			ChunkID:  k.chunkID,
			RowIndex: k.rowIndex,
			Row:      it.Value(),
		})
	}
	return entries
}

// MarkSpilled records that this qbuf now has data in the shared backend.
// The in-memory staging list, if any, is discarded — once spilled, every
// row (past and future) lives on disk (spec §4.4).
func (q *QBuf) MarkSpilled() {
	q.Spilled = true
	q.staging = nil
}

// Finalize transitions the qbuf out of CollectingChunks once the last
// expected chunk has been accepted. If the qbuf never spilled, the staging
// list is drained in sorted order into FrozenRows and discarded.
func (q *QBuf) Finalize() {
	q.Status = ServingFetches
	if !q.Spilled && q.staging != nil {
		rows := make([]core.Row, 0, q.staging.Len())
		it := q.staging.NewIterator()
		for it.Next() {
			rows = append(rows, it.Value())
		}
		q.FrozenRows = rows
		q.staging = nil
	}
}

// IsComplete reports whether every expected chunk has arrived.
func (q *QBuf) IsComplete() bool {
	return q.ChunksGot == q.ChunksNeed
}

// Touch records activity against the qbuf's idle clock.
func (q *QBuf) Touch(now time.Time) {
	q.LastAccessed = now
}

// SetReadyNotifier registers fn to be invoked once, the moment the qbuf
// reaches ServingFetches. If it is already serving, fn fires immediately
// and is not stored (spec §4.3 set_ready_notifier).
func (q *QBuf) SetReadyNotifier(fn func()) {
	if q.Status == ServingFetches {
		if fn != nil {
			fn()
		}
		return
	}
	q.readyNotifier = fn
}

// FireReadyNotifier invokes and clears the registered notifier, if any and
// if it has not already fired. Called by the manager immediately after a
// batch_put transitions the qbuf to ServingFetches.
func (q *QBuf) FireReadyNotifier() {
	if q.notifierFired || q.readyNotifier == nil {
		return
	}
	q.notifierFired = true
	fn := q.readyNotifier
	q.readyNotifier = nil
	fn()
}
