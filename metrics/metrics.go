// Package metrics exposes the manager's counters and command-latency
// percentiles via expvar, and an optional debug HTTP surface for pprof and
// statsviz. Nothing here is on the actor's critical path: every update goes
// through atomics or its own mutex, never the manager's command channel.
package metrics

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/caio/go-tdigest/v4"
)

// Manager aggregates the process-wide qbuf counters (spec §3 manager state,
// §8 completeness property) for external observability. All fields are
// safe for concurrent use.
type Manager struct {
	qbufsCreated   atomic.Uint64
	qbufsExpired   atomic.Uint64
	quotaRejected  atomic.Uint64
	putsAccepted   atomic.Uint64
	putsRejected   atomic.Uint64
	rowsIngested   atomic.Uint64
	rowsFetched    atomic.Uint64
	spillsTotal    atomic.Uint64
	liveQBufs      atomic.Int64
	totalSizeBytes atomic.Int64

	mu       sync.Mutex
	commandTD *tdigest.TDigest
}

// NewManager creates a metrics.Manager and registers its expvar variables
// under the given namespace. Registering twice under the same namespace
// panics (expvar's own behavior), matching the once-per-process lifetime of
// a qbuf manager.
func NewManager(namespace string) (*Manager, error) {
	td, err := tdigest.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: new tdigest: %w", err)
	}
	m := &Manager{commandTD: td}

	expvar.Publish(namespace+"_qbufs_created_total", expvar.Func(func() any { return m.qbufsCreated.Load() }))
	expvar.Publish(namespace+"_qbufs_expired_total", expvar.Func(func() any { return m.qbufsExpired.Load() }))
	expvar.Publish(namespace+"_quota_rejected_total", expvar.Func(func() any { return m.quotaRejected.Load() }))
	expvar.Publish(namespace+"_puts_accepted_total", expvar.Func(func() any { return m.putsAccepted.Load() }))
	expvar.Publish(namespace+"_puts_rejected_total", expvar.Func(func() any { return m.putsRejected.Load() }))
	expvar.Publish(namespace+"_rows_ingested_total", expvar.Func(func() any { return m.rowsIngested.Load() }))
	expvar.Publish(namespace+"_rows_fetched_total", expvar.Func(func() any { return m.rowsFetched.Load() }))
	expvar.Publish(namespace+"_spills_total", expvar.Func(func() any { return m.spillsTotal.Load() }))
	expvar.Publish(namespace+"_live_qbufs", expvar.Func(func() any { return m.liveQBufs.Load() }))
	expvar.Publish(namespace+"_total_size_bytes", expvar.Func(func() any { return m.totalSizeBytes.Load() }))
	expvar.Publish(namespace+"_command_latency_p99_ms", expvar.Func(func() any { return m.CommandLatencyP99Ms() }))

	return m, nil
}

func (m *Manager) QBufCreated()                { m.qbufsCreated.Add(1); m.liveQBufs.Add(1) }
func (m *Manager) QBufExpired()                { m.qbufsExpired.Add(1); m.liveQBufs.Add(-1) }
func (m *Manager) QuotaRejected()              { m.quotaRejected.Add(1) }
func (m *Manager) PutAccepted(rows int)        { m.putsAccepted.Add(1); m.rowsIngested.Add(uint64(rows)) }
func (m *Manager) PutRejected()                { m.putsRejected.Add(1) }
func (m *Manager) RowsFetched(n int)           { m.rowsFetched.Add(uint64(n)) }
func (m *Manager) Spilled()                    { m.spillsTotal.Add(1) }
func (m *Manager) SetTotalSizeBytes(n int64)   { m.totalSizeBytes.Store(n) }

// ObserveCommandLatency records how long one actor command took to process,
// feeding the p99 exposed via expvar.
func (m *Manager) ObserveCommandLatency(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.commandTD.AddWeighted(seconds*1000, 1)
}

// CommandLatencyP99Ms returns the current p99 command-processing latency in
// milliseconds, or 0 before any command has been observed.
func (m *Manager) CommandLatencyP99Ms() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commandTD.Count() == 0 {
		return 0
	}
	return m.commandTD.Quantile(0.99)
}
