package manager

import (
	"time"

	"github.com/INLOpen/nexusqbuf/core"
	"github.com/INLOpen/nexusqbuf/keycodec"
	"github.com/INLOpen/nexusqbuf/qbuf"
)

// run is the actor loop: the only place that ever touches m.qbufs,
// m.totalSize, or m.be. Every command is processed to completion before
// the next is dequeued (spec §5).
func (m *Manager) run() {
	defer close(m.doneCh)
	for {
		select {
		case raw := <-m.cmdCh:
			m.dispatchTimed(raw)
		case <-m.stopCh:
			m.drain()
			return
		}
	}
}

// dispatchTimed wraps dispatch with a command-latency observation. Internal
// bookkeeping commands (ticks, backend-init results) are excluded — the
// latency figure describes user-facing request handling.
func (m *Manager) dispatchTimed(raw any) {
	if m.opts.Metrics == nil {
		m.dispatch(raw)
		return
	}
	switch raw.(type) {
	case tickCmd, backendInitResultCmd:
		m.dispatch(raw)
		return
	}
	start := time.Now()
	m.dispatch(raw)
	m.opts.Metrics.ObserveCommandLatency(time.Since(start).Seconds())
}

// drain answers any commands still queued at shutdown with a definitive
// reply so callers blocked in send() are released promptly, then exits.
func (m *Manager) drain() {
	for {
		select {
		case raw := <-m.cmdCh:
			m.dispatch(raw)
		default:
			return
		}
	}
}

func (m *Manager) dispatch(raw any) {
	switch cmd := raw.(type) {
	case getOrCreateCmd:
		m.handleGetOrCreate(cmd)
	case deleteCmd:
		m.handleDelete(cmd)
	case batchPutCmd:
		m.handleBatchPut(cmd)
	case setReadyNotifierCmd:
		m.handleSetReadyNotifier(cmd)
	case fetchCmd:
		m.handleFetch(cmd)
	case getExpiryCmd:
		m.handleGetExpiry(cmd)
	case setExpiryCmd:
		m.handleSetExpiry(cmd)
	case getMaxQueryDataSizeCmd:
		m.handleGetMaxQueryDataSize(cmd)
	case setMaxQueryDataSizeCmd:
		m.handleSetMaxQueryDataSize(cmd)
	case killAllCmd:
		m.handleKillAll(cmd)
	case backendExpiryRequestCmd:
		m.handleBackendExpiryRequest(cmd)
	case tickCmd:
		m.handleTick(cmd.now)
	case backendInitResultCmd:
		m.handleBackendInitResult(cmd)
	}
}

// notReady returns the error every user-facing command must return while
// the backend has not finished (or has failed) initialization (spec §4.3:
// "before status = ready, every request returns NotReady").
func (m *Manager) notReady() error {
	switch m.status {
	case initInProgress:
		return core.ErrNotReady
	case initFailed:
		return &core.InitFailedError{Reason: m.initErr}
	default:
		return nil
	}
}

func (m *Manager) handleBackendInitResult(cmd backendInitResultCmd) {
	if cmd.err != nil {
		m.status = initFailed
		m.initErr = cmd.err
		m.logger.Error("backend init failed", "error", cmd.err)
		return
	}
	m.be = cmd.backend
	m.status = initReady
	m.logger.Info("backend ready")
}

func (m *Manager) handleGetOrCreate(cmd getOrCreateCmd) {
	if err := m.notReady(); err != nil {
		cmd.reply <- getOrCreateResult{err: err}
		return
	}
	if m.totalSize > m.opts.SoftWatermark {
		if m.opts.Metrics != nil {
			m.opts.Metrics.QuotaRejected()
		}
		cmd.reply <- getOrCreateResult{err: core.ErrQuotaExceeded}
		return
	}

	resolved, err := core.ResolveOrderBy(cmd.compiledOrderBy, cmd.compiledSelect)
	if err != nil {
		cmd.reply <- getOrCreateResult{err: err}
		return
	}

	expireAfter := cmd.expireAfter
	if expireAfter <= 0 {
		expireAfter = m.opts.defaultExpire()
	}

	ref := core.NewQBufRef()
	schema := core.Schema{Columns: cmd.compiledSelect, OrderByKey: resolved}
	q := qbuf.New(ref, schema, cmd.nSubqueries, expireAfter, m.opts.Clock.Now())

	m.qbufs[ref] = q
	m.order = append(m.order, ref)

	if m.opts.Metrics != nil {
		m.opts.Metrics.QBufCreated()
	}
	cmd.reply <- getOrCreateResult{ref: ref, created: true}
}

func (m *Manager) handleDelete(cmd deleteCmd) {
	if err := m.notReady(); err != nil {
		cmd.reply <- err
		return
	}
	q, ok := m.qbufs[cmd.ref]
	if !ok {
		cmd.reply <- core.ErrBadRef
		return
	}
	m.removeQBuf(cmd.ref, q)
	cmd.reply <- nil
}

func (m *Manager) removeQBuf(ref core.QBufRef, q *qbuf.QBuf) {
	m.totalSize -= q.SizeBytes
	delete(m.qbufs, ref)
	for i, r := range m.order {
		if r == ref {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if q.Spilled && m.be != nil {
		low, high := keycodec.DeleteAllPrefix(ref)
		if err := m.be.DeleteRange(low, high); err != nil {
			m.logger.Warn("failed to reclaim spilled qbuf range", "ref", ref.String(), "error", err)
		}
	}
}

func (m *Manager) handleSetReadyNotifier(cmd setReadyNotifierCmd) {
	if err := m.notReady(); err != nil {
		cmd.reply <- err
		return
	}
	q, ok := m.qbufs[cmd.ref]
	if !ok {
		cmd.reply <- core.ErrBadRef
		return
	}
	q.SetReadyNotifier(cmd.fn)
	cmd.reply <- nil
}

func (m *Manager) handleGetExpiry(cmd getExpiryCmd) {
	if err := m.notReady(); err != nil {
		cmd.reply <- getExpiryResult{err: err}
		return
	}
	q, ok := m.qbufs[cmd.ref]
	if !ok {
		cmd.reply <- getExpiryResult{err: core.ErrBadRef}
		return
	}
	cmd.reply <- getExpiryResult{expireAfter: q.ExpireAfter}
}

func (m *Manager) handleSetExpiry(cmd setExpiryCmd) {
	if err := m.notReady(); err != nil {
		cmd.reply <- err
		return
	}
	q, ok := m.qbufs[cmd.ref]
	if !ok {
		cmd.reply <- core.ErrBadRef
		return
	}
	q.ExpireAfter = cmd.expireAfter
	cmd.reply <- nil
}

func (m *Manager) handleGetMaxQueryDataSize(cmd getMaxQueryDataSizeCmd) {
	if err := m.notReady(); err != nil {
		cmd.reply <- 0
		return
	}
	cmd.reply <- m.maxQueryDataSize
}

func (m *Manager) handleSetMaxQueryDataSize(cmd setMaxQueryDataSizeCmd) {
	if err := m.notReady(); err != nil {
		cmd.reply <- struct{}{}
		return
	}
	m.maxQueryDataSize = cmd.size
	cmd.reply <- struct{}{}
}

// handleKillAll is exempt from the notReady gate: it is the only way to
// recover a manager stuck in init_failed (it re-runs backend init), so it
// must be reachable in every status.
func (m *Manager) handleKillAll(cmd killAllCmd) {
	if m.be != nil {
		if err := m.be.Destroy(); err != nil {
			m.logger.Warn("kill_all: backend destroy failed", "error", err)
		}
		m.be = nil
	}
	m.qbufs = make(map[core.QBufRef]*qbuf.QBuf)
	m.order = nil
	m.totalSize = 0
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetTotalSizeBytes(0)
	}

	m.status = initInProgress
	go m.initBackend()
	cmd.reply <- nil
}

func (m *Manager) handleBackendExpiryRequest(cmd backendExpiryRequestCmd) {
	if cmd.bucket != keycodec.BucketTag {
		cmd.reply <- core.ErrNotAQbuf
		return
	}
	q, ok := m.qbufs[cmd.ref]
	if !ok {
		cmd.reply <- core.ErrBadRef
		return
	}
	if q.Status != qbuf.Expiring {
		cmd.reply <- core.ErrBadRef
		return
	}
	q.Status = qbuf.Expired
	cmd.reply <- nil
}

func (m *Manager) handleTick(now time.Time) {
	// Sweep in insertion order; iterate a copy since removeQBuf edits m.order.
	for _, ref := range append([]core.QBufRef(nil), m.order...) {
		q := m.qbufs[ref]
		switch q.Status {
		case qbuf.Expired:
			m.removeQBuf(ref, q)
			if m.opts.Metrics != nil {
				m.opts.Metrics.QBufExpired()
			}
		case qbuf.CollectingChunks:
			if now.Sub(q.LastAccessed) > m.opts.incompleteRelease() {
				q.Status = qbuf.Expiring
			}
		case qbuf.ServingFetches:
			if now.Sub(q.LastAccessed) > q.ExpireAfter {
				q.Status = qbuf.Expiring
			}
		case qbuf.Expiring:
			// awaiting the backend expiry handshake.
		}
	}

	var total int64
	for _, q := range m.qbufs {
		total += q.SizeBytes
	}
	m.totalSize = total
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetTotalSizeBytes(total)
	}
}
