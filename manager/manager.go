// Package manager implements the qbuf table's single serialized actor: the
// only goroutine that ever reads or mutates the qbuf map, aggregate size
// accounting, or the shared backend handle (spec §4.3, §5).
package manager

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/INLOpen/nexusqbuf/backend"
	"github.com/INLOpen/nexusqbuf/core"
	"github.com/INLOpen/nexusqbuf/qbuf"
)

// initStatus tracks whether the shared backend has finished opening.
type initStatus byte

const (
	initInProgress initStatus = iota
	initReady
	initFailed
)

// Manager owns every qbuf in the process. Construct with New; all public
// methods are safe to call from any goroutine — each submits one command to
// the actor and blocks for its reply.
type Manager struct {
	opts   Options
	logger *slog.Logger

	cmdCh chan any

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	// --- actor-owned state; touched only inside run() ---
	status  initStatus
	initErr error
	be      *backend.Backend

	qbufs map[core.QBufRef]*qbuf.QBuf
	order []core.QBufRef

	totalSize        int64
	maxQueryDataSize int64
	headroom         *memoryHeadroom
}

// New constructs a Manager and starts its actor goroutine, its lifecycle
// ticker, and the asynchronous backend-init task. Until backend init
// completes, user-facing commands return ErrNotReady; if init fails, they
// return an InitFailedError instead; see spec §4.6.
func New(opts Options) *Manager {
	opts = opts.withDefaults()

	m := &Manager{
		opts:             opts,
		logger:           opts.Logger.With("component", "qbuf_manager"),
		cmdCh:            make(chan any, 64),
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
		status:           initInProgress,
		qbufs:            make(map[core.QBufRef]*qbuf.QBuf),
		maxQueryDataSize: opts.MaxQueryDataSize,
		headroom:         newMemoryHeadroom(opts.InmemMax),
	}

	go m.run()
	go m.initBackend()
	go m.tickLoop()

	return m
}

// backendOptions derives backend.Options from the manager's tunables
// (spec §6: write-buffer≈10MiB, compression=off).
func (m *Manager) backendOptions() backend.Options {
	opts := backend.DefaultOptions()
	opts.Logger = m.logger
	return opts
}

// initBackend performs the long-running open sequence outside the actor
// (spec §5 suspension points): wipe root_path, recreate it, open the store,
// then post the outcome back through the serialized command queue.
func (m *Manager) initBackend() {
	if err := os.RemoveAll(m.opts.RootPath); err != nil {
		m.postBackendResult(nil, fmt.Errorf("manager: wipe root path: %w", err))
		return
	}
	if err := os.MkdirAll(m.opts.RootPath, 0o755); err != nil {
		m.postBackendResult(nil, fmt.Errorf("manager: recreate root path: %w", err))
		return
	}
	be, err := backend.Open(m.opts.RootPath, m.backendOptions())
	if err != nil {
		m.postBackendResult(nil, err)
		return
	}
	m.postBackendResult(be, nil)
}

func (m *Manager) postBackendResult(be *backend.Backend, err error) {
	select {
	case m.cmdCh <- backendInitResultCmd{backend: be, err: err}:
	case <-m.stopCh:
	}
}

func (m *Manager) tickLoop() {
	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case m.cmdCh <- tickCmd{now: m.opts.Clock.Now()}:
			case <-m.stopCh:
				return
			}
		case <-m.stopCh:
			return
		}
	}
}

// Close stops the ticker and actor loop and releases the backend. Safe to
// call more than once.
func (m *Manager) Close() error {
	var err error
	m.stopOnce.Do(func() {
		close(m.stopCh)
		<-m.doneCh
		if m.be != nil {
			err = m.be.Close()
		}
	})
	return err
}

// send submits cmd to the actor and blocks for reply on the caller-provided
// channel, honoring only manager shutdown (there is no per-command
// cancellation, spec §5).
func send[T any](m *Manager, cmd any, reply <-chan T) T {
	select {
	case m.cmdCh <- cmd:
	case <-m.stopCh:
		var zero T
		return zero
	}
	select {
	case r := <-reply:
		return r
	case <-m.stopCh:
		var zero T
		return zero
	}
}

// GetOrCreate allocates a new qbuf for a compiled query (spec §4.3).
// Duplicate-query detection is not implemented (spec §9 open question) —
// every call returns a freshly created qbuf.
func (m *Manager) GetOrCreate(nSubqueries uint64, sel core.CompiledSelect, orderBy core.CompiledOrderBy, ddl core.DDL, expireAfter time.Duration) (core.QBufRef, bool, error) {
	reply := make(chan getOrCreateResult, 1)
	res := send[getOrCreateResult](m, getOrCreateCmd{
		nSubqueries:     nSubqueries,
		compiledSelect:  sel,
		compiledOrderBy: orderBy,
		ddl:             ddl,
		expireAfter:     expireAfter,
		reply:           reply,
	}, reply)
	return res.ref, res.created, res.err
}

// Delete immediately removes a qbuf, wherever its data lives.
func (m *Manager) Delete(ref core.QBufRef) error {
	reply := make(chan error, 1)
	return send[error](m, deleteCmd{ref: ref, reply: reply}, reply)
}

// BatchPut appends one chunk of rows to a qbuf (spec §4.4).
func (m *Manager) BatchPut(ref core.QBufRef, rows []core.Row) error {
	reply := make(chan error, 1)
	return send[error](m, batchPutCmd{ref: ref, rows: rows, reply: reply}, reply)
}

// SetReadyNotifier registers a one-shot callback for when ref becomes
// ready to serve fetches (spec §4.3).
func (m *Manager) SetReadyNotifier(ref core.QBufRef, fn func()) error {
	reply := make(chan error, 1)
	return send[error](m, setReadyNotifierCmd{ref: ref, fn: fn, reply: reply}, reply)
}

// Fetch returns column metadata plus a page of rows (spec §4.3).
func (m *Manager) Fetch(ref core.QBufRef, limit, offset int) ([]string, []core.ColumnType, []core.Row, error) {
	reply := make(chan fetchResult, 1)
	res := send[fetchResult](m, fetchCmd{ref: ref, limit: limit, offset: offset, reply: reply}, reply)
	return res.colNames, res.colTypes, res.rows, res.err
}

// GetExpiry returns the current serving-phase idle timeout for ref.
func (m *Manager) GetExpiry(ref core.QBufRef) (time.Duration, error) {
	reply := make(chan getExpiryResult, 1)
	res := send[getExpiryResult](m, getExpiryCmd{ref: ref, reply: reply}, reply)
	return res.expireAfter, res.err
}

// SetExpiry overrides the serving-phase idle timeout for ref.
func (m *Manager) SetExpiry(ref core.QBufRef, expireAfter time.Duration) error {
	reply := make(chan error, 1)
	return send[error](m, setExpiryCmd{ref: ref, expireAfter: expireAfter, reply: reply}, reply)
}

// GetMaxQueryDataSize returns the global tunable.
func (m *Manager) GetMaxQueryDataSize() int64 {
	reply := make(chan int64, 1)
	return send[int64](m, getMaxQueryDataSizeCmd{reply: reply}, reply)
}

// SetMaxQueryDataSize overrides the global tunable.
func (m *Manager) SetMaxQueryDataSize(size int64) {
	reply := make(chan struct{}, 1)
	send[struct{}](m, setMaxQueryDataSizeCmd{size: size, reply: reply}, reply)
}

// KillAll drops every qbuf and resets the shared backend (spec §4.3).
func (m *Manager) KillAll() error {
	reply := make(chan error, 1)
	return send[error](m, killAllCmd{reply: reply}, reply)
}

// BackendExpiryRequest is the handshake endpoint the backend calls to
// confirm a qbuf's bytes may be dropped (spec §4.3, §4.6).
func (m *Manager) BackendExpiryRequest(bucket string, ref core.QBufRef) error {
	reply := make(chan error, 1)
	return send[error](m, backendExpiryRequestCmd{bucket: bucket, ref: ref, reply: reply}, reply)
}
