package manager

import (
	"time"

	"github.com/INLOpen/nexusqbuf/backend"
	"github.com/INLOpen/nexusqbuf/core"
)

// Every command below is a self-contained request/reply pair, submitted to
// the manager's single command channel and processed to completion by the
// actor goroutine before the next one is dequeued (spec §5). tickCmd and
// backendInitResultCmd are internal — they never cross the exported API.

type getOrCreateCmd struct {
	nSubqueries     uint64
	compiledSelect  core.CompiledSelect
	compiledOrderBy core.CompiledOrderBy
	ddl             core.DDL
	expireAfter     time.Duration
	reply           chan getOrCreateResult
}

type getOrCreateResult struct {
	ref     core.QBufRef
	created bool
	err     error
}

type deleteCmd struct {
	ref   core.QBufRef
	reply chan error
}

type batchPutCmd struct {
	ref   core.QBufRef
	rows  []core.Row
	reply chan error
}

type setReadyNotifierCmd struct {
	ref   core.QBufRef
	fn    func()
	reply chan error
}

type fetchCmd struct {
	ref    core.QBufRef
	limit  int
	offset int
	reply  chan fetchResult
}

type fetchResult struct {
	colNames []string
	colTypes []core.ColumnType
	rows     []core.Row
	err      error
}

type getExpiryCmd struct {
	ref   core.QBufRef
	reply chan getExpiryResult
}

type getExpiryResult struct {
	expireAfter time.Duration
	err         error
}

type setExpiryCmd struct {
	ref         core.QBufRef
	expireAfter time.Duration
	reply       chan error
}

type getMaxQueryDataSizeCmd struct {
	reply chan int64
}

type setMaxQueryDataSizeCmd struct {
	size  int64
	reply chan struct{}
}

type killAllCmd struct {
	reply chan error
}

type backendExpiryRequestCmd struct {
	bucket string
	ref    core.QBufRef
	reply  chan error
}

// tickCmd carries the lifecycle sweep into the same serialized queue as
// every other command (spec §4.5: "ticks are never reordered with
// commands").
type tickCmd struct {
	now time.Time
}

// backendInitResultCmd is posted by the async backend-init goroutine
// (spec §5 suspension points) once open/wipe completes.
type backendInitResultCmd struct {
	backend *backend.Backend
	err     error
}
