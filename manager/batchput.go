package manager

import (
	"github.com/INLOpen/nexusqbuf/backend"
	"github.com/INLOpen/nexusqbuf/core"
	"github.com/INLOpen/nexusqbuf/keycodec"
	"github.com/INLOpen/nexusqbuf/qbuf"
)

// kvPairsPool reuses the []backend.KVPair slices built on every spilled
// batch_put: one qbuf's chunk stream spills at a roughly constant rate, so
// the backing array from the previous call is almost always big enough for
// the next one.
var kvPairsPool = core.NewGenericPool(func() []backend.KVPair {
	return make([]backend.KVPair, 0, 64)
})

// handleBatchPut implements the chunk ingestion path (spec §4.4): admission
// against the hard watermark, then either sorted in-memory staging or a
// write-through to the shared backend, monotonic once spilled.
func (m *Manager) handleBatchPut(cmd batchPutCmd) {
	if err := m.notReady(); err != nil {
		cmd.reply <- err
		return
	}

	q, ok := m.qbufs[cmd.ref]
	if !ok {
		cmd.reply <- core.ErrBadRef
		return
	}
	if q.Status != qbuf.CollectingChunks {
		cmd.reply <- core.ErrAlreadyFinished
		return
	}

	var chunkBytes int64
	for _, row := range cmd.rows {
		chunkBytes += row.SizeBytes()
	}

	if m.totalSize+chunkBytes > m.opts.HardWatermark {
		if m.opts.Metrics != nil {
			m.opts.Metrics.PutRejected()
		}
		cmd.reply <- core.ErrQuotaExceeded
		return
	}

	chunkID := q.ChunksGot
	useInmem := !q.Spilled && m.headroom.CanAfford(q.SizeBytes, chunkBytes)

	if useInmem {
		for i, row := range cmd.rows {
			sortKey, err := keycodec.EncodeSortKey(row, q.Schema.OrderByKey)
			if err != nil {
				cmd.reply <- err
				return
			}
			q.Stage(sortKey, chunkID, uint64(i), row)
		}
	} else {
		pairs := kvPairsPool.Get()[:0]

		// First spill: everything staged so far is about to lose its only
		// home (Stage keeps rows solely in the in-memory skiplist), so it
		// must move to the backend alongside this chunk or fetches after a
		// spill would silently drop the rows ingested before it (spec §7
		// "spill equivalence").
		if !q.Spilled {
			flushPairs, err := stagedPairs(cmd.ref, q)
			if err != nil {
				cmd.reply <- err
				return
			}
			pairs = append(pairs, flushPairs...)
		}

		for i, row := range cmd.rows {
			sortKey, err := keycodec.EncodeSortKey(row, q.Schema.OrderByKey)
			if err != nil {
				cmd.reply <- err
				return
			}
			payload, err := keycodec.EncodeRowPayload(row)
			if err != nil {
				cmd.reply <- err
				return
			}
			pairs = append(pairs, backend.KVPair{
				Key:   keycodec.CompositeKey(cmd.ref, sortKey, chunkID, uint64(i)),
				Value: payload,
			})
		}
		putErr := m.be.Put(pairs)
		kvPairsPool.Put(pairs)
		if putErr != nil {
			if m.opts.Metrics != nil {
				m.opts.Metrics.PutRejected()
			}
			cmd.reply <- &core.BackendPutFailedError{Ref: cmd.ref, Reason: putErr}
			return
		}
		if !q.Spilled && m.opts.Metrics != nil {
			m.opts.Metrics.Spilled()
		}
		q.MarkSpilled()
	}

	q.SizeBytes += chunkBytes
	q.ChunksGot++
	q.TotalRecords += uint64(len(cmd.rows))
	m.totalSize += chunkBytes

	if q.IsComplete() {
		q.Finalize()
		q.FireReadyNotifier()
	}
	q.Touch(m.opts.Clock.Now())

	if m.opts.Metrics != nil {
		m.opts.Metrics.PutAccepted(len(cmd.rows))
		m.opts.Metrics.SetTotalSizeBytes(m.totalSize)
	}
	cmd.reply <- nil
}

// stagedPairs re-encodes every row a qbuf is currently holding in memory as
// backend key/value pairs, preserving the chunk_id/row_index it was staged
// with so the composite key ordering is unaffected by which chunk actually
// triggered the spill.
func stagedPairs(ref core.QBufRef, q *qbuf.QBuf) ([]backend.KVPair, error) {
	entries := q.StagedEntries()
	pairs := make([]backend.KVPair, len(entries))
	for i, e := range entries {
		payload, err := keycodec.EncodeRowPayload(e.Row)
		if err != nil {
			return nil, err
		}
		pairs[i] = backend.KVPair{
			Key:   keycodec.CompositeKey(ref, e.SortKey, e.ChunkID, e.RowIndex),
			Value: payload,
		}
	}
	return pairs, nil
}
