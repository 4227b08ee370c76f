package manager

import (
	"github.com/INLOpen/nexusqbuf/core"
	"github.com/INLOpen/nexusqbuf/keycodec"
	"github.com/INLOpen/nexusqbuf/qbuf"
)

// handleFetch implements offset/limit reads (spec §4.3): collecting qbufs
// are never readable; a served qbuf is sliced from memory or scanned from
// the backend depending on whether it ever spilled.
func (m *Manager) handleFetch(cmd fetchCmd) {
	if err := m.notReady(); err != nil {
		cmd.reply <- fetchResult{err: err}
		return
	}

	q, ok := m.qbufs[cmd.ref]
	if !ok {
		cmd.reply <- fetchResult{err: core.ErrBadRef}
		return
	}
	if q.Status == qbuf.CollectingChunks {
		cmd.reply <- fetchResult{err: core.ErrNotReady}
		return
	}

	colNames := make([]string, len(q.Schema.Columns))
	colTypes := make([]core.ColumnType, len(q.Schema.Columns))
	for i, c := range q.Schema.Columns {
		colNames[i] = c.Name
		colTypes[i] = c.ReturnType
	}

	var rows []core.Row
	if q.Spilled {
		low, high := keycodec.DeleteAllPrefix(cmd.ref)
		pairs, err := m.be.Scan(low, high, cmd.offset, cmd.limit)
		if err != nil {
			cmd.reply <- fetchResult{err: err}
			return
		}
		rows = make([]core.Row, len(pairs))
		for i, p := range pairs {
			row, err := keycodec.DecodeRowPayload(p.Value)
			if err != nil {
				cmd.reply <- fetchResult{err: err}
				return
			}
			rows[i] = row
		}
	} else {
		rows = sliceRows(q.FrozenRows, cmd.offset, cmd.limit)
	}

	if q.Status == qbuf.ServingFetches {
		q.Touch(m.opts.Clock.Now())
	}
	if m.opts.Metrics != nil {
		m.opts.Metrics.RowsFetched(len(rows))
	}
	cmd.reply <- fetchResult{colNames: colNames, colTypes: colTypes, rows: rows}
}

// sliceRows applies offset/limit to an already-ordered slice. limit <= 0
// means unlimited, matching backend.Scan's convention.
func sliceRows(rows []core.Row, offset, limit int) []core.Row {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return nil
	}
	end := len(rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]core.Row, end-offset)
	copy(out, rows[offset:end])
	return out
}
