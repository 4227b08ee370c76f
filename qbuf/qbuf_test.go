package qbuf

import (
	"testing"
	"time"

	"github.com/INLOpen/nexusqbuf/core"
)

func testSchema() core.Schema {
	return core.Schema{
		Columns: core.CompiledSelect{{Name: "x", ReturnType: core.ColumnTypeInt}},
		OrderByKey: []core.ResolvedOrderByField{
			{Position: 0, Direction: core.Ascending, Nulls: core.NullsLast},
		},
	}
}

func rowOf(t *testing.T, v int64) core.Row {
	t.Helper()
	val, err := core.NewValue(v)
	if err != nil {
		t.Fatal(err)
	}
	return core.Row{val}
}

func TestQBufFinalizeOrdersStagedRows(t *testing.T) {
	now := time.Unix(0, 0)
	q := New(core.NewQBufRef(), testSchema(), 1, time.Minute, now)

	q.Stage([]byte{0x01, 3}, 0, 0, rowOf(t, 3))
	q.Stage([]byte{0x01, 1}, 0, 1, rowOf(t, 1))
	q.Stage([]byte{0x01, 2}, 0, 2, rowOf(t, 2))

	q.ChunksGot = 1
	q.Finalize()

	if q.Status != ServingFetches {
		t.Fatalf("expected ServingFetches, got %v", q.Status)
	}
	if len(q.FrozenRows) != 3 {
		t.Fatalf("expected 3 frozen rows, got %d", len(q.FrozenRows))
	}
	want := []int64{1, 2, 3}
	for i, w := range want {
		got, _ := q.FrozenRows[i][0].Int64()
		if got != w {
			t.Fatalf("row %d: got %d want %d", i, got, w)
		}
	}
}

func TestQBufSpilledDiscardsStaging(t *testing.T) {
	q := New(core.NewQBufRef(), testSchema(), 2, time.Minute, time.Unix(0, 0))
	q.Stage([]byte{0x01}, 0, 0, rowOf(t, 1))
	q.MarkSpilled()

	if !q.Spilled {
		t.Fatal("expected Spilled=true")
	}
	if q.StagingLen() != 0 {
		t.Fatal("expected staging to be cleared after spill")
	}
}

func TestQBufReadyNotifierFiresOnceOnFinalize(t *testing.T) {
	q := New(core.NewQBufRef(), testSchema(), 1, time.Minute, time.Unix(0, 0))

	fired := 0
	q.SetReadyNotifier(func() { fired++ })

	q.ChunksGot = 1
	q.Finalize()
	q.FireReadyNotifier()
	q.FireReadyNotifier()

	if fired != 1 {
		t.Fatalf("expected notifier to fire exactly once, got %d", fired)
	}
}

func TestQBufReadyNotifierFiresImmediatelyIfAlreadyServing(t *testing.T) {
	q := New(core.NewQBufRef(), testSchema(), 1, time.Minute, time.Unix(0, 0))
	q.ChunksGot = 1
	q.Finalize()

	fired := false
	q.SetReadyNotifier(func() { fired = true })
	if !fired {
		t.Fatal("expected notifier to fire immediately when already serving")
	}
}

func TestQBufStagedEntriesSurvivesSpill(t *testing.T) {
	q := New(core.NewQBufRef(), testSchema(), 2, time.Minute, time.Unix(0, 0))
	q.Stage([]byte{0x01, 1}, 0, 0, rowOf(t, 1))
	q.Stage([]byte{0x01, 2}, 0, 1, rowOf(t, 2))

	entries := q.StagedEntries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 staged entries, got %d", len(entries))
	}
	seen := map[int64]bool{}
	for _, e := range entries {
		if e.ChunkID != 0 {
			t.Fatalf("expected chunk_id 0, got %d", e.ChunkID)
		}
		iv, _ := e.Row[0].Int64()
		seen[iv] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected to see rows 1 and 2, got %v", entries)
	}

	// After MarkSpilled the entries already retrieved remain valid (the
	// manager copies them out before spilling); StagedEntries on a spilled
	// qbuf returns nothing further.
	q.MarkSpilled()
	if got := q.StagedEntries(); got != nil {
		t.Fatalf("expected no staged entries after spill, got %v", got)
	}
}

func TestQBufIsComplete(t *testing.T) {
	q := New(core.NewQBufRef(), testSchema(), 2, time.Minute, time.Unix(0, 0))
	if q.IsComplete() {
		t.Fatal("expected incomplete with 0/2 chunks")
	}
	q.ChunksGot = 2
	if !q.IsComplete() {
		t.Fatal("expected complete with 2/2 chunks")
	}
}
