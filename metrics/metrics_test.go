package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
)

// uniqueNamespace keeps each test's expvar registrations from colliding:
// expvar.Publish panics if the same name is registered twice.
var namespaceSeq atomic.Uint64

func uniqueNamespace(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("%s_%d", t.Name(), namespaceSeq.Add(1))
}

func TestNewManagerRegistersWithoutError(t *testing.T) {
	m, err := NewManager(uniqueNamespace(t))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Manager")
	}
}

func TestQBufCreatedAndExpiredTrackLiveCount(t *testing.T) {
	m, err := NewManager(uniqueNamespace(t))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	m.QBufCreated()
	m.QBufCreated()
	m.QBufExpired()

	if got := m.qbufsCreated.Load(); got != 2 {
		t.Fatalf("qbufsCreated = %d, want 2", got)
	}
	if got := m.qbufsExpired.Load(); got != 1 {
		t.Fatalf("qbufsExpired = %d, want 1", got)
	}
	if got := m.liveQBufs.Load(); got != 1 {
		t.Fatalf("liveQBufs = %d, want 1", got)
	}
}

func TestPutAcceptedTracksRowCount(t *testing.T) {
	m, err := NewManager(uniqueNamespace(t))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	m.PutAccepted(5)
	m.PutAccepted(3)

	if got := m.putsAccepted.Load(); got != 2 {
		t.Fatalf("putsAccepted = %d, want 2", got)
	}
	if got := m.rowsIngested.Load(); got != 8 {
		t.Fatalf("rowsIngested = %d, want 8", got)
	}
}

func TestCommandLatencyP99MsZeroBeforeAnyObservation(t *testing.T) {
	m, err := NewManager(uniqueNamespace(t))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if got := m.CommandLatencyP99Ms(); got != 0 {
		t.Fatalf("CommandLatencyP99Ms before any observation = %v, want 0", got)
	}
}

func TestCommandLatencyP99MsReflectsSlowestObservations(t *testing.T) {
	m, err := NewManager(uniqueNamespace(t))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	for i := 0; i < 99; i++ {
		m.ObserveCommandLatency(0.001)
	}
	m.ObserveCommandLatency(1.0)

	// Only 1 of 100 observations is slow, so the interpolated p99 lies just
	// above the 1ms bulk (about 11ms), well short of the 1000ms outlier.
	p99 := m.CommandLatencyP99Ms()
	if p99 <= 1 || p99 >= 100 {
		t.Fatalf("expected p99 to rise above the 1ms bulk but stay below 100ms, got %v ms", p99)
	}
}

func TestSetTotalSizeBytesOverwrites(t *testing.T) {
	m, err := NewManager(uniqueNamespace(t))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	m.SetTotalSizeBytes(100)
	m.SetTotalSizeBytes(42)

	if got := m.totalSizeBytes.Load(); got != 42 {
		t.Fatalf("totalSizeBytes = %d, want 42", got)
	}
}
