package manager

import (
	"log/slog"
	"time"

	"github.com/INLOpen/nexusqbuf/metrics"
)

// Clock abstracts time.Now so tests can drive the lifecycle ticker
// deterministically without real sleeps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Manager at construction (spec §3 manager state,
// §6 configuration tunables).
type Options struct {
	// RootPath is the directory the shared backend store lives under. It
	// is wiped and recreated on every manager startup (spec §3 invariant:
	// "the backend KV store is cleared on manager startup").
	RootPath string

	MaxQueryDataSize    int64
	SoftWatermark       int64
	HardWatermark       int64
	InmemMax            int64
	DefaultExpireMs     int64
	IncompleteReleaseMs int64

	// TickInterval overrides the lifecycle ticker's period. Defaults to 1s
	// (spec §4.5).
	TickInterval time.Duration

	// Clock overrides time.Now, for tests. Defaults to the real wall clock.
	Clock Clock

	Logger  *slog.Logger
	Metrics *metrics.Manager
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.DefaultExpireMs <= 0 {
		o.DefaultExpireMs = 30_000
	}
	if o.IncompleteReleaseMs <= 0 {
		o.IncompleteReleaseMs = 60_000
	}
	return o
}

func (o Options) defaultExpire() time.Duration {
	return time.Duration(o.DefaultExpireMs) * time.Millisecond
}

func (o Options) incompleteRelease() time.Duration {
	return time.Duration(o.IncompleteReleaseMs) * time.Millisecond
}
