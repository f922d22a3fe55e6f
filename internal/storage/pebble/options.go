package pebblestore

import (
	"time"

	"github.com/cockroachdb/pebble"
)

// FsyncMode selects when committed writes reach stable storage.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the WAL on every commit.
	FsyncModeAlways
	// FsyncModeInterval syncs on every commit but lets Pebble delay the WAL
	// fsync by up to FsyncInterval so concurrent commits share it.
	FsyncModeInterval
	// FsyncModeNever leaves syncing to Pebble. A crash may lose recent appends.
	FsyncModeNever
)

// defaultGroupCommit is used when the mode is unspecified or the interval unset.
const defaultGroupCommit = 5 * time.Millisecond

func (m FsyncMode) String() string {
	switch m {
	case FsyncModeAlways:
		return "always"
	case FsyncModeInterval:
		return "interval"
	case FsyncModeNever:
		return "never"
	default:
		return "unspecified"
	}
}

// configure installs the WAL sync policy on po and reports whether commits
// must request a sync. Interval commits do request one; Pebble then holds
// the sync for up to the interval so concurrent commits share a single fsync.
func (m FsyncMode) configure(po *pebble.Options, interval time.Duration) (syncCommits bool) {
	switch m {
	case FsyncModeAlways:
		return true
	case FsyncModeNever:
		return false
	case FsyncModeInterval:
		if interval <= 0 {
			interval = defaultGroupCommit
		}
	default:
		interval = defaultGroupCommit
	}
	po.WALMinSyncInterval = func() time.Duration { return interval }
	return true
}

// Options configures Open.
type Options struct {
	// DataDir is the Pebble directory. Required.
	DataDir string
	Fsync   FsyncMode
	// FsyncInterval applies to FsyncModeInterval only.
	FsyncInterval time.Duration
	// PebbleOptions is passed through for tuning; nil means Pebble defaults.
	PebbleOptions *pebble.Options
	Metrics       MetricsHook
	// Logger receives Pebble's own log lines.
	Logger pebble.Logger
}

// MetricsHook observes storage traffic. Implementations must be safe for
// concurrent use.
type MetricsHook interface {
	ObserveWrite(elapsed time.Duration, bytes int)
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
}

// NoopMetrics discards observations.
type NoopMetrics struct{}

func (NoopMetrics) ObserveWrite(time.Duration, int)            {}
func (NoopMetrics) ObserveRead(time.Duration, int)             {}
func (NoopMetrics) ObserveBatchCommit(time.Duration, int, int) {}
