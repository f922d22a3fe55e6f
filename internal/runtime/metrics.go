package runtime

import (
	"sync/atomic"
	"time"
)

// StoreMetrics counts storage operations reported by the Pebble wrapper.
type StoreMetrics struct {
	writes, reads, commits  atomic.Uint64
	bytesWritten, bytesRead atomic.Uint64
	commitNanos             atomic.Int64
}

// MetricsSnapshot is a copy of the counters.
type MetricsSnapshot struct {
	Writes        uint64        `json:"writes"`
	Reads         uint64        `json:"reads"`
	Commits       uint64        `json:"commits"`
	BytesWritten  uint64        `json:"bytesWritten"`
	BytesRead     uint64        `json:"bytesRead"`
	CommitLatency time.Duration `json:"commitLatencyNs"`
}

func (m *StoreMetrics) ObserveWrite(_ time.Duration, bytes int) {
	m.writes.Add(1)
	m.bytesWritten.Add(uint64(bytes))
}

func (m *StoreMetrics) ObserveRead(_ time.Duration, bytes int) {
	m.reads.Add(1)
	m.bytesRead.Add(uint64(bytes))
}

func (m *StoreMetrics) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	m.commits.Add(1)
	m.bytesWritten.Add(uint64(bytes))
	m.commitNanos.Add(int64(elapsed))
}

// Snapshot returns the counters. CommitLatency is the mean per commit.
func (m *StoreMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Writes:       m.writes.Load(),
		Reads:        m.reads.Load(),
		Commits:      m.commits.Load(),
		BytesWritten: m.bytesWritten.Load(),
		BytesRead:    m.bytesRead.Load(),
	}
	if s.Commits > 0 {
		s.CommitLatency = time.Duration(m.commitNanos.Load() / int64(s.Commits))
	}
	return s
}
