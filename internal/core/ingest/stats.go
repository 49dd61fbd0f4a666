package ingest

import (
	"fmt"
	"sync/atomic"
)

// Stats counts what the filtering stages did. Counters are atomic so
// the health surface can read them while the engine runs.
type Stats struct {
	emittedCount         atomic.Int64
	coalesceDropCount    atomic.Int64
	fingerprintDropCount atomic.Int64
}

// StatsSnapshot is a point-in-time copy of the filter counters.
type StatsSnapshot struct {
	Emitted          int64 `json:"emitted"`
	CoalesceDrops    int64 `json:"coalesce_drops"`
	FingerprintDrops int64 `json:"fingerprint_drops"`
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("emit=%d coalesceDrops=%d fingerprintDrops=%d",
		s.Emitted, s.CoalesceDrops, s.FingerprintDrops)
}

func (s *Stats) emitted()            { s.emittedCount.Add(1) }
func (s *Stats) coalesceDropped()    { s.coalesceDropCount.Add(1) }
func (s *Stats) fingerprintDropped() { s.fingerprintDropCount.Add(1) }

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Emitted:          s.emittedCount.Load(),
		CoalesceDrops:    s.coalesceDropCount.Load(),
		FingerprintDrops: s.fingerprintDropCount.Load(),
	}
}
