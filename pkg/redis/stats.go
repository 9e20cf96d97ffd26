package redis

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time view of cache activity
type Stats struct {
	Hits     uint64
	Misses   uint64
	Failures uint64 // Transport and codec errors
	Writes   uint64
	Purged   uint64 // Keys removed by Purge

	AvgReadLatency time.Duration
}

// HitRatio returns hits over reads, or 0 before the first read
func (s Stats) HitRatio() float64 {
	reads := s.Hits + s.Misses
	if reads == 0 {
		return 0
	}
	return float64(s.Hits) / float64(reads)
}

type counters struct {
	hits, misses, failures, writes, purged atomic.Uint64

	reads     atomic.Uint64
	readNanos atomic.Int64
}

func (c *counters) observeRead(elapsed time.Duration) {
	c.reads.Add(1)
	c.readNanos.Add(elapsed.Nanoseconds())
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Failures: c.failures.Load(),
		Writes:   c.writes.Load(),
		Purged:   c.purged.Load(),
	}
	if reads := c.reads.Load(); reads > 0 {
		s.AvgReadLatency = time.Duration(c.readNanos.Load() / int64(reads))
	}
	return s
}

func (c *counters) reset() {
	for _, v := range []*atomic.Uint64{&c.hits, &c.misses, &c.failures, &c.writes, &c.purged, &c.reads} {
		v.Store(0)
	}
	c.readNanos.Store(0)
}
