package pool

import (
	"time"

	"github.com/guileen/respool/config"
)

// hybridFrequencyWeight converts bucket reuse frequency into an age-equivalent
// number of seconds for the hybrid score. A never-reused bucket scores as one
// extra minute of idleness.
const hybridFrequencyWeight = 60.0

// selectVictimLocked picks the next buffer to evict according to the
// configured policy. Keep-warm buffers are skipped unless includeKeepWarm is
// set. Ties break on the lower buffer identity so ordering is deterministic.
func (p *Pool) selectVictimLocked(includeKeepWarm bool) (*Buffer, *bucket) {
	var (
		victim       *Buffer
		victimBucket *bucket
	)

	now := p.clock.Now()

	for _, b := range p.buckets {
		for _, buf := range b.free {
			if buf.keepWarm && !includeKeepWarm {
				continue
			}
			if victim == nil || p.evictsBefore(buf, b, victim, victimBucket, now) {
				victim = buf
				victimBucket = b
			}
		}
	}

	return victim, victimBucket
}

// evictsBefore reports whether candidate should be evicted ahead of current
func (p *Pool) evictsBefore(candidate *Buffer, candidateBucket *bucket, current *Buffer, currentBucket *bucket, now time.Time) bool {
	switch p.cfg.EvictionPolicy {
	case config.PolicyFIFO:
		// Return order of the first pooling, unaffected by reuse
		if candidate.firstSeq != current.firstSeq {
			return candidate.firstSeq < current.firstSeq
		}

	case config.PolicyLFU:
		// Least-reused bucket first, oldest buffer within it
		if candidateBucket.useCount != currentBucket.useCount {
			return candidateBucket.useCount < currentBucket.useCount
		}
		if !candidate.lastReturn.Equal(current.lastReturn) {
			return candidate.lastReturn.Before(current.lastReturn)
		}

	case config.PolicyHybrid:
		cs := hybridScore(candidate, candidateBucket, now)
		ps := hybridScore(current, currentBucket, now)
		if cs != ps {
			return cs > ps
		}

	default: // config.PolicyLRU
		if !candidate.lastReturn.Equal(current.lastReturn) {
			return candidate.lastReturn.Before(current.lastReturn)
		}
	}

	return candidate.id < current.id
}

// hybridScore combines idle age with bucket reuse frequency; higher scores
// are evicted first
func hybridScore(buf *Buffer, b *bucket, now time.Time) float64 {
	age := now.Sub(buf.lastReturn).Seconds()
	return age + hybridFrequencyWeight/float64(1+b.useCount)
}
