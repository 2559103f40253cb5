package uploads

import (
	"sync"
	"time"
)

// Quota bounds how many accepted uploads a single identity may complete within
// a trailing window. Allow checks admission; Record must be called only after
// the full pipeline succeeds, so rejected uploads do not consume quota.
//
// The in-memory implementation is per-process: counters reset on restart, and
// a multi-instance deployment needs a shared-store implementation behind this
// interface instead.
type Quota interface {
	Allow(identity string, now time.Time) (ok bool, retryAfter time.Duration)
	Record(identity string, now time.Time)
}

// MemoryQuota is a mutex-guarded sliding-window quota keyed by identity.
type MemoryQuota struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	stamps map[string][]time.Time
}

// NewMemoryQuota constructs a quota allowing max accepted uploads per window.
func NewMemoryQuota(window time.Duration, max int) *MemoryQuota {
	return &MemoryQuota{
		window: window,
		max:    max,
		stamps: make(map[string][]time.Time),
	}
}

// Allow prunes expired timestamps for identity and reports whether another
// upload may proceed. When denied, retryAfter is the time until the oldest
// retained timestamp leaves the window.
func (q *MemoryQuota) Allow(identity string, now time.Time) (bool, time.Duration) {
	if q.max <= 0 || q.window <= 0 {
		return true, 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	retained := q.prune(identity, now)
	if len(retained) < q.max {
		return true, 0
	}

	retryAfter := q.window - now.Sub(retained[0])
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return false, retryAfter
}

// Record charges one accepted upload against identity.
func (q *MemoryQuota) Record(identity string, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	retained := q.prune(identity, now)
	q.stamps[identity] = append(retained, now)
}

// prune drops timestamps older than the trailing window. Caller holds q.mu.
func (q *MemoryQuota) prune(identity string, now time.Time) []time.Time {
	stamps := q.stamps[identity]
	cutoff := now.Add(-q.window)
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	retained := stamps[i:]
	if len(retained) == 0 {
		delete(q.stamps, identity)
		return nil
	}
	q.stamps[identity] = retained
	return retained
}

var _ Quota = (*MemoryQuota)(nil)
