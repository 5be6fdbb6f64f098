package messenger

import (
	"sync"
	"time"
)

const (
	recentCapacity = 10000
	recentTTL      = 5 * time.Minute
)

// recentIDs remembers message IDs seen within a TTL so redeliveries (Slack
// retries, WhatsApp offline sync after a reconnect) are answered once.
// Oldest IDs are forgotten first when full. Safe for concurrent use.
type recentIDs struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	order []string // insertion order, oldest first
	limit int
	ttl   time.Duration
	now   func() time.Time
}

func newRecentIDs(capacity int, ttl time.Duration, now func() time.Time) *recentIDs {
	if now == nil {
		now = time.Now
	}
	return &recentIDs{
		seen:  make(map[string]time.Time),
		limit: capacity,
		ttl:   ttl,
		now:   now,
	}
}

// firstTime records id and reports whether it was not seen within the TTL.
// An empty id is always new.
func (r *recentIDs) firstTime(id string) bool {
	if id == "" {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.expire(now)
	if _, ok := r.seen[id]; ok {
		return false
	}
	for len(r.order) >= r.limit {
		delete(r.seen, r.order[0])
		r.order = r.order[1:]
	}
	r.seen[id] = now
	r.order = append(r.order, id)
	return true
}

func (r *recentIDs) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// expire drops IDs older than the TTL. order is sorted by time, so it stops
// at the first live entry. Must be called under lock.
func (r *recentIDs) expire(now time.Time) {
	n := 0
	for _, id := range r.order {
		if now.Sub(r.seen[id]) < r.ttl {
			break
		}
		delete(r.seen, id)
		n++
	}
	if n > 0 {
		r.order = append(r.order[:0:0], r.order[n:]...)
	}
}
