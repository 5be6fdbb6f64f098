package messenger

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type mockClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestRecentIDs_DuplicateIsRejected(t *testing.T) {
	r := newRecentIDs(recentCapacity, recentTTL, nil)

	if !r.firstTime("event-1") {
		t.Error("expected new event to be accepted")
	}
	if r.firstTime("event-1") {
		t.Error("expected duplicate event to be rejected")
	}
	if !r.firstTime("event-2") {
		t.Error("expected event-2 to be accepted")
	}
	if !r.firstTime("") || !r.firstTime("") {
		t.Error("empty IDs are never duplicates")
	}
}

func TestRecentIDs_ExpiredEntryReaccepted(t *testing.T) {
	clock := &mockClock{t: time.Now()}
	r := newRecentIDs(10, time.Minute, clock.Now)

	r.firstTime("event-1")
	clock.Advance(30 * time.Second)
	r.firstTime("event-2")
	clock.Advance(45 * time.Second)

	if !r.firstTime("event-1") {
		t.Error("expected expired event to be re-accepted")
	}
	if r.firstTime("event-2") {
		t.Error("expected live event to still be tracked")
	}
}

func TestRecentIDs_StaysBounded(t *testing.T) {
	clock := &mockClock{t: time.Now()}
	r := newRecentIDs(3, 10*time.Minute, clock.Now)

	for _, id := range []string{"a", "b", "c", "d"} {
		r.firstTime(id)
		clock.Advance(time.Second)
	}

	if r.size() != 3 {
		t.Errorf("expected 3 entries, got %d", r.size())
	}
	// "a" was the oldest and made room for "d".
	if !r.firstTime("a") {
		t.Error("expected evicted event to be accepted again")
	}
	if r.firstTime("d") {
		t.Error("expected recent event to still be tracked")
	}
}

func TestRecentIDs_ConcurrentAccess(t *testing.T) {
	r := newRecentIDs(recentCapacity, recentTTL, nil)
	var wg sync.WaitGroup
	accepted := make([]int, 10)

	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if r.firstTime(fmt.Sprintf("event-%d", i)) {
					accepted[g]++
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, n := range accepted {
		total += n
	}
	if total != 100 {
		t.Errorf("expected each event accepted once (100), got %d", total)
	}
}
