// ABOUTME: Tests for the transition dedupe window
// ABOUTME: Validates TTL suppression, re-admission, capacity eviction, sweeping and concurrency

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestWindow(t *testing.T, ttl time.Duration, capacity int) (*Window, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := newWindow(ttl, capacity, clock.Now)
	t.Cleanup(w.Close)
	return w, clock
}

func TestWindow_AdmitOnce(t *testing.T) {
	w, _ := newTestWindow(t, time.Minute, 10)

	assert.True(t, w.Admit("region-1"))
	assert.False(t, w.Admit("region-1"), "second admission inside the window should be suppressed")
	assert.True(t, w.Admit("region-2"), "different keys are independent")
}

func TestWindow_ReadmitAfterTTL(t *testing.T) {
	w, clock := newTestWindow(t, time.Minute, 10)

	assert.True(t, w.Admit("region-1"))
	clock.Advance(59 * time.Second)
	assert.False(t, w.Admit("region-1"))
	clock.Advance(2 * time.Second)
	assert.True(t, w.Admit("region-1"))
}

func TestWindow_ZeroTTLDisablesSuppression(t *testing.T) {
	w, _ := newTestWindow(t, 0, 10)

	assert.True(t, w.Admit("k"))
	assert.True(t, w.Admit("k"))
	assert.Equal(t, 0, w.Len())
}

func TestWindow_CapacityEvictsOldest(t *testing.T) {
	w, _ := newTestWindow(t, time.Hour, 2)

	assert.True(t, w.Admit("a"))
	assert.True(t, w.Admit("b"))
	assert.True(t, w.Admit("c"))

	assert.Equal(t, 2, w.Len())
	assert.True(t, w.Admit("a"), "oldest key should have been evicted")
	assert.False(t, w.Admit("c"))
}

func TestWindow_Forget(t *testing.T) {
	w, _ := newTestWindow(t, time.Hour, 10)

	assert.True(t, w.Admit("k"))
	w.Forget("k")
	assert.True(t, w.Admit("k"))

	// Forgetting an unknown key is a no-op
	w.Forget("missing")
}

func TestWindow_Expire(t *testing.T) {
	w, clock := newTestWindow(t, time.Minute, 10)

	w.Admit("old")
	clock.Advance(30 * time.Second)
	w.Admit("new")
	clock.Advance(45 * time.Second)

	w.expire()

	assert.Equal(t, 1, w.Len())
	assert.False(t, w.Admit("new"), "unexpired key must survive the sweep")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "enter|r1", Key("enter", "r1"))
	assert.NotEqual(t, Key("enter", "r1"), Key("exit", "r1"))
}

func TestWindow_CloseIdempotent(t *testing.T) {
	w := New(time.Minute, 10)
	w.Close()
	w.Close()
}

func TestWindow_ConcurrentAdmit(t *testing.T) {
	w, _ := newTestWindow(t, time.Hour, 1000)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w.Admit("shared") {
				admitted.Add(1)
			}
			w.Admit(fmt.Sprintf("own-%d", i))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load(), "exactly one goroutine should win the shared key")
	assert.Equal(t, 51, w.Len())
}
