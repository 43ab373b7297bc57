// ABOUTME: Bounded TTL window that admits a transition key once per interval
// ABOUTME: Used by the geofence handler to drop repeated ENTER events for a region

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

type admission struct {
	at      time.Time
	element *list.Element
}

// Window remembers recently admitted keys. A key is admitted again only after
// its TTL has elapsed. When the window is full the oldest admission is evicted.
type Window struct {
	mu       sync.Mutex
	admitted map[string]*admission
	order    *list.List // oldest at front
	ttl      time.Duration
	capacity int
	now      func() time.Time
	done     chan struct{}
	closed   bool
}

// New creates a window and starts its background sweeper.
// A non-positive ttl disables suppression entirely.
func New(ttl time.Duration, capacity int) *Window {
	return newWindow(ttl, capacity, time.Now)
}

func newWindow(ttl time.Duration, capacity int, now func() time.Time) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	w := &Window{
		admitted: make(map[string]*admission),
		order:    list.New(),
		ttl:      ttl,
		capacity: capacity,
		now:      now,
		done:     make(chan struct{}),
	}
	go w.sweep()
	return w
}

// Key joins the parts of a transition into a single window key.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

// Admit reports whether key is new within the window and records it if so.
// Check and record happen under one lock.
func (w *Window) Admit(key string) bool {
	if w.ttl <= 0 {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if a, ok := w.admitted[key]; ok {
		if now.Sub(a.at) < w.ttl {
			return false
		}
		a.at = now
		w.order.MoveToBack(a.element)
		return true
	}

	if len(w.admitted) >= w.capacity {
		w.evictOldestLocked()
	}
	w.admitted[key] = &admission{at: now, element: w.order.PushBack(key)}
	return true
}

// Forget removes key so the next Admit succeeds immediately.
func (w *Window) Forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if a, ok := w.admitted[key]; ok {
		w.order.Remove(a.element)
		delete(w.admitted, key)
	}
}

// Len returns the number of keys currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.admitted)
}

func (w *Window) evictOldestLocked() {
	front := w.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	w.order.Remove(front)
	delete(w.admitted, key)
}

func (w *Window) sweep() {
	interval := time.Minute
	if w.ttl > 0 && w.ttl < interval {
		interval = w.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.expire()
		case <-w.done:
			return
		}
	}
}

// expire drops admissions older than the TTL. Because admissions are kept in
// time order, it stops at the first one still inside the window.
func (w *Window) expire() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for e := w.order.Front(); e != nil; {
		key, _ := e.Value.(string)
		a := w.admitted[key]
		if now.Sub(a.at) < w.ttl {
			return
		}
		next := e.Next()
		w.order.Remove(e)
		delete(w.admitted, key)
		e = next
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		close(w.done)
		w.closed = true
	}
}
