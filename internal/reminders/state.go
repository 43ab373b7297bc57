// ABOUTME: Generic observable value with latest-value subscriptions
// ABOUTME: Backs controller state so HTTP handlers and tests can watch transitions

package reminders

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// State is an observable value. Subscribers receive the current value on
// subscription and after every Set. A slow subscriber only sees the most
// recent value.
type State[T any] struct {
	mu          sync.Mutex
	value       T
	subscribers map[string]chan T
}

// NewState creates a State holding initial.
func NewState[T any](initial T) *State[T] {
	return &State[T]{
		value:       initial,
		subscribers: make(map[string]chan T),
	}
}

// Get returns the current value.
func (s *State[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores v and pushes it to every subscriber.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.pushLocked()
}

// Update applies fn to the current value under the lock and stores the result.
func (s *State[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	s.pushLocked()
	return s.value
}

// Subscribe returns a channel carrying the latest value. It is closed when
// ctx is cancelled.
func (s *State[T]) Subscribe(ctx context.Context) <-chan T {
	subID := uuid.New().String()
	ch := make(chan T, 1)

	s.mu.Lock()
	s.subscribers[subID] = ch
	ch <- s.value
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subscribers[subID]; ok {
			delete(s.subscribers, subID)
			close(ch)
		}
	}()

	return ch
}

func (s *State[T]) pushLocked() {
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- s.value
	}
}
