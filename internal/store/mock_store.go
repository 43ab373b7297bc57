// ABOUTME: Mock Store implementation for testing
// ABOUTME: Volatile in-memory reminders and geofences with an always-fail switch

package store

import (
	"context"
	"errors"
	"sync"
)

// Failure messages returned by MockStore when configured to fail
const (
	MockListErrorMessage = "Reminders not found"
	MockGetErrorMessage  = "Error"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	reminders   []*Reminder          // insertion order
	geofences   map[string]*Geofence // keyed by geofence ID
	fenceOrder  []string
	shouldError bool
	closed      bool
}

// NewMockStore creates a new MockStore seeded with the given reminders.
func NewMockStore(seed ...*Reminder) *MockStore {
	m := &MockStore{
		geofences: make(map[string]*Geofence),
	}
	for _, r := range seed {
		m.reminders = append(m.reminders, r.Clone())
	}
	return m
}

// SetShouldReturnError makes every read fail deterministically.
func (m *MockStore) SetShouldReturnError(shouldError bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldError = shouldError
}

// SaveReminder stores a copy of the reminder, replacing one with the same ID.
func (m *MockStore) SaveReminder(ctx context.Context, reminder *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeReminderLocked(reminder.ID)
	m.reminders = append(m.reminders, reminder.Clone())
	return nil
}

func (m *MockStore) removeReminderLocked(id string) {
	for i, r := range m.reminders {
		if r.ID == id {
			m.reminders = append(m.reminders[:i], m.reminders[i+1:]...)
			return
		}
	}
}

// GetReminders returns copies of all reminders in insertion order.
func (m *MockStore) GetReminders(ctx context.Context) ([]*Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shouldError {
		return nil, errors.New(MockListErrorMessage)
	}

	result := make([]*Reminder, 0, len(m.reminders))
	for _, r := range m.reminders {
		result = append(result, r.Clone())
	}
	return result, nil
}

// GetReminder retrieves a reminder by ID.
func (m *MockStore) GetReminder(ctx context.Context, id string) (*Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.shouldError {
		return nil, errors.New(MockGetErrorMessage)
	}

	for _, r := range m.reminders {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return nil, ErrReminderNotFound
}

// DeleteAllReminders clears all reminders.
func (m *MockStore) DeleteAllReminders(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reminders = nil
	return nil
}

// SaveGeofence upserts a geofence registration.
func (m *MockStore) SaveGeofence(ctx context.Context, fence *Geofence) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.geofences[fence.ID]; !ok {
		m.fenceOrder = append(m.fenceOrder, fence.ID)
	}
	m.geofences[fence.ID] = cloneGeofence(fence)
	return nil
}

// ListGeofences returns registrations in registration order.
func (m *MockStore) ListGeofences(ctx context.Context) ([]*Geofence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Geofence, 0, len(m.fenceOrder))
	for _, id := range m.fenceOrder {
		result = append(result, cloneGeofence(m.geofences[id]))
	}
	return result, nil
}

// DeleteGeofence removes a registration.
func (m *MockStore) DeleteGeofence(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.geofences[id]; !ok {
		return ErrGeofenceNotFound
	}
	delete(m.geofences, id)
	for i, fid := range m.fenceOrder {
		if fid == id {
			m.fenceOrder = append(m.fenceOrder[:i], m.fenceOrder[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteAllGeofences removes every registration.
func (m *MockStore) DeleteAllGeofences(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.geofences = make(map[string]*Geofence)
	m.fenceOrder = nil
	return nil
}

// SetGeofenceInside records the last evaluated containment.
func (m *MockStore) SetGeofenceInside(ctx context.Context, id string, inside bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.geofences[id]
	if !ok {
		return ErrGeofenceNotFound
	}
	v := inside
	f.Inside = &v
	return nil
}

// Ping reports an error once the store is closed or set to fail.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return errors.New("store closed")
	}
	if m.shouldError {
		return errors.New(MockGetErrorMessage)
	}
	return nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func cloneGeofence(f *Geofence) *Geofence {
	c := *f
	if f.Inside != nil {
		v := *f.Inside
		c.Inside = &v
	}
	return &c
}
