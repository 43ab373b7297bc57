// ABOUTME: Tests for the transition handler and the inbound event dispatcher
// ABOUTME: Covers status checks, dedupe, not-found drops and panic recovery

package geofence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/locus-gateway/internal/dedupe"
	"github.com/2389/locus-gateway/internal/notify"
	"github.com/2389/locus-gateway/internal/store"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type panickySource struct{}

func (panickySource) GetReminder(ctx context.Context, id string) (*store.Reminder, error) {
	panic("boom")
}

func enterEvent(ids ...string) Event {
	return Event{Status: StatusSuccess, Transition: TransitionEnter, RegionIDs: ids, At: fixedTime}
}

func TestHandler_NotifiesKnownReminder(t *testing.T) {
	reminders := store.NewMockStore(reminderAt("r1", 0, 0))
	notifier := &fakeNotifier{}
	h := NewHandler(reminders, notifier, nil, nil)

	h.Handle(context.Background(), enterEvent("r1"))

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "r1", notifier.sent[0].ReminderID)
	assert.Equal(t, "title r1", notifier.sent[0].Title)
}

func TestHandler_DropsErrorStatus(t *testing.T) {
	reminders := store.NewMockStore(reminderAt("r1", 0, 0))
	notifier := &fakeNotifier{}
	h := NewHandler(reminders, notifier, nil, nil)

	ev := enterEvent("r1")
	ev.Status = StatusNotAvailable
	h.Handle(context.Background(), ev)

	assert.Equal(t, 0, notifier.count())
}

func TestHandler_IgnoresNonEnter(t *testing.T) {
	reminders := store.NewMockStore(reminderAt("r1", 0, 0))
	notifier := &fakeNotifier{}
	h := NewHandler(reminders, notifier, nil, nil)

	ev := enterEvent("r1")
	ev.Transition = TransitionExit
	h.Handle(context.Background(), ev)

	assert.Equal(t, 0, notifier.count())
}

func TestHandler_UnknownIDIsDropped(t *testing.T) {
	reminders := store.NewMockStore(reminderAt("r1", 0, 0))
	notifier := &fakeNotifier{}
	h := NewHandler(reminders, notifier, nil, nil)

	h.Handle(context.Background(), enterEvent("deleted", "r1"))

	require.Equal(t, 1, notifier.count(), "a missing reminder must not stop the others")
	assert.Equal(t, "r1", notifier.sent[0].ReminderID)
}

func TestHandler_StoreFailureIsDropped(t *testing.T) {
	reminders := store.NewMockStore(reminderAt("r1", 0, 0))
	reminders.SetShouldReturnError(true)
	notifier := &fakeNotifier{}
	h := NewHandler(reminders, notifier, nil, nil)

	h.Handle(context.Background(), enterEvent("r1"))

	assert.Equal(t, 0, notifier.count())
}

func TestHandler_NotifierFailureContinues(t *testing.T) {
	reminders := store.NewMockStore(reminderAt("a", 0, 0), reminderAt("b", 0, 0))
	notifier := &fakeNotifier{err: errors.New("offline")}
	h := NewHandler(reminders, notifier, nil, nil)

	h.Handle(context.Background(), enterEvent("a", "b"))

	assert.Equal(t, 2, notifier.count())
}

func TestHandler_SuppressesRedelivery(t *testing.T) {
	reminders := store.NewMockStore(reminderAt("r1", 0, 0))
	notifier := &fakeNotifier{}
	window := dedupe.New(time.Hour, 100)
	defer window.Close()
	h := NewHandler(reminders, notifier, window, nil)

	ev := enterEvent("r1")
	ev.ID = "ev-1"
	h.Handle(context.Background(), ev)
	h.Handle(context.Background(), ev)
	assert.Equal(t, 1, notifier.count(), "the same event delivered twice notifies once")

	// A later entry into the same region is a new event
	again := enterEvent("r1")
	again.ID = "ev-2"
	h.Handle(context.Background(), again)
	assert.Equal(t, 2, notifier.count())

	// Events without an ID are never suppressed
	h.Handle(context.Background(), enterEvent("r1"))
	h.Handle(context.Background(), enterEvent("r1"))
	assert.Equal(t, 4, notifier.count())
}

func TestHandler_FailureReleasesRedelivery(t *testing.T) {
	reminders := store.NewMockStore()
	notifier := &fakeNotifier{}
	window := dedupe.New(time.Hour, 100)
	defer window.Close()
	h := NewHandler(reminders, notifier, window, nil)
	ctx := context.Background()

	ev := enterEvent("r1")
	ev.ID = "ev-1"

	// Not found yet: the key is released
	h.Handle(ctx, ev)
	assert.Equal(t, 0, notifier.count())
	assert.Equal(t, 0, window.Len())

	// Send failure: also released
	require.NoError(t, reminders.SaveReminder(ctx, reminderAt("r1", 0, 0)))
	notifier.mu.Lock()
	notifier.err = errors.New("offline")
	notifier.mu.Unlock()
	h.Handle(ctx, ev)
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, 0, window.Len())

	// The redelivery goes through and is then remembered
	notifier.mu.Lock()
	notifier.err = nil
	notifier.mu.Unlock()
	h.Handle(ctx, ev)
	h.Handle(ctx, ev)
	assert.Equal(t, 2, notifier.count())
	assert.Equal(t, 1, window.Len())
}

func TestHandler_RecoversPanic(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewHandler(panickySource{}, notifier, nil, nil)

	assert.NotPanics(t, func() {
		h.Handle(context.Background(), enterEvent("r1"))
	})
	assert.Equal(t, 0, notifier.count())
}

type blockingHandler struct {
	release chan struct{}
	handled chan Event
}

func (b *blockingHandler) Handle(ctx context.Context, ev Event) {
	<-b.release
	b.handled <- ev
}

func TestDispatcher_RunHandlesEvents(t *testing.T) {
	reminders := store.NewMockStore(reminderAt("r1", 0, 0))
	notifier := &fakeNotifier{}
	d := NewDispatcher(NewHandler(reminders, notifier, nil, nil), 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	assert.True(t, d.Deliver(enterEvent("r1")))
	assert.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDispatcher_DeliverNeverBlocks(t *testing.T) {
	h := &blockingHandler{release: make(chan struct{}), handled: make(chan Event, 10)}
	d := NewDispatcher(h, 2, nil)

	// Without a consumer, the buffer fills and further events are dropped
	assert.True(t, d.Deliver(enterEvent("a")))
	assert.True(t, d.Deliver(enterEvent("b")))
	assert.False(t, d.Deliver(enterEvent("c")))

	assert.Equal(t, int64(1), d.Dropped())
	assert.Equal(t, 2, d.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	close(h.release)

	first := <-h.handled
	second := <-h.handled
	assert.Equal(t, []string{"a"}, first.RegionIDs)
	assert.Equal(t, []string{"b"}, second.RegionIDs)
}

func TestDispatcher_DefaultQueueSize(t *testing.T) {
	d := NewDispatcher(&blockingHandler{}, 0, nil)
	assert.Equal(t, DefaultQueueSize, cap(d.queue))
}
