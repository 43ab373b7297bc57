// ABOUTME: Fan-out of one-shot UI commands emitted by the controllers
// ABOUTME: Notices, navigate-back and settings prompts; slow subscribers drop events

package reminders

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const subscriberBufferSize = 64

// EventKind identifies a UI command.
type EventKind string

const (
	EventNotice         EventKind = "notice"
	EventNavigateBack   EventKind = "navigate_back"
	EventPromptSettings EventKind = "prompt_settings"
)

// Event is a one-shot command for whatever UI is attached.
type Event struct {
	Kind    EventKind `json:"kind"`
	Message string    `json:"message,omitempty"`
	Field   string    `json:"field,omitempty"` // set for validation notices
}

// Events broadcasts UI commands to subscribers. Events published while no
// one is subscribed are discarded.
type Events struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	logger      *slog.Logger
}

// NewEvents creates an event fan-out. Pass nil logger for default.
func NewEvents(logger *slog.Logger) *Events {
	if logger == nil {
		logger = slog.Default()
	}
	return &Events{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "ui-events"),
	}
}

// Subscribe registers a subscriber until ctx is cancelled.
func (e *Events) Subscribe(ctx context.Context) <-chan Event {
	subID := uuid.New().String()
	ch := make(chan Event, subscriberBufferSize)

	e.mu.Lock()
	e.subscribers[subID] = ch
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subscribers[subID]; ok {
			delete(e.subscribers, subID)
			close(ch)
		}
	}()

	return ch
}

// Publish sends ev to every subscriber without blocking.
func (e *Events) Publish(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for id, ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
			e.logger.Debug("dropped event for slow subscriber", "sub_id", id, "kind", ev.Kind)
		}
	}
}

// Notice publishes a transient message.
func (e *Events) Notice(msg string) {
	e.Publish(Event{Kind: EventNotice, Message: msg})
}

// FieldNotice publishes a validation message targeted at one field.
func (e *Events) FieldNotice(field, msg string) {
	e.Publish(Event{Kind: EventNotice, Message: msg, Field: field})
}

// NavigateBack asks the UI to leave the current screen.
func (e *Events) NavigateBack() {
	e.Publish(Event{Kind: EventNavigateBack})
}

// PromptSettings asks the UI to offer a settings change that fixes err.
func (e *Events) PromptSettings(err error) {
	e.Publish(Event{Kind: EventPromptSettings, Message: err.Error()})
}
