// ABOUTME: Handler resolves transition events into reminder notifications
// ABOUTME: Drops failed statuses, non-ENTER transitions, redeliveries and unresolvable IDs

package geofence

import (
	"context"
	"log/slog"

	"github.com/2389/locus-gateway/internal/dedupe"
	"github.com/2389/locus-gateway/internal/notify"
	"github.com/2389/locus-gateway/internal/store"
)

// ReminderSource looks up reminders by region ID.
type ReminderSource interface {
	GetReminder(ctx context.Context, id string) (*store.Reminder, error)
}

// Handler turns ENTER events into notifications.
type Handler struct {
	reminders ReminderSource
	notifier  notify.Notifier
	window    *dedupe.Window
	logger    *slog.Logger
}

// NewHandler creates a handler. window suppresses redeliveries of an event
// ID and may be nil to disable that. Pass nil logger for default.
func NewHandler(reminders ReminderSource, notifier notify.Notifier, window *dedupe.Window, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		reminders: reminders,
		notifier:  notifier,
		window:    window,
		logger:    logger.With("component", "geofence-handler"),
	}
}

// Handle processes one event. It never panics; failures are logged and the
// affected region is skipped.
func (h *Handler) Handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic while handling geofence event", "panic", r)
		}
	}()

	if ev.HasError() {
		h.logger.Error("geofence event failed", "status", ev.Status, "message", StatusMessage(ev.Status))
		return
	}

	if ev.Transition != TransitionEnter {
		h.logger.Debug("ignoring transition", "transition", ev.Transition)
		return
	}

	for _, id := range ev.RegionIDs {
		h.handleRegion(ctx, ev.ID, id)
	}
}

// handleRegion notifies for one region. Events without an ID cannot be told
// apart from a new entry and are never suppressed. A failed lookup or send
// releases the key so a redelivery can try again.
func (h *Handler) handleRegion(ctx context.Context, eventID, id string) {
	key := ""
	if h.window != nil && eventID != "" {
		key = dedupe.Key(eventID, id)
		if !h.window.Admit(key) {
			h.logger.Debug("suppressing redelivered transition", "event", eventID, "id", id)
			return
		}
	}
	release := func() {
		if key != "" {
			h.window.Forget(key)
		}
	}

	reminder, err := h.reminders.GetReminder(ctx, id)
	if err != nil {
		release()
		h.logger.Warn("dropping transition for unknown reminder", "id", id, "error", err)
		return
	}

	if err := h.notifier.Send(ctx, notify.FromReminder(reminder)); err != nil {
		release()
		h.logger.Error("failed to send notification", "id", id, "error", err)
		return
	}
	h.logger.Info("reminder notification sent", "id", id, "title", reminder.Title)
}
