// ABOUTME: Notification payload and the Notifier contract shared by all channels
// ABOUTME: Includes Multi for fan-out and LogNotifier for slog output

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/locus-gateway/internal/store"
)

// Notification is what a user sees when they enter a reminder's region.
type Notification struct {
	ReminderID string
	Title      string
	Body       string
	Location   string
	Latitude   *float64
	Longitude  *float64
}

// FromReminder builds the notification for a reminder.
func FromReminder(r *store.Reminder) Notification {
	n := Notification{
		ReminderID: r.ID,
		Title:      r.Title,
		Body:       r.Description,
		Location:   r.Location,
	}
	if r.Latitude != nil {
		lat := *r.Latitude
		n.Latitude = &lat
	}
	if r.Longitude != nil {
		lon := *r.Longitude
		n.Longitude = &lon
	}
	return n
}

// Coordinates renders "lat, lon" or an empty string when absent.
func (n Notification) Coordinates() string {
	if n.Latitude == nil || n.Longitude == nil {
		return ""
	}
	return fmt.Sprintf("%.6f, %.6f", *n.Latitude, *n.Longitude)
}

// Markdown renders the notification as a short Markdown document.
func (n Notification) Markdown() string {
	var b strings.Builder
	b.WriteString("**")
	b.WriteString(n.Title)
	b.WriteString("**")
	if n.Body != "" {
		b.WriteString("\n\n")
		b.WriteString(n.Body)
	}
	if n.Location != "" {
		b.WriteString("\n\n_")
		b.WriteString(n.Location)
		b.WriteString("_")
	}
	if c := n.Coordinates(); c != "" {
		b.WriteString(" (")
		b.WriteString(c)
		b.WriteString(")")
	}
	return b.String()
}

// PlainText renders the notification without markup.
func (n Notification) PlainText() string {
	parts := []string{n.Title}
	if n.Body != "" {
		parts = append(parts, n.Body)
	}
	if n.Location != "" {
		parts = append(parts, n.Location)
	}
	return strings.Join(parts, "\n")
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

// Send delivers to all notifiers even if some fail.
func (m Multi) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. Pass nil logger for default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify-log")}
}

func (l *LogNotifier) Send(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "reminder triggered",
		"reminder_id", n.ReminderID,
		"title", n.Title,
		"location", n.Location,
		"coordinates", n.Coordinates())
	return nil
}
