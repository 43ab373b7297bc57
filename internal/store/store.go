// ABOUTME: Store interfaces and data types for locus-gateway persistence
// ABOUTME: Defines Reminder and Geofence records and the ReminderStore/GeofenceStore contracts

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrReminderNotFound is returned when a reminder lookup has no match.
// The message is shown to users verbatim.
var ErrReminderNotFound = errors.New("Reminder not found!")

// ErrGeofenceNotFound is returned when a geofence registration does not exist
var ErrGeofenceNotFound = errors.New("geofence not found")

// Reminder is the persisted unit of a location reminder.
// Latitude and Longitude are nil when no location has been picked.
type Reminder struct {
	ID          string
	Title       string
	Description string
	Location    string
	Latitude    *float64
	Longitude   *float64
}

// NewReminder builds a Reminder with a freshly generated ID.
func NewReminder(title, description, location string, latitude, longitude *float64) *Reminder {
	return &Reminder{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Location:    location,
		Latitude:    latitude,
		Longitude:   longitude,
	}
}

// EnsureID assigns a new ID if the reminder doesn't have one yet.
// An existing ID is never replaced.
func (r *Reminder) EnsureID() string {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return r.ID
}

// HasCoordinates reports whether both coordinates are present.
func (r *Reminder) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Clone returns a deep copy so callers can't mutate stored state.
func (r *Reminder) Clone() *Reminder {
	c := *r
	if r.Latitude != nil {
		lat := *r.Latitude
		c.Latitude = &lat
	}
	if r.Longitude != nil {
		lon := *r.Longitude
		c.Longitude = &lon
	}
	return &c
}

// Geofence is a persisted region registration. ID equals the reminder ID.
type Geofence struct {
	ID             string
	Latitude       float64
	Longitude      float64
	RadiusMeters   float64
	Transitions    int
	InitialTrigger bool
	RegisteredAt   time.Time

	// Inside is the last evaluated containment of the device fix.
	// Nil until a fix has been evaluated against the region.
	Inside *bool
}

// ReminderStore is the create/read/list/delete-all contract for reminders.
type ReminderStore interface {
	// SaveReminder inserts the reminder, replacing any record with the same ID.
	SaveReminder(ctx context.Context, reminder *Reminder) error

	// GetReminders returns all reminders in insertion order.
	GetReminders(ctx context.Context) ([]*Reminder, error)

	// GetReminder returns a single reminder.
	// Returns ErrReminderNotFound if it doesn't exist.
	GetReminder(ctx context.Context, id string) (*Reminder, error)

	// DeleteAllReminders empties the reminders table.
	DeleteAllReminders(ctx context.Context) error
}

// GeofenceStore persists region registrations so they survive restarts
type GeofenceStore interface {
	SaveGeofence(ctx context.Context, fence *Geofence) error
	ListGeofences(ctx context.Context) ([]*Geofence, error)
	DeleteGeofence(ctx context.Context, id string) error
	DeleteAllGeofences(ctx context.Context) error

	// SetGeofenceInside records whether the device was last seen inside the region.
	// Returns ErrGeofenceNotFound if it doesn't exist.
	SetGeofenceInside(ctx context.Context, id string, inside bool) error
}

// Store combines every persistence capability of the gateway
type Store interface {
	ReminderStore
	GeofenceStore

	// Ping checks that the backing storage is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
