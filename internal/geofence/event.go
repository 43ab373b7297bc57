// ABOUTME: Geofence transition events, platform status codes and registration errors
// ABOUTME: StatusMessage maps numeric status codes to human-readable text

package geofence

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Status codes carried by transition events and registration failures.
const (
	StatusSuccess               = 0
	StatusNotAvailable          = 1000
	StatusTooManyGeofences      = 1001
	StatusTooManyPendingIntents = 1002
)

// StatusMessage returns human-readable text for a status code.
func StatusMessage(code int) string {
	switch code {
	case StatusSuccess:
		return "Success"
	case StatusNotAvailable:
		return "Geofence service is not available now"
	case StatusTooManyGeofences:
		return "Your app has registered too many geofences"
	case StatusTooManyPendingIntents:
		return "You have provided too many PendingIntents to the addGeofences() call"
	default:
		return "Unknown error: the Geofence service is not available now"
	}
}

// Event is a transition reported by a monitor for one or more regions.
// ID identifies one occurrence; a redelivery of the same event keeps its ID.
type Event struct {
	ID         string
	Status     int
	Transition Transition
	RegionIDs  []string
	Location   orb.Point
	At         time.Time
}

// HasError reports whether the event carries a failure status.
func (e Event) HasError() bool {
	return e.Status != StatusSuccess
}

// StatusError is a registration failure with a platform status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geofence status %d: %s", e.Code, StatusMessage(e.Code))
}

// SettingsError is a registration failure the user can fix by changing
// device settings, such as turning location services back on.
type SettingsError struct {
	Reason string
}

func (e *SettingsError) Error() string {
	return "location settings unsatisfied: " + e.Reason
}

// Resolvable reports that a settings change can fix the failure.
func (e *SettingsError) Resolvable() bool { return true }
