// ABOUTME: Circular region model built from a reminder's coordinates
// ABOUTME: Provides containment checks and conversion to persisted geofence records

package geofence

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"

	"github.com/2389/locus-gateway/internal/store"
)

// DefaultRadiusMeters is the region radius used when none is configured.
const DefaultRadiusMeters = 500.0

// NeverExpire marks a region that stays registered until removed.
const NeverExpire time.Duration = -1

// ErrMissingCoordinates is returned when a reminder without a picked location
// is turned into a region.
var ErrMissingCoordinates = errors.New("reminder has no coordinates")

// Transition is a bitmask of region transitions.
type Transition int

const (
	TransitionEnter Transition = 1 << iota
	TransitionExit
	TransitionDwell
)

func (t Transition) String() string {
	switch t {
	case TransitionEnter:
		return "enter"
	case TransitionExit:
		return "exit"
	case TransitionDwell:
		return "dwell"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

// Has reports whether every bit of other is set in t.
func (t Transition) Has(other Transition) bool {
	return t&other == other
}

// Region is a circular area monitored for transitions. ID equals the reminder ID.
type Region struct {
	ID             string
	Center         orb.Point
	RadiusMeters   float64
	Transitions    Transition
	Expiration     time.Duration
	InitialTrigger bool
}

// NewRegion builds an ENTER-only, never-expiring region around the reminder's
// location. A non-positive radius falls back to DefaultRadiusMeters.
func NewRegion(reminder *store.Reminder, radiusMeters float64) (Region, error) {
	if reminder == nil || !reminder.HasCoordinates() {
		return Region{}, ErrMissingCoordinates
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return Region{
		ID:             reminder.ID,
		Center:         orb.Point{*reminder.Longitude, *reminder.Latitude},
		RadiusMeters:   radiusMeters,
		Transitions:    TransitionEnter,
		Expiration:     NeverExpire,
		InitialTrigger: true,
	}, nil
}

// Bound returns the box enclosing the region.
func (r Region) Bound() orb.Bound {
	return geo.NewBoundAroundPoint(r.Center, r.RadiusMeters)
}

// Contains reports whether p lies inside the region. Points outside the
// bounding box are rejected before the distance check.
func (r Region) Contains(p orb.Point) bool {
	if !r.Bound().Contains(p) {
		return false
	}
	return geo.Distance(r.Center, p) <= r.RadiusMeters
}

// WKT renders the region center for logs.
func (r Region) WKT() string {
	return wkt.MarshalString(r.Center)
}

func (r Region) record(now time.Time) *store.Geofence {
	return &store.Geofence{
		ID:             r.ID,
		Latitude:       r.Center.Lat(),
		Longitude:      r.Center.Lon(),
		RadiusMeters:   r.RadiusMeters,
		Transitions:    int(r.Transitions),
		InitialTrigger: r.InitialTrigger,
		RegisteredAt:   now,
	}
}

func regionFromRecord(f *store.Geofence) Region {
	return Region{
		ID:             f.ID,
		Center:         orb.Point{f.Longitude, f.Latitude},
		RadiusMeters:   f.RadiusMeters,
		Transitions:    Transition(f.Transitions),
		Expiration:     NeverExpire,
		InitialTrigger: f.InitialTrigger,
	}
}
