// ABOUTME: Region monitoring contract and the in-process LocalMonitor implementation
// ABOUTME: Persists registrations, evaluates location fixes and emits ENTER events to a sink

package geofence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/2389/locus-gateway/internal/store"
)

// MaxRegions is the most regions a single monitor will hold.
const MaxRegions = 100

// ErrNoLocation is returned when no device fix has been reported yet.
var ErrNoLocation = errors.New("no device location available")

// Monitor registers regions with a monitoring service. AddRegions only
// registers; ActivateRegions evaluates the initial trigger once the caller is
// ready to receive events for those regions.
type Monitor interface {
	AddRegions(ctx context.Context, regions []Region) error
	ActivateRegions(ctx context.Context, ids []string) error
	RemoveRegions(ctx context.Context, ids []string) error
	RemoveAll(ctx context.Context) error
}

// EventSink receives transition events. Deliver must not block.
type EventSink interface {
	Deliver(ev Event) bool
}

type monitored struct {
	region Region
	inside bool
	known  bool // inside reflects at least one fix
}

// LocalMonitor is an in-process Monitor driven by reported location fixes.
type LocalMonitor struct {
	mu              sync.Mutex
	fences          store.GeofenceStore
	sink            EventSink
	regions         map[string]*monitored
	order           []string
	locationEnabled bool
	last            *orb.Point
	logger          *slog.Logger
}

// NewLocalMonitor creates a monitor backed by the given registration store.
// Pass nil logger for default.
func NewLocalMonitor(fences store.GeofenceStore, sink EventSink, logger *slog.Logger) *LocalMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalMonitor{
		fences:          fences,
		sink:            sink,
		regions:         make(map[string]*monitored),
		locationEnabled: true,
		logger:          logger.With("component", "geofence-monitor"),
	}
}

// SetLocationEnabled toggles device location services. While disabled,
// registration and location reports fail with a *SettingsError.
func (m *LocalMonitor) SetLocationEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locationEnabled = enabled
	m.logger.Info("location services toggled", "enabled", enabled)
}

// LocationEnabled reports whether location services are on.
func (m *LocalMonitor) LocationEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locationEnabled
}

// Restore reloads persisted registrations along with their last known
// containment, so the first fix after a restart fires ENTER only for regions
// the device was outside of. It is called once at startup.
func (m *LocalMonitor) Restore(ctx context.Context) error {
	records, err := m.fences.ListGeofences(ctx)
	if err != nil {
		return fmt.Errorf("listing geofences: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		mon := m.trackLocked(regionFromRecord(rec))
		if rec.Inside != nil {
			mon.known = true
			mon.inside = *rec.Inside
		}
	}
	m.logger.Info("restored geofences", "count", len(records))
	return nil
}

// AddRegions persists and starts monitoring the given regions. Re-adding an
// ID replaces the previous registration. New regions start with unknown
// containment; the initial trigger fires on ActivateRegions or the next fix.
func (m *LocalMonitor) AddRegions(ctx context.Context, regions []Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locationEnabled {
		return &SettingsError{Reason: "location services are turned off"}
	}

	added := 0
	for _, r := range regions {
		if _, exists := m.regions[r.ID]; !exists {
			added++
		}
	}
	if len(m.regions)+added > MaxRegions {
		return &StatusError{Code: StatusTooManyGeofences}
	}

	now := time.Now().UTC()
	for _, r := range regions {
		if err := m.fences.SaveGeofence(ctx, r.record(now)); err != nil {
			return fmt.Errorf("saving geofence %s: %w", r.ID, err)
		}
	}

	for _, r := range regions {
		m.trackLocked(r)
		m.logger.Debug("monitoring region", "id", r.ID, "center", r.WKT(), "radius_m", r.RadiusMeters)
	}
	return nil
}

// ActivateRegions evaluates the last known fix against the given regions
// whose containment is still unknown. A region the device is already inside
// fires ENTER if it requests an initial trigger. Unknown IDs are ignored.
func (m *LocalMonitor) ActivateRegions(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.last == nil {
		return nil
	}

	var entered []string
	for _, id := range ids {
		mon, ok := m.regions[id]
		if !ok || mon.known {
			continue
		}
		if m.evaluateLocked(ctx, mon, *m.last) {
			entered = append(entered, id)
		}
	}

	if len(entered) > 0 {
		m.emitLocked(TransitionEnter, entered, *m.last)
	}
	return nil
}

// RemoveRegions stops monitoring the given IDs. Unknown IDs are ignored.
func (m *LocalMonitor) RemoveRegions(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if err := m.fences.DeleteGeofence(ctx, id); err != nil && !errors.Is(err, store.ErrGeofenceNotFound) {
			return fmt.Errorf("deleting geofence %s: %w", id, err)
		}
		m.untrackLocked(id)
	}
	return nil
}

// RemoveAll stops monitoring every region.
func (m *LocalMonitor) RemoveAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fences.DeleteAllGeofences(ctx); err != nil {
		return fmt.Errorf("deleting geofences: %w", err)
	}
	m.regions = make(map[string]*monitored)
	m.order = nil
	return nil
}

// Regions returns the monitored regions in registration order.
func (m *LocalMonitor) Regions() []Region {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Region, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.regions[id].region)
	}
	return out
}

// ReportLocation feeds a device fix into the monitor. Regions the fix has just
// entered are reported to the sink as a single ENTER event.
func (m *LocalMonitor) ReportLocation(ctx context.Context, p orb.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locationEnabled {
		return &SettingsError{Reason: "location services are turned off"}
	}

	fix := p
	m.last = &fix

	var entered []string
	for _, id := range m.order {
		if m.evaluateLocked(ctx, m.regions[id], p) {
			entered = append(entered, id)
		}
	}

	if len(entered) > 0 {
		m.emitLocked(TransitionEnter, entered, p)
	}
	return nil
}

// evaluateLocked applies fix p to one region, persists any change in
// containment and reports whether the region should fire ENTER.
func (m *LocalMonitor) evaluateLocked(ctx context.Context, mon *monitored, p orb.Point) bool {
	inside := mon.region.Contains(p)

	fire := false
	if inside && mon.region.Transitions.Has(TransitionEnter) {
		if mon.known {
			fire = !mon.inside
		} else {
			fire = mon.region.InitialTrigger
		}
	}

	changed := !mon.known || mon.inside != inside
	mon.inside = inside
	mon.known = true

	if changed {
		if err := m.fences.SetGeofenceInside(ctx, mon.region.ID, inside); err != nil {
			m.logger.Warn("failed to persist geofence state", "id", mon.region.ID, "error", err)
		}
	}
	return fire
}

// LastLocation returns the most recent reported fix.
func (m *LocalMonitor) LastLocation(ctx context.Context) (orb.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locationEnabled {
		return orb.Point{}, &SettingsError{Reason: "location services are turned off"}
	}
	if m.last == nil {
		return orb.Point{}, ErrNoLocation
	}
	return *m.last, nil
}

func (m *LocalMonitor) trackLocked(r Region) *monitored {
	if _, exists := m.regions[r.ID]; !exists {
		m.order = append(m.order, r.ID)
	}
	mon := &monitored{region: r}
	m.regions[r.ID] = mon
	return mon
}

func (m *LocalMonitor) untrackLocked(id string) {
	if _, exists := m.regions[id]; !exists {
		return
	}
	delete(m.regions, id)
	for i, rid := range m.order {
		if rid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *LocalMonitor) emitLocked(t Transition, ids []string, at orb.Point) {
	if m.sink == nil {
		return
	}
	ev := Event{
		ID:         uuid.NewString(),
		Status:     StatusSuccess,
		Transition: t,
		RegionIDs:  ids,
		Location:   at,
		At:         time.Now().UTC(),
	}
	if !m.sink.Deliver(ev) {
		m.logger.Warn("transition event dropped", "transition", t, "regions", len(ids))
	}
}
