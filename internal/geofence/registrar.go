// ABOUTME: Registrar turns reminders into regions and adds them to a Monitor
// ABOUTME: Monitor failures are wrapped so callers can still match SettingsError with errors.As

package geofence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/locus-gateway/internal/store"
)

// Registrar registers reminder regions with a monitor.
type Registrar struct {
	monitor      Monitor
	radiusMeters float64
	logger       *slog.Logger
}

// NewRegistrar creates a registrar using the given radius for every region.
// Pass nil logger for default.
func NewRegistrar(monitor Monitor, radiusMeters float64, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Registrar{
		monitor:      monitor,
		radiusMeters: radiusMeters,
		logger:       logger.With("component", "geofence-registrar"),
	}
}

// Register builds the reminder's region and adds it to the monitor.
func (r *Registrar) Register(ctx context.Context, reminder *store.Reminder) (Region, error) {
	region, err := NewRegion(reminder, r.radiusMeters)
	if err != nil {
		return Region{}, err
	}

	if err := r.monitor.AddRegions(ctx, []Region{region}); err != nil {
		r.logger.Warn("geofence registration failed", "id", region.ID, "error", err)
		return Region{}, fmt.Errorf("adding geofence: %w", err)
	}

	r.logger.Info("geofence added", "id", region.ID, "radius_m", region.RadiusMeters)
	return region, nil
}

// Activate evaluates the initial trigger for regions whose reminders are now
// persisted.
func (r *Registrar) Activate(ctx context.Context, ids ...string) error {
	if err := r.monitor.ActivateRegions(ctx, ids); err != nil {
		return fmt.Errorf("activating geofences: %w", err)
	}
	return nil
}

// Unregister removes the regions for the given reminder IDs.
func (r *Registrar) Unregister(ctx context.Context, ids ...string) error {
	if err := r.monitor.RemoveRegions(ctx, ids); err != nil {
		return fmt.Errorf("removing geofences: %w", err)
	}
	return nil
}
