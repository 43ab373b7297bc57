package geofence

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/locus-gateway/internal/store"
)

func ptr(v float64) *float64 { return &v }

func reminderAt(id string, lat, lon float64) *store.Reminder {
	return &store.Reminder{ID: id, Title: "title " + id, Location: "somewhere", Latitude: ptr(lat), Longitude: ptr(lon)}
}

func TestNewRegion(t *testing.T) {
	region, err := NewRegion(reminderAt("r1", -33.85, 151.21), 0)
	require.NoError(t, err)

	assert.Equal(t, "r1", region.ID)
	assert.Equal(t, orb.Point{151.21, -33.85}, region.Center)
	assert.Equal(t, DefaultRadiusMeters, region.RadiusMeters)
	assert.Equal(t, TransitionEnter, region.Transitions)
	assert.Equal(t, NeverExpire, region.Expiration)
	assert.True(t, region.InitialTrigger)
}

func TestNewRegion_CustomRadius(t *testing.T) {
	region, err := NewRegion(reminderAt("r1", 0, 0), 120)
	require.NoError(t, err)
	assert.Equal(t, 120.0, region.RadiusMeters)
}

func TestNewRegion_MissingCoordinates(t *testing.T) {
	cases := map[string]*store.Reminder{
		"nil reminder":  nil,
		"no latitude":   {ID: "a", Longitude: ptr(1)},
		"no longitude":  {ID: "b", Latitude: ptr(1)},
		"no coordinate": {ID: "c"},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegion(r, 500)
			assert.True(t, errors.Is(err, ErrMissingCoordinates))
		})
	}
}

func TestRegion_Contains(t *testing.T) {
	region, err := NewRegion(reminderAt("r1", 0, 0), 500)
	require.NoError(t, err)

	assert.True(t, region.Contains(orb.Point{0, 0}))
	assert.True(t, region.Contains(orb.Point{0.001, 0.001}), "~157m away should be inside")
	assert.False(t, region.Contains(orb.Point{0.01, 0}), "~1.1km away should be outside")
}

func TestRegion_Bound(t *testing.T) {
	region, err := NewRegion(reminderAt("r1", 10, 10), 500)
	require.NoError(t, err)

	b := region.Bound()
	assert.True(t, b.Contains(region.Center))
	assert.Less(t, b.Min.Lat(), 10.0)
	assert.Greater(t, b.Max.Lat(), 10.0)

	// Containment agrees with the box on either side of the edge
	assert.True(t, region.Contains(orb.Point{10, 10.004}), "~445m north should be inside")
	assert.False(t, region.Contains(orb.Point{10, 10.0046}), "~511m north should be outside")
	assert.False(t, b.Contains(orb.Point{10, 10.01}))
	assert.False(t, region.Contains(orb.Point{10, 10.01}))
}

func TestRegion_RecordRoundTrip(t *testing.T) {
	region, err := NewRegion(reminderAt("r1", 12.5, -3.25), 300)
	require.NoError(t, err)

	rec := region.record(fixedTime)
	assert.Equal(t, 12.5, rec.Latitude)
	assert.Equal(t, -3.25, rec.Longitude)
	assert.Equal(t, region, regionFromRecord(rec))
}

func TestRegion_WKT(t *testing.T) {
	region, err := NewRegion(reminderAt("r1", 2, 1), 300)
	require.NoError(t, err)
	assert.Equal(t, "POINT(1 2)", region.WKT())
}

func TestTransition_String(t *testing.T) {
	assert.Equal(t, "enter", TransitionEnter.String())
	assert.Equal(t, "exit", TransitionExit.String())
	assert.Equal(t, "dwell", TransitionDwell.String())
	assert.Equal(t, "transition(3)", (TransitionEnter | TransitionExit).String())
	assert.True(t, (TransitionEnter | TransitionExit).Has(TransitionEnter))
	assert.False(t, TransitionEnter.Has(TransitionExit))
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "Geofence service is not available now", StatusMessage(StatusNotAvailable))
	assert.Equal(t, "Your app has registered too many geofences", StatusMessage(StatusTooManyGeofences))
	assert.Contains(t, StatusMessage(StatusTooManyPendingIntents), "too many PendingIntents")
	assert.Contains(t, StatusMessage(42), "Unknown error")
}

func TestErrors(t *testing.T) {
	var settingsErr *SettingsError
	err := error(&SettingsError{Reason: "off"})
	require.True(t, errors.As(err, &settingsErr))
	assert.True(t, settingsErr.Resolvable())

	statusErr := &StatusError{Code: StatusTooManyGeofences}
	assert.Contains(t, statusErr.Error(), "1001")
}
