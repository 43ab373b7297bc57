// ABOUTME: Map location picker: camera centering, pin selection and confirmation
// ABOUTME: Writes the confirmed selection into the editor draft through LocationSink

package picker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/paulmach/orb"

	"github.com/2389/locus-gateway/internal/reminders"
)

// DefaultZoom is the camera zoom used when centering.
const DefaultZoom = 15

// DroppedPinLabel labels a pin placed by long press.
const DroppedPinLabel = "Dropped Pin"

// MsgPermissionDenied is shown when location permission is refused.
const MsgPermissionDenied = "Location permission denied, showing the default location"

// DefaultLocation is where the camera goes when no device fix is available.
var DefaultLocation = orb.Point{151.2106085, -33.8523341}

// CenteringMode controls when the camera is first centered on the device.
type CenteringMode int

const (
	// CenterAfterPermission waits for the permission callback.
	CenterAfterPermission CenteringMode = iota
	// CenterOnReady centers as soon as the map is ready.
	CenterOnReady
)

func (m CenteringMode) String() string {
	if m == CenterOnReady {
		return "on_ready"
	}
	return "after_permission"
}

// ParseCenteringMode parses a config value. Empty means CenterAfterPermission.
func ParseCenteringMode(s string) (CenteringMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "after_permission":
		return CenterAfterPermission, nil
	case "on_ready":
		return CenterOnReady, nil
	default:
		return CenterAfterPermission, fmt.Errorf("unknown centering mode %q", s)
	}
}

// MapType is the base map layer.
type MapType int

const (
	MapNormal MapType = iota
	MapHybrid
	MapSatellite
	MapTerrain
)

var mapTypeNames = [...]string{"normal", "hybrid", "satellite", "terrain"}

func (t MapType) String() string {
	if t < 0 || int(t) >= len(mapTypeNames) {
		return "normal"
	}
	return mapTypeNames[t]
}

// MarshalText renders the map type for JSON responses.
func (t MapType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a map type name.
func (t *MapType) UnmarshalText(text []byte) error {
	parsed, err := ParseMapType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseMapType parses a map type name. Empty means MapNormal.
func ParseMapType(s string) (MapType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return MapNormal, nil
	}
	for i, candidate := range mapTypeNames {
		if candidate == name {
			return MapType(i), nil
		}
	}
	return MapNormal, fmt.Errorf("unknown map type %q", s)
}

// DeviceLocator reports the device's last known fix.
type DeviceLocator interface {
	LastLocation(ctx context.Context) (orb.Point, error)
}

// LocationSink receives the confirmed selection.
type LocationSink interface {
	SetSelectedLocation(sel reminders.Selection)
}

// Camera is the map viewport.
type Camera struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      int     `json:"zoom"`
}

// Pin is the single selectable marker on the map.
type Pin struct {
	Label     string  `json:"label"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Snippet   string  `json:"snippet,omitempty"`
	POI       bool    `json:"poi"`
}

// View is what the map screen renders.
type View struct {
	Ready                   bool    `json:"ready"`
	MapType                 MapType `json:"map_type"`
	Camera                  *Camera `json:"camera,omitempty"`
	PermissionGranted       *bool   `json:"permission_granted,omitempty"`
	MyLocationEnabled       bool    `json:"my_location_enabled"`
	MyLocationButtonEnabled bool    `json:"my_location_button_enabled"`
	Pin                     *Pin    `json:"pin,omitempty"`
}

// Options configures a Picker.
type Options struct {
	Mode            CenteringMode
	DefaultLocation orb.Point
	MapType         MapType
}

// Picker is the location picker state machine.
type Picker struct {
	mu      sync.Mutex
	opts    Options
	locator DeviceLocator
	sink    LocationSink
	events  *reminders.Events
	view    View
	logger  *slog.Logger
}

// New creates a picker. A zero DefaultLocation falls back to DefaultLocation.
// Pass nil logger for default.
func New(opts Options, locator DeviceLocator, sink LocationSink, events *reminders.Events, logger *slog.Logger) *Picker {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = reminders.NewEvents(logger)
	}
	if opts.DefaultLocation == (orb.Point{}) {
		opts.DefaultLocation = DefaultLocation
	}
	return &Picker{
		opts:    opts,
		locator: locator,
		sink:    sink,
		events:  events,
		view:    View{MapType: opts.MapType, MyLocationButtonEnabled: true},
		logger:  logger.With("component", "picker", "mode", opts.Mode.String()),
	}
}

// View returns a snapshot of the screen state.
func (p *Picker) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// OnMapReady marks the map usable. In CenterOnReady mode, or when permission
// was already granted, the camera is centered on the device.
func (p *Picker) OnMapReady(ctx context.Context) View {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.view.Ready = true
	granted := p.view.PermissionGranted != nil && *p.view.PermissionGranted
	if p.opts.Mode == CenterOnReady || granted {
		p.centerOnDeviceLocked(ctx)
	}
	return p.snapshotLocked()
}

// OnPermissionResult applies the location permission answer. Granting enables
// the my-location layer and centers on the device once the map is ready.
// Denying centers on the default location and disables the my-location button.
func (p *Picker) OnPermissionResult(ctx context.Context, granted bool) View {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.view.PermissionGranted = &granted
	if granted {
		p.view.MyLocationEnabled = true
		if p.view.Ready {
			p.centerOnDeviceLocked(ctx)
		}
		return p.snapshotLocked()
	}

	p.logger.Info("location permission denied")
	p.view.MyLocationEnabled = false
	p.fallbackLocked()
	p.events.Notice(MsgPermissionDenied)
	return p.snapshotLocked()
}

// SetMapType switches the base map layer. The choice survives Reset.
func (p *Picker) SetMapType(t MapType) View {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.MapType = t
	p.logger.Debug("map type changed", "map_type", t.String())
	return p.snapshotLocked()
}

// DropPin places a labelled pin at point, replacing any previous pin.
func (p *Picker) DropPin(point orb.Point) Pin {
	return p.setPin(Pin{
		Label:     DroppedPinLabel,
		Latitude:  point.Lat(),
		Longitude: point.Lon(),
		Snippet:   fmt.Sprintf("Lat: %.5f, Long: %.5f", point.Lat(), point.Lon()),
	})
}

// SelectPOI pins a named point of interest, replacing any previous pin.
func (p *Picker) SelectPOI(name string, point orb.Point) Pin {
	return p.setPin(Pin{
		Label:     name,
		Latitude:  point.Lat(),
		Longitude: point.Lon(),
		POI:       true,
	})
}

func (p *Picker) setPin(pin Pin) Pin {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Pin = &pin
	return pin
}

// Confirm writes the pinned location into the editor draft and navigates
// back. Without a pin it only navigates back and reports false.
func (p *Picker) Confirm() (reminders.Selection, bool) {
	p.mu.Lock()
	pin := p.view.Pin
	p.mu.Unlock()

	defer p.events.NavigateBack()
	if pin == nil {
		return reminders.Selection{}, false
	}

	sel := reminders.Selection{
		Label:     pin.Label,
		Latitude:  pin.Latitude,
		Longitude: pin.Longitude,
	}
	if pin.POI {
		sel.POI = pin.Label
	}
	if p.sink != nil {
		p.sink.SetSelectedLocation(sel)
	}
	p.logger.Debug("location selected", "label", sel.Label)
	return sel, true
}

// Reset returns the picker to its initial state for the next session,
// keeping the chosen map type.
func (p *Picker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view = View{MapType: p.view.MapType, MyLocationButtonEnabled: true}
}

func (p *Picker) centerOnDeviceLocked(ctx context.Context) {
	if p.locator == nil {
		p.fallbackLocked()
		return
	}
	fix, err := p.locator.LastLocation(ctx)
	if err != nil {
		p.logger.Debug("current location unavailable, using default", "error", err)
		p.fallbackLocked()
		return
	}
	p.view.Camera = &Camera{Latitude: fix.Lat(), Longitude: fix.Lon(), Zoom: DefaultZoom}
}

func (p *Picker) fallbackLocked() {
	d := p.opts.DefaultLocation
	p.view.Camera = &Camera{Latitude: d.Lat(), Longitude: d.Lon(), Zoom: DefaultZoom}
	p.view.MyLocationButtonEnabled = false
}

func (p *Picker) snapshotLocked() View {
	v := p.view
	if v.Camera != nil {
		c := *v.Camera
		v.Camera = &c
	}
	if v.Pin != nil {
		pin := *v.Pin
		v.Pin = &pin
	}
	if v.PermissionGranted != nil {
		g := *v.PermissionGranted
		v.PermissionGranted = &g
	}
	return v
}
