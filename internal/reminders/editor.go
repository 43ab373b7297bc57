// ABOUTME: EditorController owns the reminder draft, validates it and saves it
// ABOUTME: Submit registers the geofence first and persists only after registration succeeds

package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/locus-gateway/internal/geofence"
	"github.com/2389/locus-gateway/internal/store"
)

// User-facing messages emitted by the editor.
const (
	MsgEnterTitle     = "Please enter title"
	MsgSelectLocation = "Please select location"
	MsgReminderSaved  = "Reminder Saved !"
	MsgGeofenceFailed = "Failed to add geofence"
	FieldTitle        = "title"
	FieldLocation     = "location"
)

// Retry errors
var (
	ErrNothingToRetry = errors.New("no failed registration to retry")
	ErrRetryExhausted = errors.New("registration already retried")
)

// ValidationError reports a draft that cannot be saved.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Registrar registers a reminder's geofence. Activate runs once the reminder
// is persisted; Unregister undoes a registration whose save failed.
type Registrar interface {
	Register(ctx context.Context, reminder *store.Reminder) (geofence.Region, error)
	Activate(ctx context.Context, ids ...string) error
	Unregister(ctx context.Context, ids ...string) error
}

// Selection is a location picked on the map.
type Selection struct {
	Label     string  `json:"label"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	POI       string  `json:"poi,omitempty"`
}

// Draft is the reminder being authored.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	POI         string   `json:"poi,omitempty"`
}

// EditorState is what the editor screen renders.
type EditorState struct {
	Draft   Draft `json:"draft"`
	Loading bool  `json:"loading"`
}

// EditorController is shared by every entry point into the editor, so
// OnClear must run when an editing session ends.
type EditorController struct {
	reminders store.ReminderStore
	registrar Registrar
	state     *State[EditorState]
	events    *Events
	logger    *slog.Logger

	retryMu sync.Mutex
	pending *Item // last submission whose registration failed resolvably
	retried bool
}

// NewEditorController creates an editor over the shared store.
// Pass nil logger for default.
func NewEditorController(reminders store.ReminderStore, registrar Registrar, events *Events, logger *slog.Logger) *EditorController {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = NewEvents(logger)
	}
	return &EditorController{
		reminders: reminders,
		registrar: registrar,
		state:     NewState(EditorState{}),
		events:    events,
		logger:    logger.With("component", "reminder-editor"),
	}
}

// State returns the observable editor state.
func (c *EditorController) State() *State[EditorState] {
	return c.state
}

// Events returns the UI command channel.
func (c *EditorController) Events() *Events {
	return c.events
}

// Draft returns a copy of the current draft.
func (c *EditorController) Draft() Draft {
	d := c.state.Get().Draft
	d.Latitude = copyFloat(d.Latitude)
	d.Longitude = copyFloat(d.Longitude)
	return d
}

func (c *EditorController) SetTitle(title string) {
	c.updateDraft(func(d *Draft) { d.Title = title })
}

func (c *EditorController) SetDescription(description string) {
	c.updateDraft(func(d *Draft) { d.Description = description })
}

// SetSelectedLocation stores the picked location label and coordinates.
func (c *EditorController) SetSelectedLocation(sel Selection) {
	lat, lon := sel.Latitude, sel.Longitude
	c.updateDraft(func(d *Draft) {
		d.Location = sel.Label
		d.Latitude = &lat
		d.Longitude = &lon
		d.POI = sel.POI
	})
}

func (c *EditorController) updateDraft(fn func(*Draft)) {
	c.state.Update(func(s EditorState) EditorState {
		fn(&s.Draft)
		return s
	})
}

// OnClear resets every draft field.
func (c *EditorController) OnClear() {
	c.state.Set(EditorState{})
	c.retryMu.Lock()
	c.pending = nil
	c.retried = false
	c.retryMu.Unlock()
}

// ValidateEnteredData reports whether item can be saved. On failure it emits
// a notice targeted at the offending field.
func (c *EditorController) ValidateEnteredData(item *Item) bool {
	if verr := validate(item); verr != nil {
		c.events.FieldNotice(verr.Field, verr.Message)
		return false
	}
	return true
}

func validate(item *Item) *ValidationError {
	if item.Title == "" {
		return &ValidationError{Field: FieldTitle, Message: MsgEnterTitle}
	}
	if item.Location == "" {
		return &ValidationError{Field: FieldLocation, Message: MsgSelectLocation}
	}
	return nil
}

// ValidateAndSaveReminder validates item and, if valid, saves it, confirms
// with a notice and asks the UI to navigate back. It reports whether the
// reminder was saved.
func (c *EditorController) ValidateAndSaveReminder(ctx context.Context, item *Item) (bool, error) {
	if !c.ValidateEnteredData(item) {
		return false, nil
	}

	c.setLoading(true)
	err := c.SaveReminder(ctx, item)
	c.setLoading(false)
	if err != nil {
		c.events.Notice(err.Error())
		return false, err
	}

	c.events.Notice(MsgReminderSaved)
	c.events.NavigateBack()
	return true, nil
}

// SaveReminder persists item, assigning an ID if it has none.
func (c *EditorController) SaveReminder(ctx context.Context, item *Item) error {
	record := item.ToReminder()
	item.ID = record.EnsureID()

	if err := c.reminders.SaveReminder(ctx, record); err != nil {
		return fmt.Errorf("saving reminder: %w", err)
	}
	c.logger.Info("reminder saved", "id", item.ID, "title", item.Title)
	return nil
}

// Submit saves the current draft. The geofence is registered first; the
// reminder is persisted only once registration succeeds. A validation failure
// is returned as *ValidationError. Missing coordinates are returned as
// geofence.ErrMissingCoordinates.
func (c *EditorController) Submit(ctx context.Context) (*Item, error) {
	d := c.Draft()
	item := &Item{
		Title:       d.Title,
		Description: d.Description,
		Location:    d.Location,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
	}
	if verr := validate(item); verr != nil {
		c.events.FieldNotice(verr.Field, verr.Message)
		return nil, verr
	}
	item.ID = item.ToReminder().EnsureID()

	c.retryMu.Lock()
	c.retried = false
	c.retryMu.Unlock()

	return c.registerAndSave(ctx, item)
}

// RetryRegistration re-attempts the last submission whose registration failed
// with a resolvable error. It can be used once per submission.
func (c *EditorController) RetryRegistration(ctx context.Context) (*Item, error) {
	c.retryMu.Lock()
	if c.pending == nil {
		c.retryMu.Unlock()
		return nil, ErrNothingToRetry
	}
	if c.retried {
		c.retryMu.Unlock()
		return nil, ErrRetryExhausted
	}
	c.retried = true
	item := c.pending
	c.retryMu.Unlock()

	c.logger.Info("retrying geofence registration", "id", item.ID)
	return c.registerAndSave(ctx, item)
}

func (c *EditorController) registerAndSave(ctx context.Context, item *Item) (*Item, error) {
	_, err := c.registrar.Register(ctx, item.ToReminder())
	if errors.Is(err, geofence.ErrMissingCoordinates) {
		return nil, err
	}
	if err != nil {
		c.events.Notice(MsgGeofenceFailed)

		var settingsErr *geofence.SettingsError
		c.retryMu.Lock()
		if errors.As(err, &settingsErr) && settingsErr.Resolvable() {
			c.pending = item
			c.retryMu.Unlock()
			c.events.PromptSettings(err)
		} else {
			c.pending = nil
			c.retryMu.Unlock()
		}
		return nil, err
	}

	c.retryMu.Lock()
	c.pending = nil
	c.retryMu.Unlock()

	if _, err := c.ValidateAndSaveReminder(ctx, item); err != nil {
		if uerr := c.registrar.Unregister(ctx, item.ID); uerr != nil {
			c.logger.Warn("failed to remove geofence after save failure", "id", item.ID, "error", uerr)
		}
		return nil, err
	}

	// The region may fire for the current position only now that the record
	// resolves.
	if err := c.registrar.Activate(ctx, item.ID); err != nil {
		c.logger.Warn("failed to activate geofence", "id", item.ID, "error", err)
	}
	return item, nil
}

func (c *EditorController) setLoading(loading bool) {
	c.state.Update(func(s EditorState) EditorState {
		s.Loading = loading
		return s
	})
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
