// ABOUTME: ListController runs reminder load cycles and projects authentication state
// ABOUTME: Loading, empty and failure flags are published through an observable ListState

package reminders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/locus-gateway/internal/auth"
	"github.com/2389/locus-gateway/internal/store"
)

// Phase is the position of a load cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhasePopulated
	PhaseEmpty
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhasePopulated:
		return "populated"
	case PhaseEmpty:
		return "empty"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MarshalText renders the phase for JSON responses.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name produced by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseLoading, PhasePopulated, PhaseEmpty, PhaseFailed} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// ListState is what the reminder list screen renders.
type ListState struct {
	Phase   Phase  `json:"phase"`
	Loading bool   `json:"loading"`
	Empty   bool   `json:"empty"`
	Items   []Item `json:"items"`
	Error   string `json:"error,omitempty"`
}

// ListController loads reminders for display.
type ListController struct {
	reminders store.ReminderStore
	users     auth.UserSource
	state     *State[ListState]
	events    *Events
	logger    *slog.Logger
}

// NewListController creates a controller over the shared store and user
// source. users may be nil, in which case the user is always unauthenticated.
// Pass nil logger for default.
func NewListController(reminders store.ReminderStore, users auth.UserSource, events *Events, logger *slog.Logger) *ListController {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = NewEvents(logger)
	}
	return &ListController{
		reminders: reminders,
		users:     users,
		state:     NewState(ListState{Items: []Item{}}),
		events:    events,
		logger:    logger.With("component", "reminder-list"),
	}
}

// State returns the observable list state.
func (c *ListController) State() *State[ListState] {
	return c.state
}

// Events returns the UI command channel.
func (c *ListController) Events() *Events {
	return c.events
}

// LoadReminders runs one load cycle and returns the state it ended in.
// Loading is published before the store is queried. A failure is reported as
// a notice carrying the store's message.
func (c *ListController) LoadReminders(ctx context.Context) ListState {
	c.state.Update(func(s ListState) ListState {
		s.Phase = PhaseLoading
		s.Loading = true
		s.Error = ""
		return s
	})

	records, err := c.reminders.GetReminders(ctx)
	if err != nil {
		c.logger.Warn("loading reminders failed", "error", err)
		final := c.state.Update(func(s ListState) ListState {
			return ListState{
				Phase: PhaseFailed,
				Empty: true,
				Items: []Item{},
				Error: err.Error(),
			}
		})
		c.events.Notice(err.Error())
		return final
	}

	items := make([]Item, 0, len(records))
	for _, r := range records {
		items = append(items, ItemFromReminder(r))
	}

	phase := PhasePopulated
	if len(items) == 0 {
		phase = PhaseEmpty
	}

	c.logger.Debug("reminders loaded", "count", len(items))
	return c.state.Update(func(s ListState) ListState {
		return ListState{
			Phase: phase,
			Empty: len(items) == 0,
			Items: items,
		}
	})
}

// AuthenticationState projects the current user.
func (c *ListController) AuthenticationState() auth.AuthenticationState {
	if c.users == nil {
		return auth.StateUnauthenticated
	}
	return auth.StateFor(c.users.CurrentUser())
}

// WatchAuthentication streams the projection of every user change until ctx
// is cancelled. Consecutive identical states are collapsed.
func (c *ListController) WatchAuthentication(ctx context.Context) <-chan auth.AuthenticationState {
	out := make(chan auth.AuthenticationState, 1)
	if c.users == nil {
		out <- auth.StateUnauthenticated
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out
	}

	users := c.users.Subscribe(ctx)
	go func() {
		defer close(out)
		first := true
		var last auth.AuthenticationState
		for user := range users {
			state := auth.StateFor(user)
			if !first && state == last {
				continue
			}
			first = false
			last = state
			select {
			case out <- state:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Logout signs the current user out.
func (c *ListController) Logout() {
	if c.users == nil {
		return
	}
	c.users.SignOut()
	c.logger.Info("logged out")
}
