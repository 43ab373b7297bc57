// ABOUTME: HTTP API handlers for reminders, the location picker, auth and geofence ingress
// ABOUTME: Also streams UI events to clients over SSE on GET /api/events

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/2389/locus-gateway/internal/auth"
	"github.com/2389/locus-gateway/internal/geofence"
	"github.com/2389/locus-gateway/internal/picker"
	"github.com/2389/locus-gateway/internal/reminders"
	"github.com/2389/locus-gateway/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// SubmitReminderRequest is the JSON request body for POST /api/reminders.
// Latitude and Longitude, when both present, replace the location picked on
// the map; otherwise the picked location in the draft is used.
type SubmitReminderRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// PickRequest is the JSON request body for POST /api/picker/select.
// A non-empty POI selects a named point of interest; otherwise a pin is dropped.
type PickRequest struct {
	POI       string  `json:"poi,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationRequest is the JSON request body for POST /api/location.
type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// GeofenceEventRequest is the JSON request body for POST /api/geofence/events.
// A client that retries a delivery should resend the same EventID so the
// retry is not notified twice.
type GeofenceEventRequest struct {
	EventID    string   `json:"event_id,omitempty"`
	Status     int      `json:"status"`
	Transition string   `json:"transition"`
	RegionIDs  []string `json:"region_ids"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
}

// AuthStateResponse is the JSON response for the auth endpoints.
type AuthStateResponse struct {
	State auth.AuthenticationState `json:"state"`
	User  *auth.User               `json:"user,omitempty"`
}

// SSEEvent is one server-sent event.
type SSEEvent struct {
	Event string
	Data  any
}

// routes builds the HTTP mux. /api routes other than /api/auth require a
// bearer token when auth is enabled.
func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)

	// Session endpoints check tokens themselves
	mux.HandleFunc("GET /api/auth/state", g.handleAuthState)
	mux.HandleFunc("POST /api/auth/session", g.handleSignIn)
	mux.HandleFunc("DELETE /api/auth/session", g.handleSignOut)

	mux.Handle("GET /api/reminders", g.protect(g.handleListReminders))
	mux.Handle("POST /api/reminders", g.protect(g.handleSubmitReminder))
	mux.Handle("DELETE /api/reminders", g.protect(g.handleDeleteReminders))
	mux.Handle("POST /api/reminders/retry", g.protect(g.handleRetryRegistration))
	mux.Handle("GET /api/reminders/{id}", g.protect(g.handleGetReminder))

	mux.Handle("GET /api/picker", g.protect(g.handlePickerView))
	mux.Handle("POST /api/picker/ready", g.protect(g.handlePickerReady))
	mux.Handle("POST /api/picker/permission", g.protect(g.handlePickerPermission))
	mux.Handle("POST /api/picker/select", g.protect(g.handlePickerSelect))
	mux.Handle("PUT /api/picker/map-type", g.protect(g.handlePickerMapType))

	mux.Handle("POST /api/location", g.protect(g.handleReportLocation))
	mux.Handle("PUT /api/location/settings", g.protect(g.handleLocationSettings))
	mux.Handle("POST /api/geofence/events", g.protect(g.handleGeofenceEvent))

	mux.Handle("GET /api/events", g.protect(g.handleEvents))

	return mux
}

// protect wraps h with bearer auth when a JWT secret is configured. Without
// one every request acts as localUser. Either way the request's user becomes
// the session user, so the auth projection follows the gating.
func (g *Gateway) protect(h http.HandlerFunc) http.Handler {
	adopt := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.adoptUser(auth.UserFromContext(r.Context()))
		h(w, r)
	})
	if g.verifier == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := localUser
			adopt(w, r.WithContext(auth.WithUser(r.Context(), &user)))
		})
	}
	return auth.HTTPAuthMiddleware(g.verifier)(adopt)
}

// adoptUser makes user current unless it already is.
func (g *Gateway) adoptUser(user *auth.User) {
	if user == nil {
		return
	}
	if cur := g.session.CurrentUser(); cur != nil && *cur == *user {
		return
	}
	g.session.SetUser(user)
	g.logger.Debug("session user set from request", "user_id", user.ID)
}

func (g *Gateway) authState() AuthStateResponse {
	return AuthStateResponse{State: g.session.State(), User: g.session.CurrentUser()}
}

func (g *Gateway) handleAuthState(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, g.authState())
}

func (g *Gateway) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		g.sendJSONError(w, http.StatusBadRequest, "token is required")
		return
	}

	if _, err := g.session.SignIn(req.Token); err != nil {
		msg := "invalid token"
		if errors.Is(err, auth.ErrExpiredToken) {
			msg = "token expired"
		}
		g.sendJSONError(w, http.StatusUnauthorized, msg)
		return
	}
	g.writeJSON(w, http.StatusOK, g.authState())
}

func (g *Gateway) handleSignOut(w http.ResponseWriter, r *http.Request) {
	g.list.Logout()
	g.writeJSON(w, http.StatusOK, g.authState())
}

// handleListReminders runs one load cycle. A store failure is reported in the
// returned state rather than as an HTTP error.
func (g *Gateway) handleListReminders(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, g.list.LoadReminders(r.Context()))
}

func (g *Gateway) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rem, err := g.store.GetReminder(r.Context(), id)
	if errors.Is(err, store.ErrReminderNotFound) {
		g.sendJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("failed to get reminder", "id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	g.writeJSON(w, http.StatusOK, reminders.ItemFromReminder(rem))
}

func (g *Gateway) handleSubmitReminder(w http.ResponseWriter, r *http.Request) {
	var req SubmitReminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	g.editor.SetTitle(req.Title)
	g.editor.SetDescription(req.Description)
	if req.Latitude != nil && req.Longitude != nil {
		label := req.Location
		if label == "" {
			label = picker.DroppedPinLabel
		}
		g.editor.SetSelectedLocation(reminders.Selection{Label: label, Latitude: *req.Latitude, Longitude: *req.Longitude})
	}

	item, err := g.editor.Submit(r.Context())
	if err != nil {
		g.sendSubmitError(w, err)
		return
	}

	g.editor.OnClear()
	g.picker.Reset()
	g.writeJSON(w, http.StatusCreated, item)
}

func (g *Gateway) handleRetryRegistration(w http.ResponseWriter, r *http.Request) {
	item, err := g.editor.RetryRegistration(r.Context())
	if err != nil {
		g.sendSubmitError(w, err)
		return
	}

	g.editor.OnClear()
	g.picker.Reset()
	g.writeJSON(w, http.StatusCreated, item)
}

// sendSubmitError maps editor and registration failures to HTTP statuses.
func (g *Gateway) sendSubmitError(w http.ResponseWriter, err error) {
	var validationErr *reminders.ValidationError
	var settingsErr *geofence.SettingsError
	var statusErr *geofence.StatusError

	switch {
	case errors.As(err, &validationErr):
		g.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
	case errors.Is(err, geofence.ErrMissingCoordinates):
		g.sendJSONError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &settingsErr):
		g.writeJSON(w, http.StatusConflict, map[string]any{
			"error":     reminders.MsgGeofenceFailed,
			"reason":    settingsErr.Reason,
			"retryable": settingsErr.Resolvable(),
		})
	case errors.As(err, &statusErr):
		g.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":  reminders.MsgGeofenceFailed,
			"status": statusErr.Code,
			"reason": geofence.StatusMessage(statusErr.Code),
		})
	case errors.Is(err, reminders.ErrNothingToRetry), errors.Is(err, reminders.ErrRetryExhausted):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	default:
		g.logger.Error("failed to submit reminder", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleDeleteReminders removes every reminder and the regions that watch them.
func (g *Gateway) handleDeleteReminders(w http.ResponseWriter, r *http.Request) {
	if err := g.store.DeleteAllReminders(r.Context()); err != nil {
		g.logger.Error("failed to delete reminders", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := g.monitor.RemoveAll(r.Context()); err != nil {
		g.logger.Error("failed to remove geofences", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handlePickerView(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, g.picker.View())
}

func (g *Gateway) handlePickerReady(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, g.picker.OnMapReady(r.Context()))
}

func (g *Gateway) handlePickerPermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Granted bool `json:"granted"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	g.writeJSON(w, http.StatusOK, g.picker.OnPermissionResult(r.Context(), req.Granted))
}

func (g *Gateway) handlePickerMapType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MapType string `json:"map_type"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	mapType, err := picker.ParseMapType(req.MapType)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	g.writeJSON(w, http.StatusOK, g.picker.SetMapType(mapType))
}

// handlePickerSelect pins the requested point and confirms it into the draft.
func (g *Gateway) handlePickerSelect(w http.ResponseWriter, r *http.Request) {
	var req PickRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	point := orb.Point{req.Longitude, req.Latitude}
	if req.POI != "" {
		g.picker.SelectPOI(req.POI, point)
	} else {
		g.picker.DropPin(point)
	}

	sel, _ := g.picker.Confirm()
	g.writeJSON(w, http.StatusOK, sel)
}

func (g *Gateway) handleReportLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := g.monitor.ReportLocation(r.Context(), orb.Point{req.Longitude, req.Latitude})
	var settingsErr *geofence.SettingsError
	if errors.As(err, &settingsErr) {
		g.sendJSONError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (g *Gateway) handleLocationSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	g.monitor.SetLocationEnabled(req.Enabled)
	g.writeJSON(w, http.StatusOK, map[string]bool{"enabled": g.monitor.LocationEnabled()})
}

// handleGeofenceEvent accepts a transition broadcast and queues it for the
// dispatcher. A full queue answers 503.
func (g *Gateway) handleGeofenceEvent(w http.ResponseWriter, r *http.Request) {
	var req GeofenceEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	transition, err := parseTransition(req.Transition)
	if err != nil && req.Status == geofence.StatusSuccess {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev := geofence.Event{
		ID:         req.EventID,
		Status:     req.Status,
		Transition: transition,
		RegionIDs:  req.RegionIDs,
		Location:   orb.Point{req.Longitude, req.Latitude},
		At:         time.Now(),
	}
	if !g.dispatcher.Deliver(ev) {
		g.sendJSONError(w, http.StatusServiceUnavailable, "event queue full")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func parseTransition(s string) (geofence.Transition, error) {
	switch strings.ToLower(s) {
	case "enter":
		return geofence.TransitionEnter, nil
	case "exit":
		return geofence.TransitionExit, nil
	case "dwell":
		return geofence.TransitionDwell, nil
	default:
		return 0, fmt.Errorf("unknown transition %q", s)
	}
}

// handleEvents streams UI events as SSE until the client disconnects.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events := g.events.Subscribe(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	g.writeSSEEvent(w, "ready", g.authState())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			sse := eventToSSE(ev)
			g.writeSSEEvent(w, sse.Event, sse.Data)
			flusher.Flush()
		}
	}
}

func eventToSSE(ev reminders.Event) SSEEvent {
	return SSEEvent{Event: string(ev.Kind), Data: ev}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return errors.New("latitude out of range")
	}
	if lon < -180 || lon > 180 {
		return errors.New("longitude out of range")
	}
	return nil
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
