// ABOUTME: Gateway orchestrator that wires the reminder store, geofencing and notifiers
// ABOUTME: Manages the HTTP server, the geofence dispatcher and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/paulmach/orb"

	"github.com/2389/locus-gateway/internal/auth"
	"github.com/2389/locus-gateway/internal/config"
	"github.com/2389/locus-gateway/internal/dedupe"
	"github.com/2389/locus-gateway/internal/geofence"
	"github.com/2389/locus-gateway/internal/notify"
	"github.com/2389/locus-gateway/internal/picker"
	"github.com/2389/locus-gateway/internal/reminders"
	"github.com/2389/locus-gateway/internal/store"
)

// dedupeCapacity bounds the number of remembered transitions.
const dedupeCapacity = 1024

// localUser is the session user when no jwt_secret is configured.
var localUser = auth.User{ID: "local", DisplayName: "Local user"}

// Gateway orchestrates the locus-gateway components.
// It owns the HTTP server, the geofence monitor and the event dispatcher.
type Gateway struct {
	config     *config.Config
	store      store.Store
	session    *auth.Session
	verifier   *auth.JWTVerifier // nil when auth is disabled
	events     *reminders.Events
	monitor    *geofence.LocalMonitor
	registrar  *geofence.Registrar
	dispatcher *geofence.Dispatcher
	dedupe     *dedupe.Window
	list       *reminders.ListController
	editor     *reminders.EditorController
	picker     *picker.Picker
	httpServer *http.Server
	logger     *slog.Logger

	// Set by startBackground
	stopDispatcher context.CancelFunc
	dispatcherDone chan struct{}
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("LOCUS_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// buildNotifiers creates every notifier enabled in config.
// The log notifier is used when nothing else is enabled.
func buildNotifiers(cfg config.NotificationsConfig, logger *slog.Logger) (notify.Notifier, error) {
	var out notify.Multi

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			return nil, fmt.Errorf("creating telegram notifier: %w", err)
		}
		out = append(out, tg)
	}

	if cfg.Matrix.Enabled {
		mx, err := notify.NewMatrixNotifier(cfg.Matrix.Homeserver, cfg.Matrix.UserID, cfg.Matrix.AccessToken, cfg.Matrix.RoomID, logger)
		if err != nil {
			return nil, fmt.Errorf("creating matrix notifier: %w", err)
		}
		out = append(out, mx)
	}

	if cfg.Log || len(out) == 0 {
		out = append(out, notify.NewLogNotifier(logger))
	}
	return out, nil
}

// New creates a gateway from config, opening the store and the configured
// notifiers.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifiers(cfg.Notifications, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	gw, err := newGateway(cfg, s, notifier, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// newGateway wires components around an open store and notifier.
func newGateway(cfg *config.Config, s store.Store, notifier notify.Notifier, logger *slog.Logger) (*Gateway, error) {
	var verifier *auth.JWTVerifier
	if cfg.Auth.JWTSecret != "" {
		v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
		logger.Info("bearer auth enabled on /api routes")
	} else {
		logger.Warn("auth disabled - no jwt_secret configured")
	}

	mode, err := picker.ParseCenteringMode(cfg.Picker.Centering)
	if err != nil {
		return nil, fmt.Errorf("configuring picker: %w", err)
	}
	mapType, err := picker.ParseMapType(cfg.Picker.MapType)
	if err != nil {
		return nil, fmt.Errorf("configuring picker: %w", err)
	}

	gw := &Gateway{
		config: cfg,
		store:  s,
		logger: logger.With("component", "gateway"),
	}

	if verifier != nil {
		gw.verifier = verifier
		gw.session = auth.NewSession(verifier, logger)
	} else {
		gw.session = auth.NewSession(nil, logger)
		gw.session.SetUser(&localUser)
	}

	gw.events = reminders.NewEvents(logger)
	gw.dedupe = dedupe.New(cfg.Geofence.DedupeTTL, dedupeCapacity)

	handler := geofence.NewHandler(s, notifier, gw.dedupe, logger)
	gw.dispatcher = geofence.NewDispatcher(handler, cfg.Geofence.QueueSize, logger)

	gw.monitor = geofence.NewLocalMonitor(s, gw.dispatcher, logger)
	gw.monitor.SetLocationEnabled(cfg.LocationEnabled())
	gw.registrar = geofence.NewRegistrar(gw.monitor, cfg.Geofence.RadiusMeters, logger)

	gw.list = reminders.NewListController(s, gw.session, gw.events, logger)
	gw.editor = reminders.NewEditorController(s, gw.registrar, gw.events, logger)

	var defaultLocation orb.Point
	if cfg.Picker.DefaultLatitude != 0 || cfg.Picker.DefaultLongitude != 0 {
		defaultLocation = orb.Point{cfg.Picker.DefaultLongitude, cfg.Picker.DefaultLatitude}
	}
	gw.picker = picker.New(picker.Options{Mode: mode, DefaultLocation: defaultLocation, MapType: mapType}, gw.monitor, gw.editor, gw.events, logger)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler returns the HTTP handler serving every route.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// startBackground restores persisted regions and starts the dispatcher.
// Shutdown stops the dispatcher and waits for it.
func (g *Gateway) startBackground(ctx context.Context) error {
	if err := g.monitor.Restore(ctx); err != nil {
		return fmt.Errorf("restoring geofences: %w", err)
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g.stopDispatcher = cancel
	g.dispatcherDone = done
	go func() {
		defer close(done)
		g.dispatcher.Run(dispatchCtx)
	}()
	return nil
}

// stopBackground cancels the dispatcher and waits for the event in flight,
// giving up when ctx expires.
func (g *Gateway) stopBackground(ctx context.Context) error {
	if g.stopDispatcher == nil {
		return nil
	}
	g.stopDispatcher()
	select {
	case <-g.dispatcherDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startServer starts the HTTP server in a goroutine, returning its error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the gateway and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.startBackground(runCtx); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(runCtx, errCh)

	cancel()
	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "dropped_events", g.dispatcher.Dropped())

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "dispatcher stop", g.stopBackground(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())
	g.dedupe.Close()

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := g.store.Ping(r.Context()); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d regions)", len(g.monitor.Regions()))
}
