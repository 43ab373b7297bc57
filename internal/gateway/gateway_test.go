// ABOUTME: Tests for Gateway construction, lifecycle and notifier wiring
// ABOUTME: Uses in-memory SQLite stores and a recording notifier

package gateway

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389/locus-gateway/internal/config"
	"github.com/2389/locus-gateway/internal/geofence"
	"github.com/2389/locus-gateway/internal/notify"
	"github.com/2389/locus-gateway/internal/store"
)

// testConfig creates a minimal config for testing with an available port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	httpListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	httpAddr := httpListener.Addr().String()
	httpListener.Close()

	cfg := &config.Config{
		Server:   config.ServerConfig{HTTPAddr: httpAddr},
		Database: config.DatabaseConfig{Path: ":memory:"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier captures sent notifications.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Send(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.sent...)
}

// newTestGateway builds a gateway over an in-memory store with a recording
// notifier. The dispatcher runs until the test ends.
func newTestGateway(t *testing.T, mutate func(*config.Config)) (*Gateway, *recordingNotifier) {
	t.Helper()

	cfg := testConfig(t)
	if mutate != nil {
		mutate(cfg)
	}

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}

	rec := &recordingNotifier{}
	gw, err := newGateway(cfg, s, rec, testLogger())
	if err != nil {
		t.Fatalf("newGateway() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := gw.startBackground(ctx); err != nil {
		t.Fatalf("startBackground() failed: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = gw.Shutdown(context.Background())
	})
	return gw, rec
}

func TestGatewayNew(t *testing.T) {
	cfg := testConfig(t)

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	if gw.config != cfg {
		t.Error("gateway config mismatch")
	}
	if gw.store == nil || gw.monitor == nil || gw.dispatcher == nil {
		t.Error("core components should not be nil")
	}
	if gw.verifier != nil {
		t.Error("verifier should be nil without a jwt_secret")
	}
	if gw.httpServer.Addr != cfg.Server.HTTPAddr {
		t.Errorf("httpServer.Addr = %q, want %q", gw.httpServer.Addr, cfg.Server.HTTPAddr)
	}
	if !gw.monitor.LocationEnabled() {
		t.Error("location should be enabled by default")
	}
}

func TestGatewayNew_InvalidCentering(t *testing.T) {
	cfg := testConfig(t)
	cfg.Picker.Centering = "sometimes"

	if _, err := New(cfg, testLogger()); err == nil {
		t.Fatal("New() expected error for unknown centering mode")
	}
}

func TestGatewayNew_ShortSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "short"

	if _, err := New(cfg, testLogger()); err == nil {
		t.Fatal("New() expected error for short jwt secret")
	}
}

func TestGatewayNew_DBPathFromEnv(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = "/nonexistent-dir-that-should-not-be-used/gateway.db"
	t.Setenv("LOCUS_DB_PATH", ":memory:")

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	gw.Shutdown(context.Background())
}

func TestBuildNotifiers(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.NotificationsConfig
		want int
	}{
		{name: "nothing configured falls back to log", cfg: config.NotificationsConfig{}, want: 1},
		{name: "log only", cfg: config.NotificationsConfig{Log: true}, want: 1},
		{
			name: "matrix without log",
			cfg: config.NotificationsConfig{Matrix: config.MatrixConfig{
				Enabled: true, Homeserver: "https://matrix.example.org", UserID: "@locus:example.org",
				AccessToken: "token", RoomID: "!room:example.org",
			}},
			want: 1,
		},
		{
			name: "matrix and log",
			cfg: config.NotificationsConfig{Log: true, Matrix: config.MatrixConfig{
				Enabled: true, Homeserver: "https://matrix.example.org", UserID: "@locus:example.org",
				AccessToken: "token", RoomID: "!room:example.org",
			}},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := buildNotifiers(tt.cfg, testLogger())
			if err != nil {
				t.Fatalf("buildNotifiers() error = %v", err)
			}
			multi, ok := n.(notify.Multi)
			if !ok {
				t.Fatalf("buildNotifiers() returned %T, want notify.Multi", n)
			}
			if len(multi) != tt.want {
				t.Errorf("len = %d, want %d", len(multi), tt.want)
			}
		})
	}
}

func TestGatewayRun(t *testing.T) {
	cfg := testConfig(t)

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	url := "http://" + cfg.Server.HTTPAddr + "/health"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("gateway never became healthy: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestGatewayRun_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.HTTPAddr = ln.Addr().String()

	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	if err := gw.Run(context.Background()); err == nil {
		t.Fatal("Run() expected error for an address in use")
	}
}

func TestGatewayRun_RestoresRegions(t *testing.T) {
	dbPath := t.TempDir() + "/gateway.db"

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	if err := s.SaveGeofence(context.Background(), &store.Geofence{
		ID: "r1", Latitude: 1, Longitude: 2, RadiusMeters: 100, Transitions: 1, InitialTrigger: true, RegisteredAt: time.Now(),
	}); err != nil {
		t.Fatalf("SaveGeofence() failed: %v", err)
	}
	s.Close()

	cfg := testConfig(t)
	cfg.Database.Path = dbPath
	gw, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer gw.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := gw.startBackground(ctx); err != nil {
		t.Fatalf("startBackground() failed: %v", err)
	}

	regions := gw.monitor.Regions()
	if len(regions) != 1 || regions[0].ID != "r1" {
		t.Fatalf("Regions() = %+v, want r1 restored", regions)
	}
}

// blockingNotifier holds every Send until release is closed.
type blockingNotifier struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingNotifier) Send(ctx context.Context, n notify.Notification) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil
}

func TestGatewayShutdown_WaitsForDispatcher(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	notifier := &blockingNotifier{started: make(chan struct{}), release: make(chan struct{})}
	gw, err := newGateway(testConfig(t), s, notifier, testLogger())
	if err != nil {
		t.Fatalf("newGateway() failed: %v", err)
	}
	if err := gw.startBackground(context.Background()); err != nil {
		t.Fatalf("startBackground() failed: %v", err)
	}

	item := submit(t, gw.Handler(), "Post letter", 3, 3)
	gw.dispatcher.Deliver(geofence.Event{Transition: geofence.TransitionEnter, RegionIDs: []string{item.ID}})

	select {
	case <-notifier.started:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never sent")
	}

	done := make(chan error, 1)
	go func() { done <- gw.Shutdown(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Shutdown() returned %v while a notification was in flight", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(notifier.release)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown() did not return after the dispatcher finished")
	}

	if err := s.Ping(context.Background()); err == nil {
		t.Error("store should be closed after Shutdown")
	}
}

func TestGatewayShutdown_DispatcherTimeout(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	notifier := &blockingNotifier{started: make(chan struct{}), release: make(chan struct{})}
	defer close(notifier.release)

	gw, err := newGateway(testConfig(t), s, notifier, testLogger())
	if err != nil {
		t.Fatalf("newGateway() failed: %v", err)
	}
	if err := gw.startBackground(context.Background()); err != nil {
		t.Fatalf("startBackground() failed: %v", err)
	}

	item := submit(t, gw.Handler(), "Post letter", 3, 3)
	gw.dispatcher.Deliver(geofence.Event{Transition: geofence.TransitionEnter, RegionIDs: []string{item.ID}})
	<-notifier.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = gw.Shutdown(ctx)
	if err == nil || !strings.Contains(err.Error(), "dispatcher stop") {
		t.Fatalf("Shutdown() error = %v, want dispatcher stop timeout", err)
	}
}
