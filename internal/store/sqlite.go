// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides reminder and geofence persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory database only exists on its own connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS reminders (
			id          TEXT PRIMARY KEY,
			title       TEXT,
			description TEXT,
			location    TEXT,
			latitude    REAL,
			longitude   REAL
		);

		CREATE TABLE IF NOT EXISTS geofences (
			id              TEXT PRIMARY KEY,
			latitude        REAL NOT NULL,
			longitude       REAL NOT NULL,
			radius_m        REAL NOT NULL,
			transitions     INTEGER NOT NULL,
			initial_trigger INTEGER NOT NULL DEFAULT 1,
			registered_at   TEXT NOT NULL,
			inside          INTEGER
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	migrations := []struct {
		column string
		ddl    string
	}{
		// Early builds stored geofences without the initial trigger flag
		{"initial_trigger", `ALTER TABLE geofences ADD COLUMN initial_trigger INTEGER NOT NULL DEFAULT 1`},
		// Containment state, so a restart does not re-fire ENTER for the current position
		{"inside", `ALTER TABLE geofences ADD COLUMN inside INTEGER`},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('geofences') WHERE name = ?`, m.column).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking %s column on geofences: %w", m.column, err)
		}
		if _, err := s.db.Exec(m.ddl); err != nil {
			return fmt.Errorf("adding %s column to geofences: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", "geofences")
	}
	return nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// SaveReminder inserts a reminder, replacing an existing row with the same ID.
// A replaced row moves to the end of the insertion order.
func (s *SQLiteStore) SaveReminder(ctx context.Context, reminder *Reminder) error {
	query := `
		INSERT OR REPLACE INTO reminders (id, title, description, location, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		reminder.ID,
		nullString(reminder.Title),
		nullString(reminder.Description),
		nullString(reminder.Location),
		nullFloat(reminder.Latitude),
		nullFloat(reminder.Longitude),
	)
	if err != nil {
		return fmt.Errorf("inserting reminder: %w", err)
	}

	s.logger.Debug("saved reminder", "id", reminder.ID)
	return nil
}

// GetReminders returns every reminder in insertion order
func (s *SQLiteStore) GetReminders(ctx context.Context) ([]*Reminder, error) {
	query := `
		SELECT id, title, description, location, latitude, longitude
		FROM reminders
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying reminders: %w", err)
	}
	defer rows.Close()

	reminders := []*Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reminders: %w", err)
	}

	return reminders, nil
}

// GetReminder retrieves a reminder by ID.
// Returns ErrReminderNotFound if the reminder doesn't exist.
func (s *SQLiteStore) GetReminder(ctx context.Context, id string) (*Reminder, error) {
	query := `
		SELECT id, title, description, location, latitude, longitude
		FROM reminders
		WHERE id = ?
	`

	r, err := scanReminder(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteAllReminders removes every reminder
func (s *SQLiteStore) DeleteAllReminders(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminders`)
	if err != nil {
		return fmt.Errorf("deleting reminders: %w", err)
	}

	n, _ := result.RowsAffected()
	s.logger.Debug("deleted all reminders", "count", n)
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*Reminder, error) {
	var (
		r                     Reminder
		title, desc, location sql.NullString
		latitude, longitude   sql.NullFloat64
	)

	if err := row.Scan(&r.ID, &title, &desc, &location, &latitude, &longitude); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning reminder: %w", err)
	}

	r.Title = title.String
	r.Description = desc.String
	r.Location = location.String
	if latitude.Valid {
		lat := latitude.Float64
		r.Latitude = &lat
	}
	if longitude.Valid {
		lon := longitude.Float64
		r.Longitude = &lon
	}
	return &r, nil
}

// SaveGeofence upserts a geofence registration
func (s *SQLiteStore) SaveGeofence(ctx context.Context, fence *Geofence) error {
	query := `
		INSERT OR REPLACE INTO geofences (id, latitude, longitude, radius_m, transitions, initial_trigger, registered_at, inside)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	initial := 0
	if fence.InitialTrigger {
		initial = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		fence.ID,
		fence.Latitude,
		fence.Longitude,
		fence.RadiusMeters,
		fence.Transitions,
		initial,
		fence.RegisteredAt.UTC().Format(time.RFC3339),
		nullBool(fence.Inside),
	)
	if err != nil {
		return fmt.Errorf("inserting geofence: %w", err)
	}

	s.logger.Debug("saved geofence", "id", fence.ID, "radius_m", fence.RadiusMeters)
	return nil
}

// ListGeofences returns all geofence registrations in registration order
func (s *SQLiteStore) ListGeofences(ctx context.Context) ([]*Geofence, error) {
	query := `
		SELECT id, latitude, longitude, radius_m, transitions, initial_trigger, registered_at, inside
		FROM geofences
		ORDER BY rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying geofences: %w", err)
	}
	defer rows.Close()

	var fences []*Geofence
	for rows.Next() {
		var f Geofence
		var initial int
		var registeredAt string
		var inside sql.NullBool
		if err := rows.Scan(&f.ID, &f.Latitude, &f.Longitude, &f.RadiusMeters, &f.Transitions, &initial, &registeredAt, &inside); err != nil {
			return nil, fmt.Errorf("scanning geofence: %w", err)
		}
		f.InitialTrigger = initial != 0
		if inside.Valid {
			v := inside.Bool
			f.Inside = &v
		}
		f.RegisteredAt, err = time.Parse(time.RFC3339, registeredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing registered_at: %w", err)
		}
		fences = append(fences, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating geofences: %w", err)
	}

	return fences, nil
}

// DeleteGeofence removes a single registration.
// Returns ErrGeofenceNotFound if it doesn't exist.
func (s *SQLiteStore) DeleteGeofence(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM geofences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting geofence: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGeofenceNotFound
	}

	s.logger.Debug("deleted geofence", "id", id)
	return nil
}

// DeleteAllGeofences removes every registration
func (s *SQLiteStore) DeleteAllGeofences(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM geofences`); err != nil {
		return fmt.Errorf("deleting geofences: %w", err)
	}
	return nil
}

// SetGeofenceInside records the last evaluated containment for a registration.
// Returns ErrGeofenceNotFound if it doesn't exist.
func (s *SQLiteStore) SetGeofenceInside(ctx context.Context, id string, inside bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE geofences SET inside = ? WHERE id = ?`, inside, id)
	if err != nil {
		return fmt.Errorf("updating geofence state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrGeofenceNotFound
	}
	return nil
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
