// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The store package is interface-driven:
//
//   - ReminderStore: save, list, point lookup and delete-all for reminders
//   - GeofenceStore: region registrations that survive a restart
//   - Store: both of the above plus Ping and Close
//
// SQLiteStore implements every interface in a single struct. MockStore is a
// volatile in-memory variant used by tests.
//
// # Data Models
//
//   - Reminder: title, description, location label and optional coordinates
//   - Geofence: a circular region registration keyed by reminder ID
//
// Reminders are listed in insertion order. Saving a reminder whose ID already
// exists replaces it, and the replaced record moves to the end of the list.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//
// Database file locations:
//
//   - Default: ~/.local/share/locus/locus.db
//   - Testing: :memory: (in-memory database)
//
// # Error Handling
//
//   - ErrReminderNotFound: message "Reminder not found!", shown to users verbatim
//   - ErrGeofenceNotFound: registration does not exist
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests:
//
//	s := store.NewMockStore(seed...)
//	s.SetShouldReturnError(true) // GetReminders fails with "Reminders not found"
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite.
package store
