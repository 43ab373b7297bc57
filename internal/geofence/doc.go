// Package geofence turns reminders into circular regions, monitors them
// against device location fixes, and handles the resulting transition events.
//
// # Flow
//
//	Registrar.Register ─▶ Monitor.AddRegions ─▶ store.GeofenceStore
//	Registrar.Activate ─▶ Monitor.ActivateRegions (after the reminder is saved)
//	LocalMonitor.ReportLocation ─▶ EventSink (Dispatcher) ─▶ Handler.Handle ─▶ notify.Notifier
//
// Regions never expire and fire on ENTER only. A region whose reminder is
// saved while the device is already inside fires on activation, so the
// handler can resolve the record. Containment is persisted, so a restart does
// not re-fire ENTER for the region the device is sitting in.
//
// Event handling is asynchronous. The Dispatcher queue never blocks the
// producer; when it is full the event is logged and dropped. The Handler looks
// up each region ID in the reminder store and drops IDs that no longer resolve.
// Redeliveries of an event with the same ID are suppressed; a separate entry
// into the same region is a new event and always notifies.
package geofence
