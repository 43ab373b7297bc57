// Package reminders holds the controllers that drive the reminder screens.
//
// ListController runs load cycles against the reminder store:
//
//	Idle ─▶ Loading ─▶ Populated | Empty | Failed
//
// Every trigger starts a new cycle. A cycle is never cancelled by a later one;
// each result is applied when it arrives.
//
// EditorController owns the draft being authored. Submit registers the
// reminder's geofence first and persists the reminder only once registration
// has succeeded.
//
// Controllers expose their state as a State value that subscribers observe,
// and emit one-shot UI commands (notices, navigate back, settings prompts)
// through Events.
package reminders
