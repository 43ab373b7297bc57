// Package dedupe suppresses repeated geofence transitions for the same region
// within a configurable window, so one physical entry yields one notification.
package dedupe
