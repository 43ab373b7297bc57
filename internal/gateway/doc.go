// Package gateway orchestrates the locus-gateway server components.
//
// # Overview
//
// The gateway package is the composition point. New opens the store and
// builds, in order: the auth session, the UI event fan-out, the dedupe
// window, the transition handler and its dispatcher, the local geofence
// monitor (which delivers into the dispatcher), the registrar, the list and
// editor controllers, and the map picker (which reads the monitor's last fix
// and confirms into the editor).
//
// # HTTP API
//
//   - GET /health - Liveness check
//   - GET /health/ready - Store ping
//   - GET /api/auth/state - Authentication projection
//   - POST /api/auth/session - Sign in with a bearer token
//   - DELETE /api/auth/session - Sign out
//   - GET /api/reminders - Run a load cycle and return the list state
//   - POST /api/reminders - Fill the draft and submit it
//   - POST /api/reminders/retry - Retry a registration after a settings failure
//   - DELETE /api/reminders - Delete every reminder and its region
//   - GET /api/reminders/{id} - Point lookup
//   - GET /api/picker - Picker view
//   - POST /api/picker/ready - Map ready callback
//   - POST /api/picker/permission - Location permission answer
//   - POST /api/picker/select - Pin a point or POI and confirm it into the draft
//   - PUT /api/picker/map-type - Switch the base map layer
//   - POST /api/location - Device fix
//   - PUT /api/location/settings - Turn location services on or off
//   - POST /api/geofence/events - Transition broadcast ingress
//   - GET /api/events - UI events as server-sent events
//
// Routes under /api other than /api/auth require a bearer JWT when
// auth.jwt_secret is set, and the verified user becomes the session user.
// Without a secret the routes are open and the session starts with a fixed
// local user, so /api/auth/state reports AUTHENTICATED whenever the routes
// would admit the caller.
//
// # Lifecycle
//
// Run restores persisted regions, starts the dispatcher and serves HTTP until
// the context is canceled. Shutdown has five seconds to drain the server and
// wait for the dispatcher's event in flight before the store is closed.
package gateway
