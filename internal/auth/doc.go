// Package auth provides user authentication for locus-gateway.
//
// # Tokens
//
// Users authenticate with HS256 JWTs signed with the configured jwt_secret.
// The "sub" claim carries the user ID and the optional "name" claim the
// display name. Secrets shorter than MinSecretLength are rejected.
//
// # Session
//
// Session is the process-wide current-user signal. It is either empty
// (UNAUTHENTICATED) or holds one User (AUTHENTICATED). Controllers read it
// through the UserSource interface and subscribe to changes; each subscriber
// always sees the latest user, intermediate values may be skipped.
//
// # HTTP
//
// HTTPAuthMiddleware guards API routes with a bearer token and stores the
// verified User in the request context. Handlers read it with UserFromContext.
package auth
