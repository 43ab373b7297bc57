// Package config handles configuration loading for locus-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files, or TOML files when the path ends
// in .toml, with environment variable expansion. Defaults are applied before
// validation.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from LOCUS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/locus/gateway.yaml
//  3. ~/.config/locus/gateway.yaml
//
// A .env file in the working directory is loaded before the config is read,
// so secrets can live outside the config file.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${LOCUS_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	geofence:
//	  dedupe_ttl: "10m"
//
// # Sections
//
//   - server: http_addr
//   - database: path (SQLite file or ":memory:")
//   - auth: jwt_secret (empty disables bearer auth on /api routes)
//   - geofence: radius_m, dedupe_ttl, queue_size, location_enabled
//   - picker: centering (after_permission or on_ready), default_latitude, default_longitude, map_type
//   - notifications: log, telegram (token, chat_id), matrix (homeserver, user_id, access_token, room_id)
//   - logging: level (debug, info, warn, error), format (text or json)
package config
