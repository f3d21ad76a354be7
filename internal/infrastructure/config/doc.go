// Package config provides 12-factor configuration management for the module host.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML or TOML file may be supplied instead with the -config flag; file
// values are applied on top of Default().
//
// Configuration Sections:
//   - Server: HTTP API settings (port, host)
//   - Storage: Module catalog and script cache location
//   - Runtime: Script load/call timeouts and support bundle override
//   - Fetch: Outbound HTTP settings used by guest fetch and downloads
//   - Logging: Log level and output format
//   - RateLimit: Per-IP API rate limiting
//
// Environment Variables:
//   - PORT, HOST
//   - STORAGE_DIR, SEED_FILE
//   - LOAD_TIMEOUT, CALL_TIMEOUT, BUNDLE_PATH
//   - FETCH_TIMEOUT, FETCH_RETRIES, FETCH_RPS, FETCH_USER_AGENT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
