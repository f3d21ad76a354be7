// Package main is the entry point for the module host server.
//
// The server keeps a catalog of installed extension modules, runs the
// active module's script in an isolated execution context, and exposes
// the module contract over HTTP.
//
// The server provides:
//   - REST API for installing, removing and activating modules
//   - Contract endpoints: search, chapters, content, images
//   - WebSocket stream of catalog changes
//   - Prometheus metrics at /metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - A YAML or TOML file via -config (replaces env values)
//   - CLI flags (override both)
//
// Usage:
//
//	# Production mode
//	./server -config modhost.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev -port 8080
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
