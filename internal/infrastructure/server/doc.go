// Package server assembles the module host from configuration: logging,
// metrics, the outbound HTTP client, the module registry, the execution
// host and the HTTP/WebSocket API.
package server
