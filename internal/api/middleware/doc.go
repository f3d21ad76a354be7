// Package middleware provides the HTTP middleware stack for the module API.
//
//   - CORS: cross-origin access for browser front ends
//   - RateLimit: per-client token buckets with idle eviction
//   - GlobalRateLimit: one bucket shared by every client
//   - RequestID: per-request IDs echoed in X-Request-ID
package middleware
