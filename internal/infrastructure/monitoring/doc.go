/*
Package monitoring provides Prometheus metrics for the module host.

# Overview

Each Metrics value owns its own prometheus.Registry, so several hosts (or
tests) can live in one process without duplicate-registration panics.

Tracked:

- Script loads by result (ready, failed)
- Guest function calls by function and result, with latency
- Guest fetches by method and status class
- Registry operations by operation and result, and registry size
- HTTP API requests (latency, throughput, size)
- WebSocket catalog stream connections

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "search")
	// ... invoke guest function ...
	timer.Stop("ok")
*/
package monitoring
