// Package http provides the REST API over the module registry and the
// active module's runner.
//
// Endpoints:
//   - Health: / and /health
//   - Modules: /modules, /modules/:id, /modules/:id/activate,
//     /modules/:id/revalidate, /modules/prune
//   - Contract: /search, /chapters, /content, /images
//
// Contract endpoints answer 502 when the module yields no result; the
// cause is in the server log, not the response.
//
// Example Usage:
//
//	handlers := http.NewHandlers(manager, moduleHost, logger)
//	router.GET("/health", handlers.Health)
//	router.GET("/search", handlers.Search)
package http
