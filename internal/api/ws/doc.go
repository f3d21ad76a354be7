// Package ws streams module catalog changes over WebSocket.
//
// Every connection receives a welcome message followed by one message per
// persisted catalog change. Slow clients lose events rather than block the
// registry.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connected
//   - added, removed, updated, activated: Catalog event with the record
//   - pong: Reply to ping
//   - error: Unknown message type
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, metrics, logger)
//	router.GET("/stream", handler.HandleConnection)
package ws
