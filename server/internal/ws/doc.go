// Package ws implements the WebSocket hub for tempslope-server.
//
// Hub manages a set of connected clients and broadcasts the current sensor
// snapshot to all of them on a configurable interval (5s in production) and
// immediately after each ingested reading (Notify).
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the server.
package ws
