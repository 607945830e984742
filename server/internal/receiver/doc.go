// Package receiver implements the HTTP ingest endpoint, POST /api/v1/ingest,
// that accepts Snapshot documents from tempslope-agent instances.
//
// A snapshot must carry a sensor_id and a known state (an empty state is
// stored as unknown). Accepted snapshots go to the store and are then handed
// to each Hook, which the server uses for alert evaluation and WebSocket
// fan-out. Authentication is enforced upstream by the auth middleware.
package receiver
