// Package shipper sends JSON snapshots to tempslope-server
// (POST /api/v1/ingest) and, when configured, publishes them retained to an
// MQTT v5 broker under <topic_prefix>/<sensor_id>/snapshot.
//
// Shipper.Ship() is non-blocking: results are converted to types.Snapshot and
// placed in an in-memory channel (default capacity 1000). When the buffer is
// full the oldest entry is evicted so the latest trend data is always
// preserved.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s→60s, ±25% jitter) on connection or send errors.
// Permanent HTTP errors (400, 401, 403, 413) discard the snapshot immediately
// rather than retrying.
//
// The dialFn field is injectable for testing (httptest server, fake broker).
package shipper
