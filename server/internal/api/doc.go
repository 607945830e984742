// Package api implements the HTTP REST API for tempslope-server.
//
// New(store, alerts) returns an http.Handler that serves:
//
//	GET /api/v1/health        overall state, per-trend counts, firing alerts
//	GET /api/v1/sensors       all live sensors ([]SensorResponse)
//	GET /api/v1/sensors/{id}  single sensor; 404 if unknown or stale
//	GET /api/v1/trends        live sensors bucketed rising/falling/stable/unknown
//	GET /api/v1/alerts        firing and recently resolved alerts
//	GET /api/v1/certs         cert status per sensor endpoint
//	GET /api/v1/snapshot      full JSON dump: all live sensors + generated_at
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. Each sensor carries diagnostic hints derived from its
// latest snapshot (diagnostics.go).
package api
