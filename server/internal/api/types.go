package api

import "github.com/tempslope/tempslope/pkg/types"

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State        string `json:"state"` // ok | degraded | unknown
	SensorCount  int    `json:"sensor_count"`
	RisingCount  int    `json:"rising_count"`
	FallingCount int    `json:"falling_count"`
	StableCount  int    `json:"stable_count"`
	UnknownCount int    `json:"unknown_count"`
	AlertCount   int    `json:"alert_count"`
}

// SensorResponse is one sensor entry in GET /api/v1/sensors or
// GET /api/v1/sensors/{id}.
type SensorResponse struct {
	SensorID     string               `json:"sensor_id"`
	SensorType   string               `json:"sensor_type"`
	State        string               `json:"state"`
	Temperature  float64              `json:"temperature"`
	Quantized    *float64             `json:"quantized,omitempty"`
	SlopePerHour float64              `json:"slope_per_hour"`
	HistorySum   float64              `json:"history_sum"`
	UptimePct    float64              `json:"uptime_pct"`
	ErrorMessage string               `json:"error_message,omitempty"`
	History      []types.HistoryEntry `json:"history"`
	AlertCount   int                  `json:"alert_count"`
	Diagnostics  []DiagnosticHint     `json:"diagnostics"`
	ReadAt       string               `json:"read_at"`   // RFC3339, agent clock
	LastSeen     string               `json:"last_seen"` // RFC3339, server clock
}

// TrendEntry is one sensor within a trend bucket.
type TrendEntry struct {
	SensorID     string  `json:"sensor_id"`
	Temperature  float64 `json:"temperature"`
	SlopePerHour float64 `json:"slope_per_hour"`
}

// TrendSummary aggregates all live sensors with a valid reading.
type TrendSummary struct {
	Sensors           int     `json:"sensors"`
	MeanTemperature   float64 `json:"mean_temperature"`
	MedianTemperature float64 `json:"median_temperature"`
	MedianSlope       float64 `json:"median_slope_per_hour"`
	MaxAbsSlope       float64 `json:"max_abs_slope_per_hour"`
}

// TrendsResponse is the payload for GET /api/v1/trends. Rising and Falling
// are ordered steepest first.
type TrendsResponse struct {
	Rising  []TrendEntry `json:"rising"`
	Falling []TrendEntry `json:"falling"`
	Stable  []TrendEntry `json:"stable"`
	Unknown []TrendEntry `json:"unknown"`
	Summary TrendSummary `json:"summary"`
}

// CertResponse is one certificate entry in GET /api/v1/certs.
type CertResponse struct {
	SensorID string `json:"sensor_id"`
	types.CertStatus
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Sensors     []SensorResponse `json:"sensors"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
