package types

// Trend states carried in Snapshot.State.
const (
	StateRising  = "rising"
	StateFalling = "falling"
	StateStable  = "stable"
	StateUnknown = "unknown"
)

// Snapshot is one sensor's state as shipped by the agent.
type Snapshot struct {
	SensorID      string  `json:"sensor_id"`
	SensorType    string  `json:"sensor_type"`
	TimestampUnix int64   `json:"timestamp_unix"`
	State         string  `json:"state"`
	Temperature   float64 `json:"temperature"`
	// Quantized is the last recorded value after noise filtering. Nil until
	// the sensor has produced a valid reading.
	Quantized    *float64       `json:"quantized,omitempty"`
	SlopePerHour float64        `json:"slope_per_hour"`
	HistorySum   float64        `json:"history_sum"`
	UptimePct    float64        `json:"uptime_pct"`
	ErrorMessage string         `json:"error_message,omitempty"`
	History      []HistoryEntry `json:"history,omitempty"`
	Certs        []CertStatus   `json:"certs,omitempty"`
}

// HistoryEntry is one recorded change event. Diff is in degrees.
type HistoryEntry struct {
	Time int64   `json:"time"`
	Diff float64 `json:"diff"`
}

// CertStatus describes the TLS leaf certificate of a sensor endpoint.
type CertStatus struct {
	Endpoint string `json:"endpoint"`
	AuthType string `json:"auth_type"`
	Status   string `json:"status"` // valid | expiring | expired | unreachable
	DaysLeft int32  `json:"days_left"`
	Issuer   string `json:"issuer,omitempty"`
	NotAfter string `json:"not_after,omitempty"`
}
