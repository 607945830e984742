package api

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/tempslope/tempslope/pkg/types"
	"github.com/tempslope/tempslope/server/internal/alerts"
	"github.com/tempslope/tempslope/server/internal/store"
)

// AlertSource is the read side of the alert engine.
type AlertSource interface {
	Active() []*alerts.Alert
	Firing(sensorID string) int
}

// Handler is the HTTP handler for all /api/v1/* read endpoints.
// It reads sensor state from the snapshot store and returns JSON responses.
type Handler struct {
	store  *store.Store
	alerts AlertSource
	mux    *http.ServeMux
}

// New creates a Handler wired to the given snapshot store and alert source
// and registers all routes. al may be nil.
func New(st *store.Store, al AlertSource) http.Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/sensors", h.listSensors)
	h.mux.HandleFunc("/api/v1/sensors/", h.getSensor) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/trends", h.trends)
	h.mux.HandleFunc("/api/v1/alerts", h.activeAlerts)
	h.mux.HandleFunc("/api/v1/certs", h.certs)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: overall state and per-trend counts.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	entries := h.store.List()
	resp := HealthResponse{SensorCount: len(entries)}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.Firing("")
	}

	if len(entries) == 0 {
		resp.State = types.StateUnknown
		jsonResp(w, http.StatusOK, resp)
		return
	}

	for _, e := range entries {
		switch e.Snapshot.State {
		case types.StateRising:
			resp.RisingCount++
		case types.StateFalling:
			resp.FallingCount++
		case types.StateStable:
			resp.StableCount++
		default:
			resp.UnknownCount++
		}
	}

	resp.State = "ok"
	if resp.UnknownCount > 0 || resp.AlertCount > 0 {
		resp.State = "degraded"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listSensors returns GET /api/v1/sensors: all live sensors.
func (h *Handler) listSensors(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.sensors())
}

// getSensor returns GET /api/v1/sensors/{id}: a single live sensor.
func (h *Handler) getSensor(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sensors/")
	if id == "" {
		h.listSensors(w, r)
		return
	}

	// Stale entries are treated as not found.
	e, ok := h.store.GetLive(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "sensor not found")
		return
	}
	jsonResp(w, http.StatusOK, h.toSensorResponse(e))
}

// trends returns GET /api/v1/trends: live sensors bucketed by trend state.
func (h *Handler) trends(w http.ResponseWriter, _ *http.Request) {
	resp := TrendsResponse{
		Rising:  []TrendEntry{},
		Falling: []TrendEntry{},
		Stable:  []TrendEntry{},
		Unknown: []TrendEntry{},
	}
	var temps, slopes stats.Float64Data
	for _, e := range h.store.List() {
		s := e.Snapshot
		te := TrendEntry{SensorID: s.SensorID, Temperature: s.Temperature, SlopePerHour: s.SlopePerHour}
		if s.State != types.StateUnknown {
			temps = append(temps, s.Temperature)
			slopes = append(slopes, s.SlopePerHour)
		}
		switch s.State {
		case types.StateRising:
			resp.Rising = append(resp.Rising, te)
		case types.StateFalling:
			resp.Falling = append(resp.Falling, te)
		case types.StateStable:
			resp.Stable = append(resp.Stable, te)
		default:
			resp.Unknown = append(resp.Unknown, te)
		}
	}
	sort.SliceStable(resp.Rising, func(i, j int) bool {
		return resp.Rising[i].SlopePerHour > resp.Rising[j].SlopePerHour
	})
	sort.SliceStable(resp.Falling, func(i, j int) bool {
		return resp.Falling[i].SlopePerHour < resp.Falling[j].SlopePerHour
	})
	resp.Summary = summarize(temps, slopes)
	jsonResp(w, http.StatusOK, resp)
}

// summarize reduces the valid readings to fleet-wide figures. Empty input
// yields the zero summary.
func summarize(temps, slopes stats.Float64Data) TrendSummary {
	if len(temps) == 0 {
		return TrendSummary{}
	}
	sum := TrendSummary{Sensors: len(temps)}
	sum.MeanTemperature, _ = temps.Mean()
	sum.MedianTemperature, _ = temps.Median()
	sum.MedianSlope, _ = slopes.Median()
	lo, _ := slopes.Min()
	hi, _ := slopes.Max()
	sum.MaxAbsSlope = math.Max(math.Abs(lo), math.Abs(hi))
	return sum
}

// activeAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) activeAlerts(w http.ResponseWriter, _ *http.Request) {
	out := []*alerts.Alert{}
	if h.alerts != nil {
		out = append(out, h.alerts.Active()...)
	}
	jsonResp(w, http.StatusOK, out)
}

// certs returns GET /api/v1/certs: TLS status per sensor endpoint.
func (h *Handler) certs(w http.ResponseWriter, _ *http.Request) {
	out := make([]CertResponse, 0)
	for _, e := range h.store.List() {
		for _, c := range e.Snapshot.Certs {
			out = append(out, CertResponse{SensorID: e.Snapshot.SensorID, CertStatus: c})
		}
	}
	jsonResp(w, http.StatusOK, out)
}

// snapshot returns GET /api/v1/snapshot: full JSON dump of all live sensors.
func (h *Handler) snapshot(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store, h.alerts))
}

// BuildSnapshot assembles the full view of all live sensors. It is shared by
// GET /api/v1/snapshot and the WebSocket hub.
func BuildSnapshot(st *store.Store, al AlertSource) SnapshotResponse {
	h := &Handler{store: st, alerts: al}
	return SnapshotResponse{
		Sensors:     h.sensors(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) sensors() []SensorResponse {
	entries := h.store.List()
	out := make([]SensorResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.toSensorResponse(e))
	}
	return out
}

// toSensorResponse maps a store.Entry to its JSON representation.
func (h *Handler) toSensorResponse(e *store.Entry) SensorResponse {
	snap := e.Snapshot
	hist := snap.History
	if hist == nil {
		hist = []types.HistoryEntry{}
	}
	resp := SensorResponse{
		SensorID:     snap.SensorID,
		SensorType:   snap.SensorType,
		State:        snap.State,
		Temperature:  snap.Temperature,
		Quantized:    snap.Quantized,
		SlopePerHour: snap.SlopePerHour,
		HistorySum:   snap.HistorySum,
		UptimePct:    snap.UptimePct,
		ErrorMessage: snap.ErrorMessage,
		History:      hist,
		Diagnostics:  computeDiagnostics(snap),
		LastSeen:     e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if snap.TimestampUnix > 0 {
		resp.ReadAt = time.Unix(snap.TimestampUnix, 0).UTC().Format(time.RFC3339)
	}
	if h.alerts != nil {
		resp.AlertCount = h.alerts.Firing(snap.SensorID)
	}
	return resp
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
