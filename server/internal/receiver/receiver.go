package receiver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tempslope/tempslope/pkg/types"
	"github.com/tempslope/tempslope/server/internal/store"
)

// Path is where agents POST snapshots.
const Path = "/api/v1/ingest"

// maxBodyBytes caps a single snapshot document.
const maxBodyBytes = 1 << 20

// Hook is called with every accepted snapshot after it has been stored.
type Hook func(*types.Snapshot)

// Receiver is the HTTP ingest endpoint called by tempslope-agent instances.
// It validates each incoming Snapshot and stores it in the state store.
type Receiver struct {
	store *store.Store
	hooks []Hook
}

// New creates a Receiver that writes accepted snapshots to st and then runs
// hooks in order.
func New(st *store.Store, hooks ...Hook) *Receiver {
	return &Receiver{store: st, hooks: hooks}
}

// ServeHTTP handles POST /api/v1/ingest. Authentication is enforced by
// middleware before this is called, so the receiver itself only performs
// structural validation.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var snap types.Snapshot
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes)).Decode(&snap); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "snapshot too large")
			return
		}
		jsonErr(w, http.StatusBadRequest, "invalid snapshot json: "+err.Error())
		return
	}
	if err := validate(&snap); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	r.store.Put(&snap)

	slog.Debug("receiver: snapshot stored",
		"sensor_id", snap.SensorID,
		"sensor_type", snap.SensorType,
		"state", snap.State,
		"slope_per_hour", snap.SlopePerHour,
	)

	for _, h := range r.hooks {
		h(&snap)
	}
	w.WriteHeader(http.StatusNoContent)
}

func validate(snap *types.Snapshot) error {
	if snap.SensorID == "" {
		return errors.New("sensor_id is required")
	}
	switch snap.State {
	case types.StateRising, types.StateFalling, types.StateStable, types.StateUnknown:
	case "":
		snap.State = types.StateUnknown
	default:
		return errors.New("state must be rising|falling|stable|unknown")
	}
	return nil
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
