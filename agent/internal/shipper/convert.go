package shipper

import (
	"github.com/tempslope/tempslope/agent/internal/compute"
	"github.com/tempslope/tempslope/pkg/types"
)

// toSnapshot converts a compute.Result into the JSON wire snapshot.
//
// Invalid temperatures have no JSON representation; Temperature is left at
// zero and the snapshot carries State "unknown" plus ErrorMessage instead.
func toSnapshot(r *compute.Result, certs []*types.CertStatus) *types.Snapshot {
	snap := &types.Snapshot{
		SensorID:      r.SensorID,
		SensorType:    r.SensorType,
		TimestampUnix: r.Timestamp.Unix(),
		State:         r.State,
		SlopePerHour:  r.SlopePerHour.Float(),
		HistorySum:    r.HistorySum.Float(),
		UptimePct:     r.UptimePct,
		ErrorMessage:  r.ErrorMessage,
	}
	if r.Temperature.Valid() {
		snap.Temperature = r.Temperature.Float()
	}
	if r.Quantized.Valid() {
		q := r.Quantized.Float()
		snap.Quantized = &q
	}
	for _, ev := range r.Events {
		snap.History = append(snap.History, types.HistoryEntry{
			Time: ev.At.Unix(),
			Diff: ev.Diff.Float(),
		})
	}
	for _, c := range certs {
		if c != nil {
			snap.Certs = append(snap.Certs, *c)
		}
	}
	return snap
}
