package alerts

import (
	"strconv"
	"strings"

	"github.com/tempslope/tempslope/pkg/types"
)

// evalCondition evaluates a rule condition string against a Snapshot.
//
// Supported expressions (field operator value):
//
//	slope_per_hour > 1.5
//	slope_per_hour < -2
//	temperature > 24
//	history_sum > 3
//	uptime_pct < 80
//	cert_days_left < 14
//	state == rising
//	state != stable
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
// Reading-derived fields never fire for an unknown snapshot, whose numbers
// are placeholders.
func evalCondition(cond string, snap *types.Snapshot) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch field {
	case "state":
		switch op {
		case "==":
			return snap.State == rhs, 0
		case "!=":
			return snap.State != rhs, 0
		}
		return false, 0

	case "cert_days_left":
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		for _, c := range snap.Certs {
			if c.Status == "unreachable" {
				continue
			}
			v := float64(c.DaysLeft)
			if compareFloat(v, op, threshold) {
				return true, v
			}
		}
		return false, 0

	case "uptime_pct":
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		return compareFloat(snap.UptimePct, op, threshold), snap.UptimePct

	default:
		v, ok := readingField(field, snap)
		if !ok || snap.State == types.StateUnknown {
			return false, 0
		}
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		return compareFloat(v, op, threshold), v
	}
}

// conditionThreshold returns the right-hand side of cond, or "" if cond is
// not a three-part expression.
func conditionThreshold(cond string) string {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

// readingField maps a field name to its value in the snapshot.
func readingField(field string, snap *types.Snapshot) (float64, bool) {
	switch field {
	case "slope_per_hour":
		return snap.SlopePerHour, true
	case "temperature":
		return snap.Temperature, true
	case "history_sum":
		return snap.HistorySum, true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
