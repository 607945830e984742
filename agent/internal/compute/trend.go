package compute

import "github.com/tempslope/tempslope/pkg/types"

// State constants returned by Classify.
const (
	StateRising  = types.StateRising
	StateFalling = types.StateFalling
	StateStable  = types.StateStable
	StateUnknown = types.StateUnknown
)

// Thresholds map a slope in degrees per hour to a trend state.
// FallingPerHour must be below RisingPerHour.
type Thresholds struct {
	RisingPerHour  float64
	FallingPerHour float64
}

// DefaultThresholds match the config defaults.
var DefaultThresholds = Thresholds{RisingPerHour: 0.5, FallingPerHour: -0.5}

// Classify maps a slope to a trend state. The boundaries are inclusive:
// a slope exactly at RisingPerHour is rising.
func Classify(slopePerHour float64, th Thresholds) string {
	switch {
	case slopePerHour >= th.RisingPerHour:
		return StateRising
	case slopePerHour <= th.FallingPerHour:
		return StateFalling
	default:
		return StateStable
	}
}
