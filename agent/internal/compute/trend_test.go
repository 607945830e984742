package compute

import "testing"

func TestClassify(t *testing.T) {
	th := Thresholds{RisingPerHour: 0.5, FallingPerHour: -0.25}
	tests := []struct {
		name  string
		slope float64
		want  string
	}{
		{"flat", 0, StateStable},
		{"just below rising", 0.499, StateStable},
		{"exactly rising", 0.5, StateRising},
		{"fast rise", 12, StateRising},
		{"just above falling", -0.249, StateStable},
		{"exactly falling", -0.25, StateFalling},
		{"crash cooling", -8, StateFalling},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.slope, th); got != tc.want {
				t.Errorf("Classify(%v) = %q, want %q", tc.slope, got, tc.want)
			}
		})
	}
}

func TestDefaultThresholds_Ordered(t *testing.T) {
	if DefaultThresholds.FallingPerHour >= DefaultThresholds.RisingPerHour {
		t.Errorf("DefaultThresholds not ordered: %+v", DefaultThresholds)
	}
}
