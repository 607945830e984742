package api

import (
	"testing"

	"github.com/tempslope/tempslope/pkg/types"
)

func keys(hints []DiagnosticHint) []string {
	out := make([]string, len(hints))
	for i, h := range hints {
		out[i] = h.Key
	}
	return out
}

func hasKey(hints []DiagnosticHint, key string) bool {
	for _, h := range hints {
		if h.Key == key {
			return true
		}
	}
	return false
}

func TestComputeDiagnostics(t *testing.T) {
	q := 20.0
	base := func() *types.Snapshot {
		return &types.Snapshot{
			SensorID:      "beer",
			SensorType:    "w1",
			TimestampUnix: 10_000,
			State:         types.StateStable,
			Temperature:   20,
			Quantized:     &q,
			UptimePct:     100,
			History:       []types.HistoryEntry{{Time: 9_000, Diff: 0.125}},
		}
	}

	tests := []struct {
		name   string
		mutate func(s *types.Snapshot)
		want   []string // keys that must be present
		first  string   // key expected first, if set
		absent []string
	}{
		{
			name:  "all clear",
			want:  []string{"healthy"},
			first: "healthy",
		},
		{
			name: "read failure",
			mutate: func(s *types.Snapshot) {
				s.ErrorMessage = "w1: crc check failed"
				s.State = types.StateUnknown
				s.UptimePct = 85
			},
			want:   []string{"read_failed", "uptime"},
			first:  "read_failed",
			absent: []string{"healthy"},
		},
		{
			name: "warming up",
			mutate: func(s *types.Snapshot) {
				s.State = types.StateUnknown
				s.Quantized = nil
			},
			want:   []string{"warming_up"},
			absent: []string{"healthy"},
		},
		{
			name: "fast rise",
			mutate: func(s *types.Snapshot) {
				s.State = types.StateRising
				s.SlopePerHour = 2.5
			},
			want: []string{"fast_change"},
		},
		{
			name: "fast fall",
			mutate: func(s *types.Snapshot) {
				s.State = types.StateFalling
				s.SlopePerHour = -3
			},
			want: []string{"fast_change"},
		},
		{
			name: "quiet",
			mutate: func(s *types.Snapshot) {
				s.History = []types.HistoryEntry{{Time: 1_000, Diff: 0.125}, {Time: 2_000, Diff: 0.125}}
			},
			want:   []string{"quiet"},
			absent: []string{"healthy"},
		},
		{
			name: "cert expired sorts first",
			mutate: func(s *types.Snapshot) {
				s.UptimePct = 95
				s.Certs = []types.CertStatus{{Endpoint: "https://x", Status: "expired"}}
			},
			want:  []string{"cert_expired", "uptime"},
			first: "cert_expired",
		},
		{
			name: "valid cert is silent",
			mutate: func(s *types.Snapshot) {
				s.Certs = []types.CertStatus{{Endpoint: "https://x", Status: "valid", DaysLeft: 200}}
			},
			want: []string{"healthy"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := base()
			if tc.mutate != nil {
				tc.mutate(s)
			}
			hints := computeDiagnostics(s)
			for _, k := range tc.want {
				if !hasKey(hints, k) {
					t.Errorf("missing hint %q in %v", k, keys(hints))
				}
			}
			for _, k := range tc.absent {
				if hasKey(hints, k) {
					t.Errorf("unexpected hint %q in %v", k, keys(hints))
				}
			}
			if tc.first != "" && (len(hints) == 0 || hints[0].Key != tc.first) {
				t.Errorf("first hint: got %v, want %q", keys(hints), tc.first)
			}
		})
	}
}

func TestUptimeLevels(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{50, "critical"},
		{80, "warning"},
		{95, "info"},
	}
	for _, tc := range tests {
		hints := uptimeHint(&types.Snapshot{UptimePct: tc.pct})
		if len(hints) != 1 || hints[0].Level != tc.want {
			t.Errorf("uptime %.0f: got %+v, want level %s", tc.pct, hints, tc.want)
		}
	}
	if hints := uptimeHint(&types.Snapshot{UptimePct: 100}); hints != nil {
		t.Errorf("uptime 100: got %+v, want none", hints)
	}
}
