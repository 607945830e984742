package api

import (
	"fmt"
	"math"
	"sort"

	"github.com/tempslope/tempslope/pkg/types"
)

const (
	// fastSlopePerHour is the |slope| at which a trend is called out as fast.
	fastSlopePerHour = 2.0

	// quietWindow matches the longest span the agent's slope looks back over.
	quietWindow = 3600
)

// DiagnosticHint is one human-readable insight about a sensor's readings.
// The UI displays these as chips on the sensor card; clicking one shows
// Detail, a plain-English explanation of what the agent is seeing.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives human-readable diagnostic hints from a snapshot.
// Diagnostics are ordered: critical first, then warnings, then info.
func computeDiagnostics(snap *types.Snapshot) []DiagnosticHint {
	var hints []DiagnosticHint

	// Read failure
	if snap.ErrorMessage != "" {
		hints = append(hints, DiagnosticHint{
			Key:   "read_failed",
			Level: "critical",
			Title: "Can't read sensor",
			Detail: fmt.Sprintf(
				"The agent couldn't get a temperature from this sensor. "+
					"The last attempt failed with: %q. %s "+
					"The trend is frozen at its last known value until reads succeed again.",
				snap.ErrorMessage, readFailureTip(snap.SensorType),
			),
		})
		hints = append(hints, uptimeHint(snap)...)
		hints = append(hints, certHints(snap)...)
		return sortHints(hints)
	}

	// No valid reading yet
	if snap.State == types.StateUnknown && snap.Quantized == nil {
		hints = append(hints, DiagnosticHint{
			Key:   "warming_up",
			Level: "info",
			Title: "Warming up",
			Detail: "The agent hasn't recorded a valid temperature for this sensor yet. " +
				"The trend appears after the first good reading. No action needed.",
		})
		return hints
	}

	hints = append(hints, uptimeHint(snap)...)

	// Trend
	slope := snap.SlopePerHour
	if math.Abs(slope) >= fastSlopePerHour {
		v := slope
		dir := "rising"
		if slope < 0 {
			dir = "falling"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "fast_change",
			Level: "warning",
			Title: fmt.Sprintf("%s %.1f°/h", dir, math.Abs(slope)),
			Detail: fmt.Sprintf(
				"Temperature is %s at about %.2f degrees per hour. "+
					"At this rate it moves %.1f degrees in the next 30 minutes. "+
					"If this is a fermenter or fridge, check that heating and cooling "+
					"are behaving and the sensor hasn't come loose.",
				dir, math.Abs(slope), math.Abs(slope)/2,
			),
			Value: &v,
		})
	}

	if age, ok := quietFor(snap); ok {
		v := float64(age)
		hints = append(hints, DiagnosticHint{
			Key:   "quiet",
			Level: "info",
			Title: "Quiet for over an hour",
			Detail: fmt.Sprintf(
				"No significant change has been recorded for %s. "+
					"The slope is averaged over the full hour, so a slow drift "+
					"below the noise filter shows up as stable.",
				humanSeconds(age),
			),
			Value: &v,
		})
	}

	hints = append(hints, certHints(snap)...)

	// All clear
	if len(hints) == 0 {
		t := snap.Temperature
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: "ok",
			Title: "All clear",
			Detail: fmt.Sprintf(
				"The sensor reads %.2f degrees and is %s (%.2f degrees per hour). "+
					"Reads are succeeding and nothing needs attention.",
				snap.Temperature, snap.State, snap.SlopePerHour,
			),
			Value: &t,
		})
	}

	return sortHints(hints)
}

// uptimeHint reports a read success ratio below 100%.
func uptimeHint(snap *types.Snapshot) []DiagnosticHint {
	if snap.UptimePct >= 100 {
		return nil
	}
	v := snap.UptimePct
	var level string
	switch {
	case snap.UptimePct < 70:
		level = "critical"
	case snap.UptimePct < 90:
		level = "warning"
	default:
		level = "info"
	}
	return []DiagnosticHint{{
		Key:   "uptime",
		Level: level,
		Title: fmt.Sprintf("%.0f%% reads ok", snap.UptimePct),
		Detail: fmt.Sprintf(
			"%.0f%% of the last 20 read attempts succeeded. "+
				"Occasional failures are usually a marginal wire or a busy bus. "+
				"Failed reads are skipped, so the slope stays based on good readings only.",
			snap.UptimePct,
		),
		Value: &v,
	}}
}

// certHints flags sensor endpoints whose TLS certificate needs attention.
func certHints(snap *types.Snapshot) []DiagnosticHint {
	var hints []DiagnosticHint
	for _, c := range snap.Certs {
		var level, title string
		switch c.Status {
		case "expired":
			level, title = "critical", "Certificate expired"
		case "expiring":
			level, title = "warning", fmt.Sprintf("Cert expires in %dd", c.DaysLeft)
		default:
			continue
		}
		v := float64(c.DaysLeft)
		hints = append(hints, DiagnosticHint{
			Key:   "cert_" + c.Status,
			Level: level,
			Title: title,
			Detail: fmt.Sprintf(
				"The TLS certificate for %s (issuer %q) is %s, not after %s. "+
					"Renew it before the agent loses access to this sensor.",
				c.Endpoint, c.Issuer, c.Status, c.NotAfter,
			),
			Value: &v,
		})
	}
	return hints
}

// readFailureTip returns sensor-type specific guidance for a failed read.
func readFailureTip(sensorType string) string {
	switch sensorType {
	case "w1":
		return "For 1-Wire sensors, a CRC failure usually means a long or noisy cable " +
			"and a reading of exactly 85 degrees is the power-on value of a sensor that browned out. " +
			"Check the pull-up resistor and the sensor's supply."
	case "prometheus":
		return "For Prometheus endpoints, check that the exporter is up, " +
			"the credentials are correct and the metric name and labels still match."
	case "file":
		return "For file sensors, check that the path exists and holds a single number."
	default:
		return "Check that the sensor is connected and its endpoint is reachable."
	}
}

// quietFor reports how long ago the oldest recorded change happened, when
// that is beyond the slope's look-back window.
func quietFor(snap *types.Snapshot) (int64, bool) {
	if len(snap.History) == 0 || snap.TimestampUnix == 0 {
		return 0, false
	}
	newest := snap.History[0].Time
	for _, h := range snap.History[1:] {
		if h.Time > newest {
			newest = h.Time
		}
	}
	age := snap.TimestampUnix - newest
	return age, age > quietWindow
}

func humanSeconds(s int64) string {
	if s >= 3600 {
		return fmt.Sprintf("%.1f hours", float64(s)/3600)
	}
	return fmt.Sprintf("%d minutes", s/60)
}

func sortHints(hints []DiagnosticHint) []DiagnosticHint {
	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}
