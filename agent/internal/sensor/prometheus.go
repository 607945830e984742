package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/tempslope/tempslope/agent/internal/config"
	"github.com/tempslope/tempslope/pkg/temp"
)

type promReader struct {
	sensor config.Sensor
	client *http.Client
}

// Read fetches the exposition endpoint and extracts one temperature series:
// the first series of the configured metric whose labels include every
// configured label pair.
func (r *promReader) Read(ctx context.Context) (*Reading, error) {
	res := newReading(r.sensor.ID, "prometheus", time.Now())

	mfs, err := fetchMetrics(ctx, r.client, r.sensor.Endpoint)
	if err != nil {
		res.Err = fmt.Errorf("prometheus read %q: %w", r.sensor.ID, err)
		slog.Warn("sensor: prometheus fetch failed", "sensor", r.sensor.ID, "err", err)
		return res, nil
	}

	v, err := selectValue(mfs[r.sensor.Metric], r.sensor.Labels)
	if err != nil {
		res.Err = fmt.Errorf("prometheus read %q: %s: %w", r.sensor.ID, r.sensor.Metric, err)
		slog.Warn("sensor: metric not usable", "sensor", r.sensor.ID,
			"metric", r.sensor.Metric, "err", err)
		return res, nil
	}

	res.Value = temp.FromFloat(v)
	return res, nil
}

// selectValue returns the value of the first series in mf matching labels.
func selectValue(mf *dto.MetricFamily, labels map[string]string) (float64, error) {
	if mf == nil {
		return 0, fmt.Errorf("metric not present")
	}
	for _, m := range mf.GetMetric() {
		if !labelsMatch(m.GetLabel(), labels) {
			continue
		}
		var v float64
		switch {
		case m.Gauge != nil:
			v = m.Gauge.GetValue()
		case m.Untyped != nil:
			v = m.Untyped.GetValue()
		case m.Counter != nil:
			v = m.Counter.GetValue()
		default:
			return 0, fmt.Errorf("unsupported metric type %s", mf.GetType())
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-finite value %v", v)
		}
		return v, nil
	}
	return 0, fmt.Errorf("no series matches labels %v", labels)
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, p := range pairs {
			if p.GetName() == name {
				found = p.GetValue() == value
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
