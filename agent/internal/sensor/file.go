package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tempslope/tempslope/agent/internal/config"
	"github.com/tempslope/tempslope/pkg/temp"
)

// fileReader reads a single number from a file. The unit comes from the
// sensor's Unit setting; when unset, integer content is millidegrees (sysfs
// hwmon temp*_input) and decimal content is degrees.
type fileReader struct {
	sensor config.Sensor
}

func (r *fileReader) Read(ctx context.Context) (*Reading, error) {
	res := newReading(r.sensor.ID, "file", time.Now())
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res, nil
	}

	data, err := os.ReadFile(r.sensor.Endpoint)
	if err != nil {
		res.Err = fmt.Errorf("file read %q: %w", r.sensor.ID, err)
		slog.Warn("sensor: file read failed", "sensor", r.sensor.ID, "err", err)
		return res, nil
	}

	v, err := parseFileValue(string(data), r.sensor.Unit)
	if err != nil {
		res.Err = fmt.Errorf("file read %q: %w", r.sensor.ID, err)
		slog.Warn("sensor: file parse failed", "sensor", r.sensor.ID, "err", err)
		return res, nil
	}
	res.Value = v
	return res, nil
}

func parseFileValue(s, unit string) (temp.Temp, error) {
	s = strings.TrimSpace(s)
	switch unit {
	case config.UnitDegrees:
		return temp.Parse(s)
	case config.UnitMilli:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return temp.Invalid, fmt.Errorf("millidegrees %q: %w", s, err)
		}
		return temp.FromMilli(n), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return temp.FromMilli(n), nil
	}
	return temp.Parse(s)
}
