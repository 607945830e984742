package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tempslope/tempslope/agent/internal/config"
	"github.com/tempslope/tempslope/pkg/temp"
)

// w1PowerOnReset is what a DS18B20 reports when it was read before its first
// conversion finished. It is indistinguishable from a real 85 °C reading, so
// it is treated as a failed read.
const w1PowerOnReset = 85000

var (
	errW1CRC   = errors.New("w1: crc check failed")
	errW1Reset = errors.New("w1: power-on reset value")
)

// w1Reader reads a 1-Wire DS18B20 through the kernel w1_therm driver's
// w1_slave file:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
type w1Reader struct {
	sensor config.Sensor
}

func (r *w1Reader) Read(ctx context.Context) (*Reading, error) {
	res := newReading(r.sensor.ID, "w1", time.Now())
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res, nil
	}

	f, err := os.Open(r.sensor.Endpoint)
	if err != nil {
		res.Err = fmt.Errorf("w1 read %q: %w", r.sensor.ID, err)
		slog.Warn("sensor: w1 open failed", "sensor", r.sensor.ID, "err", err)
		return res, nil
	}
	defer f.Close()

	milli, err := parseW1(f)
	if err != nil {
		res.Err = fmt.Errorf("w1 read %q: %w", r.sensor.ID, err)
		slog.Warn("sensor: w1 parse failed", "sensor", r.sensor.ID, "err", err)
		return res, nil
	}
	res.Value = temp.FromMilli(milli)
	return res, nil
}

// parseW1 returns the temperature in millidegrees from w1_slave content.
func parseW1(r io.Reader) (int64, error) {
	sc := bufio.NewScanner(r)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if len(lines) < 2 {
		return 0, fmt.Errorf("w1: short read (%d lines)", len(lines))
	}
	if !strings.HasSuffix(lines[0], "YES") {
		return 0, errW1CRC
	}
	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("w1: no t= field")
	}
	milli, err := strconv.ParseInt(lines[1][i+2:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("w1: parse t=: %w", err)
	}
	if milli == w1PowerOnReset {
		return 0, errW1Reset
	}
	return milli, nil
}
