package compute

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tempslope/tempslope/agent/internal/history"
	"github.com/tempslope/tempslope/agent/internal/sensor"
	"github.com/tempslope/tempslope/pkg/temp"
)

// baseTime is a fixed reference point so all test timings are deterministic.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// tick returns baseTime advanced by n seconds.
func tick(n int) time.Time {
	return baseTime.Add(time.Duration(n) * time.Second)
}

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func reading(id string, v temp.Temp) *sensor.Reading {
	return &sensor.Reading{SensorID: id, SensorType: "w1", ReadAt: baseTime, Value: v}
}

func failed(id string) *sensor.Reading {
	return &sensor.Reading{SensorID: id, SensorType: "w1", ReadAt: baseTime,
		Value: temp.Invalid, Err: errors.New("w1: crc check failed")}
}

// feedRamp processes n readings spaced 60s apart, changing by step*MinDiff
// each time, and returns the last result.
func feedRamp(e *Engine, id string, n, step int) *Result {
	var out *Result
	for i := 0; i < n; i++ {
		v := temp.FromInt(20) + temp.Temp(i*step*history.MinDiff)
		out = e.Process(reading(id, v), tick(i*60))
	}
	return out
}

// --- First reading behaviour ---

func TestEngine_FirstReading_Stable(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	out := e.Process(reading("beer", temp.FromFloat(18.5)), tick(0))
	if out.State != StateStable {
		t.Errorf("first reading State = %q, want %q", out.State, StateStable)
	}
	if out.SlopePerHour != 0 {
		t.Errorf("first reading slope = %v, want 0", out.SlopePerHour)
	}
	if out.Quantized != temp.FromFloat(18.5) {
		t.Errorf("Quantized = %v, want 18.5", out.Quantized)
	}
	if len(out.Events) != 1 || !out.Events[0].At.Equal(baseTime) || out.Events[0].Diff != 0 {
		t.Errorf("Events = %+v, want one zero event at epoch", out.Events)
	}
}

func TestEngine_NoValidReadingYet_Unknown(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	out := e.Process(failed("beer"), tick(0))
	if out.State != StateUnknown {
		t.Errorf("State = %q, want unknown", out.State)
	}
	if out.ErrorMessage == "" {
		t.Error("ErrorMessage should be set on failed read")
	}
	if out.Quantized.Valid() || out.Temperature.Valid() {
		t.Errorf("Quantized=%v Temperature=%v, want invalid", out.Quantized, out.Temperature)
	}
	if len(out.Events) != 0 {
		t.Errorf("Events = %+v, want none", out.Events)
	}
}

// --- Trend classification ---

func TestEngine_RisingRamp(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	out := feedRamp(e, "beer", 8, 1)

	// Four unit events 60s apart: 64 raw units over 240s → 960 raw/h.
	if out.SlopePerHour != 960 {
		t.Errorf("SlopePerHour = %d, want 960", out.SlopePerHour)
	}
	if !almostEqual(out.SlopePerHour.Float(), 1.875, 1e-9) {
		t.Errorf("SlopePerHour = %v °C/h, want 1.875", out.SlopePerHour.Float())
	}
	if out.State != StateRising {
		t.Errorf("State = %q, want rising", out.State)
	}
	if out.HistorySum != 4*history.MinDiff {
		t.Errorf("HistorySum = %d, want %d", out.HistorySum, 4*history.MinDiff)
	}
}

func TestEngine_FallingRamp(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	out := feedRamp(e, "beer", 8, -1)
	if out.State != StateFalling {
		t.Errorf("State = %q, want falling (slope %v)", out.State, out.SlopePerHour)
	}
	if out.SlopePerHour != -960 {
		t.Errorf("SlopePerHour = %d, want -960", out.SlopePerHour)
	}
}

func TestEngine_ConstantIsStable(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	out := feedRamp(e, "beer", 8, 0)
	if out.State != StateStable || out.SlopePerHour != 0 {
		t.Errorf("State = %q slope = %d, want stable 0", out.State, out.SlopePerHour)
	}
}

func TestEngine_SetThresholds(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	feedRamp(e, "beer", 8, 1)

	e.SetThresholds(Thresholds{RisingPerHour: 5, FallingPerHour: -5})
	if got := e.Thresholds().RisingPerHour; got != 5 {
		t.Fatalf("Thresholds().RisingPerHour = %v, want 5", got)
	}
	v := temp.FromInt(20) + temp.Temp(7*history.MinDiff)
	out := e.Process(reading("beer", v), tick(7*60))
	if out.State != StateStable {
		t.Errorf("State after raising threshold = %q, want stable", out.State)
	}
}

func TestEngine_Events_NewestFirstInAbsoluteTime(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	out := feedRamp(e, "beer", 8, 1)

	if len(out.Events) != history.Length {
		t.Fatalf("len(Events) = %d, want %d", len(out.Events), history.Length)
	}
	for i, ev := range out.Events {
		want := tick((7 - i) * 60)
		if !ev.At.Equal(want) {
			t.Errorf("Events[%d].At = %v, want %v", i, ev.At, want)
		}
		if ev.Diff != history.MinDiff {
			t.Errorf("Events[%d].Diff = %d, want %d", i, ev.Diff, history.MinDiff)
		}
	}
}

// --- Failed reads ---

func TestEngine_ReadFailure_KeepsHistory(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	before := feedRamp(e, "beer", 8, 1)

	out := e.Process(failed("beer"), tick(8*60))
	if out.State != StateUnknown {
		t.Errorf("State = %q, want unknown", out.State)
	}
	if out.ErrorMessage != "w1: crc check failed" {
		t.Errorf("ErrorMessage = %q", out.ErrorMessage)
	}
	if out.HistorySum != before.HistorySum || out.Quantized != before.Quantized {
		t.Errorf("failed read changed history: sum %d→%d quantized %v→%v",
			before.HistorySum, out.HistorySum, before.Quantized, out.Quantized)
	}
	if out.Temperature != temp.Invalid {
		t.Errorf("Temperature = %v, want invalid", out.Temperature)
	}
}

func TestEngine_InvalidValueWithoutError(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	out := e.Process(reading("beer", temp.Invalid), tick(0))
	if out.State != StateUnknown || out.ErrorMessage != "invalid reading" {
		t.Errorf("State=%q ErrorMessage=%q", out.State, out.ErrorMessage)
	}
}

// --- Clock ---

func TestEngine_ClockNeverGoesBackwards(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	e.Process(reading("beer", temp.FromInt(20)), tick(0))
	e.Process(reading("beer", temp.FromInt(21)), tick(600))
	out := e.Process(reading("beer", temp.FromInt(22)), tick(300))

	if !out.Events[0].At.Equal(tick(600)) {
		t.Errorf("newest event at %v, want clamped to %v", out.Events[0].At, tick(600))
	}
	if out.SlopePerHour <= 0 {
		t.Errorf("SlopePerHour = %d, want positive", out.SlopePerHour)
	}
}

func TestEngine_EpochSharedAcrossSensors(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	e.Process(reading("a", temp.FromInt(20)), tick(0))
	out := e.Process(reading("b", temp.FromInt(20)), tick(90))
	if !out.Events[0].At.Equal(tick(90)) {
		t.Errorf("sensor b first event at %v, want %v", out.Events[0].At, tick(90))
	}
}

// --- Uptime tracking ---

func TestEngine_UptimePct_AllSuccess(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	out := feedRamp(e, "beer", 5, 0)
	if out.UptimePct != 100 {
		t.Errorf("UptimePct all success = %.2f, want 100", out.UptimePct)
	}
}

func TestEngine_UptimePct_HalfFailed(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	var last *Result
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			last = e.Process(reading("beer", temp.FromInt(20)), tick(i*60))
		} else {
			last = e.Process(failed("beer"), tick(i*60))
		}
	}
	if !almostEqual(last.UptimePct, 50, 0.01) {
		t.Errorf("UptimePct half-failed = %.2f, want 50", last.UptimePct)
	}
}

func TestEngine_UptimePct_RollingWindow(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	for i := 0; i < uptimeWindow+5; i++ {
		e.Process(failed("beer"), tick(i*60))
	}
	var last *Result
	for i := 0; i < 6; i++ {
		last = e.Process(reading("beer", temp.FromInt(20)), tick((uptimeWindow+5+i)*60))
	}
	// Window holds the last uptimeWindow=20 reads, 6 of them good.
	want := 6.0 / float64(uptimeWindow) * 100
	if !almostEqual(last.UptimePct, want, 0.01) {
		t.Errorf("UptimePct rolling = %.2f, want %.2f", last.UptimePct, want)
	}
}

// --- Multiple sensors ---

func TestEngine_MultiSensor_Independent(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	for i := 0; i < 8; i++ {
		e.Process(reading("beer", temp.FromInt(20)+temp.Temp(i*history.MinDiff)), tick(i*60))
		e.Process(reading("fridge", temp.FromInt(4)-temp.Temp(i*history.MinDiff)), tick(i*60))
	}
	beer := e.Process(reading("beer", temp.FromInt(20)+temp.Temp(7*history.MinDiff)), tick(7*60))
	fridge := e.Process(failed("fridge"), tick(7*60))

	if beer.State != StateRising {
		t.Errorf("beer State = %q, want rising", beer.State)
	}
	if fridge.State != StateUnknown {
		t.Errorf("fridge State = %q, want unknown", fridge.State)
	}
	if beer.UptimePct != 100 {
		t.Errorf("beer uptime affected by fridge failure: %.2f", beer.UptimePct)
	}
}

func TestEngine_Forget(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	feedRamp(e, "beer", 6, 2)
	e.Process(failed("beer"), tick(6*60))

	e.Forget("beer")

	r := e.Process(reading("beer", temp.FromInt(20)), tick(7*60))
	if r.UptimePct != 100 {
		t.Errorf("UptimePct = %.2f, want 100 after Forget", r.UptimePct)
	}
	if r.HistorySum != 0 {
		t.Errorf("HistorySum = %v, want 0 after Forget", r.HistorySum)
	}
	if len(r.Events) != 1 {
		t.Errorf("Events = %d, want 1 after Forget", len(r.Events))
	}
}
