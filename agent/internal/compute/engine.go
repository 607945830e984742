package compute

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tempslope/tempslope/agent/internal/history"
	"github.com/tempslope/tempslope/agent/internal/sensor"
	"github.com/tempslope/tempslope/pkg/temp"
)

// uptimeWindow is the number of recent read outcomes tracked for uptime %.
const uptimeWindow = 20

// Result is the fully-derived trend snapshot for one sensor, ready to be
// handed to the exporter and the shipper.
type Result struct {
	SensorID   string
	SensorType string
	Timestamp  time.Time
	State      string

	// Temperature is the raw reading; temp.Invalid when the read failed.
	Temperature temp.Temp
	// Quantized is the last value recorded in the history, or temp.Invalid
	// before the first valid reading.
	Quantized    temp.Temp
	SlopePerHour temp.Temp
	HistorySum   temp.Temp
	UptimePct    float64

	// Events are the recorded change events, newest first. Empty slots are
	// omitted.
	Events []Event

	ErrorMessage string // non-empty when the read failed; forwarded to the server
}

// Event is one recorded change in absolute time.
type Event struct {
	At   time.Time
	Diff temp.Temp
}

// Engine maintains a change history per sensor across read cycles and
// derives the slope and trend state from it.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu         sync.Mutex
	states     map[string]*sensorState
	thresholds Thresholds

	epoch   time.Time
	started bool
}

// NewEngine returns a ready-to-use Engine classifying with th.
func NewEngine(th Thresholds) *Engine {
	return &Engine{
		states:     make(map[string]*sensorState),
		thresholds: th,
	}
}

// SetThresholds replaces the classification thresholds. Histories are kept.
func (e *Engine) SetThresholds(th Thresholds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = th
}

// Thresholds returns the thresholds currently in effect.
func (e *Engine) Thresholds() Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds
}

// Forget drops the history and uptime window of a sensor.
func (e *Engine) Forget(sensorID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, sensorID)
}

// Process ingests a Reading and returns the derived trend.
//
// now is passed explicitly so callers (and tests) control the clock without
// sleeping. Use time.Now() in production. History time is whole seconds since
// the first Process call and never goes backwards for a sensor, even if now
// does.
func (e *Engine) Process(r *sensor.Reading, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		e.epoch = now
		e.started = true
	}

	st := e.stateFor(r.SensorID)
	sec := st.clock(int64(now.Sub(e.epoch) / time.Second))

	value := r.Value
	success := r.Err == nil && value.Valid()
	if !success {
		value = temp.Invalid
	}
	st.recordRead(success)
	st.hist.Add(value, sec)

	out := &Result{
		SensorID:     r.SensorID,
		SensorType:   r.SensorType,
		Timestamp:    now,
		Temperature:  value,
		Quantized:    st.hist.LastValue(),
		SlopePerHour: st.hist.Slope(value, sec),
		HistorySum:   st.hist.Sum(),
		UptimePct:    st.uptimePct(),
		Events:       e.events(st.hist),
	}

	switch {
	case !success:
		out.State = StateUnknown
		if r.Err != nil {
			out.ErrorMessage = r.Err.Error()
		} else {
			out.ErrorMessage = "invalid reading"
		}
		slog.Warn("compute: read failed, marking unknown",
			"sensor", r.SensorID, "err", out.ErrorMessage)
	case !out.Quantized.Valid():
		out.State = StateUnknown
	default:
		out.State = Classify(out.SlopePerHour.Float(), e.thresholds)
	}

	slog.Debug("compute: processed",
		"sensor", r.SensorID, "t", sec, "value", value,
		"slope", out.SlopePerHour, "state", out.State)
	return out
}

// events converts the history slots to absolute-time events, skipping the
// sentinel slots that were never written.
func (e *Engine) events(h *history.History) []Event {
	var out []Event
	for _, en := range h.Entries() {
		if en.Time < 0 {
			continue
		}
		out = append(out, Event{
			At:   e.epoch.Add(time.Duration(en.Time) * time.Second),
			Diff: temp.Saturate(int64(en.Diff) << history.IgnoredBits),
		})
	}
	return out
}

// sensorState holds per-sensor history and uptime.
type sensorState struct {
	hist    *history.History
	lastSec int64
	reads   []bool // circular buffer of read outcomes, newest last
}

func (e *Engine) stateFor(id string) *sensorState {
	if st, ok := e.states[id]; ok {
		return st
	}
	st := &sensorState{hist: history.New()}
	e.states[id] = st
	return st
}

// clock returns sec, or the last seen second if sec went backwards.
func (st *sensorState) clock(sec int64) int64 {
	if sec < st.lastSec {
		return st.lastSec
	}
	st.lastSec = sec
	return sec
}

func (st *sensorState) recordRead(success bool) {
	if len(st.reads) >= uptimeWindow {
		st.reads = st.reads[1:]
	}
	st.reads = append(st.reads, success)
}

func (st *sensorState) uptimePct() float64 {
	if len(st.reads) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, s := range st.reads {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.reads)) * 100
}
