package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/google/uuid"

	"github.com/tempslope/tempslope/pkg/types"
	"github.com/tempslope/tempslope/server/internal/config"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SensorID   string     `json:"sensor_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	Condition  string     `json:"condition"`
	Threshold  string     `json:"threshold"`

	// Reading context at the last fire or resolve.
	Temperature  float64 `json:"temperature"`
	SlopePerHour float64 `json:"slope_per_hour"`
	SensorState  string  `json:"sensor_state"`

	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against incoming Snapshots and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:sensorID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  deque.Deque[*Alert]  // resolved alerts, oldest first
	client   *http.Client
	now      func() time.Time
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Evaluate tests all configured rules against snap.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(snap *types.Snapshot) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range e.rules {
		if !appliesTo(rule, snap.SensorID) {
			continue
		}
		key := rule.Name + ":" + snap.SensorID
		fires, value := evalCondition(rule.Condition, snap)

		var notify *Alert
		e.mu.Lock()
		if fires {
			notify = e.fire(rule, key, snap, value, now)
		} else {
			notify = e.resolve(key, snap, now)
		}
		e.mu.Unlock()

		if notify == nil {
			continue
		}
		if notify.State == StateFiring {
			slog.Warn("alert fired",
				"rule", rule.Name,
				"sensor", snap.SensorID,
				"value", value,
				"severity", notify.Severity,
			)
		} else {
			slog.Info("alert resolved",
				"rule", rule.Name,
				"sensor", snap.SensorID,
			)
		}
		go e.deliver(notify)
	}
}

// fire records a firing alert unless one is already active or the rule is
// cooling down. It returns a copy to notify about, or nil. Caller holds e.mu.
func (e *Engine) fire(rule config.AlertRule, key string, snap *types.Snapshot, value float64, now time.Time) *Alert {
	if a, ok := e.active[key]; ok {
		a.Value = value
		a.observe(snap)
		return nil
	}
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[key]; ok && now.Sub(last) < cooldown {
		return nil
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:        uuid.NewString(),
		RuleName:  rule.Name,
		SensorID:  snap.SensorID,
		Severity:  sev,
		Value:     value,
		Condition: rule.Condition,
		Threshold: conditionThreshold(rule.Condition),
		Message: fmt.Sprintf("[%s] %s fired on %s: %s (value %.2f)",
			sev, rule.Name, snap.SensorID, rule.Condition, value),
		FiredAt: now,
		State:   StateFiring,
	}
	a.observe(snap)
	e.active[key] = a
	e.lastFire[key] = now
	cp := *a
	return &cp
}

// resolve moves an active alert to history. Caller holds e.mu.
func (e *Engine) resolve(key string, snap *types.Snapshot, now time.Time) *Alert {
	a, ok := e.active[key]
	if !ok {
		return nil
	}
	a.observe(snap)
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history.PushBack(a)
	for e.history.Len() > maxHistoryLen {
		e.history.PopFront()
	}
	cp := *a
	return &cp
}

func (a *Alert) observe(snap *types.Snapshot) {
	a.Temperature = snap.Temperature
	a.SlopePerHour = snap.SlopePerHour
	a.SensorState = snap.State
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for i := e.history.Len() - 1; i >= 0; i-- {
		a := e.history.At(i)
		if a.ResolvedAt == nil || !a.ResolvedAt.After(cutoff) {
			break
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Firing returns the number of alerts currently firing for sensorID, or
// for all sensors when sensorID is empty.
func (e *Engine) Firing(sensorID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sensorID == "" {
		return len(e.active)
	}
	n := 0
	for _, a := range e.active {
		if a.SensorID == sensorID {
			n++
		}
	}
	return n
}

func appliesTo(rule config.AlertRule, sensorID string) bool {
	if len(rule.Sensors) == 0 {
		return true
	}
	for _, s := range rule.Sensors {
		if s == sensorID {
			return true
		}
	}
	return false
}
