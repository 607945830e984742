package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// notification is the sensor-centric view of an alert that every webhook
// format is rendered from.
type notification struct {
	Event        string     `json:"event"` // "fired" | "resolved"
	AlertID      string     `json:"alert_id"`
	Rule         string     `json:"rule"`
	Severity     string     `json:"severity"`
	SensorID     string     `json:"sensor_id"`
	SensorState  string     `json:"sensor_state"`
	Condition    string     `json:"condition"`
	Threshold    string     `json:"threshold"`
	Value        float64    `json:"value"`
	Temperature  float64    `json:"temperature"`
	SlopePerHour float64    `json:"slope_per_hour"`
	FiredAt      time.Time  `json:"fired_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

func newNotification(a *Alert) notification {
	ev := "fired"
	if a.State == StateResolved {
		ev = "resolved"
	}
	return notification{
		Event:        ev,
		AlertID:      a.ID,
		Rule:         a.RuleName,
		Severity:     a.Severity,
		SensorID:     a.SensorID,
		SensorState:  a.SensorState,
		Condition:    a.Condition,
		Threshold:    a.Threshold,
		Value:        a.Value,
		Temperature:  a.Temperature,
		SlopePerHour: a.SlopePerHour,
		FiredAt:      a.FiredAt,
		ResolvedAt:   a.ResolvedAt,
	}
}

// headline is the one-line summary used by the chat formats.
func (n notification) headline() string {
	if n.Event == "resolved" {
		return fmt.Sprintf("%s cleared on %s", n.Rule, n.SensorID)
	}
	return fmt.Sprintf("%s on %s: %s", n.Rule, n.SensorID, n.Condition)
}

// facts are the sensor readings shown in chat messages, in display order.
func (n notification) facts() [][2]string {
	return [][2]string{
		{"Sensor", n.SensorID},
		{"Trend", n.SensorState},
		{"Slope", fmt.Sprintf("%+.2f °/h", n.SlopePerHour)},
		{"Temperature", fmt.Sprintf("%.2f °", n.Temperature)},
		{"Threshold", n.Threshold},
	}
}

// deliver posts a to every webhook with a resolvable URL. Failures are
// logged only.
func (e *Engine) deliver(a *Alert) {
	n := newNotification(a)
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var payload any
		switch wh.Type {
		case "slack":
			payload = slackPayload(n)
		case "teams":
			payload = teamsPayload(n)
		case "http":
			payload = n
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		body, err := json.Marshal(payload)
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", n.Rule, "sensor", n.SensorID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type, "rule", n.Rule, "sensor", n.SensorID, "event", n.Event)
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color    string       `json:"color"`
	Fallback string       `json:"fallback"`
	Fields   []slackField `json:"fields"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func slackPayload(n notification) slackMessage {
	label := severityLabel(n.Severity)
	if n.Event == "resolved" {
		label = "[RESOLVED]"
	}
	fields := make([]slackField, 0, 5)
	for _, f := range n.facts() {
		fields = append(fields, slackField{Title: f[0], Value: f[1], Short: true})
	}
	return slackMessage{
		Text: fmt.Sprintf("*%s* %s", label, n.headline()),
		Attachments: []slackAttachment{{
			Color:    "#" + eventColor(n),
			Fallback: n.headline(),
			Fields:   fields,
		}},
	}
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type teamsSection struct {
	ActivityTitle string      `json:"activityTitle"`
	Facts         []teamsFact `json:"facts"`
}

// teamsCard is a legacy Office 365 connector MessageCard.
type teamsCard struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor"`
	Summary    string         `json:"summary"`
	Title      string         `json:"title"`
	Sections   []teamsSection `json:"sections"`
}

func teamsPayload(n notification) teamsCard {
	facts := make([]teamsFact, 0, 5)
	for _, f := range n.facts() {
		facts = append(facts, teamsFact{Name: f[0], Value: f[1]})
	}
	return teamsCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: eventColor(n),
		Summary:    n.headline(),
		Title:      fmt.Sprintf("tempslope %s: %s", n.Event, n.Rule),
		Sections: []teamsSection{{
			ActivityTitle: n.headline(),
			Facts:         facts,
		}},
	}
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// eventColor is a hex colour without the leading '#'.
func eventColor(n notification) string {
	if n.Event == "resolved" {
		return "2EB886"
	}
	switch n.Severity {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
