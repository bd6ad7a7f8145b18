package model

import (
	"fmt"
	"time"
)

// AlertType identifies which threshold rule fired
type AlertType string

const (
	AlertEntropySpike       AlertType = "entropy_spike"
	AlertEntropyCollapse    AlertType = "entropy_collapse"
	AlertConfidenceCollapse AlertType = "confidence_collapse"
	AlertConfidenceSurge    AlertType = "confidence_surge"
	AlertDriftAcceleration  AlertType = "drift_acceleration"
	AlertDriftInflection    AlertType = "drift_inflection"
	AlertHighTension        AlertType = "high_tension"
	AlertStateDegraded      AlertType = "state_degraded"
	AlertStateCritical      AlertType = "state_critical"
)

// ValidAlertType reports whether t is a known alert type
func ValidAlertType(t AlertType) bool {
	switch t {
	case AlertEntropySpike, AlertEntropyCollapse, AlertConfidenceCollapse,
		AlertConfidenceSurge, AlertDriftAcceleration, AlertDriftInflection,
		AlertHighTension, AlertStateDegraded, AlertStateCritical:
		return true
	}
	return false
}

// Severity ranks how urgent an alert is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for sorting, higher is more urgent
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	}
	return 0
}

// Alert is a single fired alert. Delivery is at-least-once: the same
// condition fires again on every scan until the underlying signal clears,
// and Key deduplicates only within one scan pass.
type Alert struct {
	ID           int64     `json:"id"`
	ClaimID      int64     `json:"claim_id"`
	Type         AlertType `json:"type"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Value        float64   `json:"value"`     // observed signal value
	Threshold    float64   `json:"threshold"` // threshold that was crossed
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}

// Key is the idempotency key for one alert within one scan pass
func (a *Alert) Key() string {
	return fmt.Sprintf("%d:%s:%d", a.ClaimID, a.Type, a.CreatedAt.Unix())
}

// ToMap flattens the alert for serialization
func (a *Alert) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":           a.ID,
		"claim_id":     a.ClaimID,
		"type":         string(a.Type),
		"severity":     string(a.Severity),
		"message":      a.Message,
		"value":        Round6(a.Value),
		"threshold":    Round6(a.Threshold),
		"acknowledged": a.Acknowledged,
		"created_at":   a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// AlertFromMap rebuilds an alert from its flat map form
func AlertFromMap(m map[string]interface{}) *Alert {
	return &Alert{
		ID:           MapInt64(m, "id"),
		ClaimID:      MapInt64(m, "claim_id"),
		Type:         AlertType(MapString(m, "type")),
		Severity:     Severity(MapString(m, "severity")),
		Message:      MapString(m, "message"),
		Value:        MapFloat(m, "value"),
		Threshold:    MapFloat(m, "threshold"),
		Acknowledged: MapBool(m, "acknowledged"),
		CreatedAt:    MapTime(m, "created_at"),
	}
}
