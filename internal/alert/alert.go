// Package alert watches the temporal signal engines and raises
// threshold alerts: entropy spikes, confidence collapse and surge,
// drift acceleration and inflection, contradiction tension, and
// stability-state escalations.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ndanilov/claimwatch/internal/contradiction"
	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/kinematics"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/stability"
	"github.com/ndanilov/claimwatch/internal/store"
	"github.com/ndanilov/claimwatch/internal/timeline"
)

// Engine scans claims against the alert thresholds and manages the
// alert lifecycle. Delivery is at-least-once: a persisting condition
// fires a fresh alert row on every scan, and acknowledging only
// suppresses rows already written.
type Engine struct {
	graph         *graph.Engine
	confidence    *timeline.Confidence
	entropy       *timeline.Entropy
	kinematics    *kinematics.Engine
	contradiction *contradiction.Analyzer
	stability     *stability.Engine
	alerts        store.AlertStore
	cfg           model.AlertConfig
	logger        *slog.Logger
}

// New creates an alert engine
func New(g *graph.Engine, conf *timeline.Confidence, ent *timeline.Entropy, kin *kinematics.Engine, contra *contradiction.Analyzer, stab *stability.Engine, alerts store.AlertStore, cfg model.AlertConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		graph:         g,
		confidence:    conf,
		entropy:       ent,
		kinematics:    kin,
		contradiction: contra,
		stability:     stab,
		alerts:        alerts,
		cfg:           cfg,
		logger:        logger,
	}
}

// Raise validates and persists a single alert
func (e *Engine) Raise(ctx context.Context, a *model.Alert) (int64, error) {
	if !model.ValidAlertType(a.Type) {
		return 0, fmt.Errorf("unknown alert type %q", a.Type)
	}
	id, err := e.alerts.InsertAlert(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("raising %s alert for claim %d: %w", a.Type, a.ClaimID, err)
	}
	e.logger.Warn("alert raised",
		"alert_id", id,
		"claim_id", a.ClaimID,
		"type", string(a.Type),
		"severity", string(a.Severity),
		"value", a.Value)
	return id, nil
}

// ScanClaim evaluates every threshold rule against one claim's signals
// as of the given time. Conditions that hit the same (claim, type) key
// within this pass are collapsed to one row; persisted alerts are
// returned.
func (e *Engine) ScanClaim(ctx context.Context, claimID int64, at time.Time) ([]*model.Alert, error) {
	var candidates []*model.Alert

	ents, err := e.checkEntropy(ctx, claimID, at)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, ents...)

	confs, err := e.checkConfidence(ctx, claimID, at)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, confs...)

	drifts, err := e.checkDrift(ctx, claimID, at)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, drifts...)

	tensions, err := e.checkTension(ctx, claimID, at)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, tensions...)

	states, err := e.checkStability(ctx, claimID, at)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, states...)

	seen := make(map[string]bool, len(candidates))
	fired := make([]*model.Alert, 0, len(candidates))
	for _, a := range candidates {
		if seen[a.Key()] {
			continue
		}
		seen[a.Key()] = true
		if a.ID, err = e.Raise(ctx, a); err != nil {
			return nil, err
		}
		fired = append(fired, a)
	}
	return fired, nil
}

// ScanAll scans every claim with one shared scan timestamp
func (e *Engine) ScanAll(ctx context.Context, at time.Time) ([]*model.Alert, error) {
	claims, err := e.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("scanning all claims: %w", err)
	}
	var fired []*model.Alert
	for _, claim := range claims {
		alerts, err := e.ScanClaim(ctx, claim.ID, at)
		if err != nil {
			return nil, err
		}
		fired = append(fired, alerts...)
	}
	e.logger.Info("alert scan complete", "claims", len(claims), "alerts", len(fired))
	return fired, nil
}

func (e *Engine) checkEntropy(ctx context.Context, claimID int64, at time.Time) ([]*model.Alert, error) {
	trend, err := e.entropy.AnalyzeTrend(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("checking entropy for claim %d: %w", claimID, err)
	}
	var alerts []*model.Alert

	if trend.IsSpike && trend.SpikeMagnitude >= e.cfg.EntropySpikeThreshold {
		severity := model.SeverityWarning
		if trend.SpikeMagnitude > e.cfg.EntropySpikeCritical {
			severity = model.SeverityCritical
		}
		alerts = append(alerts, &model.Alert{
			ClaimID:  claimID,
			Type:     model.AlertEntropySpike,
			Severity: severity,
			Message: fmt.Sprintf("entropy spike of %.2f std devs (H=%.4f, mean=%.4f)",
				trend.SpikeMagnitude, trend.CurrentEntropy, trend.MeanEntropy),
			Value:     trend.SpikeMagnitude,
			Threshold: e.cfg.EntropySpikeThreshold,
			CreatedAt: at,
		})
	}
	if trend.IsCollapse {
		alerts = append(alerts, &model.Alert{
			ClaimID:  claimID,
			Type:     model.AlertEntropyCollapse,
			Severity: model.SeverityWarning,
			Message: fmt.Sprintf("entropy collapsed to %.4f from mean %.4f",
				trend.CurrentEntropy, trend.MeanEntropy),
			Value:     trend.SpikeMagnitude,
			Threshold: e.cfg.EntropySpikeThreshold,
			CreatedAt: at,
		})
	}
	return alerts, nil
}

func (e *Engine) checkConfidence(ctx context.Context, claimID int64, at time.Time) ([]*model.Alert, error) {
	trend, err := e.confidence.AnalyzeTrend(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("checking confidence for claim %d: %w", claimID, err)
	}
	var alerts []*model.Alert

	if trend.RateOfChange < e.cfg.ConfidenceCollapseRate {
		severity := model.SeverityWarning
		if trend.RateOfChange < 2*e.cfg.ConfidenceCollapseRate {
			severity = model.SeverityCritical
		}
		alerts = append(alerts, &model.Alert{
			ClaimID:  claimID,
			Type:     model.AlertConfidenceCollapse,
			Severity: severity,
			Message: fmt.Sprintf("confidence collapsing at %.4f/h (current %.4f, %s)",
				trend.RateOfChange, trend.CurrentScore, trend.Direction),
			Value:     trend.RateOfChange,
			Threshold: e.cfg.ConfidenceCollapseRate,
			CreatedAt: at,
		})
	}
	if trend.RateOfChange > e.cfg.ConfidenceSurgeRate {
		alerts = append(alerts, &model.Alert{
			ClaimID:  claimID,
			Type:     model.AlertConfidenceSurge,
			Severity: model.SeverityInfo,
			Message: fmt.Sprintf("confidence surging at %.4f/h (current %.4f)",
				trend.RateOfChange, trend.CurrentScore),
			Value:     trend.RateOfChange,
			Threshold: e.cfg.ConfidenceSurgeRate,
			CreatedAt: at,
		})
	}
	return alerts, nil
}

func (e *Engine) checkDrift(ctx context.Context, claimID int64, at time.Time) ([]*model.Alert, error) {
	kin, err := e.kinematics.Analyze(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("checking drift for claim %d: %w", claimID, err)
	}
	var alerts []*model.Alert

	accel := math.Abs(kin.CurrentAccel)
	if accel > e.cfg.DriftAccelerationThreshold {
		severity := model.SeverityWarning
		if accel > 2*e.cfg.DriftAccelerationThreshold {
			severity = model.SeverityCritical
		}
		alerts = append(alerts, &model.Alert{
			ClaimID:  claimID,
			Type:     model.AlertDriftAcceleration,
			Severity: severity,
			Message: fmt.Sprintf("drift accelerating at %.6f/h² (phase %s, velocity %.6f)",
				kin.CurrentAccel, kin.Phase, kin.CurrentVelocity),
			Value:     accel,
			Threshold: e.cfg.DriftAccelerationThreshold,
			CreatedAt: at,
		})
	}
	if n := len(kin.InflectionPoints); n > 0 {
		latest := kin.InflectionPoints[n-1]
		alerts = append(alerts, &model.Alert{
			ClaimID:  claimID,
			Type:     model.AlertDriftInflection,
			Severity: model.SeverityInfo,
			Message: fmt.Sprintf("%d drift inflection(s), latest %.6f -> %.6f",
				n, latest.FromAccel, latest.ToAccel),
			Value:     float64(n),
			Threshold: 1.0,
			CreatedAt: at,
		})
	}
	return alerts, nil
}

func (e *Engine) checkTension(ctx context.Context, claimID int64, at time.Time) ([]*model.Alert, error) {
	profile, err := e.contradiction.ProfileClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("checking tension for claim %d: %w", claimID, err)
	}
	if profile.TensionScore <= e.cfg.TensionThreshold {
		return nil, nil
	}
	severity := model.SeverityWarning
	if profile.TensionScore > e.cfg.TensionCritical {
		severity = model.SeverityCritical
	}
	return []*model.Alert{{
		ClaimID:  claimID,
		Type:     model.AlertHighTension,
		Severity: severity,
		Message: fmt.Sprintf("tension %.4f across %d contradictions (contested=%v)",
			profile.TensionScore, profile.ContradictionCount, profile.IsContested),
		Value:     profile.TensionScore,
		Threshold: e.cfg.TensionThreshold,
		CreatedAt: at,
	}}, nil
}

// checkStability raises on the latest logged classification: critical
// states fire state_critical, diverging states fire state_degraded.
// A claim with no classification history raises nothing.
func (e *Engine) checkStability(ctx context.Context, claimID int64, at time.Time) ([]*model.Alert, error) {
	state, err := e.stability.Latest(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("checking stability for claim %d: %w", claimID, err)
	}
	switch state {
	case model.StateCritical:
		return []*model.Alert{{
			ClaimID:   claimID,
			Type:      model.AlertStateCritical,
			Severity:  model.SeverityCritical,
			Message:   "claim classified critical",
			Value:     float64(model.SeverityCritical.Rank()),
			Threshold: float64(model.SeverityWarning.Rank()),
			CreatedAt: at,
		}}, nil
	case model.StateDiverging:
		return []*model.Alert{{
			ClaimID:   claimID,
			Type:      model.AlertStateDegraded,
			Severity:  model.SeverityWarning,
			Message:   "claim classified diverging",
			Value:     float64(model.SeverityWarning.Rank()),
			Threshold: float64(model.SeverityInfo.Rank()),
			CreatedAt: at,
		}}, nil
	}
	return nil, nil
}

// Alerts queries persisted alerts with optional filters, newest first
func (e *Engine) Alerts(ctx context.Context, filter store.AlertFilter) ([]*model.Alert, error) {
	return e.alerts.ListAlerts(ctx, filter)
}

// Acknowledge marks a claim's open alerts of one type (or all types
// when typ is empty) as acknowledged. Returns how many rows changed.
// Future scans still re-raise live conditions.
func (e *Engine) Acknowledge(ctx context.Context, claimID int64, typ model.AlertType) (int64, error) {
	n, err := e.alerts.Acknowledge(ctx, claimID, typ)
	if err != nil {
		return 0, fmt.Errorf("acknowledging alerts for claim %d: %w", claimID, err)
	}
	e.logger.Info("alerts acknowledged", "claim_id", claimID, "type", string(typ), "count", n)
	return n, nil
}

// Summary aggregates alert counts by severity and type
type Summary struct {
	TotalAlerts    int                     `json:"total_alerts"`
	Unacknowledged int                     `json:"unacknowledged"`
	BySeverity     map[model.Severity]int  `json:"by_severity"`
	ByType         map[model.AlertType]int `json:"by_type"`
}

// Summarize tallies all persisted alerts
func (e *Engine) Summarize(ctx context.Context) (*Summary, error) {
	all, err := e.alerts.ListAlerts(ctx, store.AlertFilter{})
	if err != nil {
		return nil, fmt.Errorf("summarizing alerts: %w", err)
	}
	s := &Summary{
		BySeverity: map[model.Severity]int{
			model.SeverityInfo:     0,
			model.SeverityWarning:  0,
			model.SeverityCritical: 0,
		},
		ByType: make(map[model.AlertType]int),
	}
	for _, a := range all {
		s.TotalAlerts++
		if !a.Acknowledged {
			s.Unacknowledged++
		}
		s.BySeverity[a.Severity]++
		s.ByType[a.Type]++
	}
	return s, nil
}
