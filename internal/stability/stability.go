// Package stability classifies claims into epistemic stability states
// by combining confidence trends, entropy kinetics, and drift
// kinematics into a single labeled profile.
package stability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/kinematics"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
	"github.com/ndanilov/claimwatch/internal/timeline"
)

const (
	// ConfVolatileStd marks confidence variance as volatile
	ConfVolatileStd = 0.10

	// EntropyVolatileStd marks entropy variance as volatile
	EntropyVolatileStd = 0.5

	// DriftDivergingAccel is the drift acceleration magnitude that
	// counts toward divergence
	DriftDivergingAccel = 0.005

	// ConvergenceStd is the confidence std below which a rising trend
	// reads as converging
	ConvergenceStd = 0.03

	// CriticalFlagCount is how many simultaneous anomaly flags escalate
	// to critical
	CriticalFlagCount = 3
)

// anomalyFlags are the signals that count toward a critical escalation
var anomalyFlags = map[string]bool{
	"entropy_spike":           true,
	"entropy_volatile":        true,
	"confidence_volatile":     true,
	"drift_high_acceleration": true,
	"confidence_falling":      true,
	"entropy_increasing":      true,
}

// Engine classifies claims into stability states and logs each
// classification to the stability series
type Engine struct {
	graph      *graph.Engine
	confidence *timeline.Confidence
	entropy    *timeline.Entropy
	kinematics *kinematics.Engine
	series     store.SeriesStore
	logger     *slog.Logger
}

// New creates a stability classifier
func New(g *graph.Engine, conf *timeline.Confidence, ent *timeline.Entropy, kin *kinematics.Engine, series store.SeriesStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		graph:      g,
		confidence: conf,
		entropy:    ent,
		kinematics: kin,
		series:     series,
		logger:     logger,
	}
}

// Classify gathers all temporal signals for a claim as of the given
// time, determines its stability state, and appends the result to the
// classification series
func (e *Engine) Classify(ctx context.Context, claimID int64, at time.Time) (*model.StabilityProfile, error) {
	confTrend, err := e.confidence.AnalyzeTrend(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("classifying claim %d: %w", claimID, err)
	}
	entTrend, err := e.entropy.AnalyzeTrend(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("classifying claim %d: %w", claimID, err)
	}
	kin, err := e.kinematics.Analyze(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("classifying claim %d: %w", claimID, err)
	}

	profile := buildProfile(claimID, confTrend, entTrend, kin, at)

	if err := e.series.Append(ctx, store.SeriesStability, claimID, profile.ToMap(), at); err != nil {
		return nil, fmt.Errorf("recording classification for claim %d: %w", claimID, err)
	}
	e.logger.Info("claim classified",
		"claim_id", claimID,
		"state", string(profile.Classification),
		"flags", len(profile.SignalFlags))
	return profile, nil
}

// ClassifyAll classifies every claim in the graph with one shared
// timestamp
func (e *Engine) ClassifyAll(ctx context.Context, at time.Time) ([]*model.StabilityProfile, error) {
	claims, err := e.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("classifying all claims: %w", err)
	}
	profiles := make([]*model.StabilityProfile, 0, len(claims))
	for _, claim := range claims {
		p, err := e.Classify(ctx, claim.ID, at)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	e.logger.Info("classified claims", "count", len(profiles))
	return profiles, nil
}

// buildProfile assembles the stability profile from the three signal
// engines and determines its classification
func buildProfile(claimID int64, conf *model.ConfidenceTrend, ent *model.EntropyTrend, kin *model.DriftKinematics, at time.Time) *model.StabilityProfile {
	profile := &model.StabilityProfile{
		ClaimID:         claimID,
		ConfidenceTrend: conf.RateOfChange,
		EntropyTrend:    ent.DHDt,
		DriftAccel:      kin.CurrentAccel,
		ConfidenceStd:   conf.StdDev,
		EntropyStd:      ent.StdDev,
		IsConverging:    conf.IsConverging,
		IsPlateau:       conf.IsPlateau,
		IsSpike:         ent.IsSpike,
		HasInflection:   len(kin.InflectionPoints) > 0,
		ClassifiedAt:    at,
	}
	profile.SignalFlags = collectFlags(conf, ent, kin)
	profile.Classification = determineState(profile, profile.SignalFlags)
	return profile
}

// collectFlags gathers the named signals from all temporal sources
func collectFlags(conf *model.ConfidenceTrend, ent *model.EntropyTrend, kin *model.DriftKinematics) []string {
	var flags []string

	if conf.IsConverging {
		flags = append(flags, "confidence_converging")
	}
	if conf.IsPlateau {
		flags = append(flags, "confidence_plateau")
	}
	if conf.StdDev > ConfVolatileStd {
		flags = append(flags, "confidence_volatile")
	}
	if conf.Direction == model.TrendFalling {
		flags = append(flags, "confidence_falling")
	}
	if conf.Direction == model.TrendRising {
		flags = append(flags, "confidence_rising")
	}

	if ent.IsSpike {
		flags = append(flags, "entropy_spike")
	}
	if ent.IsCollapse {
		flags = append(flags, "entropy_collapse")
	}
	if ent.StdDev > EntropyVolatileStd {
		flags = append(flags, "entropy_volatile")
	}
	if ent.Direction == model.TrendIncreasing {
		flags = append(flags, "entropy_increasing")
	}
	if ent.Direction == model.TrendOscillating {
		flags = append(flags, "entropy_oscillating")
	}

	if kin.Phase == model.PhaseAccelerating {
		flags = append(flags, "drift_accelerating")
	}
	if kin.Phase == model.PhaseInflecting {
		flags = append(flags, "drift_inflecting")
	}
	if math.Abs(kin.CurrentAccel) > DriftDivergingAccel {
		flags = append(flags, "drift_high_acceleration")
	}
	if len(kin.InflectionPoints) > 0 {
		flags = append(flags, "drift_inflection_detected")
	}

	return flags
}

// determineState maps the collected flags to a stability state, highest
// severity first: critical, diverging, volatile, converging, stable
func determineState(profile *model.StabilityProfile, flags []string) model.StabilityState {
	has := make(map[string]bool, len(flags))
	anomalies := 0
	for _, f := range flags {
		has[f] = true
		if anomalyFlags[f] {
			anomalies++
		}
	}

	if anomalies >= CriticalFlagCount {
		return model.StateCritical
	}
	if (has["drift_accelerating"] || has["drift_high_acceleration"]) &&
		(has["entropy_increasing"] || has["entropy_spike"]) {
		return model.StateDiverging
	}
	if has["confidence_volatile"] || has["entropy_volatile"] || has["entropy_oscillating"] {
		return model.StateVolatile
	}
	if profile.IsConverging || profile.IsPlateau {
		return model.StateConverging
	}
	if has["confidence_rising"] && profile.ConfidenceStd < ConvergenceStd {
		return model.StateConverging
	}
	return model.StateStable
}

// Latest returns a claim's most recent recorded classification
func (e *Engine) Latest(ctx context.Context, claimID int64) (model.StabilityState, error) {
	row, err := e.series.Latest(ctx, store.SeriesStability, claimID)
	if err != nil {
		return "", err
	}
	return model.StabilityState(model.MapString(row.Payload, "classification")), nil
}

// History returns a claim's classification profiles, newest first
func (e *Engine) History(ctx context.Context, claimID int64, limit int) ([]*model.StabilityProfile, error) {
	rows, err := e.series.History(ctx, store.SeriesStability, claimID, limit, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("reading stability history for claim %d: %w", claimID, err)
	}
	profiles := make([]*model.StabilityProfile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, model.StabilityProfileFromMap(row.Payload))
	}
	return profiles, nil
}

// Transitions reconstructs state changes by diffing a claim's
// classification history in chronological order
func (e *Engine) Transitions(ctx context.Context, claimID int64) ([]model.StabilityTransition, error) {
	history, err := e.History(ctx, claimID, 0)
	if err != nil {
		return nil, err
	}
	var transitions []model.StabilityTransition
	// History is newest-first; walk it backward
	for i := len(history) - 2; i >= 0; i-- {
		older := history[i+1]
		newer := history[i]
		if older.Classification != newer.Classification {
			transitions = append(transitions, model.StabilityTransition{
				ClaimID: claimID,
				From:    older.Classification,
				To:      newer.Classification,
				At:      newer.ClassifiedAt,
			})
		}
	}
	return transitions, nil
}

// ByState returns the claims whose latest classification matches state
func (e *Engine) ByState(ctx context.Context, state model.StabilityState) ([]int64, error) {
	claims, err := e.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("listing claims by state: %w", err)
	}
	var ids []int64
	for _, claim := range claims {
		latest, err := e.Latest(ctx, claim.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if latest == state {
			ids = append(ids, claim.ID)
		}
	}
	return ids, nil
}

// Summary counts claims by their latest classification
type Summary struct {
	ByState         map[model.StabilityState]int `json:"by_state"`
	TotalClassified int                          `json:"total_classified"`
}

// Summarize tallies the latest classification of every claim
func (e *Engine) Summarize(ctx context.Context) (*Summary, error) {
	claims, err := e.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("summarizing stability: %w", err)
	}
	s := &Summary{ByState: make(map[model.StabilityState]int, len(model.StabilityStates))}
	for _, state := range model.StabilityStates {
		s.ByState[state] = 0
	}
	for _, claim := range claims {
		latest, err := e.Latest(ctx, claim.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		s.ByState[latest]++
		s.TotalClassified++
	}
	return s, nil
}
