// Package kinematics differentiates a claim's drift history into
// velocity, acceleration, and jerk, finds inflection points where
// acceleration flips sign, and classifies the drift phase.
package kinematics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/timeline"
)

const (
	// MinPoints is the minimum history for derivative analysis
	MinPoints = 3

	// AccelThreshold separates constant drift from accelerating or
	// decelerating drift
	AccelThreshold = 0.001

	// InflectionThreshold filters out sign flips between near-zero
	// accelerations
	InflectionThreshold = 0.0005

	// historyWindow is how many newest drift snapshots an analysis reads
	historyWindow = 200
)

// Engine computes kinematic derivatives of claim drift over time
type Engine struct {
	graph    *graph.Engine
	timeline *timeline.Entropy
	logger   *slog.Logger
}

// New creates a drift kinematics engine
func New(g *graph.Engine, tl *timeline.Entropy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{graph: g, timeline: tl, logger: logger}
}

// derivPoint is an intermediate derivative sample
type derivPoint struct {
	at    time.Time
	value float64
}

// Analyze builds the full kinematic profile of a claim's drift history
// as of the given time. An empty history yields a zero result.
func (e *Engine) Analyze(ctx context.Context, claimID int64, asOf time.Time) (*model.DriftKinematics, error) {
	history, err := e.timeline.DriftHistory(ctx, claimID, historyWindow, asOf)
	if err != nil {
		return nil, fmt.Errorf("analyzing kinematics for claim %d: %w", claimID, err)
	}
	result := &model.DriftKinematics{ClaimID: claimID, Phase: model.PhaseConstant}
	if len(history) == 0 {
		return result, nil
	}

	// Newest-first to chronological
	chrono := make([]derivPoint, len(history))
	for i, p := range history {
		chrono[len(history)-1-i] = derivPoint{at: p.At, value: p.Value}
	}
	result.TotalSnapshots = len(chrono)
	result.CurrentDrift = chrono[len(chrono)-1].value
	if len(chrono) < 2 {
		return result, nil
	}

	velocities := differentiate(chrono)
	accelerations := differentiate(velocities)
	jerks := differentiate(accelerations)

	result.Profile = buildProfile(chrono, velocities, accelerations, jerks)
	result.CurrentVelocity = lastValue(velocities)
	result.CurrentAccel = lastValue(accelerations)
	result.CurrentJerk = lastValue(jerks)

	result.MeanVelocity, result.MaxVelocity = absStats(velocities)
	result.MeanAccel, result.MaxAccel = absStats(accelerations)

	result.InflectionPoints = findInflections(accelerations)
	result.Phase = classifyPhase(result)

	e.logger.Debug("drift kinematics computed",
		"claim_id", claimID,
		"velocity", result.CurrentVelocity,
		"acceleration", result.CurrentAccel,
		"inflections", len(result.InflectionPoints),
		"phase", string(result.Phase))

	return result, nil
}

// differentiate computes finite differences over a time series, in
// value-units per hour. The step duration is floored at a nanosecond
// scale so same-timestamp rows cannot divide by zero.
func differentiate(series []derivPoint) []derivPoint {
	if len(series) < 2 {
		return nil
	}
	out := make([]derivPoint, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		dtHours := series[i].at.Sub(series[i-1].at).Hours()
		if dtHours < 1e-9 {
			dtHours = 1e-9
		}
		out = append(out, derivPoint{
			at:    series[i].at,
			value: (series[i].value - series[i-1].value) / dtHours,
		})
	}
	return out
}

func lastValue(series []derivPoint) float64 {
	if len(series) == 0 {
		return 0.0
	}
	return series[len(series)-1].value
}

// absStats returns the mean and max of the series' absolute values
func absStats(series []derivPoint) (meanAbs, maxAbs float64) {
	if len(series) == 0 {
		return 0.0, 0.0
	}
	var sum float64
	for _, p := range series {
		v := math.Abs(p.value)
		sum += v
		if v > maxAbs {
			maxAbs = v
		}
	}
	return sum / float64(len(series)), maxAbs
}

// buildProfile aligns the drift series with its derivatives by timestamp
func buildProfile(chrono, velocities, accelerations, jerks []derivPoint) []model.KinematicPoint {
	velAt := indexByTime(velocities)
	accAt := indexByTime(accelerations)
	jerkAt := indexByTime(jerks)

	profile := make([]model.KinematicPoint, 0, len(chrono))
	for _, p := range chrono {
		profile = append(profile, model.KinematicPoint{
			At:           p.at,
			Drift:        p.value,
			Velocity:     velAt[p.at.UnixNano()],
			Acceleration: accAt[p.at.UnixNano()],
			Jerk:         jerkAt[p.at.UnixNano()],
		})
	}
	return profile
}

func indexByTime(series []derivPoint) map[int64]float64 {
	m := make(map[int64]float64, len(series))
	for _, p := range series {
		m[p.at.UnixNano()] = p.value
	}
	return m
}

// findInflections detects sign changes in the acceleration series.
// Flips between near-zero values below InflectionThreshold are noise
// and skipped.
func findInflections(accelerations []derivPoint) []model.InflectionPoint {
	if len(accelerations) < 2 {
		return nil
	}
	var inflections []model.InflectionPoint
	for i := 1; i < len(accelerations); i++ {
		prev := accelerations[i-1].value
		curr := accelerations[i].value
		if prev*curr >= 0 {
			continue
		}
		if math.Abs(prev) <= InflectionThreshold && math.Abs(curr) <= InflectionThreshold {
			continue
		}
		inflections = append(inflections, model.InflectionPoint{
			At:        accelerations[i].at,
			FromAccel: model.Round6(prev),
			ToAccel:   model.Round6(curr),
			Magnitude: model.Round6(math.Abs(curr - prev)),
		})
	}
	return inflections
}

// classifyPhase labels the current kinematic regime. Any detected
// inflection dominates; otherwise the current acceleration decides.
func classifyPhase(k *model.DriftKinematics) model.DriftPhase {
	if len(k.InflectionPoints) > 0 {
		return model.PhaseInflecting
	}
	if math.Abs(k.CurrentAccel) < AccelThreshold && math.Abs(k.CurrentVelocity) < AccelThreshold {
		return model.PhaseConstant
	}
	if k.CurrentAccel > AccelThreshold {
		return model.PhaseAccelerating
	}
	if k.CurrentAccel < -AccelThreshold {
		return model.PhaseDecelerating
	}
	return model.PhaseConstant
}

// AnalyzeAll runs the kinematic analysis for every claim with drift
// history
func (e *Engine) AnalyzeAll(ctx context.Context, asOf time.Time) ([]*model.DriftKinematics, error) {
	claims, err := e.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("analyzing all kinematics: %w", err)
	}
	var results []*model.DriftKinematics
	for _, claim := range claims {
		k, err := e.Analyze(ctx, claim.ID, asOf)
		if err != nil {
			return nil, err
		}
		if k.TotalSnapshots > 0 {
			results = append(results, k)
		}
	}
	e.logger.Info("analyzed drift kinematics", "count", len(results))
	return results, nil
}

// DetectAccelerating finds claims whose drift is speeding up past the
// threshold
func (e *Engine) DetectAccelerating(ctx context.Context, threshold float64) ([]*model.DriftKinematics, error) {
	all, err := e.AnalyzeAll(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	var out []*model.DriftKinematics
	for _, k := range all {
		if k.CurrentAccel > threshold {
			out = append(out, k)
		}
	}
	return out, nil
}

// DetectInflecting finds claims currently at an inflection point
func (e *Engine) DetectInflecting(ctx context.Context) ([]*model.DriftKinematics, error) {
	all, err := e.AnalyzeAll(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	var out []*model.DriftKinematics
	for _, k := range all {
		if k.Phase == model.PhaseInflecting {
			out = append(out, k)
		}
	}
	return out, nil
}

// RankByAcceleration ranks claims by absolute acceleration magnitude
func (e *Engine) RankByAcceleration(ctx context.Context, topN int) ([]*model.DriftKinematics, error) {
	all, err := e.AnalyzeAll(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return math.Abs(all[i].CurrentAccel) > math.Abs(all[j].CurrentAccel)
	})
	if topN > 0 && len(all) > topN {
		all = all[:topN]
	}
	return all, nil
}
