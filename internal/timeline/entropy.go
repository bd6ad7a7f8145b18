package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ndanilov/claimwatch/internal/entropy"
	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
)

// Entropy tracks Shannon entropy of mutation chains over time and
// derives entropy kinetics: dH/dt, acceleration, and spike detection
type Entropy struct {
	graph  *graph.Engine
	engine *entropy.Engine
	series store.SeriesStore
	cfg    model.TimelineConfig
	logger *slog.Logger
}

// NewEntropy creates an entropy timeline
func NewEntropy(g *graph.Engine, engine *entropy.Engine, series store.SeriesStore, cfg model.TimelineConfig, logger *slog.Logger) *Entropy {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = 200
	}
	return &Entropy{graph: g, engine: engine, series: series, cfg: cfg, logger: logger}
}

// Snapshot computes mutation entropy now and records it on the timeline
func (e *Entropy) Snapshot(ctx context.Context, claimID int64, at time.Time) (*model.MutationMetrics, error) {
	metrics, err := e.engine.AnalyzeChain(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("snapshotting entropy for claim %d: %w", claimID, err)
	}
	if err := e.series.Append(ctx, store.SeriesEntropy, claimID, metrics.ToMap(), at); err != nil {
		return nil, fmt.Errorf("snapshotting entropy for claim %d: %w", claimID, err)
	}
	e.logger.Info("entropy snapshot",
		"claim_id", claimID,
		"entropy", metrics.ShannonEntropy,
		"drift", metrics.DriftVelocity)
	return metrics, nil
}

// SnapshotAll records an entropy snapshot for every claim
func (e *Entropy) SnapshotAll(ctx context.Context, at time.Time) ([]*model.MutationMetrics, error) {
	claims, err := e.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("snapshotting all entropy: %w", err)
	}
	out := make([]*model.MutationMetrics, 0, len(claims))
	for _, claim := range claims {
		m, err := e.Snapshot(ctx, claim.ID, at)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	e.logger.Info("snapshotted entropy timeline", "claims", len(out))
	return out, nil
}

// History returns a claim's entropy points, newest first
func (e *Entropy) History(ctx context.Context, claimID int64, limit int, before time.Time) ([]Point, error) {
	rows, err := e.series.History(ctx, store.SeriesEntropy, claimID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("reading entropy history for claim %d: %w", claimID, err)
	}
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		points = append(points, Point{
			ClaimID: claimID,
			Value:   model.MapFloat(row.Payload, "shannon_entropy"),
			At:      row.At,
		})
	}
	return points, nil
}

// DriftHistory returns a claim's drift velocity points, newest first.
// The kinematics engine differentiates this series.
func (e *Entropy) DriftHistory(ctx context.Context, claimID int64, limit int, before time.Time) ([]Point, error) {
	rows, err := e.series.History(ctx, store.SeriesEntropy, claimID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("reading drift history for claim %d: %w", claimID, err)
	}
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		points = append(points, Point{
			ClaimID: claimID,
			Value:   model.MapFloat(row.Payload, "drift_velocity"),
			At:      row.At,
		})
	}
	return points, nil
}

// Latest returns the most recent recorded entropy value
func (e *Entropy) Latest(ctx context.Context, claimID int64) (float64, error) {
	row, err := e.series.Latest(ctx, store.SeriesEntropy, claimID)
	if err != nil {
		return 0.0, err
	}
	return model.MapFloat(row.Payload, "shannon_entropy"), nil
}

// AnalyzeTrend runs the full entropy trend analysis as of the given
// time. An empty history yields a zero trend with TotalSnapshots == 0.
func (e *Entropy) AnalyzeTrend(ctx context.Context, claimID int64, asOf time.Time) (*model.EntropyTrend, error) {
	history, err := e.History(ctx, claimID, e.cfg.Window, asOf)
	if err != nil {
		return nil, err
	}
	trend := &model.EntropyTrend{ClaimID: claimID, Direction: model.TrendStable}
	if len(history) == 0 {
		return trend, nil
	}

	chrono := reversePoints(history)
	entropies := valuesOf(chrono)
	trend.TotalSnapshots = len(entropies)
	trend.CurrentEntropy = entropies[len(entropies)-1]

	trend.MeanEntropy = mean(entropies)
	trend.MinEntropy, trend.MaxEntropy = entropies[0], entropies[0]
	for _, h := range entropies {
		if h < trend.MinEntropy {
			trend.MinEntropy = h
		}
		if h > trend.MaxEntropy {
			trend.MaxEntropy = h
		}
	}
	trend.StdDev = stdDev(entropies)

	trend.DHDt = rateOfChange(chrono)
	trend.D2HDt2 = secondDerivative(chrono)
	trend.Direction = classifyEntropyTrend(entropies)

	if len(entropies) >= MinTrendSnapshots && trend.StdDev > 0 {
		lastDelta := entropies[len(entropies)-1] - entropies[len(entropies)-2]
		magnitude := math.Abs(lastDelta) / math.Max(trend.StdDev, 1e-9)
		if magnitude > SpikeFactor {
			trend.SpikeMagnitude = magnitude
			if lastDelta > 0 {
				trend.IsSpike = true
			} else {
				trend.IsCollapse = true
			}
		}
	}

	return trend, nil
}

// AnalyzeAllTrends analyzes every claim that has entropy history
func (e *Entropy) AnalyzeAllTrends(ctx context.Context, asOf time.Time) ([]*model.EntropyTrend, error) {
	claims, err := e.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("analyzing all entropy trends: %w", err)
	}
	var trends []*model.EntropyTrend
	for _, claim := range claims {
		t, err := e.AnalyzeTrend(ctx, claim.ID, asOf)
		if err != nil {
			return nil, err
		}
		if t.TotalSnapshots > 0 {
			trends = append(trends, t)
		}
	}
	return trends, nil
}

// DetectSpikes finds claims whose latest entropy step jumped by at
// least minMagnitude standard deviations
func (e *Entropy) DetectSpikes(ctx context.Context, minMagnitude float64) ([]*model.EntropyTrend, error) {
	trends, err := e.AnalyzeAllTrends(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	var spikes []*model.EntropyTrend
	for _, t := range trends {
		if t.IsSpike && t.SpikeMagnitude >= minMagnitude {
			spikes = append(spikes, t)
		}
	}
	e.logger.Info("entropy spike scan complete", "found", len(spikes))
	return spikes, nil
}

// DetectCollapses finds claims with a recent sudden entropy drop
func (e *Entropy) DetectCollapses(ctx context.Context) ([]*model.EntropyTrend, error) {
	trends, err := e.AnalyzeAllTrends(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	var collapses []*model.EntropyTrend
	for _, t := range trends {
		if t.IsCollapse {
			collapses = append(collapses, t)
		}
	}
	return collapses, nil
}

// secondDerivative is a three-point finite difference over the first,
// middle, and last points, in value-units per hour squared
func secondDerivative(chrono []Point) float64 {
	if len(chrono) < 3 {
		return 0.0
	}
	first := chrono[0]
	mid := chrono[len(chrono)/2]
	last := chrono[len(chrono)-1]

	dt1 := mid.At.Sub(first.At).Hours()
	dt2 := last.At.Sub(mid.At).Hours()
	if dt1 < 1e-6 || dt2 < 1e-6 {
		return 0.0
	}
	dh1 := (mid.Value - first.Value) / dt1
	dh2 := (last.Value - mid.Value) / dt2
	return (dh2 - dh1) / ((dt1 + dt2) / 2.0)
}

// classifyEntropyTrend labels the series by its step directions: many
// reversals read as oscillating, otherwise the net movement decides
func classifyEntropyTrend(entropies []float64) model.TrendDirection {
	if len(entropies) < MinTrendSnapshots {
		return model.TrendStable
	}

	var increases, decreases int
	for i := 1; i < len(entropies); i++ {
		delta := entropies[i] - entropies[i-1]
		if delta > 1e-6 {
			increases++
		} else if delta < -1e-6 {
			decreases++
		}
	}
	if increases+decreases == 0 {
		return model.TrendStable
	}

	if increases > 0 && decreases > 0 {
		lo, hi := increases, decreases
		if lo > hi {
			lo, hi = hi, lo
		}
		if float64(lo)/float64(hi) > 0.4 {
			return model.TrendOscillating
		}
	}

	net := entropies[len(entropies)-1] - entropies[0]
	switch {
	case net > 0.01:
		return model.TrendIncreasing
	case net < -0.01:
		return model.TrendDecreasing
	}
	return model.TrendStable
}
