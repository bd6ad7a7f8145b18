package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/score"
	"github.com/ndanilov/claimwatch/internal/store"
)

// Confidence tracks confidence scores over time and derives trends,
// moving averages, plateau windows, and convergence from the history
type Confidence struct {
	graph  *graph.Engine
	scorer *score.Scorer
	series store.SeriesStore
	cfg    model.TimelineConfig
	logger *slog.Logger
}

// NewConfidence creates a confidence timeline
func NewConfidence(g *graph.Engine, scorer *score.Scorer, series store.SeriesStore, cfg model.TimelineConfig, logger *slog.Logger) *Confidence {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = 200
	}
	if cfg.MovingAvgWindow <= 0 {
		cfg.MovingAvgWindow = 5
	}
	if cfg.EMAAlpha <= 0 || cfg.EMAAlpha > 1 {
		cfg.EMAAlpha = 0.3
	}
	return &Confidence{graph: g, scorer: scorer, series: series, cfg: cfg, logger: logger}
}

// Snapshot scores a claim now and records the result on the timeline
func (c *Confidence) Snapshot(ctx context.Context, claimID int64, at time.Time) (*model.ScoreBreakdown, error) {
	breakdown, err := c.scorer.ScoreClaim(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("snapshotting confidence for claim %d: %w", claimID, err)
	}
	if err := c.scorer.SaveScore(ctx, breakdown, at); err != nil {
		return nil, err
	}
	c.logger.Info("confidence snapshot",
		"claim_id", claimID, "composite", breakdown.Composite)
	return breakdown, nil
}

// SnapshotAll records a confidence snapshot for every claim
func (c *Confidence) SnapshotAll(ctx context.Context, at time.Time) ([]*model.ScoreBreakdown, error) {
	claims, err := c.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("snapshotting all confidence: %w", err)
	}
	out := make([]*model.ScoreBreakdown, 0, len(claims))
	for _, claim := range claims {
		b, err := c.Snapshot(ctx, claim.ID, at)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	c.logger.Info("snapshotted confidence timeline", "claims", len(out))
	return out, nil
}

// History returns a claim's confidence points, newest first. A zero
// before reads the full history; otherwise only rows at or before it.
func (c *Confidence) History(ctx context.Context, claimID int64, limit int, before time.Time) ([]Point, error) {
	rows, err := c.series.History(ctx, store.SeriesConfidence, claimID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("reading confidence history for claim %d: %w", claimID, err)
	}
	points := make([]Point, 0, len(rows))
	for _, row := range rows {
		points = append(points, Point{
			ClaimID: claimID,
			Value:   model.MapFloat(row.Payload, "composite"),
			At:      row.At,
		})
	}
	return points, nil
}

// Latest returns the most recent recorded composite score
func (c *Confidence) Latest(ctx context.Context, claimID int64) (float64, error) {
	row, err := c.series.Latest(ctx, store.SeriesConfidence, claimID)
	if err != nil {
		return 0.0, err
	}
	return model.MapFloat(row.Payload, "composite"), nil
}

// AnalyzeTrend runs the full trend analysis over a claim's confidence
// history as of the given time (zero asOf reads everything). An empty
// history yields a zero trend with TotalSnapshots == 0.
func (c *Confidence) AnalyzeTrend(ctx context.Context, claimID int64, asOf time.Time) (*model.ConfidenceTrend, error) {
	history, err := c.History(ctx, claimID, c.cfg.Window, asOf)
	if err != nil {
		return nil, err
	}
	trend := &model.ConfidenceTrend{ClaimID: claimID, Direction: model.TrendStable}
	if len(history) == 0 {
		return trend, nil
	}

	chrono := reversePoints(history)
	scores := valuesOf(chrono)
	trend.TotalSnapshots = len(scores)
	trend.CurrentScore = scores[len(scores)-1]

	trend.MeanScore = mean(scores)
	trend.MinScore, trend.MaxScore = scores[0], scores[0]
	for _, s := range scores {
		if s < trend.MinScore {
			trend.MinScore = s
		}
		if s > trend.MaxScore {
			trend.MaxScore = s
		}
	}
	trend.ScoreRange = trend.MaxScore - trend.MinScore
	trend.StdDev = stdDev(scores)

	trend.MovingAvg = mean(tail(scores, c.cfg.MovingAvgWindow))
	trend.EMA = emaOf(scores, c.cfg.EMAAlpha)
	trend.RateOfChange = rateOfChange(chrono)

	if len(scores) >= MinTrendSnapshots {
		recent := mean(tail(scores, 3))
		head := 3
		if len(scores) < head {
			head = len(scores)
		}
		diff := recent - mean(scores[:head])
		switch {
		case diff > ROCThreshold:
			trend.Direction = model.TrendRising
		case diff < -ROCThreshold:
			trend.Direction = model.TrendFalling
		default:
			trend.Direction = model.TrendStable
		}
	}

	trend.IsPlateau, trend.PlateauDurationHrs = detectPlateau(chrono, c.cfg.MovingAvgWindow)
	trend.IsConverging = detectConvergence(scores)

	return trend, nil
}

// SMASeries computes the simple moving average series over the full
// chronological history
func (c *Confidence) SMASeries(ctx context.Context, claimID int64, window int) ([]float64, error) {
	history, err := c.History(ctx, claimID, 0, time.Time{})
	if err != nil {
		return nil, err
	}
	scores := valuesOf(reversePoints(history))
	if window <= 0 {
		window = c.cfg.MovingAvgWindow
	}
	if len(scores) < window {
		return scores, nil
	}
	sma := make([]float64, len(scores))
	for i := range scores {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sma[i] = mean(scores[start : i+1])
	}
	return sma, nil
}

// EMASeries computes the full exponential moving average series
func (c *Confidence) EMASeries(ctx context.Context, claimID int64) ([]float64, error) {
	history, err := c.History(ctx, claimID, 0, time.Time{})
	if err != nil {
		return nil, err
	}
	scores := valuesOf(reversePoints(history))
	if len(scores) == 0 {
		return nil, nil
	}
	series := make([]float64, len(scores))
	series[0] = scores[0]
	for i := 1; i < len(scores); i++ {
		series[i] = c.cfg.EMAAlpha*scores[i] + (1-c.cfg.EMAAlpha)*series[i-1]
	}
	return series, nil
}

// SnapshotCount returns how many confidence snapshots a claim has
func (c *Confidence) SnapshotCount(ctx context.Context, claimID int64) (int, error) {
	history, err := c.History(ctx, claimID, 0, time.Time{})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return len(history), nil
}

// detectPlateau reports whether the recent window is flat and, if so,
// how long it has held
func detectPlateau(chrono []Point, window int) (bool, float64) {
	if len(chrono) < window {
		return false, 0.0
	}
	recent := chrono[len(chrono)-window:]
	if stdDev(valuesOf(recent)) >= PlateauThreshold {
		return false, 0.0
	}
	hours := recent[len(recent)-1].At.Sub(recent[0].At).Hours()
	return true, hours
}

// detectConvergence reports whether the variance of the latest window
// has shrunk below 80% of the preceding window's
func detectConvergence(scores []float64) bool {
	if len(scores) < ConvergenceWindow*2 {
		return false
	}
	n := len(scores)
	earlier := scores[n-2*ConvergenceWindow : n-ConvergenceWindow]
	later := scores[n-ConvergenceWindow:]
	return stdDev(later) < stdDev(earlier)*0.8
}
