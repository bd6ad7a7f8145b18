// Package pipeline runs the full analysis pass for claims: confidence
// snapshot, entropy snapshot, stability classification, and alert scan,
// either one claim at a time or fanned across the whole graph.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ndanilov/claimwatch/internal/alert"
	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/stability"
	"github.com/ndanilov/claimwatch/internal/store"
	"github.com/ndanilov/claimwatch/internal/timeline"
	"github.com/ndanilov/claimwatch/internal/worker"
)

// Pipeline orchestrates the complete analysis pass
type Pipeline struct {
	graph      *graph.Engine
	confidence *timeline.Confidence
	entropy    *timeline.Entropy
	stability  *stability.Engine
	alerts     *alert.Engine
	runner     *worker.BatchRunner
	limiter    *worker.Limiter
	logger     *slog.Logger
}

// New creates a pipeline over the assembled engines
func New(g *graph.Engine, conf *timeline.Confidence, ent *timeline.Entropy, stab *stability.Engine, alerts *alert.Engine, cfg model.WorkerConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		graph:      g,
		confidence: conf,
		entropy:    ent,
		stability:  stab,
		alerts:     alerts,
		runner:     worker.NewBatchRunner(cfg.PoolSize),
		limiter:    worker.NewLimiter(cfg.WritesPerSecond, cfg.WriteBurst),
		logger:     logger,
	}
}

// ClaimReport is the outcome of one claim's analysis pass
type ClaimReport struct {
	ClaimID int64                   `json:"claim_id"`
	Score   *model.ScoreBreakdown   `json:"score"`
	Entropy *model.MutationMetrics  `json:"entropy"`
	Profile *model.StabilityProfile `json:"profile"`
	Alerts  []*model.Alert          `json:"alerts"`
	At      time.Time               `json:"at"`
}

// ProcessClaim runs the full pass for one claim. The at argument is both
// the snapshot timestamp and the as-of bound for every history read, so
// a pass observes one consistent view of the timelines.
func (p *Pipeline) ProcessClaim(ctx context.Context, claimID int64, at time.Time) (*ClaimReport, error) {
	if err := p.limiter.Wait(ctx, store.SeriesConfidence); err != nil {
		return nil, fmt.Errorf("processing claim %d: %w", claimID, err)
	}
	score, err := p.confidence.Snapshot(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("processing claim %d: %w", claimID, err)
	}

	if err := p.limiter.Wait(ctx, store.SeriesEntropy); err != nil {
		return nil, fmt.Errorf("processing claim %d: %w", claimID, err)
	}
	entropy, err := p.entropy.Snapshot(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("processing claim %d: %w", claimID, err)
	}

	if err := p.limiter.Wait(ctx, store.SeriesStability); err != nil {
		return nil, fmt.Errorf("processing claim %d: %w", claimID, err)
	}
	profile, err := p.stability.Classify(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("processing claim %d: %w", claimID, err)
	}

	alerts, err := p.alerts.ScanClaim(ctx, claimID, at)
	if err != nil {
		return nil, fmt.Errorf("processing claim %d: %w", claimID, err)
	}

	return &ClaimReport{
		ClaimID: claimID,
		Score:   score,
		Entropy: entropy,
		Profile: profile,
		Alerts:  alerts,
		At:      at,
	}, nil
}

// BatchReport summarizes a fanned-out analysis pass
type BatchReport struct {
	At          time.Time      `json:"at"`
	Processed   int            `json:"processed"`
	Failed      int            `json:"failed"`
	AlertsFired int            `json:"alerts_fired"`
	Reports     []*ClaimReport `json:"reports"`
	Errors      []error        `json:"-"`
}

// ProcessClaims fans the analysis pass across the given claims. The
// batch timestamp is captured once at the start and shared by every
// claim. One claim's failure does not stop the rest.
func (p *Pipeline) ProcessClaims(ctx context.Context, claimIDs []int64) (*BatchReport, error) {
	at := time.Now().UTC()

	var mu sync.Mutex
	reports := make([]*ClaimReport, 0, len(claimIDs))

	results := p.runner.Run(ctx, claimIDs, at, func(ctx context.Context, claimID int64, at time.Time) error {
		report, err := p.ProcessClaim(ctx, claimID, at)
		if err != nil {
			return err
		}
		mu.Lock()
		reports = append(reports, report)
		mu.Unlock()
		return nil
	})

	// Pool results arrive in completion order
	sort.Slice(reports, func(i, j int) bool { return reports[i].ClaimID < reports[j].ClaimID })

	batch := &BatchReport{At: at, Reports: reports, Processed: len(reports)}
	for _, r := range reports {
		batch.AlertsFired += len(r.Alerts)
	}
	for _, res := range worker.Failed(results) {
		batch.Failed++
		batch.Errors = append(batch.Errors, fmt.Errorf("claim %d: %w", res.ClaimID, res.Err))
	}

	p.logger.Info("analysis pass complete",
		"processed", batch.Processed,
		"failed", batch.Failed,
		"alerts", batch.AlertsFired)
	return batch, nil
}

// ProcessAll runs the analysis pass for every claim in the graph
func (p *Pipeline) ProcessAll(ctx context.Context) (*BatchReport, error) {
	claims, err := p.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	ids := make([]int64, len(claims))
	for i, c := range claims {
		ids[i] = c.ID
	}
	return p.ProcessClaims(ctx, ids)
}

// ProcessFile runs the analysis pass for the claim IDs listed in a file
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string) (*BatchReport, error) {
	ids, err := worker.ReadClaimIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claim IDs: %w", err)
	}
	return p.ProcessClaims(ctx, ids)
}
