// Package score computes composite confidence scores for claims by
// combining six evidence components, and applies Bayesian odds updates
// as new evidence arrives. Scores append to the confidence timeline.
package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
)

// typePriors maps each claim type to its base prior
var typePriors = map[model.ClaimType]float64{
	model.ClaimObservation: 0.60,
	model.ClaimMeasurement: 0.65,
	model.ClaimHypothesis:  0.30,
	model.ClaimAssertion:   0.40,
	model.ClaimDerived:     0.50,
	model.ClaimPrediction:  0.25,
	model.ClaimHistorical:  0.45,
	model.ClaimRebuttal:    0.35,
	model.ClaimRetraction:  0.10,
}

// unknownPrior is the fallback for claim types outside the prior table
const unknownPrior = 0.35

// verificationBonuses maps verification states to raw score adjustments
var verificationBonuses = map[model.Verification]float64{
	model.VerifConfirmed:    0.30,
	model.VerifSupported:    0.15,
	model.VerifUnverified:   0.00,
	model.VerifDisputed:     -0.10,
	model.VerifContradicted: -0.25,
	model.VerifRetracted:    -0.40,
}

// UpdateDirection steers a Bayesian update
type UpdateDirection string

const (
	UpdateSupport    UpdateDirection = "support"
	UpdateContradict UpdateDirection = "contradict"
)

// Scorer computes confidence breakdowns over the claim graph and logs
// them to the confidence timeline
type Scorer struct {
	graph   *graph.Engine
	series  store.SeriesStore
	weights model.ScorerConfig
	logger  *slog.Logger
}

// New creates a scorer with the given component weights
func New(g *graph.Engine, series store.SeriesStore, weights model.ScorerConfig, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{graph: g, series: series, weights: weights, logger: logger}
}

// ScoreClaim computes the composite confidence breakdown for one claim.
// A missing claim yields a zero-value breakdown carrying only the id.
func (s *Scorer) ScoreClaim(ctx context.Context, claimID int64) (*model.ScoreBreakdown, error) {
	claim, err := s.graph.Claim(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("claim not found, returning empty breakdown", "claim_id", claimID)
			return &model.ScoreBreakdown{ClaimID: claimID}, nil
		}
		return nil, fmt.Errorf("scoring claim %d: %w", claimID, err)
	}

	b := &model.ScoreBreakdown{ClaimID: claimID}
	b.Prior = s.calcPrior(claim)
	if b.SourceCredibility, err = s.calcSourceCredibility(ctx, claim); err != nil {
		return nil, fmt.Errorf("scoring claim %d: %w", claimID, err)
	}
	if b.CitationSupport, err = s.calcCitationSupport(ctx, claim); err != nil {
		return nil, fmt.Errorf("scoring claim %d: %w", claimID, err)
	}
	if b.ContradictionPenalty, err = s.calcContradictionPenalty(ctx, claim); err != nil {
		return nil, fmt.Errorf("scoring claim %d: %w", claimID, err)
	}
	b.VerificationBonus = calcVerificationBonus(claim)
	if b.MutationDecay, b.MutationDepth, err = s.calcMutationDecay(ctx, claim); err != nil {
		return nil, fmt.Errorf("scoring claim %d: %w", claimID, err)
	}

	w := s.weights
	composite := w.PriorWeight*b.Prior +
		w.SourceWeight*b.SourceCredibility +
		w.CitationWeight*b.CitationSupport -
		w.ContradictionWeight*b.ContradictionPenalty +
		w.VerificationWeight*b.VerificationBonus +
		w.MutationWeight*b.MutationDecay
	b.Composite = clamp01(composite)

	s.logger.Debug("claim scored",
		"claim_id", claimID,
		"composite", b.Composite,
		"prior", b.Prior,
		"source", b.SourceCredibility,
		"citation", b.CitationSupport,
		"contradiction", b.ContradictionPenalty,
		"verification", b.VerificationBonus,
		"decay", b.MutationDecay)

	return b, nil
}

// ScoreAll scores every claim in the graph
func (s *Scorer) ScoreAll(ctx context.Context) ([]*model.ScoreBreakdown, error) {
	ids, err := s.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("scoring all claims: %w", err)
	}
	results := make([]*model.ScoreBreakdown, 0, len(ids))
	for _, c := range ids {
		b, err := s.ScoreClaim(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	s.logger.Info("scored all claims", "count", len(results))
	return results, nil
}

// SaveScore appends a breakdown to the claim's confidence timeline
func (s *Scorer) SaveScore(ctx context.Context, b *model.ScoreBreakdown, at time.Time) error {
	if err := s.series.Append(ctx, store.SeriesConfidence, b.ClaimID, b.ToMap(), at); err != nil {
		return fmt.Errorf("saving score for claim %d: %w", b.ClaimID, err)
	}
	return nil
}

// LatestScore returns the most recent composite score for a claim, or
// 0.5 when the claim has never been scored
func (s *Scorer) LatestScore(ctx context.Context, claimID int64) (float64, error) {
	row, err := s.series.Latest(ctx, store.SeriesConfidence, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0.5, nil
		}
		return 0, fmt.Errorf("reading latest score for claim %d: %w", claimID, err)
	}
	return model.MapFloat(row.Payload, "composite"), nil
}

// BayesianUpdate folds one piece of new evidence into a claim's
// confidence with an odds-ratio update, re-scores the components, and
// logs the result. The posterior clamps to [0.01, 0.99] so no single
// update reaches certainty.
func (s *Scorer) BayesianUpdate(ctx context.Context, claimID int64, evidenceWeight float64, dir UpdateDirection) (*model.ScoreBreakdown, error) {
	current, err := s.LatestScore(ctx, claimID)
	if err != nil {
		return nil, err
	}

	likelihoodRatio := 1.0 + evidenceWeight
	if dir == UpdateContradict {
		likelihoodRatio = 1.0 / (1.0 + evidenceWeight)
	}

	priorOdds := 100.0
	if current < 1.0 {
		priorOdds = current / (1.0 - current)
	}
	posteriorOdds := priorOdds * likelihoodRatio
	posterior := posteriorOdds / (1.0 + posteriorOdds)
	if posterior < 0.01 {
		posterior = 0.01
	} else if posterior > 0.99 {
		posterior = 0.99
	}

	b, err := s.ScoreClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	b.Composite = posterior

	if err := s.SaveScore(ctx, b, time.Now().UTC()); err != nil {
		return nil, err
	}
	s.logger.Info("bayesian update applied",
		"claim_id", claimID,
		"prior", current,
		"posterior", posterior,
		"direction", string(dir),
		"evidence_weight", evidenceWeight)
	return b, nil
}

// RankedClaim is one entry in a confidence ranking
type RankedClaim struct {
	ClaimID int64   `json:"claim_id"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// RankClaims returns the top claims by composite confidence
func (s *Scorer) RankClaims(ctx context.Context, topN int) ([]RankedClaim, error) {
	scores, err := s.ScoreAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Composite > scores[j].Composite
	})
	if topN > 0 && len(scores) > topN {
		scores = scores[:topN]
	}

	ranked := make([]RankedClaim, 0, len(scores))
	for _, b := range scores {
		snippet := "?"
		if claim, err := s.graph.Claim(ctx, b.ClaimID); err == nil {
			snippet = claim.Text
			if len(snippet) > 80 {
				snippet = snippet[:80]
			}
		}
		ranked = append(ranked, RankedClaim{ClaimID: b.ClaimID, Score: b.Composite, Snippet: snippet})
	}
	return ranked, nil
}

func (s *Scorer) calcPrior(claim *model.Claim) float64 {
	if p, ok := typePriors[claim.Type]; ok {
		return p
	}
	return unknownPrior
}

// calcSourceCredibility averages the credibility of sources linked via
// supports or references, in either direction. Neutral 0.5 with no
// supporting sources.
func (s *Scorer) calcSourceCredibility(ctx context.Context, claim *model.Claim) (float64, error) {
	ref := model.ClaimRef(claim.ID)
	outbound, inbound, err := s.neighborEdges(ctx, ref)
	if err != nil {
		return 0, err
	}

	sourceIDs := make(map[int64]bool)
	for _, e := range outbound {
		if e.To.Kind == model.KindSource && e.Relation.Supportive() {
			sourceIDs[e.To.ID] = true
		}
	}
	for _, e := range inbound {
		if e.From.Kind == model.KindSource && e.Relation.Supportive() {
			sourceIDs[e.From.ID] = true
		}
	}
	if len(sourceIDs) == 0 {
		return 0.5, nil
	}

	var total float64
	var count int
	for id := range sourceIDs {
		src, err := s.graph.Source(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return 0, err
		}
		total += src.Credibility
		count++
	}
	if count == 0 {
		return 0.5, nil
	}
	return total / float64(count), nil
}

// calcCitationSupport normalizes the total supporting edge weight with
// 1 - 1/(1+w): zero links score 0, one unit-weight link 0.5
func (s *Scorer) calcCitationSupport(ctx context.Context, claim *model.Claim) (float64, error) {
	ref := model.ClaimRef(claim.ID)
	outbound, inbound, err := s.neighborEdges(ctx, ref)
	if err != nil {
		return 0, err
	}

	var support float64
	for _, e := range outbound {
		if e.Relation.Supportive() || e.Relation == model.RelDerivesFrom {
			support += e.Weight
		}
	}
	for _, e := range inbound {
		if e.Relation.Supportive() {
			support += e.Weight
		}
	}
	return 1.0 - 1.0/(1.0+support), nil
}

// calcContradictionPenalty scales total contradiction weight into [0, 1],
// saturating at weight 3
func (s *Scorer) calcContradictionPenalty(ctx context.Context, claim *model.Claim) (float64, error) {
	ref := model.ClaimRef(claim.ID)
	outbound, inbound, err := s.neighborEdges(ctx, ref)
	if err != nil {
		return 0, err
	}

	var w float64
	for _, e := range outbound {
		if e.Relation == model.RelContradicts {
			w += e.Weight
		}
	}
	for _, e := range inbound {
		if e.Relation == model.RelContradicts {
			w += e.Weight
		}
	}
	if w > 3.0 {
		return 1.0, nil
	}
	return w / 3.0, nil
}

// calcVerificationBonus maps the raw [-0.4, 0.3] adjustment into [0, 1]
// centered at 0.5 for unverified
func calcVerificationBonus(claim *model.Claim) float64 {
	raw := verificationBonuses[claim.Verification]
	return clamp01(0.5 + raw)
}

// calcMutationDecay decays confidence with mutation depth:
// 1 / (1 + 0.3*depth), where the chain root has depth 0
func (s *Scorer) calcMutationDecay(ctx context.Context, claim *model.Claim) (float64, int, error) {
	chain, err := s.graph.MutationChain(ctx, claim.ID)
	if err != nil {
		return 0, 0, err
	}
	depth := len(chain) - 1
	if depth <= 0 {
		return 1.0, 0, nil
	}
	return 1.0 / (1.0 + 0.3*float64(depth)), depth, nil
}

func (s *Scorer) neighborEdges(ctx context.Context, ref model.NodeRef) (outbound, inbound []*model.Edge, err error) {
	outbound, err = s.graph.EdgesFrom(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	inbound, err = s.graph.EdgesTo(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	return outbound, inbound, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
