// Package citation measures how densely a claim is cited across sources,
// other claims, and entities in the evidence graph.
package citation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
)

// DepthLimit caps the supporting-chain BFS
const DepthLimit = 5

// Analyzer computes citation density metrics over the claim graph
type Analyzer struct {
	graph  *graph.Engine
	logger *slog.Logger
}

// New creates a citation analyzer
func New(g *graph.Engine, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{graph: g, logger: logger}
}

// AnalyzeClaim computes the full citation density analysis for one
// claim. A missing claim yields a zero-value result.
func (a *Analyzer) AnalyzeClaim(ctx context.Context, claimID int64) (*model.CitationMetrics, error) {
	if _, err := a.graph.Claim(ctx, claimID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("claim not found, returning empty metrics", "claim_id", claimID)
			return &model.CitationMetrics{ClaimID: claimID}, nil
		}
		return nil, fmt.Errorf("analyzing citations for claim %d: %w", claimID, err)
	}

	ref := model.ClaimRef(claimID)
	outbound, err := a.graph.EdgesFrom(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("analyzing citations for claim %d: %w", claimID, err)
	}
	inbound, err := a.graph.EdgesTo(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("analyzing citations for claim %d: %w", claimID, err)
	}

	metrics := &model.CitationMetrics{ClaimID: claimID}
	sourceIDs := make(map[int64]bool)
	supporting := make(map[int64]bool)
	contradicting := make(map[int64]bool)
	entities := make(map[int64]bool)

	all := make([]*model.Edge, 0, len(outbound)+len(inbound))
	all = append(all, outbound...)
	all = append(all, inbound...)

	for _, e := range all {
		// Each source edge counts once per direction it was declared in,
		// so a bidirectionally declared citation weighs double
		if e.From.Kind == model.KindSource && e.Relation.Supportive() {
			sourceIDs[e.From.ID] = true
			metrics.DirectCitations++
		} else if e.To.Kind == model.KindSource && e.Relation.Supportive() {
			sourceIDs[e.To.ID] = true
			metrics.DirectCitations++
		}

		for _, end := range []model.NodeRef{e.From, e.To} {
			if end.Kind == model.KindClaim && end.ID != claimID {
				switch e.Relation {
				case model.RelSupports:
					supporting[end.ID] = true
				case model.RelContradicts:
					contradicting[end.ID] = true
				}
			}
			if end.Kind == model.KindEntity {
				entities[end.ID] = true
			}
		}
	}

	metrics.UniqueSources = len(sourceIDs)
	metrics.SupportingClaims = len(supporting)
	metrics.ContradictingClaims = len(contradicting)
	metrics.EntityCoOccurrences = len(entities)

	if metrics.CitationDepth, err = a.citationDepth(ctx, claimID); err != nil {
		return nil, fmt.Errorf("analyzing citations for claim %d: %w", claimID, err)
	}
	metrics.DensityScore = densityScore(metrics)

	a.logger.Debug("citation density computed",
		"claim_id", claimID,
		"citations", metrics.DirectCitations,
		"sources", metrics.UniqueSources,
		"depth", metrics.CitationDepth,
		"density", metrics.DensityScore)

	return metrics, nil
}

// citationDepth finds the maximum depth of supporting claim chains via
// BFS over outbound supports/references edges, capped at DepthLimit
func (a *Analyzer) citationDepth(ctx context.Context, claimID int64) (int, error) {
	type queued struct {
		id    int64
		depth int
	}
	visited := make(map[int64]bool)
	queue := []queued{{id: claimID, depth: 0}}
	maxFound := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.id] || cur.depth > DepthLimit {
			continue
		}
		visited[cur.id] = true
		if cur.depth > maxFound {
			maxFound = cur.depth
		}

		edges, err := a.graph.EdgesFrom(ctx, model.ClaimRef(cur.id))
		if err != nil {
			return 0, err
		}
		for _, e := range edges {
			if e.Relation.Supportive() && e.To.Kind == model.KindClaim {
				queue = append(queue, queued{id: e.To.ID, depth: cur.depth + 1})
			}
		}
	}
	return maxFound, nil
}

// densityScore combines the metrics into a normalized [0, 1] composite.
// A claim with no graph connections at all scores exactly zero.
func densityScore(m *model.CitationMetrics) float64 {
	if m.DirectCitations == 0 && m.UniqueSources == 0 &&
		m.SupportingClaims == 0 && m.ContradictingClaims == 0 &&
		m.CitationDepth == 0 {
		return 0.0
	}

	srcScore := 1.0 - 1.0/(1.0+float64(m.UniqueSources))
	citeScore := 1.0 - 1.0/(1.0+float64(m.DirectCitations))

	totalClaims := m.SupportingClaims + m.ContradictingClaims
	supportRatio := 0.5
	if totalClaims > 0 {
		supportRatio = float64(m.SupportingClaims) / float64(totalClaims)
	}

	depthScore := float64(m.CitationDepth) / (float64(m.CitationDepth) + 2.0)

	score := 0.30*srcScore + 0.25*citeScore + 0.25*supportRatio + 0.20*depthScore
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// AnalyzeAll computes citation metrics for every claim
func (a *Analyzer) AnalyzeAll(ctx context.Context) ([]*model.CitationMetrics, error) {
	claims, err := a.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("analyzing all citations: %w", err)
	}
	results := make([]*model.CitationMetrics, 0, len(claims))
	for _, c := range claims {
		m, err := a.AnalyzeClaim(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	a.logger.Info("analyzed citation density", "count", len(results))
	return results, nil
}

// RankedClaim is one entry in a density ranking
type RankedClaim struct {
	ClaimID int64   `json:"claim_id"`
	Density float64 `json:"density"`
	Snippet string  `json:"snippet"`
}

// RankByDensity returns the top claims by citation density
func (a *Analyzer) RankByDensity(ctx context.Context, topN int) ([]RankedClaim, error) {
	all, err := a.AnalyzeAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].DensityScore > all[j].DensityScore
	})
	if topN > 0 && len(all) > topN {
		all = all[:topN]
	}

	ranked := make([]RankedClaim, 0, len(all))
	for _, m := range all {
		snippet := "?"
		if claim, err := a.graph.Claim(ctx, m.ClaimID); err == nil {
			snippet = claim.Text
			if len(snippet) > 80 {
				snippet = snippet[:80]
			}
		}
		ranked = append(ranked, RankedClaim{ClaimID: m.ClaimID, Density: m.DensityScore, Snippet: snippet})
	}
	return ranked, nil
}

// UncitedClaims finds claims with no citations and no sources
func (a *Analyzer) UncitedClaims(ctx context.Context) ([]*model.Claim, error) {
	all, err := a.AnalyzeAll(ctx)
	if err != nil {
		return nil, err
	}
	var orphans []*model.Claim
	for _, m := range all {
		if m.DirectCitations == 0 && m.UniqueSources == 0 {
			claim, err := a.graph.Claim(ctx, m.ClaimID)
			if err != nil {
				continue
			}
			orphans = append(orphans, claim)
		}
	}
	a.logger.Info("uncited claim scan complete", "found", len(orphans))
	return orphans, nil
}

// CrossSourceClaims finds claims referenced by at least minSources
// distinct sources
func (a *Analyzer) CrossSourceClaims(ctx context.Context, minSources int) ([]*model.CitationMetrics, error) {
	all, err := a.AnalyzeAll(ctx)
	if err != nil {
		return nil, err
	}
	var multi []*model.CitationMetrics
	for _, m := range all {
		if m.UniqueSources >= minSources {
			multi = append(multi, m)
		}
	}
	return multi, nil
}
