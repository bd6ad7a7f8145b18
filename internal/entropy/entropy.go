// Package entropy quantifies the information-theoretic properties of
// claim mutation chains: Shannon entropy of character distributions,
// drift velocity per mutation step, and semantic stability.
package entropy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
)

const (
	// DefaultDriftThreshold flags chains with unusually high mean drift
	DefaultDriftThreshold = 0.5

	// DefaultZScoreThreshold flags entropy outliers against the population
	DefaultZScoreThreshold = 2.0

	// CharDistributionTop caps how many characters a chain's
	// distribution reports
	CharDistributionTop = 20
)

// Engine computes mutation-chain entropy metrics over the claim graph
type Engine struct {
	graph  *graph.Engine
	logger *slog.Logger
}

// New creates an entropy engine
func New(g *graph.Engine, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{graph: g, logger: logger}
}

// Shannon computes the Shannon entropy of the character distribution in
// text, H = -Σ p(c) log2 p(c), over the lowercased text
func Shannon(text string) float64 {
	if text == "" {
		return 0.0
	}
	runes := []rune(strings.ToLower(text))
	freq := make(map[rune]int, len(runes))
	for _, r := range runes {
		freq[r]++
	}
	total := float64(len(runes))
	var h float64
	for _, count := range freq {
		p := float64(count) / total
		h -= p * math.Log2(p)
	}
	return h
}

// CharDistribution reports the relative frequency of the top most
// common characters in the lowercased text, ratios rounded to four
// decimals. Ties break toward the lexically smaller character.
func CharDistribution(text string, top int) map[string]float64 {
	runes := []rune(strings.ToLower(text))
	if len(runes) == 0 {
		return nil
	}
	freq := make(map[rune]int, len(runes))
	for _, r := range runes {
		freq[r]++
	}

	type charCount struct {
		r rune
		n int
	}
	ranked := make([]charCount, 0, len(freq))
	for r, n := range freq {
		ranked = append(ranked, charCount{r: r, n: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].n != ranked[j].n {
			return ranked[i].n > ranked[j].n
		}
		return ranked[i].r < ranked[j].r
	})
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}

	total := float64(len(runes))
	out := make(map[string]float64, len(ranked))
	for _, cc := range ranked {
		out[string(cc.r)] = math.Round(float64(cc.n)/total*10000) / 10000
	}
	return out
}

// AnalyzeChain computes the full mutation analysis for a claim's
// ancestry chain. Chains shorter than two claims report the lone text's
// entropy, zero drift, and full stability; an unknown claim reports a
// zero-length chain. Callers distinguish the latter via ChainLength.
func (e *Engine) AnalyzeChain(ctx context.Context, claimID int64) (*model.MutationMetrics, error) {
	chain, err := e.graph.MutationChain(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("analyzing chain for claim %d: %w", claimID, err)
	}

	metrics := &model.MutationMetrics{
		ClaimID:           claimID,
		ChainLength:       len(chain),
		SemanticStability: 1.0,
	}
	if len(chain) < 2 {
		if len(chain) == 1 {
			metrics.ShannonEntropy = Shannon(chain[0].Text)
		}
		return metrics, nil
	}

	var allText strings.Builder
	stepDiffs := make([]float64, 0, len(chain)-1)
	for i, c := range chain {
		allText.WriteString(c.Text)
		if i > 0 {
			stepDiffs = append(stepDiffs, DiffRatio(chain[i-1].Text, c.Text))
		}
	}
	metrics.StepDiffs = stepDiffs
	metrics.ShannonEntropy = Shannon(allText.String())
	metrics.CharDistribution = CharDistribution(allText.String(), CharDistributionTop)

	var sum, maxDiff float64
	for _, d := range stepDiffs {
		sum += d
		if d > maxDiff {
			maxDiff = d
		}
	}
	metrics.MaxDiffRatio = maxDiff
	metrics.DriftVelocity = sum / float64(len(stepDiffs))
	metrics.SemanticStability = math.Max(0.0, math.Min(1.0, 1.0-sum/float64(len(chain))))

	e.logger.Debug("chain analyzed",
		"claim_id", claimID,
		"chain_length", metrics.ChainLength,
		"entropy", metrics.ShannonEntropy,
		"drift", metrics.DriftVelocity,
		"stability", metrics.SemanticStability)

	return metrics, nil
}

// AnalyzeAllChains analyzes every claim's mutation chain, reporting each
// multi-claim chain once and every standalone claim individually
func (e *Engine) AnalyzeAllChains(ctx context.Context) ([]*model.MutationMetrics, error) {
	claims, err := e.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("analyzing all chains: %w", err)
	}

	analyzed := make(map[int64]bool)
	var results []*model.MutationMetrics
	for _, c := range claims {
		if analyzed[c.ID] {
			continue
		}
		chain, err := e.graph.MutationChain(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("analyzing all chains: %w", err)
		}
		metrics, err := e.AnalyzeChain(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, metrics)
		if len(chain) >= 2 {
			for _, member := range chain {
				analyzed[member.ID] = true
			}
		} else {
			analyzed[c.ID] = true
		}
	}

	e.logger.Info("analyzed mutation chains", "count", len(results))
	return results, nil
}

// DetectHighDrift finds chains whose mean drift velocity exceeds the
// threshold
func (e *Engine) DetectHighDrift(ctx context.Context, threshold float64) ([]*model.MutationMetrics, error) {
	all, err := e.AnalyzeAllChains(ctx)
	if err != nil {
		return nil, err
	}
	var anomalies []*model.MutationMetrics
	for _, m := range all {
		if m.DriftVelocity > threshold {
			anomalies = append(anomalies, m)
		}
	}
	e.logger.Info("high-drift scan complete",
		"threshold", threshold, "found", len(anomalies))
	return anomalies, nil
}

// DetectEntropyAnomalies finds chains whose Shannon entropy deviates
// from the population mean by more than zThreshold standard deviations.
// Needs at least three analyzed chains to establish a population.
func (e *Engine) DetectEntropyAnomalies(ctx context.Context, zThreshold float64) ([]*model.MutationMetrics, error) {
	all, err := e.AnalyzeAllChains(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) < 3 {
		return nil, nil
	}

	var mean float64
	for _, m := range all {
		mean += m.ShannonEntropy
	}
	mean /= float64(len(all))

	var variance float64
	for _, m := range all {
		d := m.ShannonEntropy - mean
		variance += d * d
	}
	variance /= float64(len(all))

	std := 1.0
	if variance > 0 {
		std = math.Sqrt(variance)
	}

	var anomalies []*model.MutationMetrics
	for _, m := range all {
		if math.Abs(m.ShannonEntropy-mean)/std > zThreshold {
			anomalies = append(anomalies, m)
		}
	}
	e.logger.Info("entropy anomaly scan complete",
		"z_threshold", zThreshold, "found", len(anomalies))
	return anomalies, nil
}

// Branching summarizes the mutation tree below one claim
type Branching struct {
	ClaimID        int64   `json:"claim_id"`
	DirectChildren int     `json:"direct_children"`
	TotalTreeSize  int     `json:"total_tree_size"`
	ChildIDs       []int64 `json:"child_ids,omitempty"`
}

// BranchingFactor counts a claim's direct mutations and the full size of
// its descendant tree
func (e *Engine) BranchingFactor(ctx context.Context, claimID int64) (*Branching, error) {
	children, err := e.graph.Mutations(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("computing branching for claim %d: %w", claimID, err)
	}

	b := &Branching{ClaimID: claimID, DirectChildren: len(children)}
	queue := make([]int64, 0, len(children))
	for _, c := range children {
		b.ChildIDs = append(b.ChildIDs, c.ID)
		queue = append(queue, c.ID)
	}

	visited := map[int64]bool{claimID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		b.TotalTreeSize++

		sub, err := e.graph.Mutations(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("computing branching for claim %d: %w", claimID, err)
		}
		for _, c := range sub {
			queue = append(queue, c.ID)
		}
	}
	return b, nil
}
