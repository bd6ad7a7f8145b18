// Package contradiction quantifies epistemic tension between claims and
// detects conflict clusters, groups of transitively contradicting claims.
package contradiction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
)

// Analyzer computes contradiction profiles and conflict clusters over
// the claim graph
type Analyzer struct {
	graph  *graph.Engine
	edges  store.EdgeStore
	logger *slog.Logger
}

// New creates a contradiction analyzer
func New(g *graph.Engine, edges store.EdgeStore, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{graph: g, edges: edges, logger: logger}
}

// ProfileClaim builds the contradiction profile for one claim. Tension
// is the log-scaled sum of contradiction edge weights; a claim is
// contested with two or more contradictions or tension above 1.0.
// A missing claim yields a zero-value profile.
func (a *Analyzer) ProfileClaim(ctx context.Context, claimID int64) (*model.ContradictionProfile, error) {
	claim, err := a.graph.Claim(ctx, claimID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &model.ContradictionProfile{ClaimID: claimID}, nil
		}
		return nil, fmt.Errorf("profiling claim %d: %w", claimID, err)
	}

	profile := &model.ContradictionProfile{
		ClaimID:   claimID,
		ClaimText: claim.Text,
	}

	contras, err := a.graph.Contradictions(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("profiling claim %d: %w", claimID, err)
	}
	profile.ContradictionCount = len(contras)

	var totalWeight float64
	for _, c := range contras {
		profile.ContradictingIDs = append(profile.ContradictingIDs, c.Claim.ID)
		totalWeight += c.Weight
	}
	if totalWeight > 0 {
		profile.TensionScore = math.Log1p(totalWeight)
	}
	profile.IsContested = profile.ContradictionCount >= 2 || profile.TensionScore > 1.0

	a.logger.Debug("contradiction profile built",
		"claim_id", claimID,
		"count", profile.ContradictionCount,
		"tension", profile.TensionScore,
		"contested", profile.IsContested)

	return profile, nil
}

// ProfileAll builds contradiction profiles for every claim
func (a *Analyzer) ProfileAll(ctx context.Context) ([]*model.ContradictionProfile, error) {
	claims, err := a.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("profiling all claims: %w", err)
	}
	profiles := make([]*model.ContradictionProfile, 0, len(claims))
	contested := 0
	for _, c := range claims {
		p, err := a.ProfileClaim(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
		if p.IsContested {
			contested++
		}
	}
	a.logger.Info("profiled claims", "count", len(profiles), "contested", contested)
	return profiles, nil
}

// FindConflictClusters groups mutually contradicting claims with
// union-find over claim-to-claim contradicts edges. Only clusters of
// two or more claims are reported, sorted by total tension descending;
// ids are assigned in that order. The cluster center is the member with
// the most intra-cluster contradiction edges, lowest id on ties.
func (a *Analyzer) FindConflictClusters(ctx context.Context) ([]*model.ConflictCluster, error) {
	edges, err := a.edges.EdgesByRelation(ctx, model.RelContradicts)
	if err != nil {
		return nil, fmt.Errorf("finding conflict clusters: %w", err)
	}
	if len(edges) == 0 {
		return nil, nil
	}

	uf := newUnionFind()
	type pair struct{ a, b int64 }
	pairWeights := make(map[pair]float64)
	for _, e := range edges {
		if e.From.Kind != model.KindClaim || e.To.Kind != model.KindClaim {
			continue
		}
		x, y := e.From.ID, e.To.ID
		uf.union(x, y)
		if x > y {
			x, y = y, x
		}
		pairWeights[pair{x, y}] += e.Weight
	}

	members := make(map[int64][]int64)
	for node := range uf.parent {
		root := uf.find(node)
		members[root] = append(members[root], node)
	}

	var clusters []*model.ConflictCluster
	for _, ids := range members {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		inCluster := make(map[int64]bool, len(ids))
		for _, id := range ids {
			inCluster[id] = true
		}

		var totalTension float64
		degree := make(map[int64]int)
		for p, w := range pairWeights {
			if inCluster[p.a] && inCluster[p.b] {
				totalTension += w
				degree[p.a]++
				degree[p.b]++
			}
		}

		center := ids[0]
		best := -1
		for _, id := range ids {
			if degree[id] > best || (degree[id] == best && id < center) {
				best = degree[id]
				center = id
			}
		}

		clusters = append(clusters, &model.ConflictCluster{
			ClaimIDs:      ids,
			TotalTension:  totalTension,
			CenterClaimID: center,
			Size:          len(ids),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].TotalTension == clusters[j].TotalTension {
			return clusters[i].ClaimIDs[0] < clusters[j].ClaimIDs[0]
		}
		return clusters[i].TotalTension > clusters[j].TotalTension
	})
	for i, c := range clusters {
		c.ClusterID = i + 1
	}

	a.logger.Info("conflict clusters found", "count", len(clusters))
	return clusters, nil
}

// TensionEntry is one row of the tension heat map
type TensionEntry struct {
	ClaimID   int64   `json:"claim_id"`
	Text      string  `json:"text"`
	Tension   float64 `json:"tension"`
	Count     int     `json:"count"`
	Contested bool    `json:"contested"`
}

// TensionMap lists every claim with nonzero tension, highest first
func (a *Analyzer) TensionMap(ctx context.Context) ([]TensionEntry, error) {
	profiles, err := a.ProfileAll(ctx)
	if err != nil {
		return nil, err
	}
	var heat []TensionEntry
	for _, p := range profiles {
		if p.TensionScore <= 0 {
			continue
		}
		text := p.ClaimText
		if len(text) > 80 {
			text = text[:80]
		}
		heat = append(heat, TensionEntry{
			ClaimID:   p.ClaimID,
			Text:      text,
			Tension:   model.Round6(p.TensionScore),
			Count:     p.ContradictionCount,
			Contested: p.IsContested,
		})
	}
	sort.SliceStable(heat, func(i, j int) bool { return heat[i].Tension > heat[j].Tension })
	return heat, nil
}

// LineageStep is the contradiction load at one step of a mutation chain
type LineageStep struct {
	Step    int     `json:"step"`
	ClaimID int64   `json:"claim_id"`
	Count   int     `json:"contradiction_count"`
	Tension float64 `json:"tension"`
}

// Lineage traces how contradictions accumulate along a claim's mutation
// chain, root first
func (a *Analyzer) Lineage(ctx context.Context, claimID int64) ([]LineageStep, error) {
	chain, err := a.graph.MutationChain(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("tracing lineage for claim %d: %w", claimID, err)
	}
	steps := make([]LineageStep, 0, len(chain))
	for i, c := range chain {
		p, err := a.ProfileClaim(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		steps = append(steps, LineageStep{
			Step:    i,
			ClaimID: c.ID,
			Count:   p.ContradictionCount,
			Tension: model.Round6(p.TensionScore),
		})
	}
	return steps, nil
}

// Summary aggregates contradiction statistics for the whole graph
type Summary struct {
	TotalClaims         int     `json:"total_claims"`
	TotalContradictions int     `json:"total_contradictions"`
	ContestedClaims     int     `json:"contested_claims"`
	ConflictClusters    int     `json:"conflict_clusters"`
	AvgTension          float64 `json:"avg_tension"`
	MaxTension          float64 `json:"max_tension"`
}

// Summarize computes aggregate contradiction statistics. Each
// contradiction edge appears in two profiles, so the pair count halves
// the per-claim total.
func (a *Analyzer) Summarize(ctx context.Context) (*Summary, error) {
	profiles, err := a.ProfileAll(ctx)
	if err != nil {
		return nil, err
	}
	clusters, err := a.FindConflictClusters(ctx)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		TotalClaims:      len(profiles),
		ConflictClusters: len(clusters),
	}
	var totalCount int
	var sumTension float64
	for _, p := range profiles {
		totalCount += p.ContradictionCount
		sumTension += p.TensionScore
		if p.IsContested {
			s.ContestedClaims++
		}
		if p.TensionScore > s.MaxTension {
			s.MaxTension = p.TensionScore
		}
	}
	s.TotalContradictions = totalCount / 2
	if len(profiles) > 0 {
		s.AvgTension = model.Round6(sumTension / float64(len(profiles)))
	}
	s.MaxTension = model.Round6(s.MaxTension)
	return s, nil
}

type unionFind struct {
	parent map[int64]int64
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[int64]int64)}
}

func (u *unionFind) find(x int64) int64 {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]] // path halving
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int64) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}
