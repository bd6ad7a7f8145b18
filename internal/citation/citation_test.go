package citation

import (
	"context"
	"math"
	"testing"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
)

func newTestAnalyzer() (*Analyzer, *graph.Engine) {
	mem := store.NewMemory()
	g := graph.New(mem, mem)
	return New(g, nil), g
}

func TestAnalyzer_AnalyzeClaim_OrphanScoresExactlyZero(t *testing.T) {
	a, g := newTestAnalyzer()
	ctx := context.Background()

	id, err := g.AddClaim(ctx, &model.Claim{Text: "nobody cites this", Type: model.ClaimAssertion})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}

	m, err := a.AnalyzeClaim(ctx, id)
	if err != nil {
		t.Fatalf("AnalyzeClaim failed: %v", err)
	}
	if m.DensityScore != 0.0 {
		t.Errorf("Expected exactly 0.0 density for orphan claim, got %v", m.DensityScore)
	}
	if m.DirectCitations != 0 || m.UniqueSources != 0 {
		t.Errorf("Expected zero counts for orphan, got %+v", m)
	}
}

func TestAnalyzer_AnalyzeClaim_MissingClaimYieldsZeroMetrics(t *testing.T) {
	a, _ := newTestAnalyzer()

	m, err := a.AnalyzeClaim(context.Background(), 123)
	if err != nil {
		t.Fatalf("AnalyzeClaim failed: %v", err)
	}
	if m.ClaimID != 123 || m.DensityScore != 0.0 {
		t.Errorf("Expected zero metrics for missing claim, got %+v", m)
	}
}

func TestAnalyzer_AnalyzeClaim_BidirectionalCitationCountsDouble(t *testing.T) {
	a, g := newTestAnalyzer()
	ctx := context.Background()

	id, _ := g.AddClaim(ctx, &model.Claim{Text: "well documented", Type: model.ClaimObservation})
	src, _ := g.AddSource(ctx, &model.Source{Type: model.SourceDocument, Title: "report", Credibility: 0.8})

	// Declared in both directions
	mustEdge(t, g, model.ClaimRef(id), model.SourceRef(src), model.RelReferences)
	mustEdge(t, g, model.SourceRef(src), model.ClaimRef(id), model.RelSupports)

	m, err := a.AnalyzeClaim(ctx, id)
	if err != nil {
		t.Fatalf("AnalyzeClaim failed: %v", err)
	}
	if m.DirectCitations != 2 {
		t.Errorf("Expected bidirectional citation counted twice, got %d", m.DirectCitations)
	}
	if m.UniqueSources != 1 {
		t.Errorf("Expected 1 unique source, got %d", m.UniqueSources)
	}
}

func TestAnalyzer_AnalyzeClaim_SupportRatio(t *testing.T) {
	a, g := newTestAnalyzer()
	ctx := context.Background()

	id, _ := g.AddClaim(ctx, &model.Claim{Text: "debated claim", Type: model.ClaimAssertion})
	sup, _ := g.AddClaim(ctx, &model.Claim{Text: "agrees", Type: model.ClaimAssertion})
	con, _ := g.AddClaim(ctx, &model.Claim{Text: "disagrees", Type: model.ClaimAssertion})

	mustEdge(t, g, model.ClaimRef(sup), model.ClaimRef(id), model.RelSupports)
	mustEdge(t, g, model.ClaimRef(con), model.ClaimRef(id), model.RelContradicts)

	m, err := a.AnalyzeClaim(ctx, id)
	if err != nil {
		t.Fatalf("AnalyzeClaim failed: %v", err)
	}
	if m.SupportingClaims != 1 || m.ContradictingClaims != 1 {
		t.Fatalf("Expected 1 supporting and 1 contradicting claim, got %+v", m)
	}
	// src 0, citations 0, ratio 0.5, depth 0: density = 0.25*0.5
	if math.Abs(m.DensityScore-0.125) > 1e-9 {
		t.Errorf("Expected density 0.125, got %v", m.DensityScore)
	}
}

func TestAnalyzer_CitationDepth_FollowsSupportChain(t *testing.T) {
	a, g := newTestAnalyzer()
	ctx := context.Background()

	// c1 -> c2 -> c3 via supports
	c1, _ := g.AddClaim(ctx, &model.Claim{Text: "conclusion", Type: model.ClaimDerived})
	c2, _ := g.AddClaim(ctx, &model.Claim{Text: "intermediate", Type: model.ClaimAssertion})
	c3, _ := g.AddClaim(ctx, &model.Claim{Text: "foundation", Type: model.ClaimObservation})
	mustEdge(t, g, model.ClaimRef(c1), model.ClaimRef(c2), model.RelSupports)
	mustEdge(t, g, model.ClaimRef(c2), model.ClaimRef(c3), model.RelReferences)

	m, err := a.AnalyzeClaim(ctx, c1)
	if err != nil {
		t.Fatalf("AnalyzeClaim failed: %v", err)
	}
	if m.CitationDepth != 2 {
		t.Errorf("Expected citation depth 2, got %d", m.CitationDepth)
	}
}

func TestAnalyzer_CitationDepth_CappedAtLimit(t *testing.T) {
	a, g := newTestAnalyzer()
	ctx := context.Background()

	// Chain longer than the BFS cap
	ids := make([]int64, DepthLimit+3)
	for i := range ids {
		id, err := g.AddClaim(ctx, &model.Claim{Text: "link in chain", Type: model.ClaimAssertion})
		if err != nil {
			t.Fatalf("AddClaim failed: %v", err)
		}
		ids[i] = id
		if i > 0 {
			mustEdge(t, g, model.ClaimRef(ids[i-1]), model.ClaimRef(id), model.RelSupports)
		}
	}

	m, err := a.AnalyzeClaim(ctx, ids[0])
	if err != nil {
		t.Fatalf("AnalyzeClaim failed: %v", err)
	}
	if m.CitationDepth > DepthLimit {
		t.Errorf("Expected depth capped at %d, got %d", DepthLimit, m.CitationDepth)
	}
}

func TestAnalyzer_UncitedClaims_FindsOrphans(t *testing.T) {
	a, g := newTestAnalyzer()
	ctx := context.Background()

	orphan, _ := g.AddClaim(ctx, &model.Claim{Text: "orphan", Type: model.ClaimAssertion})
	cited, _ := g.AddClaim(ctx, &model.Claim{Text: "cited", Type: model.ClaimAssertion})
	src, _ := g.AddSource(ctx, &model.Source{Type: model.SourceDocument, Title: "doc", Credibility: 0.6})
	mustEdge(t, g, model.ClaimRef(cited), model.SourceRef(src), model.RelReferences)

	orphans, err := a.UncitedClaims(ctx)
	if err != nil {
		t.Fatalf("UncitedClaims failed: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != orphan {
		t.Errorf("Expected only claim %d flagged as uncited, got %v", orphan, orphans)
	}
}

func TestAnalyzer_RankByDensity_DescendingOrder(t *testing.T) {
	a, g := newTestAnalyzer()
	ctx := context.Background()

	plain, _ := g.AddClaim(ctx, &model.Claim{Text: "plain", Type: model.ClaimAssertion})
	rich, _ := g.AddClaim(ctx, &model.Claim{Text: "richly cited", Type: model.ClaimAssertion})
	for i := 0; i < 3; i++ {
		src, _ := g.AddSource(ctx, &model.Source{Type: model.SourceDocument, Title: "doc", Credibility: 0.7})
		mustEdge(t, g, model.SourceRef(src), model.ClaimRef(rich), model.RelSupports)
	}
	_ = plain

	ranked, err := a.RankByDensity(ctx, 10)
	if err != nil {
		t.Fatalf("RankByDensity failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("Expected 2 ranked claims, got %d", len(ranked))
	}
	if ranked[0].ClaimID != rich {
		t.Errorf("Expected richly cited claim first, got %d", ranked[0].ClaimID)
	}
}

func TestAnalyzer_CrossSourceClaims_Threshold(t *testing.T) {
	a, g := newTestAnalyzer()
	ctx := context.Background()

	single, _ := g.AddClaim(ctx, &model.Claim{Text: "single source", Type: model.ClaimAssertion})
	multi, _ := g.AddClaim(ctx, &model.Claim{Text: "multi source", Type: model.ClaimAssertion})

	s1, _ := g.AddSource(ctx, &model.Source{Type: model.SourceDocument, Title: "a", Credibility: 0.5})
	s2, _ := g.AddSource(ctx, &model.Source{Type: model.SourceArchive, Title: "b", Credibility: 0.5})
	mustEdge(t, g, model.SourceRef(s1), model.ClaimRef(single), model.RelSupports)
	mustEdge(t, g, model.SourceRef(s1), model.ClaimRef(multi), model.RelSupports)
	mustEdge(t, g, model.SourceRef(s2), model.ClaimRef(multi), model.RelReferences)

	got, err := a.CrossSourceClaims(ctx, 2)
	if err != nil {
		t.Fatalf("CrossSourceClaims failed: %v", err)
	}
	if len(got) != 1 || got[0].ClaimID != multi {
		t.Errorf("Expected only the multi-source claim, got %v", got)
	}
}

func mustEdge(t *testing.T, g *graph.Engine, from, to model.NodeRef, rel model.Relation) {
	t.Helper()
	if _, err := g.AddEdge(context.Background(), &model.Edge{From: from, To: to, Relation: rel, Weight: 1.0}); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
}
