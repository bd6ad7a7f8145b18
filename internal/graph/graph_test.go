package graph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ndanilov/claimwatch/internal/cache"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
)

func newTestEngine() (*Engine, *store.Memory) {
	mem := store.NewMemory()
	return New(mem, mem), mem
}

func TestEngine_AddClaim_CoercesUnknownType(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()

	id, err := e.AddClaim(ctx, &model.Claim{Text: "something happened", Type: "rumor"})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	c, err := mem.GetClaim(ctx, id)
	if err != nil {
		t.Fatalf("GetClaim failed: %v", err)
	}
	if c.Type != model.DefaultClaimType {
		t.Errorf("Expected coerced type %q, got %q", model.DefaultClaimType, c.Type)
	}
	if c.Verification != model.DefaultVerification {
		t.Errorf("Expected default verification %q, got %q", model.DefaultVerification, c.Verification)
	}
}

func TestEngine_AddClaim_ClampsConfidence(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()

	id, err := e.AddClaim(ctx, &model.Claim{
		Text:       "overconfident",
		Type:       model.ClaimObservation,
		Confidence: 1.7,
	})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	c, _ := mem.GetClaim(ctx, id)
	if c.Confidence != 1.0 {
		t.Errorf("Expected confidence clamped to 1.0, got %v", c.Confidence)
	}
}

func TestEngine_AddClaim_RejectsEmptyText(t *testing.T) {
	e, _ := newTestEngine()

	if _, err := e.AddClaim(context.Background(), &model.Claim{Type: model.ClaimAssertion}); err == nil {
		t.Error("Expected error for empty claim text")
	}
}

func TestEngine_AddEdge_RejectsMissingEndpoint(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	id, err := e.AddClaim(ctx, &model.Claim{Text: "real claim", Type: model.ClaimAssertion})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}

	_, err = e.AddEdge(ctx, &model.Edge{
		From:     model.ClaimRef(id),
		To:       model.SourceRef(99),
		Relation: model.RelSupports,
		Weight:   1.0,
	})
	if err == nil {
		t.Error("Expected error for edge to missing source")
	}
}

func TestEngine_AddEdge_CoercesUnknownRelation(t *testing.T) {
	e, mem := newTestEngine()
	ctx := context.Background()

	a, _ := e.AddClaim(ctx, &model.Claim{Text: "claim a", Type: model.ClaimAssertion})
	b, _ := e.AddClaim(ctx, &model.Claim{Text: "claim b", Type: model.ClaimAssertion})

	id, err := e.AddEdge(ctx, &model.Edge{
		From:     model.ClaimRef(a),
		To:       model.ClaimRef(b),
		Relation: "disputes",
		Weight:   -2.0,
	})
	if err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	edges, _ := mem.EdgesFrom(ctx, model.ClaimRef(a))
	if len(edges) != 1 || edges[0].ID != id {
		t.Fatalf("Expected stored edge %d, got %v", id, edges)
	}
	if edges[0].Relation != model.DefaultRelation {
		t.Errorf("Expected coerced relation %q, got %q", model.DefaultRelation, edges[0].Relation)
	}
	if edges[0].Weight != 0 {
		t.Errorf("Expected negative weight floored at 0, got %v", edges[0].Weight)
	}
}

func TestEngine_MutationChain_RootFirstOrder(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	root, err := e.AddClaim(ctx, &model.Claim{Text: "the craft landed", Type: model.ClaimAssertion})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	mid, err := e.AddClaim(ctx, &model.Claim{Text: "the craft crash landed", Type: model.ClaimAssertion, Parent: &root})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	leaf, err := e.AddClaim(ctx, &model.Claim{Text: "multiple craft crash landed", Type: model.ClaimAssertion, Parent: &mid})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}

	chain, err := e.MutationChain(ctx, leaf)
	if err != nil {
		t.Fatalf("MutationChain failed: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("Expected chain of 3, got %d", len(chain))
	}
	want := []int64{root, mid, leaf}
	for i, c := range chain {
		if c.ID != want[i] {
			t.Errorf("Chain position %d: expected claim %d, got %d", i, want[i], c.ID)
		}
	}
}

func TestEngine_MutationChain_SingleClaimIsItsOwnChain(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	id, _ := e.AddClaim(ctx, &model.Claim{Text: "standalone", Type: model.ClaimObservation})
	chain, err := e.MutationChain(ctx, id)
	if err != nil {
		t.Fatalf("MutationChain failed: %v", err)
	}
	if len(chain) != 1 || chain[0].ID != id {
		t.Errorf("Expected single-element chain, got %v", chain)
	}
}

func TestEngine_MutationChain_UnknownClaimIsEmpty(t *testing.T) {
	e, _ := newTestEngine()

	chain, err := e.MutationChain(context.Background(), 999)
	if err != nil {
		t.Fatalf("Expected empty chain for unknown claim, got error: %v", err)
	}
	if len(chain) != 0 {
		t.Errorf("Expected empty chain for unknown claim, got %v", chain)
	}
}

func TestEngine_Contradictions_BothDirections(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	a, _ := e.AddClaim(ctx, &model.Claim{Text: "it was a balloon", Type: model.ClaimAssertion})
	b, _ := e.AddClaim(ctx, &model.Claim{Text: "it was a craft", Type: model.ClaimAssertion})
	c, _ := e.AddClaim(ctx, &model.Claim{Text: "it was debris", Type: model.ClaimAssertion})

	mustEdge(t, e, model.ClaimRef(a), model.ClaimRef(b), model.RelContradicts, 1.0)
	mustEdge(t, e, model.ClaimRef(c), model.ClaimRef(a), model.RelContradicts, 0.5)
	// Supporting edge must not count
	mustEdge(t, e, model.ClaimRef(a), model.ClaimRef(c), model.RelSupports, 1.0)

	got, err := e.Contradictions(ctx, a)
	if err != nil {
		t.Fatalf("Contradictions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 contradictions, got %d", len(got))
	}
	ids := map[int64]float64{}
	for _, con := range got {
		ids[con.Claim.ID] = con.Weight
	}
	if ids[b] != 1.0 || ids[c] != 0.5 {
		t.Errorf("Unexpected contradiction weights: %v", ids)
	}
}

func TestEngine_Provenance_ReachesBothDirections(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	center, _ := e.AddClaim(ctx, &model.Claim{Text: "center", Type: model.ClaimAssertion})
	upstream, _ := e.AddSource(ctx, &model.Source{Type: model.SourceDocument, Title: "memo", Credibility: 0.8})
	downstream, _ := e.AddClaim(ctx, &model.Claim{Text: "downstream", Type: model.ClaimDerived})

	mustEdge(t, e, model.ClaimRef(center), model.SourceRef(upstream), model.RelReferences, 1.0)
	mustEdge(t, e, model.ClaimRef(downstream), model.ClaimRef(center), model.RelDerivesFrom, 1.0)

	nodes, err := e.Provenance(ctx, center)
	if err != nil {
		t.Fatalf("Provenance failed: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("Expected 2 provenance nodes, got %d", len(nodes))
	}

	var sawSource, sawInbound bool
	for _, n := range nodes {
		if n.Ref == model.SourceRef(upstream) && !n.Inbound {
			sawSource = true
		}
		if n.Ref == model.ClaimRef(downstream) && n.Inbound {
			sawInbound = true
		}
		if n.Depth != 1 {
			t.Errorf("Expected depth 1 for direct neighbor, got %d", n.Depth)
		}
	}
	if !sawSource || !sawInbound {
		t.Errorf("Missing expected neighbors: source=%v inbound=%v", sawSource, sawInbound)
	}
}

func TestEngine_Provenance_CapsNodeCount(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	center, _ := e.AddClaim(ctx, &model.Claim{Text: "hub", Type: model.ClaimAssertion})
	for i := 0; i < ProvenanceMaxNodes+20; i++ {
		sid, _ := e.AddSource(ctx, &model.Source{
			Type:        model.SourceDocument,
			Title:       fmt.Sprintf("doc %d", i),
			Credibility: 0.5,
		})
		mustEdge(t, e, model.ClaimRef(center), model.SourceRef(sid), model.RelReferences, 1.0)
	}

	nodes, err := e.Provenance(ctx, center)
	if err != nil {
		t.Fatalf("Provenance failed: %v", err)
	}
	if len(nodes) != ProvenanceMaxNodes {
		t.Errorf("Expected traversal capped at %d nodes, got %d", ProvenanceMaxNodes, len(nodes))
	}
}

func TestEngine_Provenance_UnknownClaimIsEmpty(t *testing.T) {
	e, _ := newTestEngine()

	nodes, err := e.Provenance(context.Background(), 999)
	if err != nil {
		t.Fatalf("Expected empty traversal for unknown claim, got error: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("Expected empty traversal for unknown claim, got %v", nodes)
	}
}

func TestEngine_FindContradictions_ResolvesClaimTexts(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	a, _ := e.AddClaim(ctx, &model.Claim{Text: "it was a balloon", Type: model.ClaimAssertion})
	b, _ := e.AddClaim(ctx, &model.Claim{Text: "it was a craft", Type: model.ClaimAssertion})
	sid, _ := e.AddSource(ctx, &model.Source{Type: model.SourceDocument, Title: "memo", Credibility: 0.8})

	mustEdge(t, e, model.ClaimRef(a), model.ClaimRef(b), model.RelContradicts, 0.9)
	mustEdge(t, e, model.SourceRef(sid), model.ClaimRef(a), model.RelContradicts, 0.4)
	// Supporting edge must not appear
	mustEdge(t, e, model.ClaimRef(b), model.ClaimRef(a), model.RelSupports, 1.0)

	pairs, err := e.FindContradictions(ctx)
	if err != nil {
		t.Fatalf("FindContradictions failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("Expected 2 contradiction pairs, got %d", len(pairs))
	}

	first := pairs[0]
	if first.From != model.ClaimRef(a) || first.To != model.ClaimRef(b) {
		t.Errorf("Unexpected endpoints on first pair: %+v", first)
	}
	if first.Weight != 0.9 {
		t.Errorf("Expected weight 0.9, got %v", first.Weight)
	}
	if first.FromText != "it was a balloon" || first.ToText != "it was a craft" {
		t.Errorf("Expected claim texts resolved, got %q / %q", first.FromText, first.ToText)
	}

	second := pairs[1]
	if second.FromText != "" {
		t.Errorf("Expected no text for a source endpoint, got %q", second.FromText)
	}
	if second.ToText != "it was a balloon" {
		t.Errorf("Expected claim text on target, got %q", second.ToText)
	}
}

func TestEngine_Clusters_ComponentsAndSingletons(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	a, _ := e.AddClaim(ctx, &model.Claim{Text: "linked a", Type: model.ClaimAssertion})
	b, _ := e.AddClaim(ctx, &model.Claim{Text: "linked b", Type: model.ClaimAssertion})
	lone, _ := e.AddClaim(ctx, &model.Claim{Text: "isolated", Type: model.ClaimObservation})
	sid, _ := e.AddSource(ctx, &model.Source{Type: model.SourceDocument, Title: "memo", Credibility: 0.8})
	ent, _ := e.AddEntity(ctx, &model.Entity{Name: "Reservoir"})

	mustEdge(t, e, model.ClaimRef(a), model.ClaimRef(b), model.RelContradicts, 1.0)
	mustEdge(t, e, model.ClaimRef(b), model.SourceRef(sid), model.RelReferences, 1.0)

	clusters, err := e.Clusters(ctx)
	if err != nil {
		t.Fatalf("Clusters failed: %v", err)
	}
	if len(clusters) != 3 {
		t.Fatalf("Expected 3 clusters, got %d", len(clusters))
	}

	// Largest component first, members in kind-then-id order
	want := []model.NodeRef{model.ClaimRef(a), model.ClaimRef(b), model.SourceRef(sid)}
	if len(clusters[0]) != 3 {
		t.Fatalf("Expected connected component of 3, got %v", clusters[0])
	}
	for i, ref := range want {
		if clusters[0][i] != ref {
			t.Errorf("Component member %d: expected %v, got %v", i, ref, clusters[0][i])
		}
	}

	if len(clusters[1]) != 1 || clusters[1][0] != model.ClaimRef(lone) {
		t.Errorf("Expected singleton cluster for isolated claim, got %v", clusters[1])
	}
	if len(clusters[2]) != 1 || clusters[2][0] != model.EntityRef(ent) {
		t.Errorf("Expected singleton cluster for isolated entity, got %v", clusters[2])
	}
}

func TestEngine_Clusters_EmptyGraph(t *testing.T) {
	e, _ := newTestEngine()

	clusters, err := e.Clusters(context.Background())
	if err != nil {
		t.Fatalf("Clusters failed: %v", err)
	}
	if len(clusters) != 0 {
		t.Errorf("Expected no clusters in an empty graph, got %v", clusters)
	}
}

func TestEngine_Statistics_CountsByTypeAndRelation(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	a, _ := e.AddClaim(ctx, &model.Claim{Text: "obs", Type: model.ClaimObservation})
	b, _ := e.AddClaim(ctx, &model.Claim{Text: "obs again", Type: model.ClaimObservation, Parent: &a})
	mustEdge(t, e, model.ClaimRef(b), model.ClaimRef(a), model.RelDerivesFrom, 1.0)

	stats, err := e.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Claims != 2 {
		t.Errorf("Expected 2 claims, got %d", stats.Claims)
	}
	if stats.Mutations != 1 {
		t.Errorf("Expected 1 mutation, got %d", stats.Mutations)
	}
	if stats.ClaimsByType["observation"] != 2 {
		t.Errorf("Expected 2 observations, got %d", stats.ClaimsByType["observation"])
	}
	if stats.EdgesByRelation["derives_from"] != 1 {
		t.Errorf("Expected 1 derives_from edge, got %d", stats.EdgesByRelation["derives_from"])
	}
}

func TestEngine_UpdateClaim_InvalidatesCache(t *testing.T) {
	mem := store.NewMemory()
	e := New(mem, mem, WithCache(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute))
	ctx := context.Background()

	id, _ := e.AddClaim(ctx, &model.Claim{Text: "cached claim", Type: model.ClaimAssertion, Confidence: 0.4})

	// Warm the cache
	if _, err := e.Claim(ctx, id); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	c, _ := e.Claim(ctx, id)
	c.Confidence = 0.9
	if err := e.UpdateClaim(ctx, c); err != nil {
		t.Fatalf("UpdateClaim failed: %v", err)
	}

	fresh, err := e.Claim(ctx, id)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if fresh.Confidence != 0.9 {
		t.Errorf("Expected updated confidence 0.9 after cache invalidation, got %v", fresh.Confidence)
	}
}

func mustEdge(t *testing.T, e *Engine, from, to model.NodeRef, rel model.Relation, w float64) {
	t.Helper()
	if _, err := e.AddEdge(context.Background(), &model.Edge{From: from, To: to, Relation: rel, Weight: w}); err != nil {
		t.Fatalf("AddEdge %s -> %s failed: %v", from, to, err)
	}
}
