package entropy

import (
	"context"
	"math"
	"testing"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
)

func TestShannon_EmptyTextIsZero(t *testing.T) {
	if got := Shannon(""); got != 0.0 {
		t.Errorf("Expected 0 entropy for empty text, got %v", got)
	}
}

func TestShannon_SingleRepeatedCharIsZero(t *testing.T) {
	if got := Shannon("aaaa"); got != 0.0 {
		t.Errorf("Expected 0 entropy for uniform text, got %v", got)
	}
}

func TestShannon_UniformDistribution(t *testing.T) {
	// Four distinct equiprobable characters: H = log2(4) = 2
	got := Shannon("abcd")
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("Expected entropy 2.0, got %v", got)
	}
}

func TestShannon_CaseInsensitive(t *testing.T) {
	if Shannon("AbAb") != Shannon("abab") {
		t.Error("Expected entropy to ignore case")
	}
}

func TestShannon_ReorderInvariant(t *testing.T) {
	if Shannon("abcabc") != Shannon("ccbbaa") {
		t.Error("Expected entropy to depend only on character frequencies")
	}
}

func TestSimilarity_IdenticalTexts(t *testing.T) {
	if got := Similarity("the craft landed", "the craft landed"); got != 1.0 {
		t.Errorf("Expected similarity 1.0, got %v", got)
	}
}

func TestSimilarity_BothEmpty(t *testing.T) {
	if got := Similarity("", ""); got != 1.0 {
		t.Errorf("Expected similarity 1.0 for two empty texts, got %v", got)
	}
}

func TestSimilarity_CompletelyDifferent(t *testing.T) {
	if got := Similarity("aaaa", "bbbb"); got != 0.0 {
		t.Errorf("Expected similarity 0.0, got %v", got)
	}
}

func TestDiffRatio_Bounds(t *testing.T) {
	pairs := [][2]string{
		{"the device was recovered", "the devices were recovered"},
		{"short", "a considerably longer statement about events"},
		{"", "nonempty"},
	}
	for _, p := range pairs {
		d := DiffRatio(p[0], p[1])
		if d < 0.0 || d > 1.0 {
			t.Errorf("DiffRatio(%q, %q) = %v, outside [0, 1]", p[0], p[1], d)
		}
	}
}

func TestDiffRatio_SmallEditIsSmall(t *testing.T) {
	d := DiffRatio("the craft landed in the desert", "the craft landed in the deserts")
	if d > 0.1 {
		t.Errorf("Expected small diff for one-character edit, got %v", d)
	}
}

func newChainFixture(t *testing.T, texts []string) (*Engine, int64) {
	t.Helper()
	mem := store.NewMemory()
	g := graph.New(mem, mem)
	ctx := context.Background()

	var parent *int64
	var last int64
	for _, txt := range texts {
		c := &model.Claim{Text: txt, Type: model.ClaimAssertion, Parent: parent}
		id, err := g.AddClaim(ctx, c)
		if err != nil {
			t.Fatalf("AddClaim failed: %v", err)
		}
		last = id
		parent = &id
	}
	return New(g, nil), last
}

func TestEngine_AnalyzeChain_SingleClaim(t *testing.T) {
	e, id := newChainFixture(t, []string{"the object fell from the sky"})

	m, err := e.AnalyzeChain(context.Background(), id)
	if err != nil {
		t.Fatalf("AnalyzeChain failed: %v", err)
	}
	if m.ChainLength != 1 {
		t.Errorf("Expected chain length 1, got %d", m.ChainLength)
	}
	if m.DriftVelocity != 0.0 {
		t.Errorf("Expected zero drift for single claim, got %v", m.DriftVelocity)
	}
	if m.SemanticStability != 1.0 {
		t.Errorf("Expected full stability for single claim, got %v", m.SemanticStability)
	}
	if m.ShannonEntropy <= 0.0 {
		t.Errorf("Expected positive entropy for real text, got %v", m.ShannonEntropy)
	}
}

func TestEngine_AnalyzeChain_UnknownClaimReportsZeroChain(t *testing.T) {
	mem := store.NewMemory()
	e := New(graph.New(mem, mem), nil)

	m, err := e.AnalyzeChain(context.Background(), 999)
	if err != nil {
		t.Fatalf("Expected zero-value metrics for unknown claim, got error: %v", err)
	}
	if m.ClaimID != 999 {
		t.Errorf("Expected claim id 999 on metrics, got %d", m.ClaimID)
	}
	if m.ChainLength != 0 {
		t.Errorf("Expected chain length 0, got %d", m.ChainLength)
	}
	if m.ShannonEntropy != 0.0 || m.DriftVelocity != 0.0 {
		t.Errorf("Expected zero entropy and drift, got %v / %v", m.ShannonEntropy, m.DriftVelocity)
	}
	if m.SemanticStability != 1.0 {
		t.Errorf("Expected full stability, got %v", m.SemanticStability)
	}
}

func TestEngine_AnalyzeChain_IdenticalMutationsAreStable(t *testing.T) {
	e, id := newChainFixture(t, []string{"same text", "same text", "same text"})

	m, err := e.AnalyzeChain(context.Background(), id)
	if err != nil {
		t.Fatalf("AnalyzeChain failed: %v", err)
	}
	if m.ChainLength != 3 {
		t.Errorf("Expected chain length 3, got %d", m.ChainLength)
	}
	if m.DriftVelocity != 0.0 {
		t.Errorf("Expected zero drift for identical texts, got %v", m.DriftVelocity)
	}
	if m.MaxDiffRatio != 0.0 {
		t.Errorf("Expected zero max diff, got %v", m.MaxDiffRatio)
	}
	if m.SemanticStability != 1.0 {
		t.Errorf("Expected full stability, got %v", m.SemanticStability)
	}
}

func TestEngine_AnalyzeChain_DriftingMutations(t *testing.T) {
	e, id := newChainFixture(t, []string{
		"a weather balloon crashed on the ranch",
		"a strange craft crashed on the ranch",
		"an unidentified craft was recovered by the military",
	})

	m, err := e.AnalyzeChain(context.Background(), id)
	if err != nil {
		t.Fatalf("AnalyzeChain failed: %v", err)
	}
	if len(m.StepDiffs) != 2 {
		t.Fatalf("Expected 2 step diffs, got %d", len(m.StepDiffs))
	}
	if m.DriftVelocity <= 0.0 {
		t.Errorf("Expected positive drift, got %v", m.DriftVelocity)
	}
	if m.MaxDiffRatio < m.StepDiffs[0] && m.MaxDiffRatio < m.StepDiffs[1] {
		t.Errorf("Max diff %v below both steps %v", m.MaxDiffRatio, m.StepDiffs)
	}
	if m.SemanticStability < 0.0 || m.SemanticStability > 1.0 {
		t.Errorf("Stability %v outside [0, 1]", m.SemanticStability)
	}
}

func TestCharDistribution_RatiosAndTieBreak(t *testing.T) {
	// "aab c": a=0.4, b=0.2, c=0.2, space=0.2
	dist := CharDistribution("AAb c", 20)
	if len(dist) != 4 {
		t.Fatalf("Expected 4 characters, got %v", dist)
	}
	if dist["a"] != 0.4 {
		t.Errorf("Expected ratio 0.4 for 'a', got %v", dist["a"])
	}
	if dist["b"] != 0.2 || dist["c"] != 0.2 || dist[" "] != 0.2 {
		t.Errorf("Expected ratio 0.2 for 'b', 'c', and space, got %v", dist)
	}
}

func TestCharDistribution_CapsAtTop(t *testing.T) {
	dist := CharDistribution("abcdefghijklmnopqrstuvwxyz", 20)
	if len(dist) != 20 {
		t.Errorf("Expected distribution capped at 20 characters, got %d", len(dist))
	}
	// Ties break toward the lexically smaller character
	if _, ok := dist["a"]; !ok {
		t.Error("Expected 'a' kept under the cap")
	}
	if _, ok := dist["z"]; ok {
		t.Error("Expected 'z' dropped by the cap")
	}
}

func TestCharDistribution_EmptyText(t *testing.T) {
	if dist := CharDistribution("", 20); dist != nil {
		t.Errorf("Expected nil for empty text, got %v", dist)
	}
}

func TestEngine_AnalyzeChain_CharDistributionOnlyForRealChains(t *testing.T) {
	e, id := newChainFixture(t, []string{"aaaa", "aaab"})

	m, err := e.AnalyzeChain(context.Background(), id)
	if err != nil {
		t.Fatalf("AnalyzeChain failed: %v", err)
	}
	// Concatenated chain text "aaaaaaab": a=7/8, b=1/8
	if m.CharDistribution["a"] != 0.875 {
		t.Errorf("Expected ratio 0.875 for 'a', got %v", m.CharDistribution["a"])
	}
	if m.CharDistribution["b"] != 0.125 {
		t.Errorf("Expected ratio 0.125 for 'b', got %v", m.CharDistribution["b"])
	}

	single, sid := newChainFixture(t, []string{"standalone"})
	sm, err := single.AnalyzeChain(context.Background(), sid)
	if err != nil {
		t.Fatalf("AnalyzeChain failed: %v", err)
	}
	if sm.CharDistribution != nil {
		t.Errorf("Expected no distribution for a single-claim chain, got %v", sm.CharDistribution)
	}
}

func TestEngine_AnalyzeAllChains_ReportsEachChainOnce(t *testing.T) {
	mem := store.NewMemory()
	g := graph.New(mem, mem)
	ctx := context.Background()

	// One three-claim chain and one standalone claim
	root, _ := g.AddClaim(ctx, &model.Claim{Text: "root", Type: model.ClaimAssertion})
	mid, _ := g.AddClaim(ctx, &model.Claim{Text: "root, changed", Type: model.ClaimAssertion, Parent: &root})
	if _, err := g.AddClaim(ctx, &model.Claim{Text: "root, changed again", Type: model.ClaimAssertion, Parent: &mid}); err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	if _, err := g.AddClaim(ctx, &model.Claim{Text: "standalone", Type: model.ClaimObservation}); err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}

	e := New(g, nil)
	results, err := e.AnalyzeAllChains(ctx)
	if err != nil {
		t.Fatalf("AnalyzeAllChains failed: %v", err)
	}
	// Root reports as a singleton before its chain is reached, then each
	// longer ancestry prefix reports once, plus the standalone claim
	if len(results) != 4 {
		t.Fatalf("Expected 4 reports, got %d", len(results))
	}

	// The leaf's report covers the full chain
	var full *model.MutationMetrics
	for _, m := range results {
		if m.ChainLength == 3 {
			full = m
		}
	}
	if full == nil {
		t.Error("Expected one report covering the full three-claim chain")
	}
}

func TestEngine_DetectHighDrift_FlagsVolatileChain(t *testing.T) {
	mem := store.NewMemory()
	g := graph.New(mem, mem)
	ctx := context.Background()

	// Stable chain
	s1, _ := g.AddClaim(ctx, &model.Claim{Text: "the memo was dated july eighth", Type: model.ClaimAssertion})
	if _, err := g.AddClaim(ctx, &model.Claim{Text: "the memo was dated july ninth", Type: model.ClaimAssertion, Parent: &s1}); err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	// Volatile chain: total rewrite each step
	v1, _ := g.AddClaim(ctx, &model.Claim{Text: "aaaa aaaa aaaa", Type: model.ClaimAssertion})
	if _, err := g.AddClaim(ctx, &model.Claim{Text: "zzzz qqqq xxxx", Type: model.ClaimAssertion, Parent: &v1}); err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}

	e := New(g, nil)
	anomalies, err := e.DetectHighDrift(ctx, DefaultDriftThreshold)
	if err != nil {
		t.Fatalf("DetectHighDrift failed: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("Expected 1 high-drift chain, got %d", len(anomalies))
	}
	if anomalies[0].ChainLength != 2 || anomalies[0].DriftVelocity <= DefaultDriftThreshold {
		t.Errorf("Expected the volatile two-claim chain flagged, got %+v", anomalies[0])
	}
}

func TestEngine_DetectEntropyAnomalies_NeedsPopulation(t *testing.T) {
	mem := store.NewMemory()
	g := graph.New(mem, mem)
	ctx := context.Background()

	if _, err := g.AddClaim(ctx, &model.Claim{Text: "only one claim", Type: model.ClaimAssertion}); err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}

	e := New(g, nil)
	anomalies, err := e.DetectEntropyAnomalies(ctx, DefaultZScoreThreshold)
	if err != nil {
		t.Fatalf("DetectEntropyAnomalies failed: %v", err)
	}
	if anomalies != nil {
		t.Errorf("Expected nil for population under 3, got %v", anomalies)
	}
}

func TestEngine_BranchingFactor_CountsDescendantTree(t *testing.T) {
	mem := store.NewMemory()
	g := graph.New(mem, mem)
	ctx := context.Background()

	root, _ := g.AddClaim(ctx, &model.Claim{Text: "root", Type: model.ClaimAssertion})
	a, _ := g.AddClaim(ctx, &model.Claim{Text: "branch a", Type: model.ClaimAssertion, Parent: &root})
	if _, err := g.AddClaim(ctx, &model.Claim{Text: "branch b", Type: model.ClaimAssertion, Parent: &root}); err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	if _, err := g.AddClaim(ctx, &model.Claim{Text: "grandchild", Type: model.ClaimAssertion, Parent: &a}); err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}

	e := New(g, nil)
	b, err := e.BranchingFactor(ctx, root)
	if err != nil {
		t.Fatalf("BranchingFactor failed: %v", err)
	}
	if b.DirectChildren != 2 {
		t.Errorf("Expected 2 direct children, got %d", b.DirectChildren)
	}
	if b.TotalTreeSize != 3 {
		t.Errorf("Expected descendant tree of 3, got %d", b.TotalTreeSize)
	}
}
