package stability

import (
	"context"
	"testing"
	"time"

	"github.com/ndanilov/claimwatch/internal/entropy"
	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/kinematics"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/score"
	"github.com/ndanilov/claimwatch/internal/store"
	"github.com/ndanilov/claimwatch/internal/timeline"
)

func newTestEngine() (*Engine, *graph.Engine, *store.Memory) {
	mem := store.NewMemory()
	g := graph.New(mem, mem)
	cfg := model.DefaultConfig()
	scorer := score.New(g, mem, cfg.Scorer, nil)
	conf := timeline.NewConfidence(g, scorer, mem, cfg.Timeline, nil)
	ent := timeline.NewEntropy(g, entropy.New(g, nil), mem, cfg.Timeline, nil)
	kin := kinematics.New(g, ent, nil)
	return New(g, conf, ent, kin, mem, nil), g, mem
}

func zeroSignals() (*model.ConfidenceTrend, *model.EntropyTrend, *model.DriftKinematics) {
	return &model.ConfidenceTrend{Direction: model.TrendStable},
		&model.EntropyTrend{Direction: model.TrendStable},
		&model.DriftKinematics{Phase: model.PhaseConstant}
}

func TestBuildProfile_QuietSignalsAreStable(t *testing.T) {
	conf, ent, kin := zeroSignals()
	p := buildProfile(1, conf, ent, kin, time.Now())
	if p.Classification != model.StateStable {
		t.Errorf("Expected stable, got %s", p.Classification)
	}
	if len(p.SignalFlags) != 0 {
		t.Errorf("Expected no flags, got %v", p.SignalFlags)
	}
}

func TestBuildProfile_VolatileConfidence(t *testing.T) {
	conf, ent, kin := zeroSignals()
	conf.StdDev = 0.2

	p := buildProfile(1, conf, ent, kin, time.Now())
	if p.Classification != model.StateVolatile {
		t.Errorf("Expected volatile, got %s", p.Classification)
	}
}

func TestBuildProfile_OscillatingEntropyIsVolatile(t *testing.T) {
	conf, ent, kin := zeroSignals()
	ent.Direction = model.TrendOscillating

	p := buildProfile(1, conf, ent, kin, time.Now())
	if p.Classification != model.StateVolatile {
		t.Errorf("Expected volatile, got %s", p.Classification)
	}
}

func TestBuildProfile_DivergingOnAcceleratingDriftAndRisingEntropy(t *testing.T) {
	conf, ent, kin := zeroSignals()
	kin.Phase = model.PhaseAccelerating
	kin.CurrentAccel = 0.002
	ent.Direction = model.TrendIncreasing

	p := buildProfile(1, conf, ent, kin, time.Now())
	if p.Classification != model.StateDiverging {
		t.Errorf("Expected diverging, got %s", p.Classification)
	}
}

func TestBuildProfile_CriticalOnThreeAnomalies(t *testing.T) {
	conf, ent, kin := zeroSignals()
	ent.IsSpike = true
	ent.StdDev = 0.6
	conf.StdDev = 0.2

	p := buildProfile(1, conf, ent, kin, time.Now())
	if p.Classification != model.StateCritical {
		t.Errorf("Expected critical with 3 anomaly flags, got %s", p.Classification)
	}
}

func TestBuildProfile_ConvergingOnPlateau(t *testing.T) {
	conf, ent, kin := zeroSignals()
	conf.IsPlateau = true

	p := buildProfile(1, conf, ent, kin, time.Now())
	if p.Classification != model.StateConverging {
		t.Errorf("Expected converging, got %s", p.Classification)
	}
}

func TestBuildProfile_ConvergingOnQuietRise(t *testing.T) {
	conf, ent, kin := zeroSignals()
	conf.Direction = model.TrendRising
	conf.StdDev = 0.01

	p := buildProfile(1, conf, ent, kin, time.Now())
	if p.Classification != model.StateConverging {
		t.Errorf("Expected converging, got %s", p.Classification)
	}
}

func TestBuildProfile_FallingAloneStaysStable(t *testing.T) {
	conf, ent, kin := zeroSignals()
	conf.Direction = model.TrendFalling

	p := buildProfile(1, conf, ent, kin, time.Now())
	// One anomaly flag is not enough to escalate
	if p.Classification != model.StateStable {
		t.Errorf("Expected stable, got %s", p.Classification)
	}
}

func TestEngine_Classify_PersistsClassification(t *testing.T) {
	e, g, _ := newTestEngine()
	ctx := context.Background()

	id, err := g.AddClaim(ctx, &model.Claim{Text: "quiet claim", Type: model.ClaimObservation})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}

	p, err := e.Classify(ctx, id, time.Now())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if p.Classification != model.StateStable {
		t.Errorf("Expected stable for claim with no history, got %s", p.Classification)
	}

	latest, err := e.Latest(ctx, id)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest != model.StateStable {
		t.Errorf("Expected persisted stable, got %s", latest)
	}
}

func TestEngine_Classify_VolatileFromSeries(t *testing.T) {
	e, g, mem := newTestEngine()
	ctx := context.Background()

	id, err := g.AddClaim(ctx, &model.Claim{Text: "swinging claim", Type: model.ClaimAssertion})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, s := range []float64{0.2, 0.8, 0.3, 0.7, 0.2} {
		err := mem.Append(ctx, store.SeriesConfidence, id,
			map[string]interface{}{"composite": s}, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	p, err := e.Classify(ctx, id, base.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if p.Classification != model.StateVolatile {
		t.Errorf("Expected volatile for swinging confidence, got %s", p.Classification)
	}
}

func TestEngine_Transitions_DiffsHistory(t *testing.T) {
	e, g, mem := newTestEngine()
	ctx := context.Background()

	id, err := g.AddClaim(ctx, &model.Claim{Text: "shifting claim", Type: model.ClaimAssertion})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	states := []model.StabilityState{model.StateStable, model.StateStable, model.StateVolatile, model.StateCritical}
	for i, s := range states {
		at := base.Add(time.Duration(i) * time.Hour)
		err := mem.Append(ctx, store.SeriesStability, id, map[string]interface{}{
			"classification": string(s),
			"classified_at":  at.UTC().Format(time.RFC3339Nano),
		}, at)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	transitions, err := e.Transitions(ctx, id)
	if err != nil {
		t.Fatalf("Transitions failed: %v", err)
	}
	if len(transitions) != 2 {
		t.Fatalf("Expected 2 transitions, got %d", len(transitions))
	}
	if transitions[0].From != model.StateStable || transitions[0].To != model.StateVolatile {
		t.Errorf("Unexpected first transition: %+v", transitions[0])
	}
	if transitions[1].From != model.StateVolatile || transitions[1].To != model.StateCritical {
		t.Errorf("Unexpected second transition: %+v", transitions[1])
	}
}

func TestEngine_ByState_FiltersOnLatest(t *testing.T) {
	e, g, mem := newTestEngine()
	ctx := context.Background()

	stable, _ := g.AddClaim(ctx, &model.Claim{Text: "stable claim", Type: model.ClaimAssertion})
	hot, _ := g.AddClaim(ctx, &model.Claim{Text: "hot claim", Type: model.ClaimAssertion})

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	appendState := func(claimID int64, s model.StabilityState, at time.Time) {
		err := mem.Append(ctx, store.SeriesStability, claimID, map[string]interface{}{
			"classification": string(s),
			"classified_at":  at.UTC().Format(time.RFC3339Nano),
		}, at)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	appendState(stable, model.StateStable, base)
	// hot was volatile, then escalated
	appendState(hot, model.StateVolatile, base)
	appendState(hot, model.StateCritical, base.Add(time.Hour))

	ids, err := e.ByState(ctx, model.StateCritical)
	if err != nil {
		t.Fatalf("ByState failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != hot {
		t.Errorf("Expected only the escalated claim, got %v", ids)
	}

	s, err := e.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if s.TotalClassified != 2 || s.ByState[model.StateCritical] != 1 || s.ByState[model.StateStable] != 1 {
		t.Errorf("Unexpected summary: %+v", s)
	}
}
