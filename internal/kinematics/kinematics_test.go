package kinematics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/ndanilov/claimwatch/internal/entropy"
	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
	"github.com/ndanilov/claimwatch/internal/timeline"
)

func newTestEngine() (*Engine, *graph.Engine, *store.Memory) {
	mem := store.NewMemory()
	g := graph.New(mem, mem)
	cfg := model.DefaultConfig()
	tl := timeline.NewEntropy(g, entropy.New(g, nil), mem, cfg.Timeline, nil)
	return New(g, tl, nil), g, mem
}

// appendDrifts writes hourly drift snapshots to the entropy series
func appendDrifts(t *testing.T, mem *store.Memory, claimID int64, drifts []float64) {
	t.Helper()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, d := range drifts {
		err := mem.Append(context.Background(), store.SeriesEntropy, claimID,
			map[string]interface{}{"shannon_entropy": 1.0, "drift_velocity": d},
			base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
}

func TestEngine_Analyze_EmptyHistory(t *testing.T) {
	e, _, _ := newTestEngine()

	k, err := e.Analyze(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if k.TotalSnapshots != 0 || k.Phase != model.PhaseConstant {
		t.Errorf("Expected empty constant result, got %+v", k)
	}
}

func TestEngine_Analyze_SinglePointHasNoDerivatives(t *testing.T) {
	e, _, mem := newTestEngine()
	appendDrifts(t, mem, 1, []float64{0.4})

	k, err := e.Analyze(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if k.CurrentDrift != 0.4 {
		t.Errorf("Expected current drift 0.4, got %v", k.CurrentDrift)
	}
	if k.CurrentVelocity != 0 || k.CurrentAccel != 0 {
		t.Errorf("Expected zero derivatives for single point, got %+v", k)
	}
}

func TestEngine_Analyze_ConstantVelocity(t *testing.T) {
	e, _, mem := newTestEngine()
	appendDrifts(t, mem, 1, []float64{0.0, 0.1, 0.2, 0.3})

	k, err := e.Analyze(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if math.Abs(k.CurrentVelocity-0.1) > 1e-9 {
		t.Errorf("Expected velocity 0.1/h, got %v", k.CurrentVelocity)
	}
	if math.Abs(k.CurrentAccel) > 1e-9 {
		t.Errorf("Expected zero acceleration, got %v", k.CurrentAccel)
	}
	if k.Phase != model.PhaseConstant {
		t.Errorf("Expected constant phase for steady drift, got %s", k.Phase)
	}
	if math.Abs(k.MeanVelocity-0.1) > 1e-9 || math.Abs(k.MaxVelocity-0.1) > 1e-9 {
		t.Errorf("Unexpected velocity stats: %+v", k)
	}
}

func TestEngine_Analyze_AcceleratingDrift(t *testing.T) {
	e, _, mem := newTestEngine()
	appendDrifts(t, mem, 1, []float64{0.0, 0.1, 0.3, 0.6})

	k, err := e.Analyze(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	// Velocities 0.1, 0.2, 0.3 give steady acceleration 0.1/h²
	if math.Abs(k.CurrentAccel-0.1) > 1e-9 {
		t.Errorf("Expected acceleration 0.1, got %v", k.CurrentAccel)
	}
	if k.Phase != model.PhaseAccelerating {
		t.Errorf("Expected accelerating phase, got %s", k.Phase)
	}
	if len(k.InflectionPoints) != 0 {
		t.Errorf("Expected no inflections, got %d", len(k.InflectionPoints))
	}
}

func TestEngine_Analyze_InflectionDetected(t *testing.T) {
	e, _, mem := newTestEngine()
	// Velocities 0.1, 0.2, 0.1, 0.0 flip acceleration from +0.1 to -0.1
	appendDrifts(t, mem, 1, []float64{0.0, 0.1, 0.3, 0.4, 0.4})

	k, err := e.Analyze(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(k.InflectionPoints) != 1 {
		t.Fatalf("Expected 1 inflection point, got %d", len(k.InflectionPoints))
	}
	inf := k.InflectionPoints[0]
	if inf.FromAccel <= 0 || inf.ToAccel >= 0 {
		t.Errorf("Expected positive-to-negative flip, got %+v", inf)
	}
	if math.Abs(inf.Magnitude-0.2) > 1e-6 {
		t.Errorf("Expected magnitude 0.2, got %v", inf.Magnitude)
	}
	if k.Phase != model.PhaseInflecting {
		t.Errorf("Expected inflecting phase, got %s", k.Phase)
	}
}

func TestEngine_Analyze_NearZeroFlipsIgnored(t *testing.T) {
	e, _, mem := newTestEngine()
	// Acceleration wobbles at 1e-4, under the inflection threshold
	appendDrifts(t, mem, 1, []float64{0.0, 0.0, 0.0001, 0.0001})

	k, err := e.Analyze(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(k.InflectionPoints) != 0 {
		t.Errorf("Expected noise flips ignored, got %d inflections", len(k.InflectionPoints))
	}
	if k.Phase != model.PhaseConstant {
		t.Errorf("Expected constant phase, got %s", k.Phase)
	}
}

func TestEngine_Analyze_ProfileAlignment(t *testing.T) {
	e, _, mem := newTestEngine()
	appendDrifts(t, mem, 1, []float64{0.0, 0.2, 0.4})

	k, err := e.Analyze(context.Background(), 1, time.Time{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(k.Profile) != 3 {
		t.Fatalf("Expected 3 profile points, got %d", len(k.Profile))
	}
	// The first point predates any derivative
	if k.Profile[0].Velocity != 0 {
		t.Errorf("Expected zero velocity at first point, got %v", k.Profile[0].Velocity)
	}
	if math.Abs(k.Profile[2].Velocity-0.2) > 1e-9 {
		t.Errorf("Expected velocity 0.2 at last point, got %v", k.Profile[2].Velocity)
	}
}

func TestEngine_RankByAcceleration_HighestFirst(t *testing.T) {
	e, g, mem := newTestEngine()
	ctx := context.Background()

	calm, err := g.AddClaim(ctx, &model.Claim{Text: "calm claim", Type: model.ClaimAssertion})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	wild, err := g.AddClaim(ctx, &model.Claim{Text: "wild claim", Type: model.ClaimAssertion})
	if err != nil {
		t.Fatalf("AddClaim failed: %v", err)
	}
	appendDrifts(t, mem, calm, []float64{0.1, 0.1, 0.1, 0.1})
	appendDrifts(t, mem, wild, []float64{0.0, 0.1, 0.4, 0.9})

	ranked, err := e.RankByAcceleration(ctx, 10)
	if err != nil {
		t.Fatalf("RankByAcceleration failed: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("Expected 2 ranked claims, got %d", len(ranked))
	}
	if ranked[0].ClaimID != wild {
		t.Errorf("Expected wild claim first, got %d", ranked[0].ClaimID)
	}
}
