package model

import (
	"testing"
	"time"
)

func TestConfidenceTrend_MapRoundTrip(t *testing.T) {
	tr := &ConfidenceTrend{
		ClaimID:            21,
		CurrentScore:       0.7182818284,
		MeanScore:          0.6931471805,
		StdDev:             0.0412334567,
		MinScore:           0.5,
		MaxScore:           0.75,
		ScoreRange:         0.25,
		TotalSnapshots:     14,
		MovingAvg:          0.7071067811,
		EMA:                0.7090909091,
		RateOfChange:       -0.0033333333,
		IsConverging:       true,
		IsPlateau:          false,
		PlateauDurationHrs: 6.3333333333,
		Direction:          TrendFalling,
	}

	got := ConfidenceTrendFromMap(tr.ToMap())
	if got.ClaimID != 21 || got.TotalSnapshots != 14 {
		t.Errorf("Integer fields lost: %+v", got)
	}
	if got.Direction != TrendFalling || !got.IsConverging || got.IsPlateau {
		t.Errorf("Enum or boolean fields lost: %+v", got)
	}
	assertClose(t, "current_score", got.CurrentScore, tr.CurrentScore)
	assertClose(t, "mean_score", got.MeanScore, tr.MeanScore)
	assertClose(t, "std_dev", got.StdDev, tr.StdDev)
	assertClose(t, "rate_of_change", got.RateOfChange, tr.RateOfChange)
	assertClose(t, "plateau_duration_hours", got.PlateauDurationHrs, tr.PlateauDurationHrs)
}

func TestEntropyTrend_MapRoundTrip(t *testing.T) {
	tr := &EntropyTrend{
		ClaimID:        22,
		CurrentEntropy: 4.2438562439,
		MeanEntropy:    3.9068905956,
		StdDev:         0.2041241452,
		MinEntropy:     3.5,
		MaxEntropy:     4.25,
		TotalSnapshots: 9,
		DHDt:           0.0561231024,
		D2HDt2:         -0.0012345678,
		Direction:      TrendIncreasing,
		IsSpike:        true,
		SpikeMagnitude: 2.3452078799,
	}

	got := EntropyTrendFromMap(tr.ToMap())
	if got.ClaimID != 22 || got.TotalSnapshots != 9 {
		t.Errorf("Integer fields lost: %+v", got)
	}
	if got.Direction != TrendIncreasing || !got.IsSpike || got.IsCollapse {
		t.Errorf("Enum or boolean fields lost: %+v", got)
	}
	assertClose(t, "current_entropy", got.CurrentEntropy, tr.CurrentEntropy)
	assertClose(t, "dh_dt", got.DHDt, tr.DHDt)
	assertClose(t, "d2h_dt2", got.D2HDt2, tr.D2HDt2)
	assertClose(t, "spike_magnitude", got.SpikeMagnitude, tr.SpikeMagnitude)
}

func TestDriftKinematics_MapRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	k := &DriftKinematics{
		ClaimID:         23,
		CurrentDrift:    0.3141592653,
		CurrentVelocity: 0.0261799388,
		CurrentAccel:    -0.0021816616,
		CurrentJerk:     0.0001817152,
		MeanVelocity:    0.0314159265,
		MaxVelocity:     0.0523598776,
		MeanAccel:       0.0017453293,
		MaxAccel:        0.0043633231,
		TotalSnapshots:  20,
		InflectionPoints: []InflectionPoint{
			{At: at, FromAccel: 0.002, ToAccel: -0.003, Magnitude: 0.005},
		},
		Profile: []KinematicPoint{{At: at, Drift: 0.3, Velocity: 0.02}},
		Phase:   PhaseInflecting,
	}

	flat := k.ToMap()
	if flat["inflection_count"] != 1 {
		t.Errorf("Expected inflections summarized by count, got %v", flat["inflection_count"])
	}
	if _, ok := flat["kinematic_profile"]; ok {
		t.Error("Expected the point-by-point profile kept off the flat form")
	}

	got := DriftKinematicsFromMap(flat)
	if got.ClaimID != 23 || got.TotalSnapshots != 20 || got.Phase != PhaseInflecting {
		t.Errorf("Fields lost: %+v", got)
	}
	assertClose(t, "current_drift", got.CurrentDrift, k.CurrentDrift)
	assertClose(t, "current_velocity", got.CurrentVelocity, k.CurrentVelocity)
	assertClose(t, "current_acceleration", got.CurrentAccel, k.CurrentAccel)
	assertClose(t, "current_jerk", got.CurrentJerk, k.CurrentJerk)
	assertClose(t, "mean_acceleration", got.MeanAccel, k.MeanAccel)
	if got.InflectionPoints != nil || got.Profile != nil {
		t.Errorf("Expected inflections and profile dropped by the flat form, got %+v", got)
	}
}

func TestStabilityProfile_MapRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)
	p := &StabilityProfile{
		ClaimID:         24,
		Classification:  StateDiverging,
		ConfidenceTrend: -0.0123456789,
		EntropyTrend:    0.0456789123,
		DriftAccel:      0.0078912345,
		ConfidenceStd:   0.1234567891,
		EntropyStd:      0.3216549871,
		IsSpike:         true,
		HasInflection:   true,
		SignalFlags:     []string{"entropy_rising", "confidence_falling"},
		ClassifiedAt:    at,
	}

	flat := p.ToMap()
	if flat["signal_count"] != 2 {
		t.Errorf("Expected flags summarized as signal_count 2, got %v", flat["signal_count"])
	}

	got := StabilityProfileFromMap(flat)
	if got.ClaimID != 24 || got.Classification != StateDiverging {
		t.Errorf("Fields lost: %+v", got)
	}
	if !got.IsSpike || !got.HasInflection || got.IsConverging {
		t.Errorf("Boolean fields lost: %+v", got)
	}
	if !got.ClassifiedAt.Equal(at) {
		t.Errorf("Expected timestamp %v preserved, got %v", at, got.ClassifiedAt)
	}
	assertClose(t, "confidence_trend", got.ConfidenceTrend, p.ConfidenceTrend)
	assertClose(t, "entropy_trend", got.EntropyTrend, p.EntropyTrend)
	assertClose(t, "drift_accel", got.DriftAccel, p.DriftAccel)
	assertClose(t, "confidence_std", got.ConfidenceStd, p.ConfidenceStd)
	assertClose(t, "entropy_std", got.EntropyStd, p.EntropyStd)
	if got.SignalFlags != nil {
		t.Errorf("Expected flags kept off the flat form, got %v", got.SignalFlags)
	}
}

func TestAlert_MapRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	a := &Alert{
		ID:           5,
		ClaimID:      25,
		Type:         AlertEntropySpike,
		Severity:     SeverityCritical,
		Message:      "entropy 4.5000 above threshold",
		Value:        4.4999999999,
		Threshold:    4.5,
		Acknowledged: true,
		CreatedAt:    at,
	}

	got := AlertFromMap(a.ToMap())
	if got.ID != 5 || got.ClaimID != 25 || got.Type != AlertEntropySpike ||
		got.Severity != SeverityCritical || !got.Acknowledged {
		t.Errorf("Fields lost: %+v", got)
	}
	if got.Message != a.Message {
		t.Errorf("Expected message preserved, got %q", got.Message)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("Expected timestamp %v preserved, got %v", at, got.CreatedAt)
	}
	assertClose(t, "value", got.Value, a.Value)
	assertClose(t, "threshold", got.Threshold, a.Threshold)
}
