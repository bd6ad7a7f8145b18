package model

import "time"

// Aggregate DTOs produced by the timeline, kinematics, and stability engines.
// A zero-value trend with TotalSnapshots == 0 is the documented "no data"
// result; callers distinguish "no data" from "zero value" by that count.

// TrendDirection describes the net movement of a tracked series
type TrendDirection string

const (
	TrendRising      TrendDirection = "rising"
	TrendFalling     TrendDirection = "falling"
	TrendStable      TrendDirection = "stable"
	TrendIncreasing  TrendDirection = "increasing"
	TrendDecreasing  TrendDirection = "decreasing"
	TrendOscillating TrendDirection = "oscillating"
)

// ConfidenceTrend is the aggregated confidence trend analysis for a claim.
// RateOfChange is the two-point secant of the score series, per hour.
type ConfidenceTrend struct {
	ClaimID            int64          `json:"claim_id"`
	CurrentScore       float64        `json:"current_score"`
	MeanScore          float64        `json:"mean_score"`
	StdDev             float64        `json:"std_dev"`
	MinScore           float64        `json:"min_score"`
	MaxScore           float64        `json:"max_score"`
	ScoreRange         float64        `json:"score_range"`
	TotalSnapshots     int            `json:"total_snapshots"`
	MovingAvg          float64        `json:"moving_avg"`
	EMA                float64        `json:"ema"`
	RateOfChange       float64        `json:"rate_of_change"`
	IsConverging       bool           `json:"is_converging"`
	IsPlateau          bool           `json:"is_plateau"`
	PlateauDurationHrs float64        `json:"plateau_duration_hours"`
	Direction          TrendDirection `json:"trend_direction"`
}

// ToMap flattens the trend for serialization
func (t *ConfidenceTrend) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":               t.ClaimID,
		"current_score":          Round6(t.CurrentScore),
		"mean_score":             Round6(t.MeanScore),
		"std_dev":                Round6(t.StdDev),
		"min_score":              Round6(t.MinScore),
		"max_score":              Round6(t.MaxScore),
		"score_range":            Round6(t.ScoreRange),
		"total_snapshots":        t.TotalSnapshots,
		"moving_avg":             Round6(t.MovingAvg),
		"ema":                    Round6(t.EMA),
		"rate_of_change":         Round6(t.RateOfChange),
		"is_converging":          t.IsConverging,
		"is_plateau":             t.IsPlateau,
		"plateau_duration_hours": Round6(t.PlateauDurationHrs),
		"trend_direction":        string(t.Direction),
	}
}

// ConfidenceTrendFromMap rebuilds a trend from its flat map form
func ConfidenceTrendFromMap(m map[string]interface{}) *ConfidenceTrend {
	return &ConfidenceTrend{
		ClaimID:            MapInt64(m, "claim_id"),
		CurrentScore:       MapFloat(m, "current_score"),
		MeanScore:          MapFloat(m, "mean_score"),
		StdDev:             MapFloat(m, "std_dev"),
		MinScore:           MapFloat(m, "min_score"),
		MaxScore:           MapFloat(m, "max_score"),
		ScoreRange:         MapFloat(m, "score_range"),
		TotalSnapshots:     MapInt(m, "total_snapshots"),
		MovingAvg:          MapFloat(m, "moving_avg"),
		EMA:                MapFloat(m, "ema"),
		RateOfChange:       MapFloat(m, "rate_of_change"),
		IsConverging:       MapBool(m, "is_converging"),
		IsPlateau:          MapBool(m, "is_plateau"),
		PlateauDurationHrs: MapFloat(m, "plateau_duration_hours"),
		Direction:          TrendDirection(MapString(m, "trend_direction")),
	}
}

// EntropyTrend is the aggregated entropy trend analysis for a claim chain
type EntropyTrend struct {
	ClaimID        int64          `json:"claim_id"`
	CurrentEntropy float64        `json:"current_entropy"`
	MeanEntropy    float64        `json:"mean_entropy"`
	StdDev         float64        `json:"std_dev"`
	MinEntropy     float64        `json:"min_entropy"`
	MaxEntropy     float64        `json:"max_entropy"`
	TotalSnapshots int            `json:"total_snapshots"`
	DHDt           float64        `json:"dh_dt"`   // first derivative, per hour
	D2HDt2         float64        `json:"d2h_dt2"` // second derivative
	Direction      TrendDirection `json:"trend_direction"`
	IsSpike        bool           `json:"is_spike"`
	IsCollapse     bool           `json:"is_collapse"`
	SpikeMagnitude float64        `json:"spike_magnitude"`
}

// ToMap flattens the trend for serialization
func (t *EntropyTrend) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":        t.ClaimID,
		"current_entropy": Round6(t.CurrentEntropy),
		"mean_entropy":    Round6(t.MeanEntropy),
		"std_dev":         Round6(t.StdDev),
		"min_entropy":     Round6(t.MinEntropy),
		"max_entropy":     Round6(t.MaxEntropy),
		"total_snapshots": t.TotalSnapshots,
		"dh_dt":           Round6(t.DHDt),
		"d2h_dt2":         Round6(t.D2HDt2),
		"trend_direction": string(t.Direction),
		"is_spike":        t.IsSpike,
		"is_collapse":     t.IsCollapse,
		"spike_magnitude": Round6(t.SpikeMagnitude),
	}
}

// EntropyTrendFromMap rebuilds a trend from its flat map form
func EntropyTrendFromMap(m map[string]interface{}) *EntropyTrend {
	return &EntropyTrend{
		ClaimID:        MapInt64(m, "claim_id"),
		CurrentEntropy: MapFloat(m, "current_entropy"),
		MeanEntropy:    MapFloat(m, "mean_entropy"),
		StdDev:         MapFloat(m, "std_dev"),
		MinEntropy:     MapFloat(m, "min_entropy"),
		MaxEntropy:     MapFloat(m, "max_entropy"),
		TotalSnapshots: MapInt(m, "total_snapshots"),
		DHDt:           MapFloat(m, "dh_dt"),
		D2HDt2:         MapFloat(m, "d2h_dt2"),
		Direction:      TrendDirection(MapString(m, "trend_direction")),
		IsSpike:        MapBool(m, "is_spike"),
		IsCollapse:     MapBool(m, "is_collapse"),
		SpikeMagnitude: MapFloat(m, "spike_magnitude"),
	}
}

// KinematicPoint is a single kinematic measurement at a point in time
type KinematicPoint struct {
	At           time.Time `json:"at"`
	Drift        float64   `json:"drift"`
	Velocity     float64   `json:"velocity"`
	Acceleration float64   `json:"acceleration"`
	Jerk         float64   `json:"jerk"`
}

// InflectionPoint marks a sign change in the acceleration series
type InflectionPoint struct {
	At        time.Time `json:"at"`
	FromAccel float64   `json:"from_acceleration"`
	ToAccel   float64   `json:"to_acceleration"`
	Magnitude float64   `json:"magnitude"`
}

// DriftPhase classifies the current kinematic regime of drift
type DriftPhase string

const (
	PhaseConstant     DriftPhase = "constant"
	PhaseAccelerating DriftPhase = "accelerating"
	PhaseDecelerating DriftPhase = "decelerating"
	PhaseInflecting   DriftPhase = "inflecting"
)

// DriftKinematics is the full kinematic profile of a claim's drift history
type DriftKinematics struct {
	ClaimID          int64             `json:"claim_id"`
	CurrentDrift     float64           `json:"current_drift"`
	CurrentVelocity  float64           `json:"current_velocity"`
	CurrentAccel     float64           `json:"current_acceleration"`
	CurrentJerk      float64           `json:"current_jerk"`
	MeanVelocity     float64           `json:"mean_velocity"`
	MaxVelocity      float64           `json:"max_velocity"`
	MeanAccel        float64           `json:"mean_acceleration"`
	MaxAccel         float64           `json:"max_acceleration"`
	TotalSnapshots   int               `json:"total_snapshots"`
	InflectionPoints []InflectionPoint `json:"inflection_points,omitempty"`
	Profile          []KinematicPoint  `json:"kinematic_profile,omitempty"`
	Phase            DriftPhase        `json:"phase"`
}

// ToMap flattens the kinematics summary for serialization. The full
// profile and inflection list stay on the struct.
func (k *DriftKinematics) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":             k.ClaimID,
		"current_drift":        Round6(k.CurrentDrift),
		"current_velocity":     Round6(k.CurrentVelocity),
		"current_acceleration": Round6(k.CurrentAccel),
		"current_jerk":         Round6(k.CurrentJerk),
		"mean_velocity":        Round6(k.MeanVelocity),
		"max_velocity":         Round6(k.MaxVelocity),
		"mean_acceleration":    Round6(k.MeanAccel),
		"max_acceleration":     Round6(k.MaxAccel),
		"total_snapshots":      k.TotalSnapshots,
		"inflection_count":     len(k.InflectionPoints),
		"phase":                string(k.Phase),
	}
}

// DriftKinematicsFromMap rebuilds the kinematics summary from its flat
// map form
func DriftKinematicsFromMap(m map[string]interface{}) *DriftKinematics {
	return &DriftKinematics{
		ClaimID:         MapInt64(m, "claim_id"),
		CurrentDrift:    MapFloat(m, "current_drift"),
		CurrentVelocity: MapFloat(m, "current_velocity"),
		CurrentAccel:    MapFloat(m, "current_acceleration"),
		CurrentJerk:     MapFloat(m, "current_jerk"),
		MeanVelocity:    MapFloat(m, "mean_velocity"),
		MaxVelocity:     MapFloat(m, "max_velocity"),
		MeanAccel:       MapFloat(m, "mean_acceleration"),
		MaxAccel:        MapFloat(m, "max_acceleration"),
		TotalSnapshots:  MapInt(m, "total_snapshots"),
		Phase:           DriftPhase(MapString(m, "phase")),
	}
}

// StabilityState is the discrete epistemic stability classification
type StabilityState string

const (
	StateStable     StabilityState = "stable"
	StateConverging StabilityState = "converging"
	StateVolatile   StabilityState = "volatile"
	StateDiverging  StabilityState = "diverging"
	StateCritical   StabilityState = "critical"
)

// StabilityStates lists all states in ascending severity order
var StabilityStates = []StabilityState{
	StateStable, StateConverging, StateVolatile, StateDiverging, StateCritical,
}

// StabilityProfile is a complete stability classification with the signals
// that produced it
type StabilityProfile struct {
	ClaimID         int64          `json:"claim_id"`
	Classification  StabilityState `json:"classification"`
	ConfidenceTrend float64        `json:"confidence_trend"` // dC/dt
	EntropyTrend    float64        `json:"entropy_trend"`    // dH/dt
	DriftAccel      float64        `json:"drift_accel"`
	ConfidenceStd   float64        `json:"confidence_std"`
	EntropyStd      float64        `json:"entropy_std"`
	IsConverging    bool           `json:"is_converging"`
	IsPlateau       bool           `json:"is_plateau"`
	IsSpike         bool           `json:"is_spike"`
	HasInflection   bool           `json:"has_inflection"`
	SignalFlags     []string       `json:"signal_flags,omitempty"`
	ClassifiedAt    time.Time      `json:"classified_at"`
}

// ToMap flattens the profile for serialization
func (p *StabilityProfile) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":         p.ClaimID,
		"classification":   string(p.Classification),
		"confidence_trend": Round6(p.ConfidenceTrend),
		"entropy_trend":    Round6(p.EntropyTrend),
		"drift_accel":      Round6(p.DriftAccel),
		"confidence_std":   Round6(p.ConfidenceStd),
		"entropy_std":      Round6(p.EntropyStd),
		"is_converging":    p.IsConverging,
		"is_plateau":       p.IsPlateau,
		"is_spike":         p.IsSpike,
		"has_inflection":   p.HasInflection,
		"signal_count":     len(p.SignalFlags),
		"classified_at":    p.ClassifiedAt.UTC().Format(time.RFC3339Nano),
	}
}

// StabilityProfileFromMap rebuilds a profile from its flat map form
func StabilityProfileFromMap(m map[string]interface{}) *StabilityProfile {
	return &StabilityProfile{
		ClaimID:         MapInt64(m, "claim_id"),
		Classification:  StabilityState(MapString(m, "classification")),
		ConfidenceTrend: MapFloat(m, "confidence_trend"),
		EntropyTrend:    MapFloat(m, "entropy_trend"),
		DriftAccel:      MapFloat(m, "drift_accel"),
		ConfidenceStd:   MapFloat(m, "confidence_std"),
		EntropyStd:      MapFloat(m, "entropy_std"),
		IsConverging:    MapBool(m, "is_converging"),
		IsPlateau:       MapBool(m, "is_plateau"),
		IsSpike:         MapBool(m, "is_spike"),
		HasInflection:   MapBool(m, "has_inflection"),
		ClassifiedAt:    MapTime(m, "classified_at"),
	}
}

// StabilityTransition records a change between two consecutive logged
// classifications, reconstructed by diffing history rows
type StabilityTransition struct {
	ClaimID int64          `json:"claim_id"`
	From    StabilityState `json:"from"`
	To      StabilityState `json:"to"`
	At      time.Time      `json:"at"`
}
