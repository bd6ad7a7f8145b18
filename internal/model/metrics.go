package model

// Point-in-time DTOs produced by the signal engines. Every DTO is
// flat-map-serializable so report/dashboard/API collaborators can render it
// without importing engine packages; numeric fields round to 6 decimals.

// ScoreBreakdown is the detailed breakdown of a claim's composite confidence
type ScoreBreakdown struct {
	ClaimID              int64   `json:"claim_id"`
	Prior                float64 `json:"prior"`
	SourceCredibility    float64 `json:"source_credibility"`
	CitationSupport      float64 `json:"citation_support"`
	ContradictionPenalty float64 `json:"contradiction_penalty"`
	VerificationBonus    float64 `json:"verification_bonus"`
	MutationDecay        float64 `json:"mutation_decay"`
	Composite            float64 `json:"composite"`
	MutationDepth        int     `json:"mutation_depth"`
}

// ToMap flattens the breakdown for serialization
func (b *ScoreBreakdown) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":              b.ClaimID,
		"prior":                 Round6(b.Prior),
		"source_credibility":    Round6(b.SourceCredibility),
		"citation_support":      Round6(b.CitationSupport),
		"contradiction_penalty": Round6(b.ContradictionPenalty),
		"verification_bonus":    Round6(b.VerificationBonus),
		"mutation_decay":        Round6(b.MutationDecay),
		"composite":             Round6(b.Composite),
		"mutation_depth":        b.MutationDepth,
	}
}

// ScoreBreakdownFromMap rebuilds a breakdown from its flat map form
func ScoreBreakdownFromMap(m map[string]interface{}) *ScoreBreakdown {
	return &ScoreBreakdown{
		ClaimID:              MapInt64(m, "claim_id"),
		Prior:                MapFloat(m, "prior"),
		SourceCredibility:    MapFloat(m, "source_credibility"),
		CitationSupport:      MapFloat(m, "citation_support"),
		ContradictionPenalty: MapFloat(m, "contradiction_penalty"),
		VerificationBonus:    MapFloat(m, "verification_bonus"),
		MutationDecay:        MapFloat(m, "mutation_decay"),
		Composite:            MapFloat(m, "composite"),
		MutationDepth:        MapInt(m, "mutation_depth"),
	}
}

// MutationMetrics quantifies a claim's mutation chain
type MutationMetrics struct {
	ClaimID           int64              `json:"claim_id"`
	ChainLength       int                `json:"chain_length"`
	ShannonEntropy    float64            `json:"shannon_entropy"`
	DriftVelocity     float64            `json:"drift_velocity"`
	MaxDiffRatio      float64            `json:"max_diff_ratio"`
	SemanticStability float64            `json:"semantic_stability"`
	StepDiffs         []float64          `json:"step_diffs,omitempty"`
	CharDistribution  map[string]float64 `json:"char_distribution,omitempty"`
}

// ToMap flattens the metrics for serialization. StepDiffs is summarized
// by its length and CharDistribution stays off the flat form; both
// remain on the struct.
func (m *MutationMetrics) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":           m.ClaimID,
		"chain_length":       m.ChainLength,
		"shannon_entropy":    Round6(m.ShannonEntropy),
		"drift_velocity":     Round6(m.DriftVelocity),
		"max_diff_ratio":     Round6(m.MaxDiffRatio),
		"semantic_stability": Round6(m.SemanticStability),
		"step_count":         len(m.StepDiffs),
	}
}

// MutationMetricsFromMap rebuilds metrics from their flat map form
func MutationMetricsFromMap(mm map[string]interface{}) *MutationMetrics {
	return &MutationMetrics{
		ClaimID:           MapInt64(mm, "claim_id"),
		ChainLength:       MapInt(mm, "chain_length"),
		ShannonEntropy:    MapFloat(mm, "shannon_entropy"),
		DriftVelocity:     MapFloat(mm, "drift_velocity"),
		MaxDiffRatio:      MapFloat(mm, "max_diff_ratio"),
		SemanticStability: MapFloat(mm, "semantic_stability"),
	}
}

// CitationMetrics is the citation density analysis for a single claim
type CitationMetrics struct {
	ClaimID             int64   `json:"claim_id"`
	DirectCitations     int     `json:"direct_citations"`
	UniqueSources       int     `json:"unique_sources"`
	SupportingClaims    int     `json:"supporting_claims"`
	ContradictingClaims int     `json:"contradicting_claims"`
	EntityCoOccurrences int     `json:"entity_co_occurrences"`
	CitationDepth       int     `json:"citation_depth"`
	DensityScore        float64 `json:"density_score"`
}

// ToMap flattens the metrics for serialization
func (c *CitationMetrics) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":              c.ClaimID,
		"direct_citations":      c.DirectCitations,
		"unique_sources":        c.UniqueSources,
		"supporting_claims":     c.SupportingClaims,
		"contradicting_claims":  c.ContradictingClaims,
		"entity_co_occurrences": c.EntityCoOccurrences,
		"citation_depth":        c.CitationDepth,
		"density_score":         Round6(c.DensityScore),
	}
}

// CitationMetricsFromMap rebuilds metrics from their flat map form
func CitationMetricsFromMap(m map[string]interface{}) *CitationMetrics {
	return &CitationMetrics{
		ClaimID:             MapInt64(m, "claim_id"),
		DirectCitations:     MapInt(m, "direct_citations"),
		UniqueSources:       MapInt(m, "unique_sources"),
		SupportingClaims:    MapInt(m, "supporting_claims"),
		ContradictingClaims: MapInt(m, "contradicting_claims"),
		EntityCoOccurrences: MapInt(m, "entity_co_occurrences"),
		CitationDepth:       MapInt(m, "citation_depth"),
		DensityScore:        MapFloat(m, "density_score"),
	}
}

// ContradictionProfile is the contradiction analysis for a single claim
type ContradictionProfile struct {
	ClaimID            int64   `json:"claim_id"`
	ClaimText          string  `json:"claim_text"`
	ContradictionCount int     `json:"contradiction_count"`
	TensionScore       float64 `json:"tension_score"`
	ContradictingIDs   []int64 `json:"contradicting_ids,omitempty"`
	IsContested        bool    `json:"is_contested"`
}

// ToMap flattens the profile for serialization
func (p *ContradictionProfile) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":            p.ClaimID,
		"claim_text":          truncate(p.ClaimText, 100),
		"contradiction_count": p.ContradictionCount,
		"tension_score":       Round6(p.TensionScore),
		"is_contested":        p.IsContested,
	}
}

// ContradictionProfileFromMap rebuilds a profile from its flat map form
func ContradictionProfileFromMap(m map[string]interface{}) *ContradictionProfile {
	return &ContradictionProfile{
		ClaimID:            MapInt64(m, "claim_id"),
		ClaimText:          MapString(m, "claim_text"),
		ContradictionCount: MapInt(m, "contradiction_count"),
		TensionScore:       MapFloat(m, "tension_score"),
		IsContested:        MapBool(m, "is_contested"),
	}
}

// ConflictCluster is a maximal set of claims transitively linked by
// "contradicts" edges
type ConflictCluster struct {
	ClusterID     int     `json:"cluster_id"`
	ClaimIDs      []int64 `json:"claim_ids"`
	TotalTension  float64 `json:"total_tension"`
	CenterClaimID int64   `json:"center_claim_id"`
	Size          int     `json:"size"`
}

// ToMap flattens the cluster for serialization
func (c *ConflictCluster) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"cluster_id":      c.ClusterID,
		"total_tension":   Round6(c.TotalTension),
		"center_claim_id": c.CenterClaimID,
		"size":            c.Size,
	}
}

// PropagationMetrics is the propagation analysis for a single claim
type PropagationMetrics struct {
	ClaimID             int64   `json:"claim_id"`
	TotalSpread         int     `json:"total_spread"`
	UniqueSources       int     `json:"unique_sources"`
	AmplificationFactor float64 `json:"amplification_factor"`
	Velocity            float64 `json:"velocity"`
	TimeSpanHours       float64 `json:"time_span_hours"`
	CascadeDepth        int     `json:"cascade_depth"`
	EventCount          int     `json:"event_count"`
}

// ToMap flattens the metrics for serialization
func (p *PropagationMetrics) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"claim_id":             p.ClaimID,
		"total_spread":         p.TotalSpread,
		"unique_sources":       p.UniqueSources,
		"amplification_factor": Round6(p.AmplificationFactor),
		"velocity":             Round6(p.Velocity),
		"time_span_hours":      Round6(p.TimeSpanHours),
		"cascade_depth":        p.CascadeDepth,
		"event_count":          p.EventCount,
	}
}

// PropagationMetricsFromMap rebuilds metrics from their flat map form
func PropagationMetricsFromMap(m map[string]interface{}) *PropagationMetrics {
	return &PropagationMetrics{
		ClaimID:             MapInt64(m, "claim_id"),
		TotalSpread:         MapInt(m, "total_spread"),
		UniqueSources:       MapInt(m, "unique_sources"),
		AmplificationFactor: MapFloat(m, "amplification_factor"),
		Velocity:            MapFloat(m, "velocity"),
		TimeSpanHours:       MapFloat(m, "time_span_hours"),
		CascadeDepth:        MapInt(m, "cascade_depth"),
		EventCount:          MapInt(m, "event_count"),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
