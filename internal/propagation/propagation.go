// Package propagation tracks how claims spread through the evidence
// graph over time: event logging, spread and amplification metrics,
// cascade depth, and velocity.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/ndanilov/claimwatch/internal/graph"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
)

const (
	// CascadeMaxDepth bounds the support-chain BFS
	CascadeMaxDepth = 10

	// minSpanHours floors the time span so velocity stays finite
	minSpanHours = 0.001
)

// Tracker computes propagation metrics and maintains the event log
type Tracker struct {
	graph  *graph.Engine
	events store.EdgeStore
	logger *slog.Logger
}

// New creates a propagation tracker
func New(g *graph.Engine, events store.EdgeStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{graph: g, events: events, logger: logger}
}

// LogEvent appends one propagation event for a claim. Unknown event
// types are rejected rather than coerced: the event log is append-only,
// so a miscategorized row cannot be corrected later.
func (t *Tracker) LogEvent(ctx context.Context, ev *model.Event) (int64, error) {
	if !model.ValidEventType(ev.Type) {
		return 0, fmt.Errorf("unknown event type %q", ev.Type)
	}
	id, err := t.events.InsertEvent(ctx, ev)
	if err != nil {
		return 0, fmt.Errorf("logging %s event for claim %d: %w", ev.Type, ev.ClaimID, err)
	}
	t.logger.Debug("propagation event logged",
		"event_id", id, "claim_id", ev.ClaimID, "type", string(ev.Type))
	return id, nil
}

// Events returns a claim's propagation events in chronological order
func (t *Tracker) Events(ctx context.Context, claimID int64) ([]*model.Event, error) {
	return t.events.EventsFor(ctx, claimID)
}

// Analyze computes the full propagation metrics for one claim. A
// missing claim yields a zero-value result.
func (t *Tracker) Analyze(ctx context.Context, claimID int64) (*model.PropagationMetrics, error) {
	if _, err := t.graph.Claim(ctx, claimID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &model.PropagationMetrics{ClaimID: claimID}, nil
		}
		return nil, fmt.Errorf("analyzing propagation for claim %d: %w", claimID, err)
	}

	metrics := &model.PropagationMetrics{ClaimID: claimID}
	ref := model.ClaimRef(claimID)

	outbound, err := t.graph.EdgesFrom(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("analyzing propagation for claim %d: %w", claimID, err)
	}
	inbound, err := t.graph.EdgesTo(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("analyzing propagation for claim %d: %w", claimID, err)
	}

	spread := make(map[model.NodeRef]bool)
	sources := make(map[int64]bool)
	all := make([]*model.Edge, 0, len(outbound)+len(inbound))
	all = append(all, outbound...)
	all = append(all, inbound...)
	for _, e := range all {
		if e.Relation.Supportive() || e.Relation == model.RelDerivesFrom {
			if e.From.Kind == model.KindSource {
				sources[e.From.ID] = true
			}
			if e.To.Kind == model.KindSource {
				sources[e.To.ID] = true
			}
			spread[e.From] = true
			spread[e.To] = true
		}
	}

	mutations, err := t.graph.Mutations(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("analyzing propagation for claim %d: %w", claimID, err)
	}
	metrics.TotalSpread = len(spread) + len(mutations)
	metrics.UniqueSources = len(sources)

	var outSupports, inSupports int
	for _, e := range outbound {
		if e.Relation.Supportive() {
			outSupports++
		}
	}
	for _, e := range inbound {
		if e.Relation.Supportive() {
			inSupports++
		}
	}
	metrics.AmplificationFactor = float64(outSupports) / float64(inSupports+1)

	if metrics.CascadeDepth, err = t.cascadeDepth(ctx, claimID); err != nil {
		return nil, fmt.Errorf("analyzing propagation for claim %d: %w", claimID, err)
	}

	events, err := t.events.EventsFor(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("analyzing propagation for claim %d: %w", claimID, err)
	}
	metrics.EventCount = len(events)
	if len(events) > 0 {
		span := events[len(events)-1].At.Sub(events[0].At).Hours()
		if span < minSpanHours {
			span = minSpanHours
		}
		metrics.TimeSpanHours = span
		metrics.Velocity = float64(len(events)) / span
	}

	t.logger.Debug("propagation analyzed",
		"claim_id", claimID,
		"spread", metrics.TotalSpread,
		"sources", metrics.UniqueSources,
		"amplification", metrics.AmplificationFactor,
		"velocity", metrics.Velocity,
		"depth", metrics.CascadeDepth)

	return metrics, nil
}

// cascadeDepth finds the maximum depth of outbound support chains via
// BFS, capped at CascadeMaxDepth
func (t *Tracker) cascadeDepth(ctx context.Context, claimID int64) (int, error) {
	type queued struct {
		id    int64
		depth int
	}
	visited := make(map[int64]bool)
	queue := []queued{{id: claimID, depth: 0}}
	maxFound := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.id] || cur.depth > CascadeMaxDepth {
			continue
		}
		visited[cur.id] = true
		if cur.depth > maxFound {
			maxFound = cur.depth
		}

		edges, err := t.graph.EdgesFrom(ctx, model.ClaimRef(cur.id))
		if err != nil {
			return 0, err
		}
		for _, e := range edges {
			if e.To.Kind == model.KindClaim &&
				(e.Relation.Supportive() || e.Relation == model.RelDerivesFrom) {
				queue = append(queue, queued{id: e.To.ID, depth: cur.depth + 1})
			}
		}
	}
	return maxFound, nil
}

// AnalyzeAll computes propagation metrics for every claim
func (t *Tracker) AnalyzeAll(ctx context.Context) ([]*model.PropagationMetrics, error) {
	claims, err := t.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("analyzing all propagation: %w", err)
	}
	results := make([]*model.PropagationMetrics, 0, len(claims))
	for _, c := range claims {
		m, err := t.Analyze(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	t.logger.Info("analyzed propagation", "count", len(results))
	return results, nil
}

// RankedClaim is one entry in a propagation ranking
type RankedClaim struct {
	ClaimID int64   `json:"claim_id"`
	Value   float64 `json:"value"`
	Snippet string  `json:"snippet"`
}

// RankByVelocity returns the top claims by event velocity
func (t *Tracker) RankByVelocity(ctx context.Context, topN int) ([]RankedClaim, error) {
	return t.rank(ctx, topN, func(m *model.PropagationMetrics) float64 { return m.Velocity })
}

// RankByAmplification returns the top claims by amplification factor
func (t *Tracker) RankByAmplification(ctx context.Context, topN int) ([]RankedClaim, error) {
	return t.rank(ctx, topN, func(m *model.PropagationMetrics) float64 { return m.AmplificationFactor })
}

func (t *Tracker) rank(ctx context.Context, topN int, key func(*model.PropagationMetrics) float64) ([]RankedClaim, error) {
	all, err := t.AnalyzeAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return key(all[i]) > key(all[j]) })
	if topN > 0 && len(all) > topN {
		all = all[:topN]
	}

	ranked := make([]RankedClaim, 0, len(all))
	for _, m := range all {
		snippet := "?"
		if claim, err := t.graph.Claim(ctx, m.ClaimID); err == nil {
			snippet = claim.Text
			if len(snippet) > 80 {
				snippet = snippet[:80]
			}
		}
		ranked = append(ranked, RankedClaim{ClaimID: m.ClaimID, Value: key(m), Snippet: snippet})
	}
	return ranked, nil
}

// Backfill scans the graph and generates propagation events from
// existing claims, mutations, and source citations. The first_seen pass
// is idempotent (claims with any events are skipped), but mutation and
// citation events duplicate on repeated runs. Returns the number of
// events logged.
func (t *Tracker) Backfill(ctx context.Context) (int, error) {
	claims, err := t.graph.FindClaims(ctx, "", 0)
	if err != nil {
		return 0, fmt.Errorf("backfilling events: %w", err)
	}

	count := 0
	for _, claim := range claims {
		existing, err := t.events.EventsFor(ctx, claim.ID)
		if err != nil {
			return count, fmt.Errorf("backfilling events: %w", err)
		}
		if len(existing) == 0 {
			if _, err := t.LogEvent(ctx, &model.Event{
				ClaimID:  claim.ID,
				Type:     model.EventFirstSeen,
				Metadata: map[string]string{"source": "backfill"},
				At:       claim.CreatedAt,
			}); err != nil {
				return count, err
			}
			count++
		}

		mutations, err := t.graph.Mutations(ctx, claim.ID)
		if err != nil {
			return count, fmt.Errorf("backfilling events: %w", err)
		}
		for _, mut := range mutations {
			if _, err := t.LogEvent(ctx, &model.Event{
				ClaimID: claim.ID,
				Type:    model.EventMutation,
				Metadata: map[string]string{
					"child_id": strconv.FormatInt(mut.ID, 10),
					"source":   "backfill",
				},
				At: mut.CreatedAt,
			}); err != nil {
				return count, err
			}
			count++
		}

		inbound, err := t.graph.EdgesTo(ctx, model.ClaimRef(claim.ID))
		if err != nil {
			return count, fmt.Errorf("backfilling events: %w", err)
		}
		for _, e := range inbound {
			if e.From.Kind == model.KindSource && e.Relation.Supportive() {
				sourceID := e.From.ID
				if _, err := t.LogEvent(ctx, &model.Event{
					ClaimID:  claim.ID,
					Type:     model.EventCitation,
					SourceID: &sourceID,
					Metadata: map[string]string{"source": "backfill"},
					At:       e.CreatedAt,
				}); err != nil {
					return count, err
				}
				count++
			}
		}
	}

	t.logger.Info("backfilled propagation events", "count", count)
	return count, nil
}

// Summary aggregates propagation statistics across all claims
type Summary struct {
	TotalClaims      int     `json:"total_claims"`
	AvgVelocity      float64 `json:"avg_velocity"`
	MaxVelocity      float64 `json:"max_velocity"`
	AvgAmplification float64 `json:"avg_amplification"`
	MaxAmplification float64 `json:"max_amplification"`
	AvgSpread        float64 `json:"avg_spread"`
	MaxSpread        int     `json:"max_spread"`
	TotalEvents      int     `json:"total_events"`
}

// Summarize computes aggregate propagation statistics
func (t *Tracker) Summarize(ctx context.Context) (*Summary, error) {
	all, err := t.AnalyzeAll(ctx)
	if err != nil {
		return nil, err
	}
	s := &Summary{TotalClaims: len(all)}
	if len(all) == 0 {
		return s, nil
	}

	var sumV, sumA, sumS float64
	for _, m := range all {
		sumV += m.Velocity
		sumA += m.AmplificationFactor
		sumS += float64(m.TotalSpread)
		if m.Velocity > s.MaxVelocity {
			s.MaxVelocity = m.Velocity
		}
		if m.AmplificationFactor > s.MaxAmplification {
			s.MaxAmplification = m.AmplificationFactor
		}
		if m.TotalSpread > s.MaxSpread {
			s.MaxSpread = m.TotalSpread
		}
		s.TotalEvents += m.EventCount
	}
	n := float64(len(all))
	s.AvgVelocity = model.Round6(sumV / n)
	s.MaxVelocity = model.Round6(s.MaxVelocity)
	s.AvgAmplification = model.Round6(sumA / n)
	s.MaxAmplification = model.Round6(s.MaxAmplification)
	s.AvgSpread = model.Round6(sumS / n)
	return s, nil
}

// Snapshot analyzes a claim and appends the result to the propagation
// series so spread can be tracked over time
func (t *Tracker) Snapshot(ctx context.Context, series store.SeriesStore, claimID int64, at time.Time) (*model.PropagationMetrics, error) {
	m, err := t.Analyze(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := series.Append(ctx, store.SeriesPropagation, claimID, m.ToMap(), at); err != nil {
		return nil, fmt.Errorf("recording propagation snapshot for claim %d: %w", claimID, err)
	}
	return m, nil
}
