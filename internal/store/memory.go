package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ndanilov/claimwatch/internal/model"
)

// Memory is an in-process Store used by tests and the default CLI
// configuration. All methods are safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	claims     map[int64]*model.Claim
	claimOrder []int64
	sources    map[int64]*model.Source
	entities   map[int64]*model.Entity
	edges      []*model.Edge
	events     []*model.Event
	series     map[string]map[int64][]SnapshotRow
	alerts     []*model.Alert

	claimSeq  int64
	sourceSeq int64
	entitySeq int64
	edgeSeq   int64
	eventSeq  int64
	snapSeq   int64
	alertSeq  int64
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		claims:   make(map[int64]*model.Claim),
		sources:  make(map[int64]*model.Source),
		entities: make(map[int64]*model.Entity),
		series:   make(map[string]map[int64][]SnapshotRow),
	}
}

// InsertClaim stores a new claim. The mutation parent, if any, must
// already exist; ids are assigned monotonically so parents always sort
// before their children.
func (m *Memory) InsertClaim(_ context.Context, c *model.Claim) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.Parent != nil {
		if _, ok := m.claims[*c.Parent]; !ok {
			return 0, fmt.Errorf("mutation parent %d: %w", *c.Parent, ErrNotFound)
		}
	}

	m.claimSeq++
	cp := *c
	cp.ID = m.claimSeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.claims[cp.ID] = &cp
	m.claimOrder = append(m.claimOrder, cp.ID)
	return cp.ID, nil
}

// GetClaim returns the claim or ErrNotFound
func (m *Memory) GetClaim(_ context.Context, id int64) (*model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.claims[id]
	if !ok {
		return nil, fmt.Errorf("claim %d: %w", id, ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// UpdateClaim overwrites a claim's stored fields
func (m *Memory) UpdateClaim(_ context.Context, c *model.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.claims[c.ID]; !ok {
		return fmt.Errorf("claim %d: %w", c.ID, ErrNotFound)
	}
	cp := *c
	m.claims[c.ID] = &cp
	return nil
}

// SearchClaims returns claims containing the query, case-insensitive,
// oldest first
func (m *Memory) SearchClaims(_ context.Context, query string, limit int) ([]*model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	var out []*model.Claim
	for _, id := range m.claimOrder {
		c := m.claims[id]
		if q == "" || strings.Contains(strings.ToLower(c.Text), q) {
			cp := *c
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ListClaimIDs returns every claim id in ascending order
func (m *Memory) ListClaimIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]int64, len(m.claimOrder))
	copy(out, m.claimOrder)
	return out, nil
}

// ChildrenOf returns the direct mutation children of a claim
func (m *Memory) ChildrenOf(_ context.Context, id int64) ([]*model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Claim
	for _, cid := range m.claimOrder {
		c := m.claims[cid]
		if c.Parent != nil && *c.Parent == id {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// InsertSource stores a new source and returns its id
func (m *Memory) InsertSource(_ context.Context, s *model.Source) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sourceSeq++
	cp := *s
	cp.ID = m.sourceSeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.sources[cp.ID] = &cp
	return cp.ID, nil
}

// GetSource returns the source or ErrNotFound
func (m *Memory) GetSource(_ context.Context, id int64) (*model.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sources[id]
	if !ok {
		return nil, fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

// ListSourceIDs returns every source id in ascending order
func (m *Memory) ListSourceIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]int64, 0, len(m.sources))
	for id := range m.sources {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// InsertEntity stores a new entity and returns its id
func (m *Memory) InsertEntity(_ context.Context, e *model.Entity) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entitySeq++
	cp := *e
	cp.ID = m.entitySeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.entities[cp.ID] = &cp
	return cp.ID, nil
}

// GetEntity returns the entity or ErrNotFound
func (m *Memory) GetEntity(_ context.Context, id int64) (*model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

// ListEntityIDs returns every entity id in ascending order
func (m *Memory) ListEntityIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]int64, 0, len(m.entities))
	for id := range m.entities {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// NodeCounts reports how many claims, sources, and entities exist
func (m *Memory) NodeCounts(_ context.Context) (int64, int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.claims)), int64(len(m.sources)), int64(len(m.entities)), nil
}

// InsertEdge stores a new edge and returns its id
func (m *Memory) InsertEdge(_ context.Context, e *model.Edge) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.edgeSeq++
	cp := *e
	cp.ID = m.edgeSeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.edges = append(m.edges, &cp)
	return cp.ID, nil
}

// EdgesFrom returns all edges originating at ref
func (m *Memory) EdgesFrom(_ context.Context, ref model.NodeRef) ([]*model.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Edge
	for _, e := range m.edges {
		if e.From == ref {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// EdgesTo returns all edges targeting ref
func (m *Memory) EdgesTo(_ context.Context, ref model.NodeRef) ([]*model.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Edge
	for _, e := range m.edges {
		if e.To == ref {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListEdges returns every edge regardless of relation
func (m *Memory) ListEdges(_ context.Context) ([]*model.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.Edge, len(m.edges))
	for i, e := range m.edges {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// EdgesByRelation returns every edge with the given relation
func (m *Memory) EdgesByRelation(_ context.Context, rel model.Relation) ([]*model.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Edge
	for _, e := range m.edges {
		if e.Relation == rel {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// EdgeCount reports the total number of edges
func (m *Memory) EdgeCount(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.edges)), nil
}

// InsertEvent stores a new propagation event and returns its id
func (m *Memory) InsertEvent(_ context.Context, ev *model.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.eventSeq++
	cp := *ev
	cp.ID = m.eventSeq
	if cp.At.IsZero() {
		cp.At = time.Now().UTC()
	}
	m.events = append(m.events, &cp)
	return cp.ID, nil
}

// EventsFor returns a claim's events in chronological order, ties broken
// by insertion order
func (m *Memory) EventsFor(_ context.Context, claimID int64) ([]*model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Event
	for _, ev := range m.events {
		if ev.ClaimID == claimID {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		return out[i].At.Before(out[j].At)
	})
	return out, nil
}

// Append logs one timeline snapshot
func (m *Memory) Append(_ context.Context, series string, claimID int64, payload map[string]interface{}, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if at.IsZero() {
		at = time.Now().UTC()
	}
	byClaim, ok := m.series[series]
	if !ok {
		byClaim = make(map[int64][]SnapshotRow)
		m.series[series] = byClaim
	}
	m.snapSeq++
	cp := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		cp[k] = v
	}
	byClaim[claimID] = append(byClaim[claimID], SnapshotRow{
		ID:      m.snapSeq,
		Series:  series,
		ClaimID: claimID,
		Payload: cp,
		At:      at,
	})
	return nil
}

// History returns the newest rows first, bounded by limit and the
// optional as-of time
func (m *Memory) History(_ context.Context, series string, claimID int64, limit int, before time.Time) ([]SnapshotRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.series[series][claimID]
	out := make([]SnapshotRow, 0, len(rows))
	for _, r := range rows {
		if !before.IsZero() && r.At.After(before) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID > out[j].ID
		}
		return out[i].At.After(out[j].At)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Latest returns the newest row or ErrNotFound
func (m *Memory) Latest(ctx context.Context, series string, claimID int64) (*SnapshotRow, error) {
	rows, err := m.History(ctx, series, claimID, 1, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s for claim %d: %w", series, claimID, ErrNotFound)
	}
	return &rows[0], nil
}

// InsertAlert stores a fired alert and returns its id
func (m *Memory) InsertAlert(_ context.Context, a *model.Alert) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alertSeq++
	cp := *a
	cp.ID = m.alertSeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.alerts = append(m.alerts, &cp)
	return cp.ID, nil
}

// ListAlerts returns matching alerts, newest first
func (m *Memory) ListAlerts(_ context.Context, f AlertFilter) ([]*model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Alert
	for i := len(m.alerts) - 1; i >= 0; i-- {
		a := m.alerts[i]
		if f.ClaimID != 0 && a.ClaimID != f.ClaimID {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Unacknowledged && a.Acknowledged {
			continue
		}
		cp := *a
		out = append(out, &cp)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Acknowledge marks existing alerts for the claim as acknowledged
func (m *Memory) Acknowledge(_ context.Context, claimID int64, typ model.AlertType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, a := range m.alerts {
		if a.ClaimID != claimID || a.Acknowledged {
			continue
		}
		if typ != "" && a.Type != typ {
			continue
		}
		a.Acknowledged = true
		n++
	}
	return n, nil
}

// Close is a no-op for the in-memory store
func (m *Memory) Close() error { return nil }
