// Package graph is the heterogeneous claim graph engine: claims, sources,
// and entities joined by weighted evidence edges, with mutation lineage
// and provenance traversal on top of a pluggable store.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ndanilov/claimwatch/internal/cache"
	"github.com/ndanilov/claimwatch/internal/model"
	"github.com/ndanilov/claimwatch/internal/store"
)

const (
	// ProvenanceMaxDepth bounds the provenance traversal
	ProvenanceMaxDepth = 10

	// ProvenanceMaxNodes caps how many nodes one traversal returns
	ProvenanceMaxNodes = 100
)

// Engine exposes the claim graph operations over a store, with an
// optional read-through node cache
type Engine struct {
	nodes    store.NodeStore
	edges    store.EdgeStore
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithCache installs a read-through cache for node lookups
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithLogger sets the engine's logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a graph engine over the given stores
func New(nodes store.NodeStore, edges store.EdgeStore, opts ...Option) *Engine {
	e := &Engine{
		nodes:  nodes,
		edges:  edges,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddClaim validates and stores a new claim, returning its id. Unknown
// enum values are coerced to defaults and logged; confidence clamps to
// [0, 1]. The mutation parent, when set, must already exist.
func (e *Engine) AddClaim(ctx context.Context, c *model.Claim) (int64, error) {
	if c.Text == "" {
		return 0, errors.New("claim text must not be empty")
	}
	if !model.ValidClaimType(c.Type) {
		e.logger.Warn("unknown claim type, coercing to default",
			"type", string(c.Type), "default", string(model.DefaultClaimType))
		c.Type = model.DefaultClaimType
	}
	if !model.ValidVerification(c.Verification) {
		e.logger.Warn("unknown verification state, coercing to default",
			"verification", string(c.Verification), "default", string(model.DefaultVerification))
		c.Verification = model.DefaultVerification
	}
	c.Confidence = clamp01(c.Confidence)

	id, err := e.nodes.InsertClaim(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("adding claim: %w", err)
	}
	return id, nil
}

// AddSource validates and stores a new source, returning its id
func (e *Engine) AddSource(ctx context.Context, s *model.Source) (int64, error) {
	if !model.ValidSourceType(s.Type) {
		e.logger.Warn("unknown source type, coercing to default",
			"type", string(s.Type), "default", string(model.DefaultSourceType))
		s.Type = model.DefaultSourceType
	}
	s.Credibility = clamp01(s.Credibility)

	id, err := e.nodes.InsertSource(ctx, s)
	if err != nil {
		return 0, fmt.Errorf("adding source: %w", err)
	}
	return id, nil
}

// AddEntity stores a new entity, returning its id
func (e *Engine) AddEntity(ctx context.Context, ent *model.Entity) (int64, error) {
	if ent.Name == "" {
		return 0, errors.New("entity name must not be empty")
	}
	id, err := e.nodes.InsertEntity(ctx, ent)
	if err != nil {
		return 0, fmt.Errorf("adding entity: %w", err)
	}
	return id, nil
}

// AddEdge stores a new evidence edge. Unknown relations coerce to the
// default; negative weights floor at zero. Both endpoints must exist.
func (e *Engine) AddEdge(ctx context.Context, edge *model.Edge) (int64, error) {
	if !model.ValidRelation(edge.Relation) {
		e.logger.Warn("unknown relation, coercing to default",
			"relation", string(edge.Relation), "default", string(model.DefaultRelation))
		edge.Relation = model.DefaultRelation
	}
	if edge.Weight < 0 {
		edge.Weight = 0
	}
	if err := e.checkNode(ctx, edge.From); err != nil {
		return 0, fmt.Errorf("edge origin: %w", err)
	}
	if err := e.checkNode(ctx, edge.To); err != nil {
		return 0, fmt.Errorf("edge target: %w", err)
	}

	id, err := e.edges.InsertEdge(ctx, edge)
	if err != nil {
		return 0, fmt.Errorf("adding edge: %w", err)
	}
	return id, nil
}

func (e *Engine) checkNode(ctx context.Context, ref model.NodeRef) error {
	switch ref.Kind {
	case model.KindClaim:
		_, err := e.nodes.GetClaim(ctx, ref.ID)
		return err
	case model.KindSource:
		_, err := e.nodes.GetSource(ctx, ref.ID)
		return err
	case model.KindEntity:
		_, err := e.nodes.GetEntity(ctx, ref.ID)
		return err
	}
	return fmt.Errorf("unknown node kind %q", ref.Kind)
}

// Claim returns a claim by id, through the cache when one is installed
func (e *Engine) Claim(ctx context.Context, id int64) (*model.Claim, error) {
	key := cache.NodeKey(model.ClaimRef(id))
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			if c, ok := v.(*model.Claim); ok {
				return c, nil
			}
		}
	}
	c, err := e.nodes.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, c, e.cacheTTL)
	}
	return c, nil
}

// Source returns a source by id, through the cache when one is installed
func (e *Engine) Source(ctx context.Context, id int64) (*model.Source, error) {
	key := cache.NodeKey(model.SourceRef(id))
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			if s, ok := v.(*model.Source); ok {
				return s, nil
			}
		}
	}
	s, err := e.nodes.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, s, e.cacheTTL)
	}
	return s, nil
}

// Entity returns an entity by id
func (e *Engine) Entity(ctx context.Context, id int64) (*model.Entity, error) {
	return e.nodes.GetEntity(ctx, id)
}

// UpdateClaim overwrites a claim's mutable fields and invalidates its
// cache entry
func (e *Engine) UpdateClaim(ctx context.Context, c *model.Claim) error {
	if !model.ValidVerification(c.Verification) {
		e.logger.Warn("unknown verification state, coercing to default",
			"verification", string(c.Verification), "default", string(model.DefaultVerification))
		c.Verification = model.DefaultVerification
	}
	c.Confidence = clamp01(c.Confidence)

	if err := e.nodes.UpdateClaim(ctx, c); err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.Delete(cache.NodeKey(model.ClaimRef(c.ID)))
	}
	return nil
}

// EdgesFrom returns all edges originating at ref
func (e *Engine) EdgesFrom(ctx context.Context, ref model.NodeRef) ([]*model.Edge, error) {
	return e.edges.EdgesFrom(ctx, ref)
}

// EdgesTo returns all edges targeting ref
func (e *Engine) EdgesTo(ctx context.Context, ref model.NodeRef) ([]*model.Edge, error) {
	return e.edges.EdgesTo(ctx, ref)
}

// FindClaims returns claims whose text contains the query,
// case-insensitive, oldest first
func (e *Engine) FindClaims(ctx context.Context, query string, limit int) ([]*model.Claim, error) {
	return e.nodes.SearchClaims(ctx, query, limit)
}

// MutationChain walks the parent links from the chain root down to the
// given claim, oldest first. Cost is linear in chain depth. An unknown
// claim yields an empty chain, not an error.
func (e *Engine) MutationChain(ctx context.Context, id int64) ([]*model.Claim, error) {
	var chain []*model.Claim
	seen := make(map[int64]bool)

	cur, err := e.Claim(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("mutation chain requested for unknown claim", "claim_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for cur != nil {
		if seen[cur.ID] {
			return nil, fmt.Errorf("mutation cycle at claim %d", cur.ID)
		}
		seen[cur.ID] = true
		chain = append(chain, cur)
		if cur.Parent == nil {
			break
		}
		cur, err = e.Claim(ctx, *cur.Parent)
		if err != nil {
			return nil, fmt.Errorf("walking mutation chain: %w", err)
		}
	}

	// Reverse into root-first order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Mutations returns the direct mutation children of a claim
func (e *Engine) Mutations(ctx context.Context, id int64) ([]*model.Claim, error) {
	return e.nodes.ChildrenOf(ctx, id)
}

// Contradiction pairs a contradicting claim with the edge weight that
// links it
type Contradiction struct {
	Claim  *model.Claim `json:"claim"`
	Weight float64      `json:"weight"`
}

// Contradictions returns every claim linked to the given one by a
// contradicts edge, in either direction
func (e *Engine) Contradictions(ctx context.Context, id int64) ([]Contradiction, error) {
	ref := model.ClaimRef(id)

	out, err := e.edges.EdgesFrom(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("finding contradictions: %w", err)
	}
	in, err := e.edges.EdgesTo(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("finding contradictions: %w", err)
	}

	var result []Contradiction
	appendOther := func(other model.NodeRef, weight float64) error {
		if other.Kind != model.KindClaim {
			return nil
		}
		c, err := e.Claim(ctx, other.ID)
		if err != nil {
			return err
		}
		result = append(result, Contradiction{Claim: c, Weight: weight})
		return nil
	}
	for _, edge := range out {
		if edge.Relation != model.RelContradicts {
			continue
		}
		if err := appendOther(edge.To, edge.Weight); err != nil {
			return nil, err
		}
	}
	for _, edge := range in {
		if edge.Relation != model.RelContradicts {
			continue
		}
		if err := appendOther(edge.From, edge.Weight); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ContradictionPair is one contradicts edge with both endpoints
// resolved. Endpoint texts are filled in when the endpoint is a claim.
type ContradictionPair struct {
	EdgeID   int64         `json:"edge_id"`
	From     model.NodeRef `json:"from"`
	To       model.NodeRef `json:"to"`
	Weight   float64       `json:"weight"`
	FromText string        `json:"from_text,omitempty"`
	ToText   string        `json:"to_text,omitempty"`
}

// FindContradictions returns every contradicts edge in the graph,
// ascending by edge id
func (e *Engine) FindContradictions(ctx context.Context) ([]ContradictionPair, error) {
	edges, err := e.edges.EdgesByRelation(ctx, model.RelContradicts)
	if err != nil {
		return nil, fmt.Errorf("finding contradictions: %w", err)
	}

	claimText := func(ref model.NodeRef) (string, error) {
		if ref.Kind != model.KindClaim {
			return "", nil
		}
		c, err := e.Claim(ctx, ref.ID)
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return c.Text, nil
	}

	pairs := make([]ContradictionPair, 0, len(edges))
	for _, edge := range edges {
		p := ContradictionPair{
			EdgeID: edge.ID,
			From:   edge.From,
			To:     edge.To,
			Weight: edge.Weight,
		}
		if p.FromText, err = claimText(edge.From); err != nil {
			return nil, fmt.Errorf("finding contradictions: %w", err)
		}
		if p.ToText, err = claimText(edge.To); err != nil {
			return nil, fmt.Errorf("finding contradictions: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// Clusters returns the weakly connected components of the whole graph,
// claims, sources, and entities alike. Every node participates, so a
// node with no edges forms a singleton cluster. Components sort by size
// descending, ties by smallest member; members sort claims before
// sources before entities, ascending by id within each kind.
func (e *Engine) Clusters(ctx context.Context) ([][]model.NodeRef, error) {
	claimIDs, err := e.nodes.ListClaimIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("clustering graph: %w", err)
	}
	sourceIDs, err := e.nodes.ListSourceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("clustering graph: %w", err)
	}
	entityIDs, err := e.nodes.ListEntityIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("clustering graph: %w", err)
	}

	uf := newRefUnionFind()
	for _, id := range claimIDs {
		uf.find(model.ClaimRef(id))
	}
	for _, id := range sourceIDs {
		uf.find(model.SourceRef(id))
	}
	for _, id := range entityIDs {
		uf.find(model.EntityRef(id))
	}

	edges, err := e.edges.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("clustering graph: %w", err)
	}
	for _, edge := range edges {
		uf.union(edge.From, edge.To)
	}

	groups := make(map[model.NodeRef][]model.NodeRef)
	for ref := range uf.parent {
		root := uf.find(ref)
		groups[root] = append(groups[root], ref)
	}

	clusters := make([][]model.NodeRef, 0, len(groups))
	for _, members := range groups {
		sort.Slice(members, func(i, j int) bool { return refLess(members[i], members[j]) })
		clusters = append(clusters, members)
	}
	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j])
		}
		return refLess(clusters[i][0], clusters[j][0])
	})
	return clusters, nil
}

func refLess(a, b model.NodeRef) bool {
	if a.Kind != b.Kind {
		return kindRank(a.Kind) < kindRank(b.Kind)
	}
	return a.ID < b.ID
}

func kindRank(k model.NodeKind) int {
	switch k {
	case model.KindClaim:
		return 0
	case model.KindSource:
		return 1
	default:
		return 2
	}
}

type refUnionFind struct {
	parent map[model.NodeRef]model.NodeRef
}

func newRefUnionFind() *refUnionFind {
	return &refUnionFind{parent: make(map[model.NodeRef]model.NodeRef)}
}

func (u *refUnionFind) find(x model.NodeRef) model.NodeRef {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]] // path halving
		x = u.parent[x]
	}
	return x
}

func (u *refUnionFind) union(a, b model.NodeRef) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// ProvenanceNode is one node reached by a provenance traversal
type ProvenanceNode struct {
	Ref      model.NodeRef  `json:"ref"`
	Depth    int            `json:"depth"`
	Relation model.Relation `json:"relation"`
	Inbound  bool           `json:"inbound"`
}

// Provenance walks the evidence neighborhood of a claim breadth-first in
// both edge directions, outbound neighbors before inbound at each node.
// Depth is bounded by ProvenanceMaxDepth and the result is capped at
// ProvenanceMaxNodes entries; the origin itself is not included. An
// unknown claim yields an empty traversal, not an error.
func (e *Engine) Provenance(ctx context.Context, id int64) ([]ProvenanceNode, error) {
	type queued struct {
		ref   model.NodeRef
		depth int
	}

	origin := model.ClaimRef(id)
	if _, err := e.nodes.GetClaim(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("provenance requested for unknown claim", "claim_id", id)
			return nil, nil
		}
		return nil, err
	}

	visited := map[model.NodeRef]bool{origin: true}
	queue := []queued{{ref: origin, depth: 0}}
	var result []ProvenanceNode

	for len(queue) > 0 && len(result) < ProvenanceMaxNodes {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= ProvenanceMaxDepth {
			continue
		}

		out, err := e.edges.EdgesFrom(ctx, cur.ref)
		if err != nil {
			return nil, fmt.Errorf("provenance traversal: %w", err)
		}
		in, err := e.edges.EdgesTo(ctx, cur.ref)
		if err != nil {
			return nil, fmt.Errorf("provenance traversal: %w", err)
		}

		visit := func(next model.NodeRef, rel model.Relation, inbound bool) {
			if visited[next] || len(result) >= ProvenanceMaxNodes {
				return
			}
			visited[next] = true
			result = append(result, ProvenanceNode{
				Ref:      next,
				Depth:    cur.depth + 1,
				Relation: rel,
				Inbound:  inbound,
			})
			queue = append(queue, queued{ref: next, depth: cur.depth + 1})
		}
		for _, edge := range out {
			visit(edge.To, edge.Relation, false)
		}
		for _, edge := range in {
			visit(edge.From, edge.Relation, true)
		}
	}
	return result, nil
}

// Stats summarizes the graph's contents
type Stats struct {
	Claims          int64            `json:"claims"`
	Sources         int64            `json:"sources"`
	Entities        int64            `json:"entities"`
	Edges           int64            `json:"edges"`
	Mutations       int              `json:"mutations"`
	ClaimsByType    map[string]int   `json:"claims_by_type"`
	EdgesByRelation map[string]int64 `json:"edges_by_relation"`
}

// Statistics reports node and edge counts, claims by type, and edges by
// relation
func (e *Engine) Statistics(ctx context.Context) (*Stats, error) {
	claims, sources, entities, err := e.nodes.NodeCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing statistics: %w", err)
	}
	edgeCount, err := e.edges.EdgeCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing statistics: %w", err)
	}

	stats := &Stats{
		Claims:          claims,
		Sources:         sources,
		Entities:        entities,
		Edges:           edgeCount,
		ClaimsByType:    make(map[string]int),
		EdgesByRelation: make(map[string]int64),
	}

	all, err := e.nodes.SearchClaims(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("computing statistics: %w", err)
	}
	for _, c := range all {
		stats.ClaimsByType[string(c.Type)]++
		if c.IsMutation() {
			stats.Mutations++
		}
	}

	for _, rel := range []model.Relation{
		model.RelSupports, model.RelContradicts, model.RelDerivesFrom,
		model.RelReferences, model.RelCoOccurs, model.RelSupersedes,
	} {
		edges, err := e.edges.EdgesByRelation(ctx, rel)
		if err != nil {
			return nil, fmt.Errorf("computing statistics: %w", err)
		}
		if len(edges) > 0 {
			stats.EdgesByRelation[string(rel)] = int64(len(edges))
		}
	}
	return stats, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
