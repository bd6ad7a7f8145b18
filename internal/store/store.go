// Package store defines the persistence interfaces for the claim graph,
// the append-only timeline series, and the alert log, with an in-memory
// implementation for tests and a MySQL implementation for deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ndanilov/claimwatch/internal/model"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("store: not found")

// Timeline series names. Each series is an append-only log keyed by
// claim id with a flat-map payload.
const (
	SeriesConfidence  = "confidence_timeline"
	SeriesEntropy     = "entropy_timeline"
	SeriesStability   = "stability_classifications"
	SeriesPropagation = "propagation_events"
)

// NodeStore persists the three node tables of the claim graph
type NodeStore interface {
	// InsertClaim stores a new claim and returns its id. If the claim
	// names a mutation parent, the parent must already exist; assigned
	// ids increase monotonically, so a parent id is always smaller than
	// its children's.
	InsertClaim(ctx context.Context, c *model.Claim) (int64, error)

	// GetClaim returns the claim or ErrNotFound
	GetClaim(ctx context.Context, id int64) (*model.Claim, error)

	// UpdateClaim overwrites the claim's mutable fields (confidence,
	// verification) in place
	UpdateClaim(ctx context.Context, c *model.Claim) error

	// SearchClaims returns claims whose text contains the query,
	// case-insensitive, oldest first, at most limit rows
	SearchClaims(ctx context.Context, query string, limit int) ([]*model.Claim, error)

	// ListClaimIDs returns every claim id in ascending order
	ListClaimIDs(ctx context.Context) ([]int64, error)

	// ChildrenOf returns the direct mutation children of a claim,
	// ascending by id
	ChildrenOf(ctx context.Context, id int64) ([]*model.Claim, error)

	InsertSource(ctx context.Context, s *model.Source) (int64, error)
	GetSource(ctx context.Context, id int64) (*model.Source, error)

	// ListSourceIDs returns every source id in ascending order
	ListSourceIDs(ctx context.Context) ([]int64, error)

	InsertEntity(ctx context.Context, e *model.Entity) (int64, error)
	GetEntity(ctx context.Context, id int64) (*model.Entity, error)

	// ListEntityIDs returns every entity id in ascending order
	ListEntityIDs(ctx context.Context) ([]int64, error)

	// NodeCounts reports how many claims, sources, and entities exist
	NodeCounts(ctx context.Context) (claims, sources, entities int64, err error)
}

// EdgeStore persists evidence edges and propagation events
type EdgeStore interface {
	InsertEdge(ctx context.Context, e *model.Edge) (int64, error)

	// EdgesFrom returns all edges with the given origin, ascending by id
	EdgesFrom(ctx context.Context, ref model.NodeRef) ([]*model.Edge, error)

	// EdgesTo returns all edges with the given target, ascending by id
	EdgesTo(ctx context.Context, ref model.NodeRef) ([]*model.Edge, error)

	// EdgesByRelation returns every edge of one relation, ascending by id
	EdgesByRelation(ctx context.Context, rel model.Relation) ([]*model.Edge, error)

	// ListEdges returns every edge regardless of relation, ascending by id
	ListEdges(ctx context.Context) ([]*model.Edge, error)

	// EdgeCount reports the total number of edges
	EdgeCount(ctx context.Context) (int64, error)

	InsertEvent(ctx context.Context, ev *model.Event) (int64, error)

	// EventsFor returns a claim's propagation events in chronological
	// order, ties broken by insertion order
	EventsFor(ctx context.Context, claimID int64) ([]*model.Event, error)
}

// SnapshotRow is one appended timeline entry
type SnapshotRow struct {
	ID      int64                  `json:"id"`
	Series  string                 `json:"series"`
	ClaimID int64                  `json:"claim_id"`
	Payload map[string]interface{} `json:"payload"`
	At      time.Time              `json:"at"`
}

// SeriesStore persists append-only timeline series. Rows are never
// updated or deleted.
type SeriesStore interface {
	// Append logs one snapshot for the claim at the given time
	Append(ctx context.Context, series string, claimID int64, payload map[string]interface{}, at time.Time) error

	// History returns the newest rows first, at most limit (0 means no
	// limit). A nonzero before bounds the read to rows at or before it,
	// giving batch scans a consistent as-of view.
	History(ctx context.Context, series string, claimID int64, limit int, before time.Time) ([]SnapshotRow, error)

	// Latest returns the newest row or ErrNotFound
	Latest(ctx context.Context, series string, claimID int64) (*SnapshotRow, error)
}

// AlertFilter narrows an alert listing. Zero fields are ignored.
type AlertFilter struct {
	ClaimID        int64
	Type           model.AlertType
	Severity       model.Severity
	Unacknowledged bool
	Limit          int
}

// AlertStore persists fired alerts
type AlertStore interface {
	InsertAlert(ctx context.Context, a *model.Alert) (int64, error)

	// ListAlerts returns matching alerts, newest first
	ListAlerts(ctx context.Context, f AlertFilter) ([]*model.Alert, error)

	// Acknowledge marks every existing alert for the claim (optionally
	// narrowed to one type) as acknowledged and returns how many rows
	// changed. Alerts fired after the call are unaffected.
	Acknowledge(ctx context.Context, claimID int64, typ model.AlertType) (int64, error)
}

// Store is the full persistence surface the pipeline wires together
type Store interface {
	NodeStore
	EdgeStore
	SeriesStore
	AlertStore

	// Close releases the backend's resources
	Close() error
}
