package model

import (
	"fmt"
	"time"
)

// NodeKind discriminates the node tables an edge endpoint can reference
type NodeKind string

const (
	KindClaim  NodeKind = "claim"
	KindSource NodeKind = "source"
	KindEntity NodeKind = "entity"
)

// ValidNodeKind reports whether k is a known node kind
func ValidNodeKind(k NodeKind) bool {
	return k == KindClaim || k == KindSource || k == KindEntity
}

// NodeRef is a typed reference to any node in the heterogeneous graph
type NodeRef struct {
	Kind NodeKind `json:"kind"`
	ID   int64    `json:"id"`
}

// ClaimRef builds a NodeRef pointing at a claim
func ClaimRef(id int64) NodeRef { return NodeRef{Kind: KindClaim, ID: id} }

// SourceRef builds a NodeRef pointing at a source
func SourceRef(id int64) NodeRef { return NodeRef{Kind: KindSource, ID: id} }

// EntityRef builds a NodeRef pointing at an entity
func EntityRef(id int64) NodeRef { return NodeRef{Kind: KindEntity, ID: id} }

func (r NodeRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

// Relation classifies an evidence link between two nodes
type Relation string

const (
	RelSupports    Relation = "supports"
	RelContradicts Relation = "contradicts"
	RelDerivesFrom Relation = "derives_from"
	RelReferences  Relation = "references"
	RelCoOccurs    Relation = "co_occurs"
	RelSupersedes  Relation = "supersedes"
)

// DefaultRelation is what unknown relation inputs are coerced to
const DefaultRelation = RelReferences

// ValidRelation reports whether rel is a known relation
func ValidRelation(rel Relation) bool {
	switch rel {
	case RelSupports, RelContradicts, RelDerivesFrom,
		RelReferences, RelCoOccurs, RelSupersedes:
		return true
	}
	return false
}

// Supportive reports whether rel counts as supporting evidence
// (supports and references both do; derives_from only on the outbound side,
// which callers check themselves)
func (r Relation) Supportive() bool {
	return r == RelSupports || r == RelReferences
}

// Edge is a directed weighted evidence link between any two graph nodes.
// Multiple edges between the same pair are allowed.
type Edge struct {
	ID        int64     `json:"id"`
	From      NodeRef   `json:"from"`
	To        NodeRef   `json:"to"`
	Relation  Relation  `json:"relation"`
	Weight    float64   `json:"weight"` // >= 0
	CreatedAt time.Time `json:"created_at"`
}

// EventType classifies a propagation event in a claim's lifecycle
type EventType string

const (
	EventFirstSeen     EventType = "first_seen"
	EventRepost        EventType = "repost"
	EventCitation      EventType = "citation"
	EventMutation      EventType = "mutation"
	EventAmplification EventType = "amplification"
	EventRetraction    EventType = "retraction"
	EventArchive       EventType = "archive"
)

// ValidEventType reports whether t is a known propagation event type
func ValidEventType(t EventType) bool {
	switch t {
	case EventFirstSeen, EventRepost, EventCitation, EventMutation,
		EventAmplification, EventRetraction, EventArchive:
		return true
	}
	return false
}

// Event is an append-only propagation event for a claim
type Event struct {
	ID       int64             `json:"id"`
	ClaimID  int64             `json:"claim_id"`
	Type     EventType         `json:"type"`
	SourceID *int64            `json:"source_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	At       time.Time         `json:"at"`
}
