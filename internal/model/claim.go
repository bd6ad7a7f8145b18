package model

import "time"

// Claim represents a single assertion under investigation in the evidence graph
type Claim struct {
	ID           int64        `json:"id"`
	Text         string       `json:"text"`                      // The claim text itself
	Type         ClaimType    `json:"type"`                      // hypothesis, observation, assertion, ...
	FirstSource  string       `json:"first_source,omitempty"`    // Free-form reference to where the claim first appeared
	Confidence   float64      `json:"confidence"`                // Last known composite confidence
	Verification Verification `json:"verification"`              // Verification state
	Parent       *int64       `json:"mutation_parent,omitempty"` // Parent claim ID if this is a mutation
	MutationDiff string       `json:"mutation_diff,omitempty"`   // Stored diff vs. parent text
	Tags         string       `json:"tags,omitempty"`            // Comma-separated tags
	CreatedAt    time.Time    `json:"created_at"`
}

// IsMutation reports whether this claim was recorded as a revision of another
func (c *Claim) IsMutation() bool {
	return c.Parent != nil
}

// ClaimType categorizes the nature of the claim
type ClaimType string

const (
	ClaimHypothesis  ClaimType = "hypothesis"
	ClaimObservation ClaimType = "observation"
	ClaimMeasurement ClaimType = "measurement"
	ClaimAssertion   ClaimType = "assertion"
	ClaimDerived     ClaimType = "derived"
	ClaimRebuttal    ClaimType = "rebuttal"
	ClaimRetraction  ClaimType = "retraction"
	ClaimPrediction  ClaimType = "prediction"
	ClaimHistorical  ClaimType = "historical"
)

// DefaultClaimType is what unknown claim type inputs are coerced to
const DefaultClaimType = ClaimAssertion

// ValidClaimType reports whether t is a known claim type
func ValidClaimType(t ClaimType) bool {
	switch t {
	case ClaimHypothesis, ClaimObservation, ClaimMeasurement, ClaimAssertion,
		ClaimDerived, ClaimRebuttal, ClaimRetraction, ClaimPrediction,
		ClaimHistorical:
		return true
	}
	return false
}

// Verification is the verification state of a claim
type Verification string

const (
	VerifUnverified   Verification = "unverified"
	VerifSupported    Verification = "supported"
	VerifContradicted Verification = "contradicted"
	VerifDisputed     Verification = "disputed"
	VerifRetracted    Verification = "retracted"
	VerifConfirmed    Verification = "confirmed"
)

// DefaultVerification is what unknown verification inputs are coerced to
const DefaultVerification = VerifUnverified

// ValidVerification reports whether v is a known verification state
func ValidVerification(v Verification) bool {
	switch v {
	case VerifUnverified, VerifSupported, VerifContradicted,
		VerifDisputed, VerifRetracted, VerifConfirmed:
		return true
	}
	return false
}

// Source represents a source of evidence. Immutable after creation.
type Source struct {
	ID          int64      `json:"id"`
	Type        SourceType `json:"type"`
	Title       string     `json:"title"`
	Locator     string     `json:"locator,omitempty"` // URL, file path, archive reference
	Author      string     `json:"author,omitempty"`
	PublishedAt time.Time  `json:"published_at,omitempty"`
	Credibility float64    `json:"credibility"` // [0, 1]
	CreatedAt   time.Time  `json:"created_at"`
}

// SourceType classifies a source of evidence
type SourceType string

const (
	SourceDocument      SourceType = "document"
	SourceURL           SourceType = "url"
	SourceArchive       SourceType = "archive"
	SourceFOIAResponse  SourceType = "foia_response"
	SourceAcademicPaper SourceType = "academic_paper"
	SourcePatent        SourceType = "patent"
	SourceTestimony     SourceType = "testimony"
	SourceMeasurement   SourceType = "measurement"
	SourceCalculation   SourceType = "calculation"
)

// DefaultSourceType is what unknown source type inputs are coerced to
const DefaultSourceType = SourceDocument

// ValidSourceType reports whether t is a known source type
func ValidSourceType(t SourceType) bool {
	switch t {
	case SourceDocument, SourceURL, SourceArchive, SourceFOIAResponse,
		SourceAcademicPaper, SourcePatent, SourceTestimony,
		SourceMeasurement, SourceCalculation:
		return true
	}
	return false
}

// Entity is a lightweight co-occurrence node (person, organization, artifact)
type Entity struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"` // person, organization, location, artifact
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
