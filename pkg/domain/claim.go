package domain

import "time"

// ClaimType classifies a verifiable proposition.
type ClaimType string

const (
	ClaimFact       ClaimType = "fact"
	ClaimStatistic  ClaimType = "statistic"
	ClaimCitation   ClaimType = "citation"
	ClaimComparison ClaimType = "comparison"
)

// Valid reports whether t is a known claim type.
func (t ClaimType) Valid() bool {
	switch t {
	case ClaimFact, ClaimStatistic, ClaimCitation, ClaimComparison:
		return true
	}
	return false
}

// EntityType classifies a named entity.
type EntityType string

const (
	EntityPerson  EntityType = "PERSON"
	EntityOrg     EntityType = "ORG"
	EntityEvent   EntityType = "EVENT"
	EntityGeneric EntityType = "ENTITY"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPerson, EntityOrg, EntityEvent, EntityGeneric:
		return true
	}
	return false
}

// Verdict is the tri-state outcome of verification. Unknown is the default.
type Verdict string

const (
	VerdictTrue    Verdict = "true"
	VerdictFalse   Verdict = "false"
	VerdictUnknown Verdict = "unknown"
)

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool {
	return v == VerdictTrue || v == VerdictFalse || v == VerdictUnknown
}

// Flagged reports whether the verdict warrants an intervention.
func (v Verdict) Flagged() bool {
	return v != VerdictTrue
}

// Evidence is a pointer to supporting material.
type Evidence struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Relation is the structured form of "Subject is the Role of Object".
type Relation struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
	Object  string `json:"object"`
}

// Claim is an atomic, independently verifiable proposition.
type Claim struct {
	ID       string     `json:"id"`
	Text     string     `json:"text"`
	Type     ClaimType  `json:"type"`
	Status   Verdict    `json:"status"`
	Evidence []Evidence `json:"evidence,omitempty"`

	// Relation is set for "X is the R of Y" facts.
	Relation *Relation `json:"relation,omitempty"`

	// MissingSlots lists absent comparison slots (metric, timeframe, population).
	MissingSlots []string `json:"missing_slots,omitempty"`
}

// Subject returns the cache key used for the claim.
func (c Claim) Subject() string {
	return "claim:" + c.Text
}

// Entity is a named thing mentioned in an utterance.
type Entity struct {
	Name     string     `json:"name"`
	Type     EntityType `json:"type"`
	Status   Verdict    `json:"status"`
	Evidence []Evidence `json:"evidence,omitempty"`
}

// Subject returns the cache key used for the entity.
func (e Entity) Subject() string {
	return "entity:" + e.Name
}

// EvidenceCacheEntry is the append-once verdict for a subject.
type EvidenceCacheEntry struct {
	Subject      string    `json:"subject"`
	Verdict      Verdict   `json:"verdict"`
	EvidenceURL  string    `json:"evidence_url,omitempty"`
	EvidenceText string    `json:"evidence_text,omitempty"`
	InsertedAt   time.Time `json:"inserted_at"`
}
