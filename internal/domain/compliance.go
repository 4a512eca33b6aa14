package domain

import (
	"time"

	id "agegate/pkg/domain"
)

// ProofArtifacts is the structured verification payload recorded with each
// compliance event. It carries derived booleans, a score, and commitment
// hashes only; raw identity attributes never land here.
type ProofArtifacts struct {
	AgeVerified     bool    `json:"age_verified"`
	AddressVerified bool    `json:"address_verified"`
	Confidence      float64 `json:"confidence"`
	AgeProofHash    string  `json:"age_proof_hash"`
	AddressHash     string  `json:"address_hash"`
}

// ComplianceEvent is the append-only audit record for one completed or
// rejected verification attempt. The id is chronologically sortable (UUIDv7).
// After creation the only permitted mutation is attaching a late-arriving
// anchor reference.
type ComplianceEvent struct {
	ID        string
	AttemptID id.AttemptID

	// BuyerID is the owning foreign key. Anonymize sets it to nil while the
	// reference ids below stay forever.
	BuyerID *id.BuyerID

	BuyerReferenceID  id.ReferenceID
	DealerReferenceID id.ReferenceID

	Payload ProofArtifacts

	AgeVerified     bool
	AddressVerified bool
	Confidence      float64

	// AnchorRef points at the external ledger anchor, when one was obtained.
	AnchorRef string

	CreatedAt time.Time
}

// LedgerFilter narrows compliance ledger queries.
type LedgerFilter struct {
	From            *time.Time
	To              *time.Time
	AgeVerified     *bool
	AddressVerified *bool
}

// Page bounds a ledger query. Zero Limit falls back to the store default.
type Page struct {
	Limit  int
	Offset int
}
