// Package proof turns decrypted identity attributes into booleans, a score,
// and commitment hashes. Raw PII enters this boundary and never crosses back
// out: callers only ever see derived results.
package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agegate/internal/domain"
	"agegate/internal/platform/config"
)

// Engine evaluates age and address policy against identity attributes.
type Engine struct {
	policy config.Policy
}

func NewEngine(policy config.Policy) *Engine {
	return &Engine{policy: policy}
}

// AgeCheck reports whether someone born on dob is at least thresholdYears old
// at the reference time. Calendar comparison, not day counting, so leap years
// and month rollover behave like a birthday does.
func (e *Engine) AgeCheck(dob time.Time, thresholdYears int, now time.Time) bool {
	if dob.IsZero() || thresholdYears <= 0 {
		return false
	}
	years := now.Year() - dob.Year()
	// Birthday not yet reached this year.
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years >= thresholdYears
}

// AddressMatch scores candidate against reference in [0,1] using the
// configured component weights after normalization.
func (e *Engine) AddressMatch(candidate, reference domain.Address) float64 {
	score := 0.0
	if normalize(candidate.Street) == normalize(reference.Street) {
		score += e.policy.StreetWeight
	}
	if normalize(candidate.City) == normalize(reference.City) {
		score += e.policy.CityWeight
	}
	if normalize(candidate.State) == normalize(reference.State) {
		score += e.policy.StateWeight
	}
	if normalizePostal(candidate.PostalCode) == normalizePostal(reference.PostalCode) {
		score += e.policy.PostalWeight
	}
	return score
}

// normalize uppercases and collapses runs of whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(strings.TrimSpace(s))), " ")
}

// normalizePostal strips non-digits and keeps the first five digits, so
// ZIP+4 matches its plain ZIP.
func normalizePostal(s string) string {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			if digits.Len() == 5 {
				break
			}
		}
	}
	return digits.String()
}

// CommitmentHash produces a deterministic SHA-256 hex digest of v. The input
// is canonicalized by recursively sorting object keys, so two logically
// identical values with different key order hash identically.
func CommitmentHash(v any) (string, error) {
	canonical, err := canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize commitment input: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize round-trips v through generic JSON values. encoding/json
// serializes map keys in sorted order, which gives the canonical form.
func canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Evaluate runs the full check: age, address score, and commitment hashes.
// Only derived artifacts leave this function.
func (e *Engine) Evaluate(attrs domain.IdentityAttributes, shipping domain.Address, now time.Time) (domain.ProofArtifacts, error) {
	ageOK := e.AgeCheck(attrs.DateOfBirth, e.policy.AgeThresholdYears, now)
	score := e.AddressMatch(shipping, attrs.Address)

	ageHash, err := CommitmentHash(map[string]any{
		"date_of_birth": attrs.DateOfBirth.Format("2006-01-02"),
		"threshold":     e.policy.AgeThresholdYears,
		"result":        ageOK,
	})
	if err != nil {
		return domain.ProofArtifacts{}, err
	}
	addressHash, err := CommitmentHash(map[string]any{
		"reference": attrs.Address,
		"candidate": shipping,
		"score":     score,
	})
	if err != nil {
		return domain.ProofArtifacts{}, err
	}

	return domain.ProofArtifacts{
		AgeVerified:     ageOK,
		AddressVerified: score >= e.policy.AddressMatchThreshold,
		Confidence:      score,
		AgeProofHash:    ageHash,
		AddressHash:     addressHash,
	}, nil
}
