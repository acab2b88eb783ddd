package model

import "time"

// EnrichmentStatus is the outcome of an enrichment attempt.
type EnrichmentStatus string

const (
	EnrichmentSuccess EnrichmentStatus = "success"
	EnrichmentFailed  EnrichmentStatus = "failed"
	EnrichmentPending EnrichmentStatus = "pending"
)

// VerificationStatus is the outcome of an email verification attempt.
type VerificationStatus string

const (
	VerificationValid   VerificationStatus = "valid"
	VerificationInvalid VerificationStatus = "invalid"
	VerificationUnknown VerificationStatus = "unknown"
)

// Enrichment is one enrichment attempt for a person.
type Enrichment struct {
	PersonID    string            `json:"person_id"`
	Status      EnrichmentStatus  `json:"status"`
	Provider    string            `json:"provider,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	AttemptedAt time.Time         `json:"attempted_at"`
}

// Verification is one email verification attempt for a person.
type Verification struct {
	PersonID    string             `json:"person_id"`
	Email       string             `json:"email"`
	Status      VerificationStatus `json:"status"`
	AttemptedAt time.Time          `json:"attempted_at"`
}

// LatestEnrichment returns the most recent attempt, or nil.
func LatestEnrichment(attempts []Enrichment) *Enrichment {
	var latest *Enrichment
	for i := range attempts {
		if latest == nil || attempts[i].AttemptedAt.After(latest.AttemptedAt) {
			latest = &attempts[i]
		}
	}
	return latest
}

// LatestVerification returns the most recent attempt, or nil.
func LatestVerification(attempts []Verification) *Verification {
	var latest *Verification
	for i := range attempts {
		if latest == nil || attempts[i].AttemptedAt.After(latest.AttemptedAt) {
			latest = &attempts[i]
		}
	}
	return latest
}
