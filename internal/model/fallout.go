package model

import "time"

// Comparison is one candidate considered during fuzzy matching.
type Comparison struct {
	CandidateID   string  `json:"candidate_id"`
	CandidateName string  `json:"candidate_name"`
	Confidence    float64 `json:"confidence"`
}

// Fallout is an unresolved match held for manual reconciliation.
type Fallout struct {
	ID             int64        `json:"id,omitempty"`
	RunID          string       `json:"run_id,omitempty"`
	Kind           EntityKind   `json:"entity_kind"`
	InputName      string       `json:"input_name"`
	InputKey       string       `json:"input_key,omitempty"`
	BestCandidate  string       `json:"best_candidate,omitempty"`
	BestConfidence float64      `json:"best_confidence"`
	Attempts       []Comparison `json:"attempts"`
	CreatedAt      time.Time    `json:"created_at"`
}
