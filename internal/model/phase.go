package model

import "time"

// Phase identifies a pipeline stage tracked per entity.
type Phase string

const (
	PhaseValidation Phase = "validation"
	PhaseReadiness  Phase = "readiness"
	PhaseScoring    Phase = "scoring"
	PhaseCampaign   Phase = "campaign"
)

// Phases lists the pipeline phases in progression order.
var Phases = []Phase{PhaseValidation, PhaseReadiness, PhaseScoring, PhaseCampaign}

// PhaseStatus is the state of one entity within one phase.
type PhaseStatus string

const (
	PhaseNotStarted PhaseStatus = "not_started"
	PhaseRunning    PhaseStatus = "running"
	PhaseComplete   PhaseStatus = "complete"
	PhaseFailed     PhaseStatus = "failed"
)

// PhaseRecord is an append-only transition log row.
type PhaseRecord struct {
	ID        int64         `json:"id"`
	EntityID  string        `json:"entity_id"`
	Phase     Phase         `json:"phase"`
	Status    PhaseStatus   `json:"status"`
	RunID     string        `json:"run_id,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}
