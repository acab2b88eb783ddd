package model

import "time"

// Severity ranks a validation failure.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from info (1) to critical (4). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// RuleKind is the closed set of validation rules.
type RuleKind string

const (
	RuleCompanyName     RuleKind = "company_name"
	RuleWebsite         RuleKind = "website_format"
	RuleEmployeeCount   RuleKind = "employee_count"
	RuleCompanyLinkedIn RuleKind = "company_linkedin"
	RuleSlotPresence    RuleKind = "slot_presence"
	RulePersonName      RuleKind = "person_name"
	RuleEmailFormat     RuleKind = "email_format"
	RulePersonLinkedIn  RuleKind = "person_linkedin"
	RuleTitlePresent    RuleKind = "title_present"
)

// FailureStatus tracks human follow-up on a validation failure.
type FailureStatus string

const (
	FailurePending   FailureStatus = "pending"
	FailureResolved  FailureStatus = "resolved"
	FailureEscalated FailureStatus = "escalated"
)

// ValidationFailure is produced for each failed rule.
type ValidationFailure struct {
	ID         int64         `json:"id,omitempty"`
	EntityID   string        `json:"entity_id,omitempty"`
	EntityKind EntityKind    `json:"entity_kind,omitempty"`
	RunID      string        `json:"run_id,omitempty"`
	Field      string        `json:"field"`
	Rule       RuleKind      `json:"rule"`
	Message    string        `json:"message"`
	Severity   Severity      `json:"severity"`
	Value      string        `json:"value,omitempty"`
	FixedValue string        `json:"fixed_value,omitempty"`
	Status     FailureStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at,omitempty"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}
