package model

import "time"

// AuditEvent is a structured record of a change made by the pipeline.
type AuditEvent struct {
	EntityID  string            `json:"entity_id"`
	Kind      EntityKind        `json:"entity_kind"`
	Action    string            `json:"action"`
	Before    map[string]string `json:"before,omitempty"`
	After     map[string]string `json:"after,omitempty"`
	Actor     string            `json:"actor"`
	SessionID string            `json:"session_id,omitempty"`
	At        time.Time         `json:"at"`
}
