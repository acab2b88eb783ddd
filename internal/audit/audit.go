// Package audit records structured change events. Sink failures never
// reach the caller; they are reported on the meta_audit logger.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// Sink persists audit events.
type Sink interface {
	Write(ctx context.Context, ev model.AuditEvent) error
}

// Recorder forwards events to a Sink and swallows its errors.
type Recorder struct {
	sink Sink
	meta *zap.Logger
}

// NewRecorder creates a Recorder. A nil sink only logs.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, meta: zap.L().Named("meta_audit")}
}

// Record writes ev. Failures are logged, never returned.
func (r *Recorder) Record(ctx context.Context, ev model.AuditEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if r.sink == nil {
		r.meta.Debug("audit: no sink configured",
			zap.String("entity_id", ev.EntityID),
			zap.String("action", ev.Action),
		)
		return
	}
	if err := r.sink.Write(ctx, ev); err != nil {
		r.meta.Error("audit: sink write failed",
			zap.String("entity_id", ev.EntityID),
			zap.String("entity_kind", string(ev.Kind)),
			zap.String("action", ev.Action),
			zap.Error(err),
		)
	}
}

// PostgresSink writes events to the audit_log table.
type PostgresSink struct {
	pool db.Pool
}

// NewPostgresSink creates a new PostgresSink.
func NewPostgresSink(pool db.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Write(ctx context.Context, ev model.AuditEvent) error {
	before, err := marshalFields(ev.Before)
	if err != nil {
		return err
	}
	after, err := marshalFields(ev.After)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (entity_id, entity_kind, action, before, after, actor, session_id, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.EntityID, string(ev.Kind), ev.Action, before, after, ev.Actor, ev.SessionID, ev.At,
	)
	return eris.Wrapf(err, "audit: insert %s for %s", ev.Action, ev.EntityID)
}

// List returns an entity's audit trail, newest first.
func (s *PostgresSink) List(ctx context.Context, entityID string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, entity_kind, action, before, after, actor, session_id, at
		FROM audit_log WHERE entity_id = $1 ORDER BY at DESC LIMIT $2`,
		entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "audit: list %s", entityID)
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var kind string
		var before, after []byte
		if err := rows.Scan(&ev.EntityID, &kind, &ev.Action, &before, &after, &ev.Actor, &ev.SessionID, &ev.At); err != nil {
			return nil, eris.Wrap(err, "audit: scan event")
		}
		ev.Kind = model.EntityKind(kind)
		ev.Before = unmarshalFields(ev, "before", before)
		ev.After = unmarshalFields(ev, "after", after)
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "audit: iterate events")
}

// unmarshalFields decodes a stored field map. A corrupt payload is reported
// on the meta_audit logger and the event is returned without it.
func unmarshalFields(ev model.AuditEvent, column string, data []byte) map[string]string {
	if len(data) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		zap.L().Named("meta_audit").Warn("audit: corrupt field payload",
			zap.String("entity_id", ev.EntityID),
			zap.String("action", ev.Action),
			zap.Time("at", ev.At),
			zap.String("column", column),
			zap.Error(err),
		)
		return nil
	}
	return m
}

func marshalFields(m map[string]string) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	return b, eris.Wrap(err, "audit: marshal fields")
}
