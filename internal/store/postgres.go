package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/db"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with its own connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	var maxConns, minConns int32
	if poolCfg != nil {
		maxConns, minConns = poolCfg.MaxConns, poolCfg.MinConns
	}
	pool, err := db.Connect(ctx, connString, maxConns, minConns)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresStore wraps an existing pool. Close is a no-op.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that keep
// their own tables (signal weights, phase log, audit).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS companies (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	domain         TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	employee_count INTEGER,
	linkedin_url   TEXT NOT NULL DEFAULT '',
	industry       TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	locked_fields  TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_status ON companies(status);
CREATE INDEX IF NOT EXISTS idx_companies_domain ON companies(domain);
CREATE INDEX IF NOT EXISTS idx_companies_name_trgm ON companies USING gin (name gin_trgm_ops);

CREATE TABLE IF NOT EXISTS people (
	id             TEXT PRIMARY KEY,
	company_id     TEXT NOT NULL DEFAULT '',
	company_domain TEXT NOT NULL DEFAULT '',
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	full_name      TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	seniority      TEXT NOT NULL DEFAULT '',
	department     TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	linkedin_url   TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	industry       TEXT NOT NULL DEFAULT '',
	employee_count INTEGER,
	status         TEXT NOT NULL DEFAULT 'pending',
	locked_fields  TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_people_company ON people(company_id);
CREATE INDEX IF NOT EXISTS idx_people_company_domain ON people(company_domain);
CREATE INDEX IF NOT EXISTS idx_people_email ON people(lower(email));
CREATE INDEX IF NOT EXISTS idx_people_linkedin ON people(linkedin_url);

CREATE TABLE IF NOT EXISTS company_slots (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL REFERENCES companies(id),
	slot_type  TEXT NOT NULL,
	is_filled  BOOLEAN NOT NULL DEFAULT false,
	person_id  TEXT,
	UNIQUE (company_id, slot_type)
);

CREATE TABLE IF NOT EXISTS enrichment_attempts (
	id           BIGSERIAL PRIMARY KEY,
	person_id    TEXT NOT NULL,
	status       TEXT NOT NULL,
	provider     TEXT NOT NULL DEFAULT '',
	fields       JSONB,
	attempted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_enrichment_person ON enrichment_attempts(person_id, attempted_at DESC);

CREATE TABLE IF NOT EXISTS email_verifications (
	id           BIGSERIAL PRIMARY KEY,
	person_id    TEXT NOT NULL,
	email        TEXT NOT NULL,
	status       TEXT NOT NULL,
	attempted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_verification_person ON email_verifications(person_id, attempted_at DESC);

CREATE TABLE IF NOT EXISTS validation_failures (
	id          BIGSERIAL PRIMARY KEY,
	entity_id   TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	run_id      TEXT NOT NULL DEFAULT '',
	field       TEXT NOT NULL,
	rule        TEXT NOT NULL,
	message     TEXT NOT NULL,
	severity    TEXT NOT NULL,
	value       TEXT NOT NULL DEFAULT '',
	fixed_value TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_failures_entity ON validation_failures(entity_id, status);

CREATE TABLE IF NOT EXISTS match_fallout (
	id              BIGSERIAL PRIMARY KEY,
	run_id          TEXT NOT NULL DEFAULT '',
	entity_kind     TEXT NOT NULL,
	input_name      TEXT NOT NULL,
	input_key       TEXT NOT NULL DEFAULT '',
	best_candidate  TEXT NOT NULL DEFAULT '',
	best_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	attempts        JSONB NOT NULL DEFAULT '[]',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS company_readiness (
	company_id    TEXT PRIMARY KEY,
	ready         BOOLEAN NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	passed_checks INTEGER NOT NULL,
	total_checks  INTEGER NOT NULL,
	slots         JSONB NOT NULL,
	evaluated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scores (
	entity_id            TEXT PRIMARY KEY,
	entity_kind          TEXT NOT NULL,
	total                INTEGER NOT NULL,
	contact_completeness INTEGER NOT NULL,
	data_richness        INTEGER NOT NULL,
	seniority            INTEGER NOT NULL,
	engagement           INTEGER NOT NULL,
	segment              TEXT NOT NULL,
	signal_baseline      INTEGER NOT NULL DEFAULT 0,
	engagement_tier      TEXT NOT NULL DEFAULT '',
	weight_version       INTEGER NOT NULL DEFAULT 0,
	scored_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS score_history (LIKE scores);
CREATE INDEX IF NOT EXISTS idx_score_history_entity ON score_history(entity_id, scored_at DESC);

CREATE TABLE IF NOT EXISTS signal_weight_sets (
	version    INTEGER PRIMARY KEY,
	active     BOOLEAN NOT NULL DEFAULT false,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_signal_weight_sets_active ON signal_weight_sets(active) WHERE active;

CREATE TABLE IF NOT EXISTS signal_weights (
	version           INTEGER NOT NULL REFERENCES signal_weight_sets(version),
	signal            TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	weight            INTEGER NOT NULL,
	events            INTEGER NOT NULL DEFAULT 0,
	conversions       INTEGER NOT NULL DEFAULT 0,
	avg_deal_value    DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_optimized_at TIMESTAMPTZ,
	PRIMARY KEY (version, signal)
);

CREATE TABLE IF NOT EXISTS signal_events (
	id          BIGSERIAL PRIMARY KEY,
	entity_id   TEXT NOT NULL,
	signal      TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	closed_won  BOOLEAN NOT NULL DEFAULT false,
	deal_value  DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_signal_events_entity ON signal_events(entity_id);
CREATE INDEX IF NOT EXISTS idx_signal_events_occurred ON signal_events(occurred_at);

CREATE TABLE IF NOT EXISTS phase_log (
	id          BIGSERIAL PRIMARY KEY,
	entity_id   TEXT NOT NULL,
	phase       TEXT NOT NULL,
	status      TEXT NOT NULL,
	run_id      TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_phase_log_entity ON phase_log(entity_id, phase, id DESC);

CREATE TABLE IF NOT EXISTS entity_phase (
	entity_id  TEXT PRIMARY KEY,
	phase      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id          BIGSERIAL PRIMARY KEY,
	entity_id   TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	action      TEXT NOT NULL,
	before      JSONB,
	after       JSONB,
	actor       TEXT NOT NULL DEFAULT '',
	session_id  TEXT NOT NULL DEFAULT '',
	at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_id, at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}
