package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/audit"
	"github.com/sells-group/outreach-cli/internal/monitoring"
	"github.com/sells-group/outreach-cli/internal/phase"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/scoring"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/notion"
	sfpkg "github.com/sells-group/outreach-cli/pkg/salesforce"
	"github.com/sells-group/outreach-cli/pkg/verifier"
)

// pipelineEnv holds the store, phase tracker and runner shared by the
// sweep commands.
type pipelineEnv struct {
	Store    *store.PostgresStore
	Tracker  *phase.Tracker
	Audit    *audit.Recorder
	AuditLog *audit.PostgresSink
	Runner   *pipeline.Runner

	phaseLog *phase.SQLiteLog // nil with the postgres driver
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.phaseLog != nil {
		_ = pe.phaseLog.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline connects the store, migrates it and builds a Runner with a
// fresh run id. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var log phase.Log
	switch cfg.Store.Driver {
	case "sqlite":
		sl, err := phase.NewSQLiteLog(cfg.Store.SQLitePath)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.phaseLog = sl
		if err := sl.Migrate(ctx); err != nil {
			env.Close()
			return nil, eris.Wrap(err, "migrate phase log")
		}
		log = sl
		zap.L().Debug("phase log on sqlite", zap.String("path", cfg.Store.SQLitePath))
	default:
		log = phase.NewPostgresLog(st.Pool())
	}

	runID := pipeline.NewRunID()
	env.Tracker = phase.NewTracker(log, runID)
	env.AuditLog = audit.NewPostgresSink(st.Pool())
	env.Audit = audit.NewRecorder(env.AuditLog)
	env.Runner = pipeline.NewRunner(st, env.Tracker, env.Audit, batchConfig(), runID)

	zap.L().Info("pipeline initialized",
		zap.String("run_id", runID),
		zap.String("phase_log", cfg.Store.Driver),
	)
	return env, nil
}

func batchConfig() pipeline.Config {
	return pipeline.Config{
		Concurrency:   cfg.Batch.Concurrency,
		RecordTimeout: time.Duration(cfg.Batch.RecordTimeoutSecs) * time.Second,
		Limit:         cfg.Batch.Limit,
	}
}

// scoringEngine builds the engine from scoring.weights_file, or the default
// weights when none is configured.
func scoringEngine() (*scoring.Engine, error) {
	if cfg.Scoring.WeightsFile == "" {
		return scoring.NewEngine(scoring.DefaultWeights()), nil
	}
	w, err := scoring.LoadWeights(cfg.Scoring.WeightsFile)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("scoring weights loaded", zap.String("path", cfg.Scoring.WeightsFile))
	return scoring.NewEngine(w), nil
}

func initSalesforce() (sfpkg.Client, error) {
	if err := cfg.Validate("salesforce"); err != nil {
		return nil, err
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf,
		sfpkg.WithRateLimit(cfg.Salesforce.RateRPS),
		sfpkg.WithRetry(resilience.NewRetryConfig(cfg.Salesforce.MaxAttempts, 0)),
	), nil
}

func initNotion() (notion.Client, error) {
	if err := cfg.Validate("notion"); err != nil {
		return nil, err
	}
	return notion.NewClient(cfg.Notion.Token,
		notion.WithRateLimit(cfg.Notion.RateRPS),
		notion.WithRetry(resilience.NewRetryConfig(cfg.Notion.MaxAttempts, 0)),
	), nil
}

func initVerifier() (verifier.Client, error) {
	if err := cfg.Validate("verifier"); err != nil {
		return nil, err
	}
	v := cfg.Verifier
	return verifier.NewClient(v.BaseURL, v.Key,
		verifier.WithRateLimit(v.RateRPS),
		verifier.WithRetry(resilience.NewRetryConfig(v.MaxAttempts, v.InitialBackoffMs)),
		verifier.WithCircuitBreaker(resilience.NewCircuitBreakerConfig(v.FailureThreshold, v.ResetTimeoutSecs)),
	), nil
}

// writeJSON writes v to w as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// finishSweep raises any monitoring alerts for a finished sweep, prints its
// summary and returns the sweep error.
func finishSweep(ctx context.Context, res *pipeline.BatchResult, err error) error {
	monitoring.NewAlerter(cfg.Monitoring).Check(context.WithoutCancel(ctx), res, err)
	if res == nil {
		return err
	}
	if perr := printResult(os.Stdout, res); perr != nil {
		return perr
	}
	return err
}
