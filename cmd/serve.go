package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/readiness"
	"github.com/sells-group/outreach-cli/internal/scoring"
	"github.com/sells-group/outreach-cli/internal/validate"
)

var servePort int

// apiStore is the read side of the store the HTTP API needs.
type apiStore interface {
	Ping(ctx context.Context) error
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	ListSlots(ctx context.Context, companyID string) ([]model.Slot, error)
	ScoreTrend(ctx context.Context, entityID string, limit int) ([]model.Score, error)
	LatestScore(ctx context.Context, entityID string) (*model.Score, error)
}

type auditReader interface {
	List(ctx context.Context, entityID string, limit int) ([]model.AuditEvent, error)
}

type companyEvaluator interface {
	EvaluateCompany(ctx context.Context, id string) (*readiness.Result, error)
}

type phaseReader interface {
	Current(ctx context.Context, entityID string) (model.Phase, error)
	History(ctx context.Context, entityID string, limit int) ([]model.PhaseRecord, error)
}

// api serves the read and evaluate endpoints. Evaluations never write.
type api struct {
	store  apiStore
	eval   companyEvaluator
	phases phaseReader
	audits auditReader
	engine *scoring.Engine
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for validation, readiness, scores and phase state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		engine, err := scoringEngine()
		if err != nil {
			return err
		}
		a := &api{
			store:  env.Store,
			eval:   env.Runner,
			phases: env.Tracker,
			audits: env.AuditLog,
			engine: engine,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(a, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(a *api, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", a.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/validate/company", a.validateCompany)
		r.Post("/validate/person", a.validatePerson)
		r.Post("/score/company", a.scoreCompany)
		r.Post("/score/person", a.scorePerson)

		r.Get("/companies/{id}/validation", a.companyValidation)
		r.Get("/companies/{id}/readiness", a.companyReadiness)
		r.Get("/entities/{id}/score", a.entityScore)
		r.Get("/entities/{id}/scores", a.entityScores)
		r.Get("/entities/{id}/audit", a.entityAudit)
		r.Get("/entities/{id}/phases", a.entityPhases)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type validateCompanyRequest struct {
	Company model.Company `json:"company"`
	Slots   []model.Slot  `json:"slots"`
}

func (a *api) validateCompany(w http.ResponseWriter, r *http.Request) {
	var req validateCompanyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, validate.Company(&req.Company, req.Slots))
}

func (a *api) validatePerson(w http.ResponseWriter, r *http.Request) {
	var p model.Person
	if !decodeBody(w, r, &p) {
		return
	}
	respondJSON(w, http.StatusOK, validate.Person(&p))
}

func (a *api) scoreCompany(w http.ResponseWriter, r *http.Request) {
	var c model.Company
	if !decodeBody(w, r, &c) {
		return
	}
	respondJSON(w, http.StatusOK, a.engine.Company(&c))
}

func (a *api) scorePerson(w http.ResponseWriter, r *http.Request) {
	var p model.Person
	if !decodeBody(w, r, &p) {
		return
	}
	respondJSON(w, http.StatusOK, a.engine.Person(&p))
}

func (a *api) companyValidation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := a.store.GetCompany(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, pipeline.ErrNotFound)
		return
	}
	slots, err := a.store.ListSlots(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, validate.Company(c, slots))
}

func (a *api) companyReadiness(w http.ResponseWriter, r *http.Request) {
	verdict, err := a.eval.EvaluateCompany(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	default:
		respondJSON(w, http.StatusOK, verdict)
	}
}

func (a *api) entityScores(w http.ResponseWriter, r *http.Request) {
	scores, err := a.store.ScoreTrend(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 10))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if scores == nil {
		scores = []model.Score{}
	}
	respondJSON(w, http.StatusOK, scores)
}

func (a *api) entityScore(w http.ResponseWriter, r *http.Request) {
	sc, err := a.store.LatestScore(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
	case sc == nil:
		respondError(w, http.StatusNotFound, pipeline.ErrNotFound)
	default:
		respondJSON(w, http.StatusOK, sc)
	}
}

func (a *api) entityAudit(w http.ResponseWriter, r *http.Request) {
	events, err := a.audits.List(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

type phaseResponse struct {
	EntityID string              `json:"entity_id"`
	Current  model.Phase         `json:"current"`
	History  []model.PhaseRecord `json:"history"`
}

func (a *api) entityPhases(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := a.phases.Current(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	history, err := a.phases.History(r.Context(), id, queryInt(r, "limit", 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if history == nil {
		history = []model.PhaseRecord{}
	}
	respondJSON(w, http.StatusOK, phaseResponse{EntityID: id, Current: current, History: history})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("http handler failed", zap.Error(err))
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
