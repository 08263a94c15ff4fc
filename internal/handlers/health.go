package handlers

import (
	"context"
	"net/http"
	"time"

	"studyrag/internal/contextutil"
	"studyrag/internal/logger"
	"studyrag/internal/vectorstore"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ModelChecker reports whether the chat model is reachable.
type ModelChecker interface {
	CheckModel(ctx context.Context) error
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	db                 Pinger
	vectorStore        vectorstore.VectorStore
	model              ModelChecker
	collectionName     string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. model may be nil, in which
// case the LLM is not probed.
func NewHealthHandler(db Pinger, vectorStore vectorstore.VectorStore, model ModelChecker, collectionName string) *HealthHandler {
	return &HealthHandler{
		db:                 db,
		vectorStore:        vectorStore,
		model:              model,
		collectionName:     collectionName,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// Returns 200 OK if healthy or degraded, 503 Service Unavailable if a
// storage dependency is down. An unreachable LLM only degrades the service.
//
// swagger:route GET /api/health healthCheck
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy or degraded
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: System is unhealthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string
	critical := false

	if err := h.db.PingContext(checkCtx); err != nil {
		log.Warn("database health check failed", "error", err)
		checks["database"] = "error"
		issues = append(issues, "database_unavailable")
		critical = true
	} else {
		checks["database"] = "ok"
	}

	if h.checkVectorStore(checkCtx, log) {
		checks["vector_store"] = "ok"
	} else {
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
		critical = true
	}

	if h.model != nil {
		if err := h.model.CheckModel(checkCtx); err != nil {
			log.Warn("llm health check failed", "error", err)
			checks["llm"] = "error"
			issues = append(issues, "llm_unavailable")
		} else {
			checks["llm"] = "ok"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case critical:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	case len(issues) > 0:
		status = "degraded"
	}

	writeJSON(w, ctx, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	})
}

func (h *HealthHandler) checkVectorStore(ctx context.Context, log *logger.Logger) bool {
	if _, err := h.vectorStore.Count(ctx, h.collectionName); err != nil {
		log.Warn("vector store health check failed", "collection", h.collectionName, "error", err)
		return false
	}
	return true
}
