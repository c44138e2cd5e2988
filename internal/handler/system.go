package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cabinetdiet/cabinet/internal/model"
	"github.com/cabinetdiet/cabinet/internal/openapi"
	"github.com/cabinetdiet/cabinet/internal/server/middleware"
)

// User facing messages of the system endpoints.
const (
	MsgCSRFError     = "Erreur lors de la génération du token CSRF"
	MsgRouteNotFound = "Route non trouvée."
)

// CSRFIssuer hands out CSRF tokens bound to a cookie secret.
type CSRFIssuer interface {
	IssueToken(w http.ResponseWriter, r *http.Request) (string, error)
}

// SystemHandler serves the endpoints that are not about posts or
// authentication: health, CSRF tokens, the API description and the API
// catch-all.
type SystemHandler struct {
	csrf    CSRFIssuer
	baseURL string
	logger  *slog.Logger
	now     func() time.Time

	docOnce sync.Once
	doc     []byte
	docErr  error
}

// NewSystemHandler creates a new SystemHandler. baseURL is advertised in the
// OpenAPI servers list and may be empty.
func NewSystemHandler(csrf CSRFIssuer, baseURL string, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{csrf: csrf, baseURL: baseURL, logger: logger, now: time.Now}
}

// Health is a liveness probe.
// GET /api/health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// CSRFToken issues a token and sets the csrf-secret cookie it is bound to.
// GET /api/csrf-token
func (h *SystemHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.IssueToken(w, r)
	if err != nil {
		logInternal(h.logger, r, MsgCSRFError, err)
		writeError(w, http.StatusInternalServerError, MsgCSRFError)
		return
	}
	writeJSON(w, http.StatusOK, model.CSRFTokenResponse{CSRFToken: token})
}

// OpenAPI returns the OpenAPI document of this API.
// GET /api/openapi.json
func (h *SystemHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	h.docOnce.Do(func() {
		h.doc, h.docErr = openapi.Generate(h.baseURL).MarshalJSON()
	})
	if h.docErr != nil {
		logInternal(h.logger, r, "openapi document", h.docErr)
		writeError(w, http.StatusInternalServerError, middleware.MsgInternal)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(h.doc)
}

// NotFound answers every unknown /api path.
func (h *SystemHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, MsgRouteNotFound)
}
