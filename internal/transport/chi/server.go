package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/menudex/internal/domain"
	"github.com/kailas-cloud/menudex/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/menudex/internal/usecase/health"
	"github.com/kailas-cloud/menudex/internal/usecase/retrieval"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	retriever     Retriever
	rebuilder     Rebuilder
	index         IndexInspector
	health        HealthChecker
	currency      string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. currency prefixes prices in the chat reply.
func NewServer(
	retriever Retriever,
	rebuilder Rebuilder,
	index IndexInspector,
	health HealthChecker,
	currency string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		retriever: retriever,
		rebuilder: rebuilder,
		index:     index,
		health:    health,
		currency:  currency,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeProviderError),
		sentinelHandler(domain.ErrCatalogUnavailable, http.StatusServiceUnavailable, ErrorCodeCatalogError),
	}
	return s
}

// Search handles POST /v1/search.
// Collaborator failures still answer 200; the reason field says what happened.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := searchRequestFromAPI(body)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := s.retriever.Retrieve(r.Context(), &req)

	items := make([]SearchResultItem, len(out.Results))
	for i := range out.Results {
		items[i] = searchResultToAPI(&out.Results[i])
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Results: items,
		Reason:  string(out.Reason),
		Reply:   retrieval.FormatReply(out.Normalized, out.Results, s.currency),
		Signals: out.Signals,
	})
}

// RebuildIndex handles POST /v1/index/rebuild.
// With ?wait=true it rebuilds synchronously and returns the report.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "wait must be a boolean")
			return
		}
		wait = b
	}

	if !wait {
		s.rebuilder.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
		return
	}

	rep, err := s.rebuilder.Rebuild(r.Context())
	status := http.StatusOK
	if err != nil {
		s.logger.Warn("rebuild failed", zap.Error(err))
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, reportToAPI(&rep))
}

// IndexStatus handles GET /v1/index/status.
func (s *Server) IndexStatus(w http.ResponseWriter, _ *http.Request) {
	resp := IndexStatusResponse{Items: s.index.Count()}
	if gen, ok := s.index.Current(); ok {
		resp.Generation = generationToAPI(gen)
	}
	if rep, ok := s.rebuilder.Last(); ok {
		apiRep := reportToAPI(&rep)
		resp.LastRebuild = &apiRep
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func searchRequestFromAPI(body SearchRequest) (request.Request, error) {
	opts := []request.Option{
		request.WithVegetarianOnly(body.VegetarianOnly),
		request.WithVeganOnly(body.VeganOnly),
		request.WithCategory(body.Category),
	}
	if body.TopK != nil {
		if *body.TopK <= 0 {
			return request.Request{}, fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidRequest)
		}
		opts = append(opts, request.WithTopK(*body.TopK))
	}
	if body.MaxPrice != nil {
		opts = append(opts, request.WithMaxPrice(*body.MaxPrice))
	}
	return request.New(body.Query, opts...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	// validation messages are client-facing
	if errors.Is(err, domain.ErrInvalidRequest) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrEmbeddingProviderError,
		domain.ErrCatalogUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
