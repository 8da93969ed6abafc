package chi

import (
	"time"

	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/query"
	"github.com/kailas-cloud/menudex/internal/domain/search/result"
	cataloguc "github.com/kailas-cloud/menudex/internal/usecase/catalog"
)

// ErrorCode is the machine-readable error code in ErrorResponse.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeRateLimited      ErrorCode = "rate_limited"
	ErrorCodeProviderError    ErrorCode = "embedding_provider_error"
	ErrorCodeCatalogError     ErrorCode = "catalog_unavailable"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query          string   `json:"query"`
	TopK           *int     `json:"top_k,omitempty"`
	MaxPrice       *float64 `json:"max_price,omitempty"`
	VegetarianOnly bool     `json:"vegetarian_only,omitempty"`
	VeganOnly      bool     `json:"vegan_only,omitempty"`
	Category       string   `json:"category,omitempty"`
}

// SearchResultItem is one ranked menu item.
type SearchResultItem struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Category       string  `json:"category,omitempty"`
	Cuisine        string  `json:"cuisine,omitempty"`
	IsVegetarian   bool    `json:"is_vegetarian"`
	IsVegan        bool    `json:"is_vegan"`
	ContainsEgg    bool    `json:"contains_egg"`
	Score          float64 `json:"score"`
	BaseSimilarity float64 `json:"base_similarity"`
	BoostFactor    float64 `json:"boost_factor"`
	FuzzyMatch     float64 `json:"fuzzy_match"`
}

// SearchResponse is the body of a successful POST /v1/search.
type SearchResponse struct {
	Results []SearchResultItem `json:"results"`
	Reason  string             `json:"reason"`
	Reply   string             `json:"reply"`
	Signals query.Signals      `json:"signals"`
}

// GenerationResponse describes the committed index generation.
type GenerationResponse struct {
	ID          string    `json:"id"`
	Items       int       `json:"items"`
	Dimensions  int       `json:"dimensions"`
	CommittedAt time.Time `json:"committed_at"`
}

// RebuildReport is the JSON form of a finished rebuild.
type RebuildReport struct {
	ID         string              `json:"id"`
	Status     string              `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	DurationMs int64               `json:"duration_ms"`
	Items      int                 `json:"items"`
	Skipped    int                 `json:"skipped"`
	Generation *GenerationResponse `json:"generation,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// IndexStatusResponse is the body of GET /v1/index/status.
type IndexStatusResponse struct {
	Items       int                 `json:"items"`
	Generation  *GenerationResponse `json:"generation,omitempty"`
	LastRebuild *RebuildReport      `json:"last_rebuild,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func searchResultToAPI(r *result.Scored) SearchResultItem {
	md := r.Metadata()
	return SearchResultItem{
		ID:             r.ID(),
		Name:           md.Name,
		Price:          md.Price,
		Category:       md.Category,
		Cuisine:        md.Cuisine,
		IsVegetarian:   md.IsVegetarian,
		IsVegan:        md.IsVegan,
		ContainsEgg:    md.ContainsEgg,
		Score:          r.Score(),
		BaseSimilarity: r.BaseSimilarity(),
		BoostFactor:    r.BoostFactor(),
		FuzzyMatch:     r.FuzzyMatch(),
	}
}

func generationToAPI(g catalog.Generation) *GenerationResponse {
	if g.ID == "" {
		return nil
	}
	return &GenerationResponse{
		ID:          g.ID,
		Items:       g.Items,
		Dimensions:  g.Dimensions,
		CommittedAt: g.CommittedAt.UTC(),
	}
}

func reportToAPI(r *cataloguc.Report) RebuildReport {
	out := RebuildReport{
		ID:         r.ID,
		Status:     "success",
		StartedAt:  r.StartedAt.UTC(),
		DurationMs: r.Duration.Milliseconds(),
		Items:      r.Items,
		Skipped:    r.Skipped,
		Generation: generationToAPI(r.Generation),
	}
	if r.Err != nil {
		out.Status = "failure"
		out.Error = r.Err.Error()
	}
	return out
}
