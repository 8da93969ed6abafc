package chi

import (
	"context"

	"github.com/kailas-cloud/menudex/internal/domain/catalog"
	"github.com/kailas-cloud/menudex/internal/domain/search/request"
	cataloguc "github.com/kailas-cloud/menudex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/menudex/internal/usecase/health"
	"github.com/kailas-cloud/menudex/internal/usecase/retrieval"
)

// Retriever answers menu queries.
type Retriever interface {
	Retrieve(ctx context.Context, req *request.Request) retrieval.Outcome
}

// Rebuilder rebuilds the index synchronously or on request.
type Rebuilder interface {
	Rebuild(ctx context.Context) (cataloguc.Report, error)
	Trigger()
	Last() (cataloguc.Report, bool)
}

// IndexInspector exposes the committed index generation.
type IndexInspector interface {
	Current() (catalog.Generation, bool)
	Count() int
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
