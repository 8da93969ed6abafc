package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckEmpty indicates an index that has not committed any items yet.
	CheckEmpty CheckResult = "empty"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type check struct {
	name string
	run  func(ctx context.Context) CheckResult
}

// Service coordinates health checks.
type Service struct {
	checks  []check
	timeout time.Duration
}

// Option registers a component with the Service.
type Option func(*Service)

// WithDatabase adds a database check under name.
func WithDatabase(name string, db DBPinger) Option {
	return func(s *Service) {
		s.checks = append(s.checks, check{name: name, run: func(ctx context.Context) CheckResult {
			return resultOf(db.Ping(ctx))
		}})
	}
}

// WithEmbedding adds the embedding provider check.
func WithEmbedding(e EmbeddingChecker) Option {
	return func(s *Service) {
		s.checks = append(s.checks, check{name: "embedding", run: func(ctx context.Context) CheckResult {
			return resultOf(e.HealthCheck(ctx))
		}})
	}
}

// WithIndex adds the vector index check. An empty index degrades health.
func WithIndex(idx IndexCounter) Option {
	return func(s *Service) {
		s.checks = append(s.checks, check{name: "index", run: func(context.Context) CheckResult {
			if idx.Count() == 0 {
				return CheckEmpty
			}
			return CheckOK
		}})
	}
}

// WithTimeout overrides DefaultCheckTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Service.
func New(opts ...Option) *Service {
	s := &Service{timeout: DefaultCheckTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	failed := 0
	for _, c := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		res := c.run(cctx)
		cancel()
		checks[c.name] = res
		if res != CheckOK {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == 0:
	case failed == len(s.checks):
		status = Unhealthy
	default:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}

func resultOf(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
