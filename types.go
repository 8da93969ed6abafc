package menudex

import "time"

// Item is one menu record as supplied by a Source.
type Item struct {
	ID           string
	Name         string
	Price        float64
	Category     string // "General" when empty
	Cuisine      string
	SpiceLevel   string // mild, medium, hot; empty means mild
	Description  string
	IsVegetarian bool
	IsVegan      bool
	ContainsEgg  bool
	Ingredients  []string
	Keywords     []string
}

// Reason classifies how a retrieval ended.
type Reason string

// Retrieval outcome reasons. Only ReasonOK carries results.
const (
	ReasonOK              Reason = "ok"
	ReasonNoCandidates    Reason = "no_candidates"
	ReasonEmptyIndex      Reason = "empty_index"
	ReasonProviderFailure Reason = "provider_failure"
	ReasonIndexFailure    Reason = "index_failure"
)

// Result is one ranked menu item with its score breakdown.
type Result struct {
	ID             string
	Name           string
	Price          float64
	Category       string
	Cuisine        string
	IsVegetarian   bool
	IsVegan        bool
	ContainsEgg    bool
	Score          float64
	BaseSimilarity float64
	BoostFactor    float64
	FuzzyMatch     float64
}

// Signals are the hints read from the query text.
type Signals struct {
	MaxPrice      *float64
	Vegetarian    bool
	Vegan         bool
	NonVegetarian bool
	Category      string
}

// Outcome is the answer to one Retrieve call.
type Outcome struct {
	Results []Result
	Reason  Reason
	Err     error  // collaborator failure behind a non-OK Reason
	Query   string // normalized query
	Reply   string // chat-ready bullet list
	Signals Signals
}

// RebuildReport describes one finished rebuild.
type RebuildReport struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	Items      int
	Skipped    int
	Generation string
	Err        error
}

// Status describes the committed index.
type Status struct {
	Items       int
	Generation  string
	CommittedAt time.Time
	LastRebuild *RebuildReport
}

// HealthStatus represents the aggregated engine health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"empty"/"error"
}
