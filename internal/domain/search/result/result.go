package result

import "github.com/kailas-cloud/menudex/internal/domain/catalog"

// Candidate is one vector search hit before reranking.
type Candidate struct {
	id          string
	metadata    catalog.Metadata
	distance    float64
	hasDistance bool
}

// NewCandidate creates a candidate with a cosine distance in [0, 2].
func NewCandidate(id string, md catalog.Metadata, distance float64) Candidate {
	return Candidate{id: id, metadata: md, distance: distance, hasDistance: true}
}

// NewCandidateWithoutDistance creates a candidate from a backend that reports no distance.
func NewCandidateWithoutDistance(id string, md catalog.Metadata) Candidate {
	return Candidate{id: id, metadata: md}
}

// ID returns the item identifier.
func (c *Candidate) ID() string { return c.id }

// Metadata returns the item metadata.
func (c *Candidate) Metadata() catalog.Metadata { return c.metadata }

// Distance returns the raw distance and whether the backend reported one.
func (c *Candidate) Distance() (float64, bool) { return c.distance, c.hasDistance }

// Scored is a reranked, caller-facing result. Score = BaseSimilarity * BoostFactor.
type Scored struct {
	id             string
	metadata       catalog.Metadata
	baseSimilarity float64
	boostFactor    float64
	fuzzyMatch     float64
	score          float64
}

// NewScored creates a scored result from a candidate and its ranking signals.
func NewScored(c Candidate, baseSimilarity, boostFactor, fuzzyMatch float64) Scored {
	return Scored{
		id:             c.id,
		metadata:       c.metadata,
		baseSimilarity: baseSimilarity,
		boostFactor:    boostFactor,
		fuzzyMatch:     fuzzyMatch,
		score:          baseSimilarity * boostFactor,
	}
}

// ID returns the item identifier.
func (s *Scored) ID() string { return s.id }

// Metadata returns the item metadata.
func (s *Scored) Metadata() catalog.Metadata { return s.metadata }

// BaseSimilarity returns max(0, 1-distance), or 1 without a distance.
func (s *Scored) BaseSimilarity() float64 { return s.baseSimilarity }

// BoostFactor returns the compounded boost, fuzzy bonus included.
func (s *Scored) BoostFactor() float64 { return s.boostFactor }

// FuzzyMatch returns the lexical similarity between query and name.
func (s *Scored) FuzzyMatch() float64 { return s.fuzzyMatch }

// Score returns the final ranking score.
func (s *Scored) Score() float64 { return s.score }
