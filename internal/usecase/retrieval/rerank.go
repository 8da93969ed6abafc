package retrieval

import (
	"math"
	"slices"

	"github.com/kailas-cloud/menudex/internal/domain/search/result"
)

// baseScore converts a cosine distance to a base similarity in [0, 1].
// An undefined distance scores 0.
func baseScore(distance float64) float64 {
	if math.IsNaN(distance) {
		return 0
	}
	return max(0, 1-distance)
}

// Rerank scores candidates against the user's query and returns the best topK.
//
// A candidate priced above maxPrice is dropped; nil maxPrice disables the filter.
// The score is base similarity (1 - cosine distance, floored at 0, or 1.0 without
// a distance) times the boost factor. Ordering is by score descending and
// stable, so ties keep the index order.
func Rerank(q string, candidates []result.Candidate, maxPrice *float64, topK int) []result.Scored {
	if len(candidates) == 0 || topK <= 0 {
		return nil
	}

	qv := newQueryView(q)
	scored := make([]result.Scored, 0, len(candidates))
	for _, c := range candidates {
		md := c.Metadata()
		if maxPrice != nil && md.Price > *maxPrice {
			continue
		}

		base := 1.0
		if d, ok := c.Distance(); ok {
			base = baseScore(d)
		}

		it := newItem(md)
		boost := boostFactor(&qv, &it)

		fuzzy := fuzzyScore(q, md.Name)
		if fuzzy > fuzzyThreshold {
			boost *= 1 + fuzzy*0.3
		}

		scored = append(scored, result.NewScored(c, base, boost, fuzzy))
	}

	slices.SortStableFunc(scored, func(a, b result.Scored) int {
		switch {
		case a.Score() > b.Score():
			return -1
		case a.Score() < b.Score():
			return 1
		default:
			return 0
		}
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
