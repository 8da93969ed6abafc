package menudex

import (
	"github.com/kailas-cloud/menudex/internal/domain/menu"
	"github.com/kailas-cloud/menudex/internal/domain/query"
	"github.com/kailas-cloud/menudex/internal/domain/search/result"
	catalogsvc "github.com/kailas-cloud/menudex/internal/usecase/catalog"
)

func toMenuItems(items []Item) []menu.Item {
	out := make([]menu.Item, len(items))
	for i, it := range items {
		out[i] = menu.Item{
			ID:           it.ID,
			Name:         it.Name,
			Price:        it.Price,
			Category:     it.Category,
			Cuisine:      it.Cuisine,
			SpiceLevel:   it.SpiceLevel,
			Description:  it.Description,
			IsVegetarian: it.IsVegetarian,
			IsVegan:      it.IsVegan,
			ContainsEgg:  it.ContainsEgg,
			Ingredients:  it.Ingredients,
			Keywords:     it.Keywords,
		}
	}
	return out
}

func fromScored(scored []result.Scored) []Result {
	if len(scored) == 0 {
		return nil
	}
	out := make([]Result, len(scored))
	for i := range scored {
		s := &scored[i]
		md := s.Metadata()
		out[i] = Result{
			ID:             s.ID(),
			Name:           md.Name,
			Price:          md.Price,
			Category:       md.Category,
			Cuisine:        md.Cuisine,
			IsVegetarian:   md.IsVegetarian,
			IsVegan:        md.IsVegan,
			ContainsEgg:    md.ContainsEgg,
			Score:          s.Score(),
			BaseSimilarity: s.BaseSimilarity(),
			BoostFactor:    s.BoostFactor(),
			FuzzyMatch:     s.FuzzyMatch(),
		}
	}
	return out
}

func fromSignals(s query.Signals) Signals {
	return Signals{
		MaxPrice:      s.MaxPrice,
		Vegetarian:    s.Vegetarian,
		Vegan:         s.Vegan,
		NonVegetarian: s.NonVegetarian,
		Category:      s.Category,
	}
}

func fromReport(r catalogsvc.Report) RebuildReport {
	return RebuildReport{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		Duration:   r.Duration,
		Items:      r.Items,
		Skipped:    r.Skipped,
		Generation: r.Generation.ID,
		Err:        r.Err,
	}
}
