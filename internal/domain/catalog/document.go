// Package catalog turns menu items into the weighted documents that get embedded and indexed.
package catalog

import (
	"strings"

	"github.com/kailas-cloud/menudex/internal/domain/menu"
)

// Repetition counts for each weighted segment of the document text.
const (
	nameWeight        = 3
	descriptionWeight = 2
	categoryWeight    = 2
	cuisineWeight     = 2
	ingredientWeight  = 3
	keywordWeight     = 2
	dietaryWeight     = 2
)

// Price bucket boundaries used for the synthesized price phrase.
const (
	cheapBelow    = 50
	moderateBelow = 100
)

// Synthesized phrases appended to the document text.
const (
	phraseVegetarian    = "vegetarian veg plant-based meatless"
	phraseVegan         = "vegan dairy-free plant-based"
	phraseEgg           = "egg eggs contains-egg eggetarian"
	phraseNonVegetarian = "non-vegetarian meat non-veg"

	phraseCheap    = "cheap budget affordable economical"
	phraseModerate = "moderate reasonable"
	phrasePremium  = "premium expensive"
)

// Document is the derived, per-rebuild representation of one item.
type Document struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Build produces the weighted document for an item. It is pure and deterministic.
// Missing optional fields contribute no tokens.
func Build(it menu.Item) Document {
	parts := make([]string, 0, 32)

	parts = appendRepeated(parts, it.Name, nameWeight)
	parts = appendRepeated(parts, it.Description, descriptionWeight)
	parts = appendRepeated(parts, it.Category, categoryWeight)
	parts = appendRepeated(parts, it.Cuisine, cuisineWeight)
	parts = appendRepeated(parts, joinNonEmpty(it.Ingredients), ingredientWeight)
	parts = appendRepeated(parts, joinNonEmpty(it.Keywords), keywordWeight)

	dietary := dietaryPhrases(it)
	for range dietaryWeight {
		parts = append(parts, dietary...)
	}

	if it.SpiceLevel != "" {
		parts = append(parts, it.SpiceLevel+" spice")
	}
	parts = append(parts, pricePhrase(it.Price))

	return Document{
		ID:       it.ID,
		Text:     strings.Join(parts, " "),
		Metadata: MetadataFromItem(it),
	}
}

// BuildAll builds one document per item, preserving order.
func BuildAll(items []menu.Item) []Document {
	docs := make([]Document, len(items))
	for i := range items {
		docs[i] = Build(items[i])
	}
	return docs
}

func dietaryPhrases(it menu.Item) []string {
	var out []string
	if it.IsVegetarian {
		out = append(out, phraseVegetarian)
	}
	if it.IsVegan {
		out = append(out, phraseVegan)
	}
	if it.ContainsEgg {
		out = append(out, phraseEgg)
	}
	if !it.IsVegetarian {
		out = append(out, phraseNonVegetarian)
	}
	return out
}

func pricePhrase(price float64) string {
	switch {
	case price < cheapBelow:
		return phraseCheap
	case price < moderateBelow:
		return phraseModerate
	default:
		return phrasePremium
	}
}

func appendRepeated(parts []string, s string, n int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return parts
	}
	for range n {
		parts = append(parts, s)
	}
	return parts
}

func joinNonEmpty(values []string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, " ")
}
