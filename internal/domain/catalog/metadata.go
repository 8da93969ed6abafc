package catalog

import (
	"encoding/json"
	"strconv"

	"github.com/kailas-cloud/menudex/internal/domain/menu"
)

// Metadata field names shared by every index backend.
const (
	FieldName         = "name"
	FieldPrice        = "price"
	FieldCategory     = "category"
	FieldCuisine      = "cuisine_type"
	FieldSpiceLevel   = "spice_level"
	FieldDescription  = "description"
	FieldIsVegetarian = "is_vegetarian"
	FieldIsVegan      = "is_vegan"
	FieldContainsEgg  = "contains_egg"
	FieldIngredients  = "ingredients"
	FieldKeywords     = "search_keywords"
)

// Metadata mirrors the structured item fields used for filtering, ranking and rendering.
type Metadata struct {
	Name         string
	Price        float64
	Category     string
	Cuisine      string
	SpiceLevel   string
	Description  string
	IsVegetarian bool
	IsVegan      bool
	ContainsEgg  bool
	Ingredients  []string
	Keywords     []string
}

// MetadataFromItem copies the structured fields of an item.
func MetadataFromItem(it menu.Item) Metadata {
	return Metadata{
		Name:         it.Name,
		Price:        it.Price,
		Category:     it.Category,
		Cuisine:      it.Cuisine,
		SpiceLevel:   it.SpiceLevel,
		Description:  it.Description,
		IsVegetarian: it.IsVegetarian,
		IsVegan:      it.IsVegan,
		ContainsEgg:  it.ContainsEgg,
		Ingredients:  append([]string(nil), it.Ingredients...),
		Keywords:     append([]string(nil), it.Keywords...),
	}
}

// Fields flattens the metadata into string fields.
// Flags are "true"/"false", lists are JSON arrays, empty optional fields are omitted.
func (m Metadata) Fields() map[string]string {
	f := map[string]string{
		FieldName:         m.Name,
		FieldPrice:        strconv.FormatFloat(m.Price, 'f', -1, 64),
		FieldCategory:     m.Category,
		FieldIsVegetarian: strconv.FormatBool(m.IsVegetarian),
		FieldIsVegan:      strconv.FormatBool(m.IsVegan),
		FieldContainsEgg:  strconv.FormatBool(m.ContainsEgg),
	}
	setIfNotEmpty(f, FieldCuisine, m.Cuisine)
	setIfNotEmpty(f, FieldSpiceLevel, m.SpiceLevel)
	setIfNotEmpty(f, FieldDescription, m.Description)
	if len(m.Ingredients) > 0 {
		f[FieldIngredients] = encodeList(m.Ingredients)
	}
	if len(m.Keywords) > 0 {
		f[FieldKeywords] = encodeList(m.Keywords)
	}
	return f
}

// MetadataFromFields is the inverse of Fields. Malformed values degrade to zero values.
func MetadataFromFields(f map[string]string) Metadata {
	price, _ := strconv.ParseFloat(f[FieldPrice], 64)
	return Metadata{
		Name:         f[FieldName],
		Price:        price,
		Category:     f[FieldCategory],
		Cuisine:      f[FieldCuisine],
		SpiceLevel:   f[FieldSpiceLevel],
		Description:  f[FieldDescription],
		IsVegetarian: f[FieldIsVegetarian] == "true",
		IsVegan:      f[FieldIsVegan] == "true",
		ContainsEgg:  f[FieldContainsEgg] == "true",
		Ingredients:  decodeList(f[FieldIngredients]),
		Keywords:     decodeList(f[FieldKeywords]),
	}
}

func setIfNotEmpty(f map[string]string, key, value string) {
	if value != "" {
		f[key] = value
	}
}

func encodeList(values []string) string {
	b, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
