package query

import "testing"

func TestExtractSignals_Price(t *testing.T) {
	tests := []struct {
		q    string
		want float64
	}{
		{"veg under 100", 100},
		{"something below 80", 80},
		{"less than  60 please", 60},
		{"cheaper than 200", 200},
		{"within 150", 150},
		{"max 90", 90},
		{"upto 120", 120},
		{"around 100", 120},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			s := ExtractSignals(tt.q)
			if s.MaxPrice == nil {
				t.Fatal("expected a price ceiling")
			}
			if *s.MaxPrice != tt.want {
				t.Errorf("MaxPrice = %v, want %v", *s.MaxPrice, tt.want)
			}
		})
	}
}

func TestExtractSignals_NoPrice(t *testing.T) {
	if s := ExtractSignals("cheap snacks"); s.MaxPrice != nil {
		t.Errorf("MaxPrice = %v, want nil", *s.MaxPrice)
	}
}

func TestExtractSignals_Dietary(t *testing.T) {
	s := ExtractSignals("spicy veg starters")
	if !s.Vegetarian || s.NonVegetarian || s.Vegan {
		t.Errorf("signals = %+v", s)
	}

	s = ExtractSignals("non-veg curry")
	if !s.NonVegetarian || s.Vegetarian {
		t.Errorf("signals = %+v", s)
	}

	s = ExtractSignals("non vegetarian thali")
	if !s.NonVegetarian || s.Vegetarian {
		t.Errorf("signals = %+v", s)
	}

	s = ExtractSignals("vegan bowl")
	if !s.Vegan || s.Vegetarian {
		t.Errorf("signals = %+v", s)
	}
}

func TestExtractSignals_Category(t *testing.T) {
	if s := ExtractSignals("cold drinks, snacks"); s.Category != "drinks" {
		t.Errorf("Category = %q, want drinks", s.Category)
	}
	if s := ExtractSignals("paneer"); s.Category != "" {
		t.Errorf("Category = %q, want empty", s.Category)
	}
}
