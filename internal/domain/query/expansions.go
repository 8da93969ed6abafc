package query

// expansions maps a query token to the bag of related terms appended during enhancement.
// Multi-word keys never match a single whitespace token; they are kept so the table
// stays identical to the one the document texts were tuned against.
var expansions = map[string]string{
	// dietary
	"vegetarian": "vegetarian veg veggie plant-based no-meat vegetables herbivore meatless",
	"veg":        "vegetarian veg veggie plant-based no-meat vegetables",
	"non-veg":    "non-vegetarian meat chicken mutton fish prawns seafood carnivore",
	"vegan":      "vegan plant-based dairy-free no-milk no-cheese no-animal purely-vegetable",
	"egg":        "egg eggs omelette scrambled anda boiled",

	// taste
	"spicy":  "spicy hot chilli pepper schezwan fiery pungent tikha masala burning",
	"sweet":  "sweet dessert sugar honey chocolate mithai halwa syrup",
	"tangy":  "tangy sour lemon tamarind khatta imli acidic",
	"crispy": "crispy fried crunchy crisp pakora bhajiya tempura golden",
	"creamy": "creamy cream cheese malai korma rich smooth velvety",
	"mild":   "mild light simple plain basic bland gentle",
	"savory": "savory salty umami tasty flavorful delicious",

	// price
	"cheap":      "cheap affordable budget economical inexpensive low-cost value-for-money pocket-friendly",
	"expensive":  "expensive premium costly luxury high-end special fancy",
	"affordable": "affordable reasonable moderate budget-friendly fair-priced",

	// meal times
	"breakfast": "breakfast morning tiffin nashta early-meal idli dosa upma poha",
	"lunch":     "lunch afternoon meal thali combo daytime midday",
	"dinner":    "dinner evening supper night-meal main-course",
	"snacks":    "snacks snack teatime evening-snack munchies namkeen quick-bite",

	// ingredients
	"paneer":  "paneer cottage-cheese indian-cheese dairy cheese-cubes",
	"chicken": "chicken murgh poultry white-meat",
	"rice":    "rice chawal pulao biryani fried-rice steamed-rice",
	"noodles": "noodles chowmein hakka pasta spaghetti",
	"bread":   "bread roti naan chapati paratha kulcha",
	"potato":  "potato aloo batata potatoes tater",
	"cheese":  "cheese paneer cottage-cheese dairy mozzarella",

	// cuisines and categories
	"chinese":      "chinese oriental asian chowmein noodles manchurian schezwan hakka canton",
	"indian":       "indian desi traditional bhartiya hindustan masala curry",
	"south indian": "south-indian southindian dosa idli vada uttapam sambhar rasam",
	"north indian": "north-indian northindian punjabi tandoori naan paneer dal",
	"italian":      "italian pasta pizza spaghetti lasagna continental european",
	"beverages":    "beverages drinks tea coffee juice shake lassi mocktail beverage",
	"drinks":       "drinks beverages tea coffee juice shake soda liquid refreshment",

	// cooking styles
	"fried":   "fried deep-fried tawa-fried pan-fried bhuna crispy crunchy",
	"grilled": "grilled tandoori roasted barbecue bbq charcoal smoked",
	"steamed": "steamed boiled healthy light oil-free gentle",
	"baked":   "baked oven-baked roasted",

	// health
	"healthy": "healthy diet low-calorie nutritious wholesome light salad fit",
	"heavy":   "heavy filling rich substantial hearty satisfying",

	// misc
	"sandwich": "sandwich burger bread toast grilled",
	"soup":     "soup broth liquid hot warm",
	"salad":    "salad fresh vegetables healthy greens raw",
}

// foodTerms are appended bare when they occur inside a larger token, e.g. "paneertikka".
var foodTerms = []string{
	"paneer", "chicken", "rice", "noodles", "dosa", "idli",
	"pasta", "burger", "sandwich", "tea", "coffee",
}

// categoryHints are the expansion keys that name a menu section.
var categoryHints = []string{
	"beverages", "drinks", "snacks", "breakfast", "lunch", "dinner", "soup", "salad", "sandwich",
}
