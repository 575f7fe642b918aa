package category

// searchQueries maps each category to the place-search text query used against
// the places provider. Queries are Korean because the service targets
// Korean-language search results.
var searchQueries = map[Category]string{
	Restaurant:  "맛집 OR 레스토랑",
	Cafe:        "카페",
	Bar:         "바 OR 펍",
	Activity:    "체험 액티비티",
	Attraction:  "명소 관광지",
	Exhibit:     "전시회 전시장",
	Walk:        "산책로 공원 산책",
	View:        "야경 전망대 뷰맛집",
	Nature:      "자연 경치 숲길",
	Shopping:    "쇼핑몰 상가 쇼핑",
	Performance: "공연 연극 콘서트",
}

// placeTypes maps categories to Google place types, used when a structured
// nearby search is preferred over free text. Many-to-one on purpose.
var placeTypes = map[Category][]string{
	Restaurant:  {"restaurant"},
	Cafe:        {"cafe", "coffee_shop"},
	Bar:         {"bar", "pub"},
	Activity:    {"amusement_center", "bowling_alley"},
	Attraction:  {"tourist_attraction"},
	Exhibit:     {"museum", "art_gallery"},
	Walk:        {"park"},
	View:        {"observation_deck", "tourist_attraction"},
	Nature:      {"park", "hiking_area"},
	Shopping:    {"shopping_mall"},
	Performance: {"performing_arts_theater", "concert_hall"},
}

// SearchQuery returns the text query for a category. The category tag itself
// is the fallback so an unknown tag still produces a usable query.
func SearchQuery(c Category) string {
	if q, ok := searchQueries[c]; ok {
		return q
	}
	return string(c)
}

// PlaceTypes returns the structured place types for a category, or nil when
// only text search applies.
func PlaceTypes(c Category) []string {
	return placeTypes[c]
}
