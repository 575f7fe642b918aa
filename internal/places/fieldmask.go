package places

import "strings"

// defaultFields is the safe default field set for text search.
var defaultFields = []string{
	"id", "displayName", "formattedAddress", "location",
	"primaryType", "businessStatus", "types",
	"rating", "userRatingCount", "priceLevel",
	"regularOpeningHours", "nextPageToken",
}

// fieldAliases corrects commonly mistyped field names.
var fieldAliases = map[string]string{
	"secondaryOpeningHours": "regularSecondaryOpeningHours",
	"openingHours":          "regularOpeningHours",
}

// normalizeField canonicalizes one mask entry: trims, resolves aliases, and
// prefixes "places." except for the wildcard and the top-level page token.
func normalizeField(f string) string {
	f = strings.TrimSpace(f)
	if f == "" || f == "*" || f == "nextPageToken" {
		return f
	}
	if canonical, ok := fieldAliases[f]; ok {
		f = canonical
	}
	if strings.HasPrefix(f, "places.") {
		return f
	}
	return "places." + f
}

// BuildFieldMask composes the X-Goog-FieldMask header value. A wildcard
// anywhere collapses the mask to "*"; duplicates and empty entries drop out.
func BuildFieldMask(fields []string) string {
	if len(fields) == 0 {
		fields = defaultFields
	}

	var out []string
	seen := make(map[string]struct{})
	for _, f := range fields {
		n := normalizeField(f)
		if n == "*" {
			return "*"
		}
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return strings.Join(out, ",")
}
