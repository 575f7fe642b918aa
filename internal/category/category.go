// Package category defines the closed set of venue categories used by the
// recommendation pipeline and their indoor/outdoor partition.
package category

import (
	"fmt"
	"sort"
	"strings"
)

// Category is one of the fixed venue-type tags.
type Category string

const (
	Restaurant  Category = "restaurant"
	Cafe        Category = "cafe"
	Bar         Category = "bar"
	Activity    Category = "activity"
	Attraction  Category = "attraction"
	Exhibit     Category = "exhibit"
	Walk        Category = "walk"
	View        Category = "view"
	Nature      Category = "nature"
	Shopping    Category = "shopping"
	Performance Category = "performance"
)

// All is the full category set, in canonical declaration order.
var All = []Category{
	Restaurant, Cafe, Bar,
	Activity, Attraction, Exhibit,
	Walk, View, Nature,
	Shopping, Performance,
}

// IndoorStrict categories are never excluded by weather rules.
var IndoorStrict = Set{Restaurant: {}, Cafe: {}, Bar: {}, Shopping: {}, Performance: {}}

// OutdoorStrict categories are excluded whenever any adverse weather flag is set.
var OutdoorStrict = Set{Walk: {}, Nature: {}}

// Mixed categories have both indoor and outdoor venues and survive weather rules.
var Mixed = Set{View: {}, Attraction: {}, Activity: {}, Exhibit: {}}

// Set is a membership set of categories.
type Set map[Category]struct{}

// Contains reports whether c is in the set.
func (s Set) Contains(c Category) bool {
	_, ok := s[c]
	return ok
}

// Sorted returns the set's members sorted lexicographically.
func (s Set) Sorted() []Category {
	out := make([]Category, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetOf builds a Set from the given categories.
func SetOf(cats ...Category) Set {
	s := make(Set, len(cats))
	for _, c := range cats {
		s[c] = struct{}{}
	}
	return s
}

// Normalize lowercases and trims a raw tag. It does not validate membership.
func Normalize(raw string) Category {
	return Category(strings.ToLower(strings.TrimSpace(raw)))
}

// Valid reports whether c belongs to the closed category set.
func Valid(c Category) bool {
	for _, known := range All {
		if c == known {
			return true
		}
	}
	return false
}

// verifyPartition checks that IndoorStrict, OutdoorStrict and Mixed form a
// total, disjoint cover of All.
func verifyPartition() error {
	seen := make(map[Category]int, len(All))
	for c := range IndoorStrict {
		seen[c]++
	}
	for c := range OutdoorStrict {
		seen[c]++
	}
	for c := range Mixed {
		seen[c]++
	}
	if len(seen) != len(All) {
		return fmt.Errorf("category: partition covers %d categories, want %d", len(seen), len(All))
	}
	for _, c := range All {
		switch seen[c] {
		case 0:
			return fmt.Errorf("category: %q missing from partition", c)
		case 1:
		default:
			return fmt.Errorf("category: %q appears in multiple partitions", c)
		}
	}
	return nil
}

func init() {
	if err := verifyPartition(); err != nil {
		panic(err)
	}
}
