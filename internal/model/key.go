package model

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key is the dedup fingerprint of a venue. Two POIs with equal keys are the
// same venue regardless of object identity; Seq, rating and other metadata do
// not participate.
type Key struct {
	Name     string
	Category string
}

// LocKey extends Key with coordinates rounded to four decimals (~11m) for the
// rare case of distinct venues sharing a name and category.
type LocKey struct {
	Key
	Lat float64
	Lng float64
}

// normalizeToken NFKC-folds, lowercases and collapses whitespace so that
// visually identical provider strings compare equal.
func normalizeToken(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}

// KeyOf computes the identity key for a POI.
func KeyOf(p POI) Key {
	return Key{
		Name:     normalizeToken(p.Name),
		Category: normalizeToken(p.Category),
	}
}

// LocKeyOf computes the location-extended identity key.
func LocKeyOf(p POI) LocKey {
	return LocKey{
		Key: KeyOf(p),
		Lat: round4(p.Lat),
		Lng: round4(p.Lng),
	}
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}

// KeySet tracks taken identity keys.
type KeySet map[Key]struct{}

// NewKeySet builds a KeySet from POI lists.
func NewKeySet(lists ...[]POI) KeySet {
	s := make(KeySet)
	for _, list := range lists {
		for _, p := range list {
			s[KeyOf(p)] = struct{}{}
		}
	}
	return s
}

// Contains reports whether the POI's key is taken.
func (s KeySet) Contains(p POI) bool {
	_, ok := s[KeyOf(p)]
	return ok
}

// Add marks the POI's key as taken.
func (s KeySet) Add(p POI) {
	s[KeyOf(p)] = struct{}{}
}

// Clone copies the set so a caller can hand out a stable snapshot while the
// original keeps growing.
func (s KeySet) Clone() KeySet {
	out := make(KeySet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}
