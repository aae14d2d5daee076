package rdf

import (
	"slices"
	"strings"
)

// Compare orders terms: nil first, then IRIs, blank nodes and literals, each
// group ordered by its N-Triples form. The order is total and stable across
// processes for IRIs and literals.
func Compare(a, b Term) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if a.Kind() != b.Kind() {
		if a.Kind() < b.Kind() {
			return -1
		}
		return 1
	}
	return strings.Compare(a.String(), b.String())
}

// CompareTriples orders triples by subject, predicate and object.
func CompareTriples(a, b Triple) int {
	if c := Compare(a.Subject, b.Subject); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Predicate), string(b.Predicate)); c != 0 {
		return c
	}
	return Compare(a.Object, b.Object)
}

// SortTriples sorts triples in place using CompareTriples.
func SortTriples(triples []Triple) {
	slices.SortFunc(triples, CompareTriples)
}

// SortSubjects sorts subjects in place using Compare.
func SortSubjects(subjects []Subject) {
	slices.SortFunc(subjects, func(a, b Subject) int { return Compare(a, b) })
}
