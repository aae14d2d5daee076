package smush

import (
	"slices"

	"github.com/orneryd/nornicrdf/pkg/rdf"
)

// UnionOverlapping merges sets that share a member, directly or through a
// chain of other sets, until all sets are disjoint.
//
// The result is the connected components of the "shares a member" relation
// and does not depend on input order. Members are sorted by rdf.Compare and
// classes are sorted by their first member. Empty input sets are dropped.
func UnionOverlapping(sets [][]rdf.Subject) [][]rdf.Subject {
	uf := newUnionFind()
	for _, set := range sets {
		if len(set) == 0 {
			continue
		}
		uf.add(set[0])
		for _, m := range set[1:] {
			uf.add(m)
			uf.union(set[0], m)
		}
	}

	byRoot := make(map[rdf.Subject][]rdf.Subject)
	for m := range uf.parent {
		root := uf.find(m)
		byRoot[root] = append(byRoot[root], m)
	}

	classes := make([][]rdf.Subject, 0, len(byRoot))
	for _, class := range byRoot {
		rdf.SortSubjects(class)
		classes = append(classes, class)
	}
	slices.SortFunc(classes, func(a, b []rdf.Subject) int {
		return rdf.Compare(a[0], b[0])
	})
	return classes
}

// Representative picks the term that replaces the rest of a class: the
// smallest in rdf.Compare order, which puts IRIs before blank nodes.
func Representative(class []rdf.Subject) rdf.Subject {
	if len(class) == 0 {
		return nil
	}
	rep := class[0]
	for _, m := range class[1:] {
		if rdf.Compare(m, rep) < 0 {
			rep = m
		}
	}
	return rep
}

// unionFind keeps the smallest member of each class as its root.
type unionFind struct {
	parent map[rdf.Subject]rdf.Subject
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[rdf.Subject]rdf.Subject)}
}

func (u *unionFind) add(x rdf.Subject) {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
}

func (u *unionFind) find(x rdf.Subject) rdf.Subject {
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// path compression
	for x != root {
		next := u.parent[x]
		u.parent[x] = root
		x = next
	}
	return root
}

func (u *unionFind) union(a, b rdf.Subject) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rdf.Compare(rb, ra) < 0 {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
