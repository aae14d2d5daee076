package rdflist

import (
	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/storage"
	"github.com/orneryd/nornicrdf/pkg/vocabulary"
)

// FindContainingListNodes returns the heads of every list that has term as a
// value.
//
// It finds each cell whose rdf:first is term and follows rdf:rest edges
// backwards until it reaches cells nothing points to. A cell may be the
// rdf:rest target of several predecessors, so one value can belong to many
// lists. Cells already visited are skipped.
//
// found is false when no cell holds term. found is true with an empty result
// when cells hold term but every backward path ends in a loop.
func FindContainingListNodes(g storage.Graph, term rdf.Term) (heads []rdf.Subject, found bool, err error) {
	cells, err := storage.Subjects(g.Filter(nil, vocabulary.RDFFirst, term))
	if err != nil {
		return nil, false, err
	}
	if len(cells) == 0 {
		return nil, false, nil
	}

	f := &headFinder{
		graph:   g,
		visited: make(map[rdf.Subject]struct{}),
		heads:   make(map[rdf.Subject]struct{}),
	}
	for _, cell := range cells {
		if err := f.walk(cell); err != nil {
			return nil, true, err
		}
	}

	heads = make([]rdf.Subject, 0, len(f.heads))
	for h := range f.heads {
		heads = append(heads, h)
	}
	rdf.SortSubjects(heads)
	return heads, true, nil
}

// FindContainingLists wraps the result of FindContainingListNodes in views.
func FindContainingLists(g storage.Graph, term rdf.Term, opts ...Option) ([]*List, bool, error) {
	heads, found, err := FindContainingListNodes(g, term)
	if err != nil || !found {
		return nil, found, err
	}
	lists := make([]*List, 0, len(heads))
	for _, h := range heads {
		lists = append(lists, New(h, g, opts...))
	}
	return lists, true, nil
}

type headFinder struct {
	graph   storage.Graph
	visited map[rdf.Subject]struct{}
	heads   map[rdf.Subject]struct{}
}

// walk uses an explicit stack; long lists would otherwise recurse once per cell.
func (f *headFinder) walk(start rdf.Subject) error {
	stack := []rdf.Subject{start}
	for len(stack) > 0 {
		cell := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := f.visited[cell]; seen {
			continue
		}
		f.visited[cell] = struct{}{}

		preds, err := storage.Subjects(f.graph.Filter(nil, vocabulary.RDFRest, cell))
		if err != nil {
			return err
		}
		if len(preds) == 0 {
			f.heads[cell] = struct{}{}
			continue
		}
		stack = append(stack, preds...)
	}
	return nil
}
