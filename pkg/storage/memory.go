package storage

import (
	"sync"

	"github.com/orneryd/nornicrdf/pkg/rdf"
)

type tripleSet map[rdf.Triple]struct{}

// MemoryGraph is a thread-safe in-memory triple set.
//
// Use Cases:
//   - Unit testing (no disk I/O, fast cleanup)
//   - Schema graphs loaded from N-Triples files
//   - Scratch graphs built during a single command
//
// Features:
//   - Indexed by subject, predicate and object; Filter scans the smallest
//     index bucket matching the pattern
//   - Filter returns a sorted snapshot, so iteration is stable and removing
//     while iterating is safe
//   - Generation counter for cache invalidation (see Versioned)
//
// Performance Characteristics:
//   - Add/Remove/Contains: O(1)
//   - Filter: O(k log k) where k = size of the smallest matching bucket
type MemoryGraph struct {
	mu          sync.RWMutex
	triples     tripleSet
	bySubject   map[rdf.Subject]tripleSet
	byPredicate map[rdf.IRI]tripleSet
	byObject    map[rdf.Term]tripleSet
	generation  uint64

	// lock is handed out to callers and never taken by the graph itself.
	lock sync.RWMutex
}

// NewMemoryGraph creates an empty in-memory graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		triples:     make(tripleSet),
		bySubject:   make(map[rdf.Subject]tripleSet),
		byPredicate: make(map[rdf.IRI]tripleSet),
		byObject:    make(map[rdf.Term]tripleSet),
	}
}

// NewMemoryGraphFrom creates an in-memory graph holding triples.
func NewMemoryGraphFrom(triples []rdf.Triple) (*MemoryGraph, error) {
	g := NewMemoryGraph()
	if _, err := AddAll(g, triples); err != nil {
		return nil, err
	}
	return g, nil
}

// Filter returns the triples matching the pattern.
func (g *MemoryGraph) Filter(subject rdf.Subject, predicate rdf.IRI, object rdf.Term) Iterator {
	g.mu.RLock()
	defer g.mu.RUnlock()

	candidates := g.triples
	narrow := func(set tripleSet) {
		if len(set) < len(candidates) {
			candidates = set
		}
	}
	if subject != nil {
		narrow(g.bySubject[subject])
		if g.bySubject[subject] == nil {
			return newSliceIterator(nil, g.Remove)
		}
	}
	if predicate != "" {
		narrow(g.byPredicate[predicate])
		if g.byPredicate[predicate] == nil {
			return newSliceIterator(nil, g.Remove)
		}
	}
	if object != nil {
		narrow(g.byObject[object])
		if g.byObject[object] == nil {
			return newSliceIterator(nil, g.Remove)
		}
	}

	var out []rdf.Triple
	for t := range candidates {
		if matches(t, subject, predicate, object) {
			out = append(out, t)
		}
	}
	rdf.SortTriples(out)
	return newSliceIterator(out, g.Remove)
}

// Contains reports whether t is in the graph.
func (g *MemoryGraph) Contains(t rdf.Triple) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.triples[t]
	return ok, nil
}

// Add inserts t and reports whether it was new.
func (g *MemoryGraph) Add(t rdf.Triple) (bool, error) {
	if err := validate(t); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.triples[t]; ok {
		return false, nil
	}
	g.triples[t] = struct{}{}
	index(g.bySubject, t.Subject, t)
	index(g.byPredicate, t.Predicate, t)
	index(g.byObject, t.Object, t)
	g.generation++
	return true, nil
}

// Remove deletes t and reports whether it was present.
func (g *MemoryGraph) Remove(t rdf.Triple) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.triples[t]; !ok {
		return false, nil
	}
	delete(g.triples, t)
	unindex(g.bySubject, t.Subject, t)
	unindex(g.byPredicate, t.Predicate, t)
	unindex(g.byObject, t.Object, t)
	g.generation++
	return true, nil
}

// Size returns the number of triples.
func (g *MemoryGraph) Size() (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.triples), nil
}

// RWLock returns the caller-facing lock.
func (g *MemoryGraph) RWLock() RWLocker { return &g.lock }

// Generation returns the modification counter.
func (g *MemoryGraph) Generation() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.generation
}

func index[K comparable](idx map[K]tripleSet, key K, t rdf.Triple) {
	set, ok := idx[key]
	if !ok {
		set = make(tripleSet)
		idx[key] = set
	}
	set[t] = struct{}{}
}

func unindex[K comparable](idx map[K]tripleSet, key K, t rdf.Triple) {
	set, ok := idx[key]
	if !ok {
		return
	}
	delete(set, t)
	if len(set) == 0 {
		delete(idx, key)
	}
}

var (
	_ Graph     = (*MemoryGraph)(nil)
	_ Versioned = (*MemoryGraph)(nil)
)
