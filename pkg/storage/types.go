// Package storage provides the triple graph interface and its implementations.
//
// A Graph is a set of rdf.Triple values that can be filtered by pattern. Any of
// the three pattern positions can be a wildcard: a nil subject, an empty
// predicate or a nil object matches everything.
//
// Implementations:
//   - MemoryGraph: indexed in-memory set, for tests and transient graphs
//   - BadgerGraph: persistent store on BadgerDB with SPO/POS/OSP indexes
//
// Example Usage:
//
//	graph := storage.NewMemoryGraph()
//
//	alice := rdf.IRI("http://example.org/alice")
//	mbox := rdf.IRI("http://xmlns.com/foaf/0.1/mbox")
//	graph.Add(rdf.NewTriple(alice, mbox, rdf.IRI("mailto:alice@example.org")))
//
//	it := graph.Filter(alice, "", nil)
//	for it.Next() {
//		fmt.Println(it.Triple())
//	}
//	if err := it.Err(); err != nil {
//		return err
//	}
//
// Locking:
//
// Every implementation is safe for concurrent single calls. Callers that need
// several calls to appear atomic (for example a list edit touching four
// triples) take the lock returned by RWLock. That lock is separate from the
// graph's internal synchronization, so holding it while calling graph methods
// does not deadlock.
package storage

import (
	"errors"
	"fmt"

	"github.com/orneryd/nornicrdf/pkg/rdf"
)

// Common errors
var (
	ErrClosed        = errors.New("storage closed")
	ErrNoCurrent     = errors.New("iterator has no current triple")
	ErrInvalidTriple = errors.New("invalid triple")
)

// RWLocker is the reader/writer lock exposed by a Graph. *sync.RWMutex implements it.
type RWLocker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// Iterator walks the result of a Filter call.
//
//	for it.Next() {
//		t := it.Triple()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator interface {
	// Next advances to the next triple and reports whether there is one.
	Next() bool
	// Triple returns the current triple.
	Triple() rdf.Triple
	// Remove deletes the current triple from the underlying graph.
	Remove() error
	// Err returns the error that stopped iteration, if any.
	Err() error
}

// Graph is a mutable set of triples.
//
// Add and Remove report whether the graph changed. Filter results are
// returned in a stable order for as long as the graph is not modified.
type Graph interface {
	Filter(subject rdf.Subject, predicate rdf.IRI, object rdf.Term) Iterator
	Contains(t rdf.Triple) (bool, error)
	Add(t rdf.Triple) (bool, error)
	Remove(t rdf.Triple) (bool, error)
	Size() (int, error)
	RWLock() RWLocker
}

// Versioned is implemented by graphs that count their modifications. The
// generation changes every time Add or Remove changes the graph, which lets
// caches built on top of the graph detect writes made by someone else.
type Versioned interface {
	Generation() uint64
}

// Collect drains an iterator into a slice.
func Collect(it Iterator) ([]rdf.Triple, error) {
	var out []rdf.Triple
	for it.Next() {
		out = append(out, it.Triple())
	}
	return out, it.Err()
}

// Subjects drains an iterator and returns the subject of every triple.
func Subjects(it Iterator) ([]rdf.Subject, error) {
	var out []rdf.Subject
	for it.Next() {
		out = append(out, it.Triple().Subject)
	}
	return out, it.Err()
}

// All returns every triple of g.
func All(g Graph) ([]rdf.Triple, error) {
	return Collect(g.Filter(nil, "", nil))
}

// AddAll adds triples to g and returns how many were new.
func AddAll(g Graph, triples []rdf.Triple) (int, error) {
	added := 0
	for _, t := range triples {
		ok, err := g.Add(t)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func matches(t rdf.Triple, subject rdf.Subject, predicate rdf.IRI, object rdf.Term) bool {
	if subject != nil && t.Subject != subject {
		return false
	}
	if predicate != "" && t.Predicate != predicate {
		return false
	}
	if object != nil && t.Object != object {
		return false
	}
	return true
}

func validate(t rdf.Triple) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTriple, err)
	}
	return nil
}
