// Package rdflist presents an RDF collection as a mutable, index-addressable list.
//
// An RDF collection is a chain of cells. Each cell has an rdf:first triple
// holding its value and an rdf:rest triple pointing at the next cell; the last
// cell points at rdf:nil:
//
//	<head> rdf:first "a" ; rdf:rest _:c1 .
//	_:c1   rdf:first "b" ; rdf:rest rdf:nil .
//
// An empty list is marked with a single triple:
//
//	<head> owl:sameAs rdf:nil .
//
// A List reads the chain lazily, only as far as the requested index, and
// keeps the cells and values it has seen in two slices. Add and Remove
// rewrite the smallest set of triples needed and keep the head term stable,
// so anything pointing at the head still sees the whole list afterwards.
//
// Example Usage:
//
//	head := rdf.IRI("http://example.org/playlist")
//	list, err := rdflist.CreateEmpty(head, graph)
//	if err != nil {
//		return err
//	}
//	list.Append(rdf.IRI("http://example.org/song/1"))
//	list.Add(0, rdf.IRI("http://example.org/song/0"))
//
//	n, _ := list.Len()       // 2
//	first, _ := list.Get(0)  // <http://example.org/song/0>
//
// Caching Contract:
//
// A List caches what it has read. Only one List should be used to modify a
// given chain; two views over the same head that both write will observe
// stale snapshots of each other's changes. When the graph implements
// storage.Versioned the List notices foreign writes and re-reads the chain,
// otherwise the single-writer-view rule is the caller's responsibility. Any
// number of read-only views over an unmodified graph is fine.
//
// Lists are not safe for concurrent use. Hold graph.RWLock() when other
// goroutines write the same graph.
package rdflist

import (
	"errors"
	"fmt"
	"log"
	"math"
	"reflect"
	"slices"

	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/storage"
	"github.com/orneryd/nornicrdf/pkg/vocabulary"
)

// Errors returned by list operations.
var (
	ErrNonEmptyList    = errors.New("list is not empty")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrBrokenList      = errors.New("broken list")
	ErrNilValue        = errors.New("list values must not be nil")
)

// DefaultDumpLimit caps the number of triples written to a DumpSink.
const DefaultDumpLimit = 1000

// List is a view of an RDF collection stored in a graph.
type List struct {
	head  rdf.Subject
	graph storage.Graph

	cells    []rdf.Subject
	values   []rdf.Term
	members  map[rdf.Subject]struct{}
	expanded bool

	versioned  storage.Versioned
	generation uint64

	sink      DumpSink
	dumpLimit int
	logf      func(format string, args ...any)
}

// Option configures a List.
type Option func(*List)

// WithDumpSink sets where broken list diagnostics are written. A nil sink
// disables the export.
func WithDumpSink(sink DumpSink) Option {
	return func(l *List) { l.sink = sink }
}

// WithDumpLimit caps the number of triples exported for a broken list.
func WithDumpLimit(n int) Option {
	return func(l *List) {
		if n > 0 {
			l.dumpLimit = n
		}
	}
}

// WithLogger replaces log.Printf for diagnostics.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(l *List) {
		if logf != nil {
			l.logf = logf
		}
	}
}

// New returns a view of the list starting at head. Nothing is read until the
// first access.
func New(head rdf.Subject, graph storage.Graph, opts ...Option) *List {
	l := &List{
		head:      head,
		graph:     graph,
		members:   make(map[rdf.Subject]struct{}),
		sink:      FileSink{Path: DefaultDumpPath()},
		dumpLimit: DefaultDumpLimit,
		logf:      log.Printf,
	}
	for _, opt := range opts {
		opt(l)
	}
	if v, ok := graph.(storage.Versioned); ok {
		l.versioned = v
		l.generation = v.Generation()
	}
	return l
}

// CreateEmpty marks head as an empty list by asserting head owl:sameAs rdf:nil.
//
// Returns ErrNonEmptyList if head already has an rdf:first triple.
func CreateEmpty(head rdf.Subject, graph storage.Graph, opts ...Option) (*List, error) {
	_, found, err := objectOf(graph, head, vocabulary.RDFFirst)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, fmt.Errorf("%w: %s", ErrNonEmptyList, head)
	}
	l := New(head, graph, opts...)
	if err := l.assert(head, vocabulary.OWLSameAs, vocabulary.RDFNil); err != nil {
		return nil, err
	}
	l.expanded = true
	l.settle()
	return l, nil
}

// Head returns the term identifying the list. It never changes.
func (l *List) Head() rdf.Subject { return l.head }

// Graph returns the graph the list is stored in.
func (l *List) Graph() storage.Graph { return l.graph }

// Equal reports whether both views share the same head and the same graph
// instance. Views over equal but distinct graphs are not equal. Graph
// identity needs a comparable graph value such as a pointer; views over a
// graph whose dynamic type is not comparable are never equal.
func (l *List) Equal(other *List) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.head == other.head && sameGraph(l.graph, other.graph)
}

func sameGraph(a, b storage.Graph) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta != nil && !ta.Comparable() {
		return false
	}
	return a == b
}

// Get returns the value at index.
func (l *List) Get(index int) (rdf.Term, error) {
	l.refresh()
	if index < 0 {
		return nil, outOfRange(index)
	}
	if err := l.expandTill(index + 1); err != nil {
		return nil, err
	}
	if index >= len(l.values) {
		return nil, outOfRange(index)
	}
	return l.values[index], nil
}

// Len walks the whole chain on first use and returns the number of values.
func (l *List) Len() (int, error) {
	l.refresh()
	if err := l.expandTill(math.MaxInt); err != nil {
		return 0, err
	}
	return len(l.values), nil
}

// Values returns a copy of all values in order.
func (l *List) Values() ([]rdf.Term, error) {
	if _, err := l.Len(); err != nil {
		return nil, err
	}
	return slices.Clone(l.values), nil
}

// Append adds value at the end of the list.
func (l *List) Append(value rdf.Term) error {
	n, err := l.Len()
	if err != nil {
		return err
	}
	return l.Add(n, value)
}

// Add inserts value at index, shifting later values back. index may equal the
// current length.
//
// Inserting at 0 keeps the head cell: its rdf:first is reassigned and the old
// first value moves into a new cell. Other inserts splice a new blank node
// cell into the chain.
func (l *List) Add(index int, value rdf.Term) error {
	l.refresh()
	if value == nil {
		return ErrNilValue
	}
	if index < 0 {
		return outOfRange(index)
	}
	if err := l.expandTill(index); err != nil {
		return err
	}
	if index > len(l.cells) {
		return outOfRange(index)
	}

	err := l.add(index, value)
	if err != nil {
		l.reset()
		return err
	}
	l.settle()
	return nil
}

func (l *List) add(index int, value rdf.Term) error {
	if index > 0 {
		return l.insertCell(index, value)
	}

	if len(l.cells) == 0 {
		if err := l.retract(l.head, vocabulary.OWLSameAs, vocabulary.RDFNil); err != nil {
			return err
		}
		if err := l.assert(l.head, vocabulary.RDFRest, vocabulary.RDFNil); err != nil {
			return err
		}
		if err := l.assert(l.head, vocabulary.RDFFirst, value); err != nil {
			return err
		}
		l.push(l.head, value)
		return nil
	}

	old := l.values[0]
	if err := l.retract(l.cells[0], vocabulary.RDFFirst, old); err != nil {
		return err
	}
	if err := l.assert(l.cells[0], vocabulary.RDFFirst, value); err != nil {
		return err
	}
	if err := l.insertCell(1, old); err != nil {
		return err
	}
	l.values[0] = value
	return nil
}

// insertCell links a new cell holding value between cells[index-1] and
// cells[index] (or rdf:nil). index must be > 0.
func (l *List) insertCell(index int, value rdf.Term) error {
	if err := l.expandTill(index + 1); err != nil {
		return err
	}
	cell := rdf.NewBlankNode()
	prev := l.cells[index-1]

	if err := l.assert(cell, vocabulary.RDFFirst, value); err != nil {
		return err
	}
	if index < len(l.cells) {
		next := l.cells[index]
		if err := l.assert(cell, vocabulary.RDFRest, next); err != nil {
			return err
		}
		if err := l.retract(prev, vocabulary.RDFRest, next); err != nil {
			return err
		}
	} else {
		if err := l.retract(prev, vocabulary.RDFRest, vocabulary.RDFNil); err != nil {
			return err
		}
		if err := l.assert(cell, vocabulary.RDFRest, vocabulary.RDFNil); err != nil {
			return err
		}
	}
	if err := l.assert(prev, vocabulary.RDFRest, cell); err != nil {
		return err
	}

	l.cells = slices.Insert(l.cells, index, rdf.Subject(cell))
	l.values = slices.Insert(l.values, index, value)
	l.members[cell] = struct{}{}
	return nil
}

// Remove deletes the value at index and returns it.
//
// Removing the last value unlinks its cell (or re-marks the head as empty).
// Removing any other value copies the next value into this cell and unlinks
// the next cell, so the head cell is never replaced.
func (l *List) Remove(index int) (rdf.Term, error) {
	l.refresh()
	if index < 0 {
		return nil, outOfRange(index)
	}
	// two cells of lookahead decide which rewiring applies
	if err := l.expandTill(index + 3); err != nil {
		return nil, err
	}
	if index >= len(l.cells) {
		return nil, outOfRange(index)
	}

	removed := l.values[index]
	if err := l.remove(index); err != nil {
		l.reset()
		return nil, err
	}
	l.settle()
	return removed, nil
}

func (l *List) remove(index int) error {
	n := len(l.cells)
	cell, value := l.cells[index], l.values[index]

	if err := l.retract(cell, vocabulary.RDFFirst, value); err != nil {
		return err
	}

	if index == n-1 {
		if err := l.retract(cell, vocabulary.RDFRest, vocabulary.RDFNil); err != nil {
			return err
		}
		if index > 0 {
			prev := l.cells[index-1]
			if err := l.retract(prev, vocabulary.RDFRest, cell); err != nil {
				return err
			}
			if err := l.assert(prev, vocabulary.RDFRest, vocabulary.RDFNil); err != nil {
				return err
			}
		} else {
			if err := l.assert(cell, vocabulary.OWLSameAs, vocabulary.RDFNil); err != nil {
				return err
			}
		}
		delete(l.members, cell)
		l.cells = l.cells[:index]
		l.values = l.values[:index]
		return nil
	}

	next, nextValue := l.cells[index+1], l.values[index+1]
	if err := l.assert(cell, vocabulary.RDFFirst, nextValue); err != nil {
		return err
	}
	if err := l.retract(cell, vocabulary.RDFRest, next); err != nil {
		return err
	}
	if err := l.retract(next, vocabulary.RDFFirst, nextValue); err != nil {
		return err
	}
	var after rdf.Subject = vocabulary.RDFNil
	if index+2 < n {
		after = l.cells[index+2]
	}
	if err := l.retract(next, vocabulary.RDFRest, after); err != nil {
		return err
	}
	if err := l.assert(cell, vocabulary.RDFRest, after); err != nil {
		return err
	}

	delete(l.members, next)
	l.cells = slices.Delete(l.cells, index+1, index+2)
	l.values = slices.Delete(l.values, index, index+1)
	return nil
}

// expandTill reads the chain until at least pos cells are cached or the end
// of the list is reached.
func (l *List) expandTill(pos int) error {
	if l.expanded {
		return nil
	}
	if len(l.cells) == 0 {
		value, found, err := objectOf(l.graph, l.head, vocabulary.RDFFirst)
		if err != nil {
			return err
		}
		if !found {
			l.expanded = true
			return nil
		}
		l.push(l.head, value)
	}
	for len(l.cells) < pos {
		next, err := l.rest(l.cells[len(l.cells)-1])
		if err != nil {
			return err
		}
		if next == vocabulary.RDFNil {
			l.expanded = true
			return nil
		}
		if _, seen := l.members[next]; seen {
			return l.broken(next, "rdf:rest chain loops back")
		}
		value, err := l.first(next)
		if err != nil {
			return err
		}
		l.push(next, value)
	}
	return nil
}

func (l *List) push(cell rdf.Subject, value rdf.Term) {
	l.cells = append(l.cells, cell)
	l.values = append(l.values, value)
	l.members[cell] = struct{}{}
}

func (l *List) reset() {
	l.cells = nil
	l.values = nil
	l.members = make(map[rdf.Subject]struct{})
	l.expanded = false
}

// refresh drops the caches if someone else changed the graph.
func (l *List) refresh() {
	if l.versioned == nil {
		return
	}
	if gen := l.versioned.Generation(); gen != l.generation {
		l.reset()
		l.generation = gen
	}
}

// settle records the generation produced by this view's own writes.
func (l *List) settle() {
	if l.versioned != nil {
		l.generation = l.versioned.Generation()
	}
}

func (l *List) first(cell rdf.Subject) (rdf.Term, error) {
	value, found, err := objectOf(l.graph, cell, vocabulary.RDFFirst)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, l.broken(cell, "missing rdf:first")
	}
	return value, nil
}

func (l *List) rest(cell rdf.Subject) (rdf.Subject, error) {
	next, found, err := objectOf(l.graph, cell, vocabulary.RDFRest)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, l.broken(cell, "missing rdf:rest")
	}
	subject, ok := next.(rdf.Subject)
	if !ok {
		return nil, l.broken(cell, "rdf:rest points to a literal")
	}
	return subject, nil
}

func (l *List) assert(s rdf.Subject, p rdf.IRI, o rdf.Term) error {
	if _, err := l.graph.Add(rdf.NewTriple(s, p, o)); err != nil {
		return fmt.Errorf("list %s: %w", l.head, err)
	}
	return nil
}

func (l *List) retract(s rdf.Subject, p rdf.IRI, o rdf.Term) error {
	if _, err := l.graph.Remove(rdf.NewTriple(s, p, o)); err != nil {
		return fmt.Errorf("list %s: %w", l.head, err)
	}
	return nil
}

// objectOf returns the object of the first triple matching (s, p, ?).
func objectOf(g storage.Graph, s rdf.Subject, p rdf.IRI) (rdf.Term, bool, error) {
	it := g.Filter(s, p, nil)
	if it.Next() {
		return it.Triple().Object, true, nil
	}
	return nil, false, it.Err()
}

func outOfRange(index int) error {
	return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
}
