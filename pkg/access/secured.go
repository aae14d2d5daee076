// Package access gates graph operations behind read and read-write permissions.
//
// A SecuredGraph wraps any storage.Graph under a graph name. Every read
// (Filter iteration, Contains, Size) asks the Controller for read permission
// on that name, every mutation (Add, Remove, removal through an iterator)
// asks for read-write permission. Iterators re-check on every step, so a
// revoked permission takes effect in the middle of a scan.
//
// Example Usage:
//
//	policy := access.NewPolicy(0)
//	policy.AddPrincipal("alice", "AlicePass456!", access.RoleViewer)
//
//	session, err := policy.Authenticate("alice", "AlicePass456!")
//	if err != nil {
//		return err
//	}
//
//	graph := access.NewSecuredGraph(storage.NewMemoryGraph(), "urn:graph:main", session)
//	_, err = graph.Add(t) // ErrAccessDenied: viewers cannot write
package access

import (
	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/storage"
)

// Controller decides whether the caller may access a named graph. Both
// checks return nil when access is granted and an error matching
// ErrAccessDenied otherwise.
type Controller interface {
	CheckRead(name rdf.IRI) error
	CheckReadWrite(name rdf.IRI) error
}

// ControllerFunc adapts a function to Controller. It is called with PermRead
// for read checks and PermWrite for read-write checks.
type ControllerFunc func(name rdf.IRI, perm Permission) error

func (f ControllerFunc) CheckRead(name rdf.IRI) error { return f(name, PermRead) }

func (f ControllerFunc) CheckReadWrite(name rdf.IRI) error { return f(name, PermWrite) }

// AllowAll grants every permission on every graph.
var AllowAll Controller = ControllerFunc(func(rdf.IRI, Permission) error { return nil })

// SecuredGraph is a storage.Graph that checks permissions before delegating.
type SecuredGraph struct {
	wrapped    storage.Graph
	name       rdf.IRI
	controller Controller
}

// NewSecuredGraph wraps g. name identifies the graph to the controller.
func NewSecuredGraph(g storage.Graph, name rdf.IRI, controller Controller) *SecuredGraph {
	return &SecuredGraph{wrapped: g, name: name, controller: controller}
}

// Name returns the graph name permissions are checked against.
func (s *SecuredGraph) Name() rdf.IRI { return s.name }

// Unwrap returns the underlying graph.
func (s *SecuredGraph) Unwrap() storage.Graph { return s.wrapped }

func (s *SecuredGraph) checkRead() error { return s.controller.CheckRead(s.name) }

func (s *SecuredGraph) checkWrite() error { return s.controller.CheckReadWrite(s.name) }

// Filter returns an iterator that checks read permission on every step.
func (s *SecuredGraph) Filter(subject rdf.Subject, predicate rdf.IRI, object rdf.Term) storage.Iterator {
	return &securedIterator{
		graph: s,
		base:  s.wrapped.Filter(subject, predicate, object),
	}
}

func (s *SecuredGraph) Contains(t rdf.Triple) (bool, error) {
	if err := s.checkRead(); err != nil {
		return false, err
	}
	return s.wrapped.Contains(t)
}

func (s *SecuredGraph) Add(t rdf.Triple) (bool, error) {
	if err := s.checkWrite(); err != nil {
		return false, err
	}
	return s.wrapped.Add(t)
}

func (s *SecuredGraph) Remove(t rdf.Triple) (bool, error) {
	if err := s.checkWrite(); err != nil {
		return false, err
	}
	return s.wrapped.Remove(t)
}

func (s *SecuredGraph) Size() (int, error) {
	if err := s.checkRead(); err != nil {
		return 0, err
	}
	return s.wrapped.Size()
}

// RWLock returns the wrapped graph's lock. Locking is not permission checked.
func (s *SecuredGraph) RWLock() storage.RWLocker { return s.wrapped.RWLock() }

// Generation forwards to the wrapped graph when it is versioned and returns
// zero otherwise.
func (s *SecuredGraph) Generation() uint64 {
	if v, ok := s.wrapped.(storage.Versioned); ok {
		return v.Generation()
	}
	return 0
}

type securedIterator struct {
	graph *SecuredGraph
	base  storage.Iterator
	err   error
}

func (it *securedIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if err := it.graph.checkRead(); err != nil {
		it.err = err
		return false
	}
	return it.base.Next()
}

func (it *securedIterator) Triple() rdf.Triple { return it.base.Triple() }

func (it *securedIterator) Remove() error {
	if err := it.graph.checkWrite(); err != nil {
		return err
	}
	return it.base.Remove()
}

func (it *securedIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.base.Err()
}

var (
	_ storage.Graph     = (*SecuredGraph)(nil)
	_ storage.Versioned = (*SecuredGraph)(nil)
)
