package rdflist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/storage"
)

// BrokenListError reports a chain that cannot be followed: a cell without
// rdf:first or rdf:rest, an rdf:rest pointing at a literal, or a loop.
//
// It matches ErrBrokenList with errors.Is. DumpErr is set when exporting the
// diagnostic triples failed; the broken list is still the primary error.
type BrokenListError struct {
	Head    rdf.Subject
	Cell    rdf.Subject
	Reason  string
	DumpErr error
}

func (e *BrokenListError) Error() string {
	msg := fmt.Sprintf("broken list %s at %s: %s", e.Head, e.Cell, e.Reason)
	if e.DumpErr != nil {
		msg += fmt.Sprintf(" (dump failed: %v)", e.DumpErr)
	}
	return msg
}

func (e *BrokenListError) Unwrap() []error {
	if e.DumpErr != nil {
		return []error{ErrBrokenList, e.DumpErr}
	}
	return []error{ErrBrokenList}
}

// DumpSink receives the neighbourhood of a broken list for offline inspection.
type DumpSink interface {
	Dump(head rdf.Subject, triples []rdf.Triple) error
}

// DefaultDumpPath is broken-list.nt in the system temp directory.
func DefaultDumpPath() string {
	return filepath.Join(os.TempDir(), "broken-list.nt")
}

// FileSink writes N-Triples to Path, replacing earlier dumps.
type FileSink struct {
	Path string
}

// Dump implements DumpSink.
func (s FileSink) Dump(_ rdf.Subject, triples []rdf.Triple) (err error) {
	path := s.Path
	if path == "" {
		path = DefaultDumpPath()
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dump file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := rdf.WriteNTriples(w, triples); err != nil {
		return err
	}
	return w.Flush()
}

// WriterSink writes N-Triples to W, prefixed by a comment naming the list.
type WriterSink struct {
	W io.Writer
}

// Dump implements DumpSink.
func (s WriterSink) Dump(head rdf.Subject, triples []rdf.Triple) error {
	if _, err := fmt.Fprintf(s.W, "# broken list %s\n", head); err != nil {
		return err
	}
	return rdf.WriteNTriples(s.W, triples)
}

// broken builds the error for a chain that stops making sense at cell. The
// cached state is dropped so the next call reads the graph again.
func (l *List) broken(cell rdf.Subject, reason string) error {
	err := &BrokenListError{Head: l.head, Cell: cell, Reason: reason}
	defer l.reset()

	context, ctxErr := l.neighbourhood(cell)
	if ctxErr != nil {
		err.DumpErr = ctxErr
		return err
	}

	if l.sink != nil {
		if dumpErr := l.sink.Dump(l.head, context); dumpErr != nil {
			err.DumpErr = dumpErr
		}
	}

	l.logf("broken list %s at %s: %s", l.head, cell, reason)
	seen := make(map[rdf.IRI]struct{})
	for _, t := range context {
		if t.Subject != cell {
			continue
		}
		if _, ok := seen[t.Predicate]; ok {
			continue
		}
		seen[t.Predicate] = struct{}{}
		l.logf("   available on %s: %s", cell, t.Predicate)
	}
	return err
}

// neighbourhood collects the triples touching the head and the broken cell,
// capped at the dump limit.
func (l *List) neighbourhood(cell rdf.Subject) ([]rdf.Triple, error) {
	var out []rdf.Triple
	seen := make(map[rdf.Triple]struct{})
	collect := func(it storage.Iterator) error {
		for len(out) < l.dumpLimit && it.Next() {
			t := it.Triple()
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
		return it.Err()
	}

	nodes := []rdf.Subject{l.head}
	if cell != l.head {
		nodes = append(nodes, cell)
	}
	var errs []error
	for _, n := range nodes {
		errs = append(errs, collect(l.graph.Filter(n, "", nil)))
		errs = append(errs, collect(l.graph.Filter(nil, "", n)))
	}
	rdf.SortTriples(out)
	return out, errors.Join(errs...)
}
