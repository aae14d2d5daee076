package rdflist

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/storage"
	"github.com/orneryd/nornicrdf/pkg/vocabulary"
)

const head = rdf.IRI("http://example.org/list")

func lit(v any) rdf.Term { return rdf.NewLiteral(fmt.Sprint(v)) }

// quiet keeps diagnostics in the test log and out of the temp directory.
func quiet(t *testing.T, sink DumpSink) []Option {
	return []Option{WithDumpSink(sink), WithLogger(t.Logf)}
}

func newEmpty(t *testing.T) (*List, *storage.MemoryGraph) {
	t.Helper()
	g := storage.NewMemoryGraph()
	l, err := CreateEmpty(head, g, quiet(t, nil)...)
	require.NoError(t, err)
	return l, g
}

func requireValues(t *testing.T, l *List, want ...rdf.Term) {
	t.Helper()
	got, err := l.Values()
	require.NoError(t, err)
	if len(want) == 0 {
		assert.Empty(t, got)
		return
	}
	assert.Equal(t, want, got)
}

func TestCreateEmpty(t *testing.T) {
	l, g := newEmpty(t)

	n, err := l.Len()
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := storage.All(g)
	require.NoError(t, err)
	assert.Equal(t, []rdf.Triple{rdf.NewTriple(head, vocabulary.OWLSameAs, vocabulary.RDFNil)}, all)

	t.Run("rejects non-empty head", func(t *testing.T) {
		require.NoError(t, l.Append(lit("a")))
		_, err := CreateEmpty(head, g)
		assert.ErrorIs(t, err, ErrNonEmptyList)
	})
}

func TestAddAndRemove(t *testing.T) {
	l, g := newEmpty(t)
	a, b, c := lit("a"), lit("b"), lit("c")

	require.NoError(t, l.Add(0, a))
	requireValues(t, l, a)
	ok, _ := g.Contains(rdf.NewTriple(head, vocabulary.OWLSameAs, vocabulary.RDFNil))
	assert.False(t, ok, "empty marker replaced by the first cell")

	require.NoError(t, l.Add(1, b))
	require.NoError(t, l.Add(0, c))
	requireValues(t, l, c, a, b)

	first, err := l.Get(0)
	require.NoError(t, err)
	assert.Equal(t, c, first)
	ok, _ = g.Contains(rdf.NewTriple(head, vocabulary.RDFFirst, c))
	assert.True(t, ok, "head cell holds the first value")

	size, _ := g.Size()
	assert.Equal(t, 6, size)

	removed, err := l.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, a, removed)
	requireValues(t, l, c, b)

	removed, err = l.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, b, removed)
	requireValues(t, l, c)

	removed, err = l.Remove(0)
	require.NoError(t, err)
	assert.Equal(t, c, removed)
	requireValues(t, l)

	all, err := storage.All(g)
	require.NoError(t, err)
	assert.Equal(t, []rdf.Triple{rdf.NewTriple(head, vocabulary.OWLSameAs, vocabulary.RDFNil)}, all)
}

func TestRemoveThenAddKeepsHead(t *testing.T) {
	l, g := newEmpty(t)
	for _, v := range []string{"x", "y", "z"} {
		require.NoError(t, l.Append(lit(v)))
	}

	_, err := l.Remove(0)
	require.NoError(t, err)
	require.NoError(t, l.Add(0, lit("new")))

	n, err := l.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, rdf.Subject(head), l.Head())

	ok, _ := g.Contains(rdf.NewTriple(head, vocabulary.RDFFirst, lit("new")))
	assert.True(t, ok)

	fresh := New(head, g)
	requireValues(t, fresh, lit("new"), lit("y"), lit("z"))
}

func TestRandomEditsMatchSlice(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l, g := newEmpty(t)
	var model []rdf.Term

	for i := 0; i < 300; i++ {
		if len(model) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(model))
			removed, err := l.Remove(idx)
			require.NoError(t, err)
			require.Equal(t, model[idx], removed)
			model = append(model[:idx], model[idx+1:]...)
		} else {
			idx := rng.Intn(len(model) + 1)
			v := lit(i)
			require.NoError(t, l.Add(idx, v))
			model = append(model[:idx], append([]rdf.Term{v}, model[idx:]...)...)
		}

		if i%25 == 0 {
			requireValues(t, l, model...)
			requireValues(t, New(head, g), model...)
		}
	}

	requireValues(t, l, model...)
	for i, want := range model {
		got, err := New(head, g).Get(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	size, err := g.Size()
	require.NoError(t, err)
	if len(model) == 0 {
		assert.Equal(t, 1, size)
	} else {
		assert.Equal(t, 2*len(model), size, "each value costs one first and one rest triple")
	}
}

func TestIndexOutOfRange(t *testing.T) {
	l, _ := newEmpty(t)
	require.NoError(t, l.Append(lit("only")))

	_, err := l.Get(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = l.Get(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = l.Remove(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, l.Add(2, lit("far")), ErrIndexOutOfRange)
	assert.ErrorIs(t, l.Add(0, nil), ErrNilValue)

	requireValues(t, l, lit("only"))
}

func TestLazyExpansion(t *testing.T) {
	l, g := newEmpty(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Append(lit(i)))
	}

	view := New(head, g)
	v, err := view.Get(2)
	require.NoError(t, err)
	assert.Equal(t, lit(2), v)
	assert.Len(t, view.cells, 3)
	assert.False(t, view.expanded)

	n, err := view.Len()
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.True(t, view.expanded)
}

func TestForeignWriteInvalidatesCache(t *testing.T) {
	writer, g := newEmpty(t)
	require.NoError(t, writer.Append(lit("a")))

	reader := New(head, g)
	requireValues(t, reader, lit("a"))

	require.NoError(t, writer.Append(lit("b")))
	requireValues(t, reader, lit("a"), lit("b"))
}

func TestEqual(t *testing.T) {
	g := storage.NewMemoryGraph()
	other := storage.NewMemoryGraph()

	assert.True(t, New(head, g).Equal(New(head, g)))
	assert.False(t, New(head, g).Equal(New(head, other)), "same content, different graph")
	assert.False(t, New(head, g).Equal(New(rdf.IRI("http://example.org/other"), g)))
	assert.False(t, New(head, g).Equal(nil))

	t.Run("graph value that is not comparable", func(t *testing.T) {
		tagged := taggedGraph{MemoryGraph: g, tags: map[string]string{"env": "test"}}
		assert.NotPanics(t, func() {
			assert.False(t, New(head, tagged).Equal(New(head, tagged)))
			assert.False(t, New(head, tagged).Equal(New(head, g)))
		})
	})
}

// taggedGraph is a storage.Graph held by value whose type cannot be compared.
type taggedGraph struct {
	*storage.MemoryGraph
	tags map[string]string
}

func brokenGraph(t *testing.T, triples ...rdf.Triple) *storage.MemoryGraph {
	t.Helper()
	g, err := storage.NewMemoryGraphFrom(triples)
	require.NoError(t, err)
	return g
}

func TestBrokenList(t *testing.T) {
	cell := rdf.BlankNodeWithLabel("c1")

	tests := []struct {
		name    string
		triples []rdf.Triple
		reason  string
	}{
		{
			name: "missing rest",
			triples: []rdf.Triple{
				rdf.NewTriple(head, vocabulary.RDFFirst, lit("a")),
				rdf.NewTriple(head, vocabulary.RDFRest, cell),
				rdf.NewTriple(cell, vocabulary.RDFFirst, lit("b")),
			},
			reason: "missing rdf:rest",
		},
		{
			name: "missing first",
			triples: []rdf.Triple{
				rdf.NewTriple(head, vocabulary.RDFFirst, lit("a")),
				rdf.NewTriple(head, vocabulary.RDFRest, cell),
				rdf.NewTriple(cell, vocabulary.RDFRest, vocabulary.RDFNil),
			},
			reason: "missing rdf:first",
		},
		{
			name: "rest loops back",
			triples: []rdf.Triple{
				rdf.NewTriple(head, vocabulary.RDFFirst, lit("a")),
				rdf.NewTriple(head, vocabulary.RDFRest, cell),
				rdf.NewTriple(cell, vocabulary.RDFFirst, lit("b")),
				rdf.NewTriple(cell, vocabulary.RDFRest, head),
			},
			reason: "loops back",
		},
		{
			name: "rest is a literal",
			triples: []rdf.Triple{
				rdf.NewTriple(head, vocabulary.RDFFirst, lit("a")),
				rdf.NewTriple(head, vocabulary.RDFRest, lit("oops")),
			},
			reason: "literal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dump bytes.Buffer
			l := New(head, brokenGraph(t, tt.triples...), quiet(t, WriterSink{W: &dump})...)

			_, err := l.Len()
			require.ErrorIs(t, err, ErrBrokenList)

			var broken *BrokenListError
			require.True(t, errors.As(err, &broken))
			assert.Equal(t, rdf.Subject(head), broken.Head)
			assert.Contains(t, broken.Reason, tt.reason)
			assert.NoError(t, broken.DumpErr)

			assert.True(t, strings.HasPrefix(dump.String(), "# broken list <http://example.org/list>\n"))
			assert.Contains(t, dump.String(), "<http://www.w3.org/1999/02/22-rdf-syntax-ns#first>")

			_, err = l.Get(0)
			assert.NoError(t, err, "the head cell is still readable")
		})
	}
}

type failingSink struct{ err error }

func (s failingSink) Dump(rdf.Subject, []rdf.Triple) error { return s.err }

func TestBrokenListDumpFailure(t *testing.T) {
	sinkErr := errors.New("disk full")
	g := brokenGraph(t,
		rdf.NewTriple(head, vocabulary.RDFFirst, lit("a")),
	)
	l := New(head, g, quiet(t, failingSink{err: sinkErr})...)

	_, err := l.Len()
	assert.ErrorIs(t, err, ErrBrokenList, "the structural failure stays primary")
	assert.ErrorIs(t, err, sinkErr)
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.nt")
	g := brokenGraph(t,
		rdf.NewTriple(head, vocabulary.RDFFirst, lit("a")),
		rdf.NewTriple(rdf.IRI("http://example.org/owner"), rdf.IRI("http://example.org/has"), head),
	)
	l := New(head, g, WithDumpSink(FileSink{Path: path}), WithLogger(t.Logf), WithDumpLimit(10))

	_, err := l.Len()
	require.ErrorIs(t, err, ErrBrokenList)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	triples, err := rdf.NewDecoder(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, triples, 2, "outgoing and incoming triples of the head")
}
