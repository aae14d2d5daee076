package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicrdf/pkg/rdf"
)

var (
	alice = rdf.IRI("http://example.org/alice")
	bob   = rdf.IRI("http://example.org/bob")
	knows = rdf.IRI("http://xmlns.com/foaf/0.1/knows")
	name  = rdf.IRI("http://xmlns.com/foaf/0.1/name")
)

// runGraphSuite checks the Graph contract against any implementation.
func runGraphSuite(t *testing.T, newGraph func(t *testing.T) Graph) {
	t.Run("set semantics", func(t *testing.T) {
		g := newGraph(t)
		tr := rdf.NewTriple(alice, knows, bob)

		added, err := g.Add(tr)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = g.Add(tr)
		require.NoError(t, err)
		assert.False(t, added, "duplicate add must not insert")

		size, err := g.Size()
		require.NoError(t, err)
		assert.Equal(t, 1, size)

		ok, err := g.Contains(tr)
		require.NoError(t, err)
		assert.True(t, ok)

		removed, err := g.Remove(tr)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = g.Remove(tr)
		require.NoError(t, err)
		assert.False(t, removed)

		size, err = g.Size()
		require.NoError(t, err)
		assert.Zero(t, size)
	})

	t.Run("filter patterns", func(t *testing.T) {
		g := newGraph(t)
		blank := rdf.NewBlankNode()
		triples := []rdf.Triple{
			rdf.NewTriple(alice, knows, bob),
			rdf.NewTriple(alice, name, rdf.NewLiteral("Alice")),
			rdf.NewTriple(bob, knows, alice),
			rdf.NewTriple(bob, name, rdf.NewLangLiteral("Bob", "en")),
			rdf.NewTriple(blank, knows, bob),
		}
		n, err := AddAll(g, triples)
		require.NoError(t, err)
		require.Equal(t, len(triples), n)

		tests := []struct {
			name      string
			subject   rdf.Subject
			predicate rdf.IRI
			object    rdf.Term
			want      int
		}{
			{"all", nil, "", nil, 5},
			{"subject", alice, "", nil, 2},
			{"predicate", nil, knows, nil, 3},
			{"object", nil, "", bob, 2},
			{"subject predicate", bob, name, nil, 1},
			{"subject object", blank, "", bob, 1},
			{"predicate object", nil, knows, alice, 1},
			{"exact", alice, knows, bob, 1},
			{"exact missing", alice, knows, alice, 0},
			{"unknown subject", rdf.IRI("urn:none"), "", nil, 0},
			{"literal object", nil, "", rdf.NewLiteral("Alice"), 1},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := Collect(g.Filter(tt.subject, tt.predicate, tt.object))
				require.NoError(t, err)
				assert.Len(t, got, tt.want)
				for _, tr := range got {
					assert.True(t, matches(tr, tt.subject, tt.predicate, tt.object))
				}
			})
		}
	})

	t.Run("stable order while unmodified", func(t *testing.T) {
		g := newGraph(t)
		for i := 0; i < 20; i++ {
			_, err := g.Add(rdf.NewTriple(rdf.NewBlankNode(), knows, bob))
			require.NoError(t, err)
		}
		first, err := All(g)
		require.NoError(t, err)
		second, err := All(g)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("iterator remove", func(t *testing.T) {
		g := newGraph(t)
		_, err := AddAll(g, []rdf.Triple{
			rdf.NewTriple(alice, knows, bob),
			rdf.NewTriple(bob, knows, alice),
		})
		require.NoError(t, err)

		it := g.Filter(nil, knows, nil)
		assert.ErrorIs(t, it.Remove(), ErrNoCurrent)
		for it.Next() {
			require.NoError(t, it.Remove())
		}
		require.NoError(t, it.Err())

		size, err := g.Size()
		require.NoError(t, err)
		assert.Zero(t, size)
	})

	t.Run("invalid triple rejected", func(t *testing.T) {
		g := newGraph(t)
		_, err := g.Add(rdf.NewTriple(alice, "", bob))
		assert.ErrorIs(t, err, ErrInvalidTriple)
		assert.ErrorIs(t, err, rdf.ErrInvalidTerm)
	})

	t.Run("invalid UTF-8 rejected", func(t *testing.T) {
		g := newGraph(t)
		for _, tr := range []rdf.Triple{
			rdf.NewTriple(alice, name, rdf.NewLiteral("a\xffb")),
			rdf.NewTriple(alice, name, rdf.NewLiteral("a\xfeb")),
			rdf.NewTriple(rdf.IRI("urn:\xff"), knows, bob),
			rdf.NewTriple(alice, knows, rdf.IRI("urn:\xfe")),
		} {
			added, err := g.Add(tr)
			assert.ErrorIs(t, err, ErrInvalidTriple)
			assert.False(t, added)
		}
		size, err := g.Size()
		require.NoError(t, err)
		assert.Zero(t, size)
	})

	t.Run("literals survive storage unchanged", func(t *testing.T) {
		g := newGraph(t)
		values := []rdf.Literal{
			rdf.NewLiteral("a\u00ffb"),
			rdf.NewLiteral("a\u00feb"),
			rdf.NewLiteral("nul\x00byte"),
			rdf.NewLiteral("日本語"),
		}
		for _, v := range values {
			added, err := g.Add(rdf.NewTriple(alice, name, v))
			require.NoError(t, err)
			assert.True(t, added, "%q is a distinct literal", v.Lexical)
		}
		for _, v := range values {
			got, err := Collect(g.Filter(nil, "", v))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, rdf.Term(v), got[0].Object)
		}
	})

	t.Run("generation tracks changes", func(t *testing.T) {
		g := newGraph(t)
		v, ok := g.(Versioned)
		require.True(t, ok)

		start := v.Generation()
		_, err := g.Add(rdf.NewTriple(alice, knows, bob))
		require.NoError(t, err)
		afterAdd := v.Generation()
		assert.NotEqual(t, start, afterAdd)

		_, err = g.Add(rdf.NewTriple(alice, knows, bob))
		require.NoError(t, err)
		assert.Equal(t, afterAdd, v.Generation(), "no-op add keeps generation")

		_, err = g.Remove(rdf.NewTriple(alice, knows, bob))
		require.NoError(t, err)
		assert.NotEqual(t, afterAdd, v.Generation())
	})

	t.Run("external lock is independent", func(t *testing.T) {
		g := newGraph(t)
		lock := g.RWLock()
		lock.Lock()
		defer lock.Unlock()

		_, err := g.Add(rdf.NewTriple(alice, knows, bob))
		require.NoError(t, err)
		size, err := g.Size()
		require.NoError(t, err)
		assert.Equal(t, 1, size)
	})
}

func TestMemoryGraph(t *testing.T) {
	runGraphSuite(t, func(t *testing.T) Graph {
		return NewMemoryGraph()
	})
}

func TestNewMemoryGraphFrom(t *testing.T) {
	g, err := NewMemoryGraphFrom([]rdf.Triple{
		rdf.NewTriple(alice, knows, bob),
		rdf.NewTriple(alice, knows, bob),
	})
	require.NoError(t, err)
	size, _ := g.Size()
	assert.Equal(t, 1, size)

	_, err = NewMemoryGraphFrom([]rdf.Triple{rdf.NewTriple(nil, knows, bob)})
	assert.ErrorIs(t, err, ErrInvalidTriple)
}

func TestMemoryGraphIndexCleanup(t *testing.T) {
	g := NewMemoryGraph()
	tr := rdf.NewTriple(alice, knows, bob)
	_, _ = g.Add(tr)
	_, _ = g.Remove(tr)

	assert.Empty(t, g.bySubject)
	assert.Empty(t, g.byPredicate)
	assert.Empty(t, g.byObject)
}
