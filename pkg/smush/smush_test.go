package smush

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/storage"
	"github.com/orneryd/nornicrdf/pkg/vocabulary"
)

const (
	mbox     = rdf.IRI("http://xmlns.com/foaf/0.1/mbox")
	homepage = rdf.IRI("http://xmlns.com/foaf/0.1/homepage")
	name     = rdf.IRI("http://xmlns.com/foaf/0.1/name")
	knows    = rdf.IRI("http://xmlns.com/foaf/0.1/knows")
)

func schemaGraph(t *testing.T, ifps ...rdf.IRI) *storage.MemoryGraph {
	t.Helper()
	g := storage.NewMemoryGraph()
	for _, p := range ifps {
		_, err := g.Add(rdf.NewTriple(p, vocabulary.RDFType, vocabulary.OWLInverseFunctionalProperty))
		require.NoError(t, err)
	}
	return g
}

func dataGraph(t *testing.T, triples ...rdf.Triple) *storage.MemoryGraph {
	t.Helper()
	g, err := storage.NewMemoryGraphFrom(triples)
	require.NoError(t, err)
	return g
}

func quietSmusher(t *testing.T) *Smusher {
	return &Smusher{Logger: t.Logf}
}

func TestCollectInverseFunctionalProperties(t *testing.T) {
	schema := schemaGraph(t, mbox, homepage)
	_, err := schema.Add(rdf.NewTriple(name, vocabulary.RDFType, rdf.IRI("http://www.w3.org/2002/07/owl#DatatypeProperty")))
	require.NoError(t, err)
	_, err = schema.Add(rdf.NewTriple(rdf.NewBlankNode(), vocabulary.RDFType, vocabulary.OWLInverseFunctionalProperty))
	require.NoError(t, err)

	ifps, err := CollectInverseFunctionalProperties(schema)
	require.NoError(t, err)
	assert.Equal(t, map[rdf.IRI]struct{}{mbox: {}, homepage: {}}, ifps)
}

func TestGroupBySharedValue(t *testing.T) {
	a, b := rdf.BlankNodeWithLabel("a"), rdf.BlankNodeWithLabel("b")
	addr := rdf.IRI("mailto:alice@example.org")
	data := dataGraph(t,
		rdf.NewTriple(a, mbox, addr),
		rdf.NewTriple(b, mbox, addr),
		rdf.NewTriple(b, name, rdf.NewLiteral("Alice")),
		rdf.NewTriple(a, name, rdf.NewLiteral("Alice")),
	)

	groups, err := GroupBySharedValue(data, map[rdf.IRI]struct{}{mbox: {}})
	require.NoError(t, err)
	assert.Equal(t, map[Key][]rdf.Subject{
		{Predicate: mbox, Object: addr}: {a, b},
	}, groups, "name is not inverse functional")
}

func TestSmushDisjointDataIsNoop(t *testing.T) {
	triples := []rdf.Triple{
		rdf.NewTriple(rdf.IRI("http://example.org/alice"), mbox, rdf.IRI("mailto:alice@example.org")),
		rdf.NewTriple(rdf.IRI("http://example.org/bob"), mbox, rdf.IRI("mailto:bob@example.org")),
		rdf.NewTriple(rdf.IRI("http://example.org/alice"), knows, rdf.IRI("http://example.org/bob")),
	}
	data := dataGraph(t, triples...)

	result, err := quietSmusher(t).Smush(data, schemaGraph(t, mbox))
	require.NoError(t, err)
	assert.Zero(t, result.Merged)
	assert.Zero(t, result.Rewritten)
	assert.Len(t, result.Classes, 2)
	for _, class := range result.Classes {
		assert.Len(t, class, 1)
	}

	all, err := storage.All(data)
	require.NoError(t, err)
	want := append([]rdf.Triple(nil), triples...)
	rdf.SortTriples(want)
	assert.Equal(t, want, all)
}

func TestSmushTransitiveMergeAcrossProperties(t *testing.T) {
	a := rdf.BlankNodeWithLabel("a")
	b := rdf.BlankNodeWithLabel("b")
	c := rdf.IRI("http://example.org/carol")
	dave := rdf.IRI("http://example.org/dave")

	data := dataGraph(t,
		rdf.NewTriple(a, mbox, rdf.IRI("mailto:carol@example.org")),
		rdf.NewTriple(b, mbox, rdf.IRI("mailto:carol@example.org")),
		rdf.NewTriple(b, homepage, rdf.IRI("http://carol.example.org/")),
		rdf.NewTriple(c, homepage, rdf.IRI("http://carol.example.org/")),
		rdf.NewTriple(a, name, rdf.NewLiteral("Carol")),
		rdf.NewTriple(dave, knows, a),
		rdf.NewTriple(dave, knows, b),
	)

	result, err := quietSmusher(t).Smush(data, schemaGraph(t, mbox, homepage))
	require.NoError(t, err)
	assert.Equal(t, []rdf.IRI{homepage, mbox}, result.InverseFunctionalProperties)
	assert.Equal(t, 2, result.Groups)
	assert.Equal(t, [][]rdf.Subject{{c, a, b}}, result.Classes)
	assert.Equal(t, 1, result.Merged)

	all, err := storage.All(data)
	require.NoError(t, err)
	for _, tr := range all {
		assert.NotEqual(t, rdf.Subject(a), tr.Subject)
		assert.NotEqual(t, rdf.Subject(b), tr.Subject)
		assert.NotEqual(t, rdf.Term(a), tr.Object)
		assert.NotEqual(t, rdf.Term(b), tr.Object)
	}

	want := []rdf.Triple{
		rdf.NewTriple(c, mbox, rdf.IRI("mailto:carol@example.org")),
		rdf.NewTriple(c, homepage, rdf.IRI("http://carol.example.org/")),
		rdf.NewTriple(c, name, rdf.NewLiteral("Carol")),
		rdf.NewTriple(dave, knows, c),
	}
	rdf.SortTriples(want)
	assert.Equal(t, want, all)
}

func TestSmushWithoutDeclarations(t *testing.T) {
	data := dataGraph(t, rdf.NewTriple(rdf.IRI("http://example.org/x"), mbox, rdf.IRI("mailto:x@example.org")))

	result, err := Smush(data, storage.NewMemoryGraph())
	require.NoError(t, err)
	assert.Empty(t, result.InverseFunctionalProperties)
	assert.Empty(t, result.Classes)
}

func TestRepresentative(t *testing.T) {
	iri := rdf.IRI("http://example.org/z")
	blank := rdf.BlankNodeWithLabel("a")

	assert.Equal(t, rdf.Subject(iri), Representative([]rdf.Subject{blank, iri}))
	assert.Equal(t, rdf.Subject(blank), Representative([]rdf.Subject{rdf.BlankNodeWithLabel("b"), blank}))
	assert.Nil(t, Representative(nil))
}

func TestRewriteSharedTriple(t *testing.T) {
	x1, x2 := rdf.BlankNodeWithLabel("x1"), rdf.BlankNodeWithLabel("x2")
	y1, y2 := rdf.BlankNodeWithLabel("y1"), rdf.BlankNodeWithLabel("y2")
	data := dataGraph(t,
		rdf.NewTriple(x2, knows, y2),
		rdf.NewTriple(x1, knows, y1),
	)

	n, err := Rewrite(data, [][]rdf.Subject{{x1, x2}, {y1, y2}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := storage.All(data)
	require.NoError(t, err)
	assert.Equal(t, []rdf.Triple{rdf.NewTriple(x1, knows, y1)}, all)
}

// naiveUnion merges any two sets sharing a member and repeats while the
// number of sets shrinks.
func naiveUnion(sets [][]rdf.Subject) []map[rdf.Subject]bool {
	var current []map[rdf.Subject]bool
	for _, s := range sets {
		if len(s) == 0 {
			continue
		}
		m := make(map[rdf.Subject]bool)
		for _, x := range s {
			m[x] = true
		}
		current = append(current, m)
	}
	for {
		var result []map[rdf.Subject]bool
		for _, s := range current {
			var match map[rdf.Subject]bool
			for _, r := range result {
				for x := range s {
					if r[x] {
						match = r
						break
					}
				}
				if match != nil {
					break
				}
			}
			if match == nil {
				copied := make(map[rdf.Subject]bool)
				for x := range s {
					copied[x] = true
				}
				result = append(result, copied)
				continue
			}
			for x := range s {
				match[x] = true
			}
		}
		if len(result) == len(current) {
			return result
		}
		current = result
	}
}

func asSets(classes [][]rdf.Subject) []map[rdf.Subject]bool {
	out := make([]map[rdf.Subject]bool, 0, len(classes))
	for _, c := range classes {
		m := make(map[rdf.Subject]bool)
		for _, x := range c {
			m[x] = true
		}
		out = append(out, m)
	}
	return out
}

func TestUnionOverlappingMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	nodes := make([]rdf.Subject, 40)
	for i := range nodes {
		if i%2 == 0 {
			nodes[i] = rdf.IRI(fmt.Sprintf("http://example.org/n%d", i))
		} else {
			nodes[i] = rdf.BlankNodeWithLabel(fmt.Sprintf("n%d", i))
		}
	}

	for round := 0; round < 50; round++ {
		sets := make([][]rdf.Subject, rng.Intn(20))
		for i := range sets {
			size := rng.Intn(4)
			for j := 0; j < size; j++ {
				sets[i] = append(sets[i], nodes[rng.Intn(len(nodes))])
			}
		}

		got := UnionOverlapping(sets)
		assert.ElementsMatch(t, naiveUnion(sets), asSets(got), "round %d", round)

		shuffled := append([][]rdf.Subject(nil), sets...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, got, UnionOverlapping(shuffled), "order independent")
	}
}

func TestUnionOverlappingSingletonsUnchanged(t *testing.T) {
	a, b, c := rdf.IRI("urn:a"), rdf.IRI("urn:b"), rdf.IRI("urn:c")
	got := UnionOverlapping([][]rdf.Subject{{c}, {a}, {}, {b}})
	assert.Equal(t, [][]rdf.Subject{{a}, {b}, {c}}, got)
}
