package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/nornicrdf/pkg/rdf"
)

func TestBadgerGraph(t *testing.T) {
	runGraphSuite(t, func(t *testing.T) Graph {
		g, err := NewBadgerGraphInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = g.Close() })
		return g
	})
}

func TestBadgerGraphPersistence(t *testing.T) {
	dir := t.TempDir()
	blank := rdf.NewBlankNode()
	triples := []rdf.Triple{
		rdf.NewTriple(blank, name, rdf.NewLiteral("line\nbreak \"quoted\"")),
		rdf.NewTriple(alice, knows, blank),
	}

	g, err := NewBadgerGraph(dir)
	require.NoError(t, err)
	_, err = AddAll(g, triples)
	require.NoError(t, err)
	require.NoError(t, g.Close())

	reopened, err := NewBadgerGraphWithOptions(BadgerOptions{DataDir: dir, LowMemory: true})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := Collect(reopened.Filter(blank, "", nil))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, triples[0], got[0], "blank node identity survives reopen")

	ok, err := reopened.Contains(triples[1])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBadgerGraphClosed(t *testing.T) {
	g, err := NewBadgerGraphInMemory()
	require.NoError(t, err)
	require.NoError(t, g.Close())
	require.NoError(t, g.Close())

	_, err = g.Add(rdf.NewTriple(alice, knows, bob))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = g.Size()
	assert.ErrorIs(t, err, ErrClosed)

	it := g.Filter(nil, "", nil)
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrClosed)
}

func TestScanPrefixKeysAreDistinct(t *testing.T) {
	// "urn:a" must not prefix-match "urn:ab"
	g, err := NewBadgerGraphInMemory()
	require.NoError(t, err)
	defer g.Close()

	_, err = AddAll(g, []rdf.Triple{
		rdf.NewTriple(rdf.IRI("urn:a"), knows, bob),
		rdf.NewTriple(rdf.IRI("urn:ab"), knows, bob),
	})
	require.NoError(t, err)

	got, err := Collect(g.Filter(rdf.IRI("urn:a"), "", nil))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
