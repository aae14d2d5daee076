package storage

import "github.com/orneryd/nornicrdf/pkg/rdf"

// sliceIterator iterates over a snapshot of matching triples. Removing
// through the iterator is forwarded to the graph the snapshot came from.
type sliceIterator struct {
	triples []rdf.Triple
	pos     int
	current bool
	remove  func(rdf.Triple) (bool, error)
	err     error
}

func newSliceIterator(triples []rdf.Triple, remove func(rdf.Triple) (bool, error)) *sliceIterator {
	return &sliceIterator{triples: triples, pos: -1, remove: remove}
}

func errIterator(err error) *sliceIterator {
	return &sliceIterator{pos: -1, err: err}
}

func (it *sliceIterator) Next() bool {
	if it.err != nil || it.pos+1 >= len(it.triples) {
		it.current = false
		return false
	}
	it.pos++
	it.current = true
	return true
}

func (it *sliceIterator) Triple() rdf.Triple {
	if !it.current {
		return rdf.Triple{}
	}
	return it.triples[it.pos]
}

func (it *sliceIterator) Remove() error {
	if !it.current {
		return ErrNoCurrent
	}
	it.current = false
	_, err := it.remove(it.triples[it.pos])
	return err
}

func (it *sliceIterator) Err() error { return it.err }
