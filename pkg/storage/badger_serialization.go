// Package storage - Key layout and serialization helpers for BadgerDB.
package storage

import (
	"fmt"

	"github.com/orneryd/nornicrdf/pkg/rdf"
)

const (
	prefixSPO = byte(0x01) // spo:subject:predicate:object -> N-Triples line
	prefixPOS = byte(0x02) // pos:predicate:object:subject -> N-Triples line
	prefixOSP = byte(0x03) // osp:object:subject:predicate -> N-Triples line
)

// keySep separates terms inside a key. N-Triples term syntax escapes every
// control character, so it never occurs inside an encoded term.
const keySep = byte(0x00)

func appendTerm(key []byte, term rdf.Term) []byte {
	key = append(key, term.String()...)
	return append(key, keySep)
}

func tripleKeys(t rdf.Triple) [3][]byte {
	return [3][]byte{
		appendTerm(appendTerm(appendTerm([]byte{prefixSPO}, t.Subject), t.Predicate), t.Object),
		appendTerm(appendTerm(appendTerm([]byte{prefixPOS}, t.Predicate), t.Object), t.Subject),
		appendTerm(appendTerm(appendTerm([]byte{prefixOSP}, t.Object), t.Subject), t.Predicate),
	}
}

// scanPrefix picks the index whose key prefix covers the bound positions of
// a pattern. Patterns with all three positions bound are handled by Contains.
func scanPrefix(subject rdf.Subject, predicate rdf.IRI, object rdf.Term) []byte {
	switch {
	case subject != nil && predicate != "":
		return appendTerm(appendTerm([]byte{prefixSPO}, subject), predicate)
	case subject != nil && object != nil:
		return appendTerm(appendTerm([]byte{prefixOSP}, object), subject)
	case subject != nil:
		return appendTerm([]byte{prefixSPO}, subject)
	case predicate != "" && object != nil:
		return appendTerm(appendTerm([]byte{prefixPOS}, predicate), object)
	case predicate != "":
		return appendTerm([]byte{prefixPOS}, predicate)
	case object != nil:
		return appendTerm([]byte{prefixOSP}, object)
	default:
		return []byte{prefixSPO}
	}
}

func encodeTriple(t rdf.Triple) []byte {
	return []byte(t.String())
}

func decodeTriple(data []byte) (rdf.Triple, error) {
	t, err := rdf.ParseTriple(string(data))
	if err != nil {
		return rdf.Triple{}, fmt.Errorf("decoding stored triple: %w", err)
	}
	return t, nil
}
