// Package smush merges terms that an inverse functional property says denote
// the same thing.
//
// A property is inverse functional when one object value identifies at most
// one subject (owl:InverseFunctionalProperty). foaf:mbox is the classic case:
//
//	_:a foaf:mbox <mailto:alice@example.org> .
//	_:b foaf:mbox <mailto:alice@example.org> .
//	<http://example.org/alice> foaf:mbox <mailto:alice@example.org> .
//
// All three subjects share a (property, value) pair, so they are one entity.
// Smushing replaces them everywhere in the data graph with one
// representative, here <http://example.org/alice>.
//
// A run has four steps, each exported on its own:
//
//  1. CollectInverseFunctionalProperties reads the schema graph.
//  2. GroupBySharedValue groups data subjects by (property, value).
//  3. UnionOverlapping merges groups that share a member into disjoint classes.
//  4. Rewrite replaces every class member by its Representative.
//
// One run does not saturate: merging can create new shared pairs, and a
// second run may merge more.
//
// Example Usage:
//
//	result, err := smush.Smush(data, schema)
//	if err != nil {
//		return err
//	}
//	fmt.Printf("merged %d classes, rewrote %d triples\n", result.Merged, result.Rewritten)
//
// Smushing is not internally synchronized. Hold data.RWLock() for writing
// when other goroutines use the graph.
package smush

import (
	"log"
	"slices"

	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/storage"
	"github.com/orneryd/nornicrdf/pkg/vocabulary"
)

// Key is a (property, value) pair shared by candidate-equivalent subjects.
type Key struct {
	Predicate rdf.IRI
	Object    rdf.Term
}

// Result summarizes a run.
type Result struct {
	// InverseFunctionalProperties found in the schema, sorted.
	InverseFunctionalProperties []rdf.IRI
	// Groups is the number of distinct (property, value) keys in the data.
	Groups int
	// Classes is the partition of every subject that carries an inverse
	// functional property, singletons included.
	Classes [][]rdf.Subject
	// Merged counts classes with more than one member.
	Merged int
	// Rewritten counts triples replaced in the data graph.
	Rewritten int
}

// CollectInverseFunctionalProperties returns the subjects of
// "?p rdf:type owl:InverseFunctionalProperty" in schema. Blank node
// declarations are ignored since a predicate must be an IRI.
func CollectInverseFunctionalProperties(schema storage.Graph) (map[rdf.IRI]struct{}, error) {
	subjects, err := storage.Subjects(schema.Filter(nil, vocabulary.RDFType, vocabulary.OWLInverseFunctionalProperty))
	if err != nil {
		return nil, err
	}
	ifps := make(map[rdf.IRI]struct{}, len(subjects))
	for _, s := range subjects {
		if iri, ok := s.(rdf.IRI); ok {
			ifps[iri] = struct{}{}
		}
	}
	return ifps, nil
}

// GroupBySharedValue maps each (property, value) pair of an inverse
// functional property in data to the subjects that carry it. Subjects are
// sorted by rdf.Compare.
func GroupBySharedValue(data storage.Graph, ifps map[rdf.IRI]struct{}) (map[Key][]rdf.Subject, error) {
	groups := make(map[Key][]rdf.Subject)
	for p := range ifps {
		it := data.Filter(nil, p, nil)
		for it.Next() {
			t := it.Triple()
			k := Key{Predicate: t.Predicate, Object: t.Object}
			groups[k] = append(groups[k], t.Subject)
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
	}
	for _, subjects := range groups {
		rdf.SortSubjects(subjects)
	}
	return groups, nil
}

// Smusher runs all four steps. The zero value is usable.
type Smusher struct {
	// Logger receives a one-line summary per run. Defaults to log.Printf.
	Logger func(format string, args ...any)
}

// New returns a Smusher that logs with the standard logger.
func New() *Smusher {
	return &Smusher{Logger: log.Printf}
}

// Smush merges equivalent subjects of data according to the inverse
// functional properties declared in schema. data and schema may be the same
// graph.
func (s *Smusher) Smush(data, schema storage.Graph) (*Result, error) {
	ifps, err := CollectInverseFunctionalProperties(schema)
	if err != nil {
		return nil, err
	}
	result := &Result{InverseFunctionalProperties: make([]rdf.IRI, 0, len(ifps))}
	for p := range ifps {
		result.InverseFunctionalProperties = append(result.InverseFunctionalProperties, p)
	}
	slices.Sort(result.InverseFunctionalProperties)
	if len(ifps) == 0 {
		return result, nil
	}

	groups, err := GroupBySharedValue(data, ifps)
	if err != nil {
		return nil, err
	}
	result.Groups = len(groups)

	sets := make([][]rdf.Subject, 0, len(groups))
	for _, members := range groups {
		sets = append(sets, members)
	}
	result.Classes = UnionOverlapping(sets)
	for _, class := range result.Classes {
		if len(class) > 1 {
			result.Merged++
		}
	}

	result.Rewritten, err = Rewrite(data, result.Classes)
	if err != nil {
		return result, err
	}

	if s.Logger != nil {
		s.Logger("smush: %d inverse functional properties, %d keys, %d classes merged, %d triples rewritten",
			len(ifps), result.Groups, result.Merged, result.Rewritten)
	}
	return result, nil
}

// Smush runs a default Smusher.
func Smush(data, schema storage.Graph) (*Result, error) {
	return New().Smush(data, schema)
}
