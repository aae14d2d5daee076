package smush

import (
	"fmt"

	"github.com/orneryd/nornicrdf/pkg/rdf"
	"github.com/orneryd/nornicrdf/pkg/storage"
)

// Rewrite replaces every member of each class with the class Representative,
// in subject and object position, and returns the number of triples
// replaced. Predicates are left alone. Afterwards no triple of data mentions
// a non-representative member.
//
// Triples are collected before the graph is changed, so the result does not
// depend on iteration order.
func Rewrite(data storage.Graph, partition [][]rdf.Subject) (int, error) {
	replace := make(map[rdf.Subject]rdf.Subject)
	var replaced []rdf.Subject
	for _, class := range partition {
		if len(class) < 2 {
			continue
		}
		rep := Representative(class)
		for _, m := range class {
			if m != rep {
				replace[m] = rep
				replaced = append(replaced, m)
			}
		}
	}
	if len(replace) == 0 {
		return 0, nil
	}

	seen := make(map[rdf.Triple]struct{})
	var affected []rdf.Triple
	collect := func(it storage.Iterator) error {
		for it.Next() {
			t := it.Triple()
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				affected = append(affected, t)
			}
		}
		return it.Err()
	}
	for _, m := range replaced {
		if err := collect(data.Filter(m, "", nil)); err != nil {
			return 0, err
		}
		if err := collect(data.Filter(nil, "", m)); err != nil {
			return 0, err
		}
	}

	for i, t := range affected {
		rewritten := t
		if rep, ok := replace[t.Subject]; ok {
			rewritten.Subject = rep
		}
		if s, ok := t.Object.(rdf.Subject); ok {
			if rep, ok := replace[s]; ok {
				rewritten.Object = rep
			}
		}
		if _, err := data.Remove(t); err != nil {
			return i, fmt.Errorf("removing %s: %w", t, err)
		}
		if _, err := data.Add(rewritten); err != nil {
			return i, fmt.Errorf("adding %s: %w", rewritten, err)
		}
	}
	return len(affected), nil
}
