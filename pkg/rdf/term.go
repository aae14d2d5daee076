// Package rdf provides the term and triple model shared by every NornicRDF package.
//
// A graph stores facts of the form (subject, predicate, object). Three kinds of
// term can appear in a fact:
//   - IRI: a globally meaningful identifier, e.g. <http://example.org/alice>
//   - BlankNode: an identity-only node scoped to the graph that contains it
//   - Literal: a lexical value with an optional datatype IRI or language tag
//
// Subjects are IRIs or blank nodes, predicates are IRIs and objects can be any
// term. All term types are comparable Go values, so a Triple can be used
// directly as a map key. This is what the storage layer relies on to give
// graphs set semantics.
//
// Terms print themselves in N-Triples syntax:
//
//	alice := rdf.IRI("http://example.org/alice")
//	name := rdf.NewLangLiteral("Alice", "en")
//	t := rdf.NewTriple(alice, rdf.IRI("http://xmlns.com/foaf/0.1/name"), name)
//	fmt.Println(t) // <http://example.org/alice> <http://xmlns.com/foaf/0.1/name> "Alice"@en .
package rdf

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrInvalidTerm is returned for malformed terms, triples and N-Triples input.
var ErrInvalidTerm = errors.New("invalid term")

// Kind identifies the variant of a Term.
type Kind uint8

const (
	KindIRI Kind = iota + 1
	KindBlankNode
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlankNode:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Term is any value that can appear in a triple.
//
// String returns the N-Triples representation of the term.
type Term interface {
	Kind() Kind
	String() string
}

// Subject is a term that may appear in subject position: an IRI or a BlankNode.
type Subject interface {
	Term
	subject()
}

// IRI is a globally meaningful identifier.
type IRI string

func (IRI) Kind() Kind { return KindIRI }

func (i IRI) String() string { return "<" + escapeIRI(string(i)) + ">" }

func (IRI) subject() {}

// BlankNode is an identity-only node.
//
// Blank nodes carry an opaque label so that they survive persistence, but the
// label has no meaning beyond identity: two blank nodes are equal only when
// they were produced by the same NewBlankNode call (or decoded from the same
// stored label).
type BlankNode struct {
	label string
}

// NewBlankNode allocates a fresh blank node with a random label.
func NewBlankNode() BlankNode {
	return BlankNode{label: "b" + strings.ReplaceAll(uuid.NewString(), "-", "")}
}

// BlankNodeWithLabel returns the blank node identified by label. It is used by
// decoders to restore blank nodes that were previously written out.
func BlankNodeWithLabel(label string) BlankNode {
	return BlankNode{label: label}
}

// Label returns the opaque label of the node.
func (b BlankNode) Label() string { return b.label }

func (BlankNode) Kind() Kind { return KindBlankNode }

func (b BlankNode) String() string { return "_:" + b.label }

func (BlankNode) subject() {}

// Literal is a lexical value. At most one of Datatype and Language is set.
type Literal struct {
	Lexical  string
	Datatype IRI
	Language string
}

// NewLiteral returns a plain string literal.
func NewLiteral(lexical string) Literal {
	return Literal{Lexical: lexical}
}

// NewTypedLiteral returns a literal with an explicit datatype.
func NewTypedLiteral(lexical string, datatype IRI) Literal {
	return Literal{Lexical: lexical, Datatype: datatype}
}

// NewLangLiteral returns a language tagged literal. Tags are stored lowercase.
func NewLangLiteral(lexical, language string) Literal {
	return Literal{Lexical: lexical, Language: strings.ToLower(language)}
}

func (Literal) Kind() Kind { return KindLiteral }

func (l Literal) String() string {
	var sb strings.Builder
	sb.WriteByte('"')
	sb.WriteString(escapeLiteral(l.Lexical))
	sb.WriteByte('"')
	switch {
	case l.Language != "":
		sb.WriteByte('@')
		sb.WriteString(l.Language)
	case l.Datatype != "":
		sb.WriteString("^^")
		sb.WriteString(l.Datatype.String())
	}
	return sb.String()
}

// Triple is a single fact.
type Triple struct {
	Subject   Subject
	Predicate IRI
	Object    Term
}

// NewTriple builds a triple. Use Validate to check it before storing.
func NewTriple(subject Subject, predicate IRI, object Term) Triple {
	return Triple{Subject: subject, Predicate: predicate, Object: object}
}

// Validate reports whether every position of the triple holds a usable term.
func (t Triple) Validate() error {
	if err := validTerm(t.Subject); err != nil {
		return fmt.Errorf("subject: %w", err)
	}
	if t.Predicate == "" {
		return fmt.Errorf("%w: empty predicate", ErrInvalidTerm)
	}
	if err := validTerm(t.Predicate); err != nil {
		return fmt.Errorf("predicate: %w", err)
	}
	if err := validTerm(t.Object); err != nil {
		return fmt.Errorf("object: %w", err)
	}
	return nil
}

// String returns the triple as an N-Triples statement without trailing newline.
func (t Triple) String() string {
	return termString(t.Subject) + " " + t.Predicate.String() + " " + termString(t.Object) + " ."
}

func validTerm(term Term) error {
	switch v := term.(type) {
	case nil:
		return fmt.Errorf("%w: missing term", ErrInvalidTerm)
	case IRI:
		if v == "" {
			return fmt.Errorf("%w: empty IRI", ErrInvalidTerm)
		}
		if !utf8.ValidString(string(v)) {
			return fmt.Errorf("%w: IRI is not valid UTF-8", ErrInvalidTerm)
		}
	case BlankNode:
		if v.label == "" {
			return fmt.Errorf("%w: blank node without label", ErrInvalidTerm)
		}
		if !utf8.ValidString(v.label) {
			return fmt.Errorf("%w: blank node label is not valid UTF-8", ErrInvalidTerm)
		}
	case Literal:
		if v.Language != "" && v.Datatype != "" {
			return fmt.Errorf("%w: literal with both language and datatype", ErrInvalidTerm)
		}
		if !utf8.ValidString(v.Lexical) || !utf8.ValidString(v.Language) || !utf8.ValidString(string(v.Datatype)) {
			return fmt.Errorf("%w: literal is not valid UTF-8", ErrInvalidTerm)
		}
	}
	return nil
}

func termString(term Term) string {
	if term == nil {
		return "?"
	}
	return term.String()
}
