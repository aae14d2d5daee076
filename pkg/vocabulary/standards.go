// Package vocabulary holds the fixed W3C IRIs that NornicRDF structures are
// encoded with.
//
// References:
//   - RDF collections: https://www.w3.org/TR/rdf11-mt/#rdf-collections
//   - OWL: https://www.w3.org/TR/owl2-overview/
package vocabulary

import "github.com/orneryd/nornicrdf/pkg/rdf"

// Namespaces
const (
	RDFNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	OWLNamespace = "http://www.w3.org/2002/07/owl#"
	XSDNamespace = "http://www.w3.org/2001/XMLSchema#"
)

// RDF collection vocabulary
const (
	// RDFFirst links a list cell to its value.
	RDFFirst rdf.IRI = RDFNamespace + "first"

	// RDFRest links a list cell to the next cell, or to RDFNil.
	RDFRest rdf.IRI = RDFNamespace + "rest"

	// RDFNil terminates every list chain.
	RDFNil rdf.IRI = RDFNamespace + "nil"

	RDFType rdf.IRI = RDFNamespace + "type"
)

// OWL vocabulary
const (
	// OWLSameAs marks a list head as empty when asserted against RDFNil:
	//   <head> owl:sameAs rdf:nil .
	OWLSameAs rdf.IRI = OWLNamespace + "sameAs"

	// OWLInverseFunctionalProperty declares that a value identifies at most one subject.
	// Example: foaf:mbox rdf:type owl:InverseFunctionalProperty .
	OWLInverseFunctionalProperty rdf.IRI = OWLNamespace + "InverseFunctionalProperty"
)

const (
	XSDString  rdf.IRI = XSDNamespace + "string"
	XSDInteger rdf.IRI = XSDNamespace + "integer"
)
