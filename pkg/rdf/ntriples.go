package rdf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxLineSize = 1 << 20

func escapeLiteral(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\u%04X`, r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func escapeIRI(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			fmt.Fprintf(&sb, `\u%04X`, r)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ParseTerm parses a single term in N-Triples syntax, e.g. `<http://x>`,
// `_:b1` or `"hello"@en`.
func ParseTerm(s string) (Term, error) {
	p := &lineParser{line: s}
	if err := p.checkEncoding(); err != nil {
		return nil, err
	}
	p.skipSpace()
	term, err := p.term()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.done() {
		return nil, p.errorf("unexpected trailing input %q", p.line[p.pos:])
	}
	return term, nil
}

// ParseSubject parses a term and checks that it can be used as a subject.
func ParseSubject(s string) (Subject, error) {
	term, err := ParseTerm(s)
	if err != nil {
		return nil, err
	}
	subject, ok := term.(Subject)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be a subject", ErrInvalidTerm, term)
	}
	return subject, nil
}

// ParseTriple parses one N-Triples statement. A trailing comment is allowed.
// Blank node labels are kept as written, so ParseTriple restores nodes that
// this package formatted earlier. Use a Decoder to read documents from
// elsewhere.
func ParseTriple(line string) (Triple, error) {
	p := &lineParser{line: line}
	return p.triple()
}

// FormatTriple returns the N-Triples line for t, including the newline.
func FormatTriple(t Triple) string {
	return t.String() + "\n"
}

// WriteNTriples writes triples to w, one statement per line.
func WriteNTriples(w io.Writer, triples []Triple) error {
	bw := bufio.NewWriter(w)
	for _, t := range triples {
		if _, err := bw.WriteString(FormatTriple(t)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decoder reads N-Triples statements from a stream.
//
// Blank node labels are scoped to the document: every label gets a fresh
// BlankNode the first time it appears and the same node afterwards, so two
// documents that both use _:b1 never share a node. PreserveBlankLabels turns
// this off for trusted round trips of data written by WriteNTriples.
//
// Example:
//
//	dec := rdf.NewDecoder(file)
//	for {
//		t, err := dec.Decode()
//		if err == io.EOF {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		graph.Add(t)
//	}
type Decoder struct {
	scanner  *bufio.Scanner
	line     int
	preserve bool
	blanks   map[string]BlankNode
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// PreserveBlankLabels makes the decoder return blank nodes with the labels
// found in the input.
func PreserveBlankLabels() DecoderOption {
	return func(d *Decoder) { d.preserve = true }
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	d := &Decoder{scanner: scanner, blanks: make(map[string]BlankNode)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode returns the next triple, or io.EOF when the input is exhausted.
// Blank lines and comment lines are skipped.
func (d *Decoder) Decode() (Triple, error) {
	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		p := &lineParser{line: text}
		if !d.preserve {
			p.blank = d.scoped
		}
		t, err := p.triple()
		if err != nil {
			return Triple{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		return t, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Triple{}, err
	}
	return Triple{}, io.EOF
}

func (d *Decoder) scoped(label string) BlankNode {
	b, ok := d.blanks[label]
	if !ok {
		b = NewBlankNode()
		d.blanks[label] = b
	}
	return b
}

// ReadAll decodes every remaining triple.
func (d *Decoder) ReadAll() ([]Triple, error) {
	var out []Triple
	for {
		t, err := d.Decode()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
}

type lineParser struct {
	line string
	pos  int
	// blank maps a label read from the input to a node. nil keeps labels.
	blank func(label string) BlankNode
}

func (p *lineParser) checkEncoding() error {
	if !utf8.ValidString(p.line) {
		return fmt.Errorf("%w: input is not valid UTF-8", ErrInvalidTerm)
	}
	return nil
}

func (p *lineParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s (offset %d)", ErrInvalidTerm, fmt.Sprintf(format, args...), p.pos)
}

func (p *lineParser) done() bool { return p.pos >= len(p.line) }

func (p *lineParser) peek() byte {
	if p.done() {
		return 0
	}
	return p.line[p.pos]
}

func (p *lineParser) skipSpace() {
	for !p.done() && (p.line[p.pos] == ' ' || p.line[p.pos] == '\t') {
		p.pos++
	}
}

func (p *lineParser) triple() (Triple, error) {
	if err := p.checkEncoding(); err != nil {
		return Triple{}, err
	}
	p.skipSpace()
	s, err := p.term()
	if err != nil {
		return Triple{}, err
	}
	subject, ok := s.(Subject)
	if !ok {
		return Triple{}, p.errorf("literal %s in subject position", s)
	}
	p.skipSpace()
	pred, err := p.term()
	if err != nil {
		return Triple{}, err
	}
	predicate, ok := pred.(IRI)
	if !ok {
		return Triple{}, p.errorf("predicate %s is not an IRI", pred)
	}
	p.skipSpace()
	object, err := p.term()
	if err != nil {
		return Triple{}, err
	}
	p.skipSpace()
	if p.peek() != '.' {
		return Triple{}, p.errorf("expected '.'")
	}
	p.pos++
	p.skipSpace()
	if !p.done() && p.peek() != '#' {
		return Triple{}, p.errorf("unexpected trailing input %q", p.line[p.pos:])
	}
	return NewTriple(subject, predicate, object), nil
}

func (p *lineParser) term() (Term, error) {
	switch p.peek() {
	case '<':
		iri, err := p.iri()
		if err != nil {
			return nil, err
		}
		return iri, nil
	case '_':
		return p.blankNode()
	case '"':
		return p.literal()
	case 0:
		return nil, p.errorf("unexpected end of input")
	default:
		return nil, p.errorf("unexpected character %q", p.peek())
	}
}

func (p *lineParser) iri() (IRI, error) {
	p.pos++ // '<'
	var sb strings.Builder
	for !p.done() {
		c := p.line[p.pos]
		switch c {
		case '>':
			p.pos++
			if sb.Len() == 0 {
				return "", p.errorf("empty IRI")
			}
			return IRI(sb.String()), nil
		case '\\':
			r, err := p.escape(false)
			if err != nil {
				return "", err
			}
			sb.WriteRune(r)
		default:
			if c == ' ' || c == '<' || c == '"' {
				return "", p.errorf("illegal character %q in IRI", c)
			}
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated IRI")
}

func (p *lineParser) blankNode() (Term, error) {
	if !strings.HasPrefix(p.line[p.pos:], "_:") {
		return nil, p.errorf("malformed blank node")
	}
	p.pos += 2
	start := p.pos
	for !p.done() && isLabelChar(p.line[p.pos]) {
		p.pos++
	}
	// labels may contain '.' but never end with one
	for p.pos > start && p.line[p.pos-1] == '.' {
		p.pos--
	}
	if p.pos == start {
		return nil, p.errorf("empty blank node label")
	}
	label := p.line[start:p.pos]
	if p.blank != nil {
		return p.blank(label), nil
	}
	return BlankNodeWithLabel(label), nil
}

func isLabelChar(c byte) bool {
	return c == '_' || c == '-' || c == '.' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		c >= utf8.RuneSelf
}

func (p *lineParser) literal() (Term, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	closed := false
	for !p.done() {
		c := p.line[p.pos]
		if c == '"' {
			p.pos++
			closed = true
			break
		}
		if c == '\\' {
			r, err := p.escape(true)
			if err != nil {
				return nil, err
			}
			sb.WriteRune(r)
			continue
		}
		sb.WriteByte(c)
		p.pos++
	}
	if !closed {
		return nil, p.errorf("unterminated literal")
	}
	switch {
	case p.peek() == '@':
		p.pos++
		start := p.pos
		for !p.done() && (isAlnum(p.line[p.pos]) || p.line[p.pos] == '-') {
			p.pos++
		}
		if p.pos == start {
			return nil, p.errorf("empty language tag")
		}
		return NewLangLiteral(sb.String(), p.line[start:p.pos]), nil
	case strings.HasPrefix(p.line[p.pos:], "^^"):
		p.pos += 2
		if p.peek() != '<' {
			return nil, p.errorf("datatype must be an IRI")
		}
		dt, err := p.iri()
		if err != nil {
			return nil, err
		}
		return NewTypedLiteral(sb.String(), dt), nil
	}
	return NewLiteral(sb.String()), nil
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// escape decodes the escape sequence at the current position. ECHAR escapes
// are only valid inside literals; \u and \U are valid everywhere.
func (p *lineParser) escape(inLiteral bool) (rune, error) {
	if p.pos+1 >= len(p.line) {
		return 0, p.errorf("truncated escape")
	}
	c := p.line[p.pos+1]
	switch c {
	case 'u', 'U':
		n := 4
		if c == 'U' {
			n = 8
		}
		start := p.pos + 2
		if start+n > len(p.line) {
			return 0, p.errorf("truncated unicode escape")
		}
		v, err := strconv.ParseUint(p.line[start:start+n], 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return 0, p.errorf("bad unicode escape %q", p.line[p.pos:start+n])
		}
		p.pos = start + n
		return rune(v), nil
	}
	if !inLiteral {
		return 0, p.errorf("illegal escape \\%c in IRI", c)
	}
	var r rune
	switch c {
	case 't':
		r = '\t'
	case 'b':
		r = '\b'
	case 'n':
		r = '\n'
	case 'r':
		r = '\r'
	case 'f':
		r = '\f'
	case '"':
		r = '"'
	case '\'':
		r = '\''
	case '\\':
		r = '\\'
	default:
		return 0, p.errorf("unknown escape \\%c", c)
	}
	p.pos += 2
	return r, nil
}
