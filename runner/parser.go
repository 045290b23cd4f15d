package runner

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// ParseError is returned for a report that is not well-formed or does not fit
// the schema. Position fields are zero when unknown.
type ParseError struct {
	Line   int
	Column int
	Offset int64
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("report parse error")
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ", column %d", e.Column)
		}
	}
	if e.Offset > 0 {
		fmt.Fprintf(&b, " (byte %d)", e.Offset)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReportParser turns one test report into a ResultTree named after the
// configuration that produced it.
type ReportParser interface {
	Parse(name string, data []byte) (*types.ResultTree, error)
}

var _ ReportParser = (*XMLParser)(nil)

// XMLParser is a single-pass streaming parser for XML test reports.
type XMLParser struct {
	schema Schema
}

// NewXMLParser creates a parser for the given schema
func NewXMLParser(schema Schema) (*XMLParser, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report schema %q: %w", schema.Name, err)
	}
	return &XMLParser{schema: schema}, nil
}

// Schema returns the schema the parser was built with
func (p *XMLParser) Schema() Schema { return p.schema }

// Parse parses a complete report. It returns either a complete tree or an
// error, never both.
func (p *XMLParser) Parse(name string, data []byte) (*types.ResultTree, error) {
	return p.ParseReader(name, bytes.NewReader(data))
}

// ParseFile parses the report stored at path.
func (p *XMLParser) ParseFile(name, path string) (*types.ResultTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()
	return p.ParseReader(name, f)
}

// ParseReader parses a report from r.
func (p *XMLParser) ParseReader(name string, r io.Reader) (*types.ResultTree, error) {
	st := &parseState{schema: p.schema, dec: xml.NewDecoder(r)}
	root, err := st.run()
	if err != nil {
		return nil, err
	}
	return types.NewResultTree(name, root), nil
}

// parseState holds the stack of open suites while walking the token stream.
type parseState struct {
	schema Schema
	dec    *xml.Decoder

	stack   []*types.Suite
	tops    []*types.Suite
	wrapper string
	open    int // open suite and wrapper elements
	closed  bool
}

func (st *parseState) run() (*types.Suite, error) {
	for {
		tok, err := st.dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, st.wrapErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := st.start(t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			st.end(t)
		}
	}

	if st.open > 0 {
		return nil, st.errorf("unexpected end of document with %d open elements", st.open)
	}
	switch len(st.tops) {
	case 0:
		return nil, st.errorf("no <%s> element found", st.schema.SuiteElement)
	case 1:
		return st.tops[0], nil
	default:
		root := types.NewSuite(st.wrapper)
		for _, s := range st.tops {
			_ = root.Append(s)
		}
		return root, nil
	}
}

func (st *parseState) start(t xml.StartElement) error {
	s := st.schema
	name := t.Name.Local
	if st.closed {
		return st.errorf("unexpected element <%s> after the document root", name)
	}
	if st.open == 0 && name != s.SuiteElement && !s.isWrapper(name) {
		return st.errorf("unexpected root element <%s>, want <%s>", name, s.SuiteElement)
	}

	switch {
	case name == s.SuiteElement:
		suiteName, err := st.requireAttr(t, s.NameAttr)
		if err != nil {
			return err
		}
		suite := types.NewSuite(suiteName)
		if len(st.stack) == 0 {
			st.tops = append(st.tops, suite)
		} else {
			_ = st.top().Append(suite)
		}
		st.stack = append(st.stack, suite)
		st.open++
	case name == s.CaseElement:
		if len(st.stack) == 0 {
			return st.errorf("<%s> outside of any <%s>", name, s.SuiteElement)
		}
		c, err := st.parseCase(t)
		if err != nil {
			return err
		}
		_ = st.top().Append(c)
	case len(st.stack) == 0 && s.isWrapper(name):
		if st.wrapper == "" {
			st.wrapper = name
		}
		st.open++
	default:
		if err := st.dec.Skip(); err != nil {
			return st.wrapErr(err)
		}
	}
	return nil
}

// end only sees suite and wrapper elements; everything else is consumed by
// parseCase or Skip.
func (st *parseState) end(t xml.EndElement) {
	if t.Name.Local == st.schema.SuiteElement && len(st.stack) > 0 {
		st.stack = st.stack[:len(st.stack)-1]
	}
	st.open--
	if st.open == 0 {
		st.closed = true
	}
}

func (st *parseState) top() *types.Suite {
	return st.stack[len(st.stack)-1]
}

// parseCase consumes a case element up to and including its end tag.
func (st *parseState) parseCase(start xml.StartElement) (*types.Case, error) {
	s := st.schema
	name, err := st.requireAttr(start, s.NameAttr)
	if err != nil {
		return nil, err
	}

	status := types.TestStatusPass
	var messages []string
	if s.ResultAttr != "" {
		value, ok := attr(start, s.ResultAttr)
		if !ok {
			return nil, st.errorf("<%s name=%q> is missing required attribute %q", start.Name.Local, name, s.ResultAttr)
		}
		var known bool
		status, known = s.resultStatus(value)
		if !known {
			messages = append(messages, fmt.Sprintf("unrecognized result %q", value))
		}
	}

	fromElement := false
	for {
		tok, err := st.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, st.errorf("unexpected end of document inside <%s name=%q>", start.Name.Local, name)
		}
		if err != nil {
			return nil, st.wrapErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child := t.Name.Local
			elemStatus, isStatus := s.StatusElements[child]
			switch {
			case child == s.CaseElement || child == s.SuiteElement:
				return nil, st.errorf("<%s> nested inside <%s name=%q>", child, start.Name.Local, name)
			case isStatus:
				text, err := st.elementText(t)
				if err != nil {
					return nil, err
				}
				if !fromElement || elemStatus.Severity() > status.Severity() {
					status = elemStatus
				}
				fromElement = true
				if text != "" {
					messages = append(messages, text)
				}
			case s.isMessage(child):
				text, err := st.elementText(t)
				if err != nil {
					return nil, err
				}
				if text != "" {
					messages = append(messages, text)
				}
			default:
				if err := st.dec.Skip(); err != nil {
					return nil, st.wrapErr(err)
				}
			}
		case xml.EndElement:
			return types.NewCase(name, status, strings.Join(messages, "\n")), nil
		}
	}
}

// elementText returns the message attribute and character data of an element.
func (st *parseState) elementText(start xml.StartElement) (string, error) {
	var el struct {
		Message string `xml:"message,attr"`
		Text    string `xml:",chardata"`
	}
	if err := st.dec.DecodeElement(&el, &start); err != nil {
		return "", st.wrapErr(err)
	}
	msg := strings.TrimSpace(el.Message)
	text := strings.TrimSpace(el.Text)
	switch {
	case msg == "" || msg == text:
		return text, nil
	case text == "":
		return msg, nil
	default:
		return msg + "\n" + text, nil
	}
}

func (st *parseState) requireAttr(t xml.StartElement, name string) (string, error) {
	v, ok := attr(t, name)
	if !ok {
		return "", st.errorf("<%s> is missing required attribute %q", t.Name.Local, name)
	}
	return v, nil
}

func attr(t xml.StartElement, name string) (string, bool) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (st *parseState) errorf(format string, args ...any) error {
	line, col := st.dec.InputPos()
	return &ParseError{
		Line:   line,
		Column: col,
		Offset: st.dec.InputOffset(),
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (st *parseState) wrapErr(err error) error {
	var perr *ParseError
	if errors.As(err, &perr) {
		return err
	}
	line, col := st.dec.InputPos()
	msg := err.Error()
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		line, col = syntax.Line, 0
		msg = syntax.Msg
	}
	return &ParseError{
		Line:   line,
		Column: col,
		Offset: st.dec.InputOffset(),
		Msg:    msg,
		Err:    err,
	}
}
