package markdown

import (
	"strconv"
	"strings"
)

// Parse parses a note. The text is normalized to end with a newline before
// parsing and the normalized form is kept in Document.Text.
//
// A front-matter block that is not valid YAML does not fail the parse; it is
// reported through FrontMatter.Err. Text that no production accepts yields a
// *ParseError.
func Parse(text string) (*Document, error) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	p := &parser{src: text, failPos: -1}
	doc := &Document{Text: text}
	doc.FrontMatter = p.frontMatter()

	for p.pos < len(p.src) {
		b, ok := p.block()
		if p.err != nil {
			return nil, p.err
		}
		if !ok {
			break
		}
		doc.Blocks = append(doc.Blocks, b)
	}

	if len(doc.Blocks) == 0 || p.pos != len(p.src) {
		return nil, p.failure()
	}
	return doc, nil
}

type parser struct {
	src string
	pos int

	// failPos is the farthest offset at which a production failed, and
	// expected lists what would have been accepted there.
	failPos  int
	expected []string

	err error
}

func (p *parser) fail(pos int, what string) {
	if pos < p.failPos {
		return
	}
	if pos > p.failPos {
		p.failPos = pos
		p.expected = p.expected[:0]
	}
	for _, e := range p.expected {
		if e == what {
			return
		}
	}
	p.expected = append(p.expected, what)
}

func (p *parser) failure() *ParseError {
	at := p.failPos
	if at < p.pos {
		at = p.pos
	}
	line, col := position(p.src, at)
	return &ParseError{
		Offset:   at,
		Line:     line,
		Column:   col,
		Expected: append([]string(nil), p.expected...),
	}
}

func (p *parser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.src[p.pos:], s)
}

// newline returns the width of the line terminator at pos, or 0.
func (p *parser) newline() int {
	switch {
	case p.pos >= len(p.src):
		return 0
	case p.src[p.pos] == '\n':
		return 1
	case p.src[p.pos] == '\r':
		if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n' {
			return 2
		}
		return 1
	}
	return 0
}

func (p *parser) skipSpace() int {
	start := p.pos
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
	return p.pos - start
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// frontMatter consumes "---" ... "---" at the very start of the text.
func (p *parser) frontMatter() *FrontMatter {
	const delim = "---"
	if !strings.HasPrefix(p.src, delim) {
		return nil
	}
	i := strings.Index(p.src[len(delim):], delim)
	if i < 0 {
		p.fail(len(p.src), `"---"`)
		return nil
	}
	innerEnd := len(delim) + i
	end := innerEnd + len(delim)

	fm := &FrontMatter{
		Span: Span{Start: 0, End: end},
		Raw:  p.src[len(delim):innerEnd],
	}
	v, err := DecodeValue(fm.Raw)
	if err != nil {
		fm.Err = err
	} else {
		fm.Value = v
	}
	p.pos = end
	return fm
}

func (p *parser) block() (Block, bool) {
	start := p.pos
	if b, ok := p.blockQuoteBlock(); ok || p.err != nil {
		return b, ok
	}
	p.pos = start
	if b, ok := p.latexBlock(); ok {
		return b, true
	}
	p.pos = start
	if b, ok := p.codeBlock(); ok {
		return b, true
	}
	p.pos = start
	if b, ok := p.stringBlock(); ok || p.err != nil {
		return b, ok
	}
	p.pos = start
	p.fail(start, "block")
	return nil, false
}

func (p *parser) latexBlock() (Block, bool) {
	start := p.pos
	if !p.hasPrefix("$$") {
		p.fail(start, `"$$"`)
		return nil, false
	}
	i := strings.IndexByte(p.src[start+2:], '$')
	if i < 0 {
		p.fail(len(p.src), `"$$"`)
		return nil, false
	}
	closing := start + 2 + i
	if !strings.HasPrefix(p.src[closing:], "$$") {
		p.fail(closing, `"$$"`)
		return nil, false
	}
	end := closing + 2
	p.pos = end
	return &Latex{Span: Span{Start: start, End: end}, Body: p.src[start:end]}, true
}

func (p *parser) codeBlock() (Block, bool) {
	const fence = "```"
	start := p.pos
	if !p.hasPrefix(fence) {
		p.fail(start, `"`+fence+`"`)
		return nil, false
	}
	i := start + len(fence)
	for i < len(p.src) && (isAlnum(p.src[i]) || p.src[i] == '_' || p.src[i] == '-') {
		i++
	}
	lang := p.src[start+len(fence) : i]
	j := strings.Index(p.src[i:], fence)
	if j < 0 {
		p.fail(len(p.src), `"`+fence+`"`)
		return nil, false
	}
	end := i + j + len(fence)
	p.pos = end
	return &Code{
		Span: Span{Start: start, End: end},
		Lang: lang,
		Body: p.src[i : i+j],
	}, true
}

func (p *parser) stringBlock() (Block, bool) {
	start := p.pos
	var lines []Line
	for p.pos < len(p.src) {
		save := p.pos
		if p.atQuote() {
			break
		}
		ln := p.line()
		if p.err != nil {
			return nil, false
		}
		n := p.newline()
		if n == 0 {
			p.fail(p.pos, "newline")
			p.pos = save
			break
		}
		p.pos += n
		lines = append(lines, ln)
	}
	if len(lines) == 0 {
		p.pos = start
		return nil, false
	}
	return &StringBlock{Span: Span{Start: start, End: p.pos}, Lines: lines}, true
}

// atQuote reports whether the current line opens a block quote.
func (p *parser) atQuote() bool {
	i := p.pos
	for i < len(p.src) && isSpace(p.src[i]) {
		i++
	}
	return i < len(p.src) && p.src[i] == '>'
}

// line never fails: the generic string line accepts the empty line.
func (p *parser) line() Line {
	start := p.pos
	if l, ok := p.headingLine(); ok {
		return l
	}
	p.pos = start
	if l, ok := p.numberedLine(); ok {
		return l
	}
	p.pos = start
	if l, ok := p.bulletLine(); ok {
		return l
	}
	p.pos = start
	nodes := p.inlines()
	return &StringLine{Span: Span{Start: start, End: p.pos}, Nodes: nodes}
}

func (p *parser) headingLine() (Line, bool) {
	start := p.pos
	level := 0
	for level < 6 && p.pos < len(p.src) && p.src[p.pos] == '#' {
		level++
		p.pos++
	}
	if level == 0 || p.pos >= len(p.src) || p.src[p.pos] != ' ' {
		p.fail(p.pos, `"# "`)
		return nil, false
	}
	p.pos++
	nodes := p.inlines()
	return &Heading{Span: Span{Start: start, End: p.pos}, Level: level, Nodes: nodes}, true
}

func (p *parser) numberedLine() (Line, bool) {
	start := p.pos
	p.skipSpace()
	indent := p.src[start:p.pos]
	digits := p.pos
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == digits || p.pos >= len(p.src) || p.src[p.pos] != '.' {
		p.fail(p.pos, "list number")
		return nil, false
	}
	// An overflowing item number is kept as 0; the text is still in Span.
	number, _ := strconv.Atoi(p.src[digits:p.pos])
	p.pos++
	if p.skipSpace() == 0 {
		p.fail(p.pos, "space")
		return nil, false
	}
	nodes := p.inlines()
	return &NumberedList{
		Span:   Span{Start: start, End: p.pos},
		Indent: indent,
		Number: number,
		Nodes:  nodes,
	}, true
}

func (p *parser) bulletLine() (Line, bool) {
	start := p.pos
	p.skipSpace()
	indent := p.src[start:p.pos]
	if p.pos >= len(p.src) || p.src[p.pos] != '-' {
		p.fail(p.pos, `"-"`)
		return nil, false
	}
	p.pos++
	p.skipSpace()
	nodes := p.inlines()
	return &BulletedList{Span: Span{Start: start, End: p.pos}, Indent: indent, Nodes: nodes}, true
}
