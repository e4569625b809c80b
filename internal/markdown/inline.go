package markdown

import (
	"strings"
	"unicode/utf8"
)

// stringPunct lists the ASCII punctuation accepted inside plain text.
const stringPunct = "-_'\" \t,.!?()+=;:/%^{}|\\><#&@~"

// stringCharWidth returns the width of the plain-text character at s[i], or 0
// when the byte cannot start plain text.
func stringCharWidth(s string, i int) int {
	c := s[i]
	if c >= utf8.RuneSelf {
		_, w := utf8.DecodeRuneInString(s[i:])
		return w
	}
	if c == '\\' && i+1 < len(s) {
		switch s[i+1] {
		case '*', '[', ']':
			return 2
		}
	}
	if isAlnum(c) || strings.IndexByte(stringPunct, c) >= 0 {
		return 1
	}
	return 0
}

func isFilepathByte(c byte) bool {
	switch c {
	case '$', '*', '[', ']', '>', '|', '\n', '\r':
		return false
	}
	return true
}

func (p *parser) inlines() []Node {
	var nodes []Node
	for p.pos < len(p.src) {
		n, ok := p.inline()
		if !ok {
			break
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func (p *parser) inline() (Node, bool) {
	start := p.pos
	for _, try := range []func() (Node, bool){
		func() (Node, bool) { return p.emphasis("***", BoldItalic) },
		func() (Node, bool) { return p.emphasis("**", Bold) },
		func() (Node, bool) { return p.emphasis("*", Italic) },
		p.namedLink,
		p.link,
		p.webLink,
		p.squareBracket,
		p.latexBlockInline,
		p.latexInline,
		p.codeBlockInline,
		p.codeInline,
		p.text,
	} {
		if n, ok := try(); ok {
			return n, true
		}
		p.pos = start
	}
	return nil, false
}

func (p *parser) emphasisInner() (Node, bool) {
	start := p.pos
	for _, try := range []func() (Node, bool){
		p.namedLink,
		p.latexInline,
		p.link,
		p.webLink,
		p.text,
	} {
		if n, ok := try(); ok {
			return n, true
		}
		p.pos = start
	}
	return nil, false
}

func (p *parser) emphasis(delim string, style Style) (Node, bool) {
	start := p.pos
	if !p.hasPrefix(delim) {
		p.fail(start, `"`+delim+`"`)
		return nil, false
	}
	p.pos += len(delim)
	var children []Node
	for p.pos < len(p.src) {
		n, ok := p.emphasisInner()
		if !ok {
			break
		}
		children = append(children, n)
	}
	if len(children) == 0 || !p.hasPrefix(delim) {
		p.fail(p.pos, `"`+delim+`"`)
		return nil, false
	}
	p.pos += len(delim)
	return &Emphasis{
		Span:     Span{Start: start, End: p.pos},
		Value:    p.src[start:p.pos],
		Style:    style,
		Children: children,
	}, true
}

func (p *parser) text() (Node, bool) {
	start := p.pos
	for p.pos < len(p.src) {
		w := stringCharWidth(p.src, p.pos)
		if w == 0 {
			break
		}
		p.pos += w
	}
	if p.pos == start {
		p.fail(start, "text")
		return nil, false
	}
	return &Text{Span: Span{Start: start, End: p.pos}, Value: p.src[start:p.pos]}, true
}

// filepath consumes a wikilink target and returns it.
func (p *parser) filepath() (string, bool) {
	start := p.pos
	for p.pos < len(p.src) && isFilepathByte(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		p.fail(start, "link target")
		return "", false
	}
	return p.src[start:p.pos], true
}

func (p *parser) expect(s string) bool {
	if !p.hasPrefix(s) {
		p.fail(p.pos, `"`+s+`"`)
		return false
	}
	p.pos += len(s)
	return true
}

func (p *parser) namedLink() (Node, bool) {
	start := p.pos
	if !p.expect("[[") {
		return nil, false
	}
	target, ok := p.filepath()
	if !ok || !p.expect("|") {
		return nil, false
	}
	name, ok := p.text()
	if !ok || !p.expect("]]") {
		return nil, false
	}
	return &NamedMDLink{
		Span:   Span{Start: start, End: p.pos},
		Value:  p.src[start:p.pos],
		Target: target,
		Name:   name.Raw(),
	}, true
}

func (p *parser) link() (Node, bool) {
	start := p.pos
	if !p.expect("[[") {
		return nil, false
	}
	target, ok := p.filepath()
	if !ok || !p.expect("]]") {
		return nil, false
	}
	return &MDLink{
		Span:   Span{Start: start, End: p.pos},
		Value:  p.src[start:p.pos],
		Target: target,
	}, true
}

func (p *parser) webLink() (Node, bool) {
	start := p.pos
	if !p.expect("[") {
		return nil, false
	}
	name, ok := p.text()
	if !ok || !p.expect("](") {
		return nil, false
	}
	urlStart := p.pos
	if !p.until(")") || !p.expect(")") {
		return nil, false
	}
	return &WebLink{
		Span:  Span{Start: start, End: p.pos},
		Value: p.src[start:p.pos],
		Name:  name.Raw(),
		URL:   p.src[urlStart : p.pos-1],
	}, true
}

// until advances to the next occurrence of stop on the current line. It
// requires at least one byte to be consumed.
func (p *parser) until(stop string) bool {
	start := p.pos
	for p.pos < len(p.src) && !p.hasPrefix(stop) {
		if c := p.src[p.pos]; c == '\n' || c == '\r' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		p.fail(start, "content")
		return false
	}
	return true
}

// delimited matches open (!closing !NL ANY)+ closing on a single line.
func (p *parser) delimited(open, closing string) (string, Span, bool) {
	start := p.pos
	if !p.expect(open) || !p.until(closing) || !p.expect(closing) {
		return "", Span{}, false
	}
	return p.src[start:p.pos], Span{Start: start, End: p.pos}, true
}

func (p *parser) squareBracket() (Node, bool) {
	v, sp, ok := p.delimited("[", "]")
	if !ok {
		return nil, false
	}
	return &SquareBracket{Span: sp, Value: v}, true
}

func (p *parser) latexBlockInline() (Node, bool) {
	v, sp, ok := p.delimited("$$", "$$")
	if !ok {
		return nil, false
	}
	return &InlineLatexBlock{Span: sp, Value: v}, true
}

func (p *parser) latexInline() (Node, bool) {
	v, sp, ok := p.delimited("$", "$")
	if !ok {
		return nil, false
	}
	return &InlineLatex{Span: sp, Value: v}, true
}

func (p *parser) codeBlockInline() (Node, bool) {
	v, sp, ok := p.delimited("```", "```")
	if !ok {
		return nil, false
	}
	return &InlineCodeBlock{Span: sp, Value: v}, true
}

func (p *parser) codeInline() (Node, bool) {
	v, sp, ok := p.delimited("`", "`")
	if !ok {
		return nil, false
	}
	return &InlineCode{Span: sp, Value: v}, true
}
