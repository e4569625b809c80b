package markdown

// quoteLine is one physical block-quote line with its first ">" removed. It
// holds either a nested quote line or the content line.
type quoteLine struct {
	span   Span
	nested *quoteLine
	line   Line
}

func (p *parser) quoteLine() (*quoteLine, bool) {
	start := p.pos
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '>' {
		p.fail(p.pos, `">"`)
		p.pos = start
		return nil, false
	}
	p.pos++

	inner := p.pos
	if nested, ok := p.quoteLine(); ok {
		return &quoteLine{span: Span{Start: start, End: p.pos}, nested: nested}, true
	}
	p.pos = inner
	ln := p.line()
	return &quoteLine{span: Span{Start: start, End: p.pos}, line: ln}, true
}

func (p *parser) blockQuoteBlock() (Block, bool) {
	start := p.pos
	var lines []*quoteLine
	for p.pos < len(p.src) {
		save := p.pos
		ql, ok := p.quoteLine()
		if !ok {
			break
		}
		n := p.newline()
		if n == 0 {
			p.fail(p.pos, "newline")
			p.pos = save
			break
		}
		p.pos += n
		lines = append(lines, ql)
	}
	if len(lines) == 0 {
		p.pos = start
		return nil, false
	}

	bq, err := groupQuote(lines)
	if err != nil {
		p.err = err
		return nil, false
	}
	bq.Span = Span{Start: start, End: p.pos}
	return bq, true
}

type quoteState int

const (
	quoteStart quoteState = iota
	quoteInLine
	quoteInNested
)

// groupQuote folds consecutive content lines into a StringBlock and
// consecutive nested lines into a nested BlockQuote, recursively. The
// returned quote's span covers lines[0] through the last line.
func groupQuote(lines []*quoteLine) (*BlockQuote, error) {
	if len(lines) == 0 {
		return nil, &InternalError{Rule: "block_quote_block", Msg: "empty quote region"}
	}
	bq := &BlockQuote{Span: Span{Start: lines[0].span.Start, End: lines[len(lines)-1].span.End}}

	var (
		state   = quoteStart
		content []Line
		nested  []*quoteLine
	)
	flushContent := func() {
		bq.Blocks = append(bq.Blocks, &StringBlock{
			Span:  Span{Start: content[0].Range().Start, End: content[len(content)-1].Range().End},
			Lines: content,
		})
		content = nil
	}
	flushNested := func() error {
		inner, err := groupQuote(nested)
		if err != nil {
			return err
		}
		bq.Blocks = append(bq.Blocks, inner)
		nested = nil
		return nil
	}

	for _, ql := range lines {
		switch {
		case ql.nested != nil:
			if state == quoteInLine {
				flushContent()
			}
			nested = append(nested, ql.nested)
			state = quoteInNested
		case ql.line != nil:
			if state == quoteInNested {
				if err := flushNested(); err != nil {
					return nil, err
				}
			}
			content = append(content, ql.line)
			state = quoteInLine
		default:
			return nil, &InternalError{
				Rule:   "block_quote_line",
				Offset: ql.span.Start,
				Msg:    "quote line has neither content nor a nested quote",
			}
		}
	}

	switch state {
	case quoteInLine:
		flushContent()
	case quoteInNested:
		if err := flushNested(); err != nil {
			return nil, err
		}
	}
	return bq, nil
}
