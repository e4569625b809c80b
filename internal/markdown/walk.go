package markdown

// Element is any block, line or inline node of a Document.
type Element interface {
	Range() Span
}

// Inspect traverses the document in source order. It calls fn for each block,
// line and node; if fn returns false the children of that element are not
// visited.
func Inspect(doc *Document, fn func(Element) bool) {
	if doc == nil {
		return
	}
	inspectBlocks(doc.Blocks, fn)
}

func inspectBlocks(blocks []Block, fn func(Element) bool) {
	for _, b := range blocks {
		if !fn(b) {
			continue
		}
		switch b := b.(type) {
		case *BlockQuote:
			inspectBlocks(b.Blocks, fn)
		case *StringBlock:
			for _, l := range b.Lines {
				if fn(l) {
					inspectNodes(l.Inlines(), fn)
				}
			}
		}
	}
}

func inspectNodes(nodes []Node, fn func(Element) bool) {
	for _, n := range nodes {
		if !fn(n) {
			continue
		}
		if e, ok := n.(*Emphasis); ok {
			inspectNodes(e.Children, fn)
		}
	}
}

// LinkableText returns the Text nodes that may be scanned for mentions, in
// source order. Text under an opaque node, or inside code and math blocks, is
// never returned.
func LinkableText(doc *Document) []*Text {
	var out []*Text
	Inspect(doc, func(e Element) bool {
		switch e := e.(type) {
		case *Text:
			out = append(out, e)
		case Node:
			return !e.Opaque()
		}
		return true
	})
	return out
}
