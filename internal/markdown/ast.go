// Package markdown parses notes (YAML front matter + a Markdown subset) into a
// document tree in which every node knows its byte span in the source text.
package markdown

// Span is a half-open byte interval [Start, End) into Document.Text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Range returns the span itself; it is promoted to every node type.
func (s Span) Range() Span { return s }

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Document is a parsed note. Text is the normalized input and the only string
// the spans of the tree are valid against.
type Document struct {
	Text        string
	FrontMatter *FrontMatter
	Blocks      []Block
}

// Block is one of *BlockQuote, *Latex, *Code or *StringBlock.
type Block interface {
	Range() Span
	block()
}

// BlockQuote holds the blocks of a quoted region, without the ">" markers.
type BlockQuote struct {
	Span
	Blocks []Block
}

// Latex is a display math block including its "$$" delimiters. Opaque.
type Latex struct {
	Span
	Body string
}

// Code is a fenced code block. Body excludes the fences and the language tag.
// Opaque.
type Code struct {
	Span
	Lang string
	Body string
}

// StringBlock is a run of plain lines.
type StringBlock struct {
	Span
	Lines []Line
}

func (*BlockQuote) block()  {}
func (*Latex) block()       {}
func (*Code) block()        {}
func (*StringBlock) block() {}

// Line is one of *Heading, *NumberedList, *BulletedList or *StringLine.
// A line's span never includes its line terminator.
type Line interface {
	Range() Span
	Inlines() []Node
	line()
}

// Heading is an ATX heading ("#" to "######" followed by a space).
type Heading struct {
	Span
	Level int
	Nodes []Node
}

// NumberedList is an ordered list item such as "  3. text".
type NumberedList struct {
	Span
	Indent string
	Number int
	Nodes  []Node
}

// BulletedList is an unordered list item such as "- text".
type BulletedList struct {
	Span
	Indent string
	Nodes  []Node
}

// StringLine is any other line.
type StringLine struct {
	Span
	Nodes []Node
}

func (l *Heading) Inlines() []Node      { return l.Nodes }
func (l *NumberedList) Inlines() []Node { return l.Nodes }
func (l *BulletedList) Inlines() []Node { return l.Nodes }
func (l *StringLine) Inlines() []Node   { return l.Nodes }

func (*Heading) line()      {}
func (*NumberedList) line() {}
func (*BulletedList) line() {}
func (*StringLine) line()   {}

// Node is an inline element. Raw returns the exact source text of the node,
// delimiters included, so that Raw() == Document.Text[Range().Start:Range().End].
type Node interface {
	Range() Span
	Raw() string
	// Opaque reports whether the node's text must never be scanned.
	Opaque() bool
}

// Style distinguishes the emphasis variants.
type Style int

const (
	Italic Style = iota + 1
	Bold
	BoldItalic
)

func (s Style) String() string {
	switch s {
	case Italic:
		return "italic"
	case Bold:
		return "bold"
	case BoldItalic:
		return "bold_italic"
	default:
		return "unknown"
	}
}

// Text is plain prose and the only node kind the link finder scans.
type Text struct {
	Span
	Value string
}

// Emphasis is a bold, italic or bold-italic container. Its children carry
// their own spans; the container itself is never opaque.
type Emphasis struct {
	Span
	Value    string
	Style    Style
	Children []Node
}

// MDLink is a wikilink "[[target]]".
type MDLink struct {
	Span
	Value  string
	Target string
}

// NamedMDLink is a wikilink with display text "[[target|name]]".
type NamedMDLink struct {
	Span
	Value  string
	Target string
	Name   string
}

// WebLink is a Markdown link "[name](url)".
type WebLink struct {
	Span
	Value string
	Name  string
	URL   string
}

// SquareBracket is bracketed text that is not a link, e.g. "[x]".
type SquareBracket struct {
	Span
	Value string
}

// InlineCode is "`code`".
type InlineCode struct {
	Span
	Value string
}

// InlineCodeBlock is "```code```" on a single line.
type InlineCodeBlock struct {
	Span
	Value string
}

// InlineLatex is "$math$".
type InlineLatex struct {
	Span
	Value string
}

// InlineLatexBlock is "$$math$$" on a single line.
type InlineLatexBlock struct {
	Span
	Value string
}

func (n *Text) Raw() string             { return n.Value }
func (n *Emphasis) Raw() string         { return n.Value }
func (n *MDLink) Raw() string           { return n.Value }
func (n *NamedMDLink) Raw() string      { return n.Value }
func (n *WebLink) Raw() string          { return n.Value }
func (n *SquareBracket) Raw() string    { return n.Value }
func (n *InlineCode) Raw() string       { return n.Value }
func (n *InlineCodeBlock) Raw() string  { return n.Value }
func (n *InlineLatex) Raw() string      { return n.Value }
func (n *InlineLatexBlock) Raw() string { return n.Value }

func (*Text) Opaque() bool             { return false }
func (*Emphasis) Opaque() bool         { return false }
func (*MDLink) Opaque() bool           { return true }
func (*NamedMDLink) Opaque() bool      { return true }
func (*WebLink) Opaque() bool          { return true }
func (*SquareBracket) Opaque() bool    { return true }
func (*InlineCode) Opaque() bool       { return true }
func (*InlineCodeBlock) Opaque() bool  { return true }
func (*InlineLatex) Opaque() bool      { return true }
func (*InlineLatexBlock) Opaque() bool { return true }
