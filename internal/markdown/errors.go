package markdown

import (
	"fmt"
	"strings"

	"github.com/starford/notelinker/internal/apperr"
)

// ParseError reports text that no grammar production accepts. Line and
// Column are 1-based; Column counts bytes.
type ParseError struct {
	Path     string
	Offset   int
	Line     int
	Column   int
	Expected []string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	fmt.Fprintf(&b, "parse failure at line %d, column %d", e.Line, e.Column)
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, ": expected %s", strings.Join(e.Expected, ", "))
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return apperr.ErrParse }

// InternalError is returned instead of panicking when a production ends up in
// a state the grammar rules out.
type InternalError struct {
	Rule   string
	Offset int
	Msg    string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("markdown: %s at offset %d: %s", e.Rule, e.Offset, e.Msg)
}

func (e *InternalError) Unwrap() error { return apperr.ErrInvariant }

// position converts a byte offset into a 1-based line and column.
func position(text string, offset int) (line, col int) {
	if offset > len(text) {
		offset = len(text)
	}
	line = 1 + strings.Count(text[:offset], "\n")
	col = offset + 1
	if i := strings.LastIndexByte(text[:offset], '\n'); i >= 0 {
		col = offset - i
	}
	return line, col
}
