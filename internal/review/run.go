package review

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/notelinker/internal/linker"
)

// Run shows the review UI and returns the accepted links by note path.
// Quitting early keeps the verdicts given so far.
func Run(items []Item, color string, opts ...tea.ProgramOption) (map[string][]linker.Link, error) {
	final, err := tea.NewProgram(New(items, color), opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("review: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("review: unexpected model %T", final)
	}
	return m.Accepted(), nil
}
