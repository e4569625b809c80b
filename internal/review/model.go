// Package review implements the interactive terminal review of found links:
// each mention is shown in context and accepted or declined before the
// accepted ones are written back.
package review

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/notelinker/internal/linker"
)

// Item is one note and the links proposed for it.
type Item struct {
	Path  string
	Text  string
	Links []linker.Link
}

// Decision is the reviewer's verdict on a link.
type Decision int

const (
	Pending Decision = iota
	Accepted
	Declined
)

type keyMap struct {
	Accept     key.Binding
	Decline    key.Binding
	AcceptAll  key.Binding
	DeclineAll key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Accept:     key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "accept")),
	Decline:    key.NewBinding(key.WithKeys("n", "backspace"), key.WithHelp("n", "decline")),
	AcceptAll:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "accept rest of note")),
	DeclineAll: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "decline rest of note")),
	Quit:       key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

// Model is the Bubble Tea model of a review session.
type Model struct {
	items     []Item
	decisions [][]Decision
	file      int
	link      int
	highlight lipgloss.Style
	viewport  viewport.Model
	ready     bool
	done      bool
}

// New creates a review over items. Items without links are dropped. color
// is the highlight color, either a name such as "red" or any lipgloss color.
func New(items []Item, color string) Model {
	var kept []Item
	for _, it := range items {
		if len(it.Links) > 0 {
			kept = append(kept, it)
		}
	}
	decisions := make([][]Decision, len(kept))
	for i, it := range kept {
		decisions[i] = make([]Decision, len(it.Links))
	}
	return Model{
		items:     kept,
		decisions: decisions,
		highlight: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(termColor(color))),
		viewport:  viewport.New(0, 0),
		done:      len(kept) == 0,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := boxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-4-fh)
		m.viewport.SetContent(m.context())
		return m, nil

	case tea.KeyMsg:
		if m.done {
			return m, tea.Quit
		}
		switch {
		case key.Matches(msg, keys.Quit):
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, keys.Accept):
			m.decisions[m.file][m.link] = Accepted
		case key.Matches(msg, keys.Decline):
			m.decisions[m.file][m.link] = Declined
		case key.Matches(msg, keys.AcceptAll):
			m.settleFile(Accepted)
		case key.Matches(msg, keys.DeclineAll):
			m.settleFile(Declined)
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		if !m.advance() {
			m.done = true
			return m, tea.Quit
		}
		m.viewport.SetContent(m.context())
		m.viewport.GotoTop()
		return m, nil
	}
	return m, nil
}

// settleFile decides every pending link of the current note.
func (m *Model) settleFile(d Decision) {
	for i := range m.decisions[m.file] {
		if m.decisions[m.file][i] == Pending {
			m.decisions[m.file][i] = d
		}
	}
}

// advance moves to the next pending link and reports whether there is one.
func (m *Model) advance() bool {
	for f := m.file; f < len(m.items); f++ {
		start := 0
		if f == m.file {
			start = m.link
		}
		for l := start; l < len(m.decisions[f]); l++ {
			if m.decisions[f][l] == Pending {
				m.file, m.link = f, l
				return true
			}
		}
	}
	return false
}

// View implements tea.Model.
func (m Model) View() string {
	if m.done {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	it := m.items[m.file]
	header := headerStyle.Render(fmt.Sprintf("%s  (%d / %d)", it.Path, m.link+1, len(it.Links)))
	target := dimStyle.Render("→ " + it.Links[m.link].Target)
	help := dimStyle.Render(strings.Join([]string{
		helpText(keys.Accept), helpText(keys.Decline), helpText(keys.AcceptAll),
		helpText(keys.DeclineAll), helpText(keys.Quit),
	}, " • "))
	return header + "  " + target + "\n" + boxStyle.Render(m.viewport.View()) + "\n" + help
}

func helpText(b key.Binding) string {
	h := b.Help()
	return h.Key + " " + h.Desc
}

// context renders the lines around the current mention with the mention
// shown as its wikilink.
func (m Model) context() string {
	it := m.items[m.file]
	l := it.Links[m.link]
	if l.ByteStart < 0 || l.ByteEnd > len(it.Text) || l.ByteStart >= l.ByteEnd {
		return fmt.Sprintf("link [%d,%d) is outside the note", l.ByteStart, l.ByteEnd)
	}
	from := lineStart(it.Text, l.ByteStart, 2)
	to := lineEnd(it.Text, l.ByteEnd, 2)
	link := linker.Wikilink(l.Target, it.Text[l.ByteStart:l.ByteEnd])
	return it.Text[from:l.ByteStart] + m.highlight.Render(link) + it.Text[l.ByteEnd:to]
}

// Accepted returns the accepted links grouped by note path.
func (m Model) Accepted() map[string][]linker.Link {
	out := make(map[string][]linker.Link)
	for f, it := range m.items {
		for l, d := range m.decisions[f] {
			if d == Accepted {
				out[it.Path] = append(out[it.Path], it.Links[l])
			}
		}
	}
	return out
}

// Decisions returns the verdicts for the note at path, in link order.
func (m Model) Decisions(path string) []Decision {
	for f, it := range m.items {
		if it.Path == path {
			return append([]Decision(nil), m.decisions[f]...)
		}
	}
	return nil
}

// lineStart returns the offset of the line n lines above the one holding pos.
func lineStart(text string, pos, n int) int {
	i := pos
	for ; n >= 0; n-- {
		j := strings.LastIndexByte(text[:i], '\n')
		if j < 0 {
			return 0
		}
		i = j
		if n == 0 {
			return j + 1
		}
	}
	return i + 1
}

// lineEnd returns the offset of the end of the line n lines below the one
// holding pos.
func lineEnd(text string, pos, n int) int {
	i := pos
	for ; n >= 0; n-- {
		j := strings.IndexByte(text[i:], '\n')
		if j < 0 {
			return len(text)
		}
		i += j
		if n == 0 {
			return i
		}
		i++
	}
	return i
}

var namedColors = map[string]string{
	"black": "0", "red": "9", "green": "10", "yellow": "11",
	"blue": "12", "magenta": "13", "purple": "13", "cyan": "14", "white": "15",
	"orange": "208", "pink": "212", "gray": "245", "grey": "245",
}

// termColor maps CSS-style color names onto ANSI colors. Anything else is
// passed to lipgloss unchanged.
func termColor(c string) string {
	if c == "" {
		c = linker.DefaultColor
	}
	if ansi, ok := namedColors[strings.ToLower(c)]; ok {
		return ansi
	}
	return c
}
