package browser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-elements/pkg/tree"
)

func (m Model) View() string {
	if !m.loaded {
		return "Loading..."
	}

	if m.help.ShowAll {
		return m.help.View()
	}

	header := theme.DefaultTheme.Header.Render("Element Browser")
	if m.picked != nil {
		header = theme.DefaultTheme.Info.Render(fmt.Sprintf("[Moving: %s]", tree.Label(m.picked.Element)))
	} else if m.showAll {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, " ", theme.DefaultTheme.Muted.Render("(all folders)"))
	}

	var bottom string
	switch {
	case m.confirm.Active:
		bottom = m.confirm.View()
	case m.creating != "":
		bottom = m.nameInput.View()
	case m.statusMessage != "":
		bottom = theme.DefaultTheme.Muted.Render(m.statusMessage)
	}

	fullView := lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		m.renderTreeView(),
		bottom,
		m.help.View(),
	)
	return "\n" + fullView
}

func (m Model) renderTreeView() string {
	if len(m.rows) == 0 {
		return theme.DefaultTheme.Muted.Render("Nothing here yet. Press a for an item or A for a folder.")
	}

	var b strings.Builder
	viewportHeight := m.getViewportHeight()
	start := m.scrollOffset
	end := m.scrollOffset + viewportHeight
	if end > len(m.rows) {
		end = len(m.rows)
	}

	for i := start; i < end; i++ {
		node := m.rows[i].node
		cursor := "  "
		if i == m.cursor {
			cursor = theme.DefaultTheme.Highlight.Render("▶ ")
		}

		line := cursor + strings.Repeat("  ", node.Depth) + tree.Label(node.Element)
		switch {
		case m.picked != nil && m.picked.ID() == node.ID():
			line = lipgloss.NewStyle().Faint(true).Render(line)
		case i == m.cursor && node.IsFolder():
			line = lipgloss.NewStyle().Bold(true).Render(line)
		case i == m.cursor:
			line = theme.DefaultTheme.Selected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.rows) > viewportHeight {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf(" (%d-%d of %d)", start+1, end, len(m.rows))))
		b.WriteString("\n")
	}
	return b.String()
}
