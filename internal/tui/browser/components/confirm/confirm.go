package confirm

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"
)

// ResultMsg reports how a dialog about Subject was answered.
type ResultMsg struct {
	Subject   string
	Confirmed bool
}

// Model is a Yes/No dialog about one element. "No" has focus when the
// dialog opens, so a stray enter never confirms.
type Model struct {
	Active  bool
	Prompt  string
	Subject string

	yesFocused bool
	keys       keyMap
}

func New() Model {
	return Model{keys: defaultKeyMap}
}

// Activate opens the dialog with prompt about subject.
func (m *Model) Activate(prompt, subject string) {
	m.Prompt = prompt
	m.Subject = subject
	m.yesFocused = false
	m.Active = true
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !m.Active || !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Yes):
		return m.answer(true)
	case key.Matches(keyMsg, m.keys.No):
		return m.answer(false)
	case key.Matches(keyMsg, m.keys.Switch):
		m.yesFocused = !m.yesFocused
	case key.Matches(keyMsg, m.keys.Choose):
		return m.answer(m.yesFocused)
	}
	return m, nil
}

func (m Model) answer(confirmed bool) (Model, tea.Cmd) {
	m.Active = false
	result := ResultMsg{Subject: m.Subject, Confirmed: confirmed}
	return m, func() tea.Msg { return result }
}

func (m Model) View() string {
	if !m.Active {
		return ""
	}

	button := func(label string, focused bool) string {
		if focused {
			return theme.DefaultTheme.Selected.Render("[ " + label + " ]")
		}
		return lipgloss.NewStyle().Faint(true).Render("  " + label + "  ")
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top,
		button("Yes", m.yesFocused), "  ", button("No", !m.yesFocused))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.DefaultTheme.Colors.Orange).
		Padding(0, 2).
		Render(lipgloss.JoinVertical(lipgloss.Center, m.Prompt, "", buttons))
}

type keyMap struct {
	Yes    key.Binding
	No     key.Binding
	Switch key.Binding
	Choose key.Binding
}

var defaultKeyMap = keyMap{
	Yes:    key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
	No:     key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n/esc", "no")),
	Switch: key.NewBinding(key.WithKeys("left", "right", "tab", "h", "l"), key.WithHelp("←/→", "switch")),
	Choose: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "choose")),
}
