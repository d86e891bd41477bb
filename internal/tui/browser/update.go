package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattsolo1/grove-elements/internal/tui/browser/components/confirm"
	"github.com/mattsolo1/grove-elements/pkg/models"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.SetSize(msg.Width, msg.Height)
		m.adjustScroll()
		return m, nil

	case loadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Error loading: %v", msg.err)
		}
		m.rebuild()
		return m, nil

	case treeChangedMsg:
		m.loaded = true
		m.rebuild()
		return m, waitForChange(m.changes)

	case actionDoneMsg:
		if msg.err != nil {
			m.statusMessage = describeError(msg.err)
		} else {
			m.statusMessage = msg.status
		}
		m.rebuild()
		return m, nil

	case confirm.ResultMsg:
		m.statusMessage = ""
		if !msg.Confirmed {
			return m, nil
		}
		return m, moveToRootCmd(m.service, msg.Subject)

	case tea.KeyMsg:
		if m.help.ShowAll {
			m.help.Toggle()
			return m, nil
		}

		if m.confirm.Active {
			m.confirm, cmd = m.confirm.Update(msg)
			return m, cmd
		}

		// Handle name entry for a new element
		if m.creating != "" {
			switch {
			case key.Matches(msg, m.keys.CancelPick):
				m.creating = ""
				m.nameInput.Blur()
				m.nameInput.SetValue("")
				return m, nil
			case key.Matches(msg, m.keys.Submit):
				name := m.nameInput.Value()
				kind := m.creating
				m.creating = ""
				m.nameInput.Blur()
				m.nameInput.SetValue("")
				return m, createCmd(m.service, kind, name, m.targetParent())
			default:
				m.nameInput, cmd = m.nameInput.Update(msg)
				return m, cmd
			}
		}

		if m.picked != nil && key.Matches(msg, m.keys.CancelPick) {
			m.picked = nil
			m.statusMessage = ""
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.Toggle()
			return m, nil
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.adjustScroll()
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
				m.adjustScroll()
			}
		case key.Matches(msg, m.keys.GoToTop):
			m.cursor = 0
			m.adjustScroll()
		case key.Matches(msg, m.keys.GoToBottom):
			if len(m.rows) > 0 {
				m.cursor = len(m.rows) - 1
				m.adjustScroll()
			}
		case key.Matches(msg, m.keys.ShowAll):
			m.showAll = !m.showAll
			m.rebuild()
		case key.Matches(msg, m.keys.Refresh):
			m.statusMessage = "Refetching..."
			return m, loadCmd(m.service)
		case key.Matches(msg, m.keys.Toggle):
			n := m.current()
			if n == nil || !n.IsFolder() {
				return m, nil
			}
			return m, toggleCmd(m.service, n.ID())
		case key.Matches(msg, m.keys.Pick):
			if n := m.current(); n != nil {
				m.picked = n
				m.statusMessage = fmt.Sprintf("Picked up %s. Move to a folder and press d.", n.Element.Label())
			}
		case key.Matches(msg, m.keys.DropHere):
			n := m.current()
			if m.picked == nil || n == nil {
				return m, nil
			}
			dragged := m.picked.ID()
			m.picked = nil
			return m, dropCmd(m.service, dragged, n.ID())
		case key.Matches(msg, m.keys.DropRoot):
			if m.picked == nil {
				return m, nil
			}
			m.confirm.Activate(fmt.Sprintf("Move %s to the root?", m.picked.Element.Label()), m.picked.ID())
			m.picked = nil
			return m, nil
		case key.Matches(msg, m.keys.AddItem):
			return m.startCreate(models.KindItem)
		case key.Matches(msg, m.keys.AddFolder):
			return m.startCreate(models.KindFolder)
		}
	}
	return m, nil
}

func (m Model) startCreate(kind models.Kind) (tea.Model, tea.Cmd) {
	m.creating = kind
	if kind == models.KindFolder {
		m.nameInput.Placeholder = "Folder name..."
	} else {
		m.nameInput.Placeholder = "Item title..."
	}
	cmd := m.nameInput.Focus()
	return m, cmd
}

func toggleCmd(svc Service, id string) tea.Cmd {
	return func() tea.Msg {
		f, err := svc.ToggleFolder(context.Background(), id)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		state := "Closed"
		if f.IsOpen {
			state = "Opened"
		}
		return actionDoneMsg{status: fmt.Sprintf("%s %s", state, f.Name)}
	}
}

func dropCmd(svc Service, dragged, target string) tea.Cmd {
	return func() tea.Msg {
		el, err := svc.Drop(context.Background(), dragged, target)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		if el.Kind == "" {
			return actionDoneMsg{status: "Dropped onto itself, nothing changed"}
		}
		return actionDoneMsg{status: fmt.Sprintf("Moved %s", el.Label())}
	}
}

func moveToRootCmd(svc Service, id string) tea.Cmd {
	return func() tea.Msg {
		el, err := svc.Move(context.Background(), id, models.Root)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: fmt.Sprintf("Moved %s to the root", el.Label())}
	}
}

func createCmd(svc Service, kind models.Kind, name string, parent models.ParentID) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if kind == models.KindFolder {
			f, err := svc.AddFolder(ctx, name, parent)
			if err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{status: fmt.Sprintf("Created folder %s", f.Name)}
		}
		it, err := svc.AddItem(ctx, name, "", parent)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: fmt.Sprintf("Created item %s", it.Title)}
	}
}

func describeError(err error) string {
	if errors.Is(err, models.ErrCycle) {
		return "Cannot move a folder into itself or one of its subfolders"
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return "Invalid: " + verr.Message
	}
	return fmt.Sprintf("Error: %v", err)
}
