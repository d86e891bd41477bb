package browser

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattsolo1/grove-core/tui/components/help"

	"github.com/mattsolo1/grove-elements/internal/tui/browser/components/confirm"
	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/tree"
)

// Service is what the browser needs from the client context.
// *service.Service satisfies it.
type Service interface {
	Load(ctx context.Context) error
	Loading() bool
	Changes() (<-chan struct{}, func())
	Tree(opts ...tree.Option) []*tree.Node
	ToggleFolder(ctx context.Context, id string) (*models.Folder, error)
	Drop(ctx context.Context, draggedID, targetID string) (models.Element, error)
	Move(ctx context.Context, id string, parent models.ParentID) (models.Element, error)
	AddItem(ctx context.Context, title, icon string, parent models.ParentID) (*models.Item, error)
	AddFolder(ctx context.Context, name string, parent models.ParentID) (*models.Folder, error)
}

// row is one visible line of the tree.
type row struct {
	node *tree.Node
}

// Model is the main model for the element browser TUI
type Model struct {
	service Service
	changes <-chan struct{}
	release func()

	rows         []row
	cursor       int
	scrollOffset int
	showAll      bool
	loaded       bool

	keys   KeyMap
	help   help.Model
	width  int
	height int

	// Drag state: the element picked up with "p".
	picked *tree.Node

	// Creation state
	creating  models.Kind
	nameInput textinput.Model

	confirm       confirm.Model
	statusMessage string
}

// New creates a browser over svc and subscribes to its changes. Call Close
// after the program exits.
func New(svc Service) Model {
	helpModel := help.NewBuilder().
		WithKeys(keys).
		WithTitle("Element Browser - Help").
		Build()

	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 60

	changes, release := svc.Changes()
	return Model{
		service:   svc,
		changes:   changes,
		release:   release,
		keys:      keys,
		help:      helpModel,
		nameInput: ti,
		confirm:   confirm.New(),
	}
}

// Close releases the change subscription.
func (m Model) Close() {
	if m.release != nil {
		m.release()
	}
}

// Init loads the collection and starts listening for changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(loadCmd(m.service), waitForChange(m.changes))
}

// treeChangedMsg is sent after the cache changed.
type treeChangedMsg struct{}

// loadedMsg is sent after an explicit load.
type loadedMsg struct{ err error }

// actionDoneMsg is sent after a mutation finished.
type actionDoneMsg struct {
	status string
	err    error
}

func loadCmd(svc Service) tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: svc.Load(context.Background())}
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return treeChangedMsg{}
	}
}

// rebuild re-derives the visible rows, keeping the cursor on the same
// element when it is still visible.
func (m *Model) rebuild() {
	var current string
	if n := m.current(); n != nil {
		current = n.ID()
	}

	var opts []tree.Option
	if !m.showAll {
		opts = append(opts, tree.OpenOnly())
	}
	m.rows = nil
	tree.Walk(m.service.Tree(opts...), func(n *tree.Node) bool {
		m.rows = append(m.rows, row{node: n})
		return true
	})

	for i, r := range m.rows {
		if r.node.ID() == current {
			m.cursor = i
			m.adjustScroll()
			return
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.adjustScroll()
}

func (m *Model) current() *tree.Node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].node
}

// targetParent is where a new element goes: into the folder under the
// cursor, or next to the item under the cursor.
func (m *Model) targetParent() models.ParentID {
	n := m.current()
	if n == nil {
		return models.Root
	}
	if n.IsFolder() {
		return models.ParentID(n.ID())
	}
	return n.Element.Parent()
}

func (m *Model) getViewportHeight() int {
	// header, spacing, status and help lines
	h := m.height - 6
	if h < 1 {
		return 20
	}
	return h
}

func (m *Model) adjustScroll() {
	vh := m.getViewportHeight()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+vh {
		m.scrollOffset = m.cursor - vh + 1
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}
