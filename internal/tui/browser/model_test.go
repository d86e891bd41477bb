package browser

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-elements/internal/tui/browser/components/confirm"
	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/tree"
)

type call struct {
	op   string
	args []string
}

type fakeService struct {
	coll  models.Collection
	calls []call
	err   error
}

func newFakeService() *fakeService {
	return &fakeService{coll: models.Collection{
		Folders: []models.Folder{
			{ID: "f1", Name: "Work", IsOpen: true},
			{ID: "f2", Name: "Archive", IsOpen: false},
		},
		Items: []models.Item{
			{ID: "i1", Title: "Budget", Icon: "💰", ParentID: "f1"},
			{ID: "i2", Title: "Old", Icon: "📄", ParentID: "f2"},
			{ID: "i3", Title: "Plan", Icon: "📄"},
		},
	}}
}

func (f *fakeService) record(op string, args ...string) {
	f.calls = append(f.calls, call{op: op, args: args})
}

func (f *fakeService) Load(ctx context.Context) error { f.record("load"); return f.err }
func (f *fakeService) Loading() bool                  { return false }
func (f *fakeService) Changes() (<-chan struct{}, func()) {
	return make(chan struct{}), func() {}
}

func (f *fakeService) Tree(opts ...tree.Option) []*tree.Node {
	return tree.Build(f.coll.Items, f.coll.Folders, models.Root, opts...)
}

func (f *fakeService) ToggleFolder(ctx context.Context, id string) (*models.Folder, error) {
	f.record("toggle", id)
	for i := range f.coll.Folders {
		if f.coll.Folders[i].ID == id {
			f.coll.Folders[i].IsOpen = !f.coll.Folders[i].IsOpen
			folder := f.coll.Folders[i]
			return &folder, nil
		}
	}
	return nil, &models.ValidationError{Field: "id", Message: "unknown"}
}

func (f *fakeService) Drop(ctx context.Context, draggedID, targetID string) (models.Element, error) {
	f.record("drop", draggedID, targetID)
	if f.err != nil {
		return models.Element{}, f.err
	}
	if draggedID == targetID {
		return models.Element{}, nil
	}
	return models.ItemElement(&models.Item{ID: draggedID, Title: "x", ParentID: models.ParentID(targetID)}), nil
}

func (f *fakeService) Move(ctx context.Context, id string, parent models.ParentID) (models.Element, error) {
	f.record("move", id, string(parent))
	return models.ItemElement(&models.Item{ID: id, Title: "x", ParentID: parent}), nil
}

func (f *fakeService) AddItem(ctx context.Context, title, icon string, parent models.ParentID) (*models.Item, error) {
	f.record("addItem", title, string(parent))
	return &models.Item{ID: "new", Title: title, ParentID: parent}, nil
}

func (f *fakeService) AddFolder(ctx context.Context, name string, parent models.ParentID) (*models.Folder, error) {
	f.record("addFolder", name, string(parent))
	return &models.Folder{ID: "new", Name: name, ParentID: parent, IsOpen: true}, nil
}

// send feeds msg to the model and runs every resulting command to
// completion, the way the bubbletea runtime would.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		if out == nil {
			break
		}
		if _, isBatch := out.(tea.BatchMsg); isBatch {
			break
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

// press feeds msg without running the returned commands. Text input
// commands only drive cursor blinking.
func press(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loadedModel(t *testing.T, svc *fakeService) Model {
	t.Helper()
	m := New(svc)
	m = send(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	return send(t, m, loadCmd(svc)())
}

func visibleIDs(m Model) []string {
	var ids []string
	for _, r := range m.rows {
		ids = append(ids, r.node.ID())
	}
	return ids
}

func TestRowsFollowOpenState(t *testing.T) {
	svc := newFakeService()
	m := loadedModel(t, svc)
	assert.Equal(t, []string{"f1", "i1", "f2", "i3"}, visibleIDs(m))

	m = send(t, m, keyRunes("."))
	assert.Equal(t, []string{"f1", "i1", "f2", "i2", "i3"}, visibleIDs(m))
}

func TestToggleFolderUnderCursor(t *testing.T) {
	svc := newFakeService()
	m := loadedModel(t, svc)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, []call{{op: "load"}, {op: "toggle", args: []string{"f1"}}}, svc.calls)
	assert.Equal(t, []string{"f1", "f2", "i3"}, visibleIDs(m))
	assert.Contains(t, m.statusMessage, "Closed Work")

	// Items do not toggle.
	m = send(t, m, keyRunes("G"))
	send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, svc.calls, 2)
}

func TestPickAndDrop(t *testing.T) {
	svc := newFakeService()
	m := loadedModel(t, svc)

	m = send(t, m, keyRunes("G")) // i3
	m = send(t, m, keyRunes("p"))
	require.NotNil(t, m.picked)
	assert.Contains(t, m.View(), "[Moving: 📄 Plan]")

	m = send(t, m, keyRunes("g")) // f1
	m = send(t, m, keyRunes("d"))
	assert.Nil(t, m.picked)
	assert.Equal(t, call{op: "drop", args: []string{"i3", "f1"}}, svc.calls[len(svc.calls)-1])
	assert.Contains(t, m.statusMessage, "Moved")
}

func TestDropErrorsAreShown(t *testing.T) {
	svc := newFakeService()
	m := loadedModel(t, svc)
	svc.err = models.CycleError("f1", "f3")

	m = send(t, m, keyRunes("p"))
	m = send(t, m, keyRunes("d"))
	assert.Contains(t, m.statusMessage, "Cannot move a folder into itself")
}

func TestDropToRootAsksFirst(t *testing.T) {
	svc := newFakeService()
	m := loadedModel(t, svc)

	m = send(t, m, keyRunes("j"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown}) // i1 after f1, or f2 if j is unbound
	picked := m.current().ID()
	m = send(t, m, keyRunes("p"))
	m = send(t, m, keyRunes("D"))
	require.True(t, m.confirm.Active)
	assert.Contains(t, m.View(), "to the root?")

	m = send(t, m, keyRunes("n"))
	assert.False(t, m.confirm.Active)
	assert.Len(t, svc.calls, 1)

	m = send(t, m, keyRunes("p"))
	m = send(t, m, keyRunes("D"))
	m = send(t, m, keyRunes("y"))
	assert.Equal(t, call{op: "move", args: []string{picked, ""}}, svc.calls[len(svc.calls)-1])
}

func TestCancelPick(t *testing.T) {
	svc := newFakeService()
	m := loadedModel(t, svc)

	m = send(t, m, keyRunes("p"))
	require.NotNil(t, m.picked)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.picked)
}

func TestCreateInsideFolderUnderCursor(t *testing.T) {
	svc := newFakeService()
	m := loadedModel(t, svc)

	m = press(m, keyRunes("A"))
	require.Equal(t, models.KindFolder, m.creating)
	for _, r := range "Reports" {
		m = press(m, keyRunes(string(r)))
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, m.creating)
	assert.Equal(t, call{op: "addFolder", args: []string{"Reports", "f1"}}, svc.calls[len(svc.calls)-1])
	assert.Equal(t, "Created folder Reports", m.statusMessage)
}

func TestCreateNextToItemUnderCursor(t *testing.T) {
	svc := newFakeService()
	m := loadedModel(t, svc)

	m = send(t, m, keyRunes("G")) // root item i3
	m = press(m, keyRunes("a"))
	m = press(m, keyRunes("Idea"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, call{op: "addItem", args: []string{"Idea", ""}}, svc.calls[len(svc.calls)-1])
}

func TestConfirmDialog(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyMsg
		want bool
	}{
		{"y confirms", []tea.KeyMsg{keyRunes("y")}, true},
		{"esc declines", []tea.KeyMsg{{Type: tea.KeyEsc}}, false},
		{"enter defaults to no", []tea.KeyMsg{{Type: tea.KeyEnter}}, false},
		{"switch then enter", []tea.KeyMsg{{Type: tea.KeyTab}, {Type: tea.KeyEnter}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := confirm.New()
			c.Activate("Sure?", "f1")

			var cmd tea.Cmd
			for _, k := range tt.keys {
				c, cmd = c.Update(k)
			}
			assert.False(t, c.Active)
			require.NotNil(t, cmd)
			assert.Equal(t, confirm.ResultMsg{Subject: "f1", Confirmed: tt.want}, cmd())
		})
	}
}

func TestEmptyView(t *testing.T) {
	svc := &fakeService{}
	m := New(svc)
	assert.Equal(t, "Loading...", m.View())

	m = send(t, m, loadCmd(svc)())
	assert.True(t, strings.Contains(m.View(), "Nothing here yet"))
}
