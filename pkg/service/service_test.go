package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/relay"
	"github.com/mattsolo1/grove-elements/pkg/tree"
)

// memRemote is an in-memory collection service that counts write requests.
type memRemote struct {
	mu       sync.Mutex
	coll     models.Collection
	seq      int
	writes   int
	fetchErr error
}

func newMemRemote() *memRemote {
	return &memRemote{coll: models.Collection{Items: []models.Item{}, Folders: []models.Folder{}}}
}

func (r *memRemote) FetchAll(ctx context.Context) (*models.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.coll.Clone(), nil
}

func (r *memRemote) CreateItem(ctx context.Context, d models.ItemDraft) (*models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.seq++
	it := models.Item{ID: fmt.Sprintf("i%d", r.seq), Title: d.Title, Icon: d.Icon, ParentID: d.ParentID, Order: d.Order}
	r.coll.Items = append(r.coll.Items, it)
	return &it, nil
}

func (r *memRemote) CreateFolder(ctx context.Context, d models.FolderDraft) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.seq++
	f := models.Folder{ID: fmt.Sprintf("f%d", r.seq), Name: d.Name, IsOpen: d.IsOpen, ParentID: d.ParentID, Order: d.Order}
	r.coll.Folders = append(r.coll.Folders, f)
	return &f, nil
}

func (r *memRemote) UpdateElement(ctx context.Context, id string, u models.Update) (models.Element, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	now := time.Now()
	switch u.Kind {
	case models.KindItem:
		for i := range r.coll.Items {
			if r.coll.Items[i].ID == id {
				u.ApplyToItem(&r.coll.Items[i], now)
				it := r.coll.Items[i]
				return models.ItemElement(&it), nil
			}
		}
	case models.KindFolder:
		for i := range r.coll.Folders {
			if r.coll.Folders[i].ID == id {
				u.ApplyToFolder(&r.coll.Folders[i], now)
				f := r.coll.Folders[i]
				return models.FolderElement(&f), nil
			}
		}
	}
	return models.Element{}, errors.New("not found")
}

func (r *memRemote) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// recordingChannel is a push channel that records emitted events.
type recordingChannel struct {
	mu      sync.Mutex
	msgs    chan relay.Message
	emitted []relay.Message
	closed  bool
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{msgs: make(chan relay.Message, 8)}
}

func (c *recordingChannel) Connect(ctx context.Context) error { return nil }

func (c *recordingChannel) Emit(event string, payload any) error {
	msg, err := relay.NewMessage(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = append(c.emitted, msg)
	return nil
}

func (c *recordingChannel) Messages() <-chan relay.Message { return c.msgs }

func (c *recordingChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.msgs)
	}
	return nil
}

func (c *recordingChannel) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.emitted {
		out = append(out, m.Event)
	}
	return out
}

func (c *recordingChannel) last() relay.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emitted[len(c.emitted)-1]
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(t *testing.T, remote *memRemote) (*Service, *recordingChannel) {
	t.Helper()
	ch := newRecordingChannel()
	svc, err := New(&Config{}, quietLogger(), WithRemote(remote), WithChannel(ch))
	require.NoError(t, err)
	require.NoError(t, svc.Load(context.Background()))
	return svc, ch
}

// seeded returns a remote holding:
//
//	Work (f1)
//	  Reports (f2)
//	    Q1 (i1)
//	Plan (i2)
func seeded() *memRemote {
	r := newMemRemote()
	r.seq = 2
	r.coll.Folders = []models.Folder{
		{ID: "f1", Name: "Work", IsOpen: true},
		{ID: "f2", Name: "Reports", IsOpen: true, ParentID: "f1"},
	}
	r.coll.Items = []models.Item{
		{ID: "i1", Title: "Q1", Icon: "📊", ParentID: "f2"},
		{ID: "i2", Title: "Plan", Icon: "📄"},
	}
	return r
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(&Config{APIURL: "ftp://example.com"}, quietLogger(), WithChannel(newRecordingChannel()))
	assert.Error(t, err)
}

func TestAddItemAndFolder(t *testing.T) {
	ctx := context.Background()
	remote := seeded()
	svc, ch := newTestService(t, remote)

	it, err := svc.AddItem(ctx, "  Budget ", "", "f1")
	require.NoError(t, err)
	assert.Equal(t, "Budget", it.Title)
	assert.Equal(t, models.DefaultIcon, it.Icon)
	assert.Equal(t, 0, it.Order, "first item under f1")

	it2, err := svc.AddItem(ctx, "Notes", "📝", models.Root)
	require.NoError(t, err)
	assert.Equal(t, 1, it2.Order, "Plan already sits at the root")

	f, err := svc.AddFolder(ctx, "Archive", models.Root)
	require.NoError(t, err)
	assert.True(t, f.IsOpen)
	assert.Equal(t, 1, f.Order)

	assert.Equal(t, []string{relay.EventCreateItem, relay.EventCreateItem, relay.EventCreateFolder}, ch.events())
	var draft models.FolderDraft
	require.NoError(t, json.Unmarshal(ch.last().Data, &draft))
	assert.Equal(t, "Archive", draft.Name)

	// The cache reflects the confirmed writes without a refetch.
	snap := svc.Snapshot()
	assert.Len(t, snap.Items, 4)
	assert.Len(t, snap.Folders, 3)
}

func TestAddRejectsBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	remote := seeded()
	svc, ch := newTestService(t, remote)

	tests := []struct {
		name  string
		run   func() error
		field string
	}{
		{"empty title", func() error { _, err := svc.AddItem(ctx, " ", "", models.Root); return err }, "title"},
		{"empty folder name", func() error { _, err := svc.AddFolder(ctx, "", models.Root); return err }, "name"},
		{"item parent unknown", func() error { _, err := svc.AddItem(ctx, "x", "", "nope"); return err }, "parentId"},
		{"item parent is an item", func() error { _, err := svc.AddItem(ctx, "x", "", "i2"); return err }, "parentId"},
		{"folder parent unknown", func() error { _, err := svc.AddFolder(ctx, "x", "nope"); return err }, "parentId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.Zero(t, remote.writeCount())
	assert.Empty(t, ch.events())
}

func TestToggleFolder(t *testing.T) {
	ctx := context.Background()
	svc, ch := newTestService(t, seeded())

	f, err := svc.ToggleFolder(ctx, "f1")
	require.NoError(t, err)
	assert.False(t, f.IsOpen)
	nodes := svc.Tree(tree.OpenOnly())
	require.NotNil(t, tree.Find(nodes, "f1"))
	assert.Nil(t, tree.Find(nodes, "f2"), "closed folder hides its children")

	f, err = svc.ToggleFolder(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, f.IsOpen)

	assert.Equal(t, []string{relay.EventUpdateElement, relay.EventUpdateElement}, ch.events())
	var notice relay.UpdateNotice
	require.NoError(t, json.Unmarshal(ch.last().Data, &notice))
	assert.Equal(t, models.KindFolder, notice.Kind)
	require.NotNil(t, notice.Updates.IsOpen)
	assert.True(t, *notice.Updates.IsOpen)

	_, err = svc.ToggleFolder(ctx, "i1")
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDropReparents(t *testing.T) {
	ctx := context.Background()
	remote := seeded()
	svc, ch := newTestService(t, remote)

	el, err := svc.Drop(ctx, "i2", "f2")
	require.NoError(t, err)
	assert.Equal(t, models.ParentID("f2"), el.Parent())

	nodes := svc.Tree()
	reports := tree.Find(nodes, "f2")
	require.NotNil(t, reports)
	var under []string
	for _, c := range reports.Children {
		under = append(under, c.ID())
	}
	assert.ElementsMatch(t, []string{"i1", "i2"}, under)
	for _, n := range nodes {
		assert.NotEqual(t, "i2", n.ID(), "no longer at the root")
	}

	var notice relay.UpdateNotice
	require.NoError(t, json.Unmarshal(ch.last().Data, &notice))
	assert.Equal(t, "i2", notice.ID)
	assert.Equal(t, models.ParentID("f2"), *notice.Updates.ParentID)
	assert.Equal(t, remote.state(), svc.Snapshot())
}

func TestSelfDropIssuesNoRequest(t *testing.T) {
	remote := seeded()
	svc, ch := newTestService(t, remote)

	el, err := svc.Drop(context.Background(), "f1", "f1")
	require.NoError(t, err)
	assert.Empty(t, el.Kind)
	assert.Zero(t, remote.writeCount())
	assert.Empty(t, ch.events())
}

func TestDropRejections(t *testing.T) {
	ctx := context.Background()
	remote := seeded()
	svc, ch := newTestService(t, remote)

	tests := []struct {
		name    string
		dragged string
		target  string
		cycle   bool
		field   string
	}{
		{"onto item", "f2", "i1", false, "target"},
		{"onto unknown", "i1", "nope", false, "target"},
		{"unknown dragged", "nope", "f1", false, "id"},
		{"folder onto child", "f1", "f2", true, "parentId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Drop(ctx, tt.dragged, tt.target)
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.cycle, errors.Is(err, models.ErrCycle))
		})
	}
	assert.Zero(t, remote.writeCount())
	assert.Empty(t, ch.events())
}

func TestMoveToRoot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, seeded())

	el, err := svc.Move(ctx, "f2", models.Root)
	require.NoError(t, err)
	assert.True(t, el.Parent().IsRoot())

	var roots []string
	for _, n := range svc.Tree() {
		roots = append(roots, n.ID())
	}
	assert.Equal(t, []string{"f1", "f2", "i2"}, roots)
}

func TestUpdateOfUncachedElementStillNotifies(t *testing.T) {
	ctx := context.Background()
	remote := seeded()
	svc, ch := newTestService(t, remote)

	// f9 exists on the server but was created after the last fetch.
	remote.mu.Lock()
	remote.coll.Folders = append(remote.coll.Folders, models.Folder{ID: "f9", Name: "Elsewhere", IsOpen: true})
	remote.mu.Unlock()

	_, err := svc.update(ctx, "f9", models.SetOpen(false))
	require.Error(t, err)
	assert.Equal(t, []string{relay.EventUpdateElement}, ch.events())
	_, ok := svc.cache.Element("f9")
	assert.False(t, ok)
}

func TestConnectStartsRelay(t *testing.T) {
	remote := seeded()
	svc, ch := newTestService(t, remote)
	require.NoError(t, svc.Connect(context.Background()))
	defer svc.Disconnect()

	assert.Contains(t, ch.events(), relay.EventRequestInitialData)

	changes, cancel := svc.Changes()
	defer cancel()

	// A create by another client arrives as a push event and triggers a refetch.
	_, err := remote.CreateItem(context.Background(), models.ItemDraft{Title: "Remote"})
	require.NoError(t, err)
	ch.msgs <- relay.Message{Event: relay.EventItemCreated}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no cache change after push event")
	}
	assert.Len(t, svc.Snapshot().Items, 3)
	require.NoError(t, svc.Disconnect())
}

func TestConnectReportsLoadFailure(t *testing.T) {
	remote := newMemRemote()
	remote.fetchErr = errors.New("connection refused")
	ch := newRecordingChannel()
	svc, err := New(&Config{}, quietLogger(), WithRemote(remote), WithChannel(ch))
	require.NoError(t, err)

	err = svc.Connect(context.Background())
	assert.Error(t, err)
	assert.Empty(t, svc.Snapshot().Items)
	assert.Contains(t, ch.events(), relay.EventRequestInitialData)
	require.NoError(t, svc.Disconnect())
}

func TestOrphans(t *testing.T) {
	remote := seeded()
	remote.coll.Items = append(remote.coll.Items, models.Item{ID: "i9", Title: "Lost", ParentID: "gone"})
	svc, _ := newTestService(t, remote)

	orphans := svc.Orphans()
	require.Len(t, orphans, 1)
	assert.Equal(t, "i9", orphans[0].ID())
}

func (r *memRemote) state() *models.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coll.Clone()
}
