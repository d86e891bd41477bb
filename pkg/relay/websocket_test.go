package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/relay"
	"github.com/mattsolo1/grove-elements/pkg/server"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func fastSettings() *relay.Settings {
	s := relay.DefaultSettings()
	s.ReconnectTimeout = 50 * time.Millisecond
	return s
}

func newHub(t *testing.T, snapshot server.SnapshotFunc) (*server.Hub, string) {
	t.Helper()
	hub := server.NewHub(quietLogger(), snapshot, nil)
	ts := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func receive(t *testing.T, ch relay.Channel) relay.Message {
	t.Helper()
	select {
	case msg, ok := <-ch.Messages():
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for push frame")
	}
	return relay.Message{}
}

func TestWebsocketChannelRelaysBetweenClients(t *testing.T) {
	hub, url := newHub(t, nil)
	a := relay.NewWebsocketChannel(url, quietLogger(), fastSettings())
	b := relay.NewWebsocketChannel(url, quietLogger(), fastSettings())
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, b.Connect(context.Background()))
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Emit(relay.EventCreateItem, models.ItemDraft{Title: "Plan"}))
	msg := receive(t, b)
	assert.Equal(t, relay.EventItemCreated, msg.Event)
	assert.JSONEq(t, `{"title":"Plan","icon":"","parentId":null,"order":0}`, string(msg.Data))

	require.NoError(t, b.Emit(relay.EventUpdateElement, relay.UpdateNotice{
		ID: "f1", Kind: models.KindFolder, Updates: models.SetOpen(false),
	}))
	msg = receive(t, a)
	assert.Equal(t, relay.EventFolderUpdated, msg.Event)

	hub.Broadcast(relay.EventItemUpdated, map[string]string{"id": "i1"})
	assert.Equal(t, relay.EventItemUpdated, receive(t, a).Event)
	assert.Equal(t, relay.EventItemUpdated, receive(t, b).Event)
}

func TestInitialDataGoesToRequester(t *testing.T) {
	snapshot := func(ctx context.Context) (*models.Collection, error) {
		return &models.Collection{Items: []models.Item{{ID: "i1", Title: "Plan"}}, Folders: []models.Folder{}}, nil
	}
	hub, url := newHub(t, snapshot)
	a := relay.NewWebsocketChannel(url, quietLogger(), fastSettings())
	defer a.Close()

	require.NoError(t, a.Connect(context.Background()))
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, a.Emit(relay.EventRequestInitialData, nil))

	msg := receive(t, a)
	assert.Equal(t, relay.EventInitialData, msg.Event)
	var coll models.Collection
	require.NoError(t, json.Unmarshal(msg.Data, &coll))
	require.Len(t, coll.Items, 1)
	assert.Equal(t, "i1", coll.Items[0].ID)
}

func TestRelayRefetchesOverWebsocket(t *testing.T) {
	hub, url := newHub(t, nil)
	fetched := make(chan struct{}, 8)
	ref := refresherFunc(func(ctx context.Context) error {
		fetched <- struct{}{}
		return nil
	})

	r := relay.New(relay.NewWebsocketChannel(url, quietLogger(), fastSettings()), ref, quietLogger())
	require.NoError(t, r.Start(context.Background()))

	// requestInitialData is answered with initialData.
	select {
	case <-fetched:
	case <-time.After(3 * time.Second):
		t.Fatal("no refetch after initialData")
	}

	hub.Broadcast(relay.EventFolderCreated, nil)
	select {
	case <-fetched:
	case <-time.After(3 * time.Second):
		t.Fatal("no refetch after folderCreated")
	}

	require.NoError(t, r.Stop())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestChannelNoticesDisconnect(t *testing.T) {
	hub, url := newHub(t, nil)
	a := relay.NewWebsocketChannel(url, quietLogger(), fastSettings())
	defer a.Close()
	require.NoError(t, a.Connect(context.Background()))
	require.Eventually(t, a.Connected, 3*time.Second, 10*time.Millisecond)

	// The closed hub drops the connection and refuses redials.
	hub.Close()
	require.Eventually(t, func() bool { return !a.Connected() }, 3*time.Second, 10*time.Millisecond)
}

func TestEmitAfterClose(t *testing.T) {
	a := relay.NewWebsocketChannel("ws://127.0.0.1:1/socket", quietLogger(), fastSettings())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Emit(relay.EventCreateItem, nil), relay.ErrClosed)
	assert.ErrorIs(t, a.Connect(context.Background()), relay.ErrClosed)
	_, ok := <-a.Messages()
	assert.False(t, ok)
}

type refresherFunc func(ctx context.Context) error

func (f refresherFunc) Fetch(ctx context.Context) error { return f(ctx) }
