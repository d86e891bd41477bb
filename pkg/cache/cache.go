package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-elements/pkg/models"
)

// ErrNotFoundDuringUpdate is returned when a confirmed update names an id
// that is in neither cached collection. The cache is left unchanged.
var ErrNotFoundDuringUpdate = errors.New("updated element not in cache")

// Remote is the store the cache synchronises with. *api.Client satisfies it.
type Remote interface {
	FetchAll(ctx context.Context) (*models.Collection, error)
	CreateItem(ctx context.Context, draft models.ItemDraft) (*models.Item, error)
	CreateFolder(ctx context.Context, draft models.FolderDraft) (*models.Folder, error)
	UpdateElement(ctx context.Context, id string, u models.Update) (models.Element, error)
}

// Cache holds the last synchronised snapshot of the collection.
//
// Writes are pessimistic: the cache only changes after the remote confirms.
// A successful Fetch replaces the snapshot wholesale, so the last fetch to
// complete wins, even over creates and updates confirmed while it was in
// flight.
type Cache struct {
	remote Remote
	log    logrus.FieldLogger

	mu       sync.RWMutex
	snap     models.Collection
	inflight int
	version  uint64
	subs     map[chan struct{}]struct{}
}

// New returns an empty cache backed by remote.
func New(remote Remote, log logrus.FieldLogger) *Cache {
	return &Cache{
		remote: remote,
		log:    log,
		snap:   models.Collection{Items: []models.Item{}, Folders: []models.Folder{}},
		subs:   make(map[chan struct{}]struct{}),
	}
}

// Snapshot returns a copy of the cached collection.
func (c *Cache) Snapshot() *models.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Clone()
}

// Loading reports whether a fetch is in flight.
func (c *Cache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// Version increases on every change to the snapshot.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Element looks up an id in both collections.
func (c *Cache) Element(id string) (models.Element, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.snap.Items {
		if c.snap.Items[i].ID == id {
			it := c.snap.Items[i]
			return models.ItemElement(&it), true
		}
	}
	for i := range c.snap.Folders {
		if c.snap.Folders[i].ID == id {
			f := c.snap.Folders[i]
			return models.FolderElement(&f), true
		}
	}
	return models.Element{}, false
}

// Fetch refetches the full collection and replaces the snapshot. On failure
// the previous snapshot is kept.
func (c *Cache) Fetch(ctx context.Context) error {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()

	coll, err := c.remote.FetchAll(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if err != nil {
		c.log.WithError(err).Warn("fetch failed, keeping previous snapshot")
		return fmt.Errorf("fetch elements: %w", err)
	}
	c.snap = *coll.Clone()
	c.changed()
	c.log.WithFields(logrus.Fields{
		"items":   len(c.snap.Items),
		"folders": len(c.snap.Folders),
	}).Debug("cache replaced")
	return nil
}

// CreateItem creates an item remotely and appends the confirmed item.
func (c *Cache) CreateItem(ctx context.Context, draft models.ItemDraft) (*models.Item, error) {
	it, err := c.remote.CreateItem(ctx, draft)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Items = append(c.snap.Items, *it)
	c.changed()
	return it, nil
}

// CreateFolder creates a folder remotely and appends the confirmed folder.
func (c *Cache) CreateFolder(ctx context.Context, draft models.FolderDraft) (*models.Folder, error) {
	f, err := c.remote.CreateFolder(ctx, draft)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Folders = append(c.snap.Folders, *f)
	c.changed()
	return f, nil
}

// UpdateElement sends u and replaces the cached entry with the confirmed
// element. If the confirmed id is not cached, the element is still returned
// together with ErrNotFoundDuringUpdate.
func (c *Cache) UpdateElement(ctx context.Context, id string, u models.Update) (models.Element, error) {
	el, err := c.remote.UpdateElement(ctx, id, u)
	if err != nil {
		return models.Element{}, err
	}
	if err := c.Apply(el); err != nil {
		return el, err
	}
	return el, nil
}

// Apply replaces the cached entry with the same id and kind as el.
func (c *Cache) Apply(el models.Element) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch el.Kind {
	case models.KindItem:
		for i := range c.snap.Items {
			if c.snap.Items[i].ID == el.Item.ID {
				c.snap.Items[i] = *el.Item
				c.changed()
				return nil
			}
		}
	case models.KindFolder:
		for i := range c.snap.Folders {
			if c.snap.Folders[i].ID == el.Folder.ID {
				c.snap.Folders[i] = *el.Folder
				c.changed()
				return nil
			}
		}
	}
	c.log.WithField("id", el.ID()).Warn("update for element not in cache dropped")
	return fmt.Errorf("%s %s: %w", el.Kind, el.ID(), ErrNotFoundDuringUpdate)
}

// Subscribe returns a channel that receives a signal after changes. Signals
// coalesce: a slow reader sees at least one signal after the latest change.
// cancel releases the subscription.
func (c *Cache) Subscribe() (ch <-chan struct{}, cancel func()) {
	sub := make(chan struct{}, 1)
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, sub)
			c.mu.Unlock()
		})
	}
}

// changed must be called with mu held.
func (c *Cache) changed() {
	c.version++
	for sub := range c.subs {
		select {
		case sub <- struct{}{}:
		default:
		}
	}
}
