package relay

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-elements/pkg/models"
)

// Refresher refetches the full collection. *cache.Cache satisfies it.
type Refresher interface {
	Fetch(ctx context.Context) error
}

// Relay turns inbound push events into cache refetches and announces local
// mutations to other clients. Refetch is a wholesale replace, so duplicate
// or overlapping notifications are harmless.
type Relay struct {
	ch        Channel
	refresher Refresher
	log       logrus.FieldLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New creates a relay. Nothing happens until Start.
func New(ch Channel, refresher Refresher, log logrus.FieldLogger) *Relay {
	return &Relay{ch: ch, refresher: refresher, log: log}
}

// Start connects the channel, asks for initial data and begins listening.
// Calling Start on a running relay is a no-op.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	if err := r.ch.Connect(ctx); err != nil {
		return err
	}
	listenCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.listen(listenCtx, r.done)

	r.emit(EventRequestInitialData, nil)
	return nil
}

// Stop detaches the listener and closes the channel. It waits for the
// listener goroutine to exit.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	err := r.ch.Close()
	<-done
	return err
}

// NotifyCreateItem tells other clients an item was created.
func (r *Relay) NotifyCreateItem(draft models.ItemDraft) {
	r.emit(EventCreateItem, draft)
}

// NotifyCreateFolder tells other clients a folder was created.
func (r *Relay) NotifyCreateFolder(draft models.FolderDraft) {
	r.emit(EventCreateFolder, draft)
}

// NotifyUpdate tells other clients an element was updated.
func (r *Relay) NotifyUpdate(id string, u models.Update) {
	r.emit(EventUpdateElement, UpdateNotice{ID: id, Kind: u.Kind, Updates: u})
}

func (r *Relay) emit(event string, payload any) {
	if err := r.ch.Emit(event, payload); err != nil {
		r.log.WithError(err).WithField("event", event).Debug("push notify dropped")
	}
}

func (r *Relay) listen(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-r.ch.Messages():
			if !ok {
				return
			}
			if !TriggersRefetch(msg.Event) {
				r.log.WithField("event", msg.Event).Debug("ignoring push event")
				continue
			}
			r.log.WithField("event", msg.Event).Debug("refetching after push event")
			if err := r.refresher.Fetch(ctx); err != nil {
				r.log.WithError(err).Warn("refetch after push event failed")
			}
		}
	}
}
