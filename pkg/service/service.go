package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-elements/pkg/api"
	"github.com/mattsolo1/grove-elements/pkg/cache"
	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/relay"
	"github.com/mattsolo1/grove-elements/pkg/tree"
)

// Service is the client context: it owns the remote client, the cache and
// the push relay, and carries out user actions against them.
type Service struct {
	remote cache.Remote
	cache  *cache.Cache
	relay  *relay.Relay
	log    logrus.FieldLogger
	Config *Config
}

// Config holds service configuration
type Config struct {
	APIURL      string
	PushURL     string
	HTTPTimeout time.Duration
}

// Option customises New.
type Option func(*options)

type options struct {
	remote  cache.Remote
	channel relay.Channel
}

// WithRemote replaces the REST client.
func WithRemote(r cache.Remote) Option {
	return func(o *options) {
		o.remote = r
	}
}

// WithChannel replaces the websocket push channel.
func WithChannel(ch relay.Channel) Option {
	return func(o *options) {
		o.channel = ch
	}
}

// New creates a service. Nothing is fetched until Load or Connect.
func New(config *Config, log logrus.FieldLogger, opts ...Option) (*Service, error) {
	if config == nil {
		config = &Config{}
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.remote == nil {
		apiURL := config.APIURL
		if apiURL == "" {
			apiURL = api.DefaultBaseURL
		}
		var clientOpts []api.ClientOption
		if config.HTTPTimeout > 0 {
			clientOpts = append(clientOpts, api.WithTimeout(config.HTTPTimeout))
		}
		client, err := api.NewClient(apiURL, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("create api client: %w", err)
		}
		o.remote = client
	}
	if o.channel == nil {
		o.channel = relay.NewWebsocketChannel(config.PushURL, log, nil)
	}

	c := cache.New(o.remote, log.WithField("component", "cache"))
	return &Service{
		remote: o.remote,
		cache:  c,
		relay:  relay.New(o.channel, c, log.WithField("component", "relay")),
		log:    log,
		Config: config,
	}, nil
}

// Load fetches the full collection once.
func (s *Service) Load(ctx context.Context) error {
	return s.cache.Fetch(ctx)
}

// Connect loads the collection and starts the push relay. A failed initial
// load leaves the cache empty; the relay is started regardless so the next
// push event retries.
func (s *Service) Connect(ctx context.Context) error {
	loadErr := s.Load(ctx)
	if err := s.relay.Start(ctx); err != nil {
		return fmt.Errorf("start push relay: %w", err)
	}
	return loadErr
}

// Disconnect stops the push relay.
func (s *Service) Disconnect() error {
	return s.relay.Stop()
}

// Snapshot returns a copy of the cached collection.
func (s *Service) Snapshot() *models.Collection {
	return s.cache.Snapshot()
}

// Loading reports whether a fetch is in flight.
func (s *Service) Loading() bool {
	return s.cache.Loading()
}

// Changes signals after every cache change. See cache.Cache.Subscribe.
func (s *Service) Changes() (<-chan struct{}, func()) {
	return s.cache.Subscribe()
}

// Tree derives the tree from the root of the cached collection.
func (s *Service) Tree(opts ...tree.Option) []*tree.Node {
	snap := s.cache.Snapshot()
	return tree.Build(snap.Items, snap.Folders, models.Root, opts...)
}

// Orphans lists cached elements unreachable from the root.
func (s *Service) Orphans() []models.Element {
	snap := s.cache.Snapshot()
	return tree.Orphans(snap.Items, snap.Folders)
}
