package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/clstr-dispatch/core/dispatch"
	"github.com/codewandler/clstr-dispatch/core/plugin"
	"github.com/codewandler/clstr-dispatch/core/routing"
	"github.com/codewandler/clstr-dispatch/core/schedule"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

type Option func(*options)

type options struct {
	log        *slog.Logger
	metrics    Metrics
	plugins    []PluginsFunc
	factories  map[string]transport.Factory
	strategies map[string]routing.Strategy
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPlugins adds providers, e.g. network transports, to the catalog.
func WithPlugins(fn PluginsFunc) Option {
	return func(o *options) { o.plugins = append(o.plugins, fn) }
}

// WithFactory registers a sender factory under a transport type id. A
// registered factory takes precedence over catalog providers. The matching
// AddressFunc must still come from the catalog.
func WithFactory(typeID string, f transport.Factory) Option {
	return func(o *options) { o.factories[typeID] = f }
}

// WithStrategy registers a routing strategy under a routing type id.
func WithStrategy(typeID string, s routing.Strategy) Option {
	return func(o *options) { o.strategies[typeID] = s }
}

// App is one node's dispatch stack: transport, shard directory, routing
// strategy and dispatcher.
type App struct {
	cfg Config
	log *slog.Logger
	env *Env

	factories  *plugin.Registry[transport.Factory]
	addresses  *plugin.Registry[AddressFunc]
	strategies *plugin.Registry[routing.Strategy]

	addressOf  AddressFunc
	factory    transport.Factory
	dispatcher *dispatch.Dispatcher
	sched      *schedule.Scheduler

	inboxes map[string]<-chan transport.Envelope
}

func New(cfg Config, opts ...Option) (*App, error) {
	o := options{
		factories:  make(map[string]transport.Factory),
		strategies: make(map[string]routing.Strategy),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = NopMetrics()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.applyDefaults()

	a := &App{
		cfg:     cfg,
		log:     o.log.With(slog.String("node", cfg.Node.ID)),
		inboxes: make(map[string]<-chan transport.Envelope),
	}
	a.env = &Env{
		Config:   cfg,
		Log:      a.log,
		Metrics:  o.metrics,
		Queues:   transport.NewQueueHub(),
		Handlers: transport.NewPassthroughHub(),
	}

	// === plugins ===
	catalog := plugin.NewCatalog()
	for _, fn := range append([]PluginsFunc{builtinPlugins}, o.plugins...) {
		if err := fn(catalog, a.env); err != nil {
			return nil, fmt.Errorf("register plugins: %w", err)
		}
	}
	popts := plugin.Options{Log: a.log, Metrics: o.metrics}
	a.factories = plugin.NewRegistry[transport.Factory](catalog, popts)
	a.addresses = plugin.NewRegistry[AddressFunc](catalog, popts)
	a.strategies = plugin.NewRegistry[routing.Strategy](catalog, popts)
	for id, f := range o.factories {
		a.factories.Register(id, f)
	}
	for id, s := range o.strategies {
		a.strategies.Register(id, s)
	}

	// === transport ===
	var err error
	if a.addressOf, err = a.addresses.Get(cfg.Transport); err != nil {
		return nil, err
	}
	if a.factory, err = a.factories.Get(cfg.Transport); err != nil {
		return nil, err
	}
	if cfg.Transport == transport.TypeQueue {
		for _, id := range cfg.Node.Nodes {
			_, ch, err := a.env.Queues.Listen(id, cfg.Queue.Size)
			if err != nil {
				return nil, err
			}
			a.inboxes[id] = ch
		}
	}

	// === routing ===
	if a.env.Nodes, err = a.resolveNodes(cfg.Node.Nodes); err != nil {
		return nil, err
	}
	if a.env.Directory, err = routing.NewStaticDirectory(cfg.Node.NumShards, cfg.Node.ShardSeed, a.env.Nodes...); err != nil {
		return nil, err
	}
	strategy, err := a.strategies.Get(cfg.Routing)
	if err != nil {
		return nil, err
	}

	// === dispatcher ===
	a.sched = schedule.New("dispatch-retry-"+cfg.Node.ID,
		schedule.WithLogger(a.log),
		schedule.WithMetrics(o.metrics),
	)
	a.dispatcher, err = dispatch.New(dispatch.Options{
		Strategy:  strategy,
		Factory:   a.factory,
		Log:       a.log,
		Metrics:   o.metrics,
		Scheduler: a.sched,
		Retry:     cfg.Retry,
		Breaker:   cfg.Breaker,
	})
	if err != nil {
		return nil, err
	}

	a.log.Debug("app created",
		slog.String("transport", cfg.Transport),
		slog.String("routing", cfg.Routing),
		slog.Int("nodes", len(cfg.Node.Nodes)),
		slog.Int("shards", cfg.Node.NumShards),
	)
	return a, nil
}

func (a *App) resolveNodes(ids []string) ([]transport.NodeAddress, error) {
	nodes := make([]transport.NodeAddress, 0, len(ids))
	for _, id := range ids {
		addr, err := a.addressOf(id)
		if err != nil {
			return nil, fmt.Errorf("address of node %q: %w", id, err)
		}
		nodes = append(nodes, addr)
	}
	return nodes, nil
}

func (a *App) Config() Config { return a.cfg }

func (a *App) Dispatcher() *dispatch.Dispatcher { return a.dispatcher }

func (a *App) Directory() *routing.StaticDirectory { return a.env.Directory }

func (a *App) Scheduler() *schedule.Scheduler { return a.sched }

// Address returns the address of a node on the configured transport.
func (a *App) Address(nodeID string) (transport.NodeAddress, error) {
	return a.addressOf(nodeID)
}

// Dispatch is a shorthand for Dispatcher().Dispatch.
func (a *App) Dispatch(ctx context.Context, key any, msg any, opts ...transport.EnvelopeOption) error {
	return a.dispatcher.Dispatch(ctx, key, msg, opts...)
}

// Inbox returns the receive side of a node's queue. It only exists for the
// queue transport.
func (a *App) Inbox(nodeID string) (<-chan transport.Envelope, bool) {
	ch, ok := a.inboxes[nodeID]
	return ch, ok
}

// Handle installs the handler that receives a node's envelopes on the
// passthrough transport.
func (a *App) Handle(nodeID string, h transport.Handler) error {
	if a.cfg.Transport != transport.TypePassthrough {
		return fmt.Errorf("app: Handle needs the %s transport, configured is %s", transport.TypePassthrough, a.cfg.Transport)
	}
	a.env.Handlers.Handle(nodeID, h)
	return nil
}

// SetNodes replaces the cluster's node list and rebalances the shards.
func (a *App) SetNodes(ids ...string) error {
	nodes, err := a.resolveNodes(ids)
	if err != nil {
		return err
	}
	a.env.Directory.SetNodes(nodes...)
	a.log.Info("nodes changed", slog.Any("nodes", ids))
	return nil
}

// Close cancels pending retries and closes the senders.
func (a *App) Close() error {
	return a.dispatcher.Close()
}
