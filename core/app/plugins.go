package app

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/codewandler/clstr-dispatch/core/plugin"
	"github.com/codewandler/clstr-dispatch/core/routing"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

// AddressFunc maps a node id to that node's address on one transport. Every
// transport plugin provides one next to its transport.Factory.
type AddressFunc func(nodeID string) (transport.NodeAddress, error)

// Env is handed to plugin constructors. Nodes and Directory are filled in
// after the transport is resolved and before the routing strategy is.
type Env struct {
	Config   Config
	Log      *slog.Logger
	Metrics  Metrics
	Queues   *transport.QueueHub
	Handlers *transport.PassthroughHub

	Nodes     []transport.NodeAddress
	Directory *routing.StaticDirectory
}

// PluginsFunc adds providers to the catalog an App resolves from.
type PluginsFunc func(cat *plugin.Catalog, env *Env) error

var (
	factoryType = reflect.TypeFor[transport.Factory]()
	addressType = reflect.TypeFor[AddressFunc]()
)

func builtinPlugins(cat *plugin.Catalog, env *Env) error {
	queue := plugin.LocatorFunc(func(capability reflect.Type) (any, bool) {
		switch capability {
		case factoryType:
			f, err := transport.NewQueueFactory(transport.QueueOptions{
				Hub:      env.Queues,
				Blocking: env.Config.Queue.Blocking,
				Log:      env.Log,
				Metrics:  env.Metrics,
			})
			if err != nil {
				env.Log.Error("failed to create queue factory", slog.Any("error", err))
				return nil, false
			}
			return transport.Factory(f), true
		case addressType:
			return AddressFunc(func(nodeID string) (transport.NodeAddress, error) {
				return transport.QueueAddress{Name: nodeID}, nil
			}), true
		}
		return nil, false
	})
	if err := cat.AddLocator(transport.TypeQueue, "builtin.queue", queue); err != nil {
		return err
	}

	return cat.Add(
		plugin.Provide(transport.TypePassthrough, "builtin.passthrough", func() (transport.Factory, error) {
			return transport.NewPassthroughFactory(env.Handlers, env.Log, env.Metrics)
		}),
		plugin.Provide(transport.TypePassthrough, "builtin.passthrough.address", func() (AddressFunc, error) {
			return func(nodeID string) (transport.NodeAddress, error) {
				return transport.PassthroughAddress{Name: nodeID}, nil
			}, nil
		}),

		plugin.Provide(routing.TypeSimple, "builtin.simple", func() (routing.Strategy, error) {
			if len(env.Nodes) == 0 {
				return nil, fmt.Errorf("no nodes configured")
			}
			return routing.NewStatic(env.Nodes[0]), nil
		}),
		plugin.Provide(routing.TypeManaged, "builtin.managed", func() (routing.Strategy, error) {
			return routing.NewSharded(env.Directory, routing.WithSeed(env.Config.Node.ShardSeed)), nil
		}),
		plugin.Provide(routing.TypeGroup, "builtin.group", func() (routing.Strategy, error) {
			return routing.NewRendezvous(env.Directory, env.Config.Node.ShardSeed), nil
		}),
	)
}
