// Package app assembles a Dispatcher from configuration.
//
// The configuration names a transport and a routing strategy by type id. App
// resolves both through plugin registries backed by a catalog of built-in
// providers, plus whatever providers the caller adds:
//
//	cfg, err := app.LoadConfig("dispatch.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	a, err := app.New(cfg,
//	    app.WithPlugins(natsadapter.Plugins(conn)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	err = a.Dispatcher().Dispatch(ctx, "user:123", CreateUser{ID: "123"})
//
// # Built-in type ids
//
// Transports: "queue" (in-process channels, one per configured node) and
// "passthrough" (synchronous in-process handlers). Routing: "simple" (all
// keys to the first node), "managed" (key to shard, shard to node through a
// rendezvous-hashed shard directory) and "group" (key directly to a node by
// rendezvous hashing).
//
// # Multi-Node Clusters
//
// Every node must use the same node list, shard count and shard seed, so all
// of them agree on which node owns a shard:
//
//	node:
//	  id: node-1
//	  nodes: [node-1, node-2, node-3]
//	  num_shards: 256
//	  shard_seed: production
package app
