// Package plugin resolves capability implementations by type id.
//
// A Registry[T] holds the instances of one capability T, for example
// transport factories or routing strategies, keyed by a symbolic type id taken
// from configuration. Instances are either registered explicitly or
// materialized on first use from a Catalog: a table of providers, filled at
// program start, each offering constructors under a namespace.
//
//	cat := plugin.NewCatalog()
//	cat.Add(plugin.Provider{Namespace: "queue", Name: "queue.blocking", New: newBlockingQueue})
//
//	factories := plugin.NewRegistry[transport.Factory](cat)
//	f, err := factories.Get("queue")
//
// Discovery runs under a lock shared by all registries of the process and the
// result is cached, so one type id yields exactly one instance.
package plugin
