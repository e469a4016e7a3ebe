package tcp

import (
	"github.com/codewandler/clstr-dispatch/core/app"
	"github.com/codewandler/clstr-dispatch/core/plugin"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

// Plugins makes the "tcp" transport available to an App. Node ids are the
// nodes' host:port addresses.
func Plugins(cfg FactoryConfig) app.PluginsFunc {
	return func(cat *plugin.Catalog, env *app.Env) error {
		return cat.Add(
			plugin.Provide(TypeTCP, "tcp.factory", func() (transport.Factory, error) {
				c := cfg
				if c.Log == nil {
					c.Log = env.Log
				}
				if c.Metrics == nil {
					c.Metrics = env.Metrics
				}
				return NewFactory(c)
			}),
			plugin.Provide(TypeTCP, "tcp.address", func() (app.AddressFunc, error) {
				return func(nodeID string) (transport.NodeAddress, error) {
					return Address{HostPort: nodeID}, nil
				}, nil
			}),
		)
	}
}
