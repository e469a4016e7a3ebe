package nats

import (
	"github.com/codewandler/clstr-dispatch/core/app"
	"github.com/codewandler/clstr-dispatch/core/plugin"
	"github.com/codewandler/clstr-dispatch/core/transport"
)

// Plugins makes the "nats" transport available to an App. Log and Metrics
// default to the App's.
func Plugins(cfg FactoryConfig) app.PluginsFunc {
	return func(cat *plugin.Catalog, env *app.Env) error {
		return cat.Add(
			plugin.Provide(TypeNATS, "nats.factory", func() (transport.Factory, error) {
				c := cfg
				if c.Log == nil {
					c.Log = env.Log
				}
				if c.Metrics == nil {
					c.Metrics = env.Metrics
				}
				return NewFactory(c)
			}),
			plugin.Provide(TypeNATS, "nats.address", func() (app.AddressFunc, error) {
				return func(nodeID string) (transport.NodeAddress, error) {
					return Address{Node: nodeID}, nil
				}, nil
			}),
		)
	}
}
