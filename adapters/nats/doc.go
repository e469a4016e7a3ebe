// Package nats provides the NATS transport and a JetStream backed shard
// directory.
//
// Every node listens on its own subject, <prefix>.node.<id>. Senders publish
// JSON encoded envelopes to it, optionally waiting for the receiver's ack:
//
//	f, _ := nats.NewFactory(nats.FactoryConfig{Connect: nats.ConnectDefault(), Ack: true})
//	s, _ := f.Sender(ctx, nats.Address{Node: "node-2"})
//	err := s.Send(ctx, env)
//
//	l, _ := nats.Listen(ctx, nats.ListenConfig{Node: "node-2"}, handle)
//	defer l.Close()
package nats
