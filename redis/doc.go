// Package redis connects the service to Redis: a lifecycle-managed client,
// a pub/sub implementation of broker.Broker and a shared presence.Tracker.
//
// Every subscription holds a dedicated connection. A subscription whose
// connection fails, or stops answering pings, reports the error from
// Receive and does not reconnect; the stream session owning it ends and
// the client reconnects over HTTP.
//
//	client, _ := redis.New(cfg, log)
//	registry.Register(redis.NewComponent(client))
//	b := redis.NewBroker(client)
//	p := redis.NewPresence(client)
package redis
