// Package nats connects to a NATS server for purchase event and analytics
// publishing.
//
// Connect retries the initial dial like the redis and pg helpers, and
// configures automatic reconnects with disconnect/reconnect logging.
// Publisher is the narrow interface the event forwarder and the analytics
// sink depend on; *nats.Conn satisfies it.
package nats
