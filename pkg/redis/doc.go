// Package redis connects to a Redis server for the silently granted
// purchase log.
//
// Connect parses the connection URL, pings the server and retries according
// to Config. Healthcheck wraps a ping for readiness probes.
package redis
