// Package throttle keeps one task queue per throttling key.
//
// A Registry creates a key's queue on first use, optionally paces the
// key's operations through a token-bucket limiter, and discards the queue
// once it has been idle and unused for the configured TTL. The queues
// themselves know nothing about keys or expiry.
package throttle
