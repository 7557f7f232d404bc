// Package session implements the client-side streaming engine for live walk
// tracking: the connection state machine, the reconnect controller, the
// outbound batcher with offline retention, the keepalive probe, and the
// inbound message router.
//
// A Session is created per walk and driven entirely by typed events on a
// single goroutine, so transitions, timers, and transport callbacks never
// race. Callers interact through Connect, Disconnect, Submit, and the
// OnMessage/OnError observers; none of these block on the network.
//
// Delivery semantics are at-most-once per batch: a batch handed to the
// transport is never re-queued on failure. Samples buffered while the
// transport is down are retained up to the configured capacity with
// oldest-first eviction.
package session
