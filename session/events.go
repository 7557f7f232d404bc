package session

import (
	"github.com/pawtrack/walkstream/track"
	"github.com/pawtrack/walkstream/transport"
)

// All session state lives on a single event loop. Callers, timers, and
// transport goroutines post typed events; the loop is the only goroutine that
// touches the state machine, the batcher, or the transport handle.
type event interface {
	isEvent()
}

// connectRequest is posted by Connect.
type connectRequest struct{}

// disconnectRequest is posted by Disconnect.
type disconnectRequest struct{}

// submitRequest carries one validated sample into the batcher.
type submitRequest struct {
	sample track.Sample
}

// transportOpened reports a successful dial. gen ties the event to the dial
// attempt that produced it; stale generations are discarded.
type transportOpened struct {
	gen uint64
	t   transport.Transport
}

// transportClosed reports a dial failure or the death of a live transport.
// Multiple failure signals from the same transport instance carry the same
// generation, so the loop handles the failure exactly once.
type transportClosed struct {
	gen uint64
	err error
}

// frameReceived carries one inbound frame off the transport read pump.
type frameReceived struct {
	gen  uint64
	data []byte
}

// flushTick fires on the batcher's flush interval.
type flushTick struct{}

// keepaliveTick fires on the keepalive interval.
type keepaliveTick struct{}

// reconnectDue fires when the reconnect delay has elapsed.
type reconnectDue struct{}

func (connectRequest) isEvent()    {}
func (disconnectRequest) isEvent() {}
func (submitRequest) isEvent()     {}
func (transportOpened) isEvent()   {}
func (transportClosed) isEvent()   {}
func (frameReceived) isEvent()     {}
func (flushTick) isEvent()         {}
func (keepaliveTick) isEvent()     {}
func (reconnectDue) isEvent()      {}
