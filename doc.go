// Package walkstream is the client-side streaming engine that ships live GPS
// fixes from a walker's device to the tracking backend over a persistent
// WebSocket channel. It is built to survive the realities of mobile
// networking: cellular handoffs, radio drops, and backgrounding, while
// keeping the wire traffic compact and confidential.
//
// # Architecture
//
// One Session owns one logical streaming channel, scoped to a single walk.
// All session state is driven by typed events on a single goroutine, so the
// state machine, the batcher, and the transport handle never race.
//
//	┌─────────────────────────────────────┐
//	│             Session                 │  Connect / Disconnect / Submit
//	│   (state machine + event loop)      │  OnMessage / OnError
//	└──────┬──────────┬──────────┬────────┘
//	       │          │          │
//	  ┌────▼───┐ ┌────▼────┐ ┌───▼──────┐
//	  │batcher │ │keepalive│ │ router   │    size/timer flush,
//	  │(ring)  │ │ (ticker)│ │(inbound) │    liveness, dispatch
//	  └────┬───┘ └─────────┘ └───▲──────┘
//	       │                     │
//	  ┌────▼─────────────────────┴──────┐
//	  │        securepipe               │    gzip + ChaCha20-Poly1305
//	  │  compress→encrypt / invert      │
//	  └────┬─────────────────────▲──────┘
//	       │                     │
//	  ┌────▼─────────────────────┴──────┐
//	  │        transport                │    gorilla/websocket,
//	  │  (one frame = one ws message)   │    fresh dial per attempt
//	  └─────────────────────────────────┘
//
// # Packages
//
// Core:
//   - session: connection state machine, reconnect controller, batching,
//     keepalive, inbound routing
//   - track: location samples, validation, batch serialization
//   - securepipe: the compress+encrypt wire codec
//   - transport: WebSocket client transport and credential handling
//   - reachability: network reachability signal gating connection attempts
//
// Infrastructure:
//   - errors: classified error handling (transient / invalid / fatal)
//   - metric: Prometheus metrics registry
//   - pkg/buffer: generic ring buffer with overflow policies
//   - pkg/retry: reconnect delay strategies (constant, exponential)
//
// # Delivery Semantics
//
// Outbound batches are at-most-once: a batch handed to the transport is
// never re-queued on failure. Samples accumulated while the transport is
// down are retained up to a bounded capacity with oldest-first eviction.
// Within one session, batches go out in the order they were flushed.
//
// # Usage
//
//	dialer := transport.NewWebsocketDialer(
//	    transport.StaticCredentials{Endpoint: "wss://api.example.com/ws/location", Token: token},
//	    transport.ClientTLSConfig{}, logger)
//
//	cipher, _ := securepipe.NewChaChaCipher(key)
//	sess, _ := session.New(walkID, dialer,
//	    session.WithPipeline(securepipe.New(cipher, securepipe.NewGzipCompressor())),
//	    session.WithLogger(logger))
//
//	sess.Connect()
//	sample, _ := track.NewSample(walkID, lat, lon, accuracy, speed)
//	_ = sess.Submit(sample)
//	...
//	sess.Disconnect()
//
// Terminated is absorbing: after explicit disconnect or reconnect
// exhaustion, a new Session must be created to resume streaming.
package walkstream
