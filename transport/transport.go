// Package transport provides the message-oriented transport used by streaming
// sessions. The production implementation is a WebSocket client; sessions only
// see the Transport interface, so tests substitute an in-memory fake.
package transport

import (
	"context"
)

// Transport is one live, exclusively-owned connection. A session never reuses
// a transport across reconnects: each attempt dials a fresh instance.
type Transport interface {
	// Send transmits one frame as one transport message.
	Send(data []byte) error

	// Ping emits a fire-and-forget liveness probe.
	Ping() error

	// Frames returns inbound frames. The channel is closed when the
	// transport dies or is closed.
	Frames() <-chan []byte

	// Done is closed after the transport terminates; Err then reports why.
	Done() <-chan struct{}

	// Err returns the terminal error, nil for a clean local Close.
	// Valid only after Done is closed.
	Err() error

	// Close tears the connection down. Idempotent.
	Close() error
}

// Credentials carry the target address and auth token for the handshake.
type Credentials struct {
	// Endpoint is the ws:// or wss:// URL of the streaming endpoint.
	Endpoint string
	// Token is attached as a bearer token on the initial handshake.
	Token string
}

// CredentialProvider supplies handshake credentials per session.
type CredentialProvider interface {
	Credentials(ctx context.Context, sessionID string) (Credentials, error)
}

// StaticCredentials is a CredentialProvider returning fixed values.
type StaticCredentials struct {
	Endpoint string
	Token    string
}

// Credentials returns the fixed endpoint and token.
func (s StaticCredentials) Credentials(_ context.Context, _ string) (Credentials, error) {
	return Credentials{Endpoint: s.Endpoint, Token: s.Token}, nil
}

// Dialer opens a new Transport for a session.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Transport, error)
}
