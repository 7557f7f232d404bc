package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pawtrack/walkstream/errors"
)

// Wire-level timing, matching the tracking backend's expectations.
const (
	// writeWait is the write deadline applied to every outbound message.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for any inbound traffic (including pongs)
	// before declaring the connection dead.
	pongWait = 60 * time.Second

	// handshakeTimeout bounds the WebSocket upgrade.
	handshakeTimeout = 5 * time.Second

	// maxMessageSize limits inbound messages to prevent memory abuse.
	maxMessageSize int64 = 4096

	// frameBufferSize is the inbound frame channel capacity.
	frameBufferSize = 64
)

// WebsocketDialer opens WebSocket transports using credentials from a
// CredentialProvider. The session ID rides on the query string and the token
// as a bearer header, matching the tracking backend's handshake.
type WebsocketDialer struct {
	Provider CredentialProvider
	TLS      ClientTLSConfig
	Logger   *slog.Logger
}

// NewWebsocketDialer creates a dialer. A nil logger falls back to slog.Default().
func NewWebsocketDialer(provider CredentialProvider, tlsCfg ClientTLSConfig, logger *slog.Logger) *WebsocketDialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketDialer{Provider: provider, TLS: tlsCfg, Logger: logger}
}

// Dial resolves credentials and opens a fresh WebSocket connection.
func (d *WebsocketDialer) Dial(ctx context.Context, sessionID string) (Transport, error) {
	if d.Provider == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "WebsocketDialer", "Dial", "credential provider")
	}

	creds, err := d.Provider.Credentials(ctx, sessionID)
	if err != nil {
		return nil, errors.WrapTransient(err, "WebsocketDialer", "Dial", "resolve credentials")
	}

	endpoint, err := url.Parse(creds.Endpoint)
	if err != nil {
		return nil, errors.WrapInvalid(err, "WebsocketDialer", "Dial", "parse endpoint")
	}
	query := endpoint.Query()
	query.Set("sessionID", sessionID)
	endpoint.RawQuery = query.Encode()

	header := http.Header{}
	if creds.Token != "" {
		header.Set("Authorization", "Bearer "+creds.Token)
	}

	tlsConfig, err := d.TLS.tlsConfig()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		TLSClientConfig:  tlsConfig,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, errors.WrapTransient(err, "WebsocketDialer", "Dial", "open websocket")
	}

	t := newWSTransport(conn, d.Logger.With("session", sessionID))
	go t.readPump()
	return t, nil
}

// wsTransport wraps one gorilla/websocket connection.
type wsTransport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	frames chan []byte
	done   chan struct{}

	// writeMu serializes writes; gorilla/websocket panics on concurrent writes.
	writeMu sync.Mutex

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func newWSTransport(conn *websocket.Conn, logger *slog.Logger) *wsTransport {
	return &wsTransport{
		conn:   conn,
		logger: logger,
		frames: make(chan []byte, frameBufferSize),
		done:   make(chan struct{}),
	}
}

// Send transmits one frame as one binary WebSocket message.
func (t *wsTransport) Send(data []byte) error {
	select {
	case <-t.done:
		return errors.WrapTransient(errors.ErrConnectionLost, "wsTransport", "Send", "transport closed")
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.WrapTransient(err, "wsTransport", "Send", "write frame")
	}
	return nil
}

// Ping emits a WebSocket ping control message. Fire-and-forget: pong handling
// only refreshes the read deadline in the read pump.
func (t *wsTransport) Ping() error {
	if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		return errors.WrapTransient(err, "wsTransport", "Ping", "write ping")
	}
	return nil
}

// Frames returns the inbound frame channel.
func (t *wsTransport) Frames() <-chan []byte { return t.frames }

// Done is closed when the transport terminates.
func (t *wsTransport) Done() <-chan struct{} { return t.done }

// Err returns the terminal error once Done is closed.
func (t *wsTransport) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

// Close tears down the connection. Idempotent; a clean local close leaves
// Err() nil.
func (t *wsTransport) Close() error {
	t.terminate(nil)
	return nil
}

func (t *wsTransport) terminate(err error) {
	t.closeOnce.Do(func() {
		t.errMu.Lock()
		t.err = err
		t.errMu.Unlock()

		// Best-effort close handshake before dropping the connection
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()

		_ = t.conn.Close()
		close(t.done)
	})
}

// readPump reads inbound messages until the connection dies. Any inbound
// traffic (including pongs) refreshes the read deadline; silence beyond
// pongWait terminates the transport.
func (t *wsTransport) readPump() {
	defer close(t.frames)

	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetReadLimit(maxMessageSize)
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
				// Local close; keep Err() nil
			default:
				t.logger.Debug("transport read failed", "error", err)
				t.terminate(errors.WrapTransient(err, "wsTransport", "readPump", "read frame"))
			}
			return
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))

		if len(data) == 0 {
			continue
		}

		select {
		case t.frames <- data:
		case <-t.done:
			return
		default:
			// Inbound consumer stalled; drop the frame rather than block reads
			t.logger.Warn("inbound frame dropped, consumer stalled")
		}
	}
}
