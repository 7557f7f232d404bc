package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pawtrack/walkstream/errors"
	"github.com/pawtrack/walkstream/pkg/buffer"
	"github.com/pawtrack/walkstream/pkg/retry"
	"github.com/pawtrack/walkstream/reachability"
	"github.com/pawtrack/walkstream/securepipe"
	"github.com/pawtrack/walkstream/track"
	"github.com/pawtrack/walkstream/transport"
)

// eventQueueSize buffers posted events so callers rarely block on the loop.
const eventQueueSize = 128

// Session is one logical streaming channel scoped to a single walk. It owns
// the connection lifecycle, the reconnect controller, the outbound batcher,
// the keepalive probe, and the inbound router.
//
// All state is owned by a single event loop goroutine. Public methods post
// typed events onto that loop and never block on the network. Observer
// callbacks registered via OnMessage and OnError are invoked from the loop
// goroutine and must not call back into the session synchronously.
type Session struct {
	id       string
	cfg      Config
	dialer   transport.Dialer
	reach    reachability.Monitor
	pipeline *securepipe.Pipeline
	strategy retry.Strategy
	logger   *slog.Logger
	metrics  *sessionMetrics

	events chan event
	done   chan struct{}

	state atomic.Int32

	cbMu      sync.Mutex
	onMessage func(Message)
	onError   func(error)

	// Loop-owned fields. Never touched outside the run goroutine.
	transport       transport.Transport
	generation      uint64
	attempts        int
	lastConnectAt   time.Time
	batcher         *batcher
	router          *router
	flushTicker     *ticker
	keepaliveTicker *ticker
	reconnectTimer  *time.Timer
}

// New creates a streaming session for the given walk and starts its event
// loop. The session begins Idle; call Connect to start streaming.
func New(sessionID string, dialer transport.Dialer, opts ...Option) (*Session, error) {
	if sessionID == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Session", "New", "session ID")
	}
	if dialer == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Session", "New", "transport dialer")
	}

	o := &sessionOptions{
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		reach:  &reachability.Static{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.pipeline == nil {
		o.pipeline = securepipe.New(nil, nil)
	}
	if o.strategy == nil {
		o.strategy = retry.NewConstant(o.cfg.ReconnectDelay)
	}

	logger := o.logger.With("session", sessionID)

	metrics, err := newSessionMetrics(o.registry, sessionID)
	if err != nil {
		return nil, errors.WrapFatal(err, "Session", "New", "register metrics")
	}

	s := &Session{
		id:       sessionID,
		cfg:      o.cfg,
		dialer:   dialer,
		reach:    o.reach,
		pipeline: o.pipeline,
		strategy: o.strategy,
		logger:   logger,
		metrics:  metrics,
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
	}

	s.batcher, err = newBatcher(o.cfg, sessionID, o.registry, logger)
	if err != nil {
		return nil, err
	}
	s.router = newRouter(o.pipeline, logger, metrics)

	s.setState(StateIdle)
	s.reach.StartMonitoring()
	go s.run()

	return s, nil
}

// ID returns the walk session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// IsConnected reports whether the transport is live and sends are permitted.
func (s *Session) IsConnected() bool { return s.State() == StateConnected }

// Done is closed once the session reaches Terminated.
func (s *Session) Done() <-chan struct{} { return s.done }

// Connect begins or resumes streaming. It returns immediately; completion is
// observable via IsConnected. The request is a no-op when already connected
// or connecting, when the network is unreachable, when the reconnect
// cooldown has not elapsed, or after termination.
func (s *Session) Connect() {
	s.post(connectRequest{})
}

// Disconnect ends the session permanently: one best-effort flush, all timers
// cancelled, state Terminated. Irreversible; create a new session to resume.
func (s *Session) Disconnect() {
	s.post(disconnectRequest{})
}

// Submit queues one location observation. Samples failing range or freshness
// validation are rejected here and never enter the buffer. Accepted samples
// are buffered in arrival order; while the transport is down they are
// retained up to the configured capacity, oldest evicted first.
func (s *Session) Submit(sample track.Sample) error {
	if s.State() == StateTerminated {
		s.metrics.sampleRejected()
		return errors.WrapInvalid(errors.ErrTerminated, "Session", "Submit", "accept sample")
	}
	if err := sample.Validate(); err != nil {
		s.metrics.sampleRejected()
		return err
	}
	if !s.post(submitRequest{sample: sample}) {
		s.metrics.sampleRejected()
		return errors.WrapInvalid(errors.ErrTerminated, "Session", "Submit", "accept sample")
	}
	return nil
}

// OnMessage registers the observer for decoded inbound messages.
func (s *Session) OnMessage(fn func(Message)) {
	s.cbMu.Lock()
	s.onMessage = fn
	s.cbMu.Unlock()
}

// OnError registers the observer for batch-level and fatal failures.
func (s *Session) OnError(fn func(error)) {
	s.cbMu.Lock()
	s.onError = fn
	s.cbMu.Unlock()
}

// BufferedSamples returns the number of samples awaiting transmission.
func (s *Session) BufferedSamples() int {
	return s.batcher.pending()
}

// BufferStats exposes the retention buffer's counters (writes, reads, drops
// from FIFO eviction) for observability.
func (s *Session) BufferStats() *buffer.Statistics {
	return s.batcher.stats()
}

// post delivers an event to the loop. Returns false if the session has
// already terminated.
func (s *Session) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// run is the session event loop. It exits only on termination.
func (s *Session) run() {
	for ev := range s.events {
		if s.handle(ev) {
			return
		}
	}
}

// handle processes one event. Returns true once the session terminated.
func (s *Session) handle(ev event) bool {
	switch e := ev.(type) {
	case connectRequest:
		s.handleConnect()
	case disconnectRequest:
		return s.handleDisconnect()
	case submitRequest:
		s.handleSubmit(e.sample)
	case transportOpened:
		s.handleOpened(e)
	case transportClosed:
		return s.handleClosed(e)
	case frameReceived:
		s.handleFrame(e)
	case flushTick:
		s.handleFlushTick()
	case keepaliveTick:
		s.handleKeepalive()
	case reconnectDue:
		s.handleReconnectDue()
	}
	return false
}

func (s *Session) handleConnect() {
	switch s.State() {
	case StateTerminated:
		s.logger.Warn("connect ignored, session terminated")
		return
	case StateConnected, StateConnecting:
		s.logger.Debug("connect ignored, already active", "state", s.State())
		return
	}

	if !s.reach.IsReachable() {
		s.logger.Debug("connect ignored, network unreachable")
		return
	}
	if s.attempts > 0 && time.Since(s.lastConnectAt) < s.cfg.ReconnectDelay {
		s.logger.Debug("connect ignored, cooldown active",
			"since_last", time.Since(s.lastConnectAt), "cooldown", s.cfg.ReconnectDelay)
		return
	}

	s.stopReconnectTimer()
	s.startDial()
}

func (s *Session) handleDisconnect() bool {
	if s.State() == StateTerminated {
		return true
	}
	// Best-effort final flush; discarded if the transport is already gone
	if s.transport != nil && s.State() == StateConnected {
		s.drain()
	}
	s.terminate(nil)
	return true
}

func (s *Session) handleSubmit(sample track.Sample) {
	s.batcher.add(sample)
	s.metrics.sampleAccepted()

	if s.State() == StateConnected && s.batcher.full() {
		s.sendBatch(s.batcher.next())
	}
}

func (s *Session) startDial() {
	s.generation++
	gen := s.generation
	s.lastConnectAt = time.Now()
	s.setState(StateConnecting)
	s.logger.Info("dialing", "attempt", s.attempts)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
		defer cancel()

		t, err := s.dialer.Dial(ctx, s.id)
		if err != nil {
			s.post(transportClosed{gen: gen, err: err})
			return
		}
		if !s.post(transportOpened{gen: gen, t: t}) {
			_ = t.Close()
		}
	}()
}

func (s *Session) handleOpened(ev transportOpened) {
	if ev.gen != s.generation || s.State() != StateConnecting {
		// The session moved on while this dial was in flight
		_ = ev.t.Close()
		return
	}

	s.transport = ev.t
	s.attempts = 0
	s.setState(StateConnected)
	s.flushTicker = s.startTicker(s.cfg.FlushInterval, flushTick{})
	s.keepaliveTicker = s.startTicker(s.cfg.KeepaliveInterval, keepaliveTick{})
	go s.pump(ev.t, ev.gen)

	s.logger.Info("connected", "buffered", s.batcher.pending())

	// Ship any complete batches retained while offline; partials wait for
	// the flush timer.
	for s.transport != nil && s.batcher.full() {
		if !s.sendBatch(s.batcher.next()) {
			break
		}
	}
}

func (s *Session) handleClosed(ev transportClosed) bool {
	if ev.gen != s.generation {
		// Stale or duplicate failure signal from a replaced transport
		return false
	}
	st := s.State()
	if st != StateConnecting && st != StateConnected {
		return false
	}

	s.teardownTransport()
	s.setState(StateDisconnected)
	s.logger.Warn("transport lost", "error", ev.err)

	if s.attempts < s.cfg.MaxReconnectAttempts {
		s.attempts++
		s.metrics.reconnectAttempt()
		delay := s.strategy.Delay(s.attempts)
		s.setState(StateReconnecting)
		s.logger.Info("reconnect scheduled",
			"attempt", s.attempts, "max", s.cfg.MaxReconnectAttempts,
			"delay", delay, "strategy", s.strategy.Name())
		s.reconnectTimer = time.AfterFunc(delay, func() {
			s.post(reconnectDue{})
		})
		return false
	}

	err := errors.WrapFatal(errors.ErrRetryExhausted, "Session", "reconnect",
		fmt.Sprintf("%d consecutive attempts", s.attempts))
	s.terminate(err)
	return true
}

func (s *Session) handleReconnectDue() {
	if s.State() != StateReconnecting {
		// Timer raced with disconnect or a manual connect
		return
	}
	s.reconnectTimer = nil

	if !s.reach.IsReachable() {
		// Hold the attempt until the network returns; re-arm without
		// consuming an attempt
		delay := s.strategy.Delay(s.attempts)
		s.logger.Debug("reconnect deferred, network unreachable", "delay", delay)
		s.reconnectTimer = time.AfterFunc(delay, func() {
			s.post(reconnectDue{})
		})
		return
	}

	s.startDial()
}

func (s *Session) handleFrame(ev frameReceived) {
	if ev.gen != s.generation || s.State() != StateConnected {
		return
	}
	msg, ok := s.router.route(ev.data)
	if !ok {
		return
	}
	s.fireMessage(msg)
}

func (s *Session) handleFlushTick() {
	if s.State() != StateConnected || s.batcher.pending() == 0 {
		return
	}
	s.drain()
}

func (s *Session) handleKeepalive() {
	if s.State() != StateConnected || s.transport == nil {
		return
	}
	if err := s.transport.Ping(); err != nil {
		// Transport death arrives separately via the read pump
		s.logger.Debug("keepalive ping failed", "error", err)
	}
}

// drain ships all buffered samples batch by batch, stopping on the first
// failure. Failed batches are not re-queued (at-most-once per batch).
func (s *Session) drain() {
	for s.transport != nil && s.batcher.pending() > 0 {
		if !s.sendBatch(s.batcher.next()) {
			return
		}
	}
}

// sendBatch serializes, encodes, and transmits one batch. The batch is
// consumed regardless of outcome: encode and send failures drop it and are
// reported, never retried.
func (s *Session) sendBatch(samples []track.Sample) bool {
	if len(samples) == 0 {
		return true
	}

	payload, err := track.MarshalBatch(samples)
	if err != nil {
		s.metrics.batchDropped()
		s.logger.Error("batch serialization failed", "samples", len(samples), "error", err)
		s.fireError(err)
		return false
	}

	frame, err := s.pipeline.Encode(payload)
	if err != nil {
		s.metrics.batchDropped()
		s.logger.Error("batch encode failed", "samples", len(samples), "error", err)
		s.fireError(err)
		return false
	}

	if err := s.transport.Send(frame); err != nil {
		s.metrics.batchDropped()
		s.logger.Warn("batch send failed, samples lost", "samples", len(samples), "error", err)
		return false
	}

	s.metrics.batchSent()
	s.logger.Debug("batch sent", "samples", len(samples), "frame_bytes", len(frame))
	return true
}

// pump forwards transport frames and the terminal failure signal onto the
// loop, tagged with the transport's generation.
func (s *Session) pump(t transport.Transport, gen uint64) {
	for {
		select {
		case data, ok := <-t.Frames():
			if !ok {
				<-t.Done()
				s.post(transportClosed{gen: gen, err: t.Err()})
				return
			}
			if !s.post(frameReceived{gen: gen, data: data}) {
				return
			}
		case <-t.Done():
			s.post(transportClosed{gen: gen, err: t.Err()})
			return
		}
	}
}

// terminate moves the session to the absorbing Terminated state, cancels all
// timers, and surfaces a fatal error (if any) exactly once.
func (s *Session) terminate(fatal error) {
	s.stopReconnectTimer()
	s.teardownTransport()
	s.setState(StateTerminated)
	s.batcher.close()
	s.metrics.unregister()
	s.reach.StopMonitoring()

	if fatal != nil {
		s.logger.Error("session terminated", "error", fatal)
		s.fireError(fatal)
	} else {
		s.logger.Info("session terminated")
	}
	close(s.done)
}

func (s *Session) teardownTransport() {
	s.flushTicker.stop()
	s.flushTicker = nil
	s.keepaliveTicker.stop()
	s.keepaliveTicker = nil
	if s.transport != nil {
		_ = s.transport.Close()
		s.transport = nil
	}
}

func (s *Session) stopReconnectTimer() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	s.metrics.setState(next)
	if prev != next {
		s.logger.Debug("state transition", "from", prev, "to", next)
	}
}

func (s *Session) fireMessage(msg Message) {
	s.cbMu.Lock()
	fn := s.onMessage
	s.cbMu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (s *Session) fireError(err error) {
	s.cbMu.Lock()
	fn := s.onError
	s.cbMu.Unlock()
	if fn != nil {
		fn(err)
	}
}
