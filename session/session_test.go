package session

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawtrack/walkstream/errors"
	"github.com/pawtrack/walkstream/metric"
	"github.com/pawtrack/walkstream/securepipe"
	"github.com/pawtrack/walkstream/track"
	"github.com/pawtrack/walkstream/transport"
)

// fakeTransport is an in-memory Transport recording sent frames and allowing
// tests to inject inbound frames and failures.
type fakeTransport struct {
	mu    sync.Mutex
	sent  [][]byte
	pings int

	frames chan []byte
	done   chan struct{}
	err    error

	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (f *fakeTransport) Send(data []byte) error {
	select {
	case <-f.done:
		return errors.ErrConnectionLost
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeTransport) Frames() <-chan []byte { return f.frames }
func (f *fakeTransport) Done() <-chan struct{} { return f.done }

func (f *fakeTransport) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() {
		close(f.done)
		close(f.frames)
	})
	return nil
}

// fail simulates a transport-level failure.
func (f *fakeTransport) fail(err error) {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
		close(f.frames)
	})
}

func (f *fakeTransport) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

// fakeDialer hands out fakeTransports, optionally failing every dial.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	dials      int
	alwaysFail bool
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (transport.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.alwaysFail {
		return nil, errors.ErrConnectionTimeout
	}
	t := newFakeTransport()
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) transportAt(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.transports) {
		return nil
	}
	return d.transports[i]
}

func fastConfig() Config {
	return Config{
		BatchSize:            10,
		FlushInterval:        50 * time.Millisecond,
		ReconnectDelay:       20 * time.Millisecond,
		MaxReconnectAttempts: 5,
		KeepaliveInterval:    time.Hour,
		RetentionCapacity:    120,
		DialTimeout:          time.Second,
	}
}

func validSample(t *testing.T, sessionID string) track.Sample {
	t.Helper()
	s, err := track.NewSample(sessionID, 52.0, 13.4, 0, 1.5)
	require.NoError(t, err)
	return s
}

func newTestSession(t *testing.T, d *fakeDialer, cfg Config) *Session {
	t.Helper()
	s, err := New("walk-1", d, WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Disconnect()
		select {
		case <-s.Done():
		case <-time.After(time.Second):
		}
	})
	return s
}

func waitConnected(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, s.IsConnected, time.Second, 5*time.Millisecond)
}

func TestConnectTransitionsToConnected(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, d, fastConfig())

	assert.Equal(t, StateIdle, s.State())
	assert.False(t, s.IsConnected())

	s.Connect()
	waitConnected(t, s)
	assert.Equal(t, 1, d.dialCount())
}

func TestSubmitRejectsOutOfRangeSample(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, d, fastConfig())

	bad := track.Sample{
		ID:         "bad",
		SessionID:  "walk-1",
		Latitude:   95.0, // out of range
		Longitude:  13.4,
		Accuracy:   10,
		CapturedAt: time.Now().UTC(),
	}
	err := s.Submit(bad)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Equal(t, 0, s.BufferedSamples())
}

func TestSizeTriggeredFlushThenTimerFlush(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, d, fastConfig())

	s.Connect()
	waitConnected(t, s)

	// 12 samples: the first 10 flush on the size threshold, the trailing 2
	// on the flush timer.
	for i := 0; i < 12; i++ {
		require.NoError(t, s.Submit(validSample(t, "walk-1")))
	}

	tr := d.transportAt(0)
	require.NotNil(t, tr)
	require.Eventually(t, func() bool {
		return len(tr.sentFrames()) == 2
	}, time.Second, 5*time.Millisecond)

	frames := tr.sentFrames()
	first, err := track.UnmarshalBatch(frames[0])
	require.NoError(t, err)
	second, err := track.UnmarshalBatch(frames[1])
	require.NoError(t, err)
	assert.Len(t, first, 10)
	assert.Len(t, second, 2)
}

func TestTimerFlushesPartialBatch(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, d, fastConfig())

	s.Connect()
	waitConnected(t, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Submit(validSample(t, "walk-1")))
	}

	tr := d.transportAt(0)
	require.NotNil(t, tr)
	require.Eventually(t, func() bool {
		return len(tr.sentFrames()) == 1
	}, time.Second, 5*time.Millisecond)

	batch, err := track.UnmarshalBatch(tr.sentFrames()[0])
	require.NoError(t, err)
	assert.Len(t, batch, 3)
}

func TestTransportLossTriggersReconnect(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, d, fastConfig())

	s.Connect()
	waitConnected(t, s)

	d.transportAt(0).fail(errors.ErrConnectionLost)

	require.Eventually(t, func() bool {
		return d.dialCount() == 2 && s.IsConnected()
	}, time.Second, 5*time.Millisecond)
}

func TestRetryExhaustionTerminates(t *testing.T) {
	d := &fakeDialer{alwaysFail: true}
	cfg := fastConfig()
	cfg.MaxReconnectAttempts = 3

	s := newTestSession(t, d, cfg)

	var mu sync.Mutex
	var fatals []error
	s.OnError(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if errors.IsFatal(err) {
			fatals = append(fatals, err)
		}
	})

	s.Connect()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate after retry exhaustion")
	}

	assert.Equal(t, StateTerminated, s.State())
	// Initial dial plus three retries
	assert.Equal(t, 4, d.dialCount())

	mu.Lock()
	require.Len(t, fatals, 1)
	assert.True(t, stderrors.Is(fatals[0], errors.ErrRetryExhausted))
	mu.Unlock()

	// Terminated is absorbing: no further dial fires
	s.Connect()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 4, d.dialCount())
}

func TestConnectIsNoOpWithinCooldown(t *testing.T) {
	d := &fakeDialer{alwaysFail: true}
	cfg := fastConfig()
	cfg.ReconnectDelay = 500 * time.Millisecond

	s := newTestSession(t, d, cfg)
	s.Connect()

	require.Eventually(t, func() bool {
		return s.State() == StateReconnecting
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, d.dialCount())

	// Second connect inside the cooldown window changes nothing
	s.Connect()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateReconnecting, s.State())
	assert.Equal(t, 1, d.dialCount())
}

func TestDisconnectForcesFinalFlush(t *testing.T) {
	d := &fakeDialer{}
	cfg := fastConfig()
	cfg.FlushInterval = time.Hour // timer must not interfere

	s := newTestSession(t, d, cfg)
	s.Connect()
	waitConnected(t, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Submit(validSample(t, "walk-1")))
	}
	require.Eventually(t, func() bool {
		return s.BufferedSamples() == 3
	}, time.Second, 5*time.Millisecond)

	s.Disconnect()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not terminate")
	}

	assert.Equal(t, StateTerminated, s.State())

	tr := d.transportAt(0)
	require.NotNil(t, tr)
	frames := tr.sentFrames()
	require.Len(t, frames, 1)
	batch, err := track.UnmarshalBatch(frames[0])
	require.NoError(t, err)
	assert.Len(t, batch, 3)

	// Transport is torn down with the session
	select {
	case <-tr.Done():
	default:
		t.Fatal("transport not closed on disconnect")
	}

	err = s.Submit(validSample(t, "walk-1"))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTerminated))
}

func TestKeepalivePingsWhileConnected(t *testing.T) {
	d := &fakeDialer{}
	cfg := fastConfig()
	cfg.KeepaliveInterval = 20 * time.Millisecond

	s := newTestSession(t, d, cfg)
	s.Connect()
	waitConnected(t, s)

	tr := d.transportAt(0)
	require.NotNil(t, tr)
	require.Eventually(t, func() bool {
		return tr.pingCount() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestInboundMessageDispatch(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSession(t, d, fastConfig())

	var mu sync.Mutex
	var got []Message
	s.OnMessage(func(m Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})

	s.Connect()
	waitConnected(t, s)

	tr := d.transportAt(0)
	require.NotNil(t, tr)

	tr.frames <- []byte(`{"type":"ack","payload":{"batch":1}}`)
	tr.frames <- []byte(`not json at all`)
	tr.frames <- []byte(`{"payload":"missing type"}`)
	tr.frames <- []byte(`{"type":"somethingElse"}`)
	tr.frames <- []byte(`{"type":"sessionStatus"}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, MessageTypeAck, got[0].Type)
	assert.Equal(t, MessageTypeSessionStatus, got[1].Type)
	mu.Unlock()

	// Garbage frames never disturb the session
	assert.True(t, s.IsConnected())
}

func TestOfflineRetentionEvictsOldest(t *testing.T) {
	d := &fakeDialer{}
	cfg := fastConfig()
	cfg.RetentionCapacity = 12

	s := newTestSession(t, d, cfg)

	// Never connected: samples accumulate up to retention capacity
	for i := 0; i < 15; i++ {
		require.NoError(t, s.Submit(validSample(t, "walk-1")))
	}

	require.Eventually(t, func() bool {
		return s.BufferedSamples() == 12
	}, time.Second, 5*time.Millisecond)

	stats := s.BufferStats()
	assert.Equal(t, int64(15), stats.Writes())
	assert.Equal(t, int64(3), stats.Drops())
}

func TestDisconnectStopsKeepalive(t *testing.T) {
	d := &fakeDialer{}
	cfg := fastConfig()
	cfg.KeepaliveInterval = 10 * time.Millisecond

	s := newTestSession(t, d, cfg)
	s.Connect()
	waitConnected(t, s)

	tr := d.transportAt(0)
	require.NotNil(t, tr)
	require.Eventually(t, func() bool {
		return tr.pingCount() >= 2
	}, time.Second, 5*time.Millisecond)

	s.Disconnect()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not terminate")
	}

	// No further probes fire once terminated
	after := tr.pingCount()
	time.Sleep(5 * cfg.KeepaliveInterval)
	assert.Equal(t, after, tr.pingCount())
}

func TestSessionsShareMetricsRegistry(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	a, err := New("walk-a", &fakeDialer{}, WithConfig(fastConfig()), WithMetrics(registry))
	require.NoError(t, err)

	// A second live session with its own ID registers cleanly
	b, err := New("walk-b", &fakeDialer{}, WithConfig(fastConfig()), WithMetrics(registry))
	require.NoError(t, err)

	a.Disconnect()
	<-a.Done()

	// Recreating the same walk after termination registers cleanly too
	a2, err := New("walk-a", &fakeDialer{}, WithConfig(fastConfig()), WithMetrics(registry))
	require.NoError(t, err)

	a2.Disconnect()
	<-a2.Done()
	b.Disconnect()
	<-b.Done()
}

func TestEncryptedPipelineEndToEnd(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := securepipe.NewChaChaCipher(key)
	require.NoError(t, err)
	pipeline := securepipe.New(cipher, securepipe.NewGzipCompressor())

	d := &fakeDialer{}
	cfg := fastConfig()
	cfg.FlushInterval = time.Hour

	s, err := New("walk-9", d, WithConfig(cfg), WithPipeline(pipeline))
	require.NoError(t, err)
	defer func() {
		s.Disconnect()
		<-s.Done()
	}()

	s.Connect()
	waitConnected(t, s)

	var sent []track.Sample
	for i := 0; i < 10; i++ {
		sample := validSample(t, "walk-9")
		sent = append(sent, sample)
		require.NoError(t, s.Submit(sample))
	}

	tr := d.transportAt(0)
	require.NotNil(t, tr)
	require.Eventually(t, func() bool {
		return len(tr.sentFrames()) == 1
	}, time.Second, 5*time.Millisecond)

	// The wire frame decodes back to the exact batch
	payload, err := pipeline.Decode(tr.sentFrames()[0])
	require.NoError(t, err)
	batch, err := track.UnmarshalBatch(payload)
	require.NoError(t, err)
	require.Len(t, batch, 10)
	for i, sample := range batch {
		assert.Equal(t, sent[i].ID, sample.ID)
		assert.Equal(t, sent[i].Latitude, sample.Latitude)
	}
}
