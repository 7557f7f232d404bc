package reachability

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s := NewStatic(true)
	assert.True(t, s.IsReachable())

	s.Set(false)
	assert.False(t, s.IsReachable())

	s.Set(true)
	assert.True(t, s.IsReachable())
}

func TestStatic_ZeroValueReachable(t *testing.T) {
	var s Static
	assert.True(t, s.IsReachable())
}

func TestProbe_AgainstListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, acceptErr := ln.Accept()
			if acceptErr != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	p := NewProbe(ln.Addr().String(), 20*time.Millisecond, time.Second)
	p.StartMonitoring()
	defer p.StopMonitoring()

	require.Eventually(t, p.IsReachable, time.Second, 10*time.Millisecond)
}

func TestProbe_DialFailureMarksUnreachable(t *testing.T) {
	p := NewProbe("127.0.0.1:1", 20*time.Millisecond, 50*time.Millisecond)
	p.dial = func(_, _ string, _ time.Duration) (net.Conn, error) {
		return nil, errors.New("no route to host")
	}

	p.StartMonitoring()
	defer p.StopMonitoring()

	require.Eventually(t, func() bool { return !p.IsReachable() }, time.Second, 10*time.Millisecond)
}

func TestProbe_StartStopIdempotent(t *testing.T) {
	p := NewProbe("127.0.0.1:1", time.Hour, time.Millisecond)

	p.StartMonitoring()
	p.StartMonitoring()
	p.StopMonitoring()
	p.StopMonitoring()
}

func TestProbe_ReachableBeforeFirstProbe(t *testing.T) {
	p := NewProbe("127.0.0.1:1", time.Hour, time.Millisecond)
	assert.True(t, p.IsReachable())
}
