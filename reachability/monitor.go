// Package reachability provides the network reachability signal that gates
// session connection attempts.
//
// Two implementations ship: Probe, which periodically dials a well-known
// endpoint, and Static, a settable flag for tests and for hosts that surface
// their own connectivity signal.
package reachability

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor reports whether the network is currently reachable.
type Monitor interface {
	// IsReachable returns the most recent reachability observation.
	IsReachable() bool
	// StartMonitoring begins background observation. Idempotent.
	StartMonitoring()
	// StopMonitoring halts background observation. Idempotent.
	StopMonitoring()
}

// Static is a Monitor backed by a settable flag. Zero value reports reachable.
type Static struct {
	unreachable atomic.Bool
}

// NewStatic creates a Static monitor with the given initial state.
func NewStatic(reachable bool) *Static {
	s := &Static{}
	s.Set(reachable)
	return s
}

// IsReachable returns the current flag.
func (s *Static) IsReachable() bool { return !s.unreachable.Load() }

// Set updates the flag.
func (s *Static) Set(reachable bool) { s.unreachable.Store(!reachable) }

// StartMonitoring is a no-op for Static.
func (s *Static) StartMonitoring() {}

// StopMonitoring is a no-op for Static.
func (s *Static) StopMonitoring() {}

// DefaultProbeInterval is how often Probe re-checks connectivity.
const DefaultProbeInterval = 10 * time.Second

// DefaultProbeTimeout bounds each connectivity check.
const DefaultProbeTimeout = 3 * time.Second

// Probe is a Monitor that dials a TCP endpoint on an interval and records
// whether the dial succeeded. Until the first probe completes it reports
// reachable, so a fresh session is not blocked on the probe cycle.
type Probe struct {
	addr     string
	interval time.Duration
	timeout  time.Duration

	reachable atomic.Bool
	dial      func(network, addr string, timeout time.Duration) (net.Conn, error)

	mu     sync.Mutex
	ticker *time.Ticker
	done   chan struct{}
}

// NewProbe creates a probe monitor against addr (host:port).
// Zero interval and timeout select the defaults.
func NewProbe(addr string, interval, timeout time.Duration) *Probe {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	p := &Probe{
		addr:     addr,
		interval: interval,
		timeout:  timeout,
		dial:     net.DialTimeout,
	}
	p.reachable.Store(true)
	return p
}

// IsReachable returns the most recent probe result.
func (p *Probe) IsReachable() bool { return p.reachable.Load() }

// StartMonitoring begins the probe loop. Safe to call repeatedly.
func (p *Probe) StartMonitoring() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.done = make(chan struct{})
	ticker := p.ticker
	done := p.done

	go func() {
		defer ticker.Stop()
		p.check()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p.check()
			}
		}
	}()
}

// StopMonitoring halts the probe loop. Safe to call repeatedly.
func (p *Probe) StopMonitoring() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
}

func (p *Probe) check() {
	conn, err := p.dial("tcp", p.addr, p.timeout)
	if err != nil {
		p.reachable.Store(false)
		return
	}
	_ = conn.Close()
	p.reachable.Store(true)
}
