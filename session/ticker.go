package session

import (
	"sync"
	"time"
)

// ticker posts one event onto the session loop per interval. It backs both
// the keepalive probe and the timed flush.
//
// stop waits for the goroutine to exit, so a replacement ticker never runs
// concurrently with the one it replaces.
type ticker struct {
	done chan struct{}
	wg   sync.WaitGroup
}

func (s *Session) startTicker(interval time.Duration, ev event) *ticker {
	t := &ticker{done: make(chan struct{})}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-tick.C:
				select {
				case s.events <- ev:
				case <-t.done:
					return
				}
			}
		}
	}()
	return t
}

func (t *ticker) stop() {
	if t == nil {
		return
	}
	close(t.done)
	t.wg.Wait()
}
