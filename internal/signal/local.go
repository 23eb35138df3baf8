// Package signal carries sync requests from secondary contexts to the main
// context that owns the sync engine.
package signal

import (
	"context"
	"fmt"
	"sync"

	"mdnotes/internal/notes"
)

// LocalChannel delivers sync requests within one process. Requests sent
// while one is already pending are coalesced.
type LocalChannel struct {
	requests chan struct{}

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ notes.SignalChannel = (*LocalChannel)(nil)

func NewLocalChannel() *LocalChannel {
	return &LocalChannel{requests: make(chan struct{}, 1)}
}

func (c *LocalChannel) SendSyncRequest(ctx context.Context) error {
	select {
	case c.requests <- struct{}{}:
	default:
	}
	return nil
}

// OnSyncRequest starts delivering requests to fn. Only one handler may be
// registered at a time.
func (c *LocalChannel) OnSyncRequest(fn func()) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, fmt.Errorf("sync request handler already registered")
	}
	c.running = true
	c.done = make(chan struct{})

	done := c.done
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-done:
				return
			case <-c.requests:
				fn()
			}
		}
	}()

	return c.stop, nil
}

func (c *LocalChannel) stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
}
