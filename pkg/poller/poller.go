// Package poller re-issues a datastore load on a fixed cadence.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/datastore"
)

// DefaultInterval is the system-status refresh cadence.
const DefaultInterval = 5 * time.Second

// Source is anything that can be loaded; *datastore.Store satisfies it.
type Source[T any] interface {
	Load(ctx context.Context) datastore.LoadResult[T]
}

// Controller drives one recurring schedule at a time. onResult is invoked
// from the controller's goroutine and must not call Start or Stop itself.
type Controller[T any] struct {
	source Source[T]

	mu      sync.Mutex
	cancel  context.CancelFunc
	gen     uint64
	running bool

	// deliver serialises onResult against Stop so no callback runs after
	// Stop has returned.
	deliver sync.Mutex
}

func New[T any](source Source[T]) *Controller[T] {
	return &Controller[T]{source: source}
}

// Start begins loading immediately and then every interval. A running
// schedule is stopped first.
func (c *Controller[T]) Start(interval time.Duration, onResult func(datastore.LoadResult[T])) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.Stop()

	c.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	go c.run(ctx, gen, interval, onResult)
}

func (c *Controller[T]) run(ctx context.Context, gen uint64, interval time.Duration, onResult func(datastore.LoadResult[T])) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := c.source.Load(ctx)
		if !c.publish(gen, res, onResult) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// publish hands res to onResult unless the schedule that produced it has
// been stopped or replaced.
func (c *Controller[T]) publish(gen uint64, res datastore.LoadResult[T], onResult func(datastore.LoadResult[T])) bool {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	current := c.running && c.gen == gen
	c.mu.Unlock()
	if !current {
		logger.Log.WithField("state", res.State.String()).Debug("dropping poll result after stop")
		return false
	}
	if res.State == datastore.StatePending {
		return true
	}
	onResult(res)
	return true
}

// Stop cancels the schedule. Once Stop returns no further onResult calls
// happen, even for a load that was already in flight.
func (c *Controller[T]) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	// wait out a callback that may be running right now
	c.deliver.Lock()
	c.deliver.Unlock()
}

func (c *Controller[T]) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
