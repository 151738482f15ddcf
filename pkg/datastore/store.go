// Package datastore wraps a remote loader with a fallback policy: a failed
// load is answered from the last good value or a static seed and flagged as
// degraded, so a screen always has something to render.
package datastore

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
	"github.com/synaptica-ai/radiology-console/pkg/fetch"
)

// ErrDetached is reported for a load that resolved after Close.
var ErrDetached = errors.New("datastore: store closed before load resolved")

type State int

const (
	StatePending State = iota
	StateFresh
	StateDegraded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateDegraded:
		return "degraded"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// LoadResult is the outcome of one Load. Value is meaningful for Fresh and
// Degraded; Err and Reason explain Degraded and Failed.
type LoadResult[T any] struct {
	State  State
	Value  T
	Err    error
	Reason string
	// FromSeed marks a Degraded value that came from the seed, not the cache.
	FromSeed bool
	// Shared is set when the remote call was issued on behalf of several callers.
	Shared bool
}

// HasValue reports whether the result carries something renderable.
func (r LoadResult[T]) HasValue() bool {
	return r.State == StateFresh || r.State == StateDegraded
}

type Loader[T any] func(ctx context.Context) (T, error)

type Option[T any] func(*Store[T])

// WithSeed sets the static value served when a load fails and nothing has
// been cached yet.
func WithSeed[T any](seed T) Option[T] {
	return func(s *Store[T]) {
		s.seed = seed
		s.hasSeed = true
	}
}

// WithTerminal marks errors that must fail the load instead of degrading it.
func WithTerminal[T any](fn func(error) bool) Option[T] {
	return func(s *Store[T]) {
		s.terminal = fn
	}
}

// Store holds at most one in-flight load and the cached copy used for
// degradation. The cache is private to the instance and dies with it.
type Store[T any] struct {
	name     string
	loader   Loader[T]
	seed     T
	hasSeed  bool
	terminal func(error) bool

	ctx    context.Context
	cancel context.CancelFunc
	sf     singleflight.Group

	mu       sync.Mutex
	cache    T
	hasCache bool
	lastErr  error
	inflight bool
	closed   bool
}

func New[T any](name string, loader Loader[T], opts ...Option[T]) *Store[T] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store[T]{
		name:   name,
		loader: loader,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches a fresh value. Callers arriving while a load is in flight
// join it: one remote call, one shared result. If ctx ends first the caller
// gets Pending and the shared load still completes for the others.
func (s *Store[T]) Load(ctx context.Context) LoadResult[T] {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return s.detached()
	}

	ch := s.sf.DoChan(s.name, func() (interface{}, error) {
		return s.resolve(), nil
	})

	select {
	case r := <-ch:
		res := r.Val.(LoadResult[T])
		res.Shared = r.Shared
		return res
	case <-ctx.Done():
		return LoadResult[T]{State: StatePending, Err: ctx.Err()}
	}
}

// TryLoad is the non-blocking-on-overlap variant: if a load is already in
// flight it returns Pending immediately and issues no remote call.
func (s *Store[T]) TryLoad(ctx context.Context) LoadResult[T] {
	if s.InFlight() {
		return LoadResult[T]{State: StatePending}
	}
	return s.Load(ctx)
}

func (s *Store[T]) resolve() LoadResult[T] {
	s.mu.Lock()
	s.inflight = true
	s.mu.Unlock()

	res := fetch.Do[T](s.ctx, s.name, s.loader)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false

	if s.closed {
		return s.detached()
	}

	if res.Ok() {
		s.cache = res.Value()
		s.hasCache = true
		s.lastErr = nil
		return LoadResult[T]{State: StateFresh, Value: s.cache}
	}

	err := res.Err()
	s.lastErr = err
	reason := fetch.Describe(err)
	log := logger.WithFields(logrus.Fields{
		"store":  s.name,
		"kind":   fetch.KindOf(err).String(),
		"reason": reason,
	})

	if s.terminal != nil && s.terminal(err) {
		log.Info("load failed terminally")
		return LoadResult[T]{State: StateFailed, Err: err, Reason: reason}
	}
	if s.hasCache {
		log.Warn("serving cached data after failed load")
		return LoadResult[T]{State: StateDegraded, Value: s.cache, Err: err, Reason: reason}
	}
	if s.hasSeed {
		log.Warn("serving seed data after failed load")
		return LoadResult[T]{State: StateDegraded, Value: s.seed, Err: err, Reason: reason, FromSeed: true}
	}
	log.Warn("load failed with no fallback available")
	return LoadResult[T]{State: StateFailed, Err: err, Reason: reason}
}

func (s *Store[T]) detached() LoadResult[T] {
	return LoadResult[T]{State: StateFailed, Err: ErrDetached, Reason: "view closed"}
}

// Cached returns the last fresh value, if any.
func (s *Store[T]) Cached() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache, s.hasCache
}

// LastError returns the failure behind the most recent load, nil after a
// fresh one.
func (s *Store[T]) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store[T]) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// Close detaches the store. An in-flight load is canceled and its result is
// dropped without touching the cache.
func (s *Store[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}
