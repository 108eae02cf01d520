// Package bootstrap brings the identity and document-store subsystems up once
// per process and reports readiness or degraded mode to their consumers.
package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/identity"
	"github.com/stemsi/classroom-client/internal/metrics"
)

// State is the initialization lifecycle.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Degraded
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "uninitialized"
	}
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State     State
	Attempts  int
	LastError error
}

// IdentityDialer brings up the identity subsystem.
type IdentityDialer func(ctx context.Context) (identity.Provider, error)

// StorageDialer brings up the document store.
type StorageDialer func(ctx context.Context) (docstore.Store, error)

// Options tunes the retry policy.
type Options struct {
	MaxAttempts int
	SettleDelay time.Duration
	BaseDelay   time.Duration
	Linger      time.Duration
}

const flightKey = "initialize"

// Coordinator runs the bootstrap sequence at most once at a time. Concurrent
// callers share the same flight and observe the same outcome.
type Coordinator struct {
	opts         Options
	dialIdentity IdentityDialer
	dialStorage  StorageDialer
	metrics      *metrics.Metrics
	log          zerolog.Logger
	group        singleflight.Group
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	state     State
	attempts  int
	lastErr   error
	identity  identity.Provider
	storage   docstore.Store
	settledAt time.Time
	listeners []func(Status)
}

// NewCoordinator creates a coordinator in the Uninitialized state.
func NewCoordinator(opts Options, dialIdentity IdentityDialer, dialStorage StorageDialer, m *metrics.Metrics, log zerolog.Logger) *Coordinator {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Coordinator{
		opts:         opts,
		dialIdentity: dialIdentity,
		dialStorage:  dialStorage,
		metrics:      m,
		log:          log.With().Str("component", "bootstrap").Logger(),
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Initialize brings both subsystems up, or returns the settled outcome when
// that already happened. A caller whose ctx ends stops waiting; the flight
// keeps running for the others.
func (c *Coordinator) Initialize(ctx context.Context) Status {
	if st, settled := c.settled(); settled {
		return st
	}
	return c.join(ctx)
}

// Retry moves a Degraded coordinator back to Initializing and runs a new
// flight. Within the linger window after a settle it returns that outcome.
func (c *Coordinator) Retry(ctx context.Context) Status {
	c.mu.Lock()
	if c.state != Degraded {
		c.mu.Unlock()
		return c.Initialize(ctx)
	}
	if c.now().Before(c.settledAt.Add(c.opts.Linger)) {
		st := c.statusLocked()
		c.mu.Unlock()
		return st
	}
	c.state = Initializing
	c.attempts = 0
	st := c.statusLocked()
	fns := c.listenersLocked()
	c.mu.Unlock()

	c.log.Info().Msg("Retrying initialization")
	notify(fns, st)
	return c.join(ctx)
}

func (c *Coordinator) join(ctx context.Context) Status {
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		return c.run(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Status)
	case <-ctx.Done():
		st := c.Status()
		if st.LastError == nil {
			st.LastError = ctx.Err()
		}
		return st
	}
}

// run executes one bootstrap sequence. singleflight guarantees a single
// concurrent run; the state check turns late joiners into readers.
func (c *Coordinator) run(ctx context.Context) Status {
	c.mu.Lock()
	if c.state == Ready || c.state == Degraded {
		st := c.statusLocked()
		c.mu.Unlock()
		return st
	}
	changed := c.state != Initializing
	c.state = Initializing
	provider := c.identity
	st := c.statusLocked()
	fns := c.listenersLocked()
	c.mu.Unlock()
	if changed {
		notify(fns, st)
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		c.mu.Lock()
		c.attempts = attempt + 1
		c.mu.Unlock()

		if err := c.sleep(ctx, c.opts.SettleDelay); err != nil {
			lastErr = err
			break
		}

		if provider == nil {
			p, err := c.dialIdentity(ctx)
			if err != nil {
				lastErr = err
				c.metrics.InitAttempts.WithLabelValues("identity_failed").Inc()
				c.log.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", c.opts.MaxAttempts).Msg("Identity subsystem unavailable")
				if attempt+1 < c.opts.MaxAttempts {
					if err := c.sleep(ctx, c.opts.BaseDelay*time.Duration(attempt+1)); err != nil {
						break
					}
				}
				continue
			}
			provider = p
		}

		store, err := c.dialStorage(ctx)
		if err != nil {
			c.metrics.InitAttempts.WithLabelValues("storage_failed").Inc()
			if apperr.KindOf(err) != apperr.KindConfiguration {
				err = apperr.New(apperr.CodeStorageUnavailable, "bootstrap.dial_storage", err)
			}
			c.log.Warn().Err(err).Msg("Document store unavailable, continuing in degraded mode")
			return c.settle(Degraded, provider, nil, err)
		}

		c.metrics.InitAttempts.WithLabelValues("ready").Inc()
		return c.settle(Ready, provider, store, nil)
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	if apperr.KindOf(lastErr) != apperr.KindConfiguration {
		lastErr = apperr.New(apperr.CodeInitFailed, "bootstrap.initialize", lastErr)
	}
	c.log.Warn().Err(lastErr).Msg("Initialization budget exhausted, continuing in degraded mode")
	return c.settle(Degraded, provider, nil, lastErr)
}

func (c *Coordinator) settle(state State, p identity.Provider, s docstore.Store, err error) Status {
	c.mu.Lock()
	c.state = state
	c.identity = p
	c.storage = s
	c.lastErr = err
	c.settledAt = c.now()
	st := c.statusLocked()
	fns := c.listenersLocked()
	c.mu.Unlock()

	c.log.Info().Str("state", state.String()).Int("attempts", st.Attempts).Msg("Initialization settled")
	notify(fns, st)
	return st
}

// Identity returns the identity provider, initializing first when needed.
func (c *Coordinator) Identity(ctx context.Context) (identity.Provider, error) {
	st := c.Initialize(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		return c.identity, nil
	}
	if apperr.KindOf(st.LastError) == apperr.KindConfiguration {
		return nil, st.LastError
	}
	return nil, apperr.New(apperr.CodeIdentityUnavailable, "bootstrap.identity", st.LastError)
}

// Documents returns the document store, or STORAGE_UNAVAILABLE in degraded mode.
func (c *Coordinator) Documents(ctx context.Context) (docstore.Store, error) {
	st := c.Initialize(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storage != nil {
		return c.storage, nil
	}
	if apperr.KindOf(st.LastError) == apperr.KindConfiguration {
		return nil, st.LastError
	}
	return nil, apperr.New(apperr.CodeStorageUnavailable, "bootstrap.documents", st.LastError)
}

// DocumentsIfReady returns the store without triggering initialization.
func (c *Coordinator) DocumentsIfReady() (docstore.Store, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storage, c.storage != nil
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns state, attempt count and last error.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// OnChange registers fn for every state transition.
func (c *Coordinator) OnChange(fn func(Status)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Coordinator) settled() (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked(), c.state == Ready || c.state == Degraded
}

func (c *Coordinator) statusLocked() Status {
	return Status{State: c.state, Attempts: c.attempts, LastError: c.lastErr}
}

func (c *Coordinator) listenersLocked() []func(Status) {
	return append(([]func(Status))(nil), c.listeners...)
}

func notify(fns []func(Status), st Status) {
	for _, fn := range fns {
		fn(st)
	}
}
