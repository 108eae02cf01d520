package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/identity"
	"github.com/stemsi/classroom-client/internal/metrics"
)

var testOpts = Options{MaxAttempts: 3, SettleDelay: 3 * time.Second, BaseDelay: 2 * time.Second, Linger: time.Second}

// sleeps records requested delays without waiting.
type sleeps struct {
	mu sync.Mutex
	d  []time.Duration
}

func (s *sleeps) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.d = append(s.d, d)
	s.mu.Unlock()
	return nil
}

func (s *sleeps) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.d...)
}

func okIdentity(calls *int32) IdentityDialer {
	return func(context.Context) (identity.Provider, error) {
		atomic.AddInt32(calls, 1)
		return identity.NewMemoryProvider(bcrypt.MinCost, time.Minute), nil
	}
}

func okStorage(calls *int32) StorageDialer {
	return func(context.Context) (docstore.Store, error) {
		atomic.AddInt32(calls, 1)
		return docstore.NewMemoryStore(), nil
	}
}

func newTestCoordinator(di IdentityDialer, ds StorageDialer) (*Coordinator, *sleeps) {
	c := NewCoordinator(testOpts, di, ds, metrics.NewNop(), zerolog.Nop())
	s := &sleeps{}
	c.sleep = s.sleep
	return c, s
}

func TestConcurrentInitializeSharesOneFlight(t *testing.T) {
	var identityCalls, storageCalls int32
	release := make(chan struct{})
	c, _ := newTestCoordinator(okIdentity(&identityCalls), okStorage(&storageCalls))

	var settles int32
	c.sleep = func(ctx context.Context, d time.Duration) error {
		atomic.AddInt32(&settles, 1)
		<-release
		return nil
	}

	const callers = 8
	results := make([]Status, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Initialize(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, st := range results {
		if st.State != Ready {
			t.Fatalf("caller %d: expected Ready, got %s", i, st.State)
		}
	}
	if identityCalls != 1 || storageCalls != 1 {
		t.Fatalf("expected one bootstrap sequence, got identity=%d storage=%d", identityCalls, storageCalls)
	}
	if settles != 1 {
		t.Fatalf("expected a single settle delay, got %d", settles)
	}
}

func TestIdentityFailureRetriesThenDegrades(t *testing.T) {
	var calls int32
	boom := errors.New("identity down")
	c, s := newTestCoordinator(func(context.Context) (identity.Provider, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}, okStorage(new(int32)))

	st := c.Initialize(context.Background())

	if st.State != Degraded || st.Attempts != 3 {
		t.Fatalf("expected Degraded after 3 attempts, got %s/%d", st.State, st.Attempts)
	}
	if calls != 3 {
		t.Fatalf("expected 3 identity attempts, got %d", calls)
	}
	if st.LastError == nil || !errors.Is(st.LastError, boom) || apperr.CodeOf(st.LastError) != apperr.CodeInitFailed {
		t.Fatalf("expected INITIALIZATION_FAILED wrapping the cause, got %v", st.LastError)
	}

	want := []time.Duration{3 * time.Second, 2 * time.Second, 3 * time.Second, 4 * time.Second, 3 * time.Second}
	got := s.all()
	if len(got) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected delays %v, got %v", want, got)
		}
	}

	if _, err := c.Identity(context.Background()); apperr.KindOf(err) != apperr.KindInitialization {
		t.Fatalf("expected initialization error from Identity, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("settled coordinator must not run again, got %d attempts", calls)
	}
}

func TestStorageFailureDegradesWithoutRetry(t *testing.T) {
	var identityCalls, storageCalls int32
	c, _ := newTestCoordinator(okIdentity(&identityCalls), func(context.Context) (docstore.Store, error) {
		atomic.AddInt32(&storageCalls, 1)
		return nil, errors.New("storage down")
	})

	st := c.Initialize(context.Background())
	if st.State != Degraded || st.Attempts != 1 || storageCalls != 1 {
		t.Fatalf("expected Degraded after a single attempt, got %s attempts=%d storage=%d", st.State, st.Attempts, storageCalls)
	}

	if _, err := c.Identity(context.Background()); err != nil {
		t.Fatalf("identity must stay usable in degraded mode: %v", err)
	}
	if _, err := c.Documents(context.Background()); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("expected STORAGE_UNAVAILABLE, got %v", err)
	}
}

func TestConfigurationErrorSurfacesCause(t *testing.T) {
	c, _ := newTestCoordinator(func(context.Context) (identity.Provider, error) {
		return nil, apperr.New(apperr.CodeConfigMissing, "bootstrap.dial_identity", errors.New("SESSION_SECRET"))
	}, okStorage(new(int32)))

	st := c.Initialize(context.Background())
	if st.State != Degraded || apperr.CodeOf(st.LastError) != apperr.CodeConfigMissing {
		t.Fatalf("expected degraded with configuration cause, got %s %v", st.State, st.LastError)
	}
	if _, err := c.Identity(context.Background()); !errors.Is(err, apperr.ErrConfigMissing) {
		t.Fatalf("expected configuration error from Identity, got %v", err)
	}
}

func TestRetryAfterDegraded(t *testing.T) {
	var identityCalls int32
	var storageFails int32 = 1
	c, _ := newTestCoordinator(okIdentity(&identityCalls), func(context.Context) (docstore.Store, error) {
		if atomic.AddInt32(&storageFails, -1) >= 0 {
			return nil, errors.New("storage down")
		}
		return docstore.NewMemoryStore(), nil
	})
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if st := c.Initialize(context.Background()); st.State != Degraded {
		t.Fatalf("expected Degraded, got %s", st.State)
	}

	// Inside the linger window the settled outcome is reused.
	if st := c.Retry(context.Background()); st.State != Degraded {
		t.Fatalf("expected lingering Degraded outcome, got %s", st.State)
	}

	now = now.Add(2 * time.Second)
	var seen []State
	c.OnChange(func(st Status) { seen = append(seen, st.State) })

	st := c.Retry(context.Background())
	if st.State != Ready {
		t.Fatalf("expected Ready after retry, got %s (%v)", st.State, st.LastError)
	}
	if st.LastError != nil {
		t.Fatalf("expected last error cleared, got %v", st.LastError)
	}
	if identityCalls != 1 {
		t.Fatalf("expected the identity provider to be reused, got %d dials", identityCalls)
	}
	if len(seen) < 2 || seen[0] != Initializing || seen[len(seen)-1] != Ready {
		t.Fatalf("expected Initializing then Ready transitions, got %v", seen)
	}
	if _, err := c.Documents(context.Background()); err != nil {
		t.Fatalf("expected documents after retry: %v", err)
	}
}

func TestRetryOnReadyIsNoop(t *testing.T) {
	var identityCalls int32
	c, _ := newTestCoordinator(okIdentity(&identityCalls), okStorage(new(int32)))
	c.Initialize(context.Background())

	if st := c.Retry(context.Background()); st.State != Ready || identityCalls != 1 {
		t.Fatalf("expected Retry on Ready to return the settled outcome, got %s dials=%d", st.State, identityCalls)
	}
}

func TestAccessorsInitializeLazily(t *testing.T) {
	var identityCalls int32
	c, _ := newTestCoordinator(okIdentity(&identityCalls), okStorage(new(int32)))
	if c.State() != Uninitialized {
		t.Fatalf("expected Uninitialized before first use")
	}
	if _, ok := c.DocumentsIfReady(); ok {
		t.Fatalf("expected no store before initialization")
	}

	if _, err := c.Documents(context.Background()); err != nil {
		t.Fatalf("documents: %v", err)
	}
	if c.State() != Ready || identityCalls != 1 {
		t.Fatalf("expected Documents to drive initialization, got %s", c.State())
	}
}

func TestCallerCancellationDoesNotAbortFlight(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestCoordinator(okIdentity(new(int32)), okStorage(new(int32)))
	c.sleep = func(ctx context.Context, d time.Duration) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Status, 1)
	go func() { done <- c.Initialize(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	st := <-done
	if st.State != Initializing || !errors.Is(st.LastError, context.Canceled) {
		t.Fatalf("expected the cancelled caller to see Initializing, got %s %v", st.State, st.LastError)
	}

	close(release)
	if st := c.Initialize(context.Background()); st.State != Ready {
		t.Fatalf("expected the flight to finish Ready, got %s", st.State)
	}
}
