// Package session owns the authenticated session: identity, token expiry and
// refresh, and the login, registration, logout and recovery flows.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/classroom"
	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/identity"
	"github.com/stemsi/classroom-client/internal/metrics"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/validator"
)

// Subsystems hands out the initialized identity provider and document store.
type Subsystems interface {
	Identity(ctx context.Context) (identity.Provider, error)
	Documents(ctx context.Context) (docstore.Store, error)
}

// SnapshotStore persists the session snapshot. Its methods never fail.
type SnapshotStore interface {
	Save(s *model.SessionSnapshot)
	Load() (*model.SessionSnapshot, bool)
	Clear()
}

// Options tunes session timing.
type Options struct {
	RefreshDebounce time.Duration
	IdentityWait    time.Duration
	RecoveryCodeTTL time.Duration
}

var errSuperseded = errors.New("superseded by logout")

// Manager is the process-wide session. All state is guarded by mu; no lock is
// held across a provider or store call.
type Manager struct {
	opts       Options
	subsystems Subsystems
	store      SnapshotStore
	issuer     *TokenIssuer
	sender     CodeSender
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time

	mu          sync.Mutex
	state       State
	user        *model.User
	token       *model.SessionToken
	lastRefresh time.Time
	lastErr     error
	epoch       uint64
	recovery    *recovery
	listeners   []func(Status)
}

// NewManager creates the manager and restores any persisted session.
func NewManager(opts Options, subsystems Subsystems, store SnapshotStore, issuer *TokenIssuer, sender CodeSender, m *metrics.Metrics, log zerolog.Logger) *Manager {
	mgr := &Manager{
		opts:       opts,
		subsystems: subsystems,
		store:      store,
		issuer:     issuer,
		sender:     sender,
		metrics:    m,
		log:        log.With().Str("component", "session").Logger(),
		now:        time.Now,
	}
	mgr.Restore()
	return mgr
}

// Restore rebuilds state from the persisted snapshot without any network
// call. An expired or inconsistent snapshot is cleared.
func (m *Manager) Restore() {
	snap, ok := m.store.Load()
	if !ok {
		return
	}
	if !snap.Active(m.now()) {
		m.log.Info().Msg("Persisted session expired, clearing")
		m.store.Clear()
		return
	}

	m.mu.Lock()
	m.user = snap.User
	m.token = snap.Token
	m.transitionLocked(Authenticated)
	st := m.statusLocked()
	fns := m.listenersLocked()
	m.mu.Unlock()

	m.log.Info().Str("uid", snap.User.ID).Msg("Session restored")
	notify(fns, st)
}

// ─── Predicates and accessors ──────────────────────────────────────────────

// CheckSession reports whether the session is authenticated with an unexpired
// token. When it is not but the state still claims authenticated, the user and
// token are cleared.
func (m *Manager) CheckSession() bool {
	now := m.now()

	m.mu.Lock()
	if m.validLocked(now) {
		m.mu.Unlock()
		return true
	}
	if m.state != Authenticated {
		m.mu.Unlock()
		return false
	}
	m.user = nil
	m.token = nil
	m.lastErr = apperr.New(apperr.CodeSessionExpired, "session.check", nil)
	m.transitionLocked(Expired)
	m.transitionLocked(Anonymous)
	st := m.statusLocked()
	fns := m.listenersLocked()
	m.mu.Unlock()

	m.log.Info().Msg("Session expired")
	m.store.Clear()
	notify(fns, st)
	return false
}

// RefreshSession extends the expiry of a valid session to now+TTL. It is a
// no-op within the debounce window of the last successful refresh.
func (m *Manager) RefreshSession() bool {
	now := m.now()

	m.mu.Lock()
	if !m.validLocked(now) {
		m.mu.Unlock()
		return false
	}
	if !m.lastRefresh.IsZero() && now.Sub(m.lastRefresh) < m.opts.RefreshDebounce {
		m.mu.Unlock()
		return false
	}
	user := m.user
	m.mu.Unlock()

	token, err := m.issuer.Mint(user, now)
	if err != nil {
		m.setError(err)
		return false
	}

	m.mu.Lock()
	// The session may have ended while minting.
	if m.state != Authenticated || m.user != user {
		m.mu.Unlock()
		return false
	}
	m.token = token
	m.lastRefresh = now
	snap := m.snapshotLocked()
	st := m.statusLocked()
	fns := m.listenersLocked()
	m.mu.Unlock()

	m.store.Save(snap)
	notify(fns, st)
	return true
}

// Current returns a copy of the session state.
func (m *Manager) Current() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// User returns the signed-in user when the session is valid.
func (m *Manager) User() (*model.User, bool) {
	if !m.CheckSession() {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil, false
	}
	cp := *m.user
	return &cp, true
}

// LastError returns the last typed failure of a session operation.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// OnChange registers fn for every state change.
func (m *Manager) OnChange(fn func(Status)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// ─── Flows ─────────────────────────────────────────────────────────────────

// Bootstrap resolves the provider's signed-in identity after initialization,
// waiting a bounded time for it. A valid restored session is kept as is.
func (m *Manager) Bootstrap(ctx context.Context) (*model.User, error) {
	const op = "session.bootstrap"
	if user, ok := m.User(); ok {
		return user, nil
	}

	epoch := m.epochNow()
	provider, err := m.subsystems.Identity(ctx)
	if err != nil {
		m.setError(err)
		return nil, err
	}
	id, err := identity.WaitForCurrent(ctx, provider, m.opts.IdentityWait)
	if err != nil {
		err = apperr.New(apperr.CodeIdentityUnavailable, op, err)
		m.setError(err)
		return nil, err
	}
	if id == nil {
		return nil, nil
	}
	return m.establish(ctx, op, epoch, provider, m.profile(ctx, id))
}

// Login signs in with an email-like identifier. Concurrent calls are independent.
func (m *Manager) Login(ctx context.Context, identifier, password string) (*model.User, error) {
	const op = "session.login"
	req := model.LoginRequest{Identifier: strings.TrimSpace(identifier), Password: password}
	if err := validator.Struct(op, &req); err != nil {
		m.setError(err)
		return nil, err
	}

	epoch := m.begin()
	provider, err := m.subsystems.Identity(ctx)
	if err != nil {
		return nil, m.fail(epoch, err)
	}
	id, err := provider.Login(ctx, req.Identifier, req.Password)
	if err != nil {
		return nil, m.fail(epoch, err)
	}
	return m.establish(ctx, op, epoch, provider, m.profile(ctx, id))
}

// Register creates the remote identity and profile, then signs in.
func (m *Manager) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	const op = "session.register"
	if err := validateRegistration(op, &req); err != nil {
		m.setError(err)
		return nil, err
	}

	epoch := m.begin()
	provider, err := m.subsystems.Identity(ctx)
	if err != nil {
		return nil, m.fail(epoch, err)
	}
	id, err := provider.Register(ctx, req.Email, req.Password, req.Username)
	if err != nil {
		return nil, m.fail(epoch, err)
	}

	now := m.now()
	user := &model.User{
		ID:          id.UID,
		Username:    req.Username,
		Email:       id.Email,
		Folio:       req.Folio,
		CURP:        strings.ToUpper(req.CURP),
		Departments: req.Departments,
		Role:        req.Role,
		Subjects:    req.Subjects,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.writeProfile(ctx, user)
	return m.establish(ctx, op, epoch, provider, user)
}

// Logout clears the local session, then signs out remotely on a best-effort basis.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.epoch++
	m.user = nil
	m.token = nil
	m.lastRefresh = time.Time{}
	m.transitionLocked(LoggedOut)
	m.transitionLocked(Anonymous)
	st := m.statusLocked()
	fns := m.listenersLocked()
	m.mu.Unlock()

	m.store.Clear()
	notify(fns, st)
	m.log.Info().Msg("Session cleared")

	provider, err := m.subsystems.Identity(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Remote sign-out skipped, identity provider unavailable")
		return
	}
	if err := provider.Logout(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Remote sign-out failed")
	}
}

func validateRegistration(op string, req *model.RegisterRequest) error {
	if err := validator.Struct(op, req); err != nil {
		return err
	}
	if len(req.Subjects) > 0 && req.Role != model.RoleTeacher {
		return apperr.Validation(op, map[string]string{"subjects": "subjects are only allowed for teachers"})
	}
	for _, s := range req.Subjects {
		if !s.Valid() {
			return apperr.Validation(op, map[string]string{"subjects": "subjects contains an unknown subject"})
		}
	}
	return nil
}

// ─── Internals ─────────────────────────────────────────────────────────────

// begin marks an authentication attempt and returns the epoch it started in.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	epoch := m.epoch
	var st Status
	var fns []func(Status)
	changed := m.state == Anonymous
	if changed {
		m.transitionLocked(Authenticating)
		st = m.statusLocked()
		fns = m.listenersLocked()
	}
	m.mu.Unlock()

	if changed {
		notify(fns, st)
	}
	return epoch
}

func (m *Manager) epochNow() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// fail records err and falls back to Anonymous when no session was established meanwhile.
func (m *Manager) fail(epoch uint64, err error) error {
	m.mu.Lock()
	m.lastErr = err
	var fns []func(Status)
	var st Status
	reset := m.state == Authenticating && m.epoch == epoch
	if reset {
		m.transitionLocked(Anonymous)
		st = m.statusLocked()
		fns = m.listenersLocked()
	}
	m.mu.Unlock()

	if reset {
		notify(fns, st)
	}
	return err
}

// establish mints a token and moves to Authenticated unless a logout happened
// after the attempt began; then the late result is discarded.
func (m *Manager) establish(ctx context.Context, op string, epoch uint64, provider identity.Provider, user *model.User) (*model.User, error) {
	now := m.now()
	token, err := m.issuer.Mint(user, now)
	if err != nil {
		return nil, m.fail(epoch, err)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.log.Info().Str("uid", user.ID).Msg("Discarding sign-in that finished after logout")
		if err := provider.Logout(ctx); err != nil {
			m.log.Warn().Err(err).Msg("Remote sign-out of discarded sign-in failed")
		}
		return nil, apperr.New(apperr.CodeUnauthenticated, op, errSuperseded)
	}
	m.user = user
	m.token = token
	m.lastErr = nil
	m.transitionLocked(Authenticated)
	snap := m.snapshotLocked()
	st := m.statusLocked()
	fns := m.listenersLocked()
	m.mu.Unlock()

	m.store.Save(snap)
	notify(fns, st)
	m.log.Info().Str("uid", user.ID).Str("role", string(user.Role)).Msg("Session established")

	cp := *user
	return &cp, nil
}

// profile enriches id from users/<uid>; without storage it returns a basic student profile.
func (m *Manager) profile(ctx context.Context, id *identity.Identity) *model.User {
	basic := &model.User{
		ID:          id.UID,
		Username:    id.DisplayName,
		Email:       id.Email,
		Departments: []string{},
		Role:        model.RoleStudent,
	}
	if basic.Username == "" {
		basic.Username = strings.SplitN(id.Email, "@", 2)[0]
	}

	store, err := m.subsystems.Documents(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Profile storage unavailable, using basic profile")
		return basic
	}
	r, err := store.GetDocument(ctx, docstore.UsersPath, id.UID)
	if err != nil {
		m.log.Warn().Err(err).Str("uid", id.UID).Msg("Profile lookup failed, using basic profile")
		return basic
	}
	if r == nil {
		return basic
	}
	user := classroom.UserFromRecord(r)
	if user.Email == "" {
		user.Email = id.Email
	}
	return user
}

func (m *Manager) writeProfile(ctx context.Context, user *model.User) {
	store, err := m.subsystems.Documents(ctx)
	if err != nil {
		m.log.Warn().Err(err).Str("uid", user.ID).Msg("Profile not stored, storage unavailable")
		return
	}
	if err := store.SetDocument(ctx, docstore.UsersPath, user.ID, classroom.UserFields(user)); err != nil {
		m.log.Warn().Err(err).Str("uid", user.ID).Msg("Profile not stored")
	}
}

func (m *Manager) setError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) validLocked(now time.Time) bool {
	return m.state == Authenticated && m.token != nil && now.Before(m.token.ExpiresAt)
}

func (m *Manager) transitionLocked(to State) {
	m.state = to
	m.metrics.SessionTransitions.WithLabelValues(to.String()).Inc()
}

func (m *Manager) snapshotLocked() *model.SessionSnapshot {
	user := *m.user
	token := *m.token
	return &model.SessionSnapshot{User: &user, IsAuthenticated: true, Token: &token}
}

func (m *Manager) statusLocked() Status {
	st := Status{State: m.state}
	if m.user != nil {
		u := *m.user
		st.User = &u
	}
	if m.token != nil {
		t := *m.token
		st.Token = &t
	}
	return st
}

func (m *Manager) listenersLocked() []func(Status) {
	return append(([]func(Status))(nil), m.listeners...)
}

func notify(fns []func(Status), st Status) {
	for _, fn := range fns {
		fn(st)
	}
}
