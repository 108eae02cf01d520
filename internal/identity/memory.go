package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/classroom-client/internal/apperr"
)

type memoryAccount struct {
	uid         string
	email       string
	displayName string
	hash        []byte
}

type memoryGrant struct {
	uid       string
	expiresAt time.Time
}

// MemoryProvider keeps accounts in process memory. Used by tests and
// headless runs with IDENTITY_DRIVER=memory.
type MemoryProvider struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount // by normalized email
	grants   map[string]memoryGrant
	cost     int
	grantTTL time.Duration
	now      func() time.Time
	current  current
}

// NewMemoryProvider creates an empty provider. cost is the bcrypt cost.
func NewMemoryProvider(cost int, grantTTL time.Duration) *MemoryProvider {
	return &MemoryProvider{
		accounts: make(map[string]*memoryAccount),
		grants:   make(map[string]memoryGrant),
		cost:     cost,
		grantTTL: grantTTL,
		now:      time.Now,
	}
}

func (p *MemoryProvider) Register(_ context.Context, email, password, displayName string) (*Identity, error) {
	const op = "identity.register"
	if len(password) < MinPasswordLength {
		return nil, apperr.Validation(op, map[string]string{"password": "password must be at least 6 characters in length"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, op, err)
	}

	key := normalizeEmail(email)
	p.mu.Lock()
	if _, exists := p.accounts[key]; exists {
		p.mu.Unlock()
		return nil, apperr.New(apperr.CodeEmailTaken, op, nil)
	}
	acc := &memoryAccount{uid: uuid.New().String(), email: key, displayName: displayName, hash: hash}
	p.accounts[key] = acc
	p.mu.Unlock()

	id := &Identity{UID: acc.uid, Email: acc.email, DisplayName: acc.displayName}
	p.current.set(id)
	return id, nil
}

func (p *MemoryProvider) Login(_ context.Context, email, password string) (*Identity, error) {
	p.mu.Lock()
	acc, ok := p.accounts[normalizeEmail(email)]
	p.mu.Unlock()
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidCredentials, "identity.login", nil)
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, apperr.New(apperr.CodeInvalidCredentials, "identity.login", nil)
	}

	id := &Identity{UID: acc.uid, Email: acc.email, DisplayName: acc.displayName}
	p.current.set(id)
	return id, nil
}

func (p *MemoryProvider) Logout(context.Context) error {
	p.current.set(nil)
	return nil
}

func (p *MemoryProvider) RequestPasswordReset(_ context.Context, email string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[normalizeEmail(email)]
	if !ok {
		return "", apperr.New(apperr.CodeUserNotFound, "identity.request_reset", nil)
	}
	grant := uuid.New().String()
	p.grants[grant] = memoryGrant{uid: acc.uid, expiresAt: p.now().Add(p.grantTTL)}
	return grant, nil
}

func (p *MemoryProvider) ConfirmPasswordReset(_ context.Context, grant, newPassword string) error {
	const op = "identity.confirm_reset"
	if len(newPassword) < MinPasswordLength {
		return apperr.Validation(op, map[string]string{"password": "password must be at least 6 characters in length"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return apperr.New(apperr.CodeInternal, op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.grants[grant]
	delete(p.grants, grant)
	if !ok || (p.grantTTL > 0 && !p.now().Before(g.expiresAt)) {
		return apperr.New(apperr.CodeResetGrantInvalid, op, nil)
	}
	for _, acc := range p.accounts {
		if acc.uid == g.uid {
			acc.hash = hash
			return nil
		}
	}
	return apperr.New(apperr.CodeUserNotFound, op, nil)
}

func (p *MemoryProvider) CurrentIdentity(context.Context) (*Identity, error) {
	return p.current.get(), nil
}

func (p *MemoryProvider) OnIdentityChange(fn func(*Identity)) func() {
	return p.current.subscribe(fn)
}
