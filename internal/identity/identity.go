// Package identity defines the identity provider contract and its implementations.
package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Identity is the remote account as the provider knows it.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// Provider is the identity subsystem consumed by the session manager.
//
// RequestPasswordReset returns an opaque grant bound to the account; the
// caller keeps it and hands it back to ConfirmPasswordReset.
type Provider interface {
	Register(ctx context.Context, email, password, displayName string) (*Identity, error)
	Login(ctx context.Context, email, password string) (*Identity, error)
	Logout(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) (grant string, err error)
	ConfirmPasswordReset(ctx context.Context, grant, newPassword string) error
	CurrentIdentity(ctx context.Context) (*Identity, error)
	OnIdentityChange(fn func(*Identity)) (unsubscribe func())
}

// MinPasswordLength is enforced by every provider.
const MinPasswordLength = 6

// WaitForCurrent returns the signed-in identity, waiting up to timeout for a
// change notification when none is signed in yet. It resolves to nil rather
// than blocking past the timeout.
func WaitForCurrent(ctx context.Context, p Provider, timeout time.Duration) (*Identity, error) {
	changed := make(chan *Identity, 1)
	unsubscribe := p.OnIdentityChange(func(id *Identity) {
		select {
		case changed <- id:
		default:
		}
	})
	defer unsubscribe()

	id, err := p.CurrentIdentity(ctx)
	if err != nil || id != nil {
		return id, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id := <-changed:
		return id, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// current holds the signed-in identity of this process and fans out changes.
type current struct {
	mu        sync.Mutex
	id        *Identity
	nextID    int
	listeners map[int]func(*Identity)
}

func (c *current) get() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id == nil {
		return nil
	}
	cp := *c.id
	return &cp
}

// set stores id and notifies listeners outside the lock.
func (c *current) set(id *Identity) {
	c.mu.Lock()
	c.id = id
	fns := make([]func(*Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		if id == nil {
			fn(nil)
			continue
		}
		cp := *id
		fn(&cp)
	}
}

func (c *current) subscribe(fn func(*Identity)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listeners == nil {
		c.listeners = make(map[int]func(*Identity))
	}
	key := c.nextID
	c.nextID++
	c.listeners[key] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, key)
			c.mu.Unlock()
		})
	}
}
