package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/classroom-client/internal/apperr"
)

func newTestProvider() *MemoryProvider {
	return NewMemoryProvider(bcrypt.MinCost, 15*time.Minute)
}

func TestMemoryRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()

	reg, err := p.Register(ctx, "Ana@Escuela.mx ", "secreto1", "Ana")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Email != "ana@escuela.mx" || reg.UID == "" {
		t.Fatalf("unexpected identity %+v", reg)
	}

	if _, err := p.Register(ctx, "ana@escuela.mx", "secreto1", "Ana"); !errors.Is(err, apperr.ErrEmailTaken) {
		t.Fatalf("expected EMAIL_TAKEN, got %v", err)
	}

	got, err := p.Login(ctx, "ana@escuela.mx", "secreto1")
	if err != nil || got.UID != reg.UID {
		t.Fatalf("login: %v %+v", err, got)
	}
	if _, err := p.Login(ctx, "ana@escuela.mx", "wrong"); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
	if _, err := p.Login(ctx, "nadie@escuela.mx", "secreto1"); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected INVALID_CREDENTIALS for unknown email, got %v", err)
	}
}

func TestMemoryRegisterRejectsShortPassword(t *testing.T) {
	_, err := newTestProvider().Register(context.Background(), "a@b.mx", "123", "A")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMemoryPasswordReset(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()
	if _, err := p.Register(ctx, "ana@escuela.mx", "secreto1", "Ana"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := p.RequestPasswordReset(ctx, "nadie@escuela.mx"); apperr.CodeOf(err) != apperr.CodeUserNotFound {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}

	grant, err := p.RequestPasswordReset(ctx, "ana@escuela.mx")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if err := p.ConfirmPasswordReset(ctx, grant, "nuevo123"); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}
	if err := p.ConfirmPasswordReset(ctx, grant, "otro1234"); apperr.CodeOf(err) != apperr.CodeResetGrantInvalid {
		t.Fatalf("expected grant to be single use, got %v", err)
	}
	if _, err := p.Login(ctx, "ana@escuela.mx", "nuevo123"); err != nil {
		t.Fatalf("expected new password to work: %v", err)
	}
}

func TestMemoryResetGrantExpires(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	_, _ = p.Register(ctx, "ana@escuela.mx", "secreto1", "Ana")

	grant, _ := p.RequestPasswordReset(ctx, "ana@escuela.mx")
	now = now.Add(16 * time.Minute)
	if err := p.ConfirmPasswordReset(ctx, grant, "nuevo123"); apperr.CodeOf(err) != apperr.CodeResetGrantInvalid {
		t.Fatalf("expected expired grant to be rejected, got %v", err)
	}
}

func TestIdentityChangeNotifications(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()

	var seen []*Identity
	unsubscribe := p.OnIdentityChange(func(id *Identity) { seen = append(seen, id) })

	_, _ = p.Register(ctx, "ana@escuela.mx", "secreto1", "Ana")
	_ = p.Logout(ctx)
	unsubscribe()
	_, _ = p.Login(ctx, "ana@escuela.mx", "secreto1")

	if len(seen) != 2 || seen[0] == nil || seen[1] != nil {
		t.Fatalf("expected sign-in then sign-out notifications, got %v", seen)
	}
}

func TestWaitForCurrentReturnsSignedIn(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()
	_, _ = p.Register(ctx, "ana@escuela.mx", "secreto1", "Ana")

	id, err := WaitForCurrent(ctx, p, time.Second)
	if err != nil || id == nil || id.Email != "ana@escuela.mx" {
		t.Fatalf("expected current identity, got %+v %v", id, err)
	}
}

func TestWaitForCurrentTimesOutToNil(t *testing.T) {
	start := time.Now()
	id, err := WaitForCurrent(context.Background(), newTestProvider(), 20*time.Millisecond)
	if err != nil || id != nil {
		t.Fatalf("expected nil identity after timeout, got %+v %v", id, err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("expected to wait for the timeout")
	}
}

func TestWaitForCurrentObservesLateSignIn(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider()
	_, _ = p.Register(ctx, "ana@escuela.mx", "secreto1", "Ana")
	_ = p.Logout(ctx)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = p.Login(ctx, "ana@escuela.mx", "secreto1")
	}()

	id, err := WaitForCurrent(ctx, p, 2*time.Second)
	if err != nil || id == nil {
		t.Fatalf("expected late sign-in to resolve the wait, got %+v %v", id, err)
	}
}
