package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/validator"
)

// recovery is the single outstanding password recovery of this process.
type recovery struct {
	username string
	email    string
	code     string
	grant    string
	issuedAt time.Time
	verified bool
}

func (r *recovery) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && !now.Before(r.issuedAt.Add(ttl))
}

// newResetCode returns a uniformly random code in 1000..9999.
func newResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

// RequestPasswordReset issues a one-time code bound to (username, email) and
// delivers it. A new request replaces any outstanding code.
func (m *Manager) RequestPasswordReset(ctx context.Context, username, email string) error {
	const op = "session.request_reset"
	req := model.PasswordResetRequest{Username: username, Email: email}
	if err := validator.Struct(op, &req); err != nil {
		m.setError(err)
		return err
	}

	provider, err := m.subsystems.Identity(ctx)
	if err != nil {
		m.setError(err)
		return err
	}
	grant, err := provider.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		m.setError(err)
		return err
	}
	code, err := newResetCode()
	if err != nil {
		err = apperr.New(apperr.CodeInternal, op, err)
		m.setError(err)
		return err
	}

	r := &recovery{username: req.Username, email: req.Email, code: code, grant: grant, issuedAt: m.now()}
	m.mu.Lock()
	m.recovery = r
	m.mu.Unlock()

	if err := m.sender.SendResetCode(ctx, req.Username, req.Email, code); err != nil {
		m.mu.Lock()
		if m.recovery == r {
			m.recovery = nil
		}
		m.mu.Unlock()
		err = apperr.New(apperr.CodeInternal, op, fmt.Errorf("send reset code: %w", err))
		m.setError(err)
		return err
	}
	m.log.Info().Str("email", req.Email).Msg("Password recovery requested")
	return nil
}

// VerifyResetCode checks code against the outstanding one. Input that is not
// four digits is rejected as a validation error. An expired code is discarded;
// a wrong code can be retried.
func (m *Manager) VerifyResetCode(code string) bool {
	const op = "session.verify_reset_code"
	if err := validator.Struct(op, &model.VerifyResetCodeRequest{Code: code}); err != nil {
		m.setError(err)
		return false
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.recovery
	switch {
	case r == nil:
		m.lastErr = apperr.New(apperr.CodeResetCodeInvalid, op, nil)
		return false
	case r.expired(now, m.opts.RecoveryCodeTTL):
		m.recovery = nil
		m.lastErr = apperr.New(apperr.CodeResetCodeExpired, op, nil)
		return false
	case subtle.ConstantTimeCompare([]byte(code), []byte(r.code)) != 1:
		m.lastErr = apperr.New(apperr.CodeResetCodeInvalid, op, nil)
		return false
	}
	r.verified = true
	return true
}

// SetNewPassword completes a verified recovery and clears the outstanding code.
func (m *Manager) SetNewPassword(ctx context.Context, password string) error {
	const op = "session.set_new_password"
	req := model.NewPasswordRequest{Password: password}
	if err := validator.Struct(op, &req); err != nil {
		m.setError(err)
		return err
	}

	now := m.now()
	m.mu.Lock()
	r := m.recovery
	var err error
	switch {
	case r == nil || !r.verified:
		err = apperr.New(apperr.CodeResetNotVerified, op, nil)
	case r.expired(now, m.opts.RecoveryCodeTTL):
		m.recovery = nil
		err = apperr.New(apperr.CodeResetCodeExpired, op, nil)
	}
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		return err
	}
	grant := r.grant
	m.mu.Unlock()

	provider, err := m.subsystems.Identity(ctx)
	if err != nil {
		m.setError(err)
		return err
	}
	if err := provider.ConfirmPasswordReset(ctx, grant, req.Password); err != nil {
		m.setError(err)
		return err
	}

	m.mu.Lock()
	if m.recovery == r {
		m.recovery = nil
	}
	m.mu.Unlock()
	m.log.Info().Str("email", r.email).Msg("Password recovered")
	return nil
}
