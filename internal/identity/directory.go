package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/config"
)

// DirectoryProvider keeps accounts in the accounts table and reset grants in
// redis. The signed-in identity is held per process.
type DirectoryProvider struct {
	pool     *pgxpool.Pool
	rdb      *redis.Client
	cost     int
	grantTTL time.Duration
	log      zerolog.Logger
	current  current
}

// NewDirectoryProvider creates a provider over an open pool and redis client.
func NewDirectoryProvider(pool *pgxpool.Pool, rdb *redis.Client, cost int, grantTTL time.Duration, log zerolog.Logger) *DirectoryProvider {
	return &DirectoryProvider{
		pool:     pool,
		rdb:      rdb,
		cost:     cost,
		grantTTL: grantTTL,
		log:      log.With().Str("component", "identity").Logger(),
	}
}

// Ping checks that both backends answer.
func (p *DirectoryProvider) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping accounts db: %w", err)
	}
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping grants redis: %w", err)
	}
	return nil
}

func (p *DirectoryProvider) Register(ctx context.Context, email, password, displayName string) (*Identity, error) {
	const op = "identity.register"
	if len(password) < MinPasswordLength {
		return nil, apperr.Validation(op, map[string]string{"password": "password must be at least 6 characters in length"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, op, err)
	}

	id := &Identity{UID: uuid.New().String(), Email: normalizeEmail(email), DisplayName: displayName}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, display_name, password_hash) VALUES ($1, $2, $3, $4)`,
		id.UID, id.Email, id.DisplayName, string(hash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.New(apperr.CodeEmailTaken, op, nil)
		}
		return nil, apperr.New(apperr.CodeIdentityUnavailable, op, fmt.Errorf("insert account: %w", err))
	}

	p.current.set(id)
	return id, nil
}

func (p *DirectoryProvider) Login(ctx context.Context, email, password string) (*Identity, error) {
	const op = "identity.login"
	id := &Identity{Email: normalizeEmail(email)}
	var hash string
	err := p.pool.QueryRow(ctx,
		`SELECT id, display_name, password_hash FROM accounts WHERE email = $1`,
		id.Email).Scan(&id.UID, &id.DisplayName, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeInvalidCredentials, op, nil)
	}
	if err != nil {
		return nil, apperr.New(apperr.CodeIdentityUnavailable, op, fmt.Errorf("find account: %w", err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, apperr.New(apperr.CodeInvalidCredentials, op, nil)
	}

	p.current.set(id)
	return id, nil
}

func (p *DirectoryProvider) Logout(context.Context) error {
	p.current.set(nil)
	return nil
}

func (p *DirectoryProvider) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	const op = "identity.request_reset"
	var uid string
	err := p.pool.QueryRow(ctx, `SELECT id FROM accounts WHERE email = $1`, normalizeEmail(email)).Scan(&uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.New(apperr.CodeUserNotFound, op, nil)
	}
	if err != nil {
		return "", apperr.New(apperr.CodeIdentityUnavailable, op, fmt.Errorf("find account: %w", err))
	}

	grant := uuid.New().String()
	if err := p.rdb.Set(ctx, config.CacheKey.ResetGrantKey(grant), uid, p.grantTTL).Err(); err != nil {
		return "", apperr.New(apperr.CodeIdentityUnavailable, op, fmt.Errorf("store reset grant: %w", err))
	}
	p.log.Info().Str("uid", uid).Msg("Password reset grant issued")
	return grant, nil
}

func (p *DirectoryProvider) ConfirmPasswordReset(ctx context.Context, grant, newPassword string) error {
	const op = "identity.confirm_reset"
	if len(newPassword) < MinPasswordLength {
		return apperr.Validation(op, map[string]string{"password": "password must be at least 6 characters in length"})
	}

	uid, err := p.rdb.GetDel(ctx, config.CacheKey.ResetGrantKey(grant)).Result()
	if errors.Is(err, redis.Nil) {
		return apperr.New(apperr.CodeResetGrantInvalid, op, nil)
	}
	if err != nil {
		return apperr.New(apperr.CodeIdentityUnavailable, op, fmt.Errorf("consume reset grant: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return apperr.New(apperr.CodeInternal, op, err)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		string(hash), uid)
	if err != nil {
		return apperr.New(apperr.CodeIdentityUnavailable, op, fmt.Errorf("update password: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeUserNotFound, op, nil)
	}
	p.log.Info().Str("uid", uid).Msg("Password reset confirmed")
	return nil
}

func (p *DirectoryProvider) CurrentIdentity(context.Context) (*Identity, error) {
	return p.current.get(), nil
}

func (p *DirectoryProvider) OnIdentityChange(fn func(*Identity)) func() {
	return p.current.subscribe(fn)
}
