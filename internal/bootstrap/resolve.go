package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/identity"
	"github.com/stemsi/classroom-client/internal/kv"
)

// dialTimeout bounds each connection check during an attempt.
const dialTimeout = 5 * time.Second

// Providers is the concrete wiring chosen from configuration: the two
// subsystem dialers and the durable medium for the session snapshot.
// Postgres and redis connections are opened lazily and shared.
type Providers struct {
	cfg *config.Config
	log zerolog.Logger

	mu  sync.Mutex
	pg  *pgxpool.Pool
	rdb *redis.Client

	Medium kv.Store
}

// Resolve picks implementations for the configured drivers. It never dials;
// configuration problems surface from the dialers on every attempt.
func Resolve(cfg *config.Config, log zerolog.Logger) *Providers {
	p := &Providers{cfg: cfg, log: log.With().Str("component", "resolve").Logger()}

	switch cfg.SessionMedium {
	case config.MediumNone:
	case config.MediumFile:
		p.Medium = kv.NewFileStore(cfg.SessionFile)
	case config.MediumRedis:
		rdb, err := p.redis()
		if err != nil {
			p.log.Warn().Err(err).Msg("Session medium unavailable, keeping session in memory")
			break
		}
		p.Medium = kv.NewRedisStore(rdb, cfg.SessionTTL)
	default:
		p.log.Warn().Str("medium", cfg.SessionMedium).Msg("Unknown session medium, keeping session in memory")
	}
	return p
}

// DialIdentity brings up the configured identity provider.
func (p *Providers) DialIdentity(ctx context.Context) (identity.Provider, error) {
	const op = "bootstrap.dial_identity"
	if err := p.checkConfig(op); err != nil {
		return nil, err
	}

	switch p.cfg.IdentityDriver {
	case config.DriverMemory:
		return identity.NewMemoryProvider(p.cfg.BcryptCost, p.cfg.RecoveryCodeTTL), nil
	case config.DriverPostgres:
		pool, err := p.postgres(ctx)
		if err != nil {
			return nil, apperr.New(apperr.CodeIdentityUnavailable, op, err)
		}
		rdb, err := p.redis()
		if err != nil {
			return nil, apperr.New(apperr.CodeConfigMissing, op, err)
		}
		dir := identity.NewDirectoryProvider(pool, rdb, p.cfg.BcryptCost, p.cfg.RecoveryCodeTTL, p.log)
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		if err := dir.Ping(pingCtx); err != nil {
			return nil, apperr.New(apperr.CodeIdentityUnavailable, op, err)
		}
		return dir, nil
	default:
		return nil, apperr.New(apperr.CodeUnknownDriver, op, fmt.Errorf("identity driver %q", p.cfg.IdentityDriver))
	}
}

// DialStorage brings up the configured document store.
func (p *Providers) DialStorage(ctx context.Context) (docstore.Store, error) {
	const op = "bootstrap.dial_storage"
	switch p.cfg.DocstoreDriver {
	case config.DriverMemory:
		return docstore.NewMemoryStore(), nil
	case config.DriverPostgres:
		if p.cfg.DatabaseURL == "" {
			return nil, apperr.New(apperr.CodeConfigMissing, op, fmt.Errorf("missing DATABASE_URL"))
		}
		pool, err := p.postgres(ctx)
		if err != nil {
			return nil, err
		}
		store := docstore.NewPostgresStore(pool)
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, apperr.New(apperr.CodeUnknownDriver, op, fmt.Errorf("docstore driver %q", p.cfg.DocstoreDriver))
	}
}

// Close releases the shared connections.
func (p *Providers) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pg != nil {
		p.pg.Close()
		p.pg = nil
	}
	if p.rdb != nil {
		_ = p.rdb.Close()
		p.rdb = nil
	}
}

func (p *Providers) checkConfig(op string) error {
	if missing := p.cfg.MissingProviderSettings(); len(missing) > 0 {
		return apperr.New(apperr.CodeConfigMissing, op, fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}
	return nil
}

// postgres returns the shared pool, connecting on first use. A failed dial is
// not cached so the next attempt tries again.
func (p *Providers) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pg != nil {
		return p.pg, nil
	}

	poolCfg, err := pgxpool.ParseConfig(p.cfg.DatabaseURL)
	if err != nil {
		return nil, apperr.New(apperr.CodeConfigMissing, "bootstrap.postgres", fmt.Errorf("parse database URL: %w", err))
	}
	poolCfg.MaxConns = p.cfg.MaxDBConns

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p.log.Info().Int32("max_conns", p.cfg.MaxDBConns).Msg("PostgreSQL connected")
	p.pg = pool
	return pool, nil
}

// redis returns the shared client. redis.NewClient connects lazily, so this
// only fails on a malformed URL.
func (p *Providers) redis() (*redis.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rdb != nil {
		return p.rdb, nil
	}

	opt, err := redis.ParseURL(p.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	p.rdb = redis.NewClient(opt)
	p.log.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("Redis client configured")
	return p.rdb, nil
}
