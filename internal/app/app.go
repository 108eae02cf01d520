// Package app assembles the sync core from configuration. Both the HTTP
// server and the command line client start from here.
package app

import (
	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/bootstrap"
	"github.com/stemsi/classroom-client/internal/classroom"
	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/feed"
	"github.com/stemsi/classroom-client/internal/metrics"
	"github.com/stemsi/classroom-client/internal/persistence"
	"github.com/stemsi/classroom-client/internal/session"
)

// App is the wired sync core.
type App struct {
	Config      *config.Config
	Log         zerolog.Logger
	Metrics     *metrics.Metrics
	Providers   *bootstrap.Providers
	Coordinator *bootstrap.Coordinator
	Snapshot    *persistence.Adapter
	Issuer      *session.TokenIssuer
	Session     *session.Manager
	Feeds       *feed.Synchronizer
	Classes     *classroom.Directory
}

// New wires every component without touching the network. The persisted
// session, if any, is restored here; call Coordinator.Initialize to bring
// the subsystems up.
func New(cfg *config.Config, log zerolog.Logger, m *metrics.Metrics, sender session.CodeSender) *App {
	providers := bootstrap.Resolve(cfg, log)

	coord := bootstrap.NewCoordinator(bootstrap.Options{
		MaxAttempts: cfg.InitMaxAttempts,
		SettleDelay: cfg.InitSettleDelay,
		BaseDelay:   cfg.InitBaseDelay,
		Linger:      cfg.InitHandleLinger,
	}, providers.DialIdentity, providers.DialStorage, m, log)

	snapshot := persistence.NewAdapter(providers.Medium, log)
	issuer := session.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if sender == nil {
		sender = session.NewLogSender(log)
	}

	mgr := session.NewManager(session.Options{
		RefreshDebounce: cfg.SessionRefreshDebounce,
		IdentityWait:    cfg.IdentityWaitTimeout,
		RecoveryCodeTTL: cfg.RecoveryCodeTTL,
	}, coord, snapshot, issuer, sender, m, log)

	feeds := feed.NewSynchronizer(feed.Options{
		AnnouncementPageSize: cfg.AnnouncementPageSize,
		AssignmentPageSize:   cfg.AssignmentPageSize,
	}, mgr, coord, m, log)

	// Feeds never outlive the session that loaded them.
	mgr.OnChange(func(st session.Status) {
		if st.State != session.Authenticated && st.State != session.Authenticating {
			feeds.Reset()
		}
	})

	return &App{
		Config:      cfg,
		Log:         log,
		Metrics:     m,
		Providers:   providers,
		Coordinator: coord,
		Snapshot:    snapshot,
		Issuer:      issuer,
		Session:     mgr,
		Feeds:       feeds,
		Classes:     classroom.NewDirectory(coord, log),
	}
}

// Close releases the provider connections.
func (a *App) Close() {
	a.Providers.Close()
}
