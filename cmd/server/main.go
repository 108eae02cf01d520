package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/app"
	"github.com/stemsi/classroom-client/internal/bootstrap"
	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/handler"
	"github.com/stemsi/classroom-client/internal/logger"
	"github.com/stemsi/classroom-client/internal/metrics"
	"github.com/stemsi/classroom-client/internal/middleware"
	"github.com/stemsi/classroom-client/internal/router"
	"github.com/stemsi/classroom-client/internal/session"
	"github.com/stemsi/classroom-client/internal/validator"
	ws "github.com/stemsi/classroom-client/internal/websocket"
	"github.com/stemsi/classroom-client/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("identity", cfg.IdentityDriver).
		Str("docstore", cfg.DocstoreDriver).
		Str("session_medium", cfg.SessionMedium).
		Msg("Starting Classroom Client")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Initialize Metrics ────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ─── Wire the Sync Core ────────────────────────────────────────────
	core := app.New(cfg, log, m, nil)
	defer core.Close()

	// ─── Status Stream ─────────────────────────────────────────────────
	hub := ws.NewHub()
	core.Session.OnChange(func(st session.Status) {
		hub.Publish(ws.EventSession, handler.SessionEvent(st))
	})
	core.Coordinator.OnChange(func(st bootstrap.Status) {
		hub.Publish(ws.EventReadiness, handler.ReadinessEvent(st))
	})
	hub.Publish(ws.EventSession, handler.SessionEvent(core.Session.Current()))
	hub.Publish(ws.EventReadiness, handler.ReadinessEvent(core.Coordinator.Status()))

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	keeper := worker.NewSessionKeeper(core.Session, cfg.SessionCheckInterval, log)
	retrier := worker.NewInitRetrier(core.Coordinator, cfg.InitRetryInterval, log)
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimit, time.Minute)

	go keeper.Start(workerCtx)
	go retrier.Start(workerCtx)
	go authLimiter.Start(workerCtx)

	// ─── Initialize Subsystems ─────────────────────────────────────────
	// Pages are served from the persisted snapshot while this runs.
	go func() {
		st := core.Coordinator.Initialize(workerCtx)
		if st.State == bootstrap.Degraded {
			log.Warn().Err(st.LastError).Int("attempts", st.Attempts).Msg("Running degraded, subsystems unavailable")
			return
		}
		user, err := core.Session.Bootstrap(workerCtx)
		if err != nil {
			log.Warn().Err(err).Msg("Session bootstrap failed")
			return
		}
		if user != nil {
			log.Info().Str("uid", user.ID).Str("role", string(user.Role)).Msg("Signed in")
		}
	}()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session:  handler.NewSessionHandler(core.Session, core.Snapshot, keeper, cfg.SecureCookie, log),
		Recovery: handler.NewRecoveryHandler(core.Session),
		Class:    handler.NewClassHandler(core.Classes),
		Feed:     handler.NewFeedHandler(core.Feeds),
		System:   handler.NewSystemHandler(core.Coordinator, log),
		WS:       handler.NewWSHandler(hub, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(cfg, handlers, router.Deps{
		Session:     core.Session,
		Snapshot:    core.Snapshot,
		Verifier:    core.Issuer,
		AuthLimiter: authLimiter,
		Metrics:     m.Handler(),
		Log:         log,
	})

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers.
	workerCancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
