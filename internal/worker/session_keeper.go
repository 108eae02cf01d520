package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Session is the part of the session manager the keeper drives.
type Session interface {
	CheckSession() bool
	RefreshSession() bool
}

// SessionKeeper checks the session on a fixed interval and on focus events,
// refreshing it while it is still valid. Refresh debouncing stays with the session.
type SessionKeeper struct {
	session  Session
	interval time.Duration
	log      zerolog.Logger
}

// NewSessionKeeper creates a new SessionKeeper.
func NewSessionKeeper(s Session, interval time.Duration, log zerolog.Logger) *SessionKeeper {
	return &SessionKeeper{
		session:  s,
		interval: interval,
		log:      log.With().Str("component", "session_keeper").Logger(),
	}
}

// Start begins the ticker loop. Call in a goroutine.
func (w *SessionKeeper) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Warn().Msg("Check interval not set, keeper disabled")
		return
	}
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.Touch()
		}
	}
}

// Touch checks the session and refreshes it when valid. It reports whether
// the session is still valid.
func (w *SessionKeeper) Touch() bool {
	if !w.session.CheckSession() {
		return false
	}
	if w.session.RefreshSession() {
		w.log.Debug().Msg("Session refreshed")
	}
	return true
}
