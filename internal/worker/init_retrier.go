package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/bootstrap"
)

// Initializer is the part of the coordinator the retrier drives.
type Initializer interface {
	State() bootstrap.State
	Retry(ctx context.Context) bootstrap.Status
}

// InitRetrier retries a degraded initialization on a fixed interval until it
// reaches Ready.
type InitRetrier struct {
	coord    Initializer
	interval time.Duration
	log      zerolog.Logger
}

// NewInitRetrier creates a new InitRetrier.
func NewInitRetrier(coord Initializer, interval time.Duration, log zerolog.Logger) *InitRetrier {
	return &InitRetrier{
		coord:    coord,
		interval: interval,
		log:      log.With().Str("component", "init_retrier").Logger(),
	}
}

// Start begins the ticker loop. Call in a goroutine.
func (w *InitRetrier) Start(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *InitRetrier) tick(ctx context.Context) {
	if w.coord.State() != bootstrap.Degraded {
		return
	}
	st := w.coord.Retry(ctx)
	if st.State == bootstrap.Ready {
		w.log.Info().Int("attempts", st.Attempts).Msg("Recovered from degraded mode")
		return
	}
	w.log.Warn().Err(st.LastError).Str("state", st.State.String()).Msg("Still degraded")
}
