package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	"github.com/open-builders/exmatrikulator-bot/internal/metrics"
)

// ExpiringChallenges lists challenges past their deadline.
type ExpiringChallenges interface {
	Expired(ctx context.Context, now time.Time) ([]chat.Challenge, error)
	Forget(ctx context.Context, c chat.Challenge) error
}

// ChallengeExpiryWorker removes unanswered challenge messages after their deadline.
// The member stays in the chat.
type ChallengeExpiryWorker struct {
	store     ExpiringChallenges
	messenger chat.Messenger
	metrics   *metrics.Metrics
	interval  time.Duration
	now       func() time.Time
}

func NewChallengeExpiryWorker(store ExpiringChallenges, messenger chat.Messenger, m *metrics.Metrics, interval time.Duration) *ChallengeExpiryWorker {
	return &ChallengeExpiryWorker{
		store:     store,
		messenger: messenger,
		metrics:   m,
		interval:  interval,
		now:       time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (w *ChallengeExpiryWorker) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx).With().Str("component", "challenge_expiry").Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Dur("interval", w.interval).Msg("Starting challenge expiry worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping challenge expiry worker")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				logger.Error().Err(err).Msg("Challenge sweep failed")
			}
		}
	}
}

// Sweep deletes every expired challenge message and returns how many were removed.
func (w *ChallengeExpiryWorker) Sweep(ctx context.Context) (int, error) {
	expired, err := w.store.Expired(ctx, w.now())
	if err != nil {
		return 0, err
	}

	logger := zerolog.Ctx(ctx)
	removed := 0
	for _, c := range expired {
		if err := w.messenger.DeleteMessage(ctx, c.Ref()); err != nil {
			// Already gone or no rights; retrying would not help.
			logger.Warn().Err(err).
				Int64("chat_id", c.ChatID).
				Int64("user_id", c.UserID).
				Msg("Failed to delete expired challenge")
			w.metrics.CleanupDeletes.WithLabelValues("failed").Inc()
		} else {
			w.metrics.CleanupDeletes.WithLabelValues("ok").Inc()
		}

		if err := w.store.Forget(ctx, c); err != nil {
			return removed, err
		}
		w.metrics.ChallengesExpired.Inc()
		removed++
		logger.Info().Int64("chat_id", c.ChatID).Int64("user_id", c.UserID).Msg("Challenge expired")
	}
	return removed, nil
}
