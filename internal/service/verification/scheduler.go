package verification

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	"github.com/open-builders/exmatrikulator-bot/internal/metrics"
)

const deleteTimeout = 10 * time.Second

// Scheduler deletes chat messages after a delay without blocking the caller.
// Scheduled deletions cannot be cancelled.
type Scheduler struct {
	messenger chat.Messenger
	metrics   *metrics.Metrics
	wg        sync.WaitGroup
}

func NewScheduler(m chat.Messenger, mx *metrics.Metrics) *Scheduler {
	return &Scheduler{messenger: m, metrics: mx}
}

// ScheduleDelete deletes ref once delay has elapsed. ctx only supplies the logger and values;
// its cancellation does not stop the deletion. A failed delete is logged and dropped.
func (s *Scheduler) ScheduleDelete(ctx context.Context, ref chat.MessageRef, delay time.Duration) {
	base := context.WithoutCancel(ctx)
	s.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer s.wg.Done()
		dctx, cancel := context.WithTimeout(base, deleteTimeout)
		defer cancel()

		logger := zerolog.Ctx(base).With().
			Int64("chat_id", ref.ChatID).
			Int64("message_id", ref.MessageID).
			Logger()
		if err := s.messenger.DeleteMessage(dctx, ref); err != nil {
			s.metrics.CleanupDeletes.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Msg("delayed delete failed")
			return
		}
		s.metrics.CleanupDeletes.WithLabelValues("ok").Inc()
		logger.Debug().Dur("delay", delay).Msg("delayed delete done")
	})
}

// Wait blocks until every scheduled deletion has run.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
