package telegram

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
)

const maxPollBackoff = 30 * time.Second

// UpdateFetcher is the long-polling side of the Bot API.
type UpdateFetcher interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Poller feeds updates fetched with getUpdates into an event channel.
type Poller struct {
	fetcher UpdateFetcher
	timeout time.Duration
	backoff time.Duration
	offset  int64
}

func NewPoller(fetcher UpdateFetcher, timeout time.Duration) *Poller {
	return &Poller{fetcher: fetcher, timeout: timeout, backoff: time.Second}
}

// Run polls until ctx is cancelled. Fetch errors are logged and retried with backoff.
func (p *Poller) Run(ctx context.Context, out chan<- chat.Event) error {
	logger := zerolog.Ctx(ctx).With().Str("component", "poller").Logger()
	logger.Info().Dur("timeout", p.timeout).Msg("Long polling started")

	delay := p.backoff
	for {
		updates, err := p.fetcher.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := delay
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = time.Duration(apiErr.RetryAfter) * time.Second
			}
			logger.Warn().Err(err).Dur("retry_in", wait).Msg("Failed to fetch updates")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay = min(delay*2, maxPollBackoff)
			continue
		}
		delay = p.backoff

		for _, u := range updates {
			if u.UpdateID >= p.offset {
				p.offset = u.UpdateID + 1
			}
			select {
			case out <- u.Event():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
