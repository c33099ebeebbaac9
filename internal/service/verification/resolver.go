package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	"github.com/open-builders/exmatrikulator-bot/internal/metrics"
)

// Resolver turns challenge button presses into verifications.
type Resolver struct {
	members    Members
	messenger  chat.Messenger
	tracker    Tracker
	scheduler  *Scheduler
	confirmTTL time.Duration
	metrics    *metrics.Metrics
}

// NewResolver builds a Resolver. tracker may be nil.
func NewResolver(members Members, m chat.Messenger, tracker Tracker, scheduler *Scheduler, confirmTTL time.Duration, mx *metrics.Metrics) *Resolver {
	if tracker == nil {
		tracker = NopTracker{}
	}
	return &Resolver{
		members:    members,
		messenger:  m,
		tracker:    tracker,
		scheduler:  scheduler,
		confirmTTL: confirmTTL,
		metrics:    mx,
	}
}

// HandleCallback resolves a challenge response. handled is false when the callback
// does not carry a challenge token, so another handler may take it.
// Only a persistence failure is returned as an error; chat API failures are logged.
func (r *Resolver) HandleCallback(ctx context.Context, ev chat.CallbackResponse) (bool, error) {
	bound, ok := ParseToken(ev.Token)
	if !ok {
		return false, nil
	}
	logger := zerolog.Ctx(ctx).With().
		Int64("user_id", ev.From.ID).
		Int64("bound_user_id", bound).
		Logger()

	if bound != ev.From.ID {
		r.metrics.Verifications.WithLabelValues("rejected").Inc()
		logger.Info().Msg("challenge pressed by another user")
		if err := r.messenger.AnswerCallback(ctx, ev.ID, notForYouText); err != nil {
			logger.Warn().Err(err).Msg("failed to answer callback")
		}
		return true, nil
	}

	// Stops the client's loading indicator.
	if err := r.messenger.AnswerCallback(ctx, ev.ID, ""); err != nil {
		logger.Warn().Err(err).Msg("failed to acknowledge callback")
	}

	// Persist first: the challenge stays in chat when the write fails, so the member can retry.
	if err := r.members.MarkVerified(ctx, ev.From.ID); err != nil {
		r.metrics.Verifications.WithLabelValues("failed").Inc()
		return true, fmt.Errorf("mark member %d verified: %w", ev.From.ID, err)
	}
	r.metrics.Verifications.WithLabelValues("verified").Inc()
	logger.Info().Msg("member verified")

	if ev.Origin == nil {
		logger.Warn().Msg("callback without origin message, nothing to clean up")
		return true, nil
	}
	origin := *ev.Origin
	chatID := origin.Ref.ChatID

	confirmation, sendErr := r.messenger.SendMessage(ctx, chat.OutgoingMessage{
		ChatID:    chatID,
		Text:      confirmationText(ev.From),
		ParseMode: chat.ParseModeHTML,
	})
	if sendErr != nil {
		logger.Warn().Err(sendErr).Int64("chat_id", chatID).Msg("failed to send confirmation")
	}

	r.deleteWithQuoted(ctx, logger, origin)
	answered := chat.Challenge{ChatID: chatID, UserID: ev.From.ID, MessageID: origin.Ref.MessageID}
	if err := r.tracker.Forget(ctx, answered); err != nil {
		logger.Warn().Err(err).Msg("failed to forget challenge")
	}

	if sendErr == nil {
		r.scheduler.ScheduleDelete(ctx, confirmation, r.confirmTTL)
	}
	return true, nil
}

// VerifyPending verifies every member with an open tracked challenge in chatID,
// removing their challenges. It returns how many members were verified.
func (r *Resolver) VerifyPending(ctx context.Context, chatID int64) (int, error) {
	logger := zerolog.Ctx(ctx).With().Int64("chat_id", chatID).Logger()
	pending, err := r.tracker.Pending(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("list pending challenges: %w", err)
	}

	var (
		verified int
		errs     []error
	)
	for _, c := range pending {
		if err := r.members.MarkVerified(ctx, c.UserID); err != nil {
			errs = append(errs, fmt.Errorf("mark member %d verified: %w", c.UserID, err))
			continue
		}
		verified++
		r.metrics.Verifications.WithLabelValues("verified").Inc()

		origin := chat.OriginMessage{Ref: c.Ref()}
		if c.JoinMessageID != 0 {
			origin.ReplyTo = &chat.MessageRef{ChatID: c.ChatID, MessageID: c.JoinMessageID}
		}
		r.deleteWithQuoted(ctx, logger.With().Int64("user_id", c.UserID).Logger(), origin)
		if err := r.tracker.Forget(ctx, c); err != nil {
			logger.Warn().Err(err).Int64("user_id", c.UserID).Msg("failed to forget challenge")
		}
	}
	logger.Info().Int("verified", verified).Int("pending", len(pending)).Msg("bulk verification done")
	return verified, errors.Join(errs...)
}

func (r *Resolver) deleteWithQuoted(ctx context.Context, logger zerolog.Logger, origin chat.OriginMessage) {
	if origin.ReplyTo != nil && !origin.ReplyTo.IsZero() {
		if err := r.messenger.DeleteMessage(ctx, *origin.ReplyTo); err != nil {
			logger.Debug().Err(err).Int64("message_id", origin.ReplyTo.MessageID).Msg("failed to delete quoted message")
		}
	}
	if err := r.messenger.DeleteMessage(ctx, origin.Ref); err != nil {
		logger.Warn().Err(err).Int64("message_id", origin.Ref.MessageID).Msg("failed to delete challenge")
	}
}
