package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	domain "github.com/open-builders/exmatrikulator-bot/internal/domain/member"
	"github.com/open-builders/exmatrikulator-bot/internal/metrics"
)

// Issuer sends a challenge to every unverified member joining a group.
type Issuer struct {
	members   Members
	messenger chat.Messenger
	tracker   Tracker
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewIssuer builds an Issuer. tracker may be nil.
func NewIssuer(members Members, m chat.Messenger, tracker Tracker, mx *metrics.Metrics) *Issuer {
	if tracker == nil {
		tracker = NopTracker{}
	}
	return &Issuer{members: members, messenger: m, tracker: tracker, metrics: mx, now: time.Now}
}

// HandleJoin challenges each joined member that is unknown or unverified.
// Send failures only affect that member. Store failures skip the member and are returned
// after all other members have been handled.
func (i *Issuer) HandleJoin(ctx context.Context, ev chat.MembersJoined) error {
	logger := zerolog.Ctx(ctx).With().Int64("chat_id", ev.Message.ChatID).Logger()
	if !ev.ChatType.IsGroup() {
		logger.Debug().Str("chat_type", string(ev.ChatType)).Msg("join outside a group, no challenge")
		return nil
	}

	var errs []error
	for _, u := range ev.Members {
		ulog := logger.With().Int64("user_id", u.ID).Logger()
		if u.IsBot {
			ulog.Debug().Msg("bot joined, no challenge")
			continue
		}
		m, err := i.members.Lookup(ctx, u.ID)
		if err != nil {
			ulog.Error().Err(err).Msg("member lookup failed, challenge skipped")
			errs = append(errs, fmt.Errorf("lookup member %d: %w", u.ID, err))
			continue
		}
		if domain.IsVerified(m) {
			ulog.Debug().Msg("verified member joined")
			continue
		}
		ulog.Info().Str("state", domain.State(m)).Msg("issuing challenge")
		i.issue(ctx, ulog, ev, u)
	}
	return errors.Join(errs...)
}

func (i *Issuer) issue(ctx context.Context, logger zerolog.Logger, ev chat.MembersJoined, u chat.User) {
	ref, err := i.messenger.SendMessage(ctx, chat.OutgoingMessage{
		ChatID:    ev.Message.ChatID,
		Text:      challengeText(ev.ChatTitle, u),
		ParseMode: chat.ParseModeHTML,
		ReplyTo:   ev.Message.MessageID,
		Button:    &chat.Button{Text: buttonText, Data: Token(u.ID)},
	})
	if err != nil {
		i.metrics.ChallengesFailed.Inc()
		logger.Warn().Err(err).Msg("failed to send challenge")
		return
	}
	i.metrics.ChallengesIssued.Inc()

	c := chat.Challenge{
		ChatID:        ref.ChatID,
		UserID:        u.ID,
		MessageID:     ref.MessageID,
		JoinMessageID: ev.Message.MessageID,
		IssuedAt:      i.now(),
	}
	previous, err := i.tracker.Track(ctx, c)
	if err != nil {
		logger.Warn().Err(err).Int64("message_id", ref.MessageID).Msg("failed to track challenge")
		return
	}
	// A rejoin replaces the open challenge; its button would no longer resolve anything tracked.
	if previous != nil && previous.MessageID != c.MessageID {
		if err := i.messenger.DeleteMessage(ctx, previous.Ref()); err != nil {
			logger.Warn().Err(err).Int64("message_id", previous.MessageID).Msg("failed to delete replaced challenge")
		}
	}
}
