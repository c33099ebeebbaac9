package commands

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	domain "github.com/open-builders/exmatrikulator-bot/internal/domain/member"
	"github.com/open-builders/exmatrikulator-bot/internal/service/membership"
)

const (
	CommandAboutMe   = "/aboutme"
	CommandVerifyAll = "/verifyAll"
)

// BulkVerifier verifies all members with an open challenge in a chat.
type BulkVerifier interface {
	VerifyPending(ctx context.Context, chatID int64) (int, error)
}

// Scheduler deletes transient replies later.
type Scheduler interface {
	ScheduleDelete(ctx context.Context, ref chat.MessageRef, delay time.Duration)
}

// Service answers the bot's text commands.
type Service struct {
	messenger chat.Messenger
	botName   string
	admins    membership.AdminChecker
	bulk      BulkVerifier
	scheduler Scheduler
	replyTTL  time.Duration
}

// NewService builds the command handler. botName is the bot's username without "@";
// commands addressed to another bot are ignored.
func NewService(m chat.Messenger, botName string, admins membership.AdminChecker, bulk BulkVerifier, scheduler Scheduler, replyTTL time.Duration) *Service {
	return &Service{messenger: m, botName: botName, admins: admins, bulk: bulk, scheduler: scheduler, replyTTL: replyTTL}
}

// Parse returns the command of a message text, without arguments and without an @botname suffix.
// Commands are case-sensitive, usernames are not. A suffix naming a bot other than botName
// is not a command for this bot; an empty botName accepts any suffix.
func Parse(text, botName string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}
	cmd, target, addressed := strings.Cut(fields[0], "@")
	if addressed && botName != "" && !strings.EqualFold(target, botName) {
		return "", false
	}
	return cmd, true
}

// Handle runs the command in msg. sender is the stored record of the author and may be nil.
// handled is false for texts that are not known commands.
func (s *Service) Handle(ctx context.Context, msg chat.TextMessage, sender *domain.Member) (bool, error) {
	cmd, ok := Parse(msg.Text, s.botName)
	if !ok {
		return false, nil
	}
	switch cmd {
	case CommandAboutMe:
		s.aboutMe(ctx, msg, sender)
		return true, nil
	case CommandVerifyAll:
		return true, s.verifyAll(ctx, msg, sender)
	default:
		return false, nil
	}
}

func (s *Service) aboutMe(ctx context.Context, msg chat.TextMessage, sender *domain.Member) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("state", domain.State(sender)).Msg("handling /aboutme")

	name := html.EscapeString(msg.From.DisplayName())
	var text string
	if sender != nil {
		text = fmt.Sprintf("Hi, %s! Das weiß ich über dich:\n<pre>%s</pre>", name, describe(sender))
	} else {
		text = fmt.Sprintf("Hi, %s!\nDu hast dich bisher noch nicht verifiziert. "+
			"Wenn ein Admin /verifyAll ausführt, wirst du automatisch verifiziert.", name)
	}
	if _, err := s.messenger.SendMessage(ctx, chat.OutgoingMessage{
		ChatID:    msg.Message.ChatID,
		Text:      text,
		ParseMode: chat.ParseModeHTML,
		ReplyTo:   msg.Message.MessageID,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to answer /aboutme")
	}
}

func (s *Service) verifyAll(ctx context.Context, msg chat.TextMessage, sender *domain.Member) error {
	logger := zerolog.Ctx(ctx).With().Int64("user_id", msg.From.ID).Int64("chat_id", msg.Message.ChatID).Logger()
	if !msg.ChatType.IsGroup() {
		logger.Debug().Msg("/verifyAll outside a group ignored")
		return nil
	}

	isAdmin, err := s.admins.IsAdmin(ctx, msg.Message.ChatID, msg.From.ID, sender)
	if err != nil {
		logger.Warn().Err(err).Msg("admin check failed")
	}
	if !isAdmin {
		logger.Info().Msg("/verifyAll by non-admin ignored")
		return nil
	}
	logger.Info().Msg("/verifyAll by admin")

	n, err := s.bulk.VerifyPending(ctx, msg.Message.ChatID)
	if err != nil {
		return fmt.Errorf("verify pending members: %w", err)
	}

	ref, err := s.messenger.SendMessage(ctx, chat.OutgoingMessage{
		ChatID:  msg.Message.ChatID,
		Text:    fmt.Sprintf("%d ausstehende Mitglieder verifiziert.", n),
		ReplyTo: msg.Message.MessageID,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to answer /verifyAll")
		return nil
	}
	s.scheduler.ScheduleDelete(ctx, ref, s.replyTTL)
	return nil
}

func describe(m *domain.Member) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:             %d\n", m.ID)
	fmt.Fprintf(&b, "Verifiziert:    %s\n", yesNo(m.Verified))
	fmt.Fprintf(&b, "Globaler Admin: %s\n", yesNo(m.IsGlobalAdmin))
	fmt.Fprintf(&b, "Bekannt seit:   %s", m.CreatedAt.UTC().Format(time.DateTime))
	if m.VerifiedAt != nil {
		fmt.Fprintf(&b, "\nVerifiziert am: %s", m.VerifiedAt.UTC().Format(time.DateTime))
	}
	return html.EscapeString(b.String())
}

func yesNo(v bool) string {
	if v {
		return "ja"
	}
	return "nein"
}
