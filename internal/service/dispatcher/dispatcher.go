package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	domain "github.com/open-builders/exmatrikulator-bot/internal/domain/member"
	"github.com/open-builders/exmatrikulator-bot/internal/metrics"
)

// Members looks up the stored record of the acting user.
type Members interface {
	Lookup(ctx context.Context, id int64) (*domain.Member, error)
}

// JoinHandler reacts to members joining a chat.
type JoinHandler interface {
	HandleJoin(ctx context.Context, ev chat.MembersJoined) error
}

// CallbackHandler reacts to inline button presses. It reports false for callbacks it does not own.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, ev chat.CallbackResponse) (bool, error)
}

// CommandHandler reacts to text messages. It reports false for texts that are not its commands.
type CommandHandler interface {
	Handle(ctx context.Context, msg chat.TextMessage, sender *domain.Member) (bool, error)
}

// Dispatcher routes inbound events one at a time, in arrival order.
type Dispatcher struct {
	members   Members
	messenger chat.Messenger
	joins     JoinHandler
	commands  CommandHandler
	callbacks []CallbackHandler
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// New builds a Dispatcher. Callback handlers are tried in the given order.
func New(members Members, m chat.Messenger, joins JoinHandler, commands CommandHandler, mx *metrics.Metrics, callbacks ...CallbackHandler) *Dispatcher {
	return &Dispatcher{
		members:   members,
		messenger: m,
		joins:     joins,
		commands:  commands,
		callbacks: callbacks,
		metrics:   mx,
		logger:    log.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Run consumes events until ctx is done or events is closed.
// A failing event is logged; it never stops the loop.
func (d *Dispatcher) Run(ctx context.Context, events <-chan chat.Event) error {
	d.logger.Info().Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("dispatcher stopped")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				d.logger.Info().Msg("event stream closed")
				return nil
			}
			d.Dispatch(ctx, ev)
		}
	}
}

// Dispatch handles a single event and logs its outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, ev chat.Event) {
	kind := string(ev.Kind())
	logger := d.logger.With().Str("event_id", uuid.NewString()).Str("kind", kind).Logger()
	ctx = logger.WithContext(ctx)
	d.metrics.Events.WithLabelValues(kind).Inc()

	if err := d.safeRoute(ctx, ev); err != nil {
		d.metrics.EventErrors.WithLabelValues(kind).Inc()
		logger.Error().Err(err).Msg("event handling failed")
		return
	}
	logger.Debug().Msg("event handled")
}

func (d *Dispatcher) safeRoute(ctx context.Context, ev chat.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return d.route(ctx, ev)
}

func (d *Dispatcher) route(ctx context.Context, ev chat.Event) error {
	switch e := ev.(type) {
	case chat.TextMessage:
		return d.onText(ctx, e)
	case chat.MembersJoined:
		return d.joins.HandleJoin(ctx, e)
	case chat.MemberLeft:
		return d.onLeft(ctx, e)
	case chat.CallbackResponse:
		return d.onCallback(ctx, e)
	case chat.Unsupported:
		zerolog.Ctx(ctx).Debug().Int64("update_id", e.UpdateID).Str("description", e.Description).Msg("unhandled update")
		return nil
	default:
		return fmt.Errorf("unknown event type %T", ev)
	}
}

func (d *Dispatcher) onText(ctx context.Context, msg chat.TextMessage) error {
	sender, err := d.members.Lookup(ctx, msg.From.ID)
	if err != nil {
		return fmt.Errorf("lookup sender %d: %w", msg.From.ID, err)
	}
	handled, err := d.commands.Handle(ctx, msg, sender)
	if err != nil {
		return err
	}
	if !handled {
		zerolog.Ctx(ctx).Debug().
			Int64("chat_id", msg.Message.ChatID).
			Int64("user_id", msg.From.ID).
			Str("state", domain.State(sender)).
			Msg("text message ignored")
	}
	return nil
}

// onLeft removes the leave notice of members who never verified.
func (d *Dispatcher) onLeft(ctx context.Context, ev chat.MemberLeft) error {
	logger := zerolog.Ctx(ctx).With().Int64("chat_id", ev.Message.ChatID).Int64("user_id", ev.Member.ID).Logger()
	m, err := d.members.Lookup(ctx, ev.Member.ID)
	if err != nil {
		return fmt.Errorf("lookup leaving member %d: %w", ev.Member.ID, err)
	}
	if domain.IsVerified(m) {
		logger.Debug().Msg("verified member left")
		return nil
	}
	logger.Info().Str("state", domain.State(m)).Msg("deleting leave notice of unverified member")
	if err := d.messenger.DeleteMessage(ctx, ev.Message); err != nil {
		logger.Warn().Err(err).Msg("failed to delete leave notice")
	}
	return nil
}

func (d *Dispatcher) onCallback(ctx context.Context, ev chat.CallbackResponse) error {
	for _, h := range d.callbacks {
		handled, err := h.HandleCallback(ctx, ev)
		if handled || err != nil {
			return err
		}
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", ev.From.ID).Str("data", ev.Token).Msg("callback without handler")
	return nil
}
