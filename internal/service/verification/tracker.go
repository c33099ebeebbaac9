package verification

import (
	"context"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	domain "github.com/open-builders/exmatrikulator-bot/internal/domain/member"
)

// Tracker records open challenges so they can expire or be bulk verified.
// Track returns the challenge it replaced, if any. Forget must leave a newer challenge of the
// same member in place.
type Tracker interface {
	Track(ctx context.Context, c chat.Challenge) (*chat.Challenge, error)
	Forget(ctx context.Context, c chat.Challenge) error
	Pending(ctx context.Context, chatID int64) ([]chat.Challenge, error)
}

// NopTracker is used when no tracking backend is configured.
type NopTracker struct{}

func (NopTracker) Track(context.Context, chat.Challenge) (*chat.Challenge, error) { return nil, nil }
func (NopTracker) Forget(context.Context, chat.Challenge) error                   { return nil }
func (NopTracker) Pending(context.Context, int64) ([]chat.Challenge, error)       { return nil, nil }

// Members is the part of the membership service the workflow needs.
type Members interface {
	Lookup(ctx context.Context, id int64) (*domain.Member, error)
	MarkVerified(ctx context.Context, id int64) error
}
