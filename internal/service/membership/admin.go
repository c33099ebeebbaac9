package membership

import (
	"context"
	"slices"

	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	domain "github.com/open-builders/exmatrikulator-bot/internal/domain/member"
)

// AdminChecker decides whether userID may run admin commands in chatID.
// m is the stored record of userID and may be nil.
type AdminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64, m *domain.Member) (bool, error)
}

// StoredFlag grants admin to members with the global admin flag. The flag is read from the
// store on every check: unlike verification it can be revoked, so a cached record is not trusted.
type StoredFlag struct {
	Members domain.Repository
}

func (f StoredFlag) IsAdmin(ctx context.Context, _, userID int64, _ *domain.Member) (bool, error) {
	m, err := f.Members.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return domain.IsAdmin(m), nil
}

// ChatAdministrators asks the chat service for the current administrator list. No caching.
type ChatAdministrators struct {
	Messenger chat.Messenger
}

func (c ChatAdministrators) IsAdmin(ctx context.Context, chatID, userID int64, _ *domain.Member) (bool, error) {
	admins, err := c.Messenger.ChatAdministrators(ctx, chatID)
	if err != nil {
		return false, err
	}
	return slices.Contains(admins, userID), nil
}

// Chain tries checkers in order; the first one answering true wins.
// An error is returned only when no checker granted admin.
type Chain []AdminChecker

func (c Chain) IsAdmin(ctx context.Context, chatID, userID int64, m *domain.Member) (bool, error) {
	var firstErr error
	for _, checker := range c {
		ok, err := checker.IsAdmin(ctx, chatID, userID, m)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, firstErr
}

// DefaultAdminChecker checks the stored flag first and falls back to the live administrator list.
func DefaultAdminChecker(repo domain.Repository, m chat.Messenger) AdminChecker {
	return Chain{StoredFlag{Members: repo}, ChatAdministrators{Messenger: m}}
}
