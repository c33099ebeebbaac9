package membership

import (
	"context"

	"github.com/rs/zerolog"

	domain "github.com/open-builders/exmatrikulator-bot/internal/domain/member"
)

// Cache is the optional read-through cache of verified members.
type Cache interface {
	GetByID(ctx context.Context, id int64) (*domain.Member, error)
	Set(ctx context.Context, m *domain.Member) error
}

// Service orchestrates member access with repository and cache.
type Service struct {
	repo  domain.Repository
	cache Cache
}

// NewService builds the service. cache may be nil.
func NewService(repo domain.Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Lookup returns the stored member or nil when the member is unknown.
// Only verified members are served from cache; verification never reverts.
func (s *Service) Lookup(ctx context.Context, id int64) (*domain.Member, error) {
	if s.cache != nil {
		m, err := s.cache.GetByID(ctx, id)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", id).Msg("member cache read failed")
		} else if domain.IsVerified(m) {
			return m, nil
		}
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil || m == nil {
		return m, err
	}
	if s.cache != nil && m.Verified {
		if err := s.cache.Set(ctx, m); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", id).Msg("member cache write failed")
		}
	}
	return m, nil
}

// MarkVerified persists verified=true for id. Safe to call concurrently and repeatedly.
func (s *Service) MarkVerified(ctx context.Context, id int64) error {
	if err := s.repo.MarkVerified(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		// The record may carry the admin flag, so cache what the store holds.
		if m, err := s.repo.GetByID(ctx, id); err == nil && m != nil {
			if err := s.cache.Set(ctx, m); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", id).Msg("member cache write failed")
			}
		}
	}
	return nil
}
