package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/open-builders/exmatrikulator-bot/internal/common/errors"
	domain "github.com/open-builders/exmatrikulator-bot/internal/domain/member"
	rplatform "github.com/open-builders/exmatrikulator-bot/internal/platform/redis"
)

// MemberCache provides Redis-based caching for verified members.
type MemberCache struct {
	client *rplatform.Client
	ttl    time.Duration
}

func NewMemberCache(client *rplatform.Client, ttl time.Duration) *MemberCache {
	return &MemberCache{client: client, ttl: ttl}
}

func (c *MemberCache) keyByID(id int64) string { return fmt.Sprintf("member:id:%d", id) }

// Set stores the member by id.
func (c *MemberCache) Set(ctx context.Context, m *domain.Member) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.keyByID(m.ID), b, c.ttl).Err(); err != nil {
		return apperrors.NewCacheError("set member", err)
	}
	return nil
}

// GetByID returns the cached member, or nil on a cache miss.
func (c *MemberCache) GetByID(ctx context.Context, id int64) (*domain.Member, error) {
	v, err := c.client.Get(ctx, c.keyByID(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, apperrors.NewCacheError("get member", err)
	}
	var m domain.Member
	if err := json.Unmarshal(v, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
