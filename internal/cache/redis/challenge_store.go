package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/open-builders/exmatrikulator-bot/internal/common/errors"
	"github.com/open-builders/exmatrikulator-bot/internal/domain/chat"
	rplatform "github.com/open-builders/exmatrikulator-bot/internal/platform/redis"
)

const deadlinesKey = "challenges:deadlines"

// ChallengeStore tracks open challenges per chat and their expiry deadlines.
//
// Layout:
//
//	challenge:<chat>:<user>   JSON chat.Challenge
//	challenges:chat:<chat>    set of user ids with an open challenge
//	challenges:deadlines      zset "<chat>:<user>" scored by unix deadline
type ChallengeStore struct {
	client *rplatform.Client
	// ttl of an unanswered challenge; zero keeps challenges until resolved.
	ttl time.Duration
}

func NewChallengeStore(client *rplatform.Client, ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{client: client, ttl: ttl}
}

func challengeKey(chatID, userID int64) string {
	return fmt.Sprintf("challenge:%d:%d", chatID, userID)
}

func chatKey(chatID int64) string { return fmt.Sprintf("challenges:chat:%d", chatID) }

func deadlineMember(chatID, userID int64) string { return fmt.Sprintf("%d:%d", chatID, userID) }

func parseDeadlineMember(s string) (chatID, userID int64, err error) {
	c, u, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed deadline member %q", s)
	}
	if chatID, err = strconv.ParseInt(c, 10, 64); err != nil {
		return 0, 0, err
	}
	if userID, err = strconv.ParseInt(u, 10, 64); err != nil {
		return 0, 0, err
	}
	return chatID, userID, nil
}

// Track records an issued challenge. A second challenge for the same member in the same chat
// replaces the first; the replaced record is returned so its message can be cleaned up.
func (s *ChallengeStore) Track(ctx context.Context, c chat.Challenge) (*chat.Challenge, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	key := challengeKey(c.ChatID, c.UserID)
	var previous *chat.Challenge
	err = s.client.Watch(ctx, func(tx *goredis.Tx) error {
		prev, err := getChallenge(ctx, tx, key)
		if err != nil {
			return err
		}
		previous = prev
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, key, b, 0)
			p.SAdd(ctx, chatKey(c.ChatID), c.UserID)
			if s.ttl > 0 {
				deadline := c.IssuedAt.Add(s.ttl)
				p.ZAdd(ctx, deadlinesKey, goredis.Z{
					Score:  float64(deadline.Unix()),
					Member: deadlineMember(c.ChatID, c.UserID),
				})
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, apperrors.NewCacheError("track challenge", err)
	}
	return previous, nil
}

// Forget removes the challenge c. It is a no-op when the member's tracked challenge is a
// different message, i.e. c was replaced by a later challenge, or when nothing is tracked.
func (s *ChallengeStore) Forget(ctx context.Context, c chat.Challenge) error {
	key := challengeKey(c.ChatID, c.UserID)
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := getChallenge(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != nil && current.MessageID != c.MessageID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Del(ctx, key)
			p.SRem(ctx, chatKey(c.ChatID), c.UserID)
			p.ZRem(ctx, deadlinesKey, deadlineMember(c.ChatID, c.UserID))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		// A new challenge was tracked meanwhile; it must survive.
		return nil
	}
	if err != nil {
		return apperrors.NewCacheError("forget challenge", err)
	}
	return nil
}

// Pending returns the open challenges of a chat.
func (s *ChallengeStore) Pending(ctx context.Context, chatID int64) ([]chat.Challenge, error) {
	ids, err := s.client.SMembers(ctx, chatKey(chatID)).Result()
	if err != nil {
		return nil, apperrors.NewCacheError("list pending challenges", err)
	}
	out := make([]chat.Challenge, 0, len(ids))
	for _, raw := range ids {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		c, err := getChallenge(ctx, s.client, challengeKey(chatID, userID))
		if err != nil {
			return nil, apperrors.NewCacheError("get challenge", err)
		}
		if c == nil {
			// index entry without a record
			_ = s.client.SRem(ctx, chatKey(chatID), raw).Err()
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

// Expired returns challenges whose deadline is at or before now.
func (s *ChallengeStore) Expired(ctx context.Context, now time.Time) ([]chat.Challenge, error) {
	members, err := s.client.ZRangeByScore(ctx, deadlinesKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, apperrors.NewCacheError("list expired challenges", err)
	}
	out := make([]chat.Challenge, 0, len(members))
	for _, m := range members {
		chatID, userID, err := parseDeadlineMember(m)
		if err != nil {
			_ = s.client.ZRem(ctx, deadlinesKey, m).Err()
			continue
		}
		c, err := getChallenge(ctx, s.client, challengeKey(chatID, userID))
		if err != nil {
			return nil, apperrors.NewCacheError("get challenge", err)
		}
		if c == nil {
			_ = s.client.ZRem(ctx, deadlinesKey, m).Err()
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

// getChallenge returns the challenge stored at key, or nil when there is none.
func getChallenge(ctx context.Context, g getter, key string) (*chat.Challenge, error) {
	v, err := g.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var c chat.Challenge
	if err := json.Unmarshal(v, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
