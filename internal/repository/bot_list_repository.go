package repository

import (
	"context"
	"time"

	"botdeck/backend/pkg/botapi"
	"botdeck/backend/pkg/redis"
)

// BotListRepository caches each user's last fetched bot list.
// The trading service stays authoritative; the cache only backs list views between fetches.
type BotListRepository struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewBotListRepository creates a new bot list cache
func NewBotListRepository(redisClient *redis.Client, ttl time.Duration) *BotListRepository {
	return &BotListRepository{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Save replaces the cached list
func (r *BotListRepository) Save(ctx context.Context, userID string, bots []botapi.Bot) error {
	if bots == nil {
		bots = []botapi.Bot{}
	}
	return r.redis.SetJSON(ctx, redis.BotListKey(userID), bots, r.ttl)
}

// Get returns the cached list. ok is false when nothing is cached.
func (r *BotListRepository) Get(ctx context.Context, userID string) (bots []botapi.Bot, ok bool, err error) {
	if err := r.redis.GetJSON(ctx, redis.BotListKey(userID), &bots); err != nil {
		if redis.IsNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return bots, true, nil
}

// Upsert replaces the cached entry for bot, keeping list order. Missing caches are left alone.
func (r *BotListRepository) Upsert(ctx context.Context, userID string, bot botapi.Bot) error {
	return r.modify(ctx, userID, func(bots []botapi.Bot) []botapi.Bot {
		for i := range bots {
			if bots[i].ID == bot.ID {
				bots[i] = bot
				return bots
			}
		}
		return append(bots, bot)
	})
}

// Remove drops botID from the cached list
func (r *BotListRepository) Remove(ctx context.Context, userID, botID string) error {
	return r.modify(ctx, userID, func(bots []botapi.Bot) []botapi.Bot {
		out := bots[:0]
		for _, b := range bots {
			if b.ID != botID {
				out = append(out, b)
			}
		}
		return out
	})
}

func (r *BotListRepository) modify(ctx context.Context, userID string, fn func([]botapi.Bot) []botapi.Bot) error {
	bots, ok, err := r.Get(ctx, userID)
	if err != nil || !ok {
		return err
	}

	// keep the original expiry so edits do not extend a stale list
	ttl, err := r.redis.TTL(ctx, redis.BotListKey(userID))
	if err != nil || ttl <= 0 {
		ttl = r.ttl
	}
	return r.redis.SetJSON(ctx, redis.BotListKey(userID), fn(bots), ttl)
}
