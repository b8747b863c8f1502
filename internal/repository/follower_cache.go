package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/pkg/logger"
)

// CachedFollowerRepository keeps the active follower ids of a user in a redis
// list. Writes go through to the wrapped repository and drop the cached list.
type CachedFollowerRepository struct {
	next  FollowerRepository
	cache *redis.Client
	ttl   time.Duration
}

// NewCachedFollowerRepository wraps next with a redis cache. A non-positive
// ttl disables caching and returns next unchanged.
func NewCachedFollowerRepository(next FollowerRepository, cache *redis.Client, ttl time.Duration) FollowerRepository {
	if cache == nil || ttl <= 0 {
		return next
	}
	return &CachedFollowerRepository{next: next, cache: cache, ttl: ttl}
}

func followerIndexKey(userID string) string {
	return fmt.Sprintf("followers:active:%s", userID)
}

func (r *CachedFollowerRepository) Upsert(ctx context.Context, userID, followerID string, status model.FollowerStatus) error {
	if err := r.next.Upsert(ctx, userID, followerID, status); err != nil {
		return err
	}
	return r.Invalidate(ctx, userID)
}

func (r *CachedFollowerRepository) ActiveFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	key := followerIndexKey(userID)
	exists, err := r.cache.Exists(ctx, key).Result()
	if err == nil && exists > 0 {
		ids, err := r.cache.LRange(ctx, key, 0, -1).Result()
		if err == nil {
			return ids, nil
		}
	}
	if err != nil {
		logger.Warn("follower cache read failed", zap.String("user", userID), zap.Error(err))
	}

	ids, err := r.next.ActiveFollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		pipe := r.cache.Pipeline()
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, interfaceSlice(ids)...)
		pipe.Expire(ctx, key, r.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("follower cache fill failed", zap.String("user", userID), zap.Error(err))
		}
	}
	return ids, nil
}

func (r *CachedFollowerRepository) ListFollowers(ctx context.Context, userID string, offset, limit int) ([]*model.UserFollower, error) {
	return r.next.ListFollowers(ctx, userID, offset, limit)
}

// Invalidate drops the cached follower list of userID.
func (r *CachedFollowerRepository) Invalidate(ctx context.Context, userID string) error {
	return r.cache.Del(ctx, followerIndexKey(userID)).Err()
}

func interfaceSlice(strs []string) []interface{} {
	result := make([]interface{}, len(strs))
	for i, s := range strs {
		result[i] = s
	}
	return result
}
