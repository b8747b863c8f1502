package service

import (
	"context"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/repository"
)

// RelationshipService 关系链服务，维护扇出所依赖的粉丝表
type RelationshipService interface {
	// Follow 让 fromUserID 关注 toUserID
	Follow(ctx context.Context, fromUserID, toUserID string) error
	Unfollow(ctx context.Context, fromUserID, toUserID string) error
	ListFollowers(ctx context.Context, userID string, page, pageSize int) ([]string, error)
}

type relationshipService struct {
	followers repository.FollowerRepository
}

// NewRelationshipService 传入带缓存的仓储时，关注变更会同时失效粉丝缓存
func NewRelationshipService(followers repository.FollowerRepository) RelationshipService {
	return &relationshipService{followers: followers}
}

func (s *relationshipService) Follow(ctx context.Context, fromUserID, toUserID string) error {
	if fromUserID == toUserID {
		return ErrFollowSelf
	}
	return s.followers.Upsert(ctx, toUserID, fromUserID, model.FollowerActive)
}

// Unfollow 只把关系置为 inactive，保留历史
func (s *relationshipService) Unfollow(ctx context.Context, fromUserID, toUserID string) error {
	if fromUserID == toUserID {
		return ErrFollowSelf
	}
	return s.followers.Upsert(ctx, toUserID, fromUserID, model.FollowerInactive)
}

func (s *relationshipService) ListFollowers(ctx context.Context, userID string, page, pageSize int) ([]string, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize
	items, err := s.followers.ListFollowers(ctx, userID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	res := make([]string, len(items))
	for i, it := range items {
		res[i] = it.FollowerID
	}
	return res, nil
}
