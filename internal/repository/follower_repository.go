package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/activity-feed/internal/model"
)

type FollowerRepository interface {
	// Upsert 设置 (userID, followerID) 的关注状态
	Upsert(ctx context.Context, userID, followerID string, status model.FollowerStatus) error
	ActiveFollowerIDs(ctx context.Context, userID string) ([]string, error)
	ListFollowers(ctx context.Context, userID string, offset, limit int) ([]*model.UserFollower, error)
}

type followerRepository struct {
	db *gorm.DB
}

func NewFollowerRepository(db *gorm.DB) FollowerRepository { return &followerRepository{db: db} }

func (r *followerRepository) Upsert(ctx context.Context, userID, followerID string, status model.FollowerStatus) error {
	now := time.Now()
	f := &model.UserFollower{
		ID:         uuid.New().String(),
		UserID:     userID,
		FollowerID: followerID,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "follower_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(f).Error
}

func (r *followerRepository) ActiveFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.UserFollower{}).
		Where("user_id = ? AND status = ?", userID, model.FollowerActive).
		Pluck("follower_id", &ids).Error
	return ids, err
}

func (r *followerRepository) ListFollowers(ctx context.Context, userID string, offset, limit int) ([]*model.UserFollower, error) {
	var res []*model.UserFollower
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.FollowerActive).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}
