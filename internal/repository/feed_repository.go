package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/activity-feed/internal/model"
)

type FeedRepository interface {
	UserIDsByReference(ctx context.Context, referenceID string) ([]string, error)
	CreateBatch(ctx context.Context, feeds []model.Feed) error
	DeleteUsers(ctx context.Context, referenceID string, userIDs []string) (int64, error)
	DeleteByReferences(ctx context.Context, referenceIDs []string) (int64, error)
}

type feedRepository struct{ db *gorm.DB }

func NewFeedRepository(db *gorm.DB) FeedRepository { return &feedRepository{db: db} }

func (r *feedRepository) UserIDsByReference(ctx context.Context, referenceID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Feed{}).Where("reference_id = ?", referenceID).Pluck("user_id", &ids).Error
	return ids, err
}

// CreateBatch 写入一批 feed，(user_id, reference_id) 已存在的行被忽略
func (r *feedRepository) CreateBatch(ctx context.Context, feeds []model.Feed) error {
	if len(feeds) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&feeds).Error
}

func (r *feedRepository) DeleteUsers(ctx context.Context, referenceID string, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("reference_id = ? AND user_id IN ?", referenceID, userIDs).
		Delete(&model.Feed{})
	return res.RowsAffected, res.Error
}

func (r *feedRepository) DeleteByReferences(ctx context.Context, referenceIDs []string) (int64, error) {
	if len(referenceIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("reference_id IN ?", referenceIDs).Delete(&model.Feed{})
	return res.RowsAffected, res.Error
}
