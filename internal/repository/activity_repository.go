package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/activity-feed/internal/model"
)

// ChildCounts 按表统计删除的活动子记录
type ChildCounts struct {
	Invitees int64
	Likes    int64
	Photos   int64
	Rsvps    int64
	Comments int64
}

type ActivityRepository interface {
	// PhotoCommentIDs 返回活动下带照片引用的评论 ID
	PhotoCommentIDs(ctx context.Context, activityID string) ([]string, error)
	DeleteChildren(ctx context.Context, activityID string) (ChildCounts, error)
}

type activityRepository struct{ db *gorm.DB }

func NewActivityRepository(db *gorm.DB) ActivityRepository { return &activityRepository{db: db} }

func (r *activityRepository) PhotoCommentIDs(ctx context.Context, activityID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Comment{}).
		Where("activity_id = ? AND photo_id IS NOT NULL", activityID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *activityRepository) DeleteChildren(ctx context.Context, activityID string) (ChildCounts, error) {
	var counts ChildCounts
	db := r.db.WithContext(ctx)
	for _, t := range []struct {
		model interface{}
		n     *int64
	}{
		{&model.Invitee{}, &counts.Invitees},
		{&model.Like{}, &counts.Likes},
		{&model.Photo{}, &counts.Photos},
		{&model.Rsvp{}, &counts.Rsvps},
		{&model.Comment{}, &counts.Comments},
	} {
		res := db.Where("activity_id = ?", activityID).Delete(t.model)
		if res.Error != nil {
			return counts, res.Error
		}
		*t.n = res.RowsAffected
	}
	return counts, nil
}
