package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/activity-feed/internal/model"
)

type ActionRepository interface {
	// FindByKey 按去重键查找，不存在时返回 (nil, nil)
	FindByKey(ctx context.Context, key model.DedupKey) (*model.Action, error)
	// Insert 插入 action；去重键冲突时不写入并返回 false
	Insert(ctx context.Context, action *model.Action) (bool, error)
	Delete(ctx context.Context, id string) error
	IDsByObjects(ctx context.Context, objects []string) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type actionRepository struct{ db *gorm.DB }

func NewActionRepository(db *gorm.DB) ActionRepository { return &actionRepository{db: db} }

func (r *actionRepository) FindByKey(ctx context.Context, key model.DedupKey) (*model.Action, error) {
	q := r.db.WithContext(ctx).Where("object = ? AND verb = ?", key.Object, key.Verb)
	if key.IsActorScoped() {
		q = q.Where("actor = ?", key.Actor)
	}
	var res []*model.Action
	if err := q.Where("dedup_key = ?", key.String()).Limit(1).Find(&res).Error; err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0], nil
}

func (r *actionRepository) Insert(ctx context.Context, action *model.Action) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedup_key"}}, DoNothing: true}).
		Create(action)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *actionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Action{}).Error
}

func (r *actionRepository) IDsByObjects(ctx context.Context, objects []string) ([]string, error) {
	if len(objects) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Action{}).Where("object IN ?", objects).Pluck("id", &ids).Error
	return ids, err
}

func (r *actionRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Action{})
	return res.RowsAffected, res.Error
}
