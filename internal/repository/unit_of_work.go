package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Actions    ActionRepository
	Feeds      FeedRepository
	Followers  FollowerRepository
	Activities ActivityRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Actions:    NewActionRepository(db),
		Feeds:      NewFeedRepository(db),
		Followers:  NewFollowerRepository(db),
		Activities: NewActivityRepository(db),
	}
}

// UnitOfWork 在一个事务内执行 fn，fn 返回错误时回滚
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos *Repositories) error) error
}

type gormUnitOfWork struct{ db *gorm.DB }

func NewUnitOfWork(db *gorm.DB) UnitOfWork { return &gormUnitOfWork{db: db} }

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(repos *Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
