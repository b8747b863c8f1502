package service

import (
	"testing"

	"gorm.io/gorm"

	"github.com/d60-Lab/activity-feed/internal/repository"
	"github.com/d60-Lab/activity-feed/internal/testutil"
)

type fixture struct {
	db         *gorm.DB
	repos      *repository.Repositories
	store      *ActionStore
	fanout     *FanoutService
	dispatcher *Dispatcher
	deletion   *DeletionService
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	repos := repository.NewRepositories(db)
	uow := repository.NewUnitOfWork(db)

	store := NewActionStore(repos.Actions)
	fanout := NewFanoutService(repos.Followers, repos.Feeds, 2, 3)
	return &fixture{
		db:         db,
		repos:      repos,
		store:      store,
		fanout:     fanout,
		dispatcher: NewDispatcher(store, fanout, uow),
		deletion:   NewDeletionService(uow, 2),
	}
}
