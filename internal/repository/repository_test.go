package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/testutil"
)

func newAction(key model.DedupKey, actor string) *model.Action {
	return &model.Action{
		ID:        uuid.NewString(),
		Actor:     actor,
		Verb:      key.Verb,
		Object:    key.Object,
		DedupKey:  key.String(),
		CreatedAt: time.Now(),
	}
}

func TestActionRepository(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := testutil.Context(t)
	repo := NewActionRepository(db)

	t.Run("missing key is not an error", func(t *testing.T) {
		a, err := repo.FindByKey(ctx, model.ObjectScoped("nope", model.VerbCreateActivity))
		require.NoError(t, err)
		require.Nil(t, a)
	})

	t.Run("insert conflicts on dedup key", func(t *testing.T) {
		require := require.New(t)
		key := model.ObjectScoped("a1", model.VerbCreateActivity)

		first := newAction(key, "u1")
		created, err := repo.Insert(ctx, first)
		require.NoError(err)
		require.True(created)

		created, err = repo.Insert(ctx, newAction(key, "u2"))
		require.NoError(err)
		require.False(created)

		found, err := repo.FindByKey(ctx, key)
		require.NoError(err)
		require.Equal(first.ID, found.ID)
		require.Equal("u1", found.Actor)
		require.EqualValues(1, testutil.Count(t, db, &model.Action{}, "object = ?", "a1"))
	})

	t.Run("actor scoped keys are per actor", func(t *testing.T) {
		require := require.New(t)
		for _, actor := range []string{"u1", "u2"} {
			created, err := repo.Insert(ctx, newAction(model.ActorScoped(actor, "a2", model.VerbJoin), actor))
			require.NoError(err)
			require.True(created)
		}
		found, err := repo.FindByKey(ctx, model.ActorScoped("u2", "a2", model.VerbJoin))
		require.NoError(err)
		require.Equal("u2", found.Actor)

		ids, err := repo.IDsByObjects(ctx, []string{"a2"})
		require.NoError(err)
		require.Len(ids, 2)

		n, err := repo.DeleteByIDs(ctx, ids)
		require.NoError(err)
		require.EqualValues(2, n)

		n, err = repo.DeleteByIDs(ctx, nil)
		require.NoError(err)
		require.Zero(n)
	})
}

func TestFeedRepository(t *testing.T) {
	require := require.New(t)
	db := testutil.NewDB(t)
	ctx := testutil.Context(t)
	repo := NewFeedRepository(db)

	feeds := []model.Feed{
		{ID: uuid.NewString(), UserID: "u1", ReferenceID: "act1"},
		{ID: uuid.NewString(), UserID: "u2", ReferenceID: "act1"},
		{ID: uuid.NewString(), UserID: "u1", ReferenceID: "act2"},
	}
	require.NoError(repo.CreateBatch(ctx, feeds))

	// same (user, reference) pair with a new id is ignored
	require.NoError(repo.CreateBatch(ctx, []model.Feed{{ID: uuid.NewString(), UserID: "u1", ReferenceID: "act1"}}))
	require.Equal([]string{"u1", "u2"}, testutil.FeedUsers(t, db, "act1"))

	ids, err := repo.UserIDsByReference(ctx, "act1")
	require.NoError(err)
	require.ElementsMatch([]string{"u1", "u2"}, ids)

	n, err := repo.DeleteUsers(ctx, "act1", []string{"u2"})
	require.NoError(err)
	require.EqualValues(1, n)
	require.Equal([]string{"u1"}, testutil.FeedUsers(t, db, "act1"))

	n, err = repo.DeleteByReferences(ctx, []string{"act1", "act2"})
	require.NoError(err)
	require.EqualValues(2, n)
	require.EqualValues(0, testutil.Count(t, db, &model.Feed{}, ""))
}

func TestFollowerRepository(t *testing.T) {
	require := require.New(t)
	db := testutil.NewDB(t)
	ctx := testutil.Context(t)
	repo := NewFollowerRepository(db)

	require.NoError(repo.Upsert(ctx, "u1", "f1", model.FollowerActive))
	require.NoError(repo.Upsert(ctx, "u1", "f2", model.FollowerActive))
	require.NoError(repo.Upsert(ctx, "u1", "f3", model.FollowerInactive))

	ids, err := repo.ActiveFollowerIDs(ctx, "u1")
	require.NoError(err)
	require.ElementsMatch([]string{"f1", "f2"}, ids)

	// upsert flips status without duplicating the pair
	require.NoError(repo.Upsert(ctx, "u1", "f2", model.FollowerInactive))
	ids, err = repo.ActiveFollowerIDs(ctx, "u1")
	require.NoError(err)
	require.Equal([]string{"f1"}, ids)
	require.EqualValues(3, testutil.Count(t, db, &model.UserFollower{}, "user_id = ?", "u1"))

	list, err := repo.ListFollowers(ctx, "u1", 0, 10)
	require.NoError(err)
	require.Len(list, 1)
	require.Equal("f1", list[0].FollowerID)
}

func TestActivityRepository(t *testing.T) {
	require := require.New(t)
	db := testutil.NewDB(t)
	ctx := testutil.Context(t)
	repo := NewActivityRepository(db)

	photo := "p1"
	require.NoError(db.Create(&model.Comment{ID: "c1", ActivityID: "a1", UserID: "u1", PhotoID: &photo}).Error)
	require.NoError(db.Create(&model.Comment{ID: "c2", ActivityID: "a1", UserID: "u1", Body: "plain"}).Error)
	require.NoError(db.Create(&model.Comment{ID: "c3", ActivityID: "a2", UserID: "u1", PhotoID: &photo}).Error)
	require.NoError(db.Create(&model.Photo{ID: photo, ActivityID: "a1", UserID: "u1"}).Error)
	require.NoError(db.Create(&model.Like{ID: "l1", ActivityID: "a1", UserID: "u2"}).Error)

	ids, err := repo.PhotoCommentIDs(ctx, "a1")
	require.NoError(err)
	require.Equal([]string{"c1"}, ids)

	counts, err := repo.DeleteChildren(ctx, "a1")
	require.NoError(err)
	require.Equal(ChildCounts{Likes: 1, Photos: 1, Comments: 2}, counts)
	require.EqualValues(1, testutil.Count(t, db, &model.Comment{}, ""))
}

func TestUnitOfWorkRollsBack(t *testing.T) {
	require := require.New(t)
	db := testutil.NewDB(t)
	ctx := testutil.Context(t)

	err := NewUnitOfWork(db).Do(ctx, func(repos *Repositories) error {
		if err := repos.Feeds.CreateBatch(ctx, []model.Feed{{ID: uuid.NewString(), UserID: "u1", ReferenceID: "act1"}}); err != nil {
			return err
		}
		return errRollback
	})
	require.ErrorIs(err, errRollback)
	require.EqualValues(0, testutil.Count(t, db, &model.Feed{}, ""))
}
