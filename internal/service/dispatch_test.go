package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/testutil"
)

func joinEvent(actor, activityID string) model.ActivityUpdated {
	return model.ActivityUpdated{Auth: model.Auth{UserID: actor}, Action: "join", ActivityID: activityID}
}

func TestDispatchJoinScenario(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	testutil.Follow(t, f.db, "U1", "F1", model.FollowerActive)
	testutil.Follow(t, f.db, "U1", "F2", model.FollowerActive)
	testutil.Follow(t, f.db, "U1", "F3", model.FollowerInactive)

	for i := 0; i < 2; i++ {
		res, err := f.dispatcher.HandleUpdated(ctx, joinEvent("U1", "A"))
		require.NoError(t, err)
		assert.Equal(t, ResultProcessed, res)

		var actions []model.Action
		require.NoError(t, f.db.Find(&actions).Error)
		require.Len(t, actions, 1)
		assert.Equal(t, "U1", actions[0].Actor)
		assert.Equal(t, model.VerbJoin, actions[0].Verb)
		assert.Equal(t, "A", actions[0].Object)
		assert.Equal(t, []string{"F1", "F2", "U1"}, testutil.FeedUsers(t, f.db, actions[0].ID))
	}
}

func TestDispatchJoinIsPerActor(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	_, err := f.dispatcher.HandleUpdated(ctx, joinEvent("U1", "A"))
	require.NoError(t, err)
	_, err = f.dispatcher.HandleUpdated(ctx, joinEvent("U2", "A"))
	require.NoError(t, err)

	assert.EqualValues(t, 2, testutil.Count(t, f.db, &model.Action{}, "object = ? AND verb = ?", "A", model.VerbJoin))
}

func TestDispatchKeysWithSeparatorDoNotCollide(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	res, err := f.dispatcher.HandleUpdated(ctx, joinEvent("U1", "A"))
	require.NoError(t, err)
	assert.Equal(t, ResultProcessed, res)

	res, err = f.dispatcher.HandleCreated(ctx, model.ActivityCreated{Auth: model.Auth{UserID: "U1"}, ActivityID: "A:U1", Action: "join"})
	require.NoError(t, err)
	assert.Equal(t, ResultProcessed, res)

	assert.EqualValues(t, 2, testutil.Count(t, f.db, &model.Action{}, "verb = ?", model.VerbJoin))
	action, err := f.store.Find(ctx, model.ObjectScoped("A:U1", model.VerbJoin))
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, "A:U1", action.Object)
}

func TestDispatchRemoveRsvp(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	testutil.Follow(t, f.db, "U1", "F1", model.FollowerActive)
	remove := model.ActivityUpdated{Auth: model.Auth{UserID: "U1"}, Action: "remove_rsvp", ActivityID: "A"}

	t.Run("without join is a no-op", func(t *testing.T) {
		res, err := f.dispatcher.HandleUpdated(ctx, remove)
		require.NoError(t, err)
		assert.Equal(t, ResultNoop, res)
		assert.EqualValues(t, 0, testutil.Count(t, f.db, &model.Action{}, ""))
	})

	t.Run("removes the join and its feeds", func(t *testing.T) {
		_, err := f.dispatcher.HandleUpdated(ctx, joinEvent("U1", "A"))
		require.NoError(t, err)
		_, err = f.dispatcher.HandleUpdated(ctx, joinEvent("U2", "A"))
		require.NoError(t, err)
		require.EqualValues(t, 3, testutil.Count(t, f.db, &model.Feed{}, ""))

		res, err := f.dispatcher.HandleUpdated(ctx, remove)
		require.NoError(t, err)
		assert.Equal(t, ResultProcessed, res)

		joined, err := f.store.Find(ctx, model.ActorScoped("U1", "A", model.VerbJoin))
		require.NoError(t, err)
		assert.Nil(t, joined)
		assert.EqualValues(t, 0, testutil.Count(t, f.db, &model.Feed{}, "user_id IN ?", []string{"U1", "F1"}))
		// U2's join is untouched
		assert.EqualValues(t, 1, testutil.Count(t, f.db, &model.Action{}, ""))
		assert.EqualValues(t, 1, testutil.Count(t, f.db, &model.Feed{}, ""))
	})
}

func TestDispatchPhotoComment(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	testutil.Follow(t, f.db, "U2", "F1", model.FollowerActive)

	evt := model.ActivityUpdated{Auth: model.Auth{UserID: "U1"}, Action: "photo_comment", CommentID: "C1"}
	res, err := f.dispatcher.HandleUpdated(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, ResultProcessed, res)

	// object scoped: another actor on the same comment reuses the action
	evt.Auth.UserID = "U2"
	_, err = f.dispatcher.HandleUpdated(ctx, evt)
	require.NoError(t, err)

	action, err := f.store.Find(ctx, model.ObjectScoped("C1", model.VerbPhotoComment))
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, "U1", action.Actor)
	assert.EqualValues(t, 1, testutil.Count(t, f.db, &model.Action{}, ""))
	assert.Equal(t, []string{"F1", "U2"}, testutil.FeedUsers(t, f.db, action.ID))
}

func TestDispatchIgnoredVerbs(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	for _, verb := range []string{"create_activity", "like", ""} {
		res, err := f.dispatcher.HandleUpdated(ctx, model.ActivityUpdated{Auth: model.Auth{UserID: "U1"}, Action: verb, ActivityID: "A"})
		require.NoError(t, err, verb)
		assert.Equal(t, ResultIgnored, res, verb)
	}
	assert.EqualValues(t, 0, testutil.Count(t, f.db, &model.Action{}, ""))
}

func TestDispatchMalformedUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	cases := map[string]model.ActivityUpdated{
		"join without activity":         {Auth: model.Auth{UserID: "U1"}, Action: "join"},
		"remove without activity":       {Auth: model.Auth{UserID: "U1"}, Action: "remove_rsvp"},
		"photo comment without comment": {Auth: model.Auth{UserID: "U1"}, Action: "photo_comment", ActivityID: "A"},
		"missing actor":                 {Action: "join", ActivityID: "A"},
	}
	for name, evt := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.dispatcher.HandleUpdated(ctx, evt)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
	assert.EqualValues(t, 0, testutil.Count(t, f.db, &model.Action{}, ""))
	assert.EqualValues(t, 0, testutil.Count(t, f.db, &model.Feed{}, ""))
}

func TestDispatchCreated(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)
	testutil.Follow(t, f.db, "U1", "F1", model.FollowerActive)
	evt := model.ActivityCreated{Auth: model.Auth{UserID: "U1"}, ActivityID: "A", Action: "create_activity"}

	for i := 0; i < 2; i++ {
		res, err := f.dispatcher.HandleCreated(ctx, evt)
		require.NoError(t, err)
		assert.Equal(t, ResultProcessed, res)
	}

	assert.EqualValues(t, 1, testutil.Count(t, f.db, &model.Action{}, ""))
	action, err := f.store.Find(ctx, model.ObjectScoped("A", model.VerbCreateActivity))
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, []string{"F1", "U1"}, testutil.FeedUsers(t, f.db, action.ID))

	t.Run("missing activity is malformed", func(t *testing.T) {
		_, err := f.dispatcher.HandleCreated(ctx, model.ActivityCreated{Auth: model.Auth{UserID: "U1"}, Action: "create_activity"})
		require.ErrorIs(t, err, ErrMalformed)
		assert.EqualValues(t, 1, testutil.Count(t, f.db, &model.Action{}, ""))
	})

	t.Run("unknown verb is malformed", func(t *testing.T) {
		_, err := f.dispatcher.HandleCreated(ctx, model.ActivityCreated{Auth: model.Auth{UserID: "U1"}, ActivityID: "B", Action: "dance"})
		require.ErrorIs(t, err, ErrMalformed)
		assert.EqualValues(t, 1, testutil.Count(t, f.db, &model.Action{}, ""))
	})
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "processed", ResultProcessed.String())
	assert.Equal(t, "noop", ResultNoop.String())
	assert.Equal(t, "ignored", ResultIgnored.String())
}
