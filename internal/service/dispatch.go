package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/repository"
	"github.com/d60-Lab/activity-feed/pkg/logger"
)

// Result 描述一次事件分发的结果
type Result int

const (
	// ResultProcessed 写入或确认了 action 并完成扇出
	ResultProcessed Result = iota
	// ResultNoop 没有可操作的数据（例如 remove_rsvp 时不存在 join）
	ResultNoop
	// ResultIgnored 该 verb 不需要处理
	ResultIgnored
)

func (r Result) String() string {
	switch r {
	case ResultProcessed:
		return "processed"
	case ResultNoop:
		return "noop"
	case ResultIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Dispatcher maps activity events onto the action store and the fan-out engine.
type Dispatcher struct {
	store  *ActionStore
	pusher Pusher
	uow    repository.UnitOfWork
}

func NewDispatcher(store *ActionStore, pusher Pusher, uow repository.UnitOfWork) *Dispatcher {
	return &Dispatcher{store: store, pusher: pusher, uow: uow}
}

// HandleCreated records the object-scoped action named by the event and fans
// it out from the event author. Redelivery finds the same action and only
// repeats the fan-out.
func (d *Dispatcher) HandleCreated(ctx context.Context, evt model.ActivityCreated) (Result, error) {
	if evt.ActivityID == "" || evt.Auth.UserID == "" {
		return ResultIgnored, fmt.Errorf("%w: activityId and auth.userId are required", ErrMalformed)
	}
	verb, err := model.ParseVerb(evt.Action)
	if err != nil {
		return ResultIgnored, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return d.createAndPush(ctx, model.ObjectScoped(evt.ActivityID, verb), evt.Auth.UserID)
}

// HandleUpdated dispatches an update event on its verb.
func (d *Dispatcher) HandleUpdated(ctx context.Context, evt model.ActivityUpdated) (Result, error) {
	actor := evt.Auth.UserID
	if actor == "" {
		return ResultIgnored, fmt.Errorf("%w: auth.userId is required", ErrMalformed)
	}

	verb, err := model.ParseVerb(evt.Action)
	if err != nil && !errors.Is(err, model.ErrUnknownVerb) {
		return ResultIgnored, err
	}

	switch verb {
	case model.VerbJoin:
		if evt.ActivityID == "" {
			return ResultIgnored, fmt.Errorf("%w: join requires activityId", ErrMalformed)
		}
		return d.createAndPush(ctx, model.ActorScoped(actor, evt.ActivityID, model.VerbJoin), actor)

	case model.VerbRemoveRsvp:
		if evt.ActivityID == "" {
			return ResultIgnored, fmt.Errorf("%w: remove_rsvp requires activityId", ErrMalformed)
		}
		return d.removeJoin(ctx, model.ActorScoped(actor, evt.ActivityID, model.VerbJoin))

	case model.VerbPhotoComment:
		if evt.CommentID == "" {
			return ResultIgnored, fmt.Errorf("%w: photo_comment requires commentId", ErrMalformed)
		}
		return d.createAndPush(ctx, model.ObjectScoped(evt.CommentID, model.VerbPhotoComment), actor)

	case model.VerbCreateActivity, model.VerbUnknown:
		logger.Info("update verb ignored",
			zap.String("action", evt.Action),
			zap.String("actor", actor),
			zap.String("activity_id", evt.ActivityID))
		return ResultIgnored, nil

	default:
		return ResultIgnored, fmt.Errorf("unhandled verb %q", verb)
	}
}

func (d *Dispatcher) createAndPush(ctx context.Context, key model.DedupKey, actor string) (Result, error) {
	action, created, err := d.store.GetOrCreate(ctx, key, actor)
	if err != nil {
		return ResultIgnored, err
	}
	// the fan-out source is the event actor, which for object-scoped keys may
	// differ from the actor recorded on first creation
	if err := d.pusher.PushToFollowers(ctx, actor, action.ID); err != nil {
		return ResultIgnored, err
	}
	logger.Debug("action dispatched",
		zap.String("key", key.String()),
		zap.String("action_id", action.ID),
		zap.Bool("created", created))
	return ResultProcessed, nil
}

// removeJoin deletes the join action and its feeds in one transaction.
func (d *Dispatcher) removeJoin(ctx context.Context, key model.DedupKey) (Result, error) {
	result := ResultNoop
	err := d.uow.Do(ctx, func(repos *repository.Repositories) error {
		action, err := repos.Actions.FindByKey(ctx, key)
		if err != nil {
			return fmt.Errorf("find action %s: %w", key, err)
		}
		if action == nil {
			return nil
		}
		if _, err := repos.Feeds.DeleteByReferences(ctx, []string{action.ID}); err != nil {
			return fmt.Errorf("delete feeds of %s: %w", action.ID, err)
		}
		if err := repos.Actions.Delete(ctx, action.ID); err != nil {
			return fmt.Errorf("delete action %s: %w", action.ID, err)
		}
		result = ResultProcessed
		return nil
	})
	if err != nil {
		return ResultIgnored, err
	}
	return result, nil
}
