package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/repository"
	"github.com/d60-Lab/activity-feed/pkg/metrics"
)

// ActionStore is the get-or-create ledger of actions.
//
// Lookup and insert are separate statements. Concurrent deliveries of the same
// key are resolved by the unique dedup_key index: the losing insert affects no
// rows and the winner's row is read back, so both callers see one action.
type ActionStore struct {
	actions repository.ActionRepository
	now     func() time.Time
}

func NewActionStore(actions repository.ActionRepository) *ActionStore {
	return &ActionStore{actions: actions, now: time.Now}
}

// GetOrCreate returns the action identified by key, inserting it with actor
// when absent. The boolean reports whether this call created it.
func (s *ActionStore) GetOrCreate(ctx context.Context, key model.DedupKey, actor string) (*model.Action, bool, error) {
	existing, err := s.actions.FindByKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("find action %s: %w", key, err)
	}
	if existing != nil {
		return existing, false, nil
	}

	action := &model.Action{
		ID:        uuid.New().String(),
		Actor:     actor,
		Verb:      key.Verb,
		Object:    key.Object,
		DedupKey:  key.String(),
		CreatedAt: s.now(),
	}
	created, err := s.actions.Insert(ctx, action)
	if err != nil {
		return nil, false, fmt.Errorf("insert action %s: %w", key, err)
	}
	if created {
		metrics.ActionsCreatedTotal.WithLabelValues(key.Verb.String()).Inc()
		return action, true, nil
	}

	// another delivery inserted the same key between our lookup and insert
	winner, err := s.actions.FindByKey(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("find action %s after conflict: %w", key, err)
	}
	if winner == nil {
		return nil, false, fmt.Errorf("action %s vanished after conflict", key)
	}
	return winner, false, nil
}

// Find returns the action for key or nil when none exists.
func (s *ActionStore) Find(ctx context.Context, key model.DedupKey) (*model.Action, error) {
	return s.actions.FindByKey(ctx, key)
}

// Delete removes the action row. Feed entries referencing it must be removed first.
func (s *ActionStore) Delete(ctx context.Context, action *model.Action) error {
	return s.actions.Delete(ctx, action.ID)
}
