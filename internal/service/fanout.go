package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/activity-feed/internal/model"
	"github.com/d60-Lab/activity-feed/internal/repository"
	"github.com/d60-Lab/activity-feed/pkg/logger"
	"github.com/d60-Lab/activity-feed/pkg/metrics"
)

// Pusher materializes an action into feeds.
type Pusher interface {
	PushToFollowers(ctx context.Context, actorID, actionID string) error
}

// FanoutService 把 action 写入作者本人及其活跃粉丝的 feed（写扩散）
type FanoutService struct {
	followers   repository.FollowerRepository
	feeds       repository.FeedRepository
	chunkSize   int
	concurrency int
}

func NewFanoutService(followers repository.FollowerRepository, feeds repository.FeedRepository, chunkSize, concurrency int) *FanoutService {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &FanoutService{followers: followers, feeds: feeds, chunkSize: chunkSize, concurrency: concurrency}
}

// PushToFollowers makes the feed set of actionID equal to the active
// followers of actorID plus the actor itself.
//
// The existing set is reconciled by difference: missing entries are inserted
// and stale ones removed, so entries that belong in the set are never absent
// while a retry is pending. Running it again converges to the same set.
func (s *FanoutService) PushToFollowers(ctx context.Context, actorID, actionID string) error {
	followers, err := s.followers.ActiveFollowerIDs(ctx, actorID)
	if err != nil {
		return fmt.Errorf("list followers of %s: %w", actorID, err)
	}
	candidates := candidateSet(actorID, followers)

	existing, err := s.feeds.UserIDsByReference(ctx, actionID)
	if err != nil {
		return fmt.Errorf("list feeds of %s: %w", actionID, err)
	}
	missing, stale := diff(candidates, existing)

	if err := s.insert(ctx, actionID, missing); err != nil {
		return err
	}
	for _, chunk := range chunks(stale, s.chunkSize) {
		if _, err := s.feeds.DeleteUsers(ctx, actionID, chunk); err != nil {
			return fmt.Errorf("delete stale feeds of %s: %w", actionID, err)
		}
	}

	metrics.FanoutEntries.Observe(float64(len(candidates)))
	logger.Debug("fanout done",
		zap.String("actor", actorID),
		zap.String("action", actionID),
		zap.Int("feeds", len(candidates)),
		zap.Int("inserted", len(missing)),
		zap.Int("removed", len(stale)))
	return nil
}

// insert writes the feeds for userIDs in chunks, at most s.concurrency at a
// time. Any failed chunk fails the whole call.
func (s *FanoutService) insert(ctx context.Context, actionID string, userIDs []string) error {
	batches := chunks(userIDs, s.chunkSize)
	if len(batches) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)
	errChan := make(chan error, len(batches))

	now := time.Now()
	for _, batch := range batches {
		records := make([]model.Feed, 0, len(batch))
		for _, uid := range batch {
			records = append(records, model.Feed{ID: uuid.New().String(), UserID: uid, ReferenceID: actionID, CreatedAt: now})
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(records []model.Feed) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.feeds.CreateBatch(ctx, records); err != nil {
				errChan <- err
			}
		}(records)
	}

	wg.Wait()
	close(errChan)

	if len(errChan) > 0 {
		return fmt.Errorf("insert feeds of %s: %w", actionID, <-errChan)
	}
	return nil
}

// candidateSet returns the followers plus the actor, without duplicates.
func candidateSet(actorID string, followers []string) []string {
	seen := make(map[string]struct{}, len(followers)+1)
	res := make([]string, 0, len(followers)+1)
	for _, id := range append([]string{actorID}, followers...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	return res
}

// diff returns the elements of want missing from have, and those of have not in want.
func diff(want, have []string) (missing, stale []string) {
	haveSet := make(map[string]struct{}, len(have))
	for _, id := range have {
		haveSet[id] = struct{}{}
	}
	wantSet := make(map[string]struct{}, len(want))
	for _, id := range want {
		wantSet[id] = struct{}{}
		if _, ok := haveSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	for _, id := range have {
		if _, ok := wantSet[id]; !ok {
			stale = append(stale, id)
		}
	}
	return missing, stale
}

func chunks(ids []string, size int) [][]string {
	var res [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		res = append(res, ids[start:end])
	}
	return res
}
