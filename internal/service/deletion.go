package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/activity-feed/internal/repository"
	"github.com/d60-Lab/activity-feed/pkg/logger"
)

// DeletionReport 统计一次活动级联删除的影响行数
type DeletionReport struct {
	ActivityID    string
	PhotoComments int
	Actions       int64
	Feeds         int64
	Children      repository.ChildCounts
}

// DeletionService removes an activity's derived footprint.
type DeletionService struct {
	uow       repository.UnitOfWork
	chunkSize int
}

// NewDeletionService 的 chunkSize 限制单条 IN 语句的参数个数
func NewDeletionService(uow repository.UnitOfWork, chunkSize int) *DeletionService {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &DeletionService{uow: uow, chunkSize: chunkSize}
}

// DeleteActivity removes, in one transaction and in this order: the feeds of
// every action on the activity or on its photo comments, those actions, and
// the activity's child records. Feeds go before actions so no feed row ever
// references a missing action.
func (s *DeletionService) DeleteActivity(ctx context.Context, activityID string) (*DeletionReport, error) {
	if activityID == "" {
		return nil, fmt.Errorf("%w: activityId is required", ErrMalformed)
	}

	report := &DeletionReport{ActivityID: activityID}
	err := s.uow.Do(ctx, func(repos *repository.Repositories) error {
		commentIDs, err := repos.Activities.PhotoCommentIDs(ctx, activityID)
		if err != nil {
			return fmt.Errorf("photo comments of %s: %w", activityID, err)
		}
		report.PhotoComments = len(commentIDs)

		activityActions, err := repos.Actions.IDsByObjects(ctx, []string{activityID})
		if err != nil {
			return fmt.Errorf("actions on %s: %w", activityID, err)
		}
		actionIDs := activityActions
		for _, chunk := range chunks(commentIDs, s.chunkSize) {
			ids, err := repos.Actions.IDsByObjects(ctx, chunk)
			if err != nil {
				return fmt.Errorf("actions on comments of %s: %w", activityID, err)
			}
			actionIDs = append(actionIDs, ids...)
		}

		for _, chunk := range chunks(actionIDs, s.chunkSize) {
			n, err := repos.Feeds.DeleteByReferences(ctx, chunk)
			if err != nil {
				return fmt.Errorf("delete feeds: %w", err)
			}
			report.Feeds += n
		}
		for _, chunk := range chunks(actionIDs, s.chunkSize) {
			n, err := repos.Actions.DeleteByIDs(ctx, chunk)
			if err != nil {
				return fmt.Errorf("delete actions: %w", err)
			}
			report.Actions += n
		}
		if report.Children, err = repos.Activities.DeleteChildren(ctx, activityID); err != nil {
			return fmt.Errorf("delete children of %s: %w", activityID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("activity deleted",
		zap.String("activity_id", activityID),
		zap.Int("photo_comments", report.PhotoComments),
		zap.Int64("actions", report.Actions),
		zap.Int64("feeds", report.Feeds),
		zap.Int64("comments", report.Children.Comments))
	return report, nil
}
