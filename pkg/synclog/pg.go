package synclog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the sync ledger store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateLog(ctx context.Context, l *Log) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = StatusSuccess
	}
	now := time.Now()
	l.CreatedAt = now
	l.UpdatedAt = now

	if _, err := s.db.NewInsert().Model(toLogDao(l)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

func (s *pgStore) GetLog(ctx context.Context, id string) (*Log, error) {
	dao := new(LogDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("failed to get sync log: %w", err)
	}
	return toLog(dao), nil
}

func (s *pgStore) HasProcessedEvent(ctx context.Context, restaurantID, platform, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	exists, err := s.db.NewSelect().
		Model((*LogDao)(nil)).
		Where("restaurant_id = ?", restaurantID).
		Where("platform = ?", platform).
		Where("event_id = ?", eventID).
		Where("status != ?", string(StatusRetry)).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists, nil
}

func (s *pgStore) ScheduleRetry(ctx context.Context, id string, attemptErr error) (bool, error) {
	l, err := s.GetLog(ctx, id)
	if err != nil {
		return false, err
	}

	errMsg := ""
	if attemptErr != nil {
		errMsg = attemptErr.Error()
	}

	attempt := l.RetryCount + 1
	delay, ok := NextRetryDelay(attempt)
	if !ok {
		// Ladder exhausted; close the entry and take it off the schedule.
		_, err = s.db.NewUpdate().
			Model((*LogDao)(nil)).
			Set("status = ?", string(StatusFailed)).
			Set("error_message = ?", errMsg).
			Set("next_retry_at = NULL").
			Set("updated_at = ?", time.Now()).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to mark sync log exhausted: %w", err)
		}
		return false, nil
	}

	nextAt := time.Now().Add(delay)
	_, err = s.db.NewUpdate().
		Model((*LogDao)(nil)).
		Set("status = ?", string(StatusRetry)).
		Set("error_message = ?", errMsg).
		Set("retry_count = ?", attempt).
		Set("next_retry_at = ?", nextAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to schedule sync log retry: %w", err)
	}
	return true, nil
}

func (s *pgStore) MarkSucceeded(ctx context.Context, id string) error {
	result, err := s.db.NewUpdate().
		Model((*LogDao)(nil)).
		Set("status = ?", string(StatusSuccess)).
		Set("error_message = NULL").
		Set("next_retry_at = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark sync log succeeded: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read mark succeeded result: %w", err)
	}
	if affected == 0 {
		return ErrLogNotFound
	}
	return nil
}

func (s *pgStore) MarkFailed(ctx context.Context, id string, attemptErr error) error {
	errMsg := ""
	if attemptErr != nil {
		errMsg = attemptErr.Error()
	}

	result, err := s.db.NewUpdate().
		Model((*LogDao)(nil)).
		Set("status = ?", string(StatusFailed)).
		Set("error_message = ?", errMsg).
		Set("next_retry_at = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark sync log failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read mark failed result: %w", err)
	}
	if affected == 0 {
		return ErrLogNotFound
	}
	return nil
}

func (s *pgStore) GetPendingRetries(ctx context.Context, limit int) ([]*Log, error) {
	var daos []*LogDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("status = ?", string(StatusRetry)).
		Where("next_retry_at IS NOT NULL").
		Where("next_retry_at <= ?", time.Now()).
		Order("next_retry_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending retries: %w", err)
	}

	logs := make([]*Log, len(daos))
	for i, dao := range daos {
		logs[i] = toLog(dao)
	}
	return logs, nil
}

func (s *pgStore) CountPendingRetries(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().
		Model((*LogDao)(nil)).
		Where("status = ?", string(StatusRetry)).
		Where("next_retry_at IS NOT NULL").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending retries: %w", err)
	}
	return count, nil
}
