package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"facility-form-backend/internal/model"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	RecordSubmission(ctx context.Context, sub model.Submission) error
	PendingSubmissions(ctx context.Context, limit int) ([]model.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, batchID string, status model.SubmissionStatus, message string, now time.Time) (bool, error)
	SubmissionsForRecord(ctx context.Context, recordID string) ([]model.Submission, error)
	MarkChecked(ctx context.Context, batchIDs []string, now time.Time) error

	ReplaceSubscription(ctx context.Context, sub model.PushSubscription, recordIDs []string) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionRecords(ctx context.Context, endpoint string) ([]string, error)
	SubscribersForRecord(ctx context.Context, recordID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// RecordSubmission stores a batch the ledger accepted. Recording the same
// batch twice refreshes its status instead of failing.
func (s *gormStore) RecordSubmission(ctx context.Context, sub model.Submission) error {
	if sub.Status == "" {
		sub.Status = model.StatusPending
	}
	if sub.CheckedAt.IsZero() {
		sub.CheckedAt = sub.SubmittedAt
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "message", "updated_at"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("failed to record submission %s for record %q: %w", sub.BatchID, sub.RecordID, err)
	}
	return nil
}

// PendingSubmissions returns the submissions still awaiting a terminal
// status, least recently checked first.
func (s *gormStore) PendingSubmissions(ctx context.Context, limit int) ([]model.Submission, error) {
	var subs []model.Submission
	q := s.db.WithContext(ctx).
		Where("status = ?", model.StatusPending).
		Order("checked_at").
		Order("submitted_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pending submissions: %w", err)
	}
	return subs, nil
}

// UpdateSubmissionStatus moves a submission to status. It reports whether
// the stored status actually changed.
func (s *gormStore) UpdateSubmissionStatus(ctx context.Context, batchID string, status model.SubmissionStatus, message string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("batch_id = ? AND status <> ?", batchID, status).
		Updates(map[string]any{
			"status":     status,
			"message":    message,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update submission %s: %w", batchID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkChecked records a status query that did not settle the given pending
// batches. They move behind every batch checked less recently.
func (s *gormStore) MarkChecked(ctx context.Context, batchIDs []string, now time.Time) error {
	if len(batchIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("batch_id IN ? AND status = ?", batchIDs, model.StatusPending).
		Updates(map[string]any{
			"attempts":   gorm.Expr("attempts + ?", 1),
			"checked_at": now,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark %d submissions checked: %w", len(batchIDs), err)
	}
	return nil
}

// SubmissionsForRecord returns every batch submitted for a record, newest first.
func (s *gormStore) SubmissionsForRecord(ctx context.Context, recordID string) ([]model.Submission, error) {
	var subs []model.Submission
	if err := s.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("submitted_at DESC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch submissions for record %q: %w", recordID, err)
	}
	if len(subs) == 0 {
		return nil, ErrNotFound
	}
	return subs, nil
}

// ReplaceSubscription creates or updates a push subscription and replaces the
// set of records it follows.
func (s *gormStore) ReplaceSubscription(ctx context.Context, sub model.PushSubscription, recordIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit("Records").Create(&sub).Error; err != nil {
			return err
		}

		if err := tx.Where("endpoint = ?", sub.Endpoint).Delete(&model.RecordSubscription{}).Error; err != nil {
			return err
		}

		if len(recordIDs) == 0 {
			return nil
		}
		seen := make(map[string]bool, len(recordIDs))
		links := make([]model.RecordSubscription, 0, len(recordIDs))
		for _, id := range recordIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			links = append(links, model.RecordSubscription{Endpoint: sub.Endpoint, RecordID: id})
		}
		return tx.Create(&links).Error
	})
}

// DeleteSubscription removes a subscription and its record links.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", endpoint).Delete(&model.RecordSubscription{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}

// SubscriptionRecords lists the records a subscription follows.
func (s *gormStore) SubscriptionRecords(ctx context.Context, endpoint string) ([]string, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("Records").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ids := make([]string, len(sub.Records))
	for i, r := range sub.Records {
		ids[i] = r.RecordID
	}
	return ids, nil
}

// SubscribersForRecord returns the push subscriptions following a record.
func (s *gormStore) SubscribersForRecord(ctx context.Context, recordID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN record_subscriptions rs ON rs.endpoint = push_subscriptions.endpoint").
		Where("rs.record_id = ?", recordID).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscribers for record %q: %w", recordID, err)
	}
	return subs, nil
}
