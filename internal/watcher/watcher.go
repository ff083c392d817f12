// Package watcher polls the ledger for the outcome of submitted batches.
package watcher

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"facility-form-backend/config"
	"facility-form-backend/internal/ledger"
	"facility-form-backend/internal/metrics"
	"facility-form-backend/internal/model"
)

// pageSize bounds how many pending batches one status query covers.
const pageSize = 50

// Store is the part of the persistence layer the watcher needs.
type Store interface {
	PendingSubmissions(ctx context.Context, limit int) ([]model.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, batchID string, status model.SubmissionStatus, message string, now time.Time) (bool, error)
	MarkChecked(ctx context.Context, batchIDs []string, now time.Time) error
}

// StatusSource answers batch status queries.
type StatusSource interface {
	BatchStatuses(ctx context.Context, ids []string) ([]ledger.BatchStatus, error)
}

// Dispatcher is notified of records whose batches reached a final status.
type Dispatcher interface {
	Dispatch(ctx context.Context, recordID string)
}

// Service moves submissions from PENDING to their final status.
type Service struct {
	cfg    config.WatcherConfig
	store  Store
	source StatusSource
	pool   Dispatcher
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a watcher. pool may be nil.
func NewService(cfg config.WatcherConfig, store Store, source StatusSource, pool Dispatcher, log *zap.Logger) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		source: source,
		pool:   pool,
		log:    log,
		now:    time.Now,
	}
}

// Run checks pending batches every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("commit watcher is disabled, not starting")
		return
	}
	s.log.Info("starting commit watcher", zap.Duration("interval", s.cfg.Interval))

	s.CheckOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("commit watcher shutting down")
			return
		case <-timer.C:
			s.CheckOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// CheckOnce runs a single polling round and returns the number of
// submissions whose status changed. Batches the ledger does not settle are
// moved to the back of the queue, so a backlog of stuck batches cannot starve
// newer ones. After MaxAttempts unsettled queries a batch becomes UNKNOWN.
func (s *Service) CheckOnce(ctx context.Context) int {
	pending, err := s.store.PendingSubmissions(ctx, pageSize)
	if err != nil {
		s.log.Error("failed to list pending submissions", zap.Error(err))
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	ids := make([]string, len(pending))
	for i, sub := range pending {
		ids[i] = sub.BatchID
	}

	statuses, err := s.source.BatchStatuses(ctx, ids)
	if err != nil {
		// Leave everything pending; the next round asks again.
		s.log.Warn("batch status query failed", zap.Int("batches", len(ids)), zap.Error(err))
		return 0
	}
	final := make(map[string]ledger.BatchStatus, len(statuses))
	for _, st := range statuses {
		if st.Status.Terminal() {
			final[st.ID] = st
		}
	}

	now := s.now().UTC()
	changed := 0
	var notify []string
	var unsettled []string
	for _, sub := range pending {
		status, message := model.StatusPending, ""
		if st, ok := final[sub.BatchID]; ok {
			status, message = st.Status, st.Message()
		} else if s.cfg.MaxAttempts > 0 && sub.Attempts+1 >= s.cfg.MaxAttempts {
			status = model.StatusUnknown
			message = fmt.Sprintf("no final status after %d checks", sub.Attempts+1)
		} else {
			unsettled = append(unsettled, sub.BatchID)
			continue
		}

		updated, err := s.store.UpdateSubmissionStatus(ctx, sub.BatchID, status, message, now)
		if err != nil {
			s.log.Error("failed to update submission status", zap.String("batch_id", sub.BatchID), zap.Error(err))
			continue
		}
		if !updated {
			continue
		}
		changed++
		metrics.BatchStatus.WithLabelValues(string(status)).Inc()
		s.log.Info("batch reached final status",
			zap.String("batch_id", sub.BatchID),
			zap.String("record_id", sub.RecordID),
			zap.String("status", string(status)),
		)
		if !slices.Contains(notify, sub.RecordID) {
			notify = append(notify, sub.RecordID)
		}
	}

	if err := s.store.MarkChecked(ctx, unsettled, now); err != nil {
		s.log.Error("failed to mark submissions checked", zap.Error(err))
	}

	if s.pool != nil {
		for _, recordID := range notify {
			s.pool.Dispatch(ctx, recordID)
		}
	}
	return changed
}
