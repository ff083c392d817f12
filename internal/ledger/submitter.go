package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"facility-form-backend/internal/metrics"
	"facility-form-backend/internal/model"
	"facility-form-backend/internal/payload"
)

// Recorder persists batches the ledger accepted.
type Recorder interface {
	RecordSubmission(ctx context.Context, sub model.Submission) error
}

// Submitter signs payloads, submits them and records the accepted batches.
type Submitter struct {
	client   *Client
	signer   *Signer
	recorder Recorder
	log      *zap.Logger
	now      func() time.Time
}

// NewSubmitter wires a Submitter. recorder may be nil.
func NewSubmitter(client *Client, signer *Signer, recorder Recorder, log *zap.Logger) *Submitter {
	return &Submitter{
		client:   client,
		signer:   signer,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

// Submit sends payloads to the ledger in order. With atomic set they share a
// single batch. The first payload names the record the batches are filed
// under.
func (s *Submitter) Submit(ctx context.Context, payloads []payload.Payload, atomic bool) error {
	start := s.now()
	batches, err := BuildBatches(s.signer, payloads, atomic)
	if err != nil {
		metrics.Submissions.WithLabelValues("build_failed").Inc()
		return fmt.Errorf("building batches: %w", err)
	}

	err = s.client.SubmitBatches(ctx, batches)
	metrics.SubmitDuration.Observe(s.now().Sub(start).Seconds())
	if err != nil {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.Submissions.WithLabelValues("accepted").Inc()

	recordID := payloads[0].RecordID()
	recordType := ""
	if payloads[0].CreateRecord != nil {
		recordType = payloads[0].CreateRecord.RecordType
	}

	s.log.Info("batches accepted by ledger",
		zap.String("record_id", recordID),
		zap.Int("batches", len(batches)),
		zap.Int("transactions", len(payloads)),
		zap.Bool("atomic", atomic),
	)

	if s.recorder == nil {
		return nil
	}

	submittedAt := s.now().UTC()
	for _, b := range batches {
		proposals := 0
		for _, t := range b.Transactions {
			if p, err := payload.Decode(t.Payload); err == nil && p.Action == payload.ActionCreateProposal {
				proposals++
			}
		}
		sub := model.Submission{
			BatchID:      b.ID(),
			RecordID:     recordID,
			RecordType:   recordType,
			Transactions: len(b.Transactions),
			Proposals:    proposals,
			Status:       model.StatusPending,
			SubmittedAt:  submittedAt,
		}
		// The ledger already holds the batch, so a bookkeeping failure does
		// not fail the submission.
		if err := s.recorder.RecordSubmission(ctx, sub); err != nil {
			s.log.Error("failed to record submission", zap.String("batch_id", b.ID()), zap.Error(err))
		}
	}
	return nil
}
