package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"facility-form-backend/internal/model"
	"facility-form-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Store is the part of the persistence layer the workers read.
type Store interface {
	SubmissionsForRecord(ctx context.Context, recordID string) ([]model.Submission, error)
	SubscribersForRecord(ctx context.Context, recordID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan string
	store   Store
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s Store, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case recordID := <-wp.jobs:
			wp.notifyRecord(ctx, recordID)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a record whose submission reached a final status. It
// gives up when ctx is done, so a caller is not stuck once the workers
// have stopped.
func (wp *WorkerPool) Dispatch(ctx context.Context, recordID string) {
	select {
	case wp.jobs <- recordID:
	case <-ctx.Done():
		wp.log.Warn("notification dropped", zap.String("record_id", recordID), zap.Error(ctx.Err()))
	}
}

// Message builds the notification text for the latest submission of a record.
func Message(sub model.Submission) string {
	switch sub.Status {
	case model.StatusCommitted:
		return fmt.Sprintf("Facility %s has been recorded on the ledger.", sub.RecordID)
	case model.StatusInvalid:
		if sub.Message != "" {
			return fmt.Sprintf("Facility %s was rejected by the ledger: %s", sub.RecordID, sub.Message)
		}
		return fmt.Sprintf("Facility %s was rejected by the ledger.", sub.RecordID)
	default:
		return fmt.Sprintf("Facility %s is %s.", sub.RecordID, sub.Status)
	}
}

func (wp *WorkerPool) notifyRecord(ctx context.Context, recordID string) {
	subscriptions, err := wp.store.SubscribersForRecord(ctx, recordID)
	if err != nil {
		wp.log.Error("failed to fetch subscriptions", zap.String("record_id", recordID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	message := fmt.Sprintf("Facility %s has been updated.", recordID)
	if subs, err := wp.store.SubmissionsForRecord(ctx, recordID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			wp.log.Warn("failed to fetch submissions", zap.String("record_id", recordID), zap.Error(err))
		}
	} else {
		message = Message(subs[0])
	}

	wp.log.Info("sending notifications", zap.String("record_id", recordID), zap.Int("subscribers", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
