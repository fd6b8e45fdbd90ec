package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/gathering.space/internal/services/notifications/storage"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultBatchSize     = 50
	defaultMaxAttempts   = 5
	defaultRetryBackoff  = time.Second
	defaultRetryMaxDelay = 5 * time.Minute

	scopeGlobal = "GLOBAL"
)

// Store is the persistence surface the worker needs.
type Store interface {
	storage.DeliveryStore
	GetNotification(ctx context.Context, notificationID string) (storage.NotificationRecord, error)
}

// Pusher hands frames to live connections.
type Pusher interface {
	Connected(userID string) bool
	SendTo(userID string, msg Message) (int, error)
	Broadcast(msg Message) (int, error)
}

// Config controls polling and retry behavior.
type Config struct {
	PollInterval  time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.RetryMaxDelay < c.RetryBackoff {
		c.RetryMaxDelay = c.RetryBackoff
	}
	return c
}

// PushNotification is the frame payload for one notification.
type PushNotification struct {
	ID             string          `json:"id"`
	Scope          string          `json:"scope"`
	RelatedID      string          `json:"related_id,omitempty"`
	Classification string          `json:"classification"`
	Message        string          `json:"message"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Worker drains pending push deliveries.
type Worker struct {
	store  Store
	pusher Pusher
	cfg    Config
	clock  func() time.Time
}

// NewWorker builds a push delivery worker.
func NewWorker(store Store, pusher Pusher, cfg Config, clock func() time.Time) *Worker {
	if clock == nil {
		clock = time.Now
	}
	return &Worker{store: store, pusher: pusher, cfg: cfg.normalized(), clock: clock}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.store == nil || w.pusher == nil {
		return fmt.Errorf("delivery worker is not configured")
	}
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		log.Printf("push delivery pass failed: %v", err)
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Printf("push delivery pass failed: %v", err)
			}
		}
	}
}

// RunOnce processes one batch of due deliveries and returns how many were
// handled.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if w == nil || w.store == nil || w.pusher == nil {
		return 0, fmt.Errorf("delivery worker is not configured")
	}
	due, err := w.store.ListPendingDeliveries(ctx, storage.DeliveryChannelPush, w.cfg.BatchSize, w.now())
	if err != nil {
		return 0, fmt.Errorf("list pending push deliveries: %w", err)
	}
	handled := 0
	for _, record := range due {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		if err := w.deliver(ctx, record); err != nil {
			return handled, err
		}
		handled++
	}
	return handled, nil
}

func (w *Worker) deliver(ctx context.Context, record storage.DeliveryRecord) error {
	attempt := record.AttemptCount + 1
	notification, err := w.store.GetNotification(ctx, record.NotificationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return w.final(ctx, record, storage.DeliveryStatusDead, attempt, "notification not found")
		}
		return fmt.Errorf("load notification %s: %w", record.NotificationID, err)
	}

	msg := Message{Type: "notification", Data: toPushNotification(notification)}
	if strings.EqualFold(notification.Scope, scopeGlobal) {
		if _, err := w.pusher.Broadcast(msg); err != nil {
			return w.retry(ctx, record, attempt, err)
		}
		return w.final(ctx, record, storage.DeliveryStatusDelivered, attempt, "")
	}

	if !w.pusher.Connected(notification.TargetUserID) {
		return w.final(ctx, record, storage.DeliveryStatusSkipped, attempt, "recipient offline")
	}
	if _, err := w.pusher.SendTo(notification.TargetUserID, msg); err != nil {
		return w.retry(ctx, record, attempt, err)
	}
	return w.final(ctx, record, storage.DeliveryStatusDelivered, attempt, "")
}

func (w *Worker) retry(ctx context.Context, record storage.DeliveryRecord, attempt int, cause error) error {
	if attempt >= w.cfg.MaxAttempts {
		return w.final(ctx, record, storage.DeliveryStatusDead, attempt, cause.Error())
	}
	next := w.now().Add(w.retryDelay(attempt))
	if err := w.store.MarkDeliveryRetry(ctx, record.NotificationID, record.Channel, attempt, next, cause.Error()); err != nil {
		return fmt.Errorf("mark push delivery retry %s: %w", record.NotificationID, err)
	}
	return nil
}

func (w *Worker) final(ctx context.Context, record storage.DeliveryRecord, status storage.DeliveryStatus, attempt int, lastError string) error {
	if err := w.store.MarkDeliveryFinal(ctx, record.NotificationID, record.Channel, status, attempt, w.now(), lastError); err != nil {
		return fmt.Errorf("mark push delivery %s %s: %w", status, record.NotificationID, err)
	}
	return nil
}

// retryDelay doubles the base backoff per attempt, capped at RetryMaxDelay.
func (w *Worker) retryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := w.cfg.RetryBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= w.cfg.RetryMaxDelay {
			return w.cfg.RetryMaxDelay
		}
	}
	return delay
}

func (w *Worker) now() time.Time {
	return w.clock().UTC()
}

func toPushNotification(record storage.NotificationRecord) PushNotification {
	out := PushNotification{
		ID:             record.ID,
		Scope:          record.Scope,
		RelatedID:      record.RelatedID,
		Classification: record.Classification,
		Message:        record.Message,
		CreatedAt:      record.CreatedAt.UTC(),
	}
	if raw := strings.TrimSpace(record.PayloadJSON); raw != "" && json.Valid([]byte(raw)) {
		out.Payload = json.RawMessage(raw)
	}
	return out
}
