package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/gathering.space/internal/services/notifications/storage"
)

type fakeStore struct {
	mu            sync.Mutex
	notifications map[string]storage.NotificationRecord
	pending       []storage.DeliveryRecord
	retries       []storage.DeliveryRecord
	finals        []storage.DeliveryRecord
	listErr       error
}

func (s *fakeStore) GetNotification(_ context.Context, id string) (storage.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.notifications[id]
	if !ok {
		return storage.NotificationRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *fakeStore) ListPendingDeliveries(_ context.Context, channel storage.DeliveryChannel, limit int, _ time.Time) ([]storage.DeliveryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]storage.DeliveryRecord, 0, limit)
	for _, record := range s.pending {
		if record.Channel == channel && len(out) < limit {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkDeliveryRetry(_ context.Context, id string, channel storage.DeliveryChannel, attempt int, next time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries = append(s.retries, storage.DeliveryRecord{
		NotificationID: id,
		Channel:        channel,
		Status:         storage.DeliveryStatusFailed,
		AttemptCount:   attempt,
		NextAttemptAt:  next,
		LastError:      lastError,
	})
	return nil
}

func (s *fakeStore) MarkDeliveryFinal(_ context.Context, id string, channel storage.DeliveryChannel, status storage.DeliveryStatus, attempt int, _ time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, storage.DeliveryRecord{
		NotificationID: id,
		Channel:        channel,
		Status:         status,
		AttemptCount:   attempt,
		LastError:      lastError,
	})
	return nil
}

type fakePusher struct {
	online     map[string]bool
	sendErr    error
	sent       map[string]int
	broadcasts int
}

func (p *fakePusher) Connected(userID string) bool { return p.online[userID] }

func (p *fakePusher) SendTo(userID string, _ Message) (int, error) {
	if p.sendErr != nil {
		return 0, p.sendErr
	}
	if p.sent == nil {
		p.sent = map[string]int{}
	}
	p.sent[userID]++
	return 1, nil
}

func (p *fakePusher) Broadcast(Message) (int, error) {
	p.broadcasts++
	return 0, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func pushDelivery(id string, attempts int) storage.DeliveryRecord {
	return storage.DeliveryRecord{
		NotificationID: id,
		Channel:        storage.DeliveryChannelPush,
		Status:         storage.DeliveryStatusPending,
		AttemptCount:   attempts,
	}
}

func TestRunOnceDeliversToConnectedRecipient(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		notifications: map[string]storage.NotificationRecord{
			"n1": {ID: "n1", Scope: "TARGETED", TargetUserID: "alice", Classification: "party.participation.approved", Message: "approved", PayloadJSON: `{"party_id":"p1"}`},
		},
		pending: []storage.DeliveryRecord{pushDelivery("n1", 0)},
	}
	pusher := &fakePusher{online: map[string]bool{"alice": true}}
	worker := NewWorker(store, pusher, Config{}, fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))

	handled, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if handled != 1 {
		t.Fatalf("handled = %d, want 1", handled)
	}
	if pusher.sent["alice"] != 1 {
		t.Fatalf("sent to alice = %d, want 1", pusher.sent["alice"])
	}
	if len(store.finals) != 1 || store.finals[0].Status != storage.DeliveryStatusDelivered || store.finals[0].AttemptCount != 1 {
		t.Fatalf("finals = %+v, want one delivered attempt", store.finals)
	}
}

func TestRunOnceSkipsOfflineRecipient(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		notifications: map[string]storage.NotificationRecord{
			"n1": {ID: "n1", Scope: "TARGETED", TargetUserID: "bob", Classification: "party.updated", Message: "updated"},
		},
		pending: []storage.DeliveryRecord{pushDelivery("n1", 0)},
	}
	pusher := &fakePusher{online: map[string]bool{}}
	worker := NewWorker(store, pusher, Config{}, nil)

	if _, err := worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(store.finals) != 1 || store.finals[0].Status != storage.DeliveryStatusSkipped {
		t.Fatalf("finals = %+v, want skipped", store.finals)
	}
	if len(pusher.sent) != 0 {
		t.Fatalf("sent = %v, want none", pusher.sent)
	}
}

func TestRunOnceBroadcastsGlobal(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		notifications: map[string]storage.NotificationRecord{
			"g1": {ID: "g1", Scope: "GLOBAL", Classification: "system.announcement", Message: "maintenance"},
		},
		pending: []storage.DeliveryRecord{pushDelivery("g1", 0)},
	}
	pusher := &fakePusher{}
	worker := NewWorker(store, pusher, Config{}, nil)

	if _, err := worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if pusher.broadcasts != 1 {
		t.Fatalf("broadcasts = %d, want 1", pusher.broadcasts)
	}
	if len(store.finals) != 1 || store.finals[0].Status != storage.DeliveryStatusDelivered {
		t.Fatalf("finals = %+v, want delivered", store.finals)
	}
}

func TestRunOnceRetriesWithBackoffThenDies(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		notifications: map[string]storage.NotificationRecord{
			"n1": {ID: "n1", Scope: "TARGETED", TargetUserID: "alice", Classification: "party.updated", Message: "updated"},
			"n2": {ID: "n2", Scope: "TARGETED", TargetUserID: "alice", Classification: "party.updated", Message: "updated"},
		},
		pending: []storage.DeliveryRecord{pushDelivery("n1", 1), pushDelivery("n2", 2)},
	}
	pusher := &fakePusher{online: map[string]bool{"alice": true}, sendErr: ErrRecipientUnavailable}
	worker := NewWorker(store, pusher, Config{MaxAttempts: 3, RetryBackoff: time.Second, RetryMaxDelay: time.Minute}, fixedClock(now))

	if _, err := worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(store.retries) != 1 {
		t.Fatalf("retries = %+v, want one", store.retries)
	}
	retry := store.retries[0]
	if retry.NotificationID != "n1" || retry.AttemptCount != 2 {
		t.Fatalf("retry = %+v, want n1 attempt 2", retry)
	}
	if want := now.Add(2 * time.Second); !retry.NextAttemptAt.Equal(want) {
		t.Fatalf("next attempt = %v, want %v", retry.NextAttemptAt, want)
	}
	if len(store.finals) != 1 || store.finals[0].NotificationID != "n2" || store.finals[0].Status != storage.DeliveryStatusDead {
		t.Fatalf("finals = %+v, want n2 dead", store.finals)
	}
	if store.finals[0].LastError != ErrRecipientUnavailable.Error() {
		t.Fatalf("last error = %q", store.finals[0].LastError)
	}
}

func TestRunOnceMissingNotificationIsDead(t *testing.T) {
	t.Parallel()

	store := &fakeStore{pending: []storage.DeliveryRecord{pushDelivery("ghost", 0)}}
	worker := NewWorker(store, &fakePusher{}, Config{}, nil)

	if _, err := worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(store.finals) != 1 || store.finals[0].Status != storage.DeliveryStatusDead {
		t.Fatalf("finals = %+v, want dead", store.finals)
	}
}

func TestRunOnceListError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	worker := NewWorker(&fakeStore{listErr: boom}, &fakePusher{}, Config{}, nil)
	if _, err := worker.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestRetryDelayCapped(t *testing.T) {
	t.Parallel()

	worker := NewWorker(&fakeStore{}, &fakePusher{}, Config{RetryBackoff: time.Second, RetryMaxDelay: 5 * time.Second}, nil)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 5 * time.Second},
		{attempt: 30, want: 5 * time.Second},
	}
	for _, tt := range tests {
		if got := worker.retryDelay(tt.attempt); got != tt.want {
			t.Fatalf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	worker := NewWorker(&fakeStore{}, &fakePusher{}, Config{PollInterval: 10 * time.Millisecond}, nil)
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNilWorker(t *testing.T) {
	t.Parallel()

	var worker *Worker
	if _, err := worker.RunOnce(context.Background()); err == nil {
		t.Fatal("expected not configured error")
	}
}
