package domain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type readKey struct {
	userID         string
	notificationID string
}

type fakeStore struct {
	mu            sync.Mutex
	notifications map[string]Notification
	reads         map[readKey]time.Time
	putCalls      int
	putErr        error
	// markCalls counts PutReadMarks invocations.
	markCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notifications: make(map[string]Notification),
		reads:         make(map[readKey]time.Time),
	}
}

func (s *fakeStore) PutNotification(_ context.Context, notification Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.putErr != nil {
		return s.putErr
	}
	if _, ok := s.notifications[notification.ID]; ok {
		return ErrConflict
	}
	if notification.DedupeKey != "" {
		for _, existing := range s.notifications {
			if existing.TargetUserID == notification.TargetUserID && existing.DedupeKey == notification.DedupeKey {
				return ErrConflict
			}
		}
	}
	s.notifications[notification.ID] = notification
	return nil
}

func (s *fakeStore) GetNotificationByDedupeKey(_ context.Context, targetUserID string, dedupeKey string) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.notifications {
		if existing.TargetUserID == targetUserID && existing.DedupeKey == dedupeKey {
			return existing, nil
		}
	}
	return Notification{}, ErrNotFound
}

func (s *fakeStore) GetNotifications(_ context.Context, ids []string) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Notification
	for _, notificationID := range ids {
		if notification, ok := s.notifications[notificationID]; ok {
			out = append(out, notification)
		}
	}
	return out, nil
}

func (s *fakeStore) visibleLocked(userID string) []Notification {
	var out []Notification
	for _, notification := range s.notifications {
		if notification.VisibleTo(userID) {
			out = append(out, notification)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *fakeStore) ListFeed(_ context.Context, userID string, limit int, offset int) ([]FeedItem, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	visible := s.visibleLocked(userID)
	total := len(visible)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	items := make([]FeedItem, 0, end-offset)
	for _, notification := range visible[offset:end] {
		item := FeedItem{Notification: notification}
		if readAt, ok := s.reads[readKey{userID, notification.ID}]; ok {
			item.IsRead = true
			item.ReadAt = &readAt
		}
		items = append(items, item)
	}
	return items, total, nil
}

func (s *fakeStore) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, notification := range s.visibleLocked(userID) {
		if _, ok := s.reads[readKey{userID, notification.ID}]; !ok {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) PutReadMarks(_ context.Context, userID string, notificationIDs []string, readAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	created := 0
	for _, notificationID := range notificationIDs {
		if _, ok := s.notifications[notificationID]; !ok {
			return 0, fmt.Errorf("unknown notification %s", notificationID)
		}
		key := readKey{userID, notificationID}
		if _, ok := s.reads[key]; ok {
			continue
		}
		s.reads[key] = readAt
		created++
	}
	return created, nil
}

func (s *fakeStore) MarkAllRead(_ context.Context, userID string, readAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := 0
	for _, notification := range s.visibleLocked(userID) {
		key := readKey{userID, notification.ID}
		if _, ok := s.reads[key]; ok {
			continue
		}
		s.reads[key] = readAt
		created++
	}
	return created, nil
}

func (s *fakeStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reads)
}

func (s *fakeStore) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	var (
		mu   sync.Mutex
		next int
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(ids) {
			return "", fmt.Errorf("id generator exhausted after %d ids", len(ids))
		}
		value := ids[next]
		next++
		return value, nil
	}
}
