package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
)

var baseTime = time.Date(2026, 2, 21, 20, 30, 0, 0, time.UTC)

func idSeq(n int) func() (string, error) {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("notif-%02d", i+1)
	}
	return sequentialIDGenerator(ids...)
}

func emitAt(t *testing.T, svc *Service, at time.Time, input EmitInput) Notification {
	t.Helper()
	svc.clock = fixedClock(at)
	notification, err := svc.Emit(context.Background(), input)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	return notification
}

func targeted(user, message string) EmitInput {
	return EmitInput{Scope: ScopeTargeted, TargetUserID: user, Classification: ClassificationParticipationApproved, Message: message}
}

func global(message string) EmitInput {
	return EmitInput{Scope: ScopeGlobal, Classification: ClassificationAnnouncement, Message: message}
}

func TestEmitValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input EmitInput
	}{
		{name: "unknown scope", input: EmitInput{Scope: "PRIVATE", TargetUserID: "u", Classification: "c", Message: "m"}},
		{name: "targeted without target", input: EmitInput{Scope: ScopeTargeted, Classification: "c", Message: "m"}},
		{name: "global with target", input: EmitInput{Scope: ScopeGlobal, TargetUserID: "u", Classification: "c", Message: "m"}},
		{name: "blank message", input: EmitInput{Scope: ScopeGlobal, Classification: "c", Message: "  "}},
		{name: "message too long", input: EmitInput{Scope: ScopeGlobal, Classification: "c", Message: strings.Repeat("a", maxMessageLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			svc := NewService(store, fixedClock(baseTime), idSeq(1))
			_, err := svc.Emit(context.Background(), tt.input)
			if !errors.Is(err, ErrInvalidNotification) {
				t.Fatalf("err = %v, want ErrInvalidNotification", err)
			}
			if got := apperrors.CodeOf(err); got != apperrors.CodeInvalidNotification {
				t.Fatalf("code = %s", got)
			}
			if store.putCalls != 0 {
				t.Fatal("invalid notification reached the store")
			}
		})
	}
}

func TestEmitNormalizesAndStores(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	svc := NewService(store, fixedClock(baseTime), idSeq(1))

	notification, err := svc.Emit(context.Background(), EmitInput{
		Scope:          "targeted",
		TargetUserID:   " alice ",
		RelatedID:      " party-1 ",
		Classification: " Party.Participation.Approved ",
		Message:        " You are in ",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if notification.ID != "notif-01" || notification.Scope != ScopeTargeted || notification.TargetUserID != "alice" {
		t.Fatalf("unexpected notification %+v", notification)
	}
	if notification.Classification != ClassificationParticipationApproved || notification.Message != "You are in" {
		t.Fatalf("unexpected normalization %+v", notification)
	}
	if notification.PayloadJSON != "{}" || !notification.CreatedAt.Equal(baseTime) {
		t.Fatalf("unexpected defaults %+v", notification)
	}
}

func TestEmitAcceptsUntaggedNotifications(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input EmitInput
	}{
		{name: "global", input: EmitInput{Scope: ScopeGlobal, Message: "party night"}},
		{name: "targeted", input: EmitInput{Scope: ScopeTargeted, TargetUserID: "u1", Classification: "  ", Message: "party night"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			svc := NewService(store, nil, idSeq(2))
			notification, err := svc.Emit(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("emit: %v", err)
			}
			if notification.Classification != "" {
				t.Fatalf("classification = %q, want empty", notification.Classification)
			}
			if store.putCalls != 1 {
				t.Fatalf("put calls = %d, want 1", store.putCalls)
			}
		})
	}
}

func TestEmitIdempotentByDedupeKey(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	svc := NewService(store, fixedClock(baseTime), idSeq(3))
	input := targeted("alice", "approved")
	input.DedupeKey = "party-1:approved"

	first := emitAt(t, svc, baseTime, input)
	second := emitAt(t, svc, baseTime.Add(time.Minute), input)
	if second.ID != first.ID {
		t.Fatalf("second id = %q, want %q", second.ID, first.ID)
	}
	input.TargetUserID = "bob"
	third := emitAt(t, svc, baseTime, input)
	if third.ID == first.ID {
		t.Fatal("dedupe key must be scoped to the target user")
	}
	if got := store.notificationCount(); got != 2 {
		t.Fatalf("notifications = %d, want 2", got)
	}
}

func TestEmitPropagatesStorageError(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	store.putErr = errors.New("disk full")
	svc := NewService(store, fixedClock(baseTime), idSeq(1))
	if _, err := svc.Emit(context.Background(), global("hello")); err == nil || err.Error() != "disk full" {
		t.Fatalf("err = %v, want disk full", err)
	}
}

func TestFeedMergesGlobalAndTargetedNewestFirst(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	svc := NewService(store, fixedClock(baseTime), idSeq(4))

	g1 := emitAt(t, svc, baseTime.Add(1*time.Minute), global("maintenance"))
	a1 := emitAt(t, svc, baseTime.Add(2*time.Minute), targeted("alice", "approved"))
	emitAt(t, svc, baseTime.Add(3*time.Minute), targeted("bob", "rejected"))
	a2 := emitAt(t, svc, baseTime.Add(4*time.Minute), targeted("alice", "updated"))

	page, err := svc.Feed(context.Background(), FeedInput{UserID: "alice"})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 1 || page.Page != 1 || page.PageSize != 20 {
		t.Fatalf("unexpected page meta %+v", page)
	}
	want := []string{a2.ID, a1.ID, g1.ID}
	for i, item := range page.Items {
		if item.Notification.ID != want[i] {
			t.Fatalf("item %d = %s, want %s", i, item.Notification.ID, want[i])
		}
		if item.IsRead {
			t.Fatalf("item %d unexpectedly read", i)
		}
	}
}

func TestFeedPagination(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	svc := NewService(store, fixedClock(baseTime), idSeq(5))
	for i := range 5 {
		emitAt(t, svc, baseTime.Add(time.Duration(i)*time.Minute), global(fmt.Sprintf("news %d", i)))
	}

	page, err := svc.Feed(context.Background(), FeedInput{UserID: "alice", Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if page.TotalPages != 3 || len(page.Items) != 1 || page.Items[0].Notification.ID != "notif-01" {
		t.Fatalf("unexpected last page %+v", page)
	}

	beyond, err := svc.Feed(context.Background(), FeedInput{UserID: "alice", Page: 9, PageSize: 2})
	if err != nil {
		t.Fatalf("feed beyond: %v", err)
	}
	if len(beyond.Items) != 0 || beyond.Total != 5 {
		t.Fatalf("unexpected page beyond end %+v", beyond)
	}

	clamped, err := svc.Feed(context.Background(), FeedInput{UserID: "alice", PageSize: 1000})
	if err != nil {
		t.Fatalf("feed clamp: %v", err)
	}
	if clamped.PageSize != 100 {
		t.Fatalf("page size = %d, want 100", clamped.PageSize)
	}

	_, err = svc.Feed(context.Background(), FeedInput{UserID: "alice", Page: -1})
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("negative page err = %v", err)
	}
}

func TestFeedEmpty(t *testing.T) {
	t.Parallel()
	svc := NewService(newFakeStore(), fixedClock(baseTime), idSeq(0))
	page, err := svc.Feed(context.Background(), FeedInput{UserID: "alice"})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if page.Total != 0 || page.TotalPages != 0 || page.Items == nil {
		t.Fatalf("unexpected empty page %+v", page)
	}
}

func TestMarkReadScenario(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	svc := NewService(store, fixedClock(baseTime), idSeq(3))
	n1 := emitAt(t, svc, baseTime.Add(time.Minute), global("hello"))
	n2 := emitAt(t, svc, baseTime.Add(2*time.Minute), targeted("alice", "approved"))
	n3 := emitAt(t, svc, baseTime.Add(3*time.Minute), targeted("bob", "rejected"))

	created, err := svc.MarkRead(context.Background(), MarkReadInput{UserID: "alice", NotificationIDs: []string{n1.ID, n2.ID, n1.ID}})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}

	again, err := svc.MarkRead(context.Background(), MarkReadInput{UserID: "alice", NotificationIDs: []string{n1.ID}})
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if again != 0 {
		t.Fatalf("re-mark created = %d, want 0", again)
	}

	page, err := svc.Feed(context.Background(), FeedInput{UserID: "alice"})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	for _, item := range page.Items {
		if !item.IsRead || item.ReadAt == nil {
			t.Fatalf("item %s not marked read", item.Notification.ID)
		}
	}

	// Notifications targeted at another user are skipped.
	skipped, err := svc.MarkRead(context.Background(), MarkReadInput{UserID: "alice", NotificationIDs: []string{n3.ID}})
	if err != nil || skipped != 0 {
		t.Fatalf("mark foreign = %d, %v; want 0, nil", skipped, err)
	}
	bobUnread, _ := svc.UnreadCount(context.Background(), "bob")
	if bobUnread != 2 {
		t.Fatalf("bob unread = %d, want 2", bobUnread)
	}
}

func TestMarkReadUnknownIDWritesNothing(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	svc := NewService(store, fixedClock(baseTime), idSeq(1))
	n1 := emitAt(t, svc, baseTime, global("hello"))

	_, err := svc.MarkRead(context.Background(), MarkReadInput{UserID: "alice", NotificationIDs: []string{n1.ID, "missing"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if store.readCount() != 0 || store.markCalls != 0 {
		t.Fatalf("reads = %d calls = %d, want nothing written", store.readCount(), store.markCalls)
	}
}

func TestMarkReadRequiresInput(t *testing.T) {
	t.Parallel()
	svc := NewService(newFakeStore(), fixedClock(baseTime), idSeq(0))
	if _, err := svc.MarkRead(context.Background(), MarkReadInput{NotificationIDs: []string{"n"}}); !errors.Is(err, ErrUserIDRequired) {
		t.Fatalf("err = %v, want ErrUserIDRequired", err)
	}
	if _, err := svc.MarkRead(context.Background(), MarkReadInput{UserID: "alice", NotificationIDs: []string{" "}}); !errors.Is(err, ErrNotificationIDsRequired) {
		t.Fatalf("err = %v, want ErrNotificationIDsRequired", err)
	}
}

func TestMarkAllReadAndUnreadCount(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	svc := NewService(store, fixedClock(baseTime), idSeq(3))
	emitAt(t, svc, baseTime, global("one"))
	emitAt(t, svc, baseTime.Add(time.Minute), targeted("alice", "two"))
	emitAt(t, svc, baseTime.Add(2*time.Minute), targeted("bob", "three"))

	unread, err := svc.UnreadCount(context.Background(), "alice")
	if err != nil || unread != 2 {
		t.Fatalf("unread = %d, %v; want 2", unread, err)
	}
	created, err := svc.MarkAllRead(context.Background(), "alice")
	if err != nil || created != 2 {
		t.Fatalf("mark all = %d, %v; want 2", created, err)
	}
	unread, _ = svc.UnreadCount(context.Background(), "alice")
	if unread != 0 {
		t.Fatalf("unread after mark all = %d", unread)
	}
	created, _ = svc.MarkAllRead(context.Background(), "alice")
	if created != 0 {
		t.Fatalf("second mark all = %d, want 0", created)
	}
}

func TestNilServiceStoreNotConfigured(t *testing.T) {
	t.Parallel()
	var svc *Service
	if _, err := svc.Emit(context.Background(), global("x")); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Feed(context.Background(), FeedInput{UserID: "u"}); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func TestResolveDeliveryPolicy(t *testing.T) {
	t.Parallel()
	if policy := ResolveDeliveryPolicy(" PARTY.UPDATED "); !policy.InApp || !policy.Push {
		t.Fatalf("party policy = %+v", policy)
	}
	if policy := ResolveDeliveryPolicy(ClassificationAnnouncement); !policy.Push {
		t.Fatalf("announcement policy = %+v", policy)
	}
	if policy := ResolveDeliveryPolicy("digest.weekly"); !policy.InApp || policy.Push {
		t.Fatalf("default policy = %+v", policy)
	}
}

func TestVisibleTo(t *testing.T) {
	t.Parallel()
	if !(Notification{Scope: ScopeGlobal}).VisibleTo("anyone") {
		t.Fatal("global must be visible to everyone")
	}
	n := Notification{Scope: ScopeTargeted, TargetUserID: "alice"}
	if !n.VisibleTo("alice") || n.VisibleTo("bob") || n.VisibleTo("") {
		t.Fatal("targeted visibility mismatch")
	}
}
