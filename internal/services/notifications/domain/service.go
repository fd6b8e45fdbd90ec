package domain

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/louisbranch/gathering.space/internal/platform/id"
	"github.com/louisbranch/gathering.space/internal/platform/pagination"
)

const maxMessageLength = 2000

// Service orchestrates notification emission and read tracking.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs notification domain use-cases.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store: store,
		clock: clock,
		newID: newID,
	}
}

// EmitInput describes one producer notification.
type EmitInput struct {
	Scope          Scope
	TargetUserID   string
	RelatedID      string
	Classification string
	Message        string
	PayloadJSON    string
	DedupeKey      string
	Source         string
}

// FeedInput pages one user's feed. Page numbers start at 1.
type FeedInput struct {
	UserID   string
	Page     int
	PageSize int
}

// MarkReadInput identifies notifications one user acknowledges.
type MarkReadInput struct {
	UserID          string
	NotificationIDs []string
}

// Emit appends one notification. A repeated dedupe key for the same target
// returns the earlier notification.
func (s *Service) Emit(ctx context.Context, input EmitInput) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Notification{}, ErrIDGeneratorNotConfigured
	}
	notification, err := normalizeEmit(input)
	if err != nil {
		return Notification{}, err
	}
	if notification.DedupeKey != "" {
		existing, err := s.store.GetNotificationByDedupeKey(ctx, notification.TargetUserID, notification.DedupeKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Notification{}, err
		}
	}

	notificationID, err := s.newID()
	if err != nil {
		return Notification{}, err
	}
	notification.ID = notificationID
	notification.CreatedAt = s.nowUTC()
	if err := s.store.PutNotification(ctx, notification); err != nil {
		if notification.DedupeKey != "" && errors.Is(err, ErrConflict) {
			existing, lookupErr := s.store.GetNotificationByDedupeKey(ctx, notification.TargetUserID, notification.DedupeKey)
			if lookupErr == nil {
				return existing, nil
			}
			if errors.Is(lookupErr, ErrNotFound) {
				return Notification{}, err
			}
			return Notification{}, lookupErr
		}
		return Notification{}, err
	}
	return notification, nil
}

func normalizeEmit(input EmitInput) (Notification, error) {
	scope, ok := ParseScope(string(input.Scope))
	if !ok {
		return Notification{}, invalidNotification("scope must be GLOBAL or TARGETED")
	}
	target := strings.TrimSpace(input.TargetUserID)
	switch {
	case scope == ScopeTargeted && target == "":
		return Notification{}, invalidNotification("targeted notification requires a target user")
	case scope == ScopeGlobal && target != "":
		return Notification{}, invalidNotification("global notification must not name a target user")
	}
	classification := NormalizeClassification(input.Classification)
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return Notification{}, invalidNotification("message is required")
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		return Notification{}, invalidNotification("message is too long")
	}
	payload := strings.TrimSpace(input.PayloadJSON)
	if payload == "" {
		payload = "{}"
	}
	return Notification{
		Scope:          scope,
		TargetUserID:   target,
		RelatedID:      strings.TrimSpace(input.RelatedID),
		Classification: classification,
		Message:        message,
		PayloadJSON:    payload,
		DedupeKey:      strings.TrimSpace(input.DedupeKey),
		Source:         strings.TrimSpace(input.Source),
	}, nil
}

// Feed lists GLOBAL and user-targeted notifications newest first, each
// annotated with the user's read state.
func (s *Service) Feed(ctx context.Context, input FeedInput) (FeedPage, error) {
	if s == nil || s.store == nil {
		return FeedPage{}, ErrStoreNotConfigured
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return FeedPage{}, ErrUserIDRequired
	}
	page, err := pagination.Normalize(input.Page, input.PageSize, pagination.DefaultConfig)
	if err != nil {
		return FeedPage{}, pageError(err)
	}
	items, total, err := s.store.ListFeed(ctx, userID, page.Size, page.Offset())
	if err != nil {
		return FeedPage{}, err
	}
	if items == nil {
		items = []FeedItem{}
	}
	return FeedPage{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.Size,
		Total:      total,
		TotalPages: pagination.TotalPages(total, page.Size),
	}, nil
}

// MarkRead records read marks for the given notifications and returns how
// many were newly created. Unknown ids fail the whole call with ErrNotFound
// before anything is written. Notifications targeted at other users are
// skipped.
func (s *Service) MarkRead(ctx context.Context, input MarkReadInput) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return 0, ErrUserIDRequired
	}
	ids := make([]string, 0, len(input.NotificationIDs))
	for _, raw := range input.NotificationIDs {
		notificationID := strings.TrimSpace(raw)
		if notificationID == "" || slices.Contains(ids, notificationID) {
			continue
		}
		ids = append(ids, notificationID)
	}
	if len(ids) == 0 {
		return 0, ErrNotificationIDsRequired
	}

	found, err := s.store.GetNotifications(ctx, ids)
	if err != nil {
		return 0, err
	}
	byID := make(map[string]Notification, len(found))
	for _, notification := range found {
		byID[notification.ID] = notification
	}
	visible := make([]string, 0, len(ids))
	for _, notificationID := range ids {
		notification, ok := byID[notificationID]
		if !ok {
			return 0, ErrNotFound
		}
		if notification.VisibleTo(userID) {
			visible = append(visible, notificationID)
		}
	}
	if len(visible) == 0 {
		return 0, nil
	}
	return s.store.PutReadMarks(ctx, userID, visible, s.nowUTC())
}

// MarkAllRead marks every notification visible to the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserIDRequired
	}
	return s.store.MarkAllRead(ctx, userID, s.nowUTC())
}

// UnreadCount returns how many visible notifications the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserIDRequired
	}
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
