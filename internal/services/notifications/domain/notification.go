package domain

import (
	"strings"
	"time"
)

// Scope selects who can see a notification.
type Scope string

const (
	// ScopeGlobal notifications are visible to every user.
	ScopeGlobal Scope = "GLOBAL"
	// ScopeTargeted notifications are visible to TargetUserID only.
	ScopeTargeted Scope = "TARGETED"
)

// ParseScope normalizes a caller-provided scope token.
func ParseScope(raw string) (Scope, bool) {
	scope := Scope(strings.ToUpper(strings.TrimSpace(raw)))
	switch scope {
	case ScopeGlobal, ScopeTargeted:
		return scope, true
	default:
		return "", false
	}
}

// Notification is one immutable feed entry.
type Notification struct {
	ID    string
	Scope Scope
	// TargetUserID is set only for TARGETED notifications.
	TargetUserID   string
	RelatedID      string
	Classification string
	Message        string
	PayloadJSON    string
	DedupeKey      string
	Source         string
	CreatedAt      time.Time
}

// VisibleTo reports whether userID may see the notification in a feed.
func (n Notification) VisibleTo(userID string) bool {
	if n.Scope == ScopeGlobal {
		return true
	}
	return userID != "" && n.TargetUserID == userID
}

// FeedItem is a notification annotated with the reader's read state.
type FeedItem struct {
	Notification Notification
	IsRead       bool
	ReadAt       *time.Time
}

// FeedPage is one offset page of a user's merged feed.
type FeedPage struct {
	Items      []FeedItem
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}
