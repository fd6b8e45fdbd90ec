// Package notifications exposes the notification feed and read-tracking
// over JSON HTTP.
package notifications

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/louisbranch/gathering.space/internal/platform/requestctx"
	"github.com/louisbranch/gathering.space/internal/services/notifications/domain"
	"github.com/louisbranch/gathering.space/internal/services/shared/httpapi"
)

const adminSource = "admin"

// Service is the notification use-case surface served over HTTP.
type Service interface {
	Emit(ctx context.Context, input domain.EmitInput) (domain.Notification, error)
	Feed(ctx context.Context, input domain.FeedInput) (domain.FeedPage, error)
	MarkRead(ctx context.Context, input domain.MarkReadInput) (int, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// Streamer upgrades a request into a push stream for one user.
type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

// Handler serves notification routes.
type Handler struct {
	service Service
	stream  Streamer
}

// NewHandler builds notification routes. A nil stream disables the push
// endpoint.
func NewHandler(service Service, stream Streamer) *Handler {
	return &Handler{service: service, stream: stream}
}

// RegisterRoutes mounts notification routes on the authenticated group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	group := api.Group("/notifications")
	group.GET("", h.feed)
	group.POST("", httpapi.RequireRole(requestctx.RoleAdmin), h.emit)
	group.GET("/unread-count", h.unreadCount)
	group.POST("/read", h.markRead)
	group.POST("/read-all", h.markAllRead)
	group.GET("/stream", h.streamPush)
}

type notificationJSON struct {
	ID             string          `json:"id"`
	Scope          string          `json:"scope"`
	TargetUserID   string          `json:"target_user_id,omitempty"`
	RelatedID      string          `json:"related_id,omitempty"`
	Classification string          `json:"classification"`
	Message        string          `json:"message"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	IsRead         bool            `json:"is_read"`
	ReadAt         *time.Time      `json:"read_at,omitempty"`
}

type feedJSON struct {
	Items      []notificationJSON `json:"items"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

type emitRequest struct {
	Scope          string          `json:"scope"`
	TargetUserID   string          `json:"target_user_id"`
	RelatedID      string          `json:"related_id"`
	Classification string          `json:"classification"`
	Message        string          `json:"message"`
	Payload        json.RawMessage `json:"payload"`
	DedupeKey      string          `json:"dedupe_key"`
}

type markReadRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

func (h *Handler) feed(c *gin.Context) {
	page, err := httpapi.PageQuery(c)
	if err != nil {
		httpapi.BadRequest(c, "invalid page parameters", err)
		return
	}
	result, err := h.service.Feed(c.Request.Context(), domain.FeedInput{
		UserID:   httpapi.UserID(c),
		Page:     page.Page,
		PageSize: page.Size,
	})
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	out := feedJSON{
		Items:      make([]notificationJSON, 0, len(result.Items)),
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      result.Total,
		TotalPages: result.TotalPages,
	}
	for _, item := range result.Items {
		entry := toNotificationJSON(item.Notification)
		entry.IsRead = item.IsRead
		entry.ReadAt = item.ReadAt
		out.Items = append(out.Items, entry)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) emit(c *gin.Context) {
	var req emitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid notification body", err)
		return
	}
	scope, ok := domain.ParseScope(req.Scope)
	if !ok {
		httpapi.WriteError(c, domain.ErrInvalidNotification)
		return
	}
	payload := strings.TrimSpace(string(req.Payload))
	if payload == "null" {
		payload = ""
	}
	notification, err := h.service.Emit(c.Request.Context(), domain.EmitInput{
		Scope:          scope,
		TargetUserID:   req.TargetUserID,
		RelatedID:      req.RelatedID,
		Classification: req.Classification,
		Message:        req.Message,
		PayloadJSON:    payload,
		DedupeKey:      req.DedupeKey,
		Source:         adminSource,
	})
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toNotificationJSON(notification))
}

func (h *Handler) unreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), httpapi.UserID(c))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *Handler) markRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, "invalid read body", err)
		return
	}
	created, err := h.service.MarkRead(c.Request.Context(), domain.MarkReadInput{
		UserID:          httpapi.UserID(c),
		NotificationIDs: req.NotificationIDs,
	})
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": created})
}

func (h *Handler) markAllRead(c *gin.Context) {
	created, err := h.service.MarkAllRead(c.Request.Context(), httpapi.UserID(c))
	if err != nil {
		httpapi.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": created})
}

func (h *Handler) streamPush(c *gin.Context) {
	if h.stream == nil {
		httpapi.WriteError(c, domain.ErrNotFound)
		return
	}
	userID := httpapi.UserID(c)
	if err := h.stream.Serve(c.Writer, c.Request, userID); err != nil {
		log.Printf("push stream for user %s: %v", userID, err)
	}
}

func toNotificationJSON(n domain.Notification) notificationJSON {
	out := notificationJSON{
		ID:             n.ID,
		Scope:          string(n.Scope),
		TargetUserID:   n.TargetUserID,
		RelatedID:      n.RelatedID,
		Classification: n.Classification,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt.UTC(),
	}
	if raw := strings.TrimSpace(n.PayloadJSON); raw != "" && json.Valid([]byte(raw)) {
		out.Payload = json.RawMessage(raw)
	}
	return out
}
