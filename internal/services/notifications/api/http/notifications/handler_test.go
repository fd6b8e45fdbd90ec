package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/louisbranch/gathering.space/internal/platform/errors"
	"github.com/louisbranch/gathering.space/internal/platform/requestctx"
	"github.com/louisbranch/gathering.space/internal/services/notifications/domain"
	"github.com/louisbranch/gathering.space/internal/services/shared/authctx"
	"github.com/louisbranch/gathering.space/internal/services/shared/httpapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (authctx.Identity, error) {
	switch token {
	case "alice-token":
		return authctx.Identity{UserID: "alice"}, nil
	case "admin-token":
		return authctx.Identity{UserID: "root", Roles: []string{requestctx.RoleAdmin}}, nil
	default:
		return authctx.Identity{}, authctx.ErrInvalidToken
	}
}

type fakeService struct {
	emitted   []domain.EmitInput
	feedInput domain.FeedInput
	feed      domain.FeedPage
	markInput domain.MarkReadInput
	markErr   error
	marked    int
	unread    map[string]int
}

func (f *fakeService) Emit(_ context.Context, input domain.EmitInput) (domain.Notification, error) {
	if input.Message == "" {
		return domain.Notification{}, domain.ErrInvalidNotification
	}
	f.emitted = append(f.emitted, input)
	return domain.Notification{
		ID:             "n-new",
		Scope:          input.Scope,
		TargetUserID:   input.TargetUserID,
		Classification: input.Classification,
		Message:        input.Message,
		PayloadJSON:    input.PayloadJSON,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeService) Feed(_ context.Context, input domain.FeedInput) (domain.FeedPage, error) {
	f.feedInput = input
	return f.feed, nil
}

func (f *fakeService) MarkRead(_ context.Context, input domain.MarkReadInput) (int, error) {
	f.markInput = input
	if f.markErr != nil {
		return 0, f.markErr
	}
	return f.marked, nil
}

func (f *fakeService) MarkAllRead(_ context.Context, userID string) (int, error) {
	return f.unread[userID], nil
}

func (f *fakeService) UnreadCount(_ context.Context, userID string) (int, error) {
	return f.unread[userID], nil
}

func serve(t *testing.T, svc *fakeService, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := httpapi.NewRouter(httpapi.RouterConfig{Service: "test", Verifier: fakeVerifier{}}, NewHandler(svc, nil))
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestFeedRoute(t *testing.T) {
	t.Parallel()

	readAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	svc := &fakeService{feed: domain.FeedPage{
		Items: []domain.FeedItem{
			{Notification: domain.Notification{ID: "n2", Scope: domain.ScopeTargeted, TargetUserID: "alice", Classification: "party.participation.approved", Message: "approved", PayloadJSON: `{"party_id":"p1"}`}, IsRead: true, ReadAt: &readAt},
			{Notification: domain.Notification{ID: "g1", Scope: domain.ScopeGlobal, Classification: "system.announcement", Message: "hello"}},
		},
		Page:       2,
		PageSize:   2,
		Total:      4,
		TotalPages: 2,
	}}

	rec := serve(t, svc, http.MethodGet, "/api/v1/notifications?page=2&page_size=2", "alice-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if svc.feedInput != (domain.FeedInput{UserID: "alice", Page: 2, PageSize: 2}) {
		t.Fatalf("feed input = %+v", svc.feedInput)
	}
	var got feedJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Items) != 2 || got.TotalPages != 2 || got.Total != 4 {
		t.Fatalf("feed = %+v", got)
	}
	if !got.Items[0].IsRead || got.Items[0].ReadAt == nil || string(got.Items[0].Payload) != `{"party_id":"p1"}` {
		t.Fatalf("first item = %+v", got.Items[0])
	}
	if got.Items[1].IsRead || got.Items[1].TargetUserID != "" {
		t.Fatalf("second item = %+v", got.Items[1])
	}
}

func TestFeedRejectsBadPage(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeService{}, http.MethodGet, "/api/v1/notifications?page=zero", "alice-token", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFeedRequiresAuth(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeService{}, http.MethodGet, "/api/v1/notifications", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestMarkReadRoute(t *testing.T) {
	t.Parallel()

	svc := &fakeService{marked: 2}
	rec := serve(t, svc, http.MethodPost, "/api/v1/notifications/read", "alice-token", `{"notification_ids":["n1","n2"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if svc.markInput.UserID != "alice" || len(svc.markInput.NotificationIDs) != 2 {
		t.Fatalf("mark input = %+v", svc.markInput)
	}
	if !strings.Contains(rec.Body.String(), `"marked":2`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestMarkReadUnknownIDIsNotFound(t *testing.T) {
	t.Parallel()

	svc := &fakeService{markErr: domain.ErrNotFound}
	rec := serve(t, svc, http.MethodPost, "/api/v1/notifications/read", "alice-token", `{"notification_ids":["ghost"]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestMarkReadRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeService{}, http.MethodPost, "/api/v1/notifications/read", "alice-token", `{"notification_ids":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestUnreadCountAndReadAll(t *testing.T) {
	t.Parallel()

	svc := &fakeService{unread: map[string]int{"alice": 3}}
	rec := serve(t, svc, http.MethodGet, "/api/v1/notifications/unread-count", "alice-token", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"unread_count":3`) {
		t.Fatalf("unread status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec = serve(t, svc, http.MethodPost, "/api/v1/notifications/read-all", "alice-token", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"marked":3`) {
		t.Fatalf("read-all status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestEmitRequiresAdmin(t *testing.T) {
	t.Parallel()

	body := `{"scope":"GLOBAL","classification":"system.announcement","message":"maintenance tonight"}`
	svc := &fakeService{}
	rec := serve(t, svc, http.MethodPost, "/api/v1/notifications", "alice-token", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if len(svc.emitted) != 0 {
		t.Fatalf("emitted = %d, want 0", len(svc.emitted))
	}
}

func TestEmitRoute(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	body := `{"scope":"targeted","target_user_id":"alice","classification":"system.announcement","message":"hi","payload":{"k":"v"}}`
	rec := serve(t, svc, http.MethodPost, "/api/v1/notifications", "admin-token", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(svc.emitted) != 1 {
		t.Fatalf("emitted = %d, want 1", len(svc.emitted))
	}
	input := svc.emitted[0]
	if input.Scope != domain.ScopeTargeted || input.Source != adminSource || input.PayloadJSON != `{"k":"v"}` {
		t.Fatalf("emit input = %+v", input)
	}
}

func TestEmitValidationErrors(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`{"scope":"everyone","message":"hi"}`,
		`{"scope":"GLOBAL","message":""}`,
	} {
		rec := serve(t, &fakeService{}, http.MethodPost, "/api/v1/notifications", "admin-token", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s status = %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
		var envelope httpapi.ErrorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if envelope.Error.Code != string(apperrors.CodeInvalidNotification) {
			t.Fatalf("code = %q", envelope.Error.Code)
		}
	}
}

func TestStreamDisabledIsNotFound(t *testing.T) {
	t.Parallel()

	rec := serve(t, &fakeService{}, http.MethodGet, "/api/v1/notifications/stream", "alice-token", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
