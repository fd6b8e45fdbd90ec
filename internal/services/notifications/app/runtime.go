// Package server wires notification storage, use-cases, push delivery, and
// HTTP routes into one runtime.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/gathering.space/internal/services/notifications/api/http/notifications"
	"github.com/louisbranch/gathering.space/internal/services/notifications/delivery"
	"github.com/louisbranch/gathering.space/internal/services/notifications/domain"
	"github.com/louisbranch/gathering.space/internal/services/notifications/storage"
	notificationspostgres "github.com/louisbranch/gathering.space/internal/services/notifications/storage/postgres"
	notificationssqlite "github.com/louisbranch/gathering.space/internal/services/notifications/storage/sqlite"
	"github.com/louisbranch/gathering.space/internal/services/shared/httpapi"
)

const (
	// BackendSQLite stores notifications in a local SQLite file.
	BackendSQLite = "sqlite"
	// BackendPostgres stores notifications in PostgreSQL.
	BackendPostgres = "postgres"
)

// Store is a notification backend serving both the feed and the push worker.
type Store interface {
	storage.NotificationStore
	storage.DeliveryStore
	Ping(ctx context.Context) error
	Close() error
}

// StoreConfig selects and locates the notification backend.
type StoreConfig struct {
	Backend     string
	SQLitePath  string
	PostgresDSN string
}

// OpenStore opens the configured backend and applies its migrations.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendSQLite:
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			path = filepath.Join("data", "notifications.db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := notificationssqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open notifications sqlite store: %w", err)
		}
		return store, nil
	case BackendPostgres:
		store, err := notificationspostgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open notifications postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Config controls the notification runtime.
type Config struct {
	// PushEnabled starts the WebSocket hub and the push delivery worker.
	PushEnabled bool
	Delivery    delivery.Config
	// CheckOrigin validates WebSocket upgrade origins. Nil accepts same-origin only.
	CheckOrigin func(r *http.Request) bool
	Clock       func() time.Time
	NewID       func() (string, error)
}

// Runtime owns one notification service instance and its background worker.
type Runtime struct {
	store   Store
	service *domain.Service
	hub     *delivery.Hub
	worker  *delivery.Worker
	handler *notifications.Handler
}

// New builds a runtime over store. The runtime takes ownership of store.
func New(store Store, cfg Config) (*Runtime, error) {
	if store == nil {
		return nil, errors.New("notification store is required")
	}
	service := domain.NewService(newDomainStoreAdapter(store, cfg.PushEnabled), cfg.Clock, cfg.NewID)
	rt := &Runtime{store: store, service: service}
	if cfg.PushEnabled {
		rt.hub = delivery.NewHub(cfg.CheckOrigin)
		rt.worker = delivery.NewWorker(store, rt.hub, cfg.Delivery, cfg.Clock)
		rt.handler = notifications.NewHandler(service, rt.hub)
	} else {
		rt.handler = notifications.NewHandler(service, nil)
	}
	return rt, nil
}

// Service returns the notification use-cases.
func (r *Runtime) Service() *domain.Service {
	if r == nil {
		return nil
	}
	return r.service
}

// Routes returns the HTTP registrar for notification endpoints.
func (r *Runtime) Routes() httpapi.RouteRegistrar {
	return r.handler
}

// Ping checks the backing store.
func (r *Runtime) Ping(ctx context.Context) error {
	if r == nil || r.store == nil {
		return errors.New("notification runtime is not configured")
	}
	return r.store.Ping(ctx)
}

// Run drives push delivery until ctx is cancelled. Without push it only
// waits for cancellation.
func (r *Runtime) Run(ctx context.Context) error {
	if r == nil {
		return errors.New("notification runtime is not configured")
	}
	if r.worker == nil {
		<-ctx.Done()
		return nil
	}
	return r.worker.Run(ctx)
}

// Close disconnects push clients and releases the store.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	if r.hub != nil {
		r.hub.Close()
	}
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}
