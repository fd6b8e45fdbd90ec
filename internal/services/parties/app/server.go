// Package server wires the party ledger, its notification runtime, and the
// HTTP and gRPC health lifecycle into one process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	platformgrpc "github.com/louisbranch/gathering.space/internal/platform/grpc"
	"github.com/louisbranch/gathering.space/internal/platform/i18n"
	"github.com/louisbranch/gathering.space/internal/platform/timeouts"
	notificationsapp "github.com/louisbranch/gathering.space/internal/services/notifications/app"
	"github.com/louisbranch/gathering.space/internal/services/notifications/delivery"
	"github.com/louisbranch/gathering.space/internal/services/notifications/render"
	"github.com/louisbranch/gathering.space/internal/services/parties/api/http/parties"
	"github.com/louisbranch/gathering.space/internal/services/parties/domain"
	"github.com/louisbranch/gathering.space/internal/services/parties/storage"
	partiespostgres "github.com/louisbranch/gathering.space/internal/services/parties/storage/postgres"
	partiessqlite "github.com/louisbranch/gathering.space/internal/services/parties/storage/sqlite"
	"github.com/louisbranch/gathering.space/internal/services/shared/authctx"
	"github.com/louisbranch/gathering.space/internal/services/shared/httpapi"
)

// HealthService is the gRPC health entry reported by the parties process.
const HealthService = "gathering.parties"

const (
	// BackendSQLite stores parties in a local SQLite file.
	BackendSQLite = "sqlite"
	// BackendPostgres stores parties in PostgreSQL.
	BackendPostgres = "postgres"
)

// Store is a party backend with lifecycle hooks.
type Store interface {
	storage.PartyStore
	Ping(ctx context.Context) error
	Close() error
}

// StoreConfig selects and locates the party backend.
type StoreConfig struct {
	Backend     string
	SQLitePath  string
	PostgresDSN string
}

// OpenStore opens the configured party backend and applies its migrations.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendSQLite:
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			path = filepath.Join("data", "parties.db")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := partiessqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open parties sqlite store: %w", err)
		}
		return store, nil
	case BackendPostgres:
		store, err := partiespostgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open parties postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// RuntimeConfig configures one parties process.
type RuntimeConfig struct {
	HTTPAddr   string
	HealthAddr string

	Storage              StoreConfig
	NotificationsStorage notificationsapp.StoreConfig

	JWTSecret      string
	AllowedOrigins []string
	AllowRejoin    bool
	PushEnabled    bool
	Delivery       delivery.Config
	// Locale selects the language used to render ledger notifications.
	Locale string

	Clock func() time.Time
	NewID func() (string, error)
}

// Server hosts the parties HTTP API and the gRPC health endpoint.
type Server struct {
	httpListener   net.Listener
	healthListener net.Listener
	httpServer     *http.Server
	health         *platformgrpc.HealthServer
	store          Store
	notifications  *notificationsapp.Runtime
	service        *domain.Service
	closeOnce      sync.Once
}

// New opens storage and binds both listeners.
func New(ctx context.Context, cfg RuntimeConfig) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	verifier, err := authctx.NewJWTVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	openCtx, cancel := context.WithTimeout(ctx, timeouts.StoreOpen)
	defer cancel()
	store, err := OpenStore(openCtx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	notificationStore, err := notificationsapp.OpenStore(openCtx, cfg.NotificationsStorage)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	notifications, err := notificationsapp.New(notificationStore, notificationsapp.Config{
		PushEnabled: cfg.PushEnabled,
		Delivery:    cfg.Delivery,
		CheckOrigin: originChecker(cfg.AllowedOrigins),
		Clock:       cfg.Clock,
	})
	if err != nil {
		_ = notificationStore.Close()
		_ = store.Close()
		return nil, err
	}

	tag, ok := i18n.ParseTag(cfg.Locale)
	if !ok {
		tag = i18n.DefaultTag()
	}
	service := domain.NewService(newDomainStoreAdapter(store), cfg.Clock, cfg.NewID,
		domain.WithNotifier(newNotificationNotifier(notifications.Service(), render.Printer(tag))),
		domain.WithRejoin(cfg.AllowRejoin),
	)

	s := &Server{
		store:         store,
		notifications: notifications,
		service:       service,
		health:        platformgrpc.NewHealthServer(HealthService),
	}
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Service:  "parties",
		Verifier: verifier,
		Healthy:  s.healthy,
	}, parties.NewHandler(service), notifications.Routes())
	s.httpServer = &http.Server{
		Handler:           httpapi.WithCORS(router, cfg.AllowedOrigins),
		ReadHeaderTimeout: timeouts.ReadHeader,
		ReadTimeout:       timeouts.Read,
		WriteTimeout:      timeouts.Write,
		IdleTimeout:       timeouts.Idle,
	}

	s.httpListener, err = net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	s.healthListener, err = net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HealthAddr, err)
	}
	return s, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// HealthAddr returns the gRPC health listener address.
func (s *Server) HealthAddr() string {
	if s == nil || s.healthListener == nil {
		return ""
	}
	return s.healthListener.Addr().String()
}

// Service returns the party use-cases served by s.
func (s *Server) Service() *domain.Service {
	if s == nil {
		return nil
	}
	return s.service
}

// Run creates and serves a parties server until context cancellation.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs HTTP, gRPC health, and push delivery until ctx is cancelled or
// one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("parties server listening at %v (health %v)", s.httpListener.Addr(), s.healthListener.Addr())
	s.health.SetServing(true, HealthService)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.health.Server.Serve(s.healthListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC health: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.notifications.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.health.SetServing(false, HealthService)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		s.health.Server.GracefulStop()
		if err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Close releases listeners and storage. It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.health != nil {
			s.health.Health.Shutdown()
			s.health.Server.Stop()
		}
		if s.httpServer != nil {
			_ = s.httpServer.Close()
		}
		if s.httpListener != nil {
			_ = s.httpListener.Close()
		}
		if s.healthListener != nil {
			_ = s.healthListener.Close()
		}
		if s.notifications != nil {
			if err := s.notifications.Close(); err != nil {
				log.Printf("close notifications runtime: %v", err)
			}
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				log.Printf("close parties store: %v", err)
			}
		}
	})
}

func (s *Server) healthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.HealthProbe)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		log.Printf("parties store ping: %v", err)
		return false
	}
	if err := s.notifications.Ping(ctx); err != nil {
		log.Printf("notifications store ping: %v", err)
		return false
	}
	return true
}

// originChecker accepts WebSocket upgrades from allowed origins. No list
// keeps the same-origin default.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
