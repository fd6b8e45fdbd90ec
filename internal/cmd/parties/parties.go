// Package parties parses parties service flags and launches the service.
package parties

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/gathering.space/internal/platform/cmd"
	"github.com/louisbranch/gathering.space/internal/platform/config"
	platformgrpc "github.com/louisbranch/gathering.space/internal/platform/grpc"
	"github.com/louisbranch/gathering.space/internal/platform/timeouts"
	notificationsapp "github.com/louisbranch/gathering.space/internal/services/notifications/app"
	"github.com/louisbranch/gathering.space/internal/services/notifications/delivery"
	server "github.com/louisbranch/gathering.space/internal/services/parties/app"
)

// Config holds parties command configuration.
type Config struct {
	Port                 int           `env:"GATHERING_SPACE_PARTIES_PORT" envDefault:"8094"`
	HealthPort           int           `env:"GATHERING_SPACE_PARTIES_HEALTH_PORT" envDefault:"8095"`
	StorageBackend       string        `env:"GATHERING_SPACE_PARTIES_STORAGE_BACKEND" envDefault:"sqlite"`
	DBPath               string        `env:"GATHERING_SPACE_PARTIES_DB_PATH" envDefault:"data/parties.db"`
	NotificationsDBPath  string        `env:"GATHERING_SPACE_PARTIES_NOTIFICATIONS_DB_PATH" envDefault:"data/notifications.db"`
	PostgresDSN          string        `env:"GATHERING_SPACE_PARTIES_POSTGRES_DSN"`
	JWTSecret            string        `env:"GATHERING_SPACE_JWT_SECRET"`
	AllowedOrigins       []string      `env:"GATHERING_SPACE_PARTIES_ALLOWED_ORIGINS" envSeparator:","`
	AllowRejoin          bool          `env:"GATHERING_SPACE_PARTIES_ALLOW_REJOIN" envDefault:"true"`
	PushEnabled          bool          `env:"GATHERING_SPACE_PARTIES_PUSH_ENABLED" envDefault:"true"`
	DeliveryPollInterval time.Duration `env:"GATHERING_SPACE_PARTIES_DELIVERY_POLL_INTERVAL" envDefault:"2s"`
	DeliveryBatchSize    int           `env:"GATHERING_SPACE_PARTIES_DELIVERY_BATCH_SIZE" envDefault:"50"`
	DeliveryMaxAttempts  int           `env:"GATHERING_SPACE_PARTIES_DELIVERY_MAX_ATTEMPTS" envDefault:"5"`
	DeliveryRetryBackoff time.Duration `env:"GATHERING_SPACE_PARTIES_DELIVERY_RETRY_BACKOFF" envDefault:"1s"`
	DeliveryRetryMax     time.Duration `env:"GATHERING_SPACE_PARTIES_DELIVERY_RETRY_MAX_DELAY" envDefault:"5m"`
	Locale               string        `env:"GATHERING_SPACE_PARTIES_LOCALE" envDefault:"en-US"`

	// HealthCheck probes a running instance instead of starting one.
	HealthCheck bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	origins := strings.Join(cfg.AllowedOrigins, ",")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The parties HTTP server port")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The parties gRPC health server port")
	fs.StringVar(&cfg.StorageBackend, "storage-backend", cfg.StorageBackend, "Storage backend: sqlite or postgres")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The parties SQLite database path")
	fs.StringVar(&cfg.NotificationsDBPath, "notifications-db-path", cfg.NotificationsDBPath, "The notifications SQLite database path")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string for the postgres backend")
	fs.StringVar(&origins, "allowed-origins", origins, "Comma-separated CORS and WebSocket origins")
	fs.BoolVar(&cfg.AllowRejoin, "allow-rejoin", cfg.AllowRejoin, "Let rejected or cancelled participants request again")
	fs.BoolVar(&cfg.PushEnabled, "push", cfg.PushEnabled, "Enable WebSocket push delivery")
	fs.DurationVar(&cfg.DeliveryPollInterval, "delivery-poll-interval", cfg.DeliveryPollInterval, "Push delivery poll interval")
	fs.IntVar(&cfg.DeliveryBatchSize, "delivery-batch-size", cfg.DeliveryBatchSize, "Push deliveries claimed per poll")
	fs.IntVar(&cfg.DeliveryMaxAttempts, "delivery-max-attempts", cfg.DeliveryMaxAttempts, "Maximum push attempts before dead-letter")
	fs.DurationVar(&cfg.DeliveryRetryBackoff, "delivery-retry-backoff", cfg.DeliveryRetryBackoff, "Base push retry backoff delay")
	fs.DurationVar(&cfg.DeliveryRetryMax, "delivery-retry-max-delay", cfg.DeliveryRetryMax, "Maximum push retry delay")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Language used for ledger notification copy")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe the local health endpoint and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = config.SplitList(origins)
	return cfg, nil
}

// RuntimeConfig maps command configuration onto the server runtime.
func (c Config) RuntimeConfig() server.RuntimeConfig {
	backend := strings.ToLower(strings.TrimSpace(c.StorageBackend))
	return server.RuntimeConfig{
		HTTPAddr:   fmt.Sprintf(":%d", c.Port),
		HealthAddr: fmt.Sprintf(":%d", c.HealthPort),
		Storage: server.StoreConfig{
			Backend:     backend,
			SQLitePath:  c.DBPath,
			PostgresDSN: c.PostgresDSN,
		},
		NotificationsStorage: notificationsapp.StoreConfig{
			Backend:     backend,
			SQLitePath:  c.NotificationsDBPath,
			PostgresDSN: c.PostgresDSN,
		},
		JWTSecret:      c.JWTSecret,
		AllowedOrigins: c.AllowedOrigins,
		AllowRejoin:    c.AllowRejoin,
		PushEnabled:    c.PushEnabled,
		Delivery: delivery.Config{
			PollInterval:  c.DeliveryPollInterval,
			BatchSize:     c.DeliveryBatchSize,
			MaxAttempts:   c.DeliveryMaxAttempts,
			RetryBackoff:  c.DeliveryRetryBackoff,
			RetryMaxDelay: c.DeliveryRetryMax,
		},
		Locale: c.Locale,
	}
}

// Run starts the parties service, or probes it when HealthCheck is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.HealthCheck {
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.HealthPort)
		return platformgrpc.Probe(ctx, addr, server.HealthService, timeouts.HealthProbe, log.Printf)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceParties, func(ctx context.Context) error {
		return server.Run(ctx, cfg.RuntimeConfig())
	})
}
