// Package devtoken mints bearer tokens for local development.
package devtoken

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/louisbranch/gathering.space/internal/platform/config"
	"github.com/louisbranch/gathering.space/internal/services/shared/authctx"
)

// Config holds configuration for token minting.
type Config struct {
	Secret string        `env:"GATHERING_SPACE_JWT_SECRET"`
	UserID string        `env:"GATHERING_SPACE_DEV_TOKEN_USER"`
	Roles  []string      `env:"GATHERING_SPACE_DEV_TOKEN_ROLES" envSeparator:","`
	TTL    time.Duration `env:"GATHERING_SPACE_DEV_TOKEN_TTL" envDefault:"24h"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	roles := strings.Join(cfg.Roles, ",")
	fs.StringVar(&cfg.Secret, "secret", cfg.Secret, "HS256 signing secret shared with the parties service")
	fs.StringVar(&cfg.UserID, "user", cfg.UserID, "user id carried by the token")
	fs.StringVar(&roles, "roles", roles, "comma-separated role claims (for example: admin)")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Roles = config.SplitList(roles)
	return cfg, nil
}

// Run mints the token and writes it to out.
func Run(cfg Config, out io.Writer, now time.Time) error {
	if out == nil {
		return errors.New("output is required")
	}
	if cfg.TTL <= 0 {
		return errors.New("ttl must be greater than zero")
	}
	token, err := authctx.Issue(cfg.Secret, authctx.IssueInput{
		UserID: cfg.UserID,
		Roles:  cfg.Roles,
		TTL:    cfg.TTL,
		Now:    now,
	})
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
