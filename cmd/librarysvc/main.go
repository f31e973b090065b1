package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/bookcase/internal/domain"
	"github.com/mkrupp/bookcase/internal/infra/config"
	"github.com/mkrupp/bookcase/internal/infra/logging"
	"github.com/mkrupp/bookcase/internal/repo/sqlitedb"
	"github.com/mkrupp/bookcase/internal/repo/user"
	"github.com/mkrupp/bookcase/internal/svc/authsvc"
)

const (
	appName = "bookcase"
	svcName = "librarysvc"
)

type Config struct {
	config.EnvConfig

	Log  logging.LoggerConfig `envPrefix:"LOG_"`
	DB   sqlitedb.Config      `envPrefix:"DB_"`
	Auth authsvc.AuthConfig   `envPrefix:"AUTH_"`

	// BootstrapName/Email/Password seed an initial librarian account when set,
	// so a fresh deployment has an elevated user to manage the catalog with.
	BootstrapName     string `env:"BOOTSTRAP_NAME" default:""`
	BootstrapEmail    string `env:"BOOTSTRAP_EMAIL" default:""`
	BootstrapPassword string `env:"BOOTSTRAP_PASSWORD" default:""`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

// run opens the store (creating the schema if needed), seeds the bootstrap
// librarian when configured, and blocks until the process is signalled to
// stop. Transports are mounted by an outer layer.
func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.librarysvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)

			return
		}

		log.InfoContext(ctx, "shutdown")
	}()

	db, err := sqlitedb.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	authSvc, err := authsvc.NewAuthService(user.NewSQLiteUserRepository(db), cfg.Auth)
	if err != nil {
		return fmt.Errorf("new auth service: %w", err)
	}

	if cfg.BootstrapEmail != "" {
		_, err := authSvc.Register(ctx,
			cfg.BootstrapName, cfg.BootstrapEmail, cfg.BootstrapPassword,
			domain.RoleLibrarian,
		)
		if err != nil && !errors.Is(err, domain.ErrEmailTaken) {
			return fmt.Errorf("bootstrap librarian: %w", err)
		}
	}

	log.InfoContext(ctx, "librarysvc ready")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	return nil
}
