package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jashezan/HomifyHub/internal/app"
	"github.com/jashezan/HomifyHub/internal/auth"
	"github.com/jashezan/HomifyHub/internal/config"
	"github.com/jashezan/HomifyHub/internal/migrations"
	"github.com/jashezan/HomifyHub/pkg/database"
	"github.com/jashezan/HomifyHub/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	migrateOnly := fs.Bool("migrate", false, "apply pending migrations and exit")
	issueToken := fs.String("issue-token", "", "print an access token for `user-id` and exit")
	email := fs.String("email", "", "email claim for -issue-token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize structured logger.
	log := logger.New("storefront", cfg.LogLevel)

	// Create a context that is canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *issueToken != "":
		return printToken(cfg, *issueToken, *email)
	case *migrateOnly:
		return migrate(ctx, cfg, log)
	}

	log.Info("starting storefront",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
	)

	// Create the application with all dependencies wired.
	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	// Run the application. This blocks until shutdown.
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("run application: %w", err)
	}

	log.Info("storefront stopped")
	return nil
}

func migrate(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	applied, err := database.RunMigrations(ctx, pool, migrations.FS, log)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("migrations complete", slog.Int("applied", len(applied)))
	return nil
}

// printToken issues a token signed with JWT_SECRET, for signing in the
// sync client during development.
func printToken(cfg *config.Config, userID, email string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("-issue-token needs a user id")
	}
	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenExpiry).GenerateAccessToken(userID, email)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}
