package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/storefront/go-auth"
	"github.com/storefront/go-auth/activitymap"
	"github.com/storefront/go-auth/provider/google"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	cfg, err := auth.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	logger := auth.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	if err := auth.CreateUsersTable(ctx, db); err != nil {
		log.Fatal(err)
	}

	sink := activitymap.NewLogSink(logger)
	users := auth.NewUsersRepository(db)
	tokens := auth.NewTokenService(cfg).WithLogger(logger)
	auther := auth.NewAuthenticator(users, tokens).WithLogger(logger).WithActivitySink(sink)
	recovery := auth.NewRecoveryService(users, tokens, auth.NewLogNotifier(logger), time.Duration(cfg.GetOTPTTL())*time.Second).
		WithLogger(logger).
		WithMinResponseTime(time.Duration(cfg.RecoveryMinMS) * time.Millisecond).
		WithActivitySink(sink)
	guard := auth.NewRoleGuard(tokens, cfg).WithLogger(logger)

	controller := auth.NewAuthController(cfg, auther, recovery, guard).WithLogger(logger)

	if cfg.GoogleClientID != "" {
		verifier, err := google.New(google.Config{
			ClientID: cfg.GoogleClientID,
			JWKSURL:  cfg.GoogleJWKSURL,
			Logger:   logger,
		})
		if err != nil {
			log.Fatal(err)
		}
		defer verifier.Close()

		controller.WithFederated(auth.NewFederatedAuthenticator(verifier, users, auther).
			WithLogger(logger).
			WithActivitySink(sink))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.NewErrorHandler(logger),
	})
	controller.RegisterRoutes(app)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func openDB(dsn string) (*bun.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
