package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/worksuite/identity-service/config"
	"github.com/worksuite/identity-service/db"
	"github.com/worksuite/identity-service/internal/audit"
	"github.com/worksuite/identity-service/internal/identity/handler"
	"github.com/worksuite/identity-service/internal/identity/middleware"
	repo "github.com/worksuite/identity-service/internal/identity/repository/postgres"
	"github.com/worksuite/identity-service/internal/identity/service"
	"github.com/worksuite/identity-service/internal/maintenance"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPostgresPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("failed to set up database pool: %v", err)
	}
	defer dbPool.Close()

	repository := repo.NewPostgresRepository(dbPool)

	events := audit.NewDispatcher(cfg.AuditBufferSize, audit.NewJSONWriterSink(os.Stdout))
	defer events.Close()

	tokenService := service.NewTokenService(cfg.TokenSecret, cfg.AccessExpiryMin, cfg.RefreshExpiryMin)
	sessionService := service.NewSessionService(repository, events, cfg.MaxConcurrentSessions, cfg.InactivityTimeout())
	authService := service.NewAuthService(repository, repository, sessionService, tokenService, events, cfg)

	sweeper := maintenance.NewSweeper(cfg.SweepInterval(),
		maintenance.Task{Name: "idle-sessions", Run: sessionService.SweepExpired},
		maintenance.Task{Name: "expired-refresh-tokens", Run: repository.DeleteExpiredRefreshTokens},
		maintenance.Task{Name: "old-login-attempts", Run: func(ctx context.Context) (int64, error) {
			return repository.DeleteAttemptsBefore(ctx, time.Now().Add(-cfg.AttemptRetention()))
		}},
	)
	sweeper.Start(ctx)

	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(middleware.Authenticate(tokenService, repository, sessionService))

	authHandler := handler.NewAuthHandler(authService, sessionService)
	handler.RegisterRoutes(app, authHandler)

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		_ = app.Shutdown()
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
