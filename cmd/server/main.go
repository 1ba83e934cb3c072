package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"

	"usermgmt/docs"
	"usermgmt/internal/auth"
	"usermgmt/internal/cache"
	"usermgmt/internal/config"
	"usermgmt/internal/db"
	"usermgmt/internal/handler"
	"usermgmt/internal/logging"
	"usermgmt/internal/metrics"
	"usermgmt/internal/repository"
	"usermgmt/internal/router"
	"usermgmt/internal/service"
	"usermgmt/internal/storage"
	"usermgmt/internal/validation"
)

const serviceName = "usermgmt"

// @title User Management API
// @version 1.0
// @description Registration, JWT authentication, profile management and admin user search.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, serviceName, cfg.Env)
	slog.SetDefault(logger)
	logger.Info("starting", slog.Any("config", cfg))

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		logger.Warn("redis unreachable, serving without cache", slog.Any("error", err))
	}

	images, err := storage.NewLocalImageStore(cfg.UploadDir, cfg.MaxImageBytes)
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(gormDB)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	validator := validation.New()

	authService := service.NewAuthService(userRepo, jwtService, hasher, images, validator, logger)
	userService := service.NewUserService(userRepo, cacheClient, cfg.UserCacheTTL, images, validator, logger)
	gate := auth.NewGate(jwtService, auth.UserLookupFunc(userService.FindUser))

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.Register(e, router.Handlers{
		Auth:   handler.NewAuthHandler(authService, images.MaxBytes(), logger),
		Users:  handler.NewUserHandler(userService, images.MaxBytes(), logger),
		Health: handler.NewHealthHandler(gormDB, cacheClient),
	}, router.Options{
		Gate:          gate,
		Logger:        logger,
		Registry:      metrics.NewRegistry(),
		UploadDir:     images.Dir(),
		MaxImageBytes: images.MaxBytes(),
		CORSOrigins:   cfg.CORSOrigins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.ServerPort
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", addr), slog.String("swagger", "/swagger/index.html"))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
