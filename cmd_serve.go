package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"medichat-server/internal/cache"
	"medichat-server/internal/config"
	"medichat-server/internal/generator"
	"medichat-server/internal/logging"
	"medichat-server/internal/medicine"
	"medichat-server/internal/models"
	"medichat-server/internal/routes"
	"medichat-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.Environment == "development",
	})
	if err != nil {
		logger.Error("database unavailable", zap.Error(err))
		return err
	}

	kb, err := medicine.LoadDefault()
	if err != nil {
		return err
	}

	gen, err := generator.New(ctx, cfg.LLM, logger)
	if err != nil {
		return err
	}

	history := cache.Connect(ctx, cfg.Redis, logger)
	defer func() { _ = history.Close() }()

	router := routes.NewRouter(routes.Dependencies{
		DB:          db,
		Tokens:      utils.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLMinutes)*time.Minute),
		Generator:   gen,
		Medicines:   kb,
		History:     history,
		Logger:      logger,
		Origin:      cfg.Origin,
		EmailDomain: cfg.AllowedEmailDomain,
		RateLimit:   rate.Limit(cfg.RateLimit.RPS),
		RateBurst:   cfg.RateLimit.Burst,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.Int("medicines", kb.Len()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
