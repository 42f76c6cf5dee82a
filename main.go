package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"durgatraders/m/internal/api"
	"durgatraders/m/internal/auth"
	"durgatraders/m/internal/billing"
	"durgatraders/m/internal/catalog"
	"durgatraders/m/internal/config"
	"durgatraders/m/internal/database"
	"durgatraders/m/internal/logging"
	"durgatraders/m/internal/migrations"
	"durgatraders/m/internal/seed"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	if _, err := seed.LoadTiles(db, cfg.SeedCSV, logger); err != nil {
		logger.Warn("tile seed failed", zap.Error(err))
	}

	numbers, err := billing.NewBillNumbers(billing.DefaultBillPrefix, cfg.BillNodeID)
	if err != nil {
		logger.Fatal("bill numbers", zap.Error(err))
	}

	authn, err := auth.NewTokenAuthenticator(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminPasswordHash, cfg.Secret, cfg.SessionTTL)
	if err != nil {
		logger.Fatal("authenticator", zap.Error(err))
	}

	tiles := catalog.New(db)
	ledger := billing.NewLedger(db)
	opts := []billing.Option{billing.WithLogger(logger.Named("billing"))}
	if cfg.EnforceCatalogPrice {
		opts = append(opts, billing.WithCatalogPriceCheck())
	}
	orders := billing.NewProcessor(db, tiles, ledger, numbers, opts...)

	handler := api.New(tiles, ledger, orders, authn, logger.Named("api"), api.Options{
		StaticDir:         cfg.StaticDir,
		CORSOrigins:       cfg.CORSOrigins,
		LowStockThreshold: cfg.LowStockThreshold,
		SecureCookies:     cfg.AppEnv == "production",
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Durga Traders server starting", zap.String("port", cfg.HTTPPort), zap.String("driver", cfg.DBDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
