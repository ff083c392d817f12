package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"facility-form-backend/config"
	"facility-form-backend/internal/api"
	"facility-form-backend/internal/db"
	"facility-form-backend/internal/directory"
	"facility-form-backend/internal/ledger"
	"facility-form-backend/internal/logger"
	"facility-form-backend/internal/notification"
	"facility-form-backend/internal/session"
	"facility-form-backend/internal/store"
	"facility-form-backend/internal/watcher"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("configuration loaded", zap.String("path", configPath))

	signer, err := ledger.LoadSigner(cfg.Signer)
	if err != nil {
		log.Fatal("failed to load signing key", zap.Error(err))
	}
	log.Info("signing key loaded", zap.String("public_key", signer.PublicKey()))

	gormDB, err := db.Init(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	client := ledger.NewClient(cfg.Ledger, log.Named("ledger"))
	submitter := ledger.NewSubmitter(client, signer, appStore, log.Named("ledger"))
	agents := directory.NewService(client, signer, cfg.Ledger.DirectoryCacheTTL, log.Named("directory"))
	sessions := session.NewRegistry(agents, cfg.Forms.SessionTTL, log.Named("forms"))

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	var pool watcher.Dispatcher
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		log.Warn("VAPID keys are not configured, commit notifications are disabled")
	} else {
		wp := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions, log.Named("notification"))
		wp.Start(ctx)
		pool = wp
	}

	watcherSvc := watcher.NewService(cfg.Watcher, appStore, client, pool, log.Named("watcher"))
	go watcherSvc.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Store:     appStore,
		Sessions:  sessions,
		Directory: agents,
		Submitter: submitter,
		WebPush:   &webpushOptions,
		Forms:     cfg.Forms,
		Log:       log.Named("api"),
	})
	router := api.NewRouter(handler, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("HTTP server Shutdown", zap.Error(err))
	}

	log.Info("server gracefully stopped")
}
