package main

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/feedkit/app/api"
	"github.com/lysyi3m/feedkit/app/cfg"
	"github.com/lysyi3m/feedkit/app/database"
	"github.com/lysyi3m/feedkit/app/feed"
	"github.com/lysyi3m/feedkit/app/logger"
	"github.com/lysyi3m/feedkit/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logger.Init(logger.Config{Debug: appCfg.Debug, Format: appCfg.LogFormat})
	log := logger.Log

	log.WithField("version", appCfg.Version).Info("Starting feedkit")

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}
	log.WithFields(logger.Fields{"path": appCfg.DBPath, "version": version, "dirty": dirty}).Info("Database ready")

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		log.WithError(err).Fatal("Failed to load feed configurations")
	}
	log.WithFields(logger.Fields{
		"dir":     appCfg.FeedsDir,
		"total":   configCache.GetConfigCount(),
		"enabled": len(configCache.GetEnabledConfigs()),
	}).Info("Feed configurations loaded")

	feedRepo := database.NewFeedRepository(db)
	parser := feed.NewParser()
	generator := feed.NewGenerator()
	filterer := feed.NewFilterer()
	contentExtractor := feed.NewContentExtractor()
	fetcher := tasks.NewFetcher(appCfg.UserAgent)

	runner := tasks.NewRunner(configCache, feedRepo, fetcher, parser, filterer, contentExtractor, appCfg.WorkerCount)
	runner.Start()
	defer runner.Stop()

	baseURL := cmp.Or(appCfg.BaseUrl, "http://localhost:"+appCfg.Port)
	handler := api.NewHandler(configCache, feedRepo, parser, generator, runner, baseURL)
	router := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.WithFields(logger.Fields{"port": appCfg.Port, "base_url": baseURL}).Info("Starting HTTP server")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Received signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server error")
	}

	log.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown error")
	} else {
		log.Info("HTTP server stopped")
	}
}
