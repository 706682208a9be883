package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-agent-admin/internal/agentconfig"
	"voice-agent-admin/internal/auth"
	"voice-agent-admin/internal/calls"
	"voice-agent-admin/internal/config"
	"voice-agent-admin/internal/httpapi"
	"voice-agent-admin/internal/reporting"
	"voice-agent-admin/internal/store"
	"voice-agent-admin/internal/voice"
	"voice-agent-admin/pkg/logger"
	"voice-agent-admin/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// Persistence: the hosted row-store's REST interface.
	storeClient := store.NewClient(cfg.Store.URL, cfg.Store.APIKey)
	configRepo := store.NewConfigRepo(storeClient)
	callRepo := store.NewCallRepo(storeClient)

	voiceClient := voice.NewClient(cfg.Voice.BaseURL, cfg.Voice.APIKey)
	if !voiceClient.Configured() {
		log.Warn("voice provider key missing; call triggering disabled until configured")
	}

	// Webhook dedup is optional; the reconciler is idempotent without it.
	var deduper *utils.EventDeduper
	if cfg.Redis.Addr != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.Redis.Addr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		deduper = utils.NewEventDeduper(rdb, 0)
	}

	configService := agentconfig.NewService(configRepo, voiceClient, callRepo)
	callService := calls.NewService(callRepo, voiceClient, configService)
	reportService := reporting.NewService(callService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:    authManager,
		Configs: configService,
		Calls:   callService,
		Voice:   voiceClient,
		Reports: reportService,
		Deduper: deduper,
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
