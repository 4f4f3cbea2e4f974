package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdduha/apeiron/backend/internal/asset"
	"github.com/kdduha/apeiron/backend/internal/cache"
	"github.com/kdduha/apeiron/backend/internal/config"
	"github.com/kdduha/apeiron/backend/internal/handler"
	"github.com/kdduha/apeiron/backend/internal/inference"
	"github.com/kdduha/apeiron/backend/internal/logger"
	"github.com/kdduha/apeiron/backend/internal/service"

	_ "github.com/kdduha/apeiron/backend/docs"
)

// @title Apeiron media analysis proxy
// @version 1.0
// @description Stages gameplay media on NVCF and relays NVIDIA VILA analysis.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		l := logger.New("info", false)
		l.Fatal().Err(err).Msg("config error")
	}

	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogPretty)

	// uploads and the inference call are bounded by the server timeout middleware
	httpClient := &http.Client{}
	formats := cfg.NVIDIA.FormatTable()

	analyzeService := service.NewAnalyzeService(
		log,
		asset.NewClient(log, httpClient, cfg.NVIDIA.AssetsURL, cfg.NVIDIA.APIKey, formats),
		inference.NewClient(log, httpClient, cfg.NVIDIA),
		cfg.NVIDIA,
	)

	if cfg.CacheEnable {
		redisCache := cache.NewRedisCache(
			cfg.RedisConfig.Addr,
			cfg.RedisConfig.Password,
			cfg.RedisConfig.DB,
			cfg.RedisConfig.TTL,
		)
		defer redisCache.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisConfig.Addr).Msg("redis is unreachable, cache errors will be ignored")
		}
		cancel()

		analyzeService.SetCacheClient(redisCache)
		log.Info().Msg("set redis as cache")
	}

	if cfg.Server.StaticDir != "" {
		if _, err := os.Stat(cfg.Server.StaticDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.Server.StaticDir).Msg("dashboard build not found, static files will 404")
		}
	}

	r := handler.NewRouter(
		cfg.Server,
		log,
		handler.NewAnalyzeHandler(analyzeService, cfg.Server.MaxUploadBytes),
		handler.NewHealthHandler(),
	)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("proxy server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped")
}
