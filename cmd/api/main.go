package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "reviewhub/internal/adapters/http_server"
	"reviewhub/internal/adapters/observability"
	"reviewhub/internal/adapters/ollama"
	"reviewhub/internal/adapters/qdrant"
	redisad "reviewhub/internal/adapters/redis"
	"reviewhub/internal/app"
	"reviewhub/internal/shared"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// embedder
	embedder, err := ollama.New(cfg.OllamaHost, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		log.Fatal().Err(err).Msg("embedder init failed")
	}
	log.Info().Str("model", embedder.Model()).Int("dim", embedder.Dimension()).Msg("embedder ready")

	// vector store (single process-wide handle, closed on shutdown)
	store, err := qdrant.New(ctx, cfg.QdrantAddr, cfg.Collection, embedder)
	if err != nil {
		log.Fatal().Err(err).Msg("qdrant init failed")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("store close failed")
		}
	}()
	log.Info().Str("addr", cfg.QdrantAddr).Str("collection", cfg.Collection).Msg("vector store ready")

	// deps
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	ing := app.NewIngestionService(store, cache)
	q := app.NewQueryService(store, cache, cfg.CacheTTL)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Ing: ing, Q: q})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}
