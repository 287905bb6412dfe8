package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nppfbt/ndi-verifier/internal/api"
	"github.com/nppfbt/ndi-verifier/internal/cache"
	"github.com/nppfbt/ndi-verifier/internal/config"
	"github.com/nppfbt/ndi-verifier/internal/core/services"
	"github.com/nppfbt/ndi-verifier/internal/gateways"
	"github.com/nppfbt/ndi-verifier/internal/health"
	phttp "github.com/nppfbt/ndi-verifier/internal/http"
	"github.com/nppfbt/ndi-verifier/internal/log"
	"github.com/nppfbt/ndi-verifier/internal/providers"
	"github.com/nppfbt/ndi-verifier/internal/pubsub"
	"github.com/nppfbt/ndi-verifier/internal/redis"
	"github.com/nppfbt/ndi-verifier/internal/repositories"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout))
	defer cancel()

	if err := cfg.Sanitize(); err != nil {
		log.Error(ctx, "there are errors in the configuration that prevent server to start", "err", err)
		return
	}

	cachex, err := cache.NewCacheClient(ctx, *cfg)
	if err != nil {
		log.Error(ctx, "cannot initialize cache", "err", err)
		return
	}

	broadcaster, pingers := newBroadcaster(ctx, cfg)

	seed, err := eventSeed(ctx, cfg)
	if err != nil {
		log.Error(ctx, "cannot obtain event gateway seed", "err", err)
		return
	}
	events := pubsub.NewWSClient(cfg.NDI.EventServerURL, seed)
	defer func() {
		if err := events.Close(); err != nil {
			log.Warn(ctx, "closing event gateway", "err", err)
		}
	}()

	ndiGateway := gateways.NewNDIClient(
		phttp.NewClientWithRetry(cfg.NDI.RequestTimeout),
		cfg.NDI.BaseURL, cfg.NDI.ReturnURL, cfg.NDI.WebhookID, cfg.NDI.WebhookURL,
	)
	pensionerGateway := gateways.NewPensionerClient(
		phttp.NewClientWithRetry(cfg.Pensioner.RequestTimeout),
		cfg.Pensioner.BaseURL,
	)

	sessions := repositories.NewSessionCached(cachex)
	profiles := repositories.NewProfileCached(cachex)

	verification := services.NewVerificationService(ndiGateway, sessions, events, broadcaster, services.VerificationConfig{
		PollInterval: cfg.NDI.PollInterval,
		PollDeadline: cfg.NDI.PollDeadline,
	})
	accounts := services.NewAccountService(pensionerGateway)
	qrStore := services.NewQrStoreService(cachex)

	server := api.NewServer(cfg, verification, accounts, qrStore, profiles, health.New(pingers))
	go server.Watch(ctx)

	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		log.ChiMiddleware(ctx),
		cors.AllowAll().Handler,
	)
	server.Routes(mux)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: mux,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(ctx, fmt.Sprintf("server started on port:%d", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "starting http server", "err", err)
		}
	}()

	<-quit
	log.Info(ctx, "shutting down")

	verification.Cancel()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutting down http server", "err", err)
	}
}

// newBroadcaster wires the internal outcome topic over redis when the cache
// provider is redis. Other providers fall back to an in-process mock: the
// broadcast is an optional integration point, not part of the core flow.
func newBroadcaster(ctx context.Context, cfg *config.Configuration) (pubsub.Client, map[string]health.Ping) {
	pingers := map[string]health.Ping{}

	if cfg.Cache.Provider == config.CacheProviderRedis {
		rdb, err := redis.Open(ctx, cfg.Cache.Url)
		if err != nil {
			log.Warn(ctx, "cannot connect redis for outcome broadcast", "err", err)
			return pubsub.NewMock(), pingers
		}
		pingers["redis"] = health.PingFunc(func(ctx context.Context) error {
			return redis.Status(ctx, rdb)
		})
		return pubsub.NewRedis(rdb), pingers
	}

	return pubsub.NewMock(), pingers
}

// eventSeed resolves the event gateway credential. The key store wins; the
// config value is a development override only.
func eventSeed(ctx context.Context, cfg *config.Configuration) (string, error) {
	if cfg.KeyStore.Address == "" {
		return cfg.NDI.EventAuthSeed, nil
	}

	vaultCli, err := providers.NewVaultClient(cfg.KeyStore.Address, cfg.KeyStore.Token)
	if err != nil {
		return "", err
	}
	return providers.EventSeed(ctx, vaultCli, cfg.KeyStore.EventSeedKey)
}
