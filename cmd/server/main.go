package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"vigil/internal/challenge"
	"vigil/internal/handshake"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/logger"
	"vigil/internal/platform/metrics"
	platformredis "vigil/internal/platform/redis"
	"vigil/internal/portresolver"
	"vigil/internal/registry"
	"vigil/internal/revoke"
	"vigil/internal/store"
	storepostgres "vigil/internal/store/postgres"
	storeredis "vigil/internal/store/redis"
	httptransport "vigil/internal/transport/http"
	"vigil/internal/transport/kafka"
	"vigil/internal/verify"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in the internal service packages; stores fall back
// to in-memory implementations when no backend is configured.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var (
		windows  store.WindowStore  = store.NewInMemoryWindowStore()
		bindings store.BindingStore = store.NewInMemoryBindingStore()
		bans     store.BanStore     = store.NewInMemoryBanStore()
		readings store.ReadingStore = store.NewInMemoryReadingStore()
	)

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		windows = storeredis.NewWindowStore(redisClient.Client)
		bindings = storeredis.NewBindingStore(redisClient.Client)
		log.Info("using redis-backed window and binding stores")
	}

	if cfg.DatabaseURL != "" {
		db, err := storepostgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		bans = storepostgres.NewBanStore(db)
		readings = storepostgres.NewReadingStore(db)
		log.Info("using postgres-backed ban and reading stores")
	}

	registryClient := registry.NewClient(cfg.RegistryURL)
	logQuery := registry.NewLogQueryClient(cfg.LogQueryURL)

	resolver := portresolver.New(logQuery, log)
	revoker := revoke.New(registryClient, log, cfg.RevokeParallelism)
	tracker := challenge.NewTracker(windows, bindings, revoker, log, cfg.ResponseWindow)
	completer := handshake.NewCompleter(bindings, resolver, log, cfg.ResolverWindow)
	cache := verify.NewCache(cfg.CacheWindow)
	gate := verify.NewGate(cache, bindings, readings, bans, resolver, revoker, log, cfg.ResolverWindow)

	handler := httptransport.NewHandler(tracker, completer, gate, log)
	router := httptransport.NewRouter(handler)
	srv := httpserver.New(cfg.Addr, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CacheEntries.Set(float64(cache.Len()))
			}
		}
	}()

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(
			cfg.KafkaBrokers, cfg.KafkaGroup, kafka.DefaultTopics(cfg.TopicPrefix),
			tracker, completer, gate, log,
		)
		if err != nil {
			log.Error("kafka consumer setup failed", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && err != context.Canceled {
				log.Error("kafka consumer stopped", "error", err)
			}
		}()
		log.Info("kafka consumer started",
			"brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)
	}

	log.Info("starting vigil", "addr", cfg.Addr,
		"response_window", cfg.ResponseWindow, "cache_window", cfg.CacheWindow)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
