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

	"github.com/prometheus/client_golang/prometheus"

	"reachcheck/internal/analytics"
	"reachcheck/internal/cache"
	"reachcheck/internal/classifier"
	"reachcheck/internal/event"
	"reachcheck/internal/pipeline"
	"reachcheck/internal/platform/config"
	"reachcheck/internal/platform/httpserver"
	"reachcheck/internal/platform/logger"
	"reachcheck/internal/platform/metrics"
	redisplatform "reachcheck/internal/platform/redis"
	"reachcheck/internal/plugin"
	"reachcheck/internal/probe"
	"reachcheck/internal/ratelimit"
	httptransport "reachcheck/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var store cache.Store
	var redisClient *redisplatform.Client
	if cfg.CacheEnabled {
		rc, err := redisplatform.New(cfg.RedisURL)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		redisClient = rc

		if redisClient != nil {
			store, err = cache.NewRedis(redisClient.Client, cfg.CacheTTL)
			if err != nil {
				log.Error("redis cache init failed", "error", err)
				os.Exit(1)
			}
			log.Info("using redis result cache", "ttl", cfg.CacheTTL)
		} else {
			store, err = cache.NewInMemory(cfg.CacheCapacity, cfg.CacheTTL)
			if err != nil {
				log.Error("cache init failed", "error", err)
				os.Exit(1)
			}
			log.Info("using in-memory result cache",
				"capacity", cfg.CacheCapacity,
				"ttl", cfg.CacheTTL,
			)
		}
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled {
		var err error
		limiter, err = ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)
		if err != nil {
			log.Error("rate limiter init failed", "error", err)
			os.Exit(1)
		}
	}

	bus := event.NewBus(log)
	acc := analytics.NewAccumulator()
	registry := plugin.NewRegistry(bus, log)

	var kafkaSink *event.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := event.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("kafka sink init failed", "error", err)
			os.Exit(1)
		}
		kafkaSink = sink
		bus.Register(kafkaSink)
		log.Info("kafka event sink enabled", "topic", cfg.KafkaTopic)
	}

	opts := []pipeline.Option{
		pipeline.WithEventBus(bus),
		pipeline.WithPlugins(registry),
		pipeline.WithAnalytics(acc),
		pipeline.WithMetrics(m),
		pipeline.WithLogger(log),
	}
	if store != nil {
		opts = append(opts, pipeline.WithCache(store))
	}
	if limiter != nil {
		opts = append(opts, pipeline.WithLimiter(limiter))
	}
	if cfg.ClassifierEnabled {
		opts = append(opts, pipeline.WithClassifier(classifier.New()))
	}

	// TODO: replace the mock with a real messaging-network transport once
	// one is available.
	svc, err := pipeline.New(probe.MockClient{Latency: 50 * time.Millisecond}, cfg, opts...)
	if err != nil {
		log.Error("pipeline init failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.NewHandler(svc, log)
	router := httptransport.NewRouter(handler, prometheus.DefaultGatherer, cfg.JWTSigningKey)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting reachcheck", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	bus.Drain()
	if kafkaSink != nil {
		if err := kafkaSink.Close(ctx); err != nil {
			log.Error("kafka sink close failed", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("redis close failed", "error", err)
		}
	}
}
