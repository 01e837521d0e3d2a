package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/xela07ax/topic-insights/internal/console/handler"
	"github.com/xela07ax/topic-insights/internal/console/server"
	"github.com/xela07ax/topic-insights/internal/console/service"
	"github.com/xela07ax/topic-insights/internal/engine"
	"github.com/xela07ax/topic-insights/internal/infra"
	"github.com/xela07ax/topic-insights/internal/infra/auth"
	"github.com/xela07ax/topic-insights/internal/upstream"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// 3. Сессия и клиент аналитики (Retries, Circuit Breaker)
	sessions := auth.NewSessionProvider(
		cfg.Auth.TokenURL,
		cfg.Auth.ClientID,
		cfg.Auth.ClientSecret,
		cfg.Auth.ExpiryLeeway,
		nil,
	)
	client := upstream.NewClient(cfg.Upstream.APIBase, cfg.Upstream.RequestTimeout)
	safeClient := upstream.NewReliabilityWrapper(client, cfg.Reliability,
		func(from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerState.Set(1)
			} else {
				metrics.CircuitBreakerState.Set(0)
			}
		})

	// 4. Сервис снапшотов (Dependency Injection)
	insights := service.NewInsightsService(safeClient, sessions, rdb, metrics, cfg.Redis.SnapshotTTL, logger)

	// Контекст жизненного цикла фоновых горутин: SIGTERM останавливает рефреш
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Поднимаем прошлый снапшот из кэша (Redis может быть недоступен — не фатально)
	initCtx, initCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := insights.Init(initCtx); err != nil {
		log.Printf("snapshot cache unavailable: %v", err)
	}
	initCancel()

	go insights.Run(appCtx, cfg.Upstream.RefreshInterval)

	// Экспортируем метрики для Prometheus
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.MetricsPort), mux))
	}()

	// 5. HTTP Server
	consoleSrv := server.NewConsoleServer(cfg, logger, handler.NewInsightsHandler(insights, logger))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 6. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Insights console started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-stop // Ждем сигнал
	log.Print("Insights console stopping...")
	cancel() // Останавливаем рефреш до остановки сервера: стейт больше не изменится

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server Shutdown Failed: %+v", err)
	}
	log.Print("Insights console exited properly")
}
