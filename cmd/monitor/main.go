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
	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/connectors"
	"github.com/contestra/ai-ranker-sub003/internal/console/handler"
	"github.com/contestra/ai-ranker-sub003/internal/console/server"
	"github.com/contestra/ai-ranker-sub003/internal/console/service"
	"github.com/contestra/ai-ranker-sub003/internal/engine"
	"github.com/contestra/ai-ranker-sub003/internal/history"
	"github.com/contestra/ai-ranker-sub003/internal/infra"
	"github.com/contestra/ai-ranker-sub003/internal/infra/auth"
	"github.com/contestra/ai-ranker-sub003/internal/repository/postgres"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Backend.BaseURL == "" {
		log.Fatal("backend.base_url is required (or BACKEND_BASE_URL)")
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст жизненного цикла фоновых горутин: SIGTERM останавливает
	// живой канал, сторожа снапшота и текущий батч
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура: Redis (fan-out, опционально) и Postgres (история, опционально)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	signals := engine.NewSignalBus(rdb, logger)

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	var recorder engine.RunRecorder
	var runlog *history.RunLog
	if cfg.Database.URL != "" {
		repo, err := postgres.NewRunRepo(cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			logger.Fatal("failed to open run history database", zap.Error(err))
		}
		pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
		if err := repo.Ping(pingCtx); err != nil {
			logger.Fatal("run history database unreachable", zap.Error(err))
		}
		pingCancel()

		runlog = history.NewRunLog(repo, logger, metrics.HistoryBufferFill)
		runlog.Start()
		recorder = runlog
	} else {
		logger.Info("run history disabled: no database configured")
	}

	// 3. Адаптеры бэкенда: HTTP + WebSocket, снапшоты под обвязкой надежности
	token := auth.NewBackendToken(cfg.Backend.APIToken)
	adapter := connectors.NewHTTPAdapter(cfg.Backend.BaseURL, token, logger)
	snapshots := engine.NewReliabilityWrapper(adapter, engine.ReliabilitySettings{
		CBMaxRequests: cfg.Engine.CBMaxRequests,
		CBInterval:    cfg.Engine.CBInterval,
		CBTimeout:     cfg.Engine.CBTimeout,
		Rate:          cfg.Engine.SnapshotRate,
		Burst:         cfg.Engine.SnapshotBurst,
	})
	dialer := connectors.NewWSDialer(cfg.Backend.BaseURL, token, logger)

	// 4. Ядро и консольный API
	svc := service.NewMonitorService(appCtx, cfg, adapter, snapshots, dialer, recorder, signals, metrics, logger)
	go svc.Run(appCtx)

	if cfg.Monitor.Domain != "" {
		svc.SelectDomain(cfg.Monitor.Domain)
	}

	consoleSrv := server.NewConsoleServer(cfg,
		logger,
		handler.NewTestHandler(svc),
		handler.NewStatsHandler(svc),
		handler.NewDomainHandler(svc),
	)

	// 5. Метрики для Prometheus — отдельный порт
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

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
		logger.Info("monitor started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("monitor stopping...")
	cancel() // гасим канал, сторожа и батч

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	svc.Close()
	if runlog != nil {
		runlog.Stop() // финальный flush истории
	}
	logger.Info("monitor exited properly")
}
