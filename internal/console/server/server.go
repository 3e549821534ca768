package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/console/handler"
	"github.com/contestra/ai-ranker-sub003/internal/infra"
	"github.com/contestra/ai-ranker-sub003/internal/infra/auth"
)

// ConsoleServer — локальный API дашборда: запуск тестов, статус,
// сводка, домены. Вся логика в сервисе, здесь только роутинг и защита.
type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	testHandler   *handler.TestHandler
	statsHandler  *handler.StatsHandler
	domainHandler *handler.DomainHandler
}

func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	testH *handler.TestHandler,
	statsH *handler.StatsHandler,
	domainH *handler.DomainHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		cfg:           cfg,
		testHandler:   testH,
		statsHandler:  statsH,
		domainHandler: domainH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. Публичные роуты ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. Защищенный периметр (статический токен; пустой токен — dev-режим) ---
	r.Group(func(r chi.Router) {
		if s.cfg.Auth.APIToken != "" {
			r.Use(auth.NewMiddleware(s.cfg.Auth.APIToken, s.logger))
		}

		// Запуск тестов и статус
		r.Route("/v1/tests", func(r chi.Router) {
			r.Post("/run", s.testHandler.Run)        // Одна комбинация
			r.Post("/run-all", s.testHandler.RunAll) // Батч, country-major
			r.Get("/batch", s.testHandler.LastBatch) // Отчет последнего батча
			r.Get("/status", s.testHandler.Status)   // Живые прогоны
		})

		// Сводка и лента живого канала
		r.Route("/v1/stats", func(r chi.Router) {
			r.Get("/", s.statsHandler.Get)
			r.Post("/refresh", s.statsHandler.Refresh) // Авторитетный снапшот
		})
		r.Get("/v1/monitor/events", s.statsHandler.Events)
		r.Get("/v1/notices", s.statsHandler.Notices)

		// Домены (область живого канала)
		r.Route("/v1/domains", func(r chi.Router) {
			r.Get("/", s.domainHandler.List)
			r.Post("/select", s.domainHandler.Select)
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
