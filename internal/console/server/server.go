package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/topic-insights/internal/console/handler"
	"github.com/xela07ax/topic-insights/internal/engine"
	"github.com/xela07ax/topic-insights/internal/infra"
	"github.com/xela07ax/topic-insights/internal/infra/auth"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	insightsHandler *handler.InsightsHandler // /api/v1/insights
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	insightsH *handler.InsightsHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("console-api"),
		cfg:             cfg,
		insightsHandler: insightsH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют bearer-токен консоли) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.cfg.Server.APIToken, s.logger))

		r.Route("/api/v1/insights", func(r chi.Router) {
			r.Get("/", s.insightsHandler.GetInsights)          // Полная модель
			r.Get("/chart", s.insightsHandler.GetChart)        // Только график
			r.Post("/refresh", s.insightsHandler.ForceRefresh) // Рефреш вне расписания
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
