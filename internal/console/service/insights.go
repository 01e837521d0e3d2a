package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/topic-insights/internal/console/view"
	"github.com/xela07ax/topic-insights/internal/domain"
	"github.com/xela07ax/topic-insights/internal/engine"
	"github.com/xela07ax/topic-insights/internal/infra"
	"github.com/xela07ax/topic-insights/internal/infra/auth"
	"github.com/xela07ax/topic-insights/internal/upstream"
)

// AnalyticsFetcher описывает требования сервиса к источнику аналитики
type AnalyticsFetcher interface {
	FetchAnalytics(ctx context.Context, token string) ([]domain.TopicAnalytics, error)
}

// TokenSource выдает действующий identity-токен для апстрима
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// InsightsService держит актуальный снапшот аналитики и обновляет его по
// расписанию. Семантика отказа — как у исходной панели: упавший рефреш не
// трогает показанные данные, но состояние честно помечается degraded.
type InsightsService struct {
	fetcher  AnalyticsFetcher
	sessions TokenSource
	rdb      *redis.Client
	metrics  *engine.Metrics
	logger   *zap.Logger
	ttl      time.Duration

	mu       sync.RWMutex
	snapshot view.Model
	lastGood time.Time
	loaded   bool
}

func NewInsightsService(
	fetcher AnalyticsFetcher,
	sessions TokenSource,
	rdb *redis.Client,
	metrics *engine.Metrics,
	ttl time.Duration,
	logger *zap.Logger,
) *InsightsService {
	return &InsightsService{
		fetcher:  fetcher,
		sessions: sessions,
		rdb:      rdb,
		metrics:  metrics,
		ttl:      ttl,
		logger:   logger.Named("insights-service"),
	}
}

// Init поднимает последний снапшот из Redis, чтобы после рестарта консоль
// сразу отдавала данные, а не ждала первого рефреша.
func (s *InsightsService) Init(ctx context.Context) error {
	data, err := s.rdb.Get(ctx, infra.RedisKeySnapshot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	var m view.Model
	if err := json.Unmarshal(data, &m); err != nil {
		// Битый кэш — не повод падать, просто начнем с чистого листа
		s.logger.Warn("corrupted snapshot in cache, ignoring", zap.Error(err))
		return nil
	}

	s.mu.Lock()
	s.snapshot = m
	s.lastGood = m.GeneratedAt
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("snapshot restored from cache", zap.Time("generated_at", m.GeneratedAt))
	return nil
}

// Refresh выполняет полный цикл: токен -> фетч -> валидация -> трансформация.
// Любой отказ логируется и оставляет прошлый снапшот нетронутым.
func (s *InsightsService) Refresh(ctx context.Context) error {
	start := time.Now()

	token, err := s.sessions.Token(ctx)
	if err != nil {
		s.degrade(err)
		s.observe(start, "auth_error", "failure")
		return err
	}

	records, err := s.fetcher.FetchAnalytics(ctx, token)
	if err != nil {
		// Протухшая сессия: сбрасываем кэш токена, следующий цикл получит новый
		var sErr *upstream.StatusError
		if errors.As(err, &sErr) && sErr.Code == 401 {
			s.sessions.Invalidate()
		}
		s.degrade(err)
		s.observe(start, "error", "failure")
		return err
	}

	model := view.Build(records, time.Now())

	s.mu.Lock()
	s.snapshot = model
	s.lastGood = model.GeneratedAt
	s.loaded = true
	s.mu.Unlock()

	s.persist(ctx, model)

	result := "success"
	if model.State == view.StateEmpty {
		result = "empty"
	}
	s.observe(start, "ok", result)
	s.metrics.SnapshotAge.Set(0)

	s.logger.Info("snapshot refreshed",
		zap.Int("topics", len(model.Topics)),
		zap.String("state", model.State),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Snapshot возвращает текущую модель, никогда не блокируясь на апстриме.
func (s *InsightsService) Snapshot() view.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		// Данных еще не было вообще — честное пустое состояние
		return view.Model{
			State:   view.StateEmpty,
			Message: view.MsgNoInsights,
			Topics:  []view.TopicSummary{},
		}
	}
	if !s.lastGood.IsZero() {
		s.metrics.SnapshotAge.Set(time.Since(s.lastGood).Seconds())
	}
	return s.snapshot
}

// Run крутит рефреш по интервалу до отмены контекста. Первый цикл — сразу.
// Отмена гарантирует, что после остановки сервера состояние не обновится.
func (s *InsightsService) Run(ctx context.Context, interval time.Duration) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("initial refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("refresh loop stopped")
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("refresh failed", zap.Error(err))
			}
		}
	}
}

// degrade помечает снапшот устаревшим, не трогая данные
func (s *InsightsService) degrade(cause error) {
	s.metrics.ErrorTotal.WithLabelValues(classify(cause)).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.snapshot = view.Model{
			State:   view.StateDegraded,
			Message: view.MsgNoInsights,
			Topics:  []view.TopicSummary{},
		}
		s.snapshot.LastError = cause.Error()
		s.loaded = true
		return
	}
	s.snapshot = view.Degraded(s.snapshot, cause.Error())
}

func (s *InsightsService) persist(ctx context.Context, m view.Model) {
	data, err := json.Marshal(m)
	if err != nil {
		s.logger.Error("failed to marshal snapshot", zap.Error(err))
		return
	}
	if err := s.rdb.Set(ctx, infra.RedisKeySnapshot, data, s.ttl).Err(); err != nil {
		// Кэш — вспомогательный, его отказ не валит рефреш
		s.logger.Warn("failed to persist snapshot to cache", zap.Error(err))
	}
}

func (s *InsightsService) observe(start time.Time, status, result string) {
	s.metrics.FetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	s.metrics.RefreshTotal.WithLabelValues(result).Inc()
}

// classify раскладывает отказы по таксономии для метрик
func classify(err error) string {
	var aErr *auth.AuthError
	if errors.As(err, &aErr) {
		return "auth"
	}
	var tErr *upstream.ThrottleError
	if errors.As(err, &tErr) {
		return "throttle"
	}
	var sErr *upstream.StatusError
	if errors.As(err, &sErr) {
		return "status"
	}
	var mErr *domain.MalformedPayloadError
	if errors.As(err, &mErr) {
		return "malformed"
	}
	return "transport"
}
