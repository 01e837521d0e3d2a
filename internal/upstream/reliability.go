package upstream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/xela07ax/topic-insights/internal/domain"
	"github.com/xela07ax/topic-insights/internal/infra"
)

// AnalyticsFetcher — источник записей аналитики.
type AnalyticsFetcher interface {
	FetchAnalytics(ctx context.Context, token string) ([]domain.TopicAnalytics, error)
}

// ReliabilityWrapper оборачивает фетч в rate limiter, circuit breaker и ретраи.
// Осознанное решение: у исходной панели ретраев не было вовсе, но молчаливый
// провал фетча — слишком дешево чинится, чтобы его оставлять.
type ReliabilityWrapper struct {
	next     AnalyticsFetcher
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
}

// NewReliabilityWrapper настраивает предохранитель и лимитер по конфигу.
// onStateChange (опционально) дергается при смене состояния CB — для метрик.
func NewReliabilityWrapper(next AnalyticsFetcher, cfg infra.ReliabilityConfig, onStateChange func(from, to gobreaker.State)) *ReliabilityWrapper {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analytics-api",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if onStateChange != nil {
				onStateChange(from, to)
			}
		},
	})

	return &ReliabilityWrapper{
		next:     next,
		cb:       cb,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		attempts: cfg.Attempts,
	}
}

func (w *ReliabilityWrapper) FetchAnalytics(ctx context.Context, token string) ([]domain.TopicAnalytics, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var records []domain.TopicAnalytics

	// 2. Circuit Breaker
	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.attempts),
			// Битый payload и отказ в доступе повтором не лечатся
			retry.RetryIf(isRetryable),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Backend попросил подождать — ждем ровно столько
				var tErr *ThrottleError
				if errors.As(err, &tErr) && tErr.RetryAfter > 0 {
					return tErr.RetryAfter
				}
				// Иначе стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			var callErr error
			records, callErr = w.next.FetchAnalytics(ctx, token)
			return callErr
		})

		return records, retryErr
	})

	if err != nil {
		return nil, err
	}

	return cbResult.([]domain.TopicAnalytics), nil
}

func isRetryable(err error) bool {
	var mErr *domain.MalformedPayloadError
	if errors.As(err, &mErr) {
		return false
	}
	var sErr *StatusError
	if errors.As(err, &sErr) {
		return sErr.Code != http.StatusUnauthorized && sErr.Code != http.StatusForbidden
	}
	return true
}
