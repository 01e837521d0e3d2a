package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/topic-insights/internal/domain"
	"github.com/xela07ax/topic-insights/internal/engine"
)

const analyticsPath = "admin/analytics"

// maxErrBody ограничивает тело ошибки, которое попадает в логи
const maxErrBody = 512

// Client ходит за аналитикой в admin API backend-а.
type Client struct {
	apiBase    string // с завершающим слешем
	httpClient *http.Client
}

func NewClient(apiBase string, timeout time.Duration) *Client {
	return &Client{
		apiBase:    apiBase,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchAnalytics делает один авторизованный GET и строго валидирует ответ.
// Токен передается снаружи: сессией владеет вызывающий, а не клиент.
func (c *Client) FetchAnalytics(ctx context.Context, token string) ([]domain.TopicAnalytics, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+analyticsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build analytics request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	if traceID := engine.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analytics request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		io.Copy(io.Discard, resp.Body)
		return nil, &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      &StatusError{Code: resp.StatusCode},
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analytics response: %w", err)
	}

	return domain.ParseRecords(data)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
