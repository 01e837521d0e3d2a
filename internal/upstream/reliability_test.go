package upstream

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/topic-insights/internal/domain"
	"github.com/xela07ax/topic-insights/internal/infra"
)

type flakyFetcher struct {
	failures int
	calls    int
	err      error
}

func (f *flakyFetcher) FetchAnalytics(ctx context.Context, token string) ([]domain.TopicAnalytics, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return []domain.TopicAnalytics{{TopicName: "General"}}, nil
}

func testCfg() infra.ReliabilityConfig {
	return infra.ReliabilityConfig{
		Attempts:      3,
		CBMaxRequests: 3,
		RateLimit:     1000,
		RateBurst:     100,
	}
}

func TestReliability_RetriesTransientFailures(t *testing.T) {
	f := &flakyFetcher{failures: 2, err: &StatusError{Code: http.StatusInternalServerError}}
	w := NewReliabilityWrapper(f, testCfg(), nil)

	records, err := w.FetchAnalytics(context.Background(), "t")

	require.NoError(t, err)
	assert.Equal(t, 3, f.calls)
	require.Len(t, records, 1)
}

func TestReliability_NoRetryOnUnauthorized(t *testing.T) {
	f := &flakyFetcher{failures: 10, err: &StatusError{Code: http.StatusUnauthorized}}
	w := NewReliabilityWrapper(f, testCfg(), nil)

	_, err := w.FetchAnalytics(context.Background(), "t")

	require.Error(t, err)
	assert.Equal(t, 1, f.calls)
}

func TestReliability_NoRetryOnMalformedPayload(t *testing.T) {
	f := &flakyFetcher{failures: 10, err: &domain.MalformedPayloadError{Reason: "missing field"}}
	w := NewReliabilityWrapper(f, testCfg(), nil)

	_, err := w.FetchAnalytics(context.Background(), "t")

	require.Error(t, err)
	assert.Equal(t, 1, f.calls)
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(&StatusError{Code: http.StatusUnauthorized}))
	assert.False(t, isRetryable(&StatusError{Code: http.StatusForbidden}))
	assert.False(t, isRetryable(&domain.MalformedPayloadError{Reason: "x"}))
	assert.True(t, isRetryable(&StatusError{Code: http.StatusBadGateway}))
	assert.True(t, isRetryable(&ThrottleError{}))
	assert.True(t, isRetryable(assert.AnError))
}
