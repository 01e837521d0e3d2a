package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/topic-insights/internal/console/view"
	"github.com/xela07ax/topic-insights/internal/domain"
	"github.com/xela07ax/topic-insights/internal/engine"
	"github.com/xela07ax/topic-insights/internal/upstream"
)

type stubFetcher struct {
	records []domain.TopicAnalytics
	err     error
	calls   int
}

func (f *stubFetcher) FetchAnalytics(ctx context.Context, token string) ([]domain.TopicAnalytics, error) {
	f.calls++
	return f.records, f.err
}

type stubTokens struct {
	token       string
	err         error
	invalidated int
}

func (s *stubTokens) Token(ctx context.Context) (string, error) { return s.token, s.err }
func (s *stubTokens) Invalidate()                               { s.invalidated++ }

// deadRedis — клиент без сервера: кэш снапшотов обязан быть необязательным
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})
}

func newTestService(f *stubFetcher, tok *stubTokens) *InsightsService {
	return NewInsightsService(f, tok, deadRedis(), engine.NewMetrics(nil), time.Hour, zap.NewNop())
}

func TestRefresh_Success(t *testing.T) {
	f := &stubFetcher{records: []domain.TopicAnalytics{
		{TopicName: "Billing", UserMessageCount: 5, SessionsCreated: 10, SessionsDeleted: 3},
		{TopicName: "General", UserMessageCount: 9, SessionsCreated: 4, SessionsDeleted: 0},
	}}
	s := newTestService(f, &stubTokens{token: "t"})

	require.NoError(t, s.Refresh(context.Background()))

	m := s.Snapshot()
	assert.Equal(t, view.StateOK, m.State)
	require.Len(t, m.Topics, 2)
	assert.Equal(t, "General", m.Topics[0].TopicName)
	require.NotNil(t, m.Chart)
	assert.Equal(t, int64(12), m.Chart.YMax) // max(9, 5) + 3
}

func TestRefresh_EmptyPayload(t *testing.T) {
	s := newTestService(&stubFetcher{}, &stubTokens{token: "t"})

	require.NoError(t, s.Refresh(context.Background()))

	m := s.Snapshot()
	assert.Equal(t, view.StateEmpty, m.State)
	assert.Equal(t, view.MsgNoData, m.Message)
	assert.Nil(t, m.Chart)
}

func TestRefresh_FailureKeepsPriorSnapshot(t *testing.T) {
	f := &stubFetcher{records: []domain.TopicAnalytics{
		{TopicName: "General", UserMessageCount: 9, SessionsCreated: 4},
	}}
	s := newTestService(f, &stubTokens{token: "t"})
	require.NoError(t, s.Refresh(context.Background()))

	// Следующий рефреш падает
	f.records = nil
	f.err = &upstream.StatusError{Code: 502, Body: "bad gateway"}
	require.Error(t, s.Refresh(context.Background()))

	m := s.Snapshot()
	assert.Equal(t, view.StateDegraded, m.State)
	assert.Contains(t, m.LastError, "502")
	// Прошлые данные не тронуты
	require.Len(t, m.Topics, 1)
	assert.Equal(t, "General", m.Topics[0].TopicName)
}

func TestRefresh_UnauthorizedInvalidatesSession(t *testing.T) {
	tok := &stubTokens{token: "stale"}
	f := &stubFetcher{err: &upstream.StatusError{Code: 401}}
	s := newTestService(f, tok)

	require.Error(t, s.Refresh(context.Background()))

	assert.Equal(t, 1, tok.invalidated)
}

func TestRefresh_AuthFailure(t *testing.T) {
	tok := &stubTokens{err: assert.AnError}
	f := &stubFetcher{}
	s := newTestService(f, tok)

	require.Error(t, s.Refresh(context.Background()))

	// До фетча дело не дошло
	assert.Equal(t, 0, f.calls)
	m := s.Snapshot()
	assert.Equal(t, view.StateDegraded, m.State)
}

func TestSnapshot_BeforeFirstRefresh(t *testing.T) {
	s := newTestService(&stubFetcher{}, &stubTokens{token: "t"})

	m := s.Snapshot()

	assert.Equal(t, view.StateEmpty, m.State)
	assert.Equal(t, view.MsgNoInsights, m.Message)
}
