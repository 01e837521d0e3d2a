package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/topic-insights/internal/console/handler"
	"github.com/xela07ax/topic-insights/internal/console/service"
	"github.com/xela07ax/topic-insights/internal/console/view"
	"github.com/xela07ax/topic-insights/internal/engine"
	"github.com/xela07ax/topic-insights/internal/infra"
	"github.com/xela07ax/topic-insights/internal/infra/auth"
	"github.com/xela07ax/topic-insights/internal/upstream"
)

const analyticsPayload = `[
	{
		"topic_name": "Billing",
		"user_message_count": 12,
		"ai_message_count": 10,
		"average_session_time": 65,
		"total_session_time": 650,
		"sessions_created": 10,
		"sessions_deleted": 3
	},
	{
		"topic_name": "General",
		"user_message_count": 9,
		"ai_message_count": 8,
		"average_session_time": 125,
		"total_session_time": 1250,
		"sessions_created": 4,
		"sessions_deleted": 0
	}
]`

// Полный путь: auth provider -> фетч -> трансформация -> HTTP консоли
func TestConsole_EndToEnd(t *testing.T) {
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token": "identity-token"}`))
	}))
	defer authSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/analytics", r.URL.Path)
		require.Equal(t, "identity-token", r.Header.Get("Authorization"))
		w.Write([]byte(analyticsPayload))
	}))
	defer apiSrv.Close()

	cfg := &infra.Config{}
	cfg.Server.APIToken = "console-secret"
	cfg.Reliability = infra.ReliabilityConfig{Attempts: 1, CBMaxRequests: 1, RateLimit: 100, RateBurst: 10}

	sessions := auth.NewSessionProvider(authSrv.URL, "console", "secret", 0, authSrv.Client())
	client := upstream.NewClient(apiSrv.URL+"/", 5*time.Second)
	safe := upstream.NewReliabilityWrapper(client, cfg.Reliability, nil)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 10 * time.Millisecond})
	svc := service.NewInsightsService(safe, sessions, rdb, engine.NewMetrics(nil), time.Hour, zap.NewNop())
	require.NoError(t, svc.Refresh(context.Background()))

	srv := NewConsoleServer(cfg, zap.NewNop(), handler.NewInsightsHandler(svc, zap.NewNop()))
	console := httptest.NewServer(srv)
	defer console.Close()

	req, _ := http.NewRequest(http.MethodGet, console.URL+"/api/v1/insights", nil)
	req.Header.Set("Authorization", "Bearer console-secret")
	resp, err := console.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var m view.Model
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))

	assert.Equal(t, view.StateOK, m.State)
	require.Len(t, m.Topics, 2)
	// General идет первым, остальные в исходном порядке
	assert.Equal(t, "General", m.Topics[0].TopicName)
	assert.Equal(t, "Billing", m.Topics[1].TopicName)

	// Все семь метрик видны в раскрытой карточке
	g := m.Topics[0]
	assert.Equal(t, int64(9), g.UserMessageCount)
	assert.Equal(t, int64(8), g.AIMessageCount)
	assert.InDelta(t, 125.0, g.AverageSessionTime, 1e-9)
	assert.Equal(t, "2m 5s", g.AverageSessionText)
	assert.InDelta(t, 1250.0, g.TotalSessionTime, 1e-9)
	assert.Equal(t, int64(4), g.SessionsCreated)
	assert.Equal(t, int64(0), g.SessionsDeleted)
	assert.Equal(t, int64(4), g.ActiveSessions)

	require.NotNil(t, m.Chart)
	assert.Equal(t, int64(15), m.Chart.YMax) // max(12, 9) + 3
}

func TestConsole_Unauthorized(t *testing.T) {
	cfg := &infra.Config{}
	cfg.Server.APIToken = "console-secret"

	srv := NewConsoleServer(cfg, zap.NewNop(), handler.NewInsightsHandler(stubProvider{}, zap.NewNop()))
	console := httptest.NewServer(srv)
	defer console.Close()

	// Без токена
	resp, err := http.Get(console.URL + "/api/v1/insights")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// С чужим токеном
	req, _ := http.NewRequest(http.MethodGet, console.URL+"/api/v1/insights", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = console.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConsole_HealthIsPublic(t *testing.T) {
	cfg := &infra.Config{}
	cfg.Server.APIToken = "console-secret"

	srv := NewConsoleServer(cfg, zap.NewNop(), handler.NewInsightsHandler(stubProvider{}, zap.NewNop()))
	console := httptest.NewServer(srv)
	defer console.Close()

	resp, err := http.Get(console.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type stubProvider struct{}

func (stubProvider) Snapshot() view.Model              { return view.Model{State: view.StateEmpty} }
func (stubProvider) Refresh(ctx context.Context) error { return nil }
