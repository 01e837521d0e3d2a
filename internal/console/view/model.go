package view

import (
	"time"

	"github.com/xela07ax/topic-insights/internal/domain"
)

// Состояния снапшота. Раньше пустой набор и упавший фетч выглядели для
// пользователя одинаково ("No data found") — теперь это разные состояния.
const (
	StateOK       = "ok"
	StateEmpty    = "empty"    // backend ответил, данных нет
	StateDegraded = "degraded" // рефреш упал, показываем прошлый снапшот
)

// Сообщения пустых состояний — контракт фронта
const (
	MsgNoData     = "No data found"
	MsgNoInsights = "No insights available"
)

// Chart — данные линейного графика: точки и верхняя граница оси Y
type Chart struct {
	Points []domain.ChartPoint `json:"points"`
	YMax   int64               `json:"y_max"`
}

// TopicSummary — раскрываемая карточка топика со всеми семью метриками.
type TopicSummary struct {
	DisplayName        string  `json:"display_name"` // title-cased
	TopicName          string  `json:"topic_name"`   // исходный ключ
	UserMessageCount   int64   `json:"user_message_count"`
	AIMessageCount     int64   `json:"ai_message_count"`
	AverageSessionTime float64 `json:"average_session_time"`
	AverageSessionText string  `json:"average_session_text"` // "2m 5s"
	TotalSessionTime   float64 `json:"total_session_time"`
	TotalSessionText   string  `json:"total_session_text"`
	SessionsCreated    int64   `json:"sessions_created"`
	SessionsDeleted    int64   `json:"sessions_deleted"`
	ActiveSessions     int64   `json:"active_sessions"` // производное, не хранится
}

// Model — готовая к отдаче форма снапшота аналитики.
type Model struct {
	State       string         `json:"state"`
	GeneratedAt time.Time      `json:"generated_at"`
	LastError   string         `json:"last_error,omitempty"` // только для degraded
	Message     string         `json:"message,omitempty"`    // только для empty
	Chart       *Chart         `json:"chart,omitempty"`      // nil, если рисовать нечего
	Topics      []TopicSummary `json:"topics"`
}

// Build собирает модель из валидированных записей: General первым,
// параллельная проекция точек и запас по оси Y.
func Build(records []domain.TopicAnalytics, generatedAt time.Time) Model {
	if len(records) == 0 {
		return Model{
			State:       StateEmpty,
			GeneratedAt: generatedAt,
			Message:     MsgNoData,
			Topics:      []TopicSummary{},
		}
	}

	sorted := domain.SortGeneralFirst(records)
	points := domain.ChartPoints(sorted)

	topics := make([]TopicSummary, len(sorted))
	for i, r := range sorted {
		topics[i] = TopicSummary{
			DisplayName:        TitleCase(r.TopicName),
			TopicName:          r.TopicName,
			UserMessageCount:   r.UserMessageCount,
			AIMessageCount:     r.AIMessageCount,
			AverageSessionTime: r.AverageSessionTime,
			AverageSessionText: FormatDuration(r.AverageSessionTime),
			TotalSessionTime:   r.TotalSessionTime,
			TotalSessionText:   FormatDuration(r.TotalSessionTime),
			SessionsCreated:    r.SessionsCreated,
			SessionsDeleted:    r.SessionsDeleted,
			ActiveSessions:     r.ActiveSessions(),
		}
	}

	return Model{
		State:       StateOK,
		GeneratedAt: generatedAt,
		Chart: &Chart{
			Points: points,
			YMax:   domain.AxisUpperBound(points),
		},
		Topics: topics,
	}
}

// Degraded помечает прошлый снапшот как устаревший после неудачного рефреша.
// Данные не трогаем — прежнее состояние остается на экране.
func Degraded(prev Model, lastErr string) Model {
	prev.State = StateDegraded
	prev.LastError = lastErr
	return prev
}
