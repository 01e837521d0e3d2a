package domain

// GeneralTopic — зарезервированное имя топика, который всегда показываем первым
const GeneralTopic = "General"

// AxisPadding — запас сверху по оси Y, чтобы верхняя точка не упиралась в край графика
const AxisPadding = 3

// TopicAnalytics — агрегированные метрики по одному топику.
// Приходят от backend-а как есть (snake_case), живут только в рамках снапшота.
type TopicAnalytics struct {
	TopicName          string  `json:"topic_name"`
	UserMessageCount   int64   `json:"user_message_count"`
	AIMessageCount     int64   `json:"ai_message_count"`
	AverageSessionTime float64 `json:"average_session_time"` // секунды, может быть дробным
	TotalSessionTime   float64 `json:"total_session_time"`
	SessionsCreated    int64   `json:"sessions_created"`
	SessionsDeleted    int64   `json:"sessions_deleted"`
}

// ChartPoint — проекция записи для графика. Имена полей — контракт фронта.
type ChartPoint struct {
	Module   string `json:"module"`
	Messages int64  `json:"Messages"`
}

// ActiveSessions считается на момент отрисовки и нигде не хранится.
// Инвариант sessions_deleted <= sessions_created проверен при валидации,
// поэтому результат неотрицательный.
func (t TopicAnalytics) ActiveSessions() int64 {
	return t.SessionsCreated - t.SessionsDeleted
}

// SortGeneralFirst переставляет записи с зарезервированным топиком в начало.
// Стабильно: относительный порядок остальных записей не меняется,
// ничего не теряем и не дублируем.
func SortGeneralFirst(records []TopicAnalytics) []TopicAnalytics {
	if len(records) == 0 {
		return records
	}

	sorted := make([]TopicAnalytics, 0, len(records))
	for _, r := range records {
		if r.TopicName == GeneralTopic {
			sorted = append(sorted, r)
		}
	}
	for _, r := range records {
		if r.TopicName != GeneralTopic {
			sorted = append(sorted, r)
		}
	}
	return sorted
}

// ChartPoints строит параллельную последовательность точек:
// topic_name -> module, user_message_count -> Messages.
func ChartPoints(records []TopicAnalytics) []ChartPoint {
	points := make([]ChartPoint, len(records))
	for i, r := range records {
		points[i] = ChartPoint{
			Module:   r.TopicName,
			Messages: r.UserMessageCount,
		}
	}
	return points
}

// AxisUpperBound — верхняя граница оси Y: максимум по точкам плюс запас.
// Для пустого набора возвращает 0 (график в этом случае не рисуем вообще).
func AxisUpperBound(points []ChartPoint) int64 {
	if len(points) == 0 {
		return 0
	}
	var max int64
	for _, p := range points {
		if p.Messages > max {
			max = p.Messages
		}
	}
	return max + AxisPadding
}
