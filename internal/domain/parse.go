package domain

import (
	"encoding/json"
	"fmt"
)

// topicWire — промежуточная форма для строгой валидации.
// Указатели позволяют отличить "поле отсутствует" от нулевого значения:
// раньше фронт молча верил в наличие полей, теперь это явный контракт.
type topicWire struct {
	TopicName          *string  `json:"topic_name"`
	UserMessageCount   *int64   `json:"user_message_count"`
	AIMessageCount     *int64   `json:"ai_message_count"`
	AverageSessionTime *float64 `json:"average_session_time"`
	TotalSessionTime   *float64 `json:"total_session_time"`
	SessionsCreated    *int64   `json:"sessions_created"`
	SessionsDeleted    *int64   `json:"sessions_deleted"`
}

// ParseRecords разбирает JSON-массив записей аналитики со строгой проверкой:
// все семь полей обязательны, счетчики неотрицательные,
// sessions_deleted <= sessions_created (иначе активные сессии ушли бы в минус).
func ParseRecords(data []byte) ([]TopicAnalytics, error) {
	var wire []topicWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &MalformedPayloadError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	records := make([]TopicAnalytics, 0, len(wire))
	for i, w := range wire {
		rec, err := w.validate(i)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (w topicWire) validate(idx int) (TopicAnalytics, error) {
	name := ""
	if w.TopicName != nil {
		name = *w.TopicName
	}

	fail := func(reason string) (TopicAnalytics, error) {
		if name == "" {
			reason = fmt.Sprintf("record %d: %s", idx, reason)
		}
		return TopicAnalytics{}, &MalformedPayloadError{Topic: name, Reason: reason}
	}

	required := []struct {
		field string
		ok    bool
	}{
		{"topic_name", w.TopicName != nil},
		{"user_message_count", w.UserMessageCount != nil},
		{"ai_message_count", w.AIMessageCount != nil},
		{"average_session_time", w.AverageSessionTime != nil},
		{"total_session_time", w.TotalSessionTime != nil},
		{"sessions_created", w.SessionsCreated != nil},
		{"sessions_deleted", w.SessionsDeleted != nil},
	}
	for _, req := range required {
		if !req.ok {
			return fail(fmt.Sprintf("missing required field %q", req.field))
		}
	}

	if *w.UserMessageCount < 0 || *w.AIMessageCount < 0 ||
		*w.SessionsCreated < 0 || *w.SessionsDeleted < 0 {
		return fail("negative counter")
	}
	if *w.AverageSessionTime < 0 || *w.TotalSessionTime < 0 {
		return fail("negative session time")
	}
	// Инвариант: производное кол-во активных сессий не может быть отрицательным
	if *w.SessionsDeleted > *w.SessionsCreated {
		return fail(fmt.Sprintf("sessions_deleted (%d) exceeds sessions_created (%d)",
			*w.SessionsDeleted, *w.SessionsCreated))
	}

	return TopicAnalytics{
		TopicName:          *w.TopicName,
		UserMessageCount:   *w.UserMessageCount,
		AIMessageCount:     *w.AIMessageCount,
		AverageSessionTime: *w.AverageSessionTime,
		TotalSessionTime:   *w.TotalSessionTime,
		SessionsCreated:    *w.SessionsCreated,
		SessionsDeleted:    *w.SessionsDeleted,
	}, nil
}
