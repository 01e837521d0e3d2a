package domain

import "fmt"

// MalformedPayloadError — отдельный вид ошибки для битых данных от backend-а.
// Такие ошибки нет смысла ретраить: payload не исправится от повтора запроса.
type MalformedPayloadError struct {
	Topic  string // пустой, если сломан сам контейнер
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("malformed analytics payload: %s", e.Reason)
	}
	return fmt.Sprintf("malformed analytics payload: topic %q: %s", e.Topic, e.Reason)
}
