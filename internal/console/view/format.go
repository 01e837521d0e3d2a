package view

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TitleCase поднимает в верхний регистр первую букву каждого слова
// (разделитель — пробел), остальное не трогает. Только для отображения:
// ключ данных остается исходным topic_name.
func TitleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// FormatDuration рендерит секунды как "{целые минуты}m {округленные секунды}s".
// 125 -> "2m 5s". Отрицательные значения прижимаем к нулю.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := int64(seconds) / 60
	remaining := math.Round(seconds - float64(minutes*60))
	return fmt.Sprintf("%dm %ds", minutes, int64(remaining))
}
