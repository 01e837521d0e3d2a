package view

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleCase(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"general", "General"},
		{"billing questions", "Billing Questions"},
		{"already Upper", "Already Upper"},
		{"mIxEd cAsE", "MIxEd CAsE"}, // трогаем только первую букву
		{"", ""},
		{"  double  spaces ", "  Double  Spaces "},
		{"ёлки палки", "Ёлки Палки"}, // не-ASCII первая буква
	}

	for _, c := range cases {
		got := TitleCase(c.in)
		assert.Equal(t, c.want, got)
		// Свойства: длина и кол-во слов сохраняются
		assert.Equal(t, len([]rune(c.in)), len([]rune(got)))
		assert.Equal(t, len(strings.Fields(c.in)), len(strings.Fields(got)))
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{125, "2m 5s"},
		{65, "1m 5s"},
		{3600, "60m 0s"},
		{0, "0m 0s"},
		{59.4, "0m 59s"},
		{125.6, "2m 6s"}, // округление остатка
		{-10, "0m 0s"},   // отрицательное прижимаем к нулю
	}

	for _, c := range cases {
		assert.Equal(t, c.want, FormatDuration(c.seconds), "seconds=%v", c.seconds)
	}
}
