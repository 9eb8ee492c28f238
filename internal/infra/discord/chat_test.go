package discord

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateSynopsis(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"short passes through", "a short synopsis", 20, "a short synopsis"},
		{"exact length passes through", "abcdefghij", 10, "abcdefghij"},
		{"ascii truncation", "abcdefghijkl", 10, "abcdefg.."},
		{"cut lands inside a rune", "abcdef日本語", 10, "abcdef.."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateSynopsis(tt.input, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), tt.max)
		})
	}
}

func TestTruncateSynopsis_LongMultibyte(t *testing.T) {
	got := truncateSynopsis(strings.Repeat("あ", maxSynopsisLen), maxSynopsisLen)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxSynopsisLen)
	assert.True(t, strings.HasSuffix(got, ".."))
}
