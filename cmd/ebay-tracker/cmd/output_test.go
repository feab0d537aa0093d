package cmd

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "short string unchanged",
			input:  "ThinkPad X220",
			maxLen: 40,
			want:   "ThinkPad X220",
		},
		{
			name:   "exact length unchanged",
			input:  "abcde",
			maxLen: 5,
			want:   "abcde",
		},
		{
			name:   "long string cut with ellipsis",
			input:  "abcdefghij",
			maxLen: 8,
			want:   "abcde...",
		},
		{
			name:   "multi-byte title cut on rune boundary",
			input:  "Объектив Гелиос 44-2 58мм f/2",
			maxLen: 12,
			want:   "Объектив ...",
		},
		{
			name:   "cjk title cut on rune boundary",
			input:  "キヤノン AE-1 フィルムカメラ 完動品",
			maxLen: 10,
			want:   "キヤノン AE...",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := truncate(tt.input, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len([]rune(got)), tt.maxLen)
		})
	}
}
