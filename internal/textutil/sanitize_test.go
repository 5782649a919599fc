package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_SizeLimit(t *testing.T) {
	limit := 4096

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(strings.Repeat("a", tt.inputSize))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitize_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitize_InvalidUTF8(t *testing.T) {
	_, err := Sanitize("bad\xffbyte")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestSanitize_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "8")
	_, err := Sanitize("123456789")
	assert.ErrorIs(t, err, ErrInputTooLarge)
}

func TestClean(t *testing.T) {
	t.Run("Drops invalid bytes", func(t *testing.T) {
		assert.Equal(t, "badbyte", Clean("bad\xffbyte"))
	})

	t.Run("Cuts at rune boundary", func(t *testing.T) {
		t.Setenv(EnvMaxInputSize, "7")
		// each kana is three bytes, so only two fit
		assert.Equal(t, "あい", Clean("あいう"))
	})
}

func TestKeyTokens(t *testing.T) {
	assert.Equal(t, []string{"school", "lunch", "menus"}, KeyTokens("The school lunch, and its menus!"))
	assert.Equal(t, []string{"教育"}, KeyTokens("教育"))
	assert.Empty(t, KeyTokens(""))
	assert.Empty(t, KeyTokens("a I to"))
}

func TestContainsAnyToken(t *testing.T) {
	assert.True(t, ContainsAnyToken("日本の教育制度について", []string{"教育"}))
	assert.True(t, ContainsAnyToken("Education reform", []string{"education"}))
	assert.False(t, ContainsAnyToken("sushi and ramen", []string{"education"}))
}
