package adapter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitTextShort(t *testing.T) {
	assert.Equal(t, []string{""}, splitText("", 10))
	assert.Equal(t, []string{"hello"}, splitText("hello", 10))
}

func TestSplitTextPrefersNewline(t *testing.T) {
	s := "aaaaaaa\nbbbbbbbbbb"
	assert.Equal(t, []string{"aaaaaaa", "bbbbbbbbbb"}, splitText(s, 10))
}

func TestSplitTextHardCut(t *testing.T) {
	s := strings.Repeat("я", 25)
	got := splitText(s, 10)
	assert.Equal(t, []string{strings.Repeat("я", 10), strings.Repeat("я", 10), strings.Repeat("я", 5)}, got)
	for _, c := range got {
		assert.LessOrEqual(t, len([]rune(c)), 10)
	}
}
