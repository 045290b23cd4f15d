package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBufferKeepsRecentBytes(t *testing.T) {
	b := newTailBuffer(16)
	b.WriteLine("first line")
	b.WriteLine("second")
	b.WriteLine("third")

	assert.Equal(t, int64(len("first line\nsecond\nthird\n")), b.TotalBytes())
	assert.True(t, b.Truncated())
	assert.Equal(t, "...\nsecond\nthird", b.Excerpt())
}

func TestTailBufferSmallOutput(t *testing.T) {
	b := newTailBuffer(0)
	b.WriteLine("only")
	assert.False(t, b.Truncated())
	assert.Equal(t, "only", b.Excerpt())
	assert.Equal(t, defaultOutputTailBytes, b.maxBytes)
}

func TestTailBufferLargeWrite(t *testing.T) {
	b := newTailBuffer(8)
	_, _ = b.Write([]byte(strings.Repeat("x", 100) + "\nend"))
	assert.Equal(t, "...\nend", b.Excerpt())
}

func TestWithExcerpt(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{name: "no output", output: "", want: "boom"},
		{name: "short output", output: "a\nb\n", want: "boom\n\n--- output ---\na\nb"},
		{name: "truncated output", output: "first line\nsecond\nthird\n", want: "boom\n\n--- output (last 16 of 24 bytes) ---\n...\nsecond\nthird"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTailBuffer(16)
			_, _ = b.Write([]byte(tt.output))
			assert.Equal(t, tt.want, withExcerpt("boom", b))
		})
	}
}
