package runner

import (
	"strings"
	"sync"
)

const defaultOutputTailBytes = 64 * 1024 // kept in memory per configuration

// tailBuffer keeps only the last N bytes of process output so a snippet can
// be attached to synthetic error results without retaining the whole log.
type tailBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
}

func newTailBuffer(maxBytes int) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = defaultOutputTailBytes
	}
	return &tailBuffer{
		maxBytes: maxBytes,
		contents: make([]byte, 0, maxBytes),
	}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		// Shift instead of reslicing so the backing array does not grow.
		n := copy(b.contents, b.contents[len(b.contents)-b.maxBytes:])
		b.contents = b.contents[:n]
	}
	return len(p), nil
}

// WriteLine appends one line of output
func (b *tailBuffer) WriteLine(line string) {
	_, _ = b.Write([]byte(line + "\n"))
}

func (b *tailBuffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func (b *tailBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.contents)) < b.total
}

// Excerpt returns the retained output, starting at a line boundary when the
// head was dropped.
func (b *tailBuffer) Excerpt() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := string(b.contents)
	if int64(len(b.contents)) < b.total {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = "...\n" + s
	}
	return strings.TrimRight(s, "\n")
}
