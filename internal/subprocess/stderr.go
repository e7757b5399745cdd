package subprocess

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// maxStderrBufferSize caps the captured stderr. Lines past the cap still
// reach the callback but are not retained.
const maxStderrBufferSize = 10 * 1024 * 1024 // 10MB

// stderrBuffer accumulates diagnostic output for exit reports.
type stderrBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *stderrBuffer) appendLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buf.Len() >= maxStderrBufferSize {
		return
	}

	if b.buf.Len() > 0 {
		b.buf.WriteByte('\n')
	}

	b.buf.WriteString(line)
}

func (b *stderrBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

// collectStderr copies lines from r into buf, invoking onLine for each.
func collectStderr(r io.Reader, buf *stderrBuffer, onLine func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), defaultMaxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		buf.appendLine(line)

		if onLine != nil {
			onLine(line)
		}
	}

	return scanner.Err()
}

// cleanStderr drops the source-context lines some JS runtimes print around a
// stack trace ("1234 | <minified code>"), keeping messages and frames.
func cleanStderr(stderr string) string {
	if stderr == "" {
		return ""
	}

	kept := make([]string, 0, 16)

	for line := range strings.SplitSeq(stderr, "\n") {
		if isSourceContextLine(strings.TrimSpace(line)) {
			continue
		}

		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isSourceContextLine(line string) bool {
	prefix, _, found := strings.Cut(line, "|")
	if !found {
		return false
	}

	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return false
	}

	for _, ch := range prefix {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	return true
}
