package build

import (
	"bufio"
	"io"
	"sync"

	"github.com/scadform/scadform/internal/types"
)

// LogSink receives severity-tagged engine output lines as they are produced.
// The orchestrator pushes into the sink incrementally so callers can drive a
// live progress display; nothing is buffered until completion.
type LogSink interface {
	Log(text string, severity types.LogSeverity)
}

// LogFunc adapts a function to the LogSink interface.
type LogFunc func(text string, severity types.LogSeverity)

// Log implements LogSink.
func (f LogFunc) Log(text string, severity types.LogSeverity) {
	f(text, severity)
}

// NopSink discards all log lines.
var NopSink = LogFunc(func(string, types.LogSeverity) {})

// relayLines scans a stream line by line into the sink under the given
// severity until EOF. Intended to run in its own goroutine per stream.
func relayLines(wg *sync.WaitGroup, r io.Reader, severity types.LogSeverity, sink LogSink) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		sink.Log(scanner.Text(), severity)
	}
}

// CollectingSink retains every line it receives, for tests and for the CLI's
// post-run summaries. Safe for concurrent use.
type CollectingSink struct {
	mu    sync.Mutex
	lines []CollectedLine
}

// CollectedLine is one retained log line.
type CollectedLine struct {
	Text     string
	Severity types.LogSeverity
}

// Log implements LogSink.
func (s *CollectingSink) Log(text string, severity types.LogSeverity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, CollectedLine{Text: text, Severity: severity})
}

// Lines returns a copy of everything received so far.
func (s *CollectingSink) Lines() []CollectedLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CollectedLine, len(s.lines))
	copy(out, s.lines)
	return out
}
