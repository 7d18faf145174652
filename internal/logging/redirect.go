package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// StreamWriter adapts an io.Writer surface onto a logger at a fixed
// severity. Multi-line buffers are split into discrete records and trailing
// whitespace is trimmed, so a worker can point its stdout-style output here
// and every line lands as its own log entry.
type StreamWriter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewStreamWriter builds a stream adapter logging at the given level.
func NewStreamWriter(logger *slog.Logger, level slog.Level) *StreamWriter {
	return &StreamWriter{logger: logger, level: level}
}

// Write forwards each non-empty line of p to the logger. It always reports
// the full length as written; a log sink is a place output goes to die, not
// a surface that pushes errors back into the writer.
func (w *StreamWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), " \t\r\n"), "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}
		w.logger.Log(context.Background(), w.level, line)
	}
	return len(p), nil
}

var _ io.Writer = (*StreamWriter)(nil)
