package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
)

// sinkHandler formats records as pipe-separated lines and routes them by
// severity: error and above land in the error sink, everything else in the
// info sink.
type sinkHandler struct {
	name  string
	out   io.Writer
	err   io.Writer
	level *slog.LevelVar
	attrs []slog.Attr
	group string
}

func (h *sinkHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *sinkHandler) Handle(_ context.Context, rec slog.Record) error {
	var buf bytes.Buffer
	buf.WriteString(rec.Time.Format("2006-01-02T15:04:05.000Z07:00"))
	buf.WriteByte('|')
	buf.WriteString(rec.Level.String())
	buf.WriteByte('|')
	buf.WriteString(strconv.Itoa(os.Getpid()))
	buf.WriteByte('|')
	buf.WriteString(h.name)
	buf.WriteByte('|')
	buf.WriteString(rec.Message)

	for _, attr := range h.attrs {
		h.appendAttr(&buf, attr)
	}
	rec.Attrs(func(attr slog.Attr) bool {
		h.appendAttr(&buf, attr)
		return true
	})
	buf.WriteByte('\n')

	w := h.out
	if rec.Level >= slog.LevelError {
		w = h.err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (h *sinkHandler) appendAttr(buf *bytes.Buffer, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	buf.WriteByte('|')
	if h.group != "" {
		buf.WriteString(h.group)
		buf.WriteByte('.')
	}
	buf.WriteString(attr.Key)
	buf.WriteByte('=')
	buf.WriteString(attr.Value.String())
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group != "" {
		clone.group = h.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}
