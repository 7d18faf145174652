package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Sink is an append-only log file that rotates when the calendar day
// changes, in the spirit of a midnight-rotating file handler. Each write is
// flushed to the file immediately; there is no intermediate buffer to lose
// on an unclean exit.
type Sink struct {
	mu   sync.Mutex
	path string
	file *os.File
	day  string
}

const dayFormat = "2006-01-02"

func openSink(path string) (*Sink, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log sink %s: %w", path, err)
	}

	day := time.Now().Format(dayFormat)
	if info, statErr := file.Stat(); statErr == nil && info.Size() > 0 {
		day = info.ModTime().Format(dayFormat)
	}
	return &Sink{path: path, file: file, day: day}, nil
}

// Write appends p, rotating first when the day rolled over since the last
// write. Rotation renames the current file with its date suffix and reopens
// the canonical path fresh.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := time.Now().Format(dayFormat)
	if today != s.day {
		if err := s.rotateLocked(today); err != nil {
			return 0, err
		}
	}
	return s.file.Write(p)
}

func (s *Sink) rotateLocked(today string) error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close log sink %s: %w", s.path, err)
	}
	if err := os.Rename(s.path, s.path+"."+s.day); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate log sink %s: %w", s.path, err)
	}
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen log sink %s: %w", s.path, err)
	}
	s.file = file
	s.day = today
	return nil
}

// sinkRegistry deduplicates sinks across repeated binds. The key combines
// logger name, file path, and severity so re-binding the same identity hands
// back the existing sink instead of stacking a duplicate.
var sinkRegistry = struct {
	sync.Mutex
	sinks map[string]*Sink
}{sinks: make(map[string]*Sink)}

func sinkFor(name, path string, level slog.Level) (*Sink, error) {
	key := name + "://" + path + ":" + level.String()

	sinkRegistry.Lock()
	defer sinkRegistry.Unlock()
	if sink, ok := sinkRegistry.sinks[key]; ok {
		return sink, nil
	}
	sink, err := openSink(path)
	if err != nil {
		return nil, err
	}
	sinkRegistry.sinks[key] = sink
	return sink, nil
}

// Bind attaches (or re-attaches) the named logger to its log and error
// files and returns the logger plus stream adapters for stdout-style and
// stderr-style writes. Bind is idempotent for a given (name, path) identity.
//
// Bind must only run inside the final detached process, after descriptor
// closure: the sinks it opens are the daemon's replacement for the streams
// the detach sequence just abandoned.
func Bind(name, logFile, errFile string, level *slog.LevelVar) (*slog.Logger, io.Writer, io.Writer, error) {
	if level == nil {
		level = new(slog.LevelVar)
	}
	out, err := sinkFor(name, logFile, slog.LevelInfo)
	if err != nil {
		return nil, nil, nil, err
	}
	errSink, err := sinkFor(name, errFile, slog.LevelError)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := slog.New(&sinkHandler{name: name, out: out, err: errSink, level: level})
	return logger, NewStreamWriter(logger, slog.LevelInfo), NewStreamWriter(logger, slog.LevelError), nil
}
