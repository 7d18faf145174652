package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"warden/internal/logging"
)

// Watcher reloads the configuration file on change and feeds the logging
// level into a live slog.LevelVar, so a running daemon can be retuned
// without a restart. Only the log level is hot-reloaded; everything else is
// frozen at startup.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	level   *slog.LevelVar
	logger  *slog.Logger
	done    chan struct{}
}

// WatchLevel starts watching the config file at path. A missing file is not
// an error; the watcher picks it up once it appears.
func WatchLevel(path string, level *slog.LevelVar, logger *slog.Logger) (*Watcher, error) {
	if path == "" || level == nil {
		return nil, fmt.Errorf("watch config: path and level are required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors replace files instead of writing in place.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	w := &Watcher{
		path:    path,
		watcher: fsw,
		level:   level,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, _, _, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload skipped", logging.Error(err))
		return
	}
	next := logging.ParseLevel(cfg.Logging.Level)
	if next == w.level.Level() {
		return
	}
	w.level.Set(next)
	w.logger.Info("log level changed", logging.String("level", cfg.Logging.Level))
}

// Close stops the watcher and waits for the loop to drain.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
