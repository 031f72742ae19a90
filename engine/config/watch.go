package config

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/phex-go/engine/logging"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	path     string
	fs       *fsnotify.Watcher
	onChange func(Config)
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// Watch starts watching path. The parent directory is watched so editors that replace the file
// on save are still seen. onChange runs on the watcher goroutine with every config that loads
// cleanly; a file that fails to load is logged and skipped.
//
// Parameters:
//   - path: the config file
//   - onChange: the reload callback
//
// Returns:
//   - *Watcher: the running watcher, stop it with Close
//   - error: an error if the watch cannot be set up
func Watch(path string, onChange func(Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		_ = fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		fs:       fsWatch,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// WatchLogLevel watches path and applies its log_level to the shared logger on every change.
func WatchLogLevel(path string) (*Watcher, error) {
	return Watch(path, func(cfg Config) {
		if cfg.LogLevel == logging.Level() {
			return
		}
		if err := logging.SetLevel(cfg.LogLevel); err != nil {
			logging.Warn("config reload: bad log level", "level", cfg.LogLevel, "err", err)
			return
		}
		logging.Info("log level changed", "level", cfg.LogLevel)
	})
}

// Close stops the watcher and waits for its goroutine. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logging.Warn("config reload failed", "path", w.path, "err", err)
				continue
			}
			logging.Debug("config reloaded", "path", w.path)
			w.onChange(cfg)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				logging.Warn("config watch error", "err", err)
			}
		}
	}
}
