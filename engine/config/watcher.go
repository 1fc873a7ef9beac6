package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/prisma/engine/core"
)

// Watcher hot-reloads the config file while the application runs. Reloaded
// values are handed to the callback on the watcher goroutine; the consumer
// decides when they take effect (the renderer folds them into its next frame
// snapshot).
type Watcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	onReload func(*Config)
	done     chan struct{}
}

func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     path,
		fsnotify: fsWatch,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	// Watch the directory rather than the file: editors replace files on
	// save, which drops a file-level watch.
	if err := fsWatch.Add(filepath.Dir(path)); err != nil {
		fsWatch.Close()
		return nil, err
	}
	go w.start()
	return w, nil
}

func (w *Watcher) start() {
	for {
		select {
		case e := <-w.fsnotify.Events:
			if filepath.Clean(e.Name) != filepath.Clean(w.path) {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				core.LogWarn("config reload failed, keeping previous values: %s", err.Error())
				continue
			}
			core.LogInfo("config reloaded from %s", w.path)
			w.onReload(cfg)

		case err := <-w.fsnotify.Errors:
			if err != nil {
				core.LogError(err.Error())
			}

		case <-w.done:
			w.fsnotify.Close()
			return
		}
	}
}

func (w *Watcher) Close() {
	close(w.done)
}
