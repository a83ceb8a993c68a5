package watch

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codex-history/internal/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher reports that rollout files under a sessions root changed. Bursts
// of filesystem events collapse into one notification on Changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	debounce  time.Duration

	Changes chan struct{}
	done    chan struct{}
	stop    sync.Once

	mu    sync.Mutex
	timer *time.Timer
}

func New(root string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		fsWatcher: fsw,
		root:      filepath.Clean(root),
		debounce:  debounce,
		Changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	w.addTree(w.root)
	return w, nil
}

// addTree watches dir and every directory below it. When dir does not
// exist yet the nearest existing parent is watched so its creation is seen.
func (w *Watcher) addTree(dir string) {
	if _, err := os.Stat(dir); err != nil {
		parent := filepath.Dir(dir)
		if parent != dir {
			_ = w.fsWatcher.Add(parent)
		}
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := w.fsWatcher.Add(path); addErr != nil {
				logger.Logger.Warn().Err(addErr).Str("dir", path).Msg("watch directory")
			}
		}
		return nil
	})
}

func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) Stop() error {
	var err error
	w.stop.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logger.Logger.Warn().Err(err).Str("root", w.root).Msg("session watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if st, err := os.Stat(event.Name); err == nil && st.IsDir() && w.underRoot(event.Name) {
			w.addTree(event.Name)
			w.schedule()
			return
		}
	}
	if isRolloutEvent(event) && w.underRoot(event.Name) {
		w.schedule()
	}
}

func (w *Watcher) underRoot(path string) bool {
	path = filepath.Clean(path)
	return path == w.root || strings.HasPrefix(path, w.root+string(filepath.Separator))
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.notify)
}

func (w *Watcher) notify() {
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.Changes <- struct{}{}:
	default:
	}
}

func isRolloutEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return strings.HasPrefix(name, "rollout-") && strings.HasSuffix(name, ".jsonl")
}
