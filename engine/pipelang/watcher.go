package pipelang

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrNotWatchable is returned when a library is not backed by a directory.
var ErrNotWatchable = errors.New("pipelang: library has no directory to watch")

// Watcher re-parses a directory library when one of its files is written. Parse drops the shaders and
// layouts built from the old sources and advances the library's generation, which tells the renderers to
// rebuild their pipelines.
type Watcher struct {
	mu *sync.Mutex

	lib     Library
	watcher *fsnotify.Watcher
	done    chan struct{}

	onReload func(err error)
}

// NewWatcher starts watching lib's directory and its immediate subdirectories.
//
// Parameters:
//   - lib: a library created with CreateDirLibrary
//   - opts: a variadic list of WatcherBuilderOption functions
//
// Returns:
//   - *Watcher: the running watcher
//   - error: ErrNotWatchable, or an error from the file system notifier
func NewWatcher(lib Library, opts ...WatcherBuilderOption) (*Watcher, error) {
	if lib.Dir() == "" {
		return nil, ErrNotWatchable
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		mu:      &sync.Mutex{},
		lib:     lib,
		watcher: fw,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	entries, err := os.ReadDir(lib.Dir())
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(lib.Dir()); err != nil {
		fw.Close()
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := fw.Add(filepath.Join(lib.Dir(), e.Name())); err != nil {
			fw.Close()
			return nil, err
		}
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".wgsl") && !strings.HasSuffix(event.Name, ".yaml") {
				continue
			}
			w.Reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("pipelang: watching %s: %v", w.lib.Dir(), err)
		}
	}
}

// Reload re-parses the library. A failed parse keeps the previous contents and caches.
//
// Returns:
//   - error: the parse failure
func (w *Watcher) Reload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.lib.Parse()
	if err != nil {
		log.Printf("pipelang: reloading %s: %v", w.lib.Name(), err)
	} else {
		log.Printf("pipelang: reloaded %s, generation %d", w.lib.Name(), w.lib.Generation())
	}
	if w.onReload != nil {
		w.onReload(err)
	}
	return err
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
