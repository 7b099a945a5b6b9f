// file: internal/watcher/watcher.go
// version: 3.0.0
// guid: b2c3d4e5-f6a7-8901-bcde-f23456789012

// Package watcher reports new or rewritten MP3 files under a directory tree.
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/walsoup/MusicMetadataFetcher/internal/scanner"
)

// DefaultDebounce is the default debounce period.
const DefaultDebounce = 5 * time.Second

// Callback receives the MP3 paths that changed during one debounce window,
// sorted lexically. Callbacks never overlap.
type Callback func(paths []string)

// Watcher monitors a directory tree for MP3 changes and invokes a callback
// after a debounce period.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	rootDir   string
	debounce  time.Duration
	callback  Callback
	log       *slog.Logger
	stop      chan struct{}
	stopped   chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	running bool

	callMu sync.Mutex
}

// New creates a Watcher. Pass 0 for debounce to use DefaultDebounce and nil
// for log to use slog.Default.
func New(callback Callback, debounce time.Duration, log *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		debounce: debounce,
		callback: callback,
		log:      log,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
		pending:  make(map[string]struct{}),
	}
}

// Start begins watching rootDir recursively. It is safe to call only once.
func (w *Watcher) Start(rootDir string) error {
	info, err := os.Stat(rootDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", rootDir)
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsw
	w.rootDir = rootDir

	if err := w.addRecursive(rootDir); err != nil {
		fsw.Close()
		return err
	}

	go w.eventLoop()
	return nil
}

// Stop shuts down the watcher and waits for the event loop to exit. A
// callback already running is allowed to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stop)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	<-w.stopped

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.callMu.Lock()
	w.callMu.Unlock()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if d.IsDir() {
			if watchErr := w.fsWatcher.Add(path); watchErr != nil {
				w.log.Warn("cannot watch directory", "dir", path, "error", watchErr)
			}
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer close(w.stopped)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			// Files moved in with the directory produce no events of their own.
			if files, err := scanner.ScanDirectory(event.Name); err == nil {
				for _, f := range files {
					w.schedule(f)
				}
			}
			return
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !scanner.IsMP3(event.Name) {
		return
	}
	w.schedule(event.Name)
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	w.timer = nil
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 || w.callback == nil {
		return
	}
	sort.Strings(paths)

	w.callMu.Lock()
	defer w.callMu.Unlock()
	w.log.Info("changes detected", "root", w.rootDir, "files", len(paths))
	w.callback(paths)
}
