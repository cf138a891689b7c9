package agent

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"

	"github.com/gottino/rmirror-cloud/cmn/nlog"
)

// relevantExtensions filters to per-page source files, notebook metadata
// files, and content-manifest files (spec §4.9 "Watch").
var relevantExtensions = map[string]bool{
	".rm":       true, // per-page source
	".metadata": true, // notebook metadata
	".content":  true, // content-manifest
}

const debounceWindow = 500 * time.Millisecond

// Watcher subscribes to file-system changes under Root and, after an
// initial godirwalk scan to pick up anything already present, emits a
// coalesced Change for each relevant path at most once per debounce
// window (spec §4.9: "Coalesce multiple events for the same path within
// a short debounce window (~500 ms) to one upload").
type Watcher struct {
	Root string

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer

	out chan Change
}

type Change struct {
	Path string
}

func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		Root:    root,
		fsw:     fsw,
		pending: make(map[string]*time.Timer),
		out:     make(chan Change, 256),
	}
	return w, nil
}

func isRelevant(path string) bool {
	return relevantExtensions[strings.ToLower(filepath.Ext(path))]
}

// Start performs the initial directory scan, registers the root (and any
// subdirectories found during the scan) with fsnotify, and begins
// emitting coalesced Changes on Changes().
func (w *Watcher) Start() error {
	dirs := map[string]bool{w.Root: true}

	err := godirwalk.Walk(w.Root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				dirs[path] = true
				return nil
			}
			if isRelevant(path) {
				w.schedule(path)
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return err
	}

	for d := range dirs {
		if err := w.fsw.Add(d); err != nil {
			nlog.Warnf("agent: watch %s: %v", d, err)
		}
	}

	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				_ = w.fsw.Add(ev.Name)
				continue
			}
			if isRelevant(ev.Name) {
				w.schedule(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			nlog.Warnf("agent: watcher error: %v", err)
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(debounceWindow)
		return
	}
	w.pending[path] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.out <- Change{Path: path}
	})
}

func (w *Watcher) Changes() <-chan Change { return w.out }

func (w *Watcher) Close() error { return w.fsw.Close() }
