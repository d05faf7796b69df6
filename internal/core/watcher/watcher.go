// Package watcher reports debounced batches of changed files under a
// grammars directory.
package watcher

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"tree-sitter-cerium/internal/shared/observability"
	"tree-sitter-cerium/internal/shared/util"
)

// DefaultExtensions are the grammar artifacts watched unless SetFilters says otherwise.
var DefaultExtensions = []string{".json", ".so", ".dylib", ".dll"}

// DefaultFilenames are watched regardless of extension.
var DefaultFilenames = []string{"manifest.toml"}

type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debounce     time.Duration
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	extFilters   map[string]bool
	nameFilters  map[string]bool
	limiter      *util.Limiter
	onChange     func([]string)
	callbackMu   sync.Mutex

	hashes    map[string][sha256.Size]byte
	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
	closed    bool
}

func NewWatcher(debounce time.Duration, excludeDirs, excludeFiles []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiledDirs, err := compileAll(excludeDirs)
	if err != nil {
		return nil, err
	}
	compiledFiles, err := compileAll(excludeFiles)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:    fsw,
		debounce:     debounce,
		excludeDirs:  compiledDirs,
		excludeFiles: compiledFiles,
		onChange:     onChange,
		hashes:       make(map[string][sha256.Size]byte),
		pending:      make(map[string]time.Time),
	}
	w.SetFilters(DefaultExtensions, DefaultFilenames)
	return w, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// SetFilters replaces the extension and filename allow lists.
func (w *Watcher) SetFilters(extensions, filenames []string) {
	extFilter := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		extFilter[normalized] = true
	}

	nameFilter := make(map[string]bool, len(filenames))
	for _, name := range filenames {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		nameFilter[normalized] = true
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.extFilters = extFilter
	w.nameFilters = nameFilter
}

// SetRateLimit caps how often onChange fires. Batches arriving faster are
// held and merged into the next allowed flush. perSecond <= 0 removes the cap.
func (w *Watcher) SetRateLimit(perSecond float64, burst int) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if perSecond <= 0 {
		w.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	w.limiter = util.NewLimiter(perSecond, burst)
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if err := w.watchRecursive(path); err != nil {
			return err
		}
		w.seedHashes(path)
	}

	go w.run()
	return nil
}

// Retarget moves the watch from oldRoot to newRoot on the running event loop.
// Pending changes under oldRoot are dropped.
func (w *Watcher) Retarget(oldRoot, newRoot string) error {
	if err := w.watchRecursive(newRoot); err != nil {
		return err
	}
	for _, dir := range w.fsWatcher.WatchList() {
		if within(oldRoot, dir) && !within(newRoot, dir) {
			_ = w.fsWatcher.Remove(dir)
		}
	}

	w.pendingMu.Lock()
	for path := range w.pending {
		if within(oldRoot, path) && !within(newRoot, path) {
			delete(w.pending, path)
		}
	}
	for path := range w.hashes {
		if within(oldRoot, path) && !within(newRoot, path) {
			delete(w.hashes, path)
		}
	}
	w.pendingMu.Unlock()

	w.seedHashes(newRoot)
	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		return nil
	})
}

// seedHashes records the current content of watched files so rewrites with
// identical bytes are not reported.
func (w *Watcher) seedHashes(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		if info.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		if sum, ok := hashFile(path); ok {
			w.pendingMu.Lock()
			w.hashes[path] = sum
			w.pendingMu.Unlock()
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()
	w.armLocked(w.debounce)
}

func (w *Watcher) armLocked(delay time.Duration) {
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(delay, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 || w.closed {
		w.pendingMu.Unlock()
		return
	}
	if w.limiter != nil && !w.limiter.Allow(1) {
		observability.WatcherThrottledTotal.Inc()
		w.armLocked(w.debounce + 50*time.Millisecond)
		w.pendingMu.Unlock()
		return
	}

	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		if w.contentChangedLocked(path) {
			paths = append(paths, path)
		}
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

// contentChangedLocked updates the stored hash of path and reports whether the
// file changed. Removed files always count as changed.
func (w *Watcher) contentChangedLocked(path string) bool {
	sum, ok := hashFile(path)
	if !ok {
		delete(w.hashes, path)
		return true
	}
	prev, seen := w.hashes[path]
	w.hashes[path] = sum
	return !seen || prev != sum
}

func hashFile(path string) ([sha256.Size]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}, false
	}
	return sha256.Sum256(data), true
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	base := strings.ToLower(filepath.Base(path))

	w.pendingMu.Lock()
	exts, names := w.extFilters, w.nameFilters
	w.pendingMu.Unlock()

	if len(exts) > 0 || len(names) > 0 {
		if !names[base] && !exts[strings.ToLower(filepath.Ext(base))] {
			return true
		}
	}

	for _, g := range w.excludeFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
