// Package watcher reports debounced changes to the files of a demo project so
// the preview server can reload the viewer.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/web-padawan/demosnippet/internal/logging"
)

// FileWatcher watches a project root for file changes with debouncing
type FileWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	ignore    []glob.Glob
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event. Rel is the slash separated
// path relative to the watched root.
type ChangeEvent struct {
	Type    EventType
	Path    string
	Rel     string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a root-relative path should produce events
type FileFilter func(rel string) bool

// ChangeHandler handles file change events
type ChangeHandler func(events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

func newDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}
}

// NewFileWatcher creates a watcher for the files below root.
func NewFileWatcher(root string, debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		root:      absRoot,
		watcher:   watcher,
		debouncer: newDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// Root returns the absolute watch root.
func (fw *FileWatcher) Root() string {
	return fw.root
}

// AddFilter adds a file filter. Every filter must accept a path for it to
// produce an event.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// Ignore adds glob patterns for paths that never produce events. Patterns
// are matched against the root-relative path, with and without a leading
// slash, so "**/node_modules/**" also covers a top level node_modules.
// Ignored directories are not walked by AddRecursive.
func (fw *FileWatcher) Ignore(patterns ...string) error {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}

	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.ignore = append(fw.ignore, compiled...)
	return nil
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath adds a single directory or file below the root to watch
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath, err := fw.validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return fw.watcher.Add(cleanPath)
}

// AddRecursive adds a directory and all of its subdirectories that are not
// ignored.
func (fw *FileWatcher) AddRecursive(dir string) error {
	cleanRoot, err := fw.validatePath(dir)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}

	return filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		if path != cleanRoot && fw.ignored(fw.rel(path), true) {
			fw.logger.Debug(context.Background(), "Skipping ignored directory", "path", path)
			return filepath.SkipDir
		}

		return fw.watcher.Add(path)
	})
}

// validatePath resolves path against the root and rejects anything outside it
func (fw *FileWatcher) validatePath(path string) (string, error) {
	if strings.Contains(filepath.ToSlash(path), "..") {
		return "", fmt.Errorf("path contains directory traversal: %s", path)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(fw.root, path)
	}
	absPath := filepath.Clean(path)

	if absPath != fw.root && !strings.HasPrefix(absPath, fw.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the watch root %s", path, fw.root)
	}

	if _, err := os.Stat(absPath); err != nil {
		return "", err
	}

	return absPath, nil
}

func (fw *FileWatcher) rel(path string) string {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (fw *FileWatcher) ignored(rel string, dir bool) bool {
	fw.mutex.RLock()
	ignore := fw.ignore
	fw.mutex.RUnlock()

	candidates := []string{rel, "/" + rel}
	if dir {
		candidates = append(candidates, rel+"/", "/"+rel+"/")
	}

	for _, g := range ignore {
		for _, c := range candidates {
			if g.Match(c) {
				return true
			}
		}
	}
	return false
}

func (fw *FileWatcher) accepts(rel string) bool {
	if fw.ignored(rel, false) {
		return false
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(rel) {
			return false
		}
	}
	return true
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)

	fw.logger.Info(ctx, "Watching project files", "root", fw.root)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	rel := fw.rel(event.Name)

	info, err := os.Stat(event.Name)
	var modTime time.Time
	var size int64

	if err == nil {
		if info.IsDir() {
			// New directories are watched as they appear.
			if event.Op&fsnotify.Create == fsnotify.Create && !fw.ignored(rel, true) {
				if addErr := fw.watcher.Add(event.Name); addErr != nil {
					fw.logger.Warn(ctx, addErr, "Failed to watch new directory", "path", event.Name)
				}
			}
			return
		}
		modTime = info.ModTime()
		size = info.Size()
	}

	if !fw.accepts(rel) {
		return
	}

	changeEvent := ChangeEvent{
		Type:    eventType(event.Op),
		Path:    event.Name,
		Rel:     rel,
		ModTime: modTime,
		Size:    size,
	}

	select {
	case fw.debouncer.events <- changeEvent:
	default:
		fw.logger.Debug(ctx, "Dropping file event, debouncer is full", "path", rel)
	}
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return EventTypeCreated
	case op&fsnotify.Write == fsnotify.Write:
		return EventTypeModified
	case op&fsnotify.Remove == fsnotify.Remove:
		return EventTypeDeleted
	case op&fsnotify.Rename == fsnotify.Rename:
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			fw.logger.Debug(ctx, "Project files changed", "count", len(events))

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler failed")
				}
			}
		}
	}
}

// Debouncer implementation
func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// Last event per path wins
	eventMap := make(map[string]ChangeEvent, len(d.pending))
	for _, event := range d.pending {
		eventMap[event.Path] = event
	}

	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
	default:
	}

	d.pending = d.pending[:0]
}

// ExtensionFilter accepts paths with one of the given extensions, compared
// case-insensitively.
func ExtensionFilter(exts ...string) FileFilter {
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return func(rel string) bool {
		_, ok := allowed[strings.ToLower(filepath.Ext(rel))]
		return ok
	}
}

// ProjectFilter accepts the files a demo project is made of: the manifest,
// templates, highlighted sources and companion scripts.
var ProjectFilter = ExtensionFilter(".json", ".html", ".js", ".lua")

// NoHiddenFilter rejects dot files and anything inside a dot directory.
func NoHiddenFilter(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return false
		}
	}
	return true
}

// UnderFilter accepts paths inside the given root-relative directory.
func UnderFilter(dir string) FileFilter {
	dir = strings.Trim(filepath.ToSlash(filepath.Clean(dir)), "/")
	if dir == "" || dir == "." {
		return func(string) bool { return true }
	}
	return func(rel string) bool {
		return rel == dir || strings.HasPrefix(rel, dir+"/")
	}
}
