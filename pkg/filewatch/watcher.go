// Package filewatch reports changes to files on disk, debounced per path, to
// handlers subscribed by glob pattern.
package filewatch

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"

	"github.com/odvcencio/regionfocus/pkg/errors"
	"github.com/odvcencio/regionfocus/pkg/logging"
)

// ChangeType describes the kind of file change observed.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

const (
	defaultMaxHistory = 100
	// DefaultDebounce lets editors finish writing before handlers run.
	DefaultDebounce = 150 * time.Millisecond
)

// FileChange is one settled change to a file.
type FileChange struct {
	Path string
	Type ChangeType
	At   time.Time
}

// FileChangeHandler receives file change notifications.
type FileChangeHandler func(change FileChange)

// Subscription binds a pattern to a handler.
type Subscription struct {
	ID      string
	Pattern string
	Handler FileChangeHandler
}

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithDebounce sets how long a path must stay quiet before it is reported.
func WithDebounce(d time.Duration) Option {
	return func(fw *FileWatcher) { fw.debounce = d }
}

// WithMaxHistory bounds RecentChanges.
func WithMaxHistory(n int) Option {
	return func(fw *FileWatcher) {
		if n > 0 {
			fw.maxHistory = n
		}
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(l *logging.Logger) Option {
	return func(fw *FileWatcher) { fw.log = l }
}

// FileWatcher turns fsnotify events into debounced FileChanges.
type FileWatcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	log      *logging.Logger

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	recentChanges []FileChange
	maxHistory    int
	pending       map[string]*time.Timer
}

// NewFileWatcher opens an fsnotify watcher. Call Run to start delivering.
func NewFileWatcher(opts ...Option) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "creating file watcher")
	}
	fw := &FileWatcher{
		fs:            w,
		debounce:      DefaultDebounce,
		subscriptions: make(map[string]*Subscription),
		maxHistory:    defaultMaxHistory,
		pending:       make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(fw)
	}
	return fw, nil
}

// Add watches the directory holding file. Editors often replace files by
// rename, which a watch on the file itself would miss.
func (fw *FileWatcher) Add(file string) error {
	dir := filepath.Dir(filepath.Clean(file))
	if err := fw.fs.Add(dir); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "watching directory").
			WithContext("path", dir)
	}
	return nil
}

// Subscribe registers a file change handler for a glob pattern. Patterns
// without a slash match the base name.
func (fw *FileWatcher) Subscribe(pattern string, handler FileChangeHandler) string {
	if fw == nil || handler == nil {
		return ""
	}
	id := ulid.Make().String()
	fw.mu.Lock()
	fw.subscriptions[id] = &Subscription{
		ID:      id,
		Pattern: strings.TrimSpace(pattern),
		Handler: handler,
	}
	fw.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription.
func (fw *FileWatcher) Unsubscribe(id string) {
	if fw == nil || strings.TrimSpace(id) == "" {
		return
	}
	fw.mu.Lock()
	delete(fw.subscriptions, id)
	fw.mu.Unlock()
}

// Notify records change and hands it to matching subscribers.
func (fw *FileWatcher) Notify(change FileChange) {
	if fw == nil {
		return
	}
	if change.At.IsZero() {
		change.At = time.Now()
	}
	fw.mu.Lock()
	fw.recentChanges = append(fw.recentChanges, change)
	if len(fw.recentChanges) > fw.maxHistory {
		fw.recentChanges = fw.recentChanges[len(fw.recentChanges)-fw.maxHistory:]
	}
	subs := make([]*Subscription, 0, len(fw.subscriptions))
	for _, sub := range fw.subscriptions {
		subs = append(subs, sub)
	}
	fw.mu.Unlock()

	for _, sub := range subs {
		if matchesPattern(sub.Pattern, change.Path) {
			sub.Handler(change)
		}
	}
}

// RecentChanges returns the most recent changes, newest first.
func (fw *FileWatcher) RecentChanges(limit int) []FileChange {
	if fw == nil {
		return nil
	}
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	if limit <= 0 || limit > len(fw.recentChanges) {
		limit = len(fw.recentChanges)
	}
	out := make([]FileChange, 0, limit)
	for i := len(fw.recentChanges) - 1; i >= len(fw.recentChanges)-limit; i-- {
		out = append(out, fw.recentChanges[i])
	}
	return out
}

// Run delivers changes until ctx is done or the watcher is closed.
func (fw *FileWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.fs.Events:
			if !ok {
				return nil
			}
			fw.schedule(ev)
		case err, ok := <-fw.fs.Errors:
			if !ok {
				return nil
			}
			_ = fw.log.Warn(logging.CategoryWatch, "watch_error", "", err.Error(), nil)
		}
	}
}

// schedule restarts the path's debounce timer. Only the last event of a
// burst is reported.
func (fw *FileWatcher) schedule(ev fsnotify.Event) {
	typ, ok := changeType(ev.Op)
	if !ok {
		return
	}
	name := filepath.Clean(ev.Name)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if t, ok := fw.pending[name]; ok {
		t.Stop()
	}
	fw.pending[name] = time.AfterFunc(fw.debounce, func() {
		fw.mu.Lock()
		delete(fw.pending, name)
		fw.mu.Unlock()
		fw.Notify(FileChange{Path: name, Type: typ})
	})
}

// Close stops the watcher and drops pending notifications.
func (fw *FileWatcher) Close() error {
	fw.mu.Lock()
	for name, t := range fw.pending {
		t.Stop()
		delete(fw.pending, name)
	}
	fw.mu.Unlock()
	return fw.fs.Close()
}

func changeType(op fsnotify.Op) (ChangeType, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ChangeCreated, true
	case op.Has(fsnotify.Write):
		return ChangeModified, true
	case op.Has(fsnotify.Remove):
		return ChangeDeleted, true
	case op.Has(fsnotify.Rename):
		return ChangeRenamed, true
	}
	return "", false
}

func matchesPattern(pattern, filePath string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "*" {
		return true
	}
	cleanPath := filepath.ToSlash(strings.TrimSpace(filePath))
	cleanPattern := filepath.ToSlash(pattern)
	if ok, _ := path.Match(cleanPattern, cleanPath); ok {
		return true
	}
	if !strings.Contains(cleanPattern, "/") {
		if ok, _ := path.Match(cleanPattern, path.Base(cleanPath)); ok {
			return true
		}
	}
	return false
}
