package markdown

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type cacheEntry struct {
	modTime time.Time
	size    int64
	doc     []byte
}

// Cache holds rendered pages keyed by source file path. Entries are dropped
// when fsnotify reports a change to their file, and a lookup also misses when
// the file's size or mtime no longer match.
type Cache struct {
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.RWMutex
	entries map[string]cacheEntry
	watched map[string]bool
}

// NewCache starts the watcher goroutine. Close stops it.
func NewCache() (*Cache, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	c := &Cache{
		watcher: w,
		done:    make(chan struct{}),
		entries: make(map[string]cacheEntry),
		watched: make(map[string]bool),
	}
	go c.watch()
	return c, nil
}

func (c *Cache) watch() {
	defer close(c.done)
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.invalidate(ev.Name, ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename))
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("markdown cache watcher error", slog.Any("error", err))
		}
	}
}

func (c *Cache) invalidate(name string, tree bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
	if !tree {
		return
	}
	prefix := name + string(filepath.Separator)
	for p := range c.entries {
		if strings.HasPrefix(p, prefix) {
			delete(c.entries, p)
		}
	}
	delete(c.watched, name)
}

// Get returns the page rendered from path when fi still describes the file
// it was rendered from.
func (c *Cache) Get(path string, fi fs.FileInfo) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok || e.size != fi.Size() || !e.modTime.Equal(fi.ModTime()) {
		return nil, false
	}
	return e.doc, true
}

// Put stores doc, rendered from the file at path described by fi.
func (c *Cache) Put(path string, fi fs.FileInfo, doc []byte) {
	dir := filepath.Dir(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.watched[dir] {
		if err := c.watcher.Add(dir); err != nil {
			// Without a watch the mtime check still catches most edits.
			slog.Warn("failed to watch markdown dir", slog.String("dir", dir), slog.Any("error", err))
		} else {
			c.watched[dir] = true
		}
	}
	c.entries[path] = cacheEntry{modTime: fi.ModTime(), size: fi.Size(), doc: doc}
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops watching and waits for the watcher goroutine to exit.
func (c *Cache) Close() error {
	err := c.watcher.Close()
	<-c.done
	return err
}
