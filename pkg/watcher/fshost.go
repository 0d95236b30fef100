package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/projectd/pkg/logging"
)

// FSHost multiplexes a single fsnotify watcher across many file and
// directory subscriptions. fsnotify watches directories; file watches are
// implemented by watching the parent directory and filtering events.
type FSHost struct {
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	files    map[string][]*fsSubscription // parent dir -> file subscriptions
	dirs     map[string][]*fsSubscription // dir -> directory subscriptions
	refCount map[string]int               // fsnotify add count per directory
	closed   bool
}

type fsSubscription struct {
	host      *FSHost
	dir       string // fsnotify directory this subscription hangs off
	path      string // exact file path (file watches only)
	recursive bool
	fileCB    FileCallback
	dirCB     DirCallback
	closed    bool
}

// NewFSHost creates a new fsnotify-backed watch host and starts its event
// loop. The loop stops when ctx is cancelled.
func NewFSHost(ctx context.Context) (*FSHost, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	h := &FSHost{
		watcher:  w,
		files:    make(map[string][]*fsSubscription),
		dirs:     make(map[string][]*fsSubscription),
		refCount: make(map[string]int),
	}
	go h.processEvents(ctx)
	return h, nil
}

// WatchFile watches a single file for create/change/delete events.
func (h *FSHost) WatchFile(path string, cb FileCallback) FileWatcher {
	dir := filepath.Dir(path)
	sub := &fsSubscription{host: h, dir: dir, path: path, fileCB: cb}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[dir] = append(h.files[dir], sub)
	h.addDirLocked(dir)
	return sub
}

// WatchDirectory watches a directory, optionally including subdirectories.
// Recursive watches register the root only; events for newly created
// subdirectories add those directories on the fly.
func (h *FSHost) WatchDirectory(path string, recursive bool, cb DirCallback) FileWatcher {
	sub := &fsSubscription{host: h, dir: path, recursive: recursive, dirCB: cb}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.dirs[path] = append(h.dirs[path], sub)
	h.addDirLocked(path)
	return sub
}

func (h *FSHost) addDirLocked(dir string) {
	h.refCount[dir]++
	if h.refCount[dir] == 1 {
		if err := h.watcher.Add(dir); err != nil {
			// The directory may not exist yet; events will be missed until
			// it does. The caller's missing-file handling recovers.
			logging.Debug("failed to watch directory", "path", dir, "error", err)
		}
	}
}

func (h *FSHost) removeDirLocked(dir string) {
	h.refCount[dir]--
	if h.refCount[dir] <= 0 {
		delete(h.refCount, dir)
		_ = h.watcher.Remove(dir)
	}
}

func (h *FSHost) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.closed = true
			h.mu.Unlock()
			h.watcher.Close()
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.dispatch(event)

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

func (h *FSHost) dispatch(event fsnotify.Event) {
	kind := eventKind(event)

	h.mu.Lock()
	name := filepath.Clean(event.Name)
	dir := filepath.Dir(name)

	var fileCBs []FileCallback
	for _, sub := range h.files[dir] {
		if !sub.closed && filepath.Clean(sub.path) == name {
			fileCBs = append(fileCBs, sub.fileCB)
		}
	}

	var dirCBs []DirCallback
	for watched, subs := range h.dirs {
		for _, sub := range subs {
			if sub.closed {
				continue
			}
			if dir == watched || (sub.recursive && isUnder(name, watched)) {
				dirCBs = append(dirCBs, sub.dirCB)
			}
		}
	}

	// Recursive watches pick up new subdirectories as they appear.
	if event.Op.Has(fsnotify.Create) {
		for watched, subs := range h.dirs {
			for _, sub := range subs {
				if !sub.closed && sub.recursive && isUnder(name, watched) {
					h.refCount[name]++
					if h.refCount[name] == 1 {
						_ = h.watcher.Add(name)
					}
					break
				}
			}
		}
	}
	h.mu.Unlock()

	for _, cb := range fileCBs {
		cb(event.Name, kind)
	}
	for _, cb := range dirCBs {
		cb(event.Name)
	}
}

func eventKind(event fsnotify.Event) EventKind {
	switch {
	case event.Op.Has(fsnotify.Create):
		return Created
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		return Deleted
	default:
		return Changed
	}
}

func isUnder(path, dir string) bool {
	return strings.HasPrefix(path, dir+string(filepath.Separator)) ||
		strings.HasPrefix(filepath.ToSlash(path), filepath.ToSlash(dir)+"/")
}

// Close implements FileWatcher.
func (s *fsSubscription) Close(reason CloseReason) {
	h := s.host
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.closed {
		logging.Error("watcher closed twice", "path", s.watchTarget(), "reason", reason.String())
		return
	}
	s.closed = true

	if s.fileCB != nil {
		h.files[s.dir] = removeSub(h.files[s.dir], s)
		if len(h.files[s.dir]) == 0 {
			delete(h.files, s.dir)
		}
	} else {
		h.dirs[s.dir] = removeSub(h.dirs[s.dir], s)
		if len(h.dirs[s.dir]) == 0 {
			delete(h.dirs, s.dir)
		}
	}
	if !h.closed {
		h.removeDirLocked(s.dir)
	}
	logging.Trace("closed watch", "path", s.watchTarget(), "reason", reason.String())
}

func (s *fsSubscription) watchTarget() string {
	if s.path != "" {
		return s.path
	}
	return s.dir
}

func removeSub(subs []*fsSubscription, target *fsSubscription) []*fsSubscription {
	for i, sub := range subs {
		if sub == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
