package resolution

import (
	"strings"

	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/watcher"
)

// Host is the file system surface resolution runs against.
type Host interface {
	FileExists(fileName string) bool
	ToPath(fileName string) paths.Path
}

// Cache memoizes module resolution per containing file and tracks which
// files' resolutions changed across a graph update. Failed lookup locations
// are watched so that installing a package invalidates exactly the files
// that tried to resolve into it.
type Cache struct {
	host    Host
	options func() *compiler.Options

	// watchFailed creates a failed-lookup watch; nil disables watching.
	watchFailed func(location string, cb watcher.FileCallback) watcher.FileWatcher
	// onInvalidated is called after watcher-driven invalidation so the
	// owner can schedule a graph refresh.
	onInvalidated func()

	perFile     map[paths.Path]map[string]*compiler.ResolvedModule
	failedByLoc map[string]*failedLocation
	invalidated map[paths.Path]bool

	recording bool
	changed   map[paths.Path]bool
	closed    bool
}

type failedLocation struct {
	watch      watcher.FileWatcher
	containing map[paths.Path]bool
}

// NewCache creates a resolution cache. options is read on every resolve so
// the cache always sees the project's current compiler options.
func NewCache(
	host Host,
	options func() *compiler.Options,
	watchFailed func(location string, cb watcher.FileCallback) watcher.FileWatcher,
	onInvalidated func(),
) *Cache {
	return &Cache{
		host:          host,
		options:       options,
		watchFailed:   watchFailed,
		onInvalidated: onInvalidated,
		perFile:       make(map[paths.Path]map[string]*compiler.ResolvedModule),
		failedByLoc:   make(map[string]*failedLocation),
		invalidated:   make(map[paths.Path]bool),
	}
}

// StartRecording begins tracking files whose resolutions change. Used for
// the duration of one graph update.
func (c *Cache) StartRecording() {
	c.recording = true
	c.changed = make(map[paths.Path]bool)
}

// FinishRecording stops tracking and returns the set of containing files
// whose resolutions changed since StartRecording. Invalidation marks are
// consumed: files re-resolved during the window start the next update clean.
func (c *Cache) FinishRecording() []paths.Path {
	c.recording = false
	changed := make([]paths.Path, 0, len(c.changed))
	for p := range c.changed {
		changed = append(changed, p)
	}
	c.changed = nil
	c.invalidated = make(map[paths.Path]bool)
	return changed
}

// HasInvalidatedResolution reports whether path's cached resolutions are
// suspect and must be recomputed.
func (c *Cache) HasInvalidatedResolution(path paths.Path) bool {
	return c.invalidated[path]
}

// Invalidate marks one containing file's resolutions stale.
func (c *Cache) Invalidate(path paths.Path) {
	c.invalidated[path] = true
}

// DropFile forgets everything about a containing file. Used when the file
// leaves the project.
func (c *Cache) DropFile(path paths.Path) {
	delete(c.perFile, path)
	delete(c.invalidated, path)
	for loc, fl := range c.failedByLoc {
		delete(fl.containing, path)
		if len(fl.containing) == 0 {
			if fl.watch != nil {
				fl.watch.Close(watcher.ReasonNotNeeded)
			}
			delete(c.failedByLoc, loc)
		}
	}
}

// Clear drops all cached resolutions and failed-lookup watches. Used when
// compiler options change in resolution-affecting ways.
func (c *Cache) Clear() {
	c.perFile = make(map[paths.Path]map[string]*compiler.ResolvedModule)
	c.invalidated = make(map[paths.Path]bool)
	c.closeFailedWatches(watcher.ReasonNotNeeded)
}

// Close releases all watcher state. The cache is unusable afterwards.
func (c *Cache) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.perFile = nil
	c.invalidated = nil
	c.closeFailedWatches(watcher.ReasonProjectClose)
}

func (c *Cache) closeFailedWatches(reason watcher.CloseReason) {
	for loc, fl := range c.failedByLoc {
		if fl.watch != nil {
			fl.watch.Close(reason)
		}
		delete(c.failedByLoc, loc)
	}
}

// Resolve resolves specifier from containingFile, consulting the memo first.
// Cache misses and invalidated files recompute; a result that differs from
// the previous one marks the containing file changed for the current
// recording window.
func (c *Cache) Resolve(specifier, containingFile string) *compiler.ResolvedModule {
	containingPath := c.host.ToPath(containingFile)

	table := c.perFile[containingPath]
	if table != nil && !c.invalidated[containingPath] {
		if resolved, ok := table[specifier]; ok {
			return resolved
		}
	}

	resolved, failed := c.compute(specifier, containingFile)

	if table == nil {
		table = make(map[string]*compiler.ResolvedModule)
		c.perFile[containingPath] = table
	}
	previous, had := table[specifier]
	table[specifier] = resolved

	if c.recording && had && !sameResolution(previous, resolved) {
		c.changed[containingPath] = true
	}

	if resolved == nil {
		for _, loc := range failed {
			c.watchFailedLocation(loc, containingPath)
		}
		logging.Trace("module resolution failed",
			"specifier", specifier,
			"from", containingFile,
			"candidates", len(failed),
		)
	}
	return resolved
}

func (c *Cache) watchFailedLocation(location string, containing paths.Path) {
	if c.watchFailed == nil {
		return
	}
	fl, ok := c.failedByLoc[location]
	if !ok {
		fl = &failedLocation{containing: make(map[paths.Path]bool)}
		fl.watch = c.watchFailed(location, func(fileName string, kind watcher.EventKind) {
			c.onFailedLookupEvent(location)
		})
		c.failedByLoc[location] = fl
	}
	fl.containing[containing] = true
}

func (c *Cache) onFailedLookupEvent(location string) {
	fl, ok := c.failedByLoc[location]
	if !ok {
		return
	}
	for containing := range fl.containing {
		c.invalidated[containing] = true
	}
	if c.onInvalidated != nil {
		c.onInvalidated()
	}
}

func sameResolution(a, b *compiler.ResolvedModule) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ResolvedFileName == b.ResolvedFileName &&
		a.IsExternalLibraryImport == b.IsExternalLibraryImport
}

// compute performs node-style resolution: relative specifiers resolve
// against the containing directory, path mappings apply against baseUrl, and
// bare specifiers walk node_modules upward from the containing directory.
// Every candidate that was probed and absent is returned as a failed lookup
// location.
func (c *Cache) compute(specifier, containingFile string) (*compiler.ResolvedModule, []string) {
	opts := c.options()
	extensions := []string{".ts", ".tsx", ".d.ts"}
	if opts != nil && (opts.AllowJs || opts.AllowNonTsExtensions) {
		extensions = append(extensions, ".js", ".jsx")
	}

	var failed []string
	tryFile := func(base string, external bool) *compiler.ResolvedModule {
		candidates := make([]string, 0, 2*len(extensions)+1)
		if hasKnownExtension(base, extensions) {
			candidates = append(candidates, base)
		}
		for _, ext := range extensions {
			candidates = append(candidates, base+ext)
		}
		for _, ext := range extensions {
			candidates = append(candidates, paths.Join(base, "index"+ext))
		}
		for _, candidate := range candidates {
			if c.host.FileExists(candidate) {
				return &compiler.ResolvedModule{
					ResolvedFileName:        candidate,
					IsExternalLibraryImport: external,
				}
			}
			failed = append(failed, candidate)
		}
		return nil
	}

	if paths.IsExternalModuleNameRelative(specifier) {
		base := paths.Join(paths.Dir(containingFile), specifier)
		return tryFile(base, false), failed
	}

	// Path mappings from compilerOptions.paths are tried in map iteration
	// order, which is not fixed; the first substitution that resolves wins.
	if opts != nil && opts.BaseURL != "" {
		for pattern, substitutions := range opts.Paths {
			prefix, wildcard := strings.CutSuffix(pattern, "*")
			if pattern != specifier && (!wildcard || !strings.HasPrefix(specifier, prefix)) {
				continue
			}
			rest := strings.TrimPrefix(specifier, prefix)
			for _, sub := range substitutions {
				target := sub
				if wildcard {
					target = strings.Replace(sub, "*", rest, 1)
				}
				if r := tryFile(paths.Join(opts.BaseURL, target), false); r != nil {
					return r, failed
				}
			}
		}
		if r := tryFile(paths.Join(opts.BaseURL, specifier), false); r != nil {
			return r, failed
		}
	}

	// node_modules walk, including @types fallbacks.
	dir := paths.Dir(containingFile)
	for dir != "" && dir != "/" && dir != "." {
		if r := tryFile(paths.Join(dir, "node_modules", specifier), true); r != nil {
			return r, failed
		}
		typesBase := paths.Join(dir, "node_modules/@types", TypesPackageName(specifier))
		if r := tryFile(typesBase, true); r != nil {
			return r, failed
		}
		parent := paths.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, failed
}

func hasKnownExtension(fileName string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(fileName, ext) {
			return true
		}
	}
	return false
}

// TypesPackageName maps a package name to its DefinitelyTyped package:
// "@scope/pkg" becomes "scope__pkg", plain names map to themselves.
func TypesPackageName(packageName string) string {
	if strings.HasPrefix(packageName, "@") {
		return strings.ReplaceAll(strings.TrimPrefix(packageName, "@"), "/", "__")
	}
	return packageName
}
