package project

import (
	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/watcher"
)

// configuredPayload carries configured-flavor state: the config file
// identity, the open-script refcount the service uses for retirement, the
// reload latch, and the three watcher collections this flavor owns.
type configuredPayload struct {
	configFileName          string
	canonicalConfigFilePath paths.Path

	openRefCount  int
	pendingReload bool

	hasExplicitFiles bool

	configFileWatcher watcher.FileWatcher
	wildcardWatchers  map[paths.Path]*wildcardWatch
	typeRootWatchers  map[paths.Path]watcher.FileWatcher
}

type wildcardWatch struct {
	watch     watcher.FileWatcher
	recursive bool
}

// NewConfiguredProject creates a project from a resolved config file. The
// service parses the config and supplies options, plugin imports and
// whether the config listed explicit files. ls may be nil to use the
// reference engine.
func NewConfiguredProject(configFileName string, svc ServiceHost, host SystemHost, options *compiler.Options, plugins []PluginImport, hasExplicitFiles bool, ls compiler.LanguageService) *Project {
	p := newProject(configFileName, KindConfigured, svc, host, ls)
	p.configured = &configuredPayload{
		configFileName:          configFileName,
		canonicalConfigFilePath: svc.ToPath(configFileName),
		hasExplicitFiles:        hasExplicitFiles,
		wildcardWatchers:        make(map[paths.Path]*wildcardWatch),
		typeRootWatchers:        make(map[paths.Path]watcher.FileWatcher),
	}
	if options == nil {
		options = &compiler.Options{}
	}
	options = options.Clone()
	options.ConfigFilePath = configFileName
	p.SetCompilerOptions(options)

	p.configured.configFileWatcher = svc.WatchFile(
		watcher.KindConfigFilePath, p.name, configFileName,
		func(fileName string, kind watcher.EventKind) {
			p.onConfigFileEvent(kind)
		},
	)

	p.loadPlugins(plugins)
	return p
}

func (p *Project) onConfigFileEvent(kind watcher.EventKind) {
	if p.closed {
		return
	}
	// Edits and deletion both route through the reload latch; the reload
	// path decides whether the project survives.
	p.SetPendingReload()
	p.svc.DelayUpdateProjectGraph(p)
}

// ConfigFileName returns the config file this project was created from.
func (p *Project) ConfigFileName() string {
	if p.configured == nil {
		return ""
	}
	return p.configured.configFileName
}

// CanonicalConfigFilePath returns the canonicalized config path.
func (p *Project) CanonicalConfigFilePath() paths.Path {
	if p.configured == nil {
		return ""
	}
	return p.configured.canonicalConfigFilePath
}

// SetPendingReload latches a config reload for the next graph update.
func (p *Project) SetPendingReload() {
	p.configured.pendingReload = true
	p.MarkAsDirty()
}

// PendingReload reports the latch state.
func (p *Project) PendingReload() bool {
	return p.configured != nil && p.configured.pendingReload
}

// AddOpenRef counts one more open script referencing this project.
func (p *Project) AddOpenRef() {
	p.configured.openRefCount++
}

// ReleaseOpenRef drops one reference; true when none remain and the service
// should delete the project.
func (p *Project) ReleaseOpenRef() bool {
	p.configured.openRefCount--
	return p.configured.openRefCount <= 0
}

// OpenRefCount returns the current reference count.
func (p *Project) OpenRefCount() int {
	return p.configured.openRefCount
}

// WatchWildcardDirectories reconciles the wildcard-directory watcher set
// against the globbed directories of the current config. A directory whose
// recursive flag flipped is closed with ReasonRecursiveChanged and
// recreated; gone directories close with ReasonNotNeeded.
func (p *Project) WatchWildcardDirectories(dirs map[string]bool) {
	p.assertOpen()
	next := make(map[paths.Path]struct {
		dir       string
		recursive bool
	}, len(dirs))
	for dir, recursive := range dirs {
		next[p.svc.ToPath(dir)] = struct {
			dir       string
			recursive bool
		}{dir, recursive}
	}

	for path, existing := range p.configured.wildcardWatchers {
		want, keep := next[path]
		if keep && want.recursive == existing.recursive {
			delete(next, path)
			continue
		}
		if keep {
			existing.watch.Close(watcher.ReasonRecursiveChanged)
		} else {
			existing.watch.Close(watcher.ReasonNotNeeded)
		}
		delete(p.configured.wildcardWatchers, path)
	}

	for path, want := range next {
		w := p.svc.WatchDirectory(
			watcher.KindWildcardDirectories, p.name, want.dir, want.recursive,
			func(fileName string) {
				p.onWildcardDirectoryEvent(fileName)
			},
		)
		p.configured.wildcardWatchers[path] = &wildcardWatch{watch: w, recursive: want.recursive}
	}
}

func (p *Project) onWildcardDirectoryEvent(fileName string) {
	if p.closed {
		return
	}
	logging.Trace("wildcard directory change", "project", p.name, "file", fileName)
	p.MarkAsDirty()
	p.svc.DelayUpdateProjectGraph(p)
}

// WatchTypeRoots reconciles type-root watchers against the options'
// effective type roots.
func (p *Project) WatchTypeRoots(currentDirectory string) {
	p.assertOpen()
	roots := p.compilerOptions.EffectiveTypeRoots(currentDirectory)
	next := make(map[paths.Path]string, len(roots))
	for _, root := range roots {
		next[p.svc.ToPath(root)] = root
	}

	for path, w := range p.configured.typeRootWatchers {
		if _, keep := next[path]; keep {
			delete(next, path)
			continue
		}
		w.Close(watcher.ReasonNotNeeded)
		delete(p.configured.typeRootWatchers, path)
	}

	for path, root := range next {
		w := p.svc.WatchDirectory(
			watcher.KindTypeRoot, p.name, root, true,
			func(fileName string) {
				p.onTypeRootEvent(fileName)
			},
		)
		p.configured.typeRootWatchers[path] = w
	}
}

func (p *Project) onTypeRootEvent(fileName string) {
	if p.closed {
		return
	}
	logging.Trace("type root change", "project", p.name, "file", fileName)
	p.MarkAsDirty()
	p.svc.DelayUpdateProjectGraph(p)
}

// closeWatchers drains the configured flavor's watcher collections:
// type-root, wildcard-directory, then the config-file watcher.
func (c *configuredPayload) closeWatchers(reason watcher.CloseReason) {
	for path, w := range c.typeRootWatchers {
		w.Close(reason)
		delete(c.typeRootWatchers, path)
	}
	for path, ww := range c.wildcardWatchers {
		ww.watch.Close(reason)
		delete(c.wildcardWatchers, path)
	}
	if c.configFileWatcher != nil {
		c.configFileWatcher.Close(reason)
		c.configFileWatcher = nil
	}
}

// UpdateErrorOnNoInputFiles reconciles the no-input-files diagnostic:
// removed once the project has files, recorded when it has none and the
// config did not pin an explicit files list.
func (p *Project) UpdateErrorOnNoInputFiles(hasFileNames bool) {
	filtered := p.projectErrors[:0]
	for _, d := range p.projectErrors {
		if d.Code != compiler.CodeNoInputFiles {
			filtered = append(filtered, d)
		}
	}
	p.projectErrors = filtered

	if !hasFileNames && !p.configured.hasExplicitFiles {
		p.projectErrors = append(p.projectErrors, compiler.Diagnostic{
			Code:     compiler.CodeNoInputFiles,
			Category: compiler.CategoryError,
			Message:  "No inputs were found in config file " + p.configured.configFileName,
		})
	}
}
