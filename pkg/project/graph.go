package project

import (
	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/watcher"
)

// UpdateGraph runs the central protocol: record resolution changes, obtain
// a fresh program, reconcile attachments and watchers, refresh unresolved
// imports and typings (with at most one re-entry), feed the builder, and
// bump the structure version when the file set moved.
//
// Returns true iff the file set is unchanged.
func (p *Project) UpdateGraph() bool {
	p.assertOpen()

	// A configured project whose config file changed defers to the reload
	// path; the file set is unchanged from the caller's perspective.
	if p.kind == KindConfigured && p.configured.pendingReload {
		p.configured.pendingReload = false
		if err := p.svc.ReloadConfiguredProject(p); err != nil {
			logging.Error("config reload failed", "project", p.name, "error", err)
		}
		return true
	}

	p.resolver.StartRecording()
	hasChanges := p.updateGraphWorker()
	changedResolutions := p.resolver.FinishRecording()

	for _, path := range changedResolutions {
		delete(p.unresolvedIndex, path)
	}

	if hasChanges || len(changedResolutions) > 0 {
		p.lastUnresolved = p.extractUnresolvedImports()
	}

	typings := p.svc.TypingsForProject(p, p.lastUnresolved, hasChanges)
	if !stringSlicesEqual(typings, p.typingFiles) {
		p.typingFiles = append([]string(nil), typings...)
		p.MarkAsDirty()
		// Single re-entry: the typing list only grows the input set, so
		// one more pass converges. The bound is load-bearing; a
		// non-monotonic typings helper must not loop the update.
		if p.updateGraphWorker() {
			hasChanges = true
		}
	}

	if p.languageServiceEnabled {
		p.build.OnProgramUpdate(p.program, p.resolver.HasInvalidatedResolution)
	} else {
		p.build.Clear()
	}

	p.dirty = false
	if hasChanges {
		p.structureVersion++
		logging.Debug("project graph updated",
			"project", p.name,
			"structureVersion", p.structureVersion,
			"files", len(p.FileNames(false, true)),
		)
		if p.onGraphUpdated != nil {
			p.onGraphUpdated(p)
		}
	}
	return !hasChanges
}

// updateGraphWorker is pass A of the protocol: pull a snapshot, detach
// departed files, attach current ones, reconcile missing-file watchers and
// the external file set.
func (p *Project) updateGraphWorker() bool {
	oldProgram := p.program

	var program *compiler.Program
	if p.languageServiceEnabled {
		program = p.ls.Program()
	}

	var hasChanges bool
	switch {
	case oldProgram == nil && program == nil:
		hasChanges = false
	case oldProgram == nil || program == nil:
		hasChanges = true
	default:
		hasChanges = program != oldProgram && program.StructureReuse() != compiler.ReuseCompletely
	}

	// Detach before attach: a file that leaves the program and re-enters
	// through external or typing files must see the detach first.
	if hasChanges && oldProgram != nil {
		for _, file := range oldProgram.SourceFiles() {
			if program != nil && program.ContainsPath(file.Path) {
				continue
			}
			if info := p.svc.GetScriptInfoForPath(file.Path); info != nil {
				info.Detach(p)
			}
		}
	}

	if program != nil {
		for _, file := range program.SourceFiles() {
			info := p.svc.GetOrCreateScriptInfo(file.FileName, false)
			info.Attach(p)
		}
	}

	p.program = program
	p.reconcileMissingFileWatches()
	p.refreshExternalFiles()
	return hasChanges
}

// reconcileMissingFileWatches makes the missing-files map domain equal the
// current program's missing paths: new entries get a watcher, entries no
// longer missing close theirs.
func (p *Project) reconcileMissingFileWatches() {
	current := make(map[paths.Path]bool)
	if p.program != nil {
		for _, path := range p.program.MissingFilePaths() {
			current[path] = true
		}
	}

	for path, w := range p.missingFiles {
		if !current[path] {
			w.Close(watcher.ReasonNotNeeded)
			delete(p.missingFiles, path)
		}
	}

	for path := range current {
		if _, watched := p.missingFiles[path]; watched {
			continue
		}
		watchedPath := path
		p.missingFiles[path] = p.svc.WatchFile(
			watcher.KindMissingFilePath, p.name, string(path),
			func(fileName string, kind watcher.EventKind) {
				p.onMissingFileEvent(watchedPath, kind)
			},
		)
	}
}

func (p *Project) onMissingFileEvent(path paths.Path, kind watcher.EventKind) {
	if kind != watcher.Created || p.closed {
		return
	}
	if w, ok := p.missingFiles[path]; ok {
		w.Close(watcher.ReasonFileCreated)
		delete(p.missingFiles, path)
	}
	p.MarkAsDirty()
	p.svc.DelayUpdateProjectGraph(p)
}

// MissingFilePaths returns the watched missing files, for tests and the
// inspection surface.
func (p *Project) MissingFilePaths() []paths.Path {
	out := make([]paths.Path, 0, len(p.missingFiles))
	for path := range p.missingFiles {
		out = append(out, path)
	}
	return out
}

// refreshExternalFiles recomputes the plugin-contributed file set and
// applies a merge-diff against the previous one: removals detach first,
// then insertions attach.
func (p *Project) refreshExternalFiles() {
	next := p.computeExternalFiles()
	previous := p.externalFiles

	var removed, inserted []string
	i, j := 0, 0
	for i < len(previous) || j < len(next) {
		switch {
		case j == len(next) || (i < len(previous) && previous[i] < next[j]):
			removed = append(removed, previous[i])
			i++
		case i == len(previous) || next[j] < previous[i]:
			inserted = append(inserted, next[j])
			j++
		default:
			i++
			j++
		}
	}

	for _, name := range removed {
		if info := p.svc.GetScriptInfo(name); info != nil {
			info.Detach(p)
		}
	}
	for _, name := range inserted {
		info := p.svc.GetOrCreateScriptInfo(name, false)
		info.Attach(p)
	}

	p.externalFiles = next
}

// computeExternalFiles unions plugin contributions, sorted and unique.
// Plugins without the capability are skipped; a panicking plugin loses its
// contribution but cannot break the update.
func (p *Project) computeExternalFiles() []string {
	var all []string
	for _, plugin := range p.plugins {
		provider, ok := plugin.(ExternalFilesProvider)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Warn("plugin getExternalFiles failed", "project", p.name, "error", r)
				}
			}()
			all = append(all, provider.GetExternalFiles(p)...)
		}()
	}
	return sortedUnique(all)
}

// ExternalFiles returns the current plugin-contributed file list.
func (p *Project) ExternalFiles() []string {
	return append([]string(nil), p.externalFiles...)
}

// engineHost adapts the project to the compilation engine's host surface.
type engineHost struct{ p *Project }

func (h engineHost) ProjectVersion() string { return h.p.ProjectVersion() }

func (h engineHost) RootFileNames() []string {
	names := make([]string, 0, len(h.p.rootFiles)+len(h.p.typingFiles))
	for _, root := range h.p.rootFiles {
		names = append(names, root.FileName())
	}
	for _, entry := range h.p.rootFilesMap {
		if entry.info == nil {
			names = append(names, entry.fileName)
		}
	}
	names = append(names, h.p.typingFiles...)
	return names
}

func (h engineHost) CompilerOptions() *compiler.Options { return h.p.compilerOptions }

func (h engineHost) ToPath(fileName string) paths.Path { return h.p.svc.ToPath(fileName) }

func (h engineHost) ReadFile(fileName string) (string, string, bool) {
	if info := h.p.svc.GetScriptInfo(fileName); info != nil {
		if info.IsOpenedByClient() || info.Content() != "" || info.Version() != "0" {
			return info.Content(), info.Version(), true
		}
	}
	if content, ok := h.p.host.ReadFile(fileName); ok {
		return content, h.p.host.CreateHash([]byte(content)), true
	}
	return "", "", false
}

func (h engineHost) FileExists(fileName string) bool {
	if info := h.p.svc.GetScriptInfo(fileName); info != nil && info.IsOpenedByClient() {
		return true
	}
	return h.p.host.FileExists(fileName)
}

func (h engineHost) ResolveModule(specifier, containingFile string) *compiler.ResolvedModule {
	return h.p.resolver.Resolve(specifier, containingFile)
}

func (h engineHost) HasInvalidatedResolution(path paths.Path) bool {
	return h.p.resolver.HasInvalidatedResolution(path)
}

// resolutionHost adapts the project to the resolution cache's file system
// surface.
type resolutionHost struct{ p *Project }

func (h resolutionHost) FileExists(fileName string) bool {
	return engineHost(h).FileExists(fileName)
}

func (h resolutionHost) ToPath(fileName string) paths.Path {
	return h.p.svc.ToPath(fileName)
}
