package compiler

import (
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
)

// EngineHost is the surface the engine reads its world through. The project
// core implements it: roots, options, file content, and module resolution
// (backed by the resolution cache, so failed lookups are recorded there).
type EngineHost interface {
	ProjectVersion() string
	RootFileNames() []string
	CompilerOptions() *Options
	ToPath(fileName string) paths.Path

	// ReadFile returns the content and version of a tracked or on-disk
	// file; ok is false when the file does not exist.
	ReadFile(fileName string) (content string, version string, ok bool)
	FileExists(fileName string) bool

	// ResolveModule resolves a specifier from a containing file, returning
	// nil on failure.
	ResolveModule(specifier, containingFile string) *ResolvedModule

	// HasInvalidatedResolution reports whether the file's cached
	// resolutions were invalidated since the last snapshot; the engine
	// re-resolves such files even when their content is unchanged.
	HasInvalidatedResolution(path paths.Path) bool
}

// Engine is the reference compilation engine: it walks the module graph from
// the root set, scanning import specifiers and resolving them through the
// host. Snapshots are cached per project version so a quiescent project
// never pays for recomputation.
type Engine struct {
	host EngineHost

	current        *Program
	currentVersion string
}

// NewEngine creates an engine bound to one project host.
func NewEngine(host EngineHost) *Engine {
	return &Engine{host: host}
}

// Program returns the snapshot for the host's current project version,
// rebuilding only when the version moved.
func (e *Engine) Program() *Program {
	version := e.host.ProjectVersion()
	if e.current != nil && version == e.currentVersion {
		return e.current
	}

	next := e.build()
	e.current = next
	e.currentVersion = version
	return next
}

// CleanSemanticCache drops engine state beyond the structural snapshot.
// The reference engine keeps no checker state, so the call is a no-op and
// the cached snapshot stays valid.
func (e *Engine) CleanSemanticCache() {}

func (e *Engine) build() *Program {
	options := e.host.CompilerOptions()

	var files []*SourceFile
	var missing []paths.Path
	byPath := make(map[paths.Path]*SourceFile)
	missingSeen := make(map[paths.Path]bool)

	type workItem struct {
		fileName string
		isRoot   bool
	}
	queue := make([]workItem, 0, len(e.host.RootFileNames()))
	for _, root := range e.host.RootFileNames() {
		queue = append(queue, workItem{fileName: root, isRoot: true})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		path := e.host.ToPath(item.fileName)
		if _, done := byPath[path]; done {
			continue
		}

		content, version, ok := e.host.ReadFile(item.fileName)
		if !ok {
			if !missingSeen[path] {
				missingSeen[path] = true
				missing = append(missing, path)
			}
			continue
		}

		file := &SourceFile{
			FileName:        item.fileName,
			Path:            path,
			Version:         version,
			Imports:         ScanImports(content),
			ResolvedModules: make(map[string]*ResolvedModule, 8),
		}
		byPath[path] = file
		files = append(files, file)

		for _, specifier := range file.Imports {
			resolved := e.host.ResolveModule(specifier, item.fileName)
			file.ResolvedModules[specifier] = resolved
			if resolved == nil {
				continue
			}
			if !options.AllowJs && paths.HasJsExtension(resolved.ResolvedFileName) && !resolved.IsExternalLibraryImport {
				continue
			}
			if e.host.FileExists(resolved.ResolvedFileName) {
				queue = append(queue, workItem{fileName: resolved.ResolvedFileName})
			} else {
				p := e.host.ToPath(resolved.ResolvedFileName)
				if !missingSeen[p] {
					missingSeen[p] = true
					missing = append(missing, p)
				}
			}
		}
	}

	reuse := e.classifyReuse(files, options)
	logging.Trace("program built",
		"files", len(files),
		"missing", len(missing),
		"reuse", int(reuse),
	)
	return NewProgram(files, missing, reuse, options)
}

// classifyReuse compares the new file list against the previous snapshot.
// The same path set with identical per-file import structure reuses
// completely: the file set is unchanged even when file content moved. The
// same path set with different imports or invalidated resolutions reuses
// module-safe state only. A different path set or an options change starts
// over.
func (e *Engine) classifyReuse(files []*SourceFile, options *Options) StructureReuse {
	if e.current == nil || e.current.Options() != options {
		return ReuseNone
	}
	old := e.current.SourceFiles()
	if len(old) != len(files) {
		return ReuseNone
	}
	oldByPath := make(map[paths.Path]*SourceFile, len(old))
	for _, f := range old {
		oldByPath[f.Path] = f
	}
	sameStructure := true
	for _, f := range files {
		prev, ok := oldByPath[f.Path]
		if !ok {
			return ReuseNone
		}
		if !sameImports(prev.Imports, f.Imports) || e.host.HasInvalidatedResolution(f.Path) {
			sameStructure = false
		}
	}
	if sameStructure {
		return ReuseCompletely
	}
	return ReuseSafeModules
}

func sameImports(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
