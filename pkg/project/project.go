package project

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ritzau/projectd/pkg/builder"
	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/resolution"
	"github.com/ritzau/projectd/pkg/scripts"
	"github.com/ritzau/projectd/pkg/watcher"
)

// Kind discriminates the three project flavors. The flavors share the
// lifecycle and graph machinery; flavor-specific policy dispatches on this
// tag with per-kind payloads instead of a type hierarchy.
type Kind int

const (
	KindInferred Kind = iota
	KindConfigured
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindInferred:
		return "Inferred"
	case KindConfigured:
		return "Configured"
	case KindExternal:
		return "External"
	default:
		return "Unknown"
	}
}

// rootEntry is one root table slot: a script info, or a normalized file name
// placeholder when a configured project lists a file that does not exist.
type rootEntry struct {
	info     *scripts.Info
	fileName string
}

// Project tracks one compilation's file set, versions, caches and watchers.
// A Project is confined to its owning service's task: the service serializes
// every entry point, watcher callback and deferred refresh before any method
// here runs, so the struct itself carries no locking. Touching a Project
// from outside that task is a data race.
type Project struct {
	name string
	kind Kind

	svc  ServiceHost
	host SystemHost

	ls       compiler.LanguageService
	resolver *resolution.Cache
	build    *builder.Builder

	compilerOptions        *compiler.Options
	typeAcquisition        *TypeAcquisition
	languageServiceEnabled bool
	compileOnSaveEnabled   bool

	rootFiles    []*scripts.Info
	rootFilesMap map[paths.Path]*rootEntry

	program *compiler.Program

	// stateVersion moves on every mutation that could invalidate the
	// graph; structureVersion moves only when a graph update observes a
	// structurally different program.
	stateVersion     int
	structureVersion int
	dirty            bool
	closed           bool

	unresolvedIndex   map[paths.Path][]string
	unresolvedVersion int
	lastUnresolved    []string

	missingFiles map[paths.Path]watcher.FileWatcher

	externalFiles []string
	typingFiles   []string

	lastReportedFileNames map[string]bool
	lastReportedVersion   int
	hasReported           bool
	updatedFileNames      map[string]bool

	projectErrors []compiler.Diagnostic

	// onGraphUpdated, when set, runs after every structure bump. The
	// service uses it to publish change deltas.
	onGraphUpdated func(p *Project)

	plugins []PluginModule

	inferred   *inferredPayload
	configured *configuredPayload
	external   *externalPayload
}

// newProject wires the flavor-independent parts. ls may be nil, in which
// case the reference engine is attached. Flavor constructors install their
// payload and then apply compiler options so per-kind overrides see it.
func newProject(name string, kind Kind, svc ServiceHost, host SystemHost, ls compiler.LanguageService) *Project {
	p := &Project{
		name:                   name,
		kind:                   kind,
		svc:                    svc,
		host:                   host,
		languageServiceEnabled: true,
		rootFilesMap:           make(map[paths.Path]*rootEntry),
		unresolvedIndex:        make(map[paths.Path][]string),
		missingFiles:           make(map[paths.Path]watcher.FileWatcher),
		updatedFileNames:       make(map[string]bool),
		build:                  builder.NewBuilder(),
	}
	p.resolver = resolution.NewCache(
		resolutionHost{p},
		func() *compiler.Options { return p.compilerOptions },
		func(location string, cb watcher.FileCallback) watcher.FileWatcher {
			return svc.WatchFile(watcher.KindFailedLookupLocation, name, location, cb)
		},
		func() {
			p.MarkAsDirty()
			p.svc.DelayUpdateProjectGraph(p)
		},
	)
	if ls == nil {
		ls = compiler.NewEngine(engineHost{p})
	}
	p.ls = ls
	return p
}

// Name returns the project name.
func (p *Project) Name() string { return p.name }

// ProjectName implements scripts.Client.
func (p *Project) ProjectName() string { return p.name }

// Kind returns the flavor tag.
func (p *Project) Kind() Kind { return p.kind }

// IsClosed reports whether Close ran.
func (p *Project) IsClosed() bool { return p.closed }

// IsDirty reports whether a graph refresh is pending.
func (p *Project) IsDirty() bool { return p.dirty }

// CompilerOptions returns the current options.
func (p *Project) CompilerOptions() *compiler.Options { return p.compilerOptions }

// LanguageServiceEnabled reports whether the language service is active.
func (p *Project) LanguageServiceEnabled() bool { return p.languageServiceEnabled }

// CompileOnSaveEnabled reports whether compile-on-save is active.
func (p *Project) CompileOnSaveEnabled() bool { return p.compileOnSaveEnabled }

// SetCompileOnSave toggles compile-on-save.
func (p *Project) SetCompileOnSave(enabled bool) { p.compileOnSaveEnabled = enabled }

// ProjectVersion is the state-version string handed to the engine.
func (p *Project) ProjectVersion() string { return fmt.Sprintf("%d", p.stateVersion) }

// StructureVersion returns the structure counter.
func (p *Project) StructureVersion() int { return p.structureVersion }

// StateVersion returns the state counter.
func (p *Project) StateVersion() int { return p.stateVersion }

// GetLanguageService returns the (possibly plugin-wrapped) language
// service, refreshing the graph first unless ensureSynchronized is false.
func (p *Project) GetLanguageService(ensureSynchronized bool) compiler.LanguageService {
	if ensureSynchronized && p.dirty {
		p.UpdateGraph()
	}
	return p.ls
}

// CurrentProgram returns the last graph update's snapshot, or nil.
func (p *Project) CurrentProgram() *compiler.Program { return p.program }

// MarkAsDirty bumps the state version and flags the project for refresh.
func (p *Project) MarkAsDirty() {
	p.stateVersion++
	p.dirty = true
}

// RegisterFileUpdate implements scripts.Client: the script store reports
// edits here, accumulating the updated list between delta reports.
func (p *Project) RegisterFileUpdate(fileName string) {
	p.updatedFileNames[fileName] = true
}

// AddRoot appends a root file. The file must not already be a root.
func (p *Project) AddRoot(info *scripts.Info) {
	p.assertOpen()
	assertf(!p.IsRoot(info), "file %q is already a root of project %q", info.FileName(), p.name)

	p.rootFiles = append(p.rootFiles, info)
	p.rootFilesMap[info.Path()] = &rootEntry{info: info, fileName: info.FileName()}
	info.Attach(p)

	if p.kind == KindInferred {
		p.inferredOnRootAdded(info)
		p.svc.StartWatchingConfigFiles(p, info)
	}
	p.MarkAsDirty()
}

// AddMissingFileRoot records a root listed by configuration that does not
// exist on disk yet. It occupies a root table slot as a placeholder.
func (p *Project) AddMissingFileRoot(fileName string) {
	p.assertOpen()
	path := p.svc.ToPath(fileName)
	p.rootFilesMap[path] = &rootEntry{fileName: fileName}
	p.MarkAsDirty()
}

// IsRoot reports whether info occupies a root slot.
func (p *Project) IsRoot(info *scripts.Info) bool {
	entry, ok := p.rootFilesMap[info.Path()]
	return ok && entry.info == info
}

// RootFiles returns the root infos in add order.
func (p *Project) RootFiles() []*scripts.Info {
	return append([]*scripts.Info(nil), p.rootFiles...)
}

// RemoveFile removes a file from the project: root slot, resolver state and
// unresolved-import cache are dropped; detach controls whether the script
// info forgets this project.
func (p *Project) RemoveFile(info *scripts.Info, detach bool) {
	p.assertOpen()
	if p.IsRoot(info) {
		p.removeRoot(info)
	}
	p.resolver.DropFile(info.Path())
	delete(p.unresolvedIndex, info.Path())
	if detach {
		info.Detach(p)
	}
	p.MarkAsDirty()
}

func (p *Project) removeRoot(info *scripts.Info) {
	for i, root := range p.rootFiles {
		if root == info {
			p.rootFiles = append(p.rootFiles[:i], p.rootFiles[i+1:]...)
			break
		}
	}
	delete(p.rootFilesMap, info.Path())

	if p.kind == KindInferred {
		p.inferredOnRootRemoved()
		p.svc.StopWatchingConfigFiles(p, info)
	}
}

// SetCompilerOptions installs new options. Changes that affect module
// resolution drop the unresolved-import index and the resolution cache.
func (p *Project) SetCompilerOptions(options *compiler.Options) {
	if options == nil {
		options = &compiler.Options{}
	}
	options = p.applyOptionOverrides(options)

	if p.compilerOptions != nil && p.compilerOptions.AffectsModuleResolution(options) {
		p.unresolvedIndex = make(map[paths.Path][]string)
		p.unresolvedVersion++
		p.resolver.Clear()
	}

	options.AllowNonTsExtensions = true
	if p.kind == KindInferred || p.kind == KindExternal {
		// Emit output paths are not validated against input files for
		// synthesized projects; the session owns no on-disk layout here.
		options.SuppressOutputPathCheck = true
	}

	p.compilerOptions = options
	p.MarkAsDirty()
}

// applyOptionOverrides gives the flavor a chance to post-process incoming
// options. The inferred flavor clones and adjusts for its JS flag.
func (p *Project) applyOptionOverrides(options *compiler.Options) *compiler.Options {
	if p.kind == KindInferred {
		return p.inferredOptionOverrides(options)
	}
	return options.Clone()
}

// EnableLanguageService re-enables the language service. Idempotent; the
// graph is not rebuilt until the next UpdateGraph.
func (p *Project) EnableLanguageService() {
	p.assertOpen()
	if p.languageServiceEnabled {
		return
	}
	p.languageServiceEnabled = true
	p.MarkAsDirty()
}

// DisableLanguageService drops builder state and the engine's semantic
// caches. Idempotent.
func (p *Project) DisableLanguageService() {
	p.assertOpen()
	if !p.languageServiceEnabled {
		return
	}
	p.languageServiceEnabled = false
	p.ls.CleanSemanticCache()
	p.build.Clear()
	p.MarkAsDirty()
}

// GetCompileOnSaveAffectedFileList returns the files to recompile when info
// is saved. Empty when the language service is disabled.
func (p *Project) GetCompileOnSaveAffectedFileList(info *scripts.Info) []string {
	p.assertOpen()
	if !p.languageServiceEnabled {
		return nil
	}
	if p.dirty {
		p.UpdateGraph()
	}
	return p.build.AffectedFiles(info.Path())
}

// EmitFile delegates emit to the builder; false means emit was skipped.
func (p *Project) EmitFile(info *scripts.Info, writeFn builder.WriteFileFn) bool {
	p.assertOpen()
	if !p.languageServiceEnabled {
		return false
	}
	return p.build.EmitFile(info, writeFn)
}

// GetScriptInfoForNormalizedPath returns the script info for a file that
// must belong to this project.
func (p *Project) GetScriptInfoForNormalizedPath(fileName string) (*scripts.Info, error) {
	info := p.svc.GetScriptInfo(fileName)
	if info != nil && !info.IsAttachedTo(p) {
		return nil, newDocumentError(fileName, p.name)
	}
	return info, nil
}

// FileNames returns the current program's files plus, for configured
// projects, the config file. excludeExternalLibraries drops files resolved
// out of package stores.
func (p *Project) FileNames(excludeExternalLibraries, excludeConfigFiles bool) []string {
	var names []string
	if p.program != nil {
		for _, file := range p.program.SourceFiles() {
			if excludeExternalLibraries && p.isExternalLibraryFile(file) {
				continue
			}
			names = append(names, file.FileName)
		}
	}
	if !excludeConfigFiles && p.kind == KindConfigured {
		names = append(names, p.configured.configFileName)
	}
	return names
}

func (p *Project) isExternalLibraryFile(file *compiler.SourceFile) bool {
	for _, f := range p.typingFiles {
		if f == file.FileName {
			return true
		}
	}
	return isInNodeModules(file.FileName)
}

// Type predicates over roots and the full program.

// AllRootFilesAreJsOrDts reports whether every root is a dynamically typed
// source or a declaration file.
func (p *Project) AllRootFilesAreJsOrDts() bool {
	for _, root := range p.rootFiles {
		if !paths.IsJsOrDts(root.FileName()) {
			return false
		}
	}
	return true
}

// AllFilesAreJsOrDts is the same predicate over the whole program.
func (p *Project) AllFilesAreJsOrDts() bool {
	if p.program == nil {
		return true
	}
	for _, file := range p.program.SourceFiles() {
		if !paths.IsJsOrDts(file.FileName) {
			return false
		}
	}
	return true
}

// HasOneOrMoreJsAndNoTsFiles reports whether the program holds JS sources
// and no non-declaration TS sources.
func (p *Project) HasOneOrMoreJsAndNoTsFiles() bool {
	if p.program == nil {
		return false
	}
	js := 0
	for _, file := range p.program.SourceFiles() {
		if paths.HasJsExtension(file.FileName) {
			js++
		} else if paths.HasTsExtension(file.FileName) && !paths.IsDeclarationFileName(file.FileName) {
			return false
		}
	}
	return js > 0
}

// IsNonTsProject reports whether a non-empty program is entirely JS and
// declaration files.
func (p *Project) IsNonTsProject() bool {
	return p.program != nil && len(p.program.SourceFiles()) > 0 && p.AllFilesAreJsOrDts()
}

// IsJsOnlyProject reports whether a non-empty program has JS sources and no
// TS sources.
func (p *Project) IsJsOnlyProject() bool {
	return p.HasOneOrMoreJsAndNoTsFiles()
}

// GetTypeAcquisition returns the effective type-acquisition settings for
// this flavor.
func (p *Project) GetTypeAcquisition() *TypeAcquisition {
	switch p.kind {
	case KindInferred:
		enable := p.AllRootFilesAreJsOrDts()
		return &TypeAcquisition{Enable: &enable, Include: []string{}, Exclude: []string{}}
	case KindExternal:
		if p.external.typeAcquisition != nil {
			return p.external.typeAcquisition
		}
		enable := p.AllRootFilesAreJsOrDts()
		return &TypeAcquisition{Enable: &enable, Include: []string{}, Exclude: []string{}}
	default:
		if p.typeAcquisition != nil {
			return p.typeAcquisition
		}
		enable := false
		return &TypeAcquisition{Enable: &enable, Include: []string{}, Exclude: []string{}}
	}
}

// SetOnGraphUpdated installs the structure-bump hook.
func (p *Project) SetOnGraphUpdated(fn func(p *Project)) {
	p.onGraphUpdated = fn
}

// TypingFiles returns the current typing file list.
func (p *Project) TypingFiles() []string {
	return append([]string(nil), p.typingFiles...)
}

// ProjectErrors returns all recorded project diagnostics.
func (p *Project) ProjectErrors() []compiler.Diagnostic {
	return append([]compiler.Diagnostic(nil), p.projectErrors...)
}

// GetGlobalProjectErrors returns diagnostics with no file attribution.
// Diagnostics carrying a file reference, synthetic or not, are excluded.
func (p *Project) GetGlobalProjectErrors() []compiler.Diagnostic {
	var out []compiler.Diagnostic
	for _, d := range p.projectErrors {
		if d.File == "" {
			out = append(out, d)
		}
	}
	return out
}

// Close releases every resource. Safe to call once; all other operations
// are disallowed afterwards. Watchers drain in a fixed order: missing-file,
// failed-lookup, type-root, wildcard-directory, config-file.
func (p *Project) Close() {
	if p.closed {
		return
	}

	for path, w := range p.missingFiles {
		w.Close(watcher.ReasonProjectClose)
		delete(p.missingFiles, path)
	}
	p.resolver.Close()
	if p.configured != nil {
		p.configured.closeWatchers(watcher.ReasonProjectClose)
	}

	if p.program != nil {
		for _, file := range p.program.SourceFiles() {
			if info := p.svc.GetScriptInfoForPath(file.Path); info != nil {
				info.Detach(p)
			}
		}
	}
	for _, root := range p.rootFiles {
		if p.kind == KindInferred {
			p.svc.StopWatchingConfigFiles(p, root)
		}
		root.Detach(p)
	}
	for _, name := range p.externalFiles {
		if info := p.svc.GetScriptInfo(name); info != nil {
			info.Detach(p)
		}
	}

	p.rootFiles = nil
	p.rootFilesMap = make(map[paths.Path]*rootEntry)
	p.program = nil
	p.externalFiles = nil
	p.typingFiles = nil
	p.unresolvedIndex = nil
	p.build.Clear()
	p.plugins = nil
	p.closed = true
	logging.Debug("project closed", "project", p.name)
}

func (p *Project) assertOpen() {
	assertf(!p.closed, "operation on closed project %q", p.name)
}

func isInNodeModules(fileName string) bool {
	return containsSegment(fileName, "node_modules")
}

func containsSegment(fileName, segment string) bool {
	name := paths.NormalizeSlashes(fileName)
	for {
		idx := strings.Index(name, segment)
		if idx < 0 {
			return false
		}
		beforeOK := idx == 0 || name[idx-1] == '/'
		after := idx + len(segment)
		afterOK := after == len(name) || name[after] == '/'
		if beforeOK && afterOK {
			return true
		}
		name = name[idx+len(segment):]
	}
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	sort.Strings(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func stringSlicesEqual(a, b []string) bool {
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
