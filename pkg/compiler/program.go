package compiler

import "github.com/ritzau/projectd/pkg/paths"

// StructureReuse describes how much of the previous program a new snapshot
// inherits. Only ReuseCompletely signals that the file set is unchanged.
type StructureReuse int

const (
	ReuseNone StructureReuse = iota
	ReuseSafeModules
	ReuseCompletely
)

// ResolvedModule is the result of resolving one module specifier from one
// containing file. A nil entry in a resolution table means the specifier
// failed to resolve.
type ResolvedModule struct {
	ResolvedFileName        string
	IsExternalLibraryImport bool
}

// SourceFile is one file in a program snapshot with its per-file resolution
// table. Snapshots are immutable; edits produce a new program.
type SourceFile struct {
	FileName string
	Path     paths.Path
	Version  string

	// Imports lists the module specifiers in source order.
	Imports []string

	// ResolvedModules maps each specifier to its resolution, nil when the
	// specifier did not resolve.
	ResolvedModules map[string]*ResolvedModule
}

// Program is an immutable compilation snapshot.
type Program struct {
	files   []*SourceFile
	byPath  map[paths.Path]*SourceFile
	missing []paths.Path
	reuse   StructureReuse
	options *Options
}

// NewProgram assembles a snapshot. Used by the engine and by test mocks.
func NewProgram(files []*SourceFile, missing []paths.Path, reuse StructureReuse, options *Options) *Program {
	byPath := make(map[paths.Path]*SourceFile, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}
	return &Program{
		files:   files,
		byPath:  byPath,
		missing: missing,
		reuse:   reuse,
		options: options,
	}
}

// SourceFiles returns the files in program order.
func (p *Program) SourceFiles() []*SourceFile { return p.files }

// FileByPath returns the source file for a canonical path, or nil.
func (p *Program) FileByPath(path paths.Path) *SourceFile { return p.byPath[path] }

// ContainsPath reports whether path is part of the program.
func (p *Program) ContainsPath(path paths.Path) bool {
	_, ok := p.byPath[path]
	return ok
}

// MissingFilePaths lists referenced-but-absent files.
func (p *Program) MissingFilePaths() []paths.Path { return p.missing }

// StructureReuse returns the engine's reuse classification for this snapshot
// relative to its predecessor.
func (p *Program) StructureReuse() StructureReuse { return p.reuse }

// Options returns the options the snapshot was built with.
func (p *Program) Options() *Options { return p.options }

// FileNames returns the file names in program order.
func (p *Program) FileNames() []string {
	names := make([]string, 0, len(p.files))
	for _, f := range p.files {
		names = append(names, f.FileName)
	}
	return names
}

// LanguageService is the engine surface the project core drives. Plugins
// wrap this interface; the project's reference always points at the
// outermost wrapper.
type LanguageService interface {
	// Program returns the current snapshot, recomputing it if the host
	// reports a newer project version.
	Program() *Program

	// CleanSemanticCache drops type-checker state. Called when the language
	// service is disabled for a project.
	CleanSemanticCache()
}
