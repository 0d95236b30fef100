package builder

import (
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/graph"
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/scripts"
)

// Builder consumes successive program snapshots and answers two questions:
// which files are affected by a change to one file (compile-on-save), and
// whether a file's emit can be skipped because its content is unchanged
// since the last emit.
type Builder struct {
	program *compiler.Program
	imports *graph.ImportGraph

	// versions tracks each file's snapshot version; emitted tracks the
	// content hash at last emit so unchanged files skip rewriting.
	versions map[paths.Path]string
	emitted  map[paths.Path]xxh3.Uint128
}

// WriteFileFn receives emit output.
type WriteFileFn func(fileName, content string)

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		versions: make(map[paths.Path]string),
		emitted:  make(map[paths.Path]xxh3.Uint128),
	}
}

// OnProgramUpdate installs a new snapshot: the import graph is rebuilt and
// per-file versions are refreshed. Files with invalidated resolutions count
// as changed even when their text did not move.
func (b *Builder) OnProgramUpdate(program *compiler.Program, hasInvalidatedResolution func(paths.Path) bool) {
	imports := graph.NewImportGraph()
	versions := make(map[paths.Path]string, len(program.SourceFiles()))

	for _, file := range program.SourceFiles() {
		imports.AddFile(file.Path)
		versions[file.Path] = file.Version
		if hasInvalidatedResolution != nil && hasInvalidatedResolution(file.Path) {
			versions[file.Path] = file.Version + "!"
		}
		for _, resolved := range file.ResolvedModules {
			if resolved == nil {
				continue
			}
			target := program.FileByPath(pathOf(program, resolved.ResolvedFileName))
			if target != nil {
				imports.AddImport(file.Path, target.Path)
			}
		}
	}

	// Emit state for files that left the program is dropped.
	for p := range b.emitted {
		if !program.ContainsPath(p) {
			delete(b.emitted, p)
		}
	}

	b.program = program
	b.imports = imports
	b.versions = versions
	logging.Trace("builder updated", "files", imports.Size())
}

func pathOf(program *compiler.Program, fileName string) paths.Path {
	// Snapshot files carry canonical paths already; match by suffix-free
	// normalized name through the program's own table.
	for _, f := range program.SourceFiles() {
		if f.FileName == fileName {
			return f.Path
		}
	}
	return paths.Path(paths.NormalizePath(fileName))
}

// Clear drops all builder state but keeps the builder allocated so change
// events can still be answered (with empty results) while the language
// service is disabled.
func (b *Builder) Clear() {
	b.program = nil
	b.imports = nil
	b.versions = make(map[paths.Path]string)
	b.emitted = make(map[paths.Path]xxh3.Uint128)
}

// AffectedFiles returns the file names whose output may change when path
// changes: the file itself plus its transitive importers.
func (b *Builder) AffectedFiles(path paths.Path) []string {
	if b.program == nil || b.imports == nil {
		return nil
	}
	affected := b.imports.AffectedBy(path)
	out := make([]string, 0, len(affected))
	for _, p := range affected {
		if file := b.program.FileByPath(p); file != nil {
			out = append(out, file.FileName)
		}
	}
	return out
}

// EmitFile writes the output for one file through writeFn. Emit is skipped
// (returns false) for declaration files, when emit is disabled, when the
// file is not part of the program, or when the content is unchanged since
// the last emit.
func (b *Builder) EmitFile(info *scripts.Info, writeFn WriteFileFn) bool {
	if b.program == nil || info == nil || writeFn == nil {
		return false
	}
	options := b.program.Options()
	if options != nil && options.NoEmit {
		return false
	}
	if paths.IsDeclarationFileName(info.FileName()) {
		return false
	}
	file := b.program.FileByPath(info.Path())
	if file == nil {
		return false
	}

	content := info.Content()
	hash := xxh3.Hash128([]byte(content))
	if previous, ok := b.emitted[info.Path()]; ok && previous == hash {
		return false
	}

	writeFn(outputFileName(info.FileName(), options), content)
	b.emitted[info.Path()] = hash
	return true
}

func outputFileName(fileName string, options *compiler.Options) string {
	out := fileName
	for _, ext := range []string{".tsx", ".ts", ".jsx"} {
		if strings.HasSuffix(out, ext) {
			out = strings.TrimSuffix(out, ext) + ".js"
			break
		}
	}
	if options != nil && options.OutDir != "" {
		out = paths.Join(options.OutDir, paths.Base(out))
	}
	return out
}
