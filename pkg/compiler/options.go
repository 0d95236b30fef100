package compiler

import "github.com/ritzau/projectd/pkg/paths"

// ModuleResolutionKind selects the module resolution strategy.
type ModuleResolutionKind int

const (
	ResolutionNode ModuleResolutionKind = iota
	ResolutionClassic
)

// Options are the compiler options the project core cares about. The full
// option surface belongs to the compilation engine; this struct carries the
// subset that affects project membership, module resolution and emit.
type Options struct {
	AllowJs              bool
	AllowNonTsExtensions bool
	CheckJs              bool
	NoEmit               bool
	OutDir               string

	// SuppressOutputPathCheck is set internally for inferred and external
	// projects, which have no on-disk layout to validate emit paths against.
	SuppressOutputPathCheck bool

	Module           string
	ModuleResolution ModuleResolutionKind
	BaseURL          string
	Paths            map[string][]string
	RootDirs         []string
	TypeRoots        []string
	Types            []string

	// MaxNodeModuleJsDepth bounds how deep the resolver follows JS sources
	// into node_modules. Nil means unset.
	MaxNodeModuleJsDepth *int

	ConfigFilePath string
}

// Clone returns a deep copy.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	c := *o
	if o.Paths != nil {
		c.Paths = make(map[string][]string, len(o.Paths))
		for k, v := range o.Paths {
			c.Paths[k] = append([]string(nil), v...)
		}
	}
	c.RootDirs = append([]string(nil), o.RootDirs...)
	c.TypeRoots = append([]string(nil), o.TypeRoots...)
	c.Types = append([]string(nil), o.Types...)
	if o.MaxNodeModuleJsDepth != nil {
		depth := *o.MaxNodeModuleJsDepth
		c.MaxNodeModuleJsDepth = &depth
	}
	return &c
}

// AffectsModuleResolution reports whether switching from o to other changes
// how module specifiers resolve, which requires dropping resolver state and
// cached unresolved imports.
func (o *Options) AffectsModuleResolution(other *Options) bool {
	if o == nil || other == nil {
		return o != other
	}
	if o.Module != other.Module ||
		o.ModuleResolution != other.ModuleResolution ||
		o.BaseURL != other.BaseURL ||
		!stringSlicesEqual(o.RootDirs, other.RootDirs) ||
		!stringSlicesEqual(o.TypeRoots, other.TypeRoots) ||
		!stringSlicesEqual(o.Types, other.Types) {
		return true
	}
	return !pathMappingsEqual(o.Paths, other.Paths)
}

// EffectiveTypeRoots returns the directories supplying ambient declaration
// packages: explicit typeRoots, else node_modules/@types beside the config
// file or current directory.
func (o *Options) EffectiveTypeRoots(currentDirectory string) []string {
	if len(o.TypeRoots) > 0 {
		return append([]string(nil), o.TypeRoots...)
	}
	base := currentDirectory
	if o.ConfigFilePath != "" {
		base = paths.Dir(o.ConfigFilePath)
	}
	if base == "" {
		return nil
	}
	return []string{paths.Join(base, "node_modules/@types")}
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

func pathMappingsEqual(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !stringSlicesEqual(av, bv) {
			return false
		}
	}
	return true
}

// DiagnosticCategory classifies a diagnostic.
type DiagnosticCategory int

const (
	CategoryError DiagnosticCategory = iota
	CategoryWarning
	CategoryMessage
)

// Diagnostic is a project-level or file-level problem report. File is empty
// for project-wide diagnostics.
type Diagnostic struct {
	Code     int
	Category DiagnosticCategory
	Message  string
	File     string
}

// CodeNoInputFiles is reported when a configured project matches no files.
const CodeNoInputFiles = 18003
