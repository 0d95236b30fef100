package project

import (
	"fmt"
	"sync/atomic"

	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/scripts"
)

// inferredPayload carries inferred-flavor state: the JS flag that steers
// compiler-option overrides, and the optional client-configured root.
type inferredPayload struct {
	isJsInferredProject bool
	projectRootPath     string
}

var inferredProjectCounter atomic.Int64

func nextInferredProjectName() string {
	return fmt.Sprintf("/dev/null/inferredProject%d*", inferredProjectCounter.Add(1))
}

// NewInferredProject creates an inferred project with a synthetic name.
// projectRootPath is the client-supplied root, empty when none. ls may be
// nil to use the reference engine.
func NewInferredProject(svc ServiceHost, host SystemHost, options *compiler.Options, projectRootPath string, ls compiler.LanguageService) *Project {
	p := newProject(nextInferredProjectName(), KindInferred, svc, host, ls)
	p.inferred = &inferredPayload{projectRootPath: projectRootPath}
	p.SetCompilerOptions(options)
	return p
}

// inferredOnRootAdded flips the JS flag when the first dynamically typed
// root arrives.
func (p *Project) inferredOnRootAdded(info *scripts.Info) {
	if !p.inferred.isJsInferredProject && paths.HasJsExtension(info.FileName()) {
		p.toggleJsInferredProject(true)
	}
}

// inferredOnRootRemoved flips the JS flag back when no dynamically typed
// root remains.
func (p *Project) inferredOnRootRemoved() {
	if !p.inferred.isJsInferredProject {
		return
	}
	for _, root := range p.rootFiles {
		if paths.HasJsExtension(root.FileName()) {
			return
		}
	}
	p.toggleJsInferredProject(false)
}

func (p *Project) toggleJsInferredProject(isJs bool) {
	p.inferred.isJsInferredProject = isJs
	// Re-run option post-processing under the new flag.
	p.SetCompilerOptions(p.compilerOptions)
}

// IsJsInferredProject reports the JS flag; false for other flavors.
func (p *Project) IsJsInferredProject() bool {
	return p.inferred != nil && p.inferred.isJsInferredProject
}

// inferredOptionOverrides clones incoming options and applies the inferred
// policy: JS is always allowed, and JS-flavored projects resolve two levels
// into node_modules sources.
func (p *Project) inferredOptionOverrides(options *compiler.Options) *compiler.Options {
	cloned := options.Clone()
	cloned.AllowJs = true
	if p.inferred != nil && p.inferred.isJsInferredProject {
		depth := 2
		cloned.MaxNodeModuleJsDepth = &depth
	} else {
		cloned.MaxNodeModuleJsDepth = nil
	}
	return cloned
}

// GetProjectRootPath returns the directory the project is rooted at: the
// client-configured root, or the first root file's directory when the
// service keeps one inferred project per root, or empty.
func (p *Project) GetProjectRootPath() string {
	switch p.kind {
	case KindInferred:
		if p.inferred.projectRootPath != "" {
			return p.inferred.projectRootPath
		}
		if !p.svc.UseSingleInferredProject() && len(p.rootFiles) > 0 {
			return paths.Dir(p.rootFiles[0].FileName())
		}
		return ""
	case KindExternal:
		if p.external.projectFilePath != "" {
			return paths.Dir(p.external.projectFilePath)
		}
		return paths.Dir(paths.NormalizePath(p.name))
	case KindConfigured:
		return paths.Dir(p.configured.configFileName)
	default:
		return ""
	}
}
