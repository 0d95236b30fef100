package project

import (
	"github.com/ritzau/projectd/pkg/compiler"
)

// externalPayload carries external-flavor state. External projects are
// caller-named and caller-managed: no plugins, no wildcard or type-root
// watchers (the external build system owns those).
type externalPayload struct {
	projectFilePath string
	typeAcquisition *TypeAcquisition
}

// NewExternalProject creates a caller-named project. projectFilePath is the
// build file the caller derived the project from, empty when unknown. ls
// may be nil to use the reference engine.
func NewExternalProject(name string, svc ServiceHost, host SystemHost, options *compiler.Options, projectFilePath string, ls compiler.LanguageService) *Project {
	p := newProject(name, KindExternal, svc, host, ls)
	p.external = &externalPayload{projectFilePath: projectFilePath}
	p.SetCompilerOptions(options)
	return p
}

// SetTypeAcquisition installs type-acquisition settings. The caller's value
// is cloned, never aliased; missing fields are defaulted: enable falls back
// to the all-roots-are-JS predicate, include and exclude to empty lists.
func (p *Project) SetTypeAcquisition(ta *TypeAcquisition) {
	assertf(p.kind == KindExternal, "SetTypeAcquisition on %s project %q", p.kind, p.name)

	cloned := ta.Clone()
	if cloned == nil {
		cloned = &TypeAcquisition{}
	}
	if cloned.Enable == nil {
		enable := p.AllRootFilesAreJsOrDts()
		cloned.Enable = &enable
	}
	if cloned.Include == nil {
		cloned.Include = []string{}
	}
	if cloned.Exclude == nil {
		cloned.Exclude = []string{}
	}
	p.external.typeAcquisition = cloned
}
