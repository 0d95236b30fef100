package project

import (
	"sort"

	"github.com/ritzau/projectd/pkg/compiler"
)

// Info is the project header attached to every delta report.
type Info struct {
	ProjectName             string            `json:"projectName"`
	Version                 int               `json:"version"`
	IsInferred              bool              `json:"isInferred"`
	Options                 *compiler.Options `json:"options"`
	LanguageServiceDisabled bool              `json:"languageServiceDisabled"`
}

// Changes is the added/removed/updated diff shape.
type Changes struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Updated []string `json:"updated"`
}

// FilesReport is the result of GetChangesSinceVersion: exactly one of Files
// (baseline) or Changes (diff) is set, or neither when nothing changed.
type FilesReport struct {
	Info          Info                  `json:"info"`
	Files         []string              `json:"files,omitempty"`
	Changes       *Changes              `json:"changes,omitempty"`
	ProjectErrors []compiler.Diagnostic `json:"projectErrors,omitempty"`
}

// GetChangesSinceVersion reports the project's file set relative to the
// version the caller last saw. An absent or mismatched version yields the
// full baseline; a matching version yields either a bare header (nothing
// changed) or an added/removed/updated diff against the last report.
func (p *Project) GetChangesSinceVersion(lastKnownVersion *int) *FilesReport {
	p.assertOpen()

	info := Info{
		ProjectName:             p.name,
		Version:                 p.structureVersion,
		IsInferred:              p.kind == KindInferred,
		Options:                 p.compilerOptions,
		LanguageServiceDisabled: !p.languageServiceEnabled,
	}

	if p.hasReported && lastKnownVersion != nil && *lastKnownVersion == p.lastReportedVersion {
		if p.structureVersion == p.lastReportedVersion && len(p.updatedFileNames) == 0 {
			return &FilesReport{Info: info, ProjectErrors: p.GetGlobalProjectErrors()}
		}

		current := p.FileNames(false, false)
		currentSet := make(map[string]bool, len(current))
		for _, name := range current {
			currentSet[name] = true
		}

		changes := &Changes{Added: []string{}, Removed: []string{}, Updated: []string{}}
		for _, name := range current {
			if !p.lastReportedFileNames[name] {
				changes.Added = append(changes.Added, name)
			}
		}
		for name := range p.lastReportedFileNames {
			if !currentSet[name] {
				changes.Removed = append(changes.Removed, name)
			}
		}
		for name := range p.updatedFileNames {
			changes.Updated = append(changes.Updated, name)
		}
		sort.Strings(changes.Removed)
		sort.Strings(changes.Updated)

		p.lastReportedFileNames = currentSet
		p.lastReportedVersion = p.structureVersion
		p.updatedFileNames = make(map[string]bool)
		return &FilesReport{Info: info, Changes: changes, ProjectErrors: p.GetGlobalProjectErrors()}
	}

	// Baseline: first call or version mismatch.
	current := p.FileNames(false, false)
	currentSet := make(map[string]bool, len(current))
	for _, name := range current {
		currentSet[name] = true
	}
	p.lastReportedFileNames = currentSet
	p.lastReportedVersion = p.structureVersion
	p.hasReported = true
	p.updatedFileNames = make(map[string]bool)
	return &FilesReport{Info: info, Files: current, ProjectErrors: p.GetGlobalProjectErrors()}
}

// LastReportedVersion returns the version of the most recent report.
func (p *Project) LastReportedVersion() int { return p.lastReportedVersion }
