package project

import (
	"strings"

	"github.com/ritzau/projectd/pkg/paths"
)

// extractUnresolvedImports walks every source file of the current program
// and collects the bare specifiers that failed to resolve, canonicalized to
// their package prefix. Per-file results are cached; files whose resolutions
// changed had their entries dropped before this runs, so the cache never
// serves stale data.
func (p *Project) extractUnresolvedImports() []string {
	if p.program == nil {
		return nil
	}

	var all []string
	for _, file := range p.program.SourceFiles() {
		cached, ok := p.unresolvedIndex[file.Path]
		if !ok {
			// The empty-list sentinel keeps files with no unresolved
			// imports from being rescanned.
			cached = []string{}
			for _, specifier := range file.Imports {
				resolved, known := file.ResolvedModules[specifier]
				if !known || resolved != nil {
					continue
				}
				trimmed := strings.TrimSpace(specifier)
				if paths.IsExternalModuleNameRelative(trimmed) {
					continue
				}
				cached = append(cached, packagePrefix(trimmed))
			}
			p.unresolvedIndex[file.Path] = cached
			p.unresolvedVersion++
		}
		all = append(all, cached...)
	}
	return sortedUnique(all)
}

// packagePrefix canonicalizes a bare specifier to its package name: the
// segment before the first slash, or before the second slash for scoped
// packages.
func packagePrefix(specifier string) string {
	limit := 1
	if strings.HasPrefix(specifier, "@") {
		limit = 2
	}
	idx := 0
	for seen := 0; idx < len(specifier); idx++ {
		if specifier[idx] == '/' {
			seen++
			if seen == limit {
				break
			}
		}
	}
	return specifier[:idx]
}

// CachedUnresolvedImports returns the cached entry for a file; ok reports
// whether an entry exists.
func (p *Project) CachedUnresolvedImports(path paths.Path) ([]string, bool) {
	cached, ok := p.unresolvedIndex[path]
	return cached, ok
}

// LastUnresolvedImports returns the deduplicated, sorted list from the most
// recent graph update.
func (p *Project) LastUnresolvedImports() []string {
	return append([]string(nil), p.lastUnresolved...)
}
