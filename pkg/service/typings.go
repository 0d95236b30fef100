package service

import (
	"sort"
	"strings"

	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/project"
	"github.com/ritzau/projectd/pkg/resolution"
)

// typingsEntry caches one project's acquisition result keyed by its
// unresolved-import set.
type typingsEntry struct {
	key   string
	files []string
}

// TypingsForProject returns the declaration files available in the global
// typings cache for the project's unresolved imports. Results are memoized
// per project until the unresolved set or the program changes.
func (s *Service) TypingsForProject(p *project.Project, unresolvedImports []string, hasChanges bool) []string {
	ta := p.GetTypeAcquisition()
	if ta.Enable == nil || !*ta.Enable {
		return nil
	}

	key := strings.Join(unresolvedImports, "|")
	if entry, ok := s.typingsCache[p]; ok && !hasChanges && entry.key == key {
		return entry.files
	}

	cacheLocation := s.GlobalTypingsCacheLocation()
	var files []string
	if cacheLocation != "" {
		requested := append(append([]string(nil), unresolvedImports...), ta.Include...)
		excluded := make(map[string]bool, len(ta.Exclude))
		for _, name := range ta.Exclude {
			excluded[name] = true
		}
		for _, packageName := range requested {
			if excluded[packageName] {
				continue
			}
			candidate := paths.Join(
				cacheLocation, "node_modules/@types",
				resolution.TypesPackageName(packageName), "index.d.ts",
			)
			if s.host.FileExists(candidate) {
				files = append(files, candidate)
			}
		}
	}

	sort.Strings(files)
	s.typingsCache[p] = typingsEntry{key: key, files: files}
	if len(files) > 0 {
		logging.Debug("typings acquired", "project", p.Name(), "count", len(files))
	}
	return files
}

// GlobalTypingsCacheLocation returns the configured typings cache root.
func (s *Service) GlobalTypingsCacheLocation() string {
	return s.cfg.TypingsCacheLocation
}
