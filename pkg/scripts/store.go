package scripts

import (
	"os"

	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
)

// Store owns every script info, keyed by canonical path. Projects hold
// canonical paths and ask the store for views; attachment state lives on the
// infos themselves.
type Store struct {
	currentDirectory          string
	useCaseSensitiveFileNames bool

	infos map[paths.Path]*Info
}

// NewStore creates an empty script store.
func NewStore(currentDirectory string, useCaseSensitiveFileNames bool) *Store {
	return &Store{
		currentDirectory:          currentDirectory,
		useCaseSensitiveFileNames: useCaseSensitiveFileNames,
		infos:                     make(map[paths.Path]*Info),
	}
}

// ToPath canonicalizes a file name against the store's current directory.
func (s *Store) ToPath(fileName string) paths.Path {
	return paths.ToPath(fileName, s.currentDirectory, s.useCaseSensitiveFileNames)
}

// Get returns the info for fileName, or nil.
func (s *Store) Get(fileName string) *Info {
	return s.infos[s.ToPath(fileName)]
}

// GetByPath returns the info for a canonical path, or nil.
func (s *Store) GetByPath(p paths.Path) *Info {
	return s.infos[p]
}

// GetOrCreate returns the info for fileName, creating it on first use. Files
// not opened by a client are read from disk; a missing file yields an info
// with empty content (the compilation engine reports it missing).
func (s *Store) GetOrCreate(fileName string, openedByClient bool) *Info {
	p := s.ToPath(fileName)
	if info, ok := s.infos[p]; ok {
		if openedByClient {
			info.openedByClient = true
		}
		return info
	}

	info := &Info{
		store:          s,
		fileName:       paths.NormalizeSlashes(fileName),
		path:           p,
		kind:           KindFromFileName(fileName),
		openedByClient: openedByClient,
	}
	s.infos[p] = info

	if !openedByClient {
		if data, err := os.ReadFile(fileName); err == nil {
			info.SetContent(string(data))
		} else {
			logging.Trace("script info created for unreadable file", "file", fileName)
		}
	}
	return info
}

// Open marks a file as editor-owned and installs the client's content.
func (s *Store) Open(fileName, content string) *Info {
	info := s.GetOrCreate(fileName, true)
	info.openedByClient = true
	info.SetContent(content)
	return info
}

// Close returns a file to disk ownership and reloads its content.
func (s *Store) Close(fileName string) {
	info := s.Get(fileName)
	if info == nil {
		return
	}
	info.openedByClient = false
	if data, err := os.ReadFile(fileName); err == nil {
		info.SetContent(string(data))
	}
}

// Edit replaces the content of an open or tracked file.
func (s *Store) Edit(fileName, content string) {
	info := s.Get(fileName)
	if info == nil {
		logging.Warn("edit for unknown file", "file", fileName)
		return
	}
	info.SetContent(content)
}

// Delete drops an info entirely. Callers detach it from projects first.
func (s *Store) Delete(p paths.Path) {
	delete(s.infos, p)
}
