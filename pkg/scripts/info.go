package scripts

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/ritzau/projectd/pkg/paths"
)

// ScriptKind classifies a file for the compilation engine.
type ScriptKind int

const (
	KindUnknown ScriptKind = iota
	KindTS
	KindTSX
	KindJS
	KindJSX
	KindJSON
	KindExternal
)

// KindFromFileName derives the script kind from the file extension.
func KindFromFileName(fileName string) ScriptKind {
	switch {
	case paths.HasTsExtension(fileName):
		if len(fileName) > 4 && fileName[len(fileName)-4:] == ".tsx" {
			return KindTSX
		}
		return KindTS
	case paths.HasJsExtension(fileName):
		if len(fileName) > 4 && fileName[len(fileName)-4:] == ".jsx" {
			return KindJSX
		}
		return KindJS
	case len(fileName) > 5 && fileName[len(fileName)-5:] == ".json":
		return KindJSON
	default:
		return KindUnknown
	}
}

// Client is the per-project view a script info keeps of its containing
// projects. Implemented by the project core; kept as an interface so the
// store has no dependency on it.
type Client interface {
	ProjectName() string
	RegisterFileUpdate(fileName string)
	MarkAsDirty()
}

// Info is the canonical per-file record: one instance per canonical path,
// shared between the store and every project that contains the file.
type Info struct {
	store *Store

	fileName string
	path     paths.Path
	kind     ScriptKind

	openedByClient  bool
	hasMixedContent bool

	content string
	version int
	hash    xxh3.Uint128

	containingClients []Client
}

// FileName returns the original (non-canonical) file name.
func (i *Info) FileName() string { return i.fileName }

// Path returns the canonical path.
func (i *Info) Path() paths.Path { return i.path }

// Kind returns the script kind.
func (i *Info) Kind() ScriptKind { return i.kind }

// IsOpenedByClient reports whether the file content is owned by an editor
// buffer rather than disk.
func (i *Info) IsOpenedByClient() bool { return i.openedByClient }

// Content returns the current text.
func (i *Info) Content() string { return i.content }

// Version returns a string that changes whenever the content changes.
func (i *Info) Version() string { return fmt.Sprintf("%d", i.version) }

// Hash returns the xxh3 hash of the current content.
func (i *Info) Hash() xxh3.Uint128 { return i.hash }

// Attach adds a containing project. Attaching twice is a no-op.
func (i *Info) Attach(c Client) {
	for _, existing := range i.containingClients {
		if existing == c {
			return
		}
	}
	i.containingClients = append(i.containingClients, c)
}

// Detach removes a containing project. Detaching a project that is not
// attached is a no-op.
func (i *Info) Detach(c Client) {
	for idx, existing := range i.containingClients {
		if existing == c {
			i.containingClients = append(i.containingClients[:idx], i.containingClients[idx+1:]...)
			return
		}
	}
}

// IsAttachedTo reports whether c contains this file.
func (i *Info) IsAttachedTo(c Client) bool {
	for _, existing := range i.containingClients {
		if existing == c {
			return true
		}
	}
	return false
}

// ContainingProjectNames lists the names of attached projects.
func (i *Info) ContainingProjectNames() []string {
	names := make([]string, 0, len(i.containingClients))
	for _, c := range i.containingClients {
		names = append(names, c.ProjectName())
	}
	return names
}

// SetContent replaces the text, bumps the version, and notifies every
// containing project so the next graph refresh picks the edit up.
func (i *Info) SetContent(content string) {
	if i.version > 0 && content == i.content {
		return
	}
	i.content = content
	i.hash = xxh3.Hash128([]byte(content))
	i.version++

	for _, c := range i.containingClients {
		c.RegisterFileUpdate(i.fileName)
		c.MarkAsDirty()
	}
}
