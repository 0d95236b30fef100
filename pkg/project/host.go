package project

import (
	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/scripts"
	"github.com/ritzau/projectd/pkg/watcher"
)

// ServiceHost is the project service surface the core consumes: script info
// lookup, watcher creation, typings acquisition, deferred refresh
// scheduling, and policy flags.
type ServiceHost interface {
	ToPath(fileName string) paths.Path

	GetScriptInfo(fileName string) *scripts.Info
	GetScriptInfoForPath(path paths.Path) *scripts.Info
	GetOrCreateScriptInfo(fileName string, openedByClient bool) *scripts.Info

	// WatchFile and WatchDirectory create watches tagged with a kind for
	// logging and a project name for ownership tracking.
	WatchFile(kind watcher.Kind, projectName, path string, cb watcher.FileCallback) watcher.FileWatcher
	WatchDirectory(kind watcher.Kind, projectName, path string, recursive bool, cb watcher.DirCallback) watcher.FileWatcher

	// TypingsForProject returns the declaration files the typings helper
	// acquires for the project's current unresolved imports.
	TypingsForProject(p *Project, unresolvedImports []string, hasChanges bool) []string
	GlobalTypingsCacheLocation() string

	// DelayUpdateProjectGraph schedules a coalesced graph refresh.
	DelayUpdateProjectGraph(p *Project)
	ReloadConfiguredProject(p *Project) error

	// Config-file watch management for inferred roots: a config file
	// created later may promote the file into a configured project.
	StartWatchingConfigFiles(p *Project, info *scripts.Info)
	StopWatchingConfigFiles(p *Project, info *scripts.Info)

	UseSingleInferredProject() bool
	AllowLocalPluginLoads() bool
	PluginProbeLocations() []string
	GlobalPlugins() []string
}

// SystemHost is the process-level host surface: path resolution, plugin
// module loading, hashing and file system reads for files the script store
// does not track.
type SystemHost interface {
	ResolvePath(path string) string
	GetExecutingFilePath() string
	CreateHash(data []byte) string

	FileExists(fileName string) bool
	ReadFile(fileName string) (content string, ok bool)

	// Require loads a plugin module factory by name from initialDir.
	Require(initialDir, moduleName string) (PluginModuleFactory, error)
}

// PluginModuleFactory instantiates a plugin module.
type PluginModuleFactory func() PluginModule

// PluginModule is a loaded language-service plugin.
type PluginModule interface {
	// Create returns a language service that wraps info.LanguageService.
	Create(info PluginCreateInfo) compiler.LanguageService
}

// ExternalFilesProvider is the optional plugin capability of contributing
// files outside the program.
type ExternalFilesProvider interface {
	GetExternalFiles(p *Project) []string
}

// PluginCreateInfo is handed to each plugin's Create.
type PluginCreateInfo struct {
	Project         *Project
	LanguageService compiler.LanguageService
	Config          map[string]any
}

// PluginImport names a plugin from the config file.
type PluginImport struct {
	Name   string
	Config map[string]any
}

// TypeAcquisition controls automatic typings installation. Enable is a
// pointer so "caller omitted it" is distinguishable from false.
type TypeAcquisition struct {
	Enable  *bool
	Include []string
	Exclude []string
}

// Clone returns a deep copy.
func (t *TypeAcquisition) Clone() *TypeAcquisition {
	if t == nil {
		return nil
	}
	c := &TypeAcquisition{
		Include: append([]string(nil), t.Include...),
		Exclude: append([]string(nil), t.Exclude...),
	}
	if t.Enable != nil {
		enable := *t.Enable
		c.Enable = &enable
	}
	return c
}
