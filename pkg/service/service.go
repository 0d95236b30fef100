package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/config"
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/project"
	"github.com/ritzau/projectd/pkg/pubsub"
	"github.com/ritzau/projectd/pkg/scripts"
	"github.com/ritzau/projectd/pkg/watcher"
)

// Service is the multi-project registry: it owns the script store, hands
// watches to projects, schedules deferred graph refreshes, acquires typings
// and publishes change deltas. It implements project.ServiceHost.
//
// Concurrency: projects are single-task state. The service realizes that
// task with mu — every public entry point, every watcher callback (fsnotify
// delivers on its own goroutine; the service re-enters through mu before
// invoking project code) and every deferred-update flush (timer goroutine)
// acquires it first. ServiceHost methods and the unexported *Locked
// variants assume the task is already held and must only be called from
// within it. Readers (the inspection server) enter through ReadProjects and
// ReadProject.
type Service struct {
	mu sync.Mutex

	cfg  *config.Config
	host project.SystemHost

	store *scripts.Store
	watch watcher.Host
	pub   pubsub.Publisher

	currentDirectory string

	configured map[paths.Path]*project.Project
	external   map[string]*project.Project
	inferred   []*project.Project

	// openFiles maps each open script to the project that owns it.
	openFiles map[paths.Path]*project.Project

	// singleInferred is the shared project in single-inferred mode.
	singleInferred *project.Project

	configWatches map[paths.Path][]watcher.FileWatcher

	scheduler   *updateScheduler
	syncUpdates bool

	typingsCache map[*project.Project]typingsEntry
}

// Options bundle the service's collaborators. Watch may be nil to disable
// watching (tests drive updates directly); Pub may be nil to disable delta
// publication.
type Options struct {
	Config           *config.Config
	Host             project.SystemHost
	Watch            watcher.Host
	Pub              pubsub.Publisher
	CurrentDirectory string

	// SynchronousUpdates makes DelayUpdateProjectGraph refresh inline on
	// the current task instead of debouncing on a timer. Used by tests.
	SynchronousUpdates bool
}

// NewService creates a service.
func NewService(opts Options) *Service {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	host := opts.Host
	if host == nil {
		host = NewOSHost()
	}

	s := &Service{
		cfg:              cfg,
		host:             host,
		watch:            opts.Watch,
		pub:              opts.Pub,
		currentDirectory: opts.CurrentDirectory,
		store:            scripts.NewStore(opts.CurrentDirectory, true),
		configured:       make(map[paths.Path]*project.Project),
		external:         make(map[string]*project.Project),
		openFiles:        make(map[paths.Path]*project.Project),
		configWatches:    make(map[paths.Path][]watcher.FileWatcher),
		typingsCache:     make(map[*project.Project]typingsEntry),
		syncUpdates:      opts.SynchronousUpdates,
	}

	quiet := time.Duration(cfg.DebounceQuietMs) * time.Millisecond
	if quiet <= 0 {
		quiet = 250 * time.Millisecond
	}
	maxWait := time.Duration(cfg.DebounceMaxMs) * time.Millisecond
	if maxWait <= 0 {
		maxWait = 2 * time.Second
	}
	s.scheduler = newUpdateScheduler(quiet, maxWait, s.applyDeferredUpdates)
	return s
}

// ServiceHost implementation. These run on the service task; callers
// already hold mu.

func (s *Service) ToPath(fileName string) paths.Path { return s.store.ToPath(fileName) }

func (s *Service) GetScriptInfo(fileName string) *scripts.Info { return s.store.Get(fileName) }

func (s *Service) GetScriptInfoForPath(p paths.Path) *scripts.Info { return s.store.GetByPath(p) }

func (s *Service) GetOrCreateScriptInfo(fileName string, openedByClient bool) *scripts.Info {
	return s.store.GetOrCreate(fileName, openedByClient)
}

// WatchFile registers a watch whose callback re-enters the service task:
// the watch host delivers events on its own goroutine, so the callback is
// wrapped to acquire mu before touching project state.
func (s *Service) WatchFile(kind watcher.Kind, projectName, path string, cb watcher.FileCallback) watcher.FileWatcher {
	logging.Trace("watch file", "kind", kind.String(), "project", projectName, "path", path)
	if s.watch == nil {
		return noopWatcher{}
	}
	return s.watch.WatchFile(path, func(fileName string, kind watcher.EventKind) {
		s.mu.Lock()
		defer s.mu.Unlock()
		cb(fileName, kind)
	})
}

func (s *Service) WatchDirectory(kind watcher.Kind, projectName, path string, recursive bool, cb watcher.DirCallback) watcher.FileWatcher {
	logging.Trace("watch directory", "kind", kind.String(), "project", projectName, "path", path, "recursive", recursive)
	if s.watch == nil {
		return noopWatcher{}
	}
	return s.watch.WatchDirectory(path, recursive, func(fileName string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		cb(fileName)
	})
}

// DelayUpdateProjectGraph schedules a coalesced refresh. In synchronous
// mode the caller is already on the task, so the refresh runs inline.
func (s *Service) DelayUpdateProjectGraph(p *project.Project) {
	if s.syncUpdates {
		if !p.IsClosed() {
			p.UpdateGraph()
		}
		return
	}
	s.scheduler.enqueue(p)
}

// applyDeferredUpdates is the scheduler's flush callback; it fires on a
// timer goroutine and enters the task itself.
func (s *Service) applyDeferredUpdates(projects []*project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range projects {
		if p.IsClosed() {
			continue
		}
		p.UpdateGraph()
	}
}

func (s *Service) UseSingleInferredProject() bool { return s.cfg.UseSingleInferredProject }
func (s *Service) AllowLocalPluginLoads() bool    { return s.cfg.AllowLocalPluginLoads }
func (s *Service) PluginProbeLocations() []string { return s.cfg.PluginProbeLocations }
func (s *Service) GlobalPlugins() []string        { return s.cfg.GlobalPlugins }

// StartWatchingConfigFiles watches tsconfig.json in the directory of an
// inferred root and its ancestors, up to eight levels and never in the file
// system root, so a config file created later can promote the file into a
// configured project.
func (s *Service) StartWatchingConfigFiles(p *project.Project, info *scripts.Info) {
	if s.watch == nil {
		return
	}
	key := info.Path()
	if _, ok := s.configWatches[key]; ok {
		return
	}

	var watches []watcher.FileWatcher
	dir := paths.Dir(info.FileName())
	for depth := 0; dir != "" && dir != "/" && depth < 8; depth++ {
		configPath := paths.Join(dir, "tsconfig.json")
		fileName := info.FileName()
		watches = append(watches, s.WatchFile(
			watcher.KindConfigFilePath, p.Name(), configPath,
			func(configFile string, kind watcher.EventKind) {
				s.onConfigFileAppeared(fileName, configFile, kind)
			},
		))
		parent := paths.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	s.configWatches[key] = watches
}

// StopWatchingConfigFiles releases the ancestor config watches of a root.
func (s *Service) StopWatchingConfigFiles(p *project.Project, info *scripts.Info) {
	key := info.Path()
	for _, w := range s.configWatches[key] {
		w.Close(watcher.ReasonNotNeeded)
	}
	delete(s.configWatches, key)
}

// onConfigFileAppeared runs inside a wrapped watcher callback, so the task
// is already held.
func (s *Service) onConfigFileAppeared(fileName, configFile string, kind watcher.EventKind) {
	if kind != watcher.Created {
		return
	}
	logging.Info("config file appeared", "config", configFile, "file", fileName)
	if _, err := s.openConfiguredProjectLocked(configFile); err != nil {
		logging.Warn("failed to open configured project", "config", configFile, "error", err)
	}
}

// Project registry.

// OpenConfiguredProject loads a config file and creates (or returns) its
// project.
func (s *Service) OpenConfiguredProject(configFileName string) (*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openConfiguredProjectLocked(configFileName)
}

func (s *Service) openConfiguredProjectLocked(configFileName string) (*project.Project, error) {
	canonical := s.ToPath(configFileName)
	if existing, ok := s.configured[canonical]; ok {
		return existing, nil
	}

	snapshot, err := LoadConfigFile(configFileName)
	if err != nil {
		return nil, err
	}

	p := project.NewConfiguredProject(configFileName, s, s.host, snapshot.Options, snapshot.Plugins, snapshot.HasExplicitFiles, nil)
	p.SetCompileOnSave(snapshot.CompileOnSave)
	s.configured[canonical] = p
	s.installDeltaPublisher(p)

	s.applyConfigSnapshot(p, snapshot)
	p.UpdateGraph()
	logging.Info("configured project loaded", "config", configFileName, "files", len(snapshot.FileNames))
	return p, nil
}

// applyConfigSnapshot reconciles a project's roots and watchers with a
// parsed config.
func (s *Service) applyConfigSnapshot(p *project.Project, snapshot *ConfigSnapshot) {
	wanted := make(map[paths.Path]string, len(snapshot.FileNames))
	for _, fileName := range snapshot.FileNames {
		wanted[s.ToPath(fileName)] = fileName
	}

	existing := make(map[paths.Path]bool)
	for _, root := range p.RootFiles() {
		if _, keep := wanted[root.Path()]; keep {
			existing[root.Path()] = true
			continue
		}
		p.RemoveFile(root, true)
	}
	for _, fileName := range snapshot.FileNames {
		if existing[s.ToPath(fileName)] {
			continue
		}
		if s.host.FileExists(fileName) {
			info := s.store.GetOrCreate(fileName, false)
			if !p.IsRoot(info) {
				p.AddRoot(info)
			}
		} else {
			p.AddMissingFileRoot(fileName)
		}
	}

	p.UpdateErrorOnNoInputFiles(len(snapshot.FileNames) > 0)
	p.WatchWildcardDirectories(snapshot.WildcardDirectories)
	p.WatchTypeRoots(s.currentDirectory)
}

// ReloadConfiguredProject re-reads the config file and reconciles the
// project. Called from the project's pendingReload path, already on the
// task.
func (s *Service) ReloadConfiguredProject(p *project.Project) error {
	configFileName := p.ConfigFileName()
	snapshot, err := LoadConfigFile(configFileName)
	if err != nil {
		return fmt.Errorf("reload of %s failed: %w", configFileName, err)
	}

	p.SetCompilerOptions(snapshot.Options)
	p.SetCompileOnSave(snapshot.CompileOnSave)
	s.applyConfigSnapshot(p, snapshot)
	p.UpdateGraph()
	logging.Info("configured project reloaded", "config", configFileName, "files", len(snapshot.FileNames))
	return nil
}

// OpenExternalProject creates (or returns) a caller-named project with the
// given roots.
func (s *Service) OpenExternalProject(name string, rootFileNames []string, options *compiler.Options, projectFilePath string) *project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.external[name]
	if !ok {
		p = project.NewExternalProject(name, s, s.host, options, projectFilePath, nil)
		s.external[name] = p
		s.installDeltaPublisher(p)
	} else if options != nil {
		p.SetCompilerOptions(options)
	}

	wanted := make(map[paths.Path]bool, len(rootFileNames))
	for _, fileName := range rootFileNames {
		wanted[s.ToPath(fileName)] = true
	}
	for _, root := range p.RootFiles() {
		if !wanted[root.Path()] {
			p.RemoveFile(root, true)
		}
	}
	for _, fileName := range rootFileNames {
		info := s.store.GetOrCreate(fileName, false)
		if !p.IsRoot(info) {
			p.AddRoot(info)
		}
	}

	p.UpdateGraph()
	return p
}

// OpenClientFile routes an opened editor buffer to its project: the nearest
// configured project when a config file governs it, otherwise an inferred
// project.
func (s *Service) OpenClientFile(fileName, content string) (*project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := s.store.Open(fileName, content)

	if configFile := s.findConfigFile(fileName); configFile != "" {
		p, err := s.openConfiguredProjectLocked(configFile)
		if err != nil {
			return nil, err
		}
		p.AddOpenRef()
		if !p.IsRoot(info) && !programContains(p, info) {
			p.AddRoot(info)
		}
		s.openFiles[info.Path()] = p
		p.UpdateGraph()
		return p, nil
	}

	p := s.inferredProjectFor(fileName)
	if !p.IsRoot(info) {
		p.AddRoot(info)
	}
	s.openFiles[info.Path()] = p
	p.UpdateGraph()
	return p, nil
}

// findConfigFile walks upward from the file's directory looking for a
// tsconfig.json.
func (s *Service) findConfigFile(fileName string) string {
	dir := paths.Dir(fileName)
	for dir != "" && dir != "/" && dir != "." {
		candidate := paths.Join(dir, "tsconfig.json")
		if s.host.FileExists(candidate) {
			return candidate
		}
		parent := paths.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func programContains(p *project.Project, info *scripts.Info) bool {
	program := p.CurrentProgram()
	return program != nil && program.ContainsPath(info.Path())
}

// CloseClientFile returns a buffer to disk ownership and retires configured
// projects whose last open file went away.
func (s *Service) CloseClientFile(fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := s.store.Get(fileName)
	if info == nil {
		return
	}
	s.store.Close(fileName)

	p, ok := s.openFiles[info.Path()]
	if !ok {
		return
	}
	delete(s.openFiles, info.Path())

	switch p.Kind() {
	case project.KindConfigured:
		if p.ReleaseOpenRef() {
			s.closeProjectLocked(p)
		}
	case project.KindInferred:
		if p.IsRoot(info) {
			p.RemoveFile(info, true)
		}
		if len(p.RootFiles()) == 0 {
			s.closeProjectLocked(p)
		}
	}
}

func (s *Service) inferredProjectFor(fileName string) *project.Project {
	if s.cfg.UseSingleInferredProject {
		if s.singleInferred == nil || s.singleInferred.IsClosed() {
			s.singleInferred = project.NewInferredProject(s, s.host, &compiler.Options{}, "", nil)
			s.inferred = append(s.inferred, s.singleInferred)
			s.installDeltaPublisher(s.singleInferred)
		}
		return s.singleInferred
	}

	p := project.NewInferredProject(s, s.host, &compiler.Options{}, "", nil)
	s.inferred = append(s.inferred, p)
	s.installDeltaPublisher(p)
	return p
}

// CloseProject closes a project and drops it from the registry.
func (s *Service) CloseProject(p *project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeProjectLocked(p)
}

func (s *Service) closeProjectLocked(p *project.Project) {
	if p.IsClosed() {
		return
	}
	switch p.Kind() {
	case project.KindConfigured:
		delete(s.configured, p.CanonicalConfigFilePath())
	case project.KindExternal:
		delete(s.external, p.Name())
	case project.KindInferred:
		for i, candidate := range s.inferred {
			if candidate == p {
				s.inferred = append(s.inferred[:i], s.inferred[i+1:]...)
				break
			}
		}
		if s.singleInferred == p {
			s.singleInferred = nil
		}
	}
	delete(s.typingsCache, p)
	p.Close()

	if s.pub != nil {
		_ = s.pub.Publish("projects", "project_closed", pubsub.ProjectStatus{
			ProjectName: p.Name(),
			Kind:        p.Kind().String(),
		})
	}
}

// installDeltaPublisher publishes a graph event on every structure bump.
func (s *Service) installDeltaPublisher(p *project.Project) {
	if s.pub == nil {
		return
	}
	p.SetOnGraphUpdated(func(p *project.Project) {
		_ = s.pub.Publish("project/"+p.Name(), "graph_updated", pubsub.ProjectGraphDelta{
			ProjectName:      p.Name(),
			StructureVersion: p.StructureVersion(),
			Files:            p.FileNames(false, false),
		})
		_ = s.pub.Publish("projects", "project_updated", s.statusOf(p))
	})
}

func (s *Service) statusOf(p *project.Project) pubsub.ProjectStatus {
	return pubsub.ProjectStatus{
		ProjectName:      p.Name(),
		Kind:             p.Kind().String(),
		FileCount:        len(p.FileNames(false, true)),
		StateVersion:     p.StateVersion(),
		StructureVersion: p.StructureVersion(),
	}
}

// Projects lists every live project.
func (s *Service) Projects() []*project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectsLocked()
}

func (s *Service) projectsLocked() []*project.Project {
	var out []*project.Project
	for _, p := range s.configured {
		out = append(out, p)
	}
	for _, p := range s.external {
		out = append(out, p)
	}
	out = append(out, s.inferred...)
	return out
}

// ProjectByName finds a project by exact name.
func (s *Service) ProjectByName(name string) *project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectByNameLocked(name)
}

func (s *Service) projectByNameLocked(name string) *project.Project {
	for _, p := range s.projectsLocked() {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// ReadProjects runs fn on the service task with the live project list.
// Readers (the inspection server) must not touch project state outside fn.
func (s *Service) ReadProjects(fn func(projects []*project.Project)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.projectsLocked())
}

// ReadProject runs fn on the service task with the named project; false
// when no such project exists.
func (s *Service) ReadProject(name string, fn func(p *project.Project)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.projectByNameLocked(name)
	if p == nil {
		return false
	}
	fn(p)
	return true
}

// FlushPendingUpdates runs deferred graph refreshes now. The flush enters
// the task itself, so callers must not hold it.
func (s *Service) FlushPendingUpdates() {
	s.scheduler.Flush()
}

// Shutdown closes every project and stops the scheduler.
func (s *Service) Shutdown() {
	s.scheduler.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projectsLocked() {
		s.closeProjectLocked(p)
	}
	for key, watches := range s.configWatches {
		for _, w := range watches {
			w.Close(watcher.ReasonProjectClose)
		}
		delete(s.configWatches, key)
	}
}

// noopWatcher stands in when watching is disabled.
type noopWatcher struct{}

func (noopWatcher) Close(watcher.CloseReason) {}
