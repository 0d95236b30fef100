package project

import (
	"testing"

	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/watcher"
)

func newConfigured(t *testing.T, svc *fakeService, host *fakeSystem, plugins []PluginImport, hasExplicitFiles bool) *Project {
	t.Helper()
	return NewConfiguredProject("/ws/tsconfig.json", svc, host, &compiler.Options{}, plugins, hasExplicitFiles, nil)
}

// Scenario: a configured project referencing a file that is not on disk
// watches it; creation closes the watch with FileCreated and schedules a
// refresh.
func TestMissingFileWatcherLifecycle(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := newConfigured(t, svc, host, nil, false)

	p.AddMissingFileRoot("/ws/x.ts")
	p.UpdateGraph()

	missing := p.MissingFilePaths()
	if len(missing) != 1 || missing[0] != svc.ToPath("/ws/x.ts") {
		t.Fatalf("missing files = %v", missing)
	}

	// The file appears on disk.
	host.addFile("/ws/x.ts", "const x = 1")
	svc.watch.TriggerFile("/ws/x.ts", watcher.Created)

	if len(p.MissingFilePaths()) != 0 {
		t.Error("map entry should be removed on creation")
	}
	reasons := svc.watch.CloseReasonsFor("/ws/x.ts")
	if len(reasons) != 1 || reasons[0] != watcher.ReasonFileCreated {
		t.Errorf("close reasons = %v, want [FileCreated]", reasons)
	}
	if !p.IsDirty() {
		t.Error("project should be dirty after the file appears")
	}
	if len(svc.delayed) == 0 {
		t.Error("a refresh should have been scheduled")
	}

	p.UpdateGraph()
	found := false
	for _, name := range p.FileNames(false, true) {
		if name == "/ws/x.ts" {
			found = true
		}
	}
	if !found {
		t.Error("created file should join the program")
	}
}

// Boundary: the pendingReload latch defers structural change to the reload
// path.
func TestPendingReloadDefersToReloadPath(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := newConfigured(t, svc, host, nil, false)

	p.SetPendingReload()
	if same := p.UpdateGraph(); !same {
		t.Error("updateGraph with a pending reload reports an unchanged file set")
	}
	if p.PendingReload() {
		t.Error("the latch should be cleared")
	}
	if len(svc.reloaded) != 1 || svc.reloaded[0] != p {
		t.Errorf("reload should be delegated to the service, got %v", svc.reloaded)
	}
}

func TestConfigFileChangeSetsPendingReload(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := newConfigured(t, svc, host, nil, false)

	svc.watch.TriggerFile("/ws/tsconfig.json", watcher.Changed)

	if !p.PendingReload() {
		t.Error("config file change should latch a reload")
	}
	if len(svc.delayed) == 0 {
		t.Error("config file change should schedule a refresh")
	}
}

func TestWildcardDirectoryWatchReconciliation(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := newConfigured(t, svc, host, nil, false)

	p.WatchWildcardDirectories(map[string]bool{"/ws/src": true, "/ws/lib": false})
	if got := len(svc.watch.WatchedDirectories()); got != 2 {
		t.Fatalf("expected 2 wildcard watches, got %d", got)
	}

	// /ws/lib flips to recursive, /ws/src goes away.
	p.WatchWildcardDirectories(map[string]bool{"/ws/lib": true})

	if reasons := svc.watch.CloseReasonsFor("/ws/lib"); len(reasons) != 1 || reasons[0] != watcher.ReasonRecursiveChanged {
		t.Errorf("lib close reasons = %v, want [RecursiveChanged]", reasons)
	}
	if reasons := svc.watch.CloseReasonsFor("/ws/src"); len(reasons) != 1 || reasons[0] != watcher.ReasonNotNeeded {
		t.Errorf("src close reasons = %v, want [NotNeeded]", reasons)
	}

	// An event under a watched wildcard directory marks dirty.
	p.UpdateGraph()
	svc.watch.TriggerDirectory("/ws/lib", "/ws/lib/new.ts")
	if !p.IsDirty() {
		t.Error("wildcard event should mark the project dirty")
	}
}

func TestTypeRootWatches(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := newConfigured(t, svc, host, nil, false)

	p.WatchTypeRoots("/ws")
	dirs := svc.watch.WatchedDirectories()
	if len(dirs) != 1 || dirs[0] != "/ws/node_modules/@types" {
		t.Fatalf("type root watches = %v", dirs)
	}

	p.UpdateGraph()
	svc.watch.TriggerDirectory("/ws/node_modules/@types", "/ws/node_modules/@types/node/index.d.ts")
	if !p.IsDirty() {
		t.Error("type root event should mark the project dirty")
	}
}

func TestUpdateErrorOnNoInputFiles(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := newConfigured(t, svc, host, nil, false)

	p.UpdateErrorOnNoInputFiles(false)
	errs := p.GetGlobalProjectErrors()
	if len(errs) != 1 || errs[0].Code != compiler.CodeNoInputFiles {
		t.Fatalf("expected the no-input-files diagnostic, got %v", errs)
	}

	// Adding it twice does not duplicate.
	p.UpdateErrorOnNoInputFiles(false)
	if len(p.GetGlobalProjectErrors()) != 1 {
		t.Error("diagnostic duplicated")
	}

	p.UpdateErrorOnNoInputFiles(true)
	if len(p.GetGlobalProjectErrors()) != 0 {
		t.Error("diagnostic should be removed once the project has files")
	}
}

func TestNoInputFilesSkippedWithExplicitFiles(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := newConfigured(t, svc, host, nil, true)

	p.UpdateErrorOnNoInputFiles(false)
	if len(p.GetGlobalProjectErrors()) != 0 {
		t.Error("explicit files lists do not produce the diagnostic")
	}
}

func TestConfiguredOpenRefCount(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := newConfigured(t, svc, host, nil, false)

	p.AddOpenRef()
	p.AddOpenRef()
	if p.ReleaseOpenRef() {
		t.Error("one reference remains, project should survive")
	}
	if !p.ReleaseOpenRef() {
		t.Error("last release should signal deletion")
	}
}

func TestConfiguredCloseDrainsAllWatcherKinds(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := newConfigured(t, svc, host, nil, false)

	p.AddMissingFileRoot("/ws/gone.ts")
	p.UpdateGraph()
	p.WatchWildcardDirectories(map[string]bool{"/ws/src": true})
	p.WatchTypeRoots("/ws")

	if svc.watch.LiveCount() == 0 {
		t.Fatal("expected live watches before close")
	}

	p.Close()
	if svc.watch.LiveCount() != 0 {
		t.Errorf("%d watches live after close", svc.watch.LiveCount())
	}
}

func TestConfiguredFileNamesIncludeConfigFile(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	host.addFile("/ws/a.ts", "const x = 1")
	p := newConfigured(t, svc, host, nil, false)

	info := svc.store.GetOrCreate("/ws/a.ts", false)
	p.AddRoot(info)
	p.UpdateGraph()

	withConfig := p.FileNames(false, false)
	hasConfig := false
	for _, name := range withConfig {
		if name == "/ws/tsconfig.json" {
			hasConfig = true
		}
	}
	if !hasConfig {
		t.Errorf("config file missing from %v", withConfig)
	}

	withoutConfig := p.FileNames(false, true)
	for _, name := range withoutConfig {
		if name == "/ws/tsconfig.json" {
			t.Error("config file should be suppressed")
		}
	}
}
