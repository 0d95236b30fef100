package resolution

import (
	"testing"

	"github.com/ritzau/projectd/pkg/compiler"
	"github.com/ritzau/projectd/pkg/paths"
	"github.com/ritzau/projectd/pkg/watcher"
)

type fakeHost struct {
	files  map[string]bool
	probes int
}

func (h *fakeHost) FileExists(fileName string) bool {
	h.probes++
	return h.files[paths.NormalizePath(fileName)]
}

func (h *fakeHost) ToPath(fileName string) paths.Path {
	return paths.ToPath(fileName, "/ws", true)
}

func newFakeHost(files ...string) *fakeHost {
	m := make(map[string]bool)
	for _, f := range files {
		m[paths.NormalizePath(f)] = true
	}
	return &fakeHost{files: m}
}

func defaultOptions() func() *compiler.Options {
	opts := &compiler.Options{}
	return func() *compiler.Options { return opts }
}

func TestResolveRelative(t *testing.T) {
	host := newFakeHost("/ws/src/util.ts")
	cache := NewCache(host, defaultOptions(), nil, nil)

	r := cache.Resolve("./util", "/ws/src/main.ts")
	if r == nil || r.ResolvedFileName != "/ws/src/util.ts" {
		t.Fatalf("unexpected resolution %+v", r)
	}
	if r.IsExternalLibraryImport {
		t.Error("relative import marked external")
	}
}

func TestResolveBareFromNodeModules(t *testing.T) {
	host := newFakeHost("/ws/node_modules/lodash/index.d.ts")
	cache := NewCache(host, defaultOptions(), nil, nil)

	r := cache.Resolve("lodash", "/ws/src/main.ts")
	if r == nil || r.ResolvedFileName != "/ws/node_modules/lodash/index.d.ts" {
		t.Fatalf("unexpected resolution %+v", r)
	}
	if !r.IsExternalLibraryImport {
		t.Error("node_modules import not marked external")
	}
}

func TestResolveScopedTypesFallback(t *testing.T) {
	host := newFakeHost("/ws/node_modules/@types/scope__pkg/index.d.ts")
	cache := NewCache(host, defaultOptions(), nil, nil)

	r := cache.Resolve("@scope/pkg", "/ws/src/main.ts")
	if r == nil || r.ResolvedFileName != "/ws/node_modules/@types/scope__pkg/index.d.ts" {
		t.Fatalf("unexpected resolution %+v", r)
	}
}

func TestResolvePathsMapping(t *testing.T) {
	host := newFakeHost("/ws/src/app/feature.ts")
	opts := &compiler.Options{
		BaseURL: "/ws",
		Paths:   map[string][]string{"@app/*": {"src/app/*"}},
	}
	cache := NewCache(host, func() *compiler.Options { return opts }, nil, nil)

	r := cache.Resolve("@app/feature", "/ws/src/main.ts")
	if r == nil || r.ResolvedFileName != "/ws/src/app/feature.ts" {
		t.Fatalf("unexpected resolution %+v", r)
	}
}

func TestResolveMemoized(t *testing.T) {
	host := newFakeHost("/ws/src/util.ts")
	cache := NewCache(host, defaultOptions(), nil, nil)

	cache.Resolve("./util", "/ws/src/main.ts")
	probes := host.probes
	cache.Resolve("./util", "/ws/src/main.ts")

	if host.probes != probes {
		t.Error("second resolve should hit the memo, not the file system")
	}
}

func TestRecordingReportsChangedFiles(t *testing.T) {
	host := newFakeHost()
	cache := NewCache(host, defaultOptions(), nil, nil)

	// Initial failed resolution is cached.
	if r := cache.Resolve("lodash", "/ws/src/main.ts"); r != nil {
		t.Fatalf("expected failure, got %+v", r)
	}

	// Package appears on disk; the file is invalidated and re-resolved
	// during a recording window.
	host.files[paths.NormalizePath("/ws/node_modules/lodash/index.d.ts")] = true
	mainPath := host.ToPath("/ws/src/main.ts")
	cache.Invalidate(mainPath)

	cache.StartRecording()
	if !cache.HasInvalidatedResolution(mainPath) {
		t.Fatal("expected invalidated resolution")
	}
	if r := cache.Resolve("lodash", "/ws/src/main.ts"); r == nil {
		t.Fatal("expected resolution to succeed after install")
	}
	changed := cache.FinishRecording()

	if len(changed) != 1 || changed[0] != mainPath {
		t.Errorf("expected [main.ts] changed, got %v", changed)
	}
	if cache.HasInvalidatedResolution(mainPath) {
		t.Error("invalidation mark should be consumed by FinishRecording")
	}
}

func TestFailedLookupWatcherInvalidates(t *testing.T) {
	host := newFakeHost()
	watchHost := watcher.NewMockHost()
	invalidations := 0

	var cache *Cache
	cache = NewCache(host, defaultOptions(),
		func(location string, cb watcher.FileCallback) watcher.FileWatcher {
			return watchHost.WatchFile(location, cb)
		},
		func() { invalidations++ },
	)

	cache.Resolve("lodash", "/ws/src/main.ts")
	watched := watchHost.WatchedFiles()
	if len(watched) == 0 {
		t.Fatal("expected failed lookup locations to be watched")
	}

	watchHost.TriggerFile(watched[0], watcher.Created)
	if invalidations != 1 {
		t.Errorf("expected 1 invalidation callback, got %d", invalidations)
	}
	if !cache.HasInvalidatedResolution(host.ToPath("/ws/src/main.ts")) {
		t.Error("containing file not invalidated by failed-lookup event")
	}
}

func TestDropFileReleasesWatches(t *testing.T) {
	host := newFakeHost()
	watchHost := watcher.NewMockHost()
	cache := NewCache(host, defaultOptions(),
		func(location string, cb watcher.FileCallback) watcher.FileWatcher {
			return watchHost.WatchFile(location, cb)
		},
		nil,
	)

	cache.Resolve("lodash", "/ws/src/main.ts")
	if watchHost.LiveCount() == 0 {
		t.Fatal("expected live failed-lookup watches")
	}

	cache.DropFile(host.ToPath("/ws/src/main.ts"))
	if watchHost.LiveCount() != 0 {
		t.Error("dropping the only containing file should close its watches")
	}
	for _, c := range watchHost.Closed() {
		if c.Reason != watcher.ReasonNotNeeded {
			t.Errorf("expected NotNeeded close, got %v", c.Reason)
		}
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	host := newFakeHost()
	watchHost := watcher.NewMockHost()
	cache := NewCache(host, defaultOptions(),
		func(location string, cb watcher.FileCallback) watcher.FileWatcher {
			return watchHost.WatchFile(location, cb)
		},
		nil,
	)

	cache.Resolve("lodash", "/ws/src/main.ts")
	cache.Close()

	if watchHost.LiveCount() != 0 {
		t.Error("close should drain all failed-lookup watches")
	}
	for _, c := range watchHost.Closed() {
		if c.Reason != watcher.ReasonProjectClose {
			t.Errorf("expected ProjectClose reason, got %v", c.Reason)
		}
	}
}

func TestTypesPackageName(t *testing.T) {
	if TypesPackageName("lodash") != "lodash" {
		t.Error("plain names map to themselves")
	}
	if TypesPackageName("@scope/pkg") != "scope__pkg" {
		t.Error("scoped names use the double-underscore convention")
	}
}
