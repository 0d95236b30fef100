package project

import (
	"fmt"
	"testing"

	"github.com/ritzau/projectd/pkg/compiler"
)

// wrappingService tags a wrapped language service so tests can inspect the
// wrapper chain.
type wrappingService struct {
	compiler.LanguageService
	tag string
}

type fakePlugin struct {
	tag           string
	panicOnCreate bool
	externalFiles []string
}

func (f *fakePlugin) Create(info PluginCreateInfo) compiler.LanguageService {
	if f.panicOnCreate {
		panic(fmt.Sprintf("plugin %s exploded", f.tag))
	}
	return &wrappingService{LanguageService: info.LanguageService, tag: f.tag}
}

func (f *fakePlugin) GetExternalFiles(p *Project) []string {
	return f.externalFiles
}

func pluginHost(modules map[string]*fakePlugin) *fakeSystem {
	host := newFakeSystem()
	host.require = func(initialDir, moduleName string) (PluginModuleFactory, error) {
		module, ok := modules[moduleName]
		if !ok {
			return nil, fmt.Errorf("module %q not found", moduleName)
		}
		return func() PluginModule { return module }, nil
	}
	return host
}

// Scenario: two plugins wrap in load order; the effective service is
// P2(P1(original)).
func TestPluginWrappingOrder(t *testing.T) {
	svc := newFakeService()
	host := pluginHost(map[string]*fakePlugin{
		"p1": {tag: "p1"},
		"p2": {tag: "p2"},
	})

	p := NewConfiguredProject("/ws/tsconfig.json", svc, host, &compiler.Options{},
		[]PluginImport{{Name: "p1"}, {Name: "p2"}}, false, nil)

	outer, ok := p.GetLanguageService(false).(*wrappingService)
	if !ok || outer.tag != "p2" {
		t.Fatalf("outermost wrapper should be p2, got %T", p.GetLanguageService(false))
	}
	inner, ok := outer.LanguageService.(*wrappingService)
	if !ok || inner.tag != "p1" {
		t.Fatalf("inner wrapper should be p1, got %T", outer.LanguageService)
	}
	if len(p.Plugins()) != 2 {
		t.Errorf("expected 2 activated plugins, got %d", len(p.Plugins()))
	}
}

// A plugin that throws from create is skipped; later plugins wrap the
// original service.
func TestPluginCreatePanicIsCaught(t *testing.T) {
	svc := newFakeService()
	host := pluginHost(map[string]*fakePlugin{
		"p1": {tag: "p1", panicOnCreate: true},
		"p2": {tag: "p2"},
	})

	p := NewConfiguredProject("/ws/tsconfig.json", svc, host, &compiler.Options{},
		[]PluginImport{{Name: "p1"}, {Name: "p2"}}, false, nil)

	outer, ok := p.GetLanguageService(false).(*wrappingService)
	if !ok || outer.tag != "p2" {
		t.Fatalf("p2 should wrap despite p1's failure, got %T", p.GetLanguageService(false))
	}
	if _, stillWrapped := outer.LanguageService.(*wrappingService); stillWrapped {
		t.Error("p2 should wrap the original service, not p1's wrapper")
	}
	if len(p.Plugins()) != 1 {
		t.Errorf("only p2 should be activated, got %d plugins", len(p.Plugins()))
	}
}

func TestUnresolvablePluginIsLoggedAndSkipped(t *testing.T) {
	svc := newFakeService()
	host := pluginHost(map[string]*fakePlugin{})

	p := NewConfiguredProject("/ws/tsconfig.json", svc, host, &compiler.Options{},
		[]PluginImport{{Name: "ghost"}}, false, nil)

	if len(p.Plugins()) != 0 {
		t.Error("unresolvable plugin should not activate")
	}
	// The project stays fully functional.
	p.UpdateGraph()
}

func TestGlobalPluginsAreLoaded(t *testing.T) {
	svc := newFakeService()
	svc.globals = []string{"global-plugin"}
	host := pluginHost(map[string]*fakePlugin{
		"global-plugin": {tag: "global"},
	})

	p := NewConfiguredProject("/ws/tsconfig.json", svc, host, &compiler.Options{}, nil, false, nil)

	outer, ok := p.GetLanguageService(false).(*wrappingService)
	if !ok || outer.tag != "global" {
		t.Errorf("global plugin should wrap, got %T", p.GetLanguageService(false))
	}
}

// Plugin-contributed external files are attached on update and detached
// when the plugin stops reporting them.
func TestPluginExternalFilesDiff(t *testing.T) {
	svc := newFakeService()
	plugin := &fakePlugin{tag: "ext", externalFiles: []string{"/ws/generated/api.d.ts"}}
	host := pluginHost(map[string]*fakePlugin{"ext": plugin})

	p := NewConfiguredProject("/ws/tsconfig.json", svc, host, &compiler.Options{},
		[]PluginImport{{Name: "ext"}}, false, nil)
	p.UpdateGraph()

	ext := p.ExternalFiles()
	if len(ext) != 1 || ext[0] != "/ws/generated/api.d.ts" {
		t.Fatalf("external files = %v", ext)
	}
	info := svc.store.Get("/ws/generated/api.d.ts")
	if info == nil || !info.IsAttachedTo(p) {
		t.Fatal("external file should be attached")
	}

	plugin.externalFiles = nil
	p.MarkAsDirty()
	p.UpdateGraph()

	if len(p.ExternalFiles()) != 0 {
		t.Error("external file list should be empty")
	}
	if info.IsAttachedTo(p) {
		t.Error("removed external file should be detached")
	}
}
