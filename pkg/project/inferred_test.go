package project

import (
	"strings"
	"testing"

	"github.com/ritzau/projectd/pkg/compiler"
)

// Scenario: adding a JS root flips the project to JS flavor and back.
func TestInferredProjectJsFlip(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)

	openRoot(t, svc, p, "/ws/a.ts", "")
	if p.IsJsInferredProject() {
		t.Fatal("TS-only project flagged as JS")
	}

	b := openRoot(t, svc, p, "/ws/b.js", "")
	if !p.IsJsInferredProject() {
		t.Fatal("adding a JS root should flip the flag")
	}
	opts := p.CompilerOptions()
	if !opts.AllowJs {
		t.Error("allowJs should be forced on")
	}
	if opts.MaxNodeModuleJsDepth == nil || *opts.MaxNodeModuleJsDepth != 2 {
		t.Errorf("maxNodeModuleJsDepth = %v, want 2", opts.MaxNodeModuleJsDepth)
	}

	p.RemoveFile(b, true)
	if p.IsJsInferredProject() {
		t.Error("removing the only JS root should flip the flag back")
	}
	if p.CompilerOptions().MaxNodeModuleJsDepth != nil {
		t.Error("maxNodeModuleJsDepth should be cleared")
	}
}

func TestInferredProjectDeclarationRootDoesNotFlip(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)

	openRoot(t, svc, p, "/ws/types.d.ts", "")
	if p.IsJsInferredProject() {
		t.Error("declaration files are not JS sources")
	}
}

func TestInferredSetCompilerOptionsClonesInput(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)

	caller := &compiler.Options{Module: "commonjs"}
	p.SetCompilerOptions(caller)

	if caller.AllowJs {
		t.Error("caller's options mutated: allowJs set")
	}
	if caller.AllowNonTsExtensions {
		t.Error("caller's options mutated: allowNonTsExtensions set")
	}
	if !p.CompilerOptions().AllowJs {
		t.Error("project options should force allowJs")
	}
}

func TestInferredProjectNamesAreSyntheticAndIncreasing(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p1 := NewInferredProject(svc, host, &compiler.Options{}, "", nil)
	p2 := NewInferredProject(svc, host, &compiler.Options{}, "", nil)

	if !strings.HasPrefix(p1.Name(), "/dev/null/inferredProject") {
		t.Errorf("unexpected name %q", p1.Name())
	}
	if p1.Name() == p2.Name() {
		t.Error("names must be unique")
	}
}

func TestInferredProjectRootPath(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()

	configured := NewInferredProject(svc, host, &compiler.Options{}, "/home/user/app", nil)
	if got := configured.GetProjectRootPath(); got != "/home/user/app" {
		t.Errorf("configured root = %q", got)
	}

	perRoot := NewInferredProject(svc, host, &compiler.Options{}, "", nil)
	openRoot(t, svc, perRoot, "/ws/src/a.ts", "")
	if got := perRoot.GetProjectRootPath(); got != "/ws/src" {
		t.Errorf("per-root mode root = %q", got)
	}

	svc.singleInferred = true
	single := NewInferredProject(svc, host, &compiler.Options{}, "", nil)
	openRoot(t, svc, single, "/ws/src/b.ts", "")
	if got := single.GetProjectRootPath(); got != "" {
		t.Errorf("single-inferred mode root = %q, want empty", got)
	}
}

func TestInferredTypeAcquisition(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)

	openRoot(t, svc, p, "/ws/a.js", "")
	openRoot(t, svc, p, "/ws/types.d.ts", "")

	ta := p.GetTypeAcquisition()
	if ta.Enable == nil || !*ta.Enable {
		t.Error("all-JS roots should enable type acquisition")
	}
	if ta.Include == nil || ta.Exclude == nil {
		t.Error("include/exclude must be empty lists, not nil")
	}

	openRoot(t, svc, p, "/ws/b.ts", "")
	ta = p.GetTypeAcquisition()
	if *ta.Enable {
		t.Error("a TS root should disable type acquisition")
	}
}

func TestInferredRootsManageConfigFileWatches(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)

	info := openRoot(t, svc, p, "/ws/a.ts", "")
	if svc.configWatchStarts != 1 {
		t.Errorf("expected 1 config watch start, got %d", svc.configWatchStarts)
	}

	p.RemoveFile(info, true)
	if svc.configWatchStops != 1 {
		t.Errorf("expected 1 config watch stop, got %d", svc.configWatchStops)
	}
}
