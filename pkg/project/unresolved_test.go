package project

import (
	"reflect"
	"testing"

	"github.com/ritzau/projectd/pkg/compiler"
)

func TestPackagePrefix(t *testing.T) {
	tests := []struct {
		specifier string
		want      string
	}{
		{"lodash", "lodash"},
		{"lodash/fp", "lodash"},
		{"lodash/fp/curry", "lodash"},
		{"@scope/pkg", "@scope/pkg"},
		{"@scope/pkg/sub", "@scope/pkg"},
		{"@scope/pkg/sub/deep", "@scope/pkg"},
	}
	for _, tt := range tests {
		if got := packagePrefix(tt.specifier); got != tt.want {
			t.Errorf("packagePrefix(%q) = %q, want %q", tt.specifier, got, tt.want)
		}
	}
}

// Every canonicalized specifier has no slash for plain names and exactly
// one slash for scoped names.
func TestPackagePrefixSlashCount(t *testing.T) {
	specifiers := []string{"a", "a/b", "a/b/c", "@s/p", "@s/p/q", "@s/p/q/r"}
	for _, s := range specifiers {
		got := packagePrefix(s)
		slashes := 0
		for _, c := range got {
			if c == '/' {
				slashes++
			}
		}
		scoped := s[0] == '@'
		if scoped && slashes != 1 {
			t.Errorf("scoped prefix %q has %d slashes", got, slashes)
		}
		if !scoped && slashes != 0 {
			t.Errorf("plain prefix %q has %d slashes", got, slashes)
		}
	}
}

// Scenario: a scoped unresolved import is trimmed to two segments; the
// relative one is excluded entirely.
func TestExtractUnresolvedImportsScoped(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	engine := &compiler.MockEngine{}

	file := &compiler.SourceFile{
		FileName: "/ws/a.ts",
		Path:     svc.ToPath("/ws/a.ts"),
		Version:  "1",
		Imports:  []string{"@scope/pkg/sub", "./rel"},
		ResolvedModules: map[string]*compiler.ResolvedModule{
			"@scope/pkg/sub": nil,
			"./rel":          nil,
		},
	}
	engine.Push(compiler.NewProgram([]*compiler.SourceFile{file}, nil, compiler.ReuseNone, &compiler.Options{}))

	p := NewInferredProject(svc, host, &compiler.Options{}, "", engine)
	p.UpdateGraph()

	cached, ok := p.CachedUnresolvedImports(file.Path)
	if !ok {
		t.Fatal("expected a cached entry for a.ts")
	}
	if !reflect.DeepEqual(cached, []string{"@scope/pkg"}) {
		t.Errorf("cached = %v, want [@scope/pkg]", cached)
	}
	if !reflect.DeepEqual(p.LastUnresolvedImports(), []string{"@scope/pkg"}) {
		t.Errorf("last unresolved = %v", p.LastUnresolvedImports())
	}
}

// The empty-list sentinel is persisted for files with nothing unresolved.
func TestExtractUnresolvedImportsEmptySentinel(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	engine := &compiler.MockEngine{}

	file := &compiler.SourceFile{
		FileName:        "/ws/clean.ts",
		Path:            svc.ToPath("/ws/clean.ts"),
		Version:         "1",
		ResolvedModules: map[string]*compiler.ResolvedModule{},
	}
	engine.Push(compiler.NewProgram([]*compiler.SourceFile{file}, nil, compiler.ReuseNone, &compiler.Options{}))

	p := NewInferredProject(svc, host, &compiler.Options{}, "", engine)
	p.UpdateGraph()

	cached, ok := p.CachedUnresolvedImports(file.Path)
	if !ok {
		t.Fatal("expected the empty sentinel to be cached")
	}
	if len(cached) != 0 {
		t.Errorf("expected empty list, got %v", cached)
	}
}

func TestUnresolvedImportsDeduplicatedAndSorted(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	engine := &compiler.MockEngine{}

	a := &compiler.SourceFile{
		FileName: "/ws/a.ts", Path: svc.ToPath("/ws/a.ts"), Version: "1",
		Imports: []string{"zlib-sync", "axios"},
		ResolvedModules: map[string]*compiler.ResolvedModule{
			"zlib-sync": nil, "axios": nil,
		},
	}
	b := &compiler.SourceFile{
		FileName: "/ws/b.ts", Path: svc.ToPath("/ws/b.ts"), Version: "1",
		Imports: []string{"axios/lib/core"},
		ResolvedModules: map[string]*compiler.ResolvedModule{
			"axios/lib/core": nil,
		},
	}
	engine.Push(compiler.NewProgram([]*compiler.SourceFile{a, b}, nil, compiler.ReuseNone, &compiler.Options{}))

	p := NewInferredProject(svc, host, &compiler.Options{}, "", engine)
	p.UpdateGraph()

	want := []string{"axios", "zlib-sync"}
	if got := p.LastUnresolvedImports(); !reflect.DeepEqual(got, want) {
		t.Errorf("unresolved = %v, want %v", got, want)
	}
}
