package project

import (
	"reflect"
	"testing"

	"github.com/ritzau/projectd/pkg/compiler"
)

// Scenario: baseline, then an added file, then a quiescent poll.
func TestChangeDeltaProtocol(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)

	openRoot(t, svc, p, "/ws/a.ts", "")
	p.UpdateGraph()

	baseline := p.GetChangesSinceVersion(nil)
	if baseline.Files == nil || baseline.Changes != nil {
		t.Fatalf("expected a baseline with files, got %+v", baseline)
	}
	if !reflect.DeepEqual(baseline.Files, []string{"/ws/a.ts"}) {
		t.Errorf("baseline files = %v", baseline.Files)
	}
	v0 := baseline.Info.Version

	openRoot(t, svc, p, "/ws/b.ts", "")
	p.UpdateGraph()

	diff := p.GetChangesSinceVersion(&v0)
	if diff.Changes == nil || diff.Files != nil {
		t.Fatalf("expected a diff, got %+v", diff)
	}
	if !reflect.DeepEqual(diff.Changes.Added, []string{"/ws/b.ts"}) {
		t.Errorf("added = %v", diff.Changes.Added)
	}
	if len(diff.Changes.Removed) != 0 || len(diff.Changes.Updated) != 0 {
		t.Errorf("unexpected removed/updated: %+v", diff.Changes)
	}
	v1 := diff.Info.Version
	if v1 != v0+1 {
		t.Errorf("expected version %d, got %d", v0+1, v1)
	}

	// No intervening change: a bare header.
	quiet := p.GetChangesSinceVersion(&v1)
	if quiet.Files != nil || quiet.Changes != nil {
		t.Errorf("expected info-only response, got %+v", quiet)
	}
	if quiet.Info.Version != v1 {
		t.Errorf("version = %d, want %d", quiet.Info.Version, v1)
	}
}

func TestChangeDeltaVersionMismatchReturnsBaseline(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)
	openRoot(t, svc, p, "/ws/a.ts", "")
	p.UpdateGraph()

	p.GetChangesSinceVersion(nil)

	stale := 999
	report := p.GetChangesSinceVersion(&stale)
	if report.Files == nil {
		t.Error("version mismatch should return the full baseline")
	}
}

func TestChangeDeltaReportsRemovals(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)

	a := openRoot(t, svc, p, "/ws/a.ts", "")
	openRoot(t, svc, p, "/ws/b.ts", "")
	p.UpdateGraph()

	baseline := p.GetChangesSinceVersion(nil)
	v := baseline.Info.Version

	p.RemoveFile(a, true)
	p.UpdateGraph()

	diff := p.GetChangesSinceVersion(&v)
	if diff.Changes == nil {
		t.Fatalf("expected a diff, got %+v", diff)
	}
	if !reflect.DeepEqual(diff.Changes.Removed, []string{"/ws/a.ts"}) {
		t.Errorf("removed = %v", diff.Changes.Removed)
	}
}

func TestChangeDeltaReportsEdits(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)

	info := openRoot(t, svc, p, "/ws/a.ts", "const x = 1")
	p.UpdateGraph()
	baseline := p.GetChangesSinceVersion(nil)
	v := baseline.Info.Version

	// An edit changes content but not structure.
	info.SetContent("const x = 2")
	p.UpdateGraph()

	diff := p.GetChangesSinceVersion(&v)
	if diff.Changes == nil {
		t.Fatalf("expected a diff carrying the update, got %+v", diff)
	}
	if !reflect.DeepEqual(diff.Changes.Updated, []string{"/ws/a.ts"}) {
		t.Errorf("updated = %v", diff.Changes.Updated)
	}
	if len(diff.Changes.Added) != 0 || len(diff.Changes.Removed) != 0 {
		t.Errorf("unexpected added/removed: %+v", diff.Changes)
	}
}

func TestDeltaInfoHeaderFields(t *testing.T) {
	svc := newFakeService()
	host := newFakeSystem()
	p := NewInferredProject(svc, host, &compiler.Options{}, "", nil)
	p.UpdateGraph()

	report := p.GetChangesSinceVersion(nil)
	if !report.Info.IsInferred {
		t.Error("inferred flag missing")
	}
	if report.Info.LanguageServiceDisabled {
		t.Error("language service should be enabled")
	}
	if report.Info.ProjectName != p.Name() {
		t.Errorf("project name = %q", report.Info.ProjectName)
	}
	if report.Info.Options == nil {
		t.Error("options missing from header")
	}
}
