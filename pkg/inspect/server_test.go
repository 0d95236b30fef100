package inspect

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ritzau/projectd/pkg/config"
	"github.com/ritzau/projectd/pkg/pubsub"
	"github.com/ritzau/projectd/pkg/service"
	"github.com/ritzau/projectd/pkg/watcher"
)

func newTestServer(t *testing.T) (*Server, *service.Service, string) {
	t.Helper()
	ws := t.TempDir()

	if err := os.WriteFile(filepath.Join(ws, "tsconfig.json"), []byte(`{"files": ["a.ts"]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws, "a.ts"), []byte("const x = 1"), 0644); err != nil {
		t.Fatal(err)
	}

	pub := pubsub.NewSSEPublisher()
	svc := service.NewService(service.Options{
		Config:             &config.Config{},
		Watch:              watcher.NewMockHost(),
		Pub:                pub,
		CurrentDirectory:   ws,
		SynchronousUpdates: true,
	})
	t.Cleanup(svc.Shutdown)

	if _, err := svc.OpenConfiguredProject(filepath.Join(ws, "tsconfig.json")); err != nil {
		t.Fatal(err)
	}
	return NewServer(svc, pub), svc, ws
}

func TestHandleProjects(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/projects", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var statuses []pubsub.ProjectStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Kind != "Configured" {
		t.Errorf("statuses = %+v", statuses)
	}
	if statuses[0].FileCount != 1 {
		t.Errorf("file count = %d", statuses[0].FileCount)
	}
}

func TestHandleProjectFiles(t *testing.T) {
	server, svc, _ := newTestServer(t)
	name := svc.Projects()[0].Name()

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/projects/"+name+"/files", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		ProjectName string   `json:"projectName"`
		Files       []string `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Files) != 2 { // a.ts plus the config file
		t.Errorf("files = %v", body.Files)
	}
}

func TestHandleProjectNotFound(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/projects/nope/files", nil))
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleCycles(t *testing.T) {
	server, svc, _ := newTestServer(t)
	name := svc.Projects()[0].Name()

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/projects/"+name+"/cycles", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Cycles []any `json:"cycles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Cycles) != 0 {
		t.Errorf("unexpected cycles %v", body.Cycles)
	}
}
