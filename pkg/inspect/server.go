package inspect

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ritzau/projectd/pkg/graph"
	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/project"
	"github.com/ritzau/projectd/pkg/pubsub"
	"github.com/ritzau/projectd/pkg/service"
)

// Server is the observability surface around the project service: JSON
// endpoints for project state and an SSE stream of graph deltas. The core
// itself owns no wire protocol. Handlers run on net/http goroutines, so
// every project read goes through the service's ReadProjects/ReadProject,
// which execute on the service task; no project state leaves those
// callbacks except as copied response values.
type Server struct {
	svc    *service.Service
	pub    *pubsub.SSEPublisher
	router *mux.Router
}

// NewServer creates an inspection server over a service and its publisher.
func NewServer(svc *service.Service, pub *pubsub.SSEPublisher) *Server {
	s := &Server{
		svc:    svc,
		pub:    pub,
		router: mux.NewRouter().SkipClean(true),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)
	s.router.HandleFunc("/api/projects", s.handleProjects).Methods("GET")
	s.router.HandleFunc("/api/projects/{name:.*}/files", s.handleProjectFiles).Methods("GET")
	s.router.HandleFunc("/api/projects/{name:.*}/unresolved", s.handleUnresolved).Methods("GET")
	s.router.HandleFunc("/api/projects/{name:.*}/cycles", s.handleCycles).Methods("GET")
	s.router.HandleFunc("/events/{topic:.*}", s.handleSubscribe).Methods("GET")
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	var statuses []pubsub.ProjectStatus
	s.svc.ReadProjects(func(projects []*project.Project) {
		for _, p := range projects {
			statuses = append(statuses, pubsub.ProjectStatus{
				ProjectName:      p.Name(),
				Kind:             p.Kind().String(),
				FileCount:        len(p.FileNames(false, true)),
				StateVersion:     p.StateVersion(),
				StructureVersion: p.StructureVersion(),
			})
		}
	})
	writeJSON(w, statuses)
}

func (s *Server) handleProjectFiles(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	found := s.svc.ReadProject(mux.Vars(r)["name"], func(p *project.Project) {
		payload = map[string]any{
			"projectName": p.Name(),
			"files":       p.FileNames(false, false),
			"missing":     p.MissingFilePaths(),
		}
	})
	if !found {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	writeJSON(w, payload)
}

func (s *Server) handleUnresolved(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	found := s.svc.ReadProject(mux.Vars(r)["name"], func(p *project.Project) {
		payload = map[string]any{
			"projectName": p.Name(),
			"unresolved":  p.LastUnresolvedImports(),
		}
	})
	if !found {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	writeJSON(w, payload)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	found := s.svc.ReadProject(mux.Vars(r)["name"], func(p *project.Project) {
		g := graph.NewImportGraph()
		if program := p.CurrentProgram(); program != nil {
			for _, file := range program.SourceFiles() {
				g.AddFile(file.Path)
				for _, resolved := range file.ResolvedModules {
					if resolved == nil {
						continue
					}
					target := s.svc.ToPath(resolved.ResolvedFileName)
					if program.ContainsPath(target) {
						g.AddImport(file.Path, target)
					}
				}
			}
		}
		payload = map[string]any{
			"projectName": p.Name(),
			"cycles":      g.Cycles(),
		}
	})
	if !found {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	writeJSON(w, payload)
}

// handleSubscribe streams pubsub events for a topic as SSE.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.pub.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logging.Error("failed to marshal event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

// Start runs the HTTP server on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("inspection server listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
