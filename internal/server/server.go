package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ldi/telepathic/embed/web"
	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/internal/orchestrator"
	"github.com/ldi/telepathic/pkg/models"
	"github.com/rs/cors"
)

type Server struct {
	db      *db.DB
	orch    *orchestrator.Orchestrator
	origins []string
	server  *http.Server
}

// NewServer serves the task list and the priority view. An empty origins
// list allows any origin.
func NewServer(database *db.DB, orch *orchestrator.Orchestrator, origins []string) *Server {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{db: database, orch: orch, origins: origins}
}

// Handler returns the API and the dashboard wrapped in CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("POST /api/tasks", s.handleAddTask)
	mux.HandleFunc("POST /api/tasks/clean", s.handleClean)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.handleComplete)
	mux.HandleFunc("POST /api/tasks/{id}/assist", s.handleAssist)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/projects", s.handleProjects)
	mux.HandleFunc("GET /api/priorities", s.handlePriorities)
	mux.HandleFunc("POST /api/priorities/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/categories/stats", s.handleCategoryStats)

	// Static files
	mux.Handle("/", http.FileServer(http.FS(web.Assets)))

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(mux)
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	logging.Info("server", "Listening on %s", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	var projectID *int64
	if raw := r.URL.Query().Get("project"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid project id", http.StatusBadRequest)
			return
		}
		projectID = &id
	}
	tasks, err := s.db.ListTasks(r.Context(), projectID)
	if tasks == nil {
		tasks = []*models.Task{}
	}
	s.respond(w, tasks, err)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title     string `json:"title"`
		ProjectID *int64 `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	task, err := s.orch.AddTask(r.Context(), body.Title, body.ProjectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respondStatus(w, http.StatusCreated, task)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	completed := true
	if raw := r.URL.Query().Get("completed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "invalid completed flag", http.StatusBadRequest)
			return
		}
		completed = v
	}
	if s.orch.Task(id) == nil {
		http.Error(w, fmt.Sprintf("not found: %d", id), http.StatusNotFound)
		return
	}
	if err := s.orch.ToggleComplete(r.Context(), id, completed); err != nil {
		s.respond(w, nil, err)
		return
	}
	s.respond(w, s.orch.Task(id), nil)
}

func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	task := s.orch.Task(id)
	if task == nil {
		http.Error(w, fmt.Sprintf("not found: %d", id), http.StatusNotFound)
		return
	}
	if !task.HasAssist() {
		http.Error(w, "task has no assist", http.StatusUnprocessableEntity)
		return
	}
	s.orch.RunAssist(r.Context(), id)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if err := s.orch.DeleteTask(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	n, err := s.orch.CleanCompleted(r.Context())
	s.respond(w, map[string]int64{"deleted": n}, err)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.db.ListProjects(r.Context())
	if projects == nil {
		projects = []*models.Project{}
	}
	s.respond(w, projects, err)
}

type prioritiesResponse struct {
	Greeting string                    `json:"greeting"`
	Visible  bool                      `json:"visible"`
	Busy     bool                      `json:"busy"`
	Tasks    []models.PriorityTaskView `json:"tasks"`
}

func (s *Server) priorities() prioritiesResponse {
	return prioritiesResponse{
		Greeting: s.orch.Greeting(),
		Visible:  s.orch.HasPriorityTasks(),
		Busy:     s.orch.IsBusy(),
		Tasks:    s.orch.PriorityTasks(),
	}
}

func (s *Server) handlePriorities(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.priorities(), nil)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Load(r.Context()); err != nil {
		s.respond(w, nil, err)
		return
	}
	s.orch.Refresh(r.Context())
	s.respond(w, s.priorities(), nil)
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.CategoryTaskCounts(r.Context())
	if counts == nil {
		counts = []models.CategoryCount{}
	}
	s.respond(w, counts, err)
}

func (s *Server) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		logging.Warn("server", "Request failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.respondStatus(w, http.StatusOK, data)
}

func (s *Server) respondStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
