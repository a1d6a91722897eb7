package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ldi/telepathic/internal/assist"
	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/internal/extract"
	"github.com/ldi/telepathic/internal/location"
	"github.com/ldi/telepathic/internal/orchestrator"
	"github.com/ldi/telepathic/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "Telepathic"
	ServerVersion = "0.1.0"
)

// Deps are the services the tools call into. Classifier, Extractor and
// Location are optional; their tools are left out when nil.
type Deps struct {
	DB           *db.DB
	Orchestrator *orchestrator.Orchestrator
	Classifier   *assist.Classifier
	Extractor    *extract.Extractor
	Location     *location.Service
}

// NewServer creates a new MCP server.
func NewServer(d Deps) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion)
	orch := d.Orchestrator

	// Tasks
	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List to-do tasks. Completed tasks are left out unless include_completed is set."),
		mcp.WithNumber("project_id", mcp.Description("Only tasks of this project")),
		mcp.WithBoolean("include_completed", mcp.Description("Include completed tasks")),
	), listTasksHandler(d.DB))

	s.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Add a task. An assist (calendar, maps, phone, email, AI, browser) is attached when one applies."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithNumber("project_id", mcp.Description("Project to add the task to")),
	), addTaskHandler(orch))

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as completed, or reopen it."),
		mcp.WithNumber("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithBoolean("completed", mcp.Description("Completion state (default true)")),
	), completeTaskHandler(orch))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task."),
		mcp.WithNumber("id", mcp.Description("Task id"), mcp.Required()),
	), deleteTaskHandler(orch))

	s.AddTool(mcp.NewTool("clean_completed",
		mcp.WithDescription("Delete every completed task."),
	), cleanCompletedHandler(orch))

	s.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List projects with their tasks."),
	), listProjectsHandler(d.DB))

	s.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the categories projects can be filed under."),
	), listCategoriesHandler(d.DB))

	// Priorities
	s.AddTool(mcp.NewTool("get_priority_tasks",
		mcp.WithDescription("Get the current greeting and the tasks that need attention now."),
	), getPriorityTasksHandler(orch))

	s.AddTool(mcp.NewTool("refresh_priorities",
		mcp.WithDescription("Re-evaluate which tasks need attention now and return the result."),
	), refreshPrioritiesHandler(orch))

	// Assists
	s.AddTool(mcp.NewTool("run_assist",
		mcp.WithDescription("Perform the assist attached to a task."),
		mcp.WithNumber("id", mcp.Description("Task id"), mcp.Required()),
	), runAssistHandler(orch))

	if d.Classifier != nil {
		s.AddTool(mcp.NewTool("classify_task",
			mcp.WithDescription("Work out which assist applies to a task and save it."),
			mcp.WithNumber("id", mcp.Description("Task id"), mcp.Required()),
		), classifyTaskHandler(d.DB, d.Classifier, orch))
	}

	if d.Location != nil {
		s.AddTools(location.NewTool(d.Location))
	}

	// Extraction
	if d.Extractor != nil {
		s.AddTool(mcp.NewTool("extract_tasks",
			mcp.WithDescription("Extract projects and tasks from free text. Results are staged and must be committed to take effect."),
			mcp.WithString("text", mcp.Description("Notes or a transcript"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session ID for staging (defaults to 'default').")),
		), extractTasksHandler(d.DB, d.Extractor))

		s.AddTool(mcp.NewTool("list_staged_tasks",
			mcp.WithDescription("List the extracted projects and tasks staged for a session."),
			mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
		), listStagedHandler(d.DB))

		s.AddTool(mcp.NewTool("commit_staged_tasks",
			mcp.WithDescription("Save everything staged for a session."),
			mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
		), commitStagedHandler(d.DB, d.Extractor, orch))
	}

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func taskID(request mcp.CallToolRequest) (int64, error) {
	id := int64(mcp.ParseInt(request, "id", 0))
	if id <= 0 {
		return 0, fmt.Errorf("id is required")
	}
	return id, nil
}

func optionalProjectID(request mcp.CallToolRequest) *int64 {
	args, _ := request.Params.Arguments.(map[string]any)
	if _, ok := args["project_id"]; !ok {
		return nil
	}
	id := int64(mcp.ParseInt(request, "project_id", 0))
	if id <= 0 {
		return nil
	}
	return &id
}

func listTasksHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		includeCompleted := mcp.ParseBoolean(request, "include_completed", false)

		tasks, err := database.ListTasks(ctx, optionalProjectID(request))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		out := make([]*models.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.IsCompleted && !includeCompleted {
				continue
			}
			out = append(out, t)
		}
		return jsonResult(map[string]any{"tasks": out})
	}
}

func addTaskHandler(orch *orchestrator.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := mcp.ParseString(request, "title", "")
		task, err := orch.AddTask(ctx, title, optionalProjectID(request))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(task)
	}
}

func completeTaskHandler(orch *orchestrator.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := taskID(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		completed := mcp.ParseBoolean(request, "completed", true)
		if orch.Task(id) == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task %d not found", id)), nil
		}
		if err := orch.ToggleComplete(ctx, id, completed); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if completed {
			return mcp.NewToolResultText(fmt.Sprintf("Task %d completed", id)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Task %d reopened", id)), nil
	}
}

func deleteTaskHandler(orch *orchestrator.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := taskID(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := orch.DeleteTask(ctx, id); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

func cleanCompletedHandler(orch *orchestrator.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := orch.CleanCompleted(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Deleted %d completed tasks", n)), nil
	}
}

func listProjectsHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := database.ListProjects(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if projects == nil {
			projects = []*models.Project{}
		}
		return jsonResult(map[string]any{"projects": projects})
	}
}

func listCategoriesHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		categories, err := database.ListCategories(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if categories == nil {
			categories = []*models.Category{}
		}
		return jsonResult(map[string]any{"categories": categories})
	}
}

type priorityResponse struct {
	Greeting string                    `json:"greeting"`
	Tasks    []models.PriorityTaskView `json:"tasks"`
}

func priorities(orch *orchestrator.Orchestrator) priorityResponse {
	return priorityResponse{Greeting: orch.Greeting(), Tasks: orch.PriorityTasks()}
}

func getPriorityTasksHandler(orch *orchestrator.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(priorities(orch))
	}
}

func refreshPrioritiesHandler(orch *orchestrator.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := orch.Load(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		orch.Refresh(ctx)
		return jsonResult(priorities(orch))
	}
}

func runAssistHandler(orch *orchestrator.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := taskID(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		task := orch.Task(id)
		if task == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task %d not found", id)), nil
		}
		if !task.HasAssist() {
			return mcp.NewToolResultError(fmt.Sprintf("Task %d has no assist", id)), nil
		}
		orch.RunAssist(ctx, id)
		return mcp.NewToolResultText(fmt.Sprintf("Ran %s assist for task %d", task.AssistType, id)), nil
	}
}

func classifyTaskHandler(database *db.DB, classifier *assist.Classifier, orch *orchestrator.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := taskID(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		task, err := database.GetTask(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if task == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task %d not found", id)), nil
		}

		found, err := classifier.AnalyzeAndSave(ctx, database, task)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if found && orch != nil {
			if err := orch.Load(ctx); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		return jsonResult(models.AssistClassification{AssistType: task.AssistType, AssistData: task.AssistData})
	}
}

func extractTasksHandler(database *db.DB, extractor *extract.Extractor) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text := mcp.ParseString(request, "text", "")
		sessionID := mcp.ParseString(request, "session_id", "default")
		if strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("text is required"), nil
		}

		result, err := extractor.FromTranscript(ctx, text)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		database.Staging.Stage(sessionID, result)

		n := len(result.StandaloneTasks)
		for _, p := range result.Projects {
			n += len(p.Tasks)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Staged %d projects and %d tasks for session '%s'. Call 'commit_staged_tasks' to save them.", len(result.Projects), n, sessionID)), nil
	}
}

func listStagedHandler(database *db.DB) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		return jsonResult(database.Staging.Peek(sessionID))
	}
}

func commitStagedHandler(database *db.DB, extractor *extract.Extractor, orch *orchestrator.Orchestrator) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		created, err := extractor.Save(ctx, database.Staging.GetAndClear(sessionID))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if orch != nil {
			if err := orch.Load(ctx); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		return mcp.NewToolResultText(fmt.Sprintf("Saved %d tasks", len(created))), nil
	}
}
