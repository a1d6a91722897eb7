package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ldi/telepathic/internal/ai"
	"github.com/ldi/telepathic/internal/assist"
	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/internal/extract"
	"github.com/ldi/telepathic/internal/location"
	"github.com/ldi/telepathic/internal/notify"
	"github.com/ldi/telepathic/internal/orchestrator"
	"github.com/ldi/telepathic/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type testEnv struct {
	server *server.MCPServer
	db     *db.DB
	fake   *ai.Fake
	orch   *orchestrator.Orchestrator
	launch *assist.RecordingLauncher
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Init(ctx); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	database.SetBoolPreference(ctx, db.PrefTelepathyEnabled, true)
	database.SetPreference(ctx, db.PrefAPIKey, "sk-test")

	fake := &ai.Fake{}
	svc := ai.NewFakeService(fake)
	loc := location.NewService(nil)
	classifier := assist.NewClassifier(svc)
	launcher := &assist.RecordingLauncher{}
	notes := &notify.Recorder{}

	orch := orchestrator.NewOrchestrator(orchestrator.Options{
		Store:      database,
		AI:         svc,
		Location:   loc,
		Classifier: classifier,
		Executor:   assist.NewExecutor(launcher, nil, svc, loc, notes),
		Notifier:   notes,
	})
	if err := orch.LoadSettings(ctx); err != nil {
		t.Fatal(err)
	}
	if err := orch.Load(ctx); err != nil {
		t.Fatal(err)
	}

	s := NewServer(Deps{
		DB:           database,
		Orchestrator: orch,
		Classifier:   classifier,
		Extractor:    extract.NewExtractor(svc, database, classifier),
		Location:     loc,
	})
	return &testEnv{server: s, db: database, fake: fake, orch: orch, launch: launcher}
}

func (e *testEnv) call(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := e.server.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler %s failed: %v", name, err)
	}
	return result
}

func resultText(result *mcp.CallToolResult) string {
	return result.Content[0].(mcp.TextContent).Text
}

func TestServerInitialization(t *testing.T) {
	env := setupServer(t)
	stdio := server.NewStdioServer(env.server)

	r, w := io.Pipe()
	stdout := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go stdio.Listen(ctx, r, stdout)

	params := mcp.InitializeParams{
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		ClientInfo:      mcp.Implementation{Name: "test-client", Version: "1.0.0"},
	}
	data, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  params,
	})
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(data)
	w.Write([]byte("\n"))

	time.Sleep(200 * time.Millisecond)

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, stdout.String())
	}
	if resp.ID != 1 || resp.Result.ServerInfo.Name != ServerName {
		t.Errorf("unexpected initialize response: %s", stdout.String())
	}
}

func TestRegisteredTools(t *testing.T) {
	env := setupServer(t)
	for _, name := range []string{
		"list_tasks", "add_task", "complete_task", "delete_task", "clean_completed",
		"list_projects", "list_categories", "get_priority_tasks", "refresh_priorities", "run_assist",
		"classify_task", "is_nearby", "extract_tasks", "list_staged_tasks", "commit_staged_tasks",
	} {
		if env.server.GetTool(name) == nil {
			t.Errorf("tool %s is not registered", name)
		}
	}

	bare := NewServer(Deps{DB: env.db, Orchestrator: env.orch})
	if bare.GetTool("classify_task") != nil || bare.GetTool("is_nearby") != nil {
		t.Error("optional tools should be left out without their services")
	}
}

func TestTaskTools(t *testing.T) {
	env := setupServer(t)
	env.fake.StructuredFunc = func(ctx context.Context, prompt string, out any, tools []server.ServerTool) error {
		if c, ok := out.(*models.AssistClassification); ok && strings.Contains(prompt, "Email Sam") {
			c.AssistType = models.AssistEmail
			c.AssistData = "sam@example.com"
		}
		return nil
	}

	var added models.Task
	t.Run("add_task", func(t *testing.T) {
		result := env.call(t, "add_task", map[string]any{"title": "Email Sam about the lease"})
		if result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(result))
		}
		if err := json.Unmarshal([]byte(resultText(result)), &added); err != nil {
			t.Fatalf("Failed to unmarshal task: %v", err)
		}
		if added.AssistType != models.AssistEmail {
			t.Errorf("expected email assist, got %v", added.AssistType)
		}

		if result := env.call(t, "add_task", map[string]any{"title": ""}); !result.IsError {
			t.Error("expected an error for an empty title")
		}
	})

	t.Run("run_assist", func(t *testing.T) {
		result := env.call(t, "run_assist", map[string]any{"id": float64(added.ID)})
		if result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(result))
		}
		launches := env.launch.Launches()
		if len(launches) != 1 || launches[0].Action != "email" || launches[0].Target != "sam@example.com" {
			t.Errorf("unexpected launches %+v", launches)
		}
	})

	t.Run("complete_task and list_tasks", func(t *testing.T) {
		env.call(t, "add_task", map[string]any{"title": "Water plants"})
		if result := env.call(t, "complete_task", map[string]any{"id": float64(added.ID)}); result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(result))
		}

		var resp struct {
			Tasks []models.Task `json:"tasks"`
		}
		json.Unmarshal([]byte(resultText(env.call(t, "list_tasks", map[string]any{}))), &resp)
		if len(resp.Tasks) != 1 || resp.Tasks[0].Title != "Water plants" {
			t.Errorf("expected only the open task, got %+v", resp.Tasks)
		}

		json.Unmarshal([]byte(resultText(env.call(t, "list_tasks", map[string]any{"include_completed": true}))), &resp)
		if len(resp.Tasks) != 2 {
			t.Errorf("expected 2 tasks, got %d", len(resp.Tasks))
		}

		if result := env.call(t, "complete_task", map[string]any{"id": float64(999)}); !result.IsError {
			t.Error("expected an error for a missing task")
		}
	})

	t.Run("clean_completed", func(t *testing.T) {
		result := env.call(t, "clean_completed", map[string]any{})
		if resultText(result) != "Deleted 1 completed tasks" {
			t.Errorf("unexpected result %q", resultText(result))
		}
	})

	t.Run("delete_task", func(t *testing.T) {
		tasks := env.orch.Tasks()
		if result := env.call(t, "delete_task", map[string]any{"id": float64(tasks[0].ID)}); result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(result))
		}
		if len(env.orch.Tasks()) != 0 {
			t.Error("task was not deleted")
		}
		if result := env.call(t, "delete_task", map[string]any{}); !result.IsError {
			t.Error("expected an error without an id")
		}
	})
}

func TestListCategories(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()
	if err := env.db.SaveCategory(ctx, &models.Category{Title: "Garden", Color: "#00FF00"}); err != nil {
		t.Fatal(err)
	}

	result := env.call(t, "list_categories", map[string]any{})
	if result.IsError {
		t.Fatalf("Tool returned error: %s", resultText(result))
	}
	var resp struct {
		Categories []models.Category `json:"categories"`
	}
	if err := json.Unmarshal([]byte(resultText(result)), &resp); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range resp.Categories {
		if c.Title == "Garden" && c.ID != 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Garden in %+v", resp.Categories)
	}
}

func TestPriorityTools(t *testing.T) {
	env := setupServer(t)
	env.call(t, "add_task", map[string]any{"title": "Buy milk"})
	env.fake.StructuredFunc = ai.RespondWith(map[string]any{
		"tasks":                 []map[string]any{{"title": "Buy milk", "priorityReasoning": "due today"}},
		"personalized_greeting": "Morning!",
	})

	result := env.call(t, "refresh_priorities", map[string]any{})
	var resp priorityResponse
	if err := json.Unmarshal([]byte(resultText(result)), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Greeting != "Morning!" || len(resp.Tasks) != 1 {
		t.Errorf("unexpected priorities %+v", resp)
	}

	json.Unmarshal([]byte(resultText(env.call(t, "get_priority_tasks", map[string]any{}))), &resp)
	if len(resp.Tasks) != 1 || resp.Tasks[0].Task.PriorityReasoning != "due today" {
		t.Errorf("unexpected priorities %+v", resp)
	}
}

func TestClassifyTask(t *testing.T) {
	env := setupServer(t)
	id, _ := env.db.SaveTask(context.Background(), &models.Task{Title: "Find a plumber"})
	env.fake.StructuredFunc = ai.RespondWith(map[string]any{"assistType": "Browser", "assistData": "plumbers near me"})

	result := env.call(t, "classify_task", map[string]any{"id": float64(id)})
	var got models.AssistClassification
	if err := json.Unmarshal([]byte(resultText(result)), &got); err != nil {
		t.Fatalf("Failed to unmarshal classification: %v", err)
	}
	if got.AssistType != models.AssistBrowser {
		t.Errorf("expected Browser, got %v", got.AssistType)
	}
	if task := env.orch.Task(id); task == nil || task.AssistType != models.AssistBrowser {
		t.Error("orchestrator did not pick up the classification")
	}
}

func TestExtractionTools(t *testing.T) {
	env := setupServer(t)
	env.fake.StructuredFunc = func(ctx context.Context, prompt string, out any, tools []server.ServerTool) error {
		if _, ok := out.(*models.ExtractionResult); ok {
			return ai.RespondWith(map[string]any{
				"projects":        []map[string]any{{"name": "Move", "tasks": []map[string]any{{"title": "Pack books"}}}},
				"standaloneTasks": []map[string]any{{"title": "Renew passport"}},
			})(ctx, prompt, out, tools)
		}
		return nil
	}

	result := env.call(t, "extract_tasks", map[string]any{"text": "pack books for the move and renew my passport"})
	if result.IsError || !strings.Contains(resultText(result), "Staged 1 projects and 2 tasks") {
		t.Fatalf("unexpected result %q", resultText(result))
	}
	if len(env.orch.Tasks()) != 0 {
		t.Fatal("staged tasks must not be saved yet")
	}

	var staged models.ExtractionResult
	json.Unmarshal([]byte(resultText(env.call(t, "list_staged_tasks", map[string]any{}))), &staged)
	if len(staged.Projects) != 1 {
		t.Errorf("unexpected staged result %+v", staged)
	}

	result = env.call(t, "commit_staged_tasks", map[string]any{})
	if resultText(result) != "Saved 2 tasks" {
		t.Errorf("unexpected result %q", resultText(result))
	}
	if len(env.orch.Tasks()) != 2 {
		t.Errorf("expected 2 tasks after commit, got %d", len(env.orch.Tasks()))
	}
}

func TestIsNearbyTool(t *testing.T) {
	env := setupServer(t)
	result := env.call(t, "is_nearby", map[string]any{"pointOfInterest": "coffee shop"})
	if result.IsError || resultText(result) == "" {
		t.Errorf("unexpected result %+v", result)
	}
}
