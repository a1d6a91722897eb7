package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ldi/telepathic/internal/config"
	"github.com/ldi/telepathic/internal/db"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/internal/mcp"
	"github.com/ldi/telepathic/internal/notify"
	"github.com/ldi/telepathic/internal/orchestrator"
	"github.com/ldi/telepathic/internal/server"
	"github.com/ldi/telepathic/internal/ui"
	"github.com/ldi/telepathic/pkg/models"
)

// openApp loads the config and wires the services for a one-shot command
// that reports to out.
func openApp(ctx context.Context, out io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, appOptions{notifier: notify.Writer{W: out}, oneShot: true})
}

func runInit(args []string, out io.Writer) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	dataDir := filepath.Join(targetDir, config.DirName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", config.DirName, err)
	}
	fmt.Fprintf(out, "✓ Created %s/ directory\n", config.DirName)

	gitignorePath := filepath.Join(dataDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("telepathic.db*\ntelepathic.log\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Fprintf(out, "✓ Created %s/.gitignore\n", config.DirName)

	cfgFile := filepath.Join(dataDir, config.FileName)
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if err := config.WriteDefault(cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote default config to %s\n", cfgFile)
	}

	finalDBPath := dbPath
	if finalDBPath == "" {
		finalDBPath = filepath.Join(dataDir, "telepathic.db")
	}
	snapshotPath := filepath.Join(dataDir, "snapshot.jsonl")

	database, err := db.Open(finalDBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Fprintf(out, "✓ Initialized database at %s\n", finalDBPath)

	if _, err := os.Stat(snapshotPath); err == nil {
		if err := database.ImportSnapshot(ctx, snapshotPath); err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Fprintf(out, "✓ Imported snapshot from %s\n", snapshotPath)
	} else {
		seeded, err := database.SeedDefaults(ctx)
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintln(out, "✓ Seeded default categories")
		}
	}

	fmt.Fprintln(out, "✓ Telepathic initialized successfully")
	return nil
}

func runTUI(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logs, err := logging.RedirectToFile(cfg.LogPath())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logs.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notes := notify.NewChannel(32)
	a, err := newApp(ctx, cfg, appOptions{notifier: notify.Multi{notes, notify.Log{}}, autoSnapshot: true})
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := startScheduler(ctx, a, nil)
	if err != nil {
		return err
	}
	if sched != nil {
		defer sched.Stop()
	}

	return ui.Run(ctx, a.orch, notes)
}

func runMCP(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(context.Background(), cfg, appOptions{autoSnapshot: true})
	if err != nil {
		return err
	}
	defer a.Close()

	s := mcp.NewServer(mcp.Deps{
		DB:           a.db,
		Orchestrator: a.orch,
		Classifier:   a.classifier,
		Extractor:    a.extractor,
		Location:     a.location,
	})
	return mcp.Serve(s)
}

func runWeb(args []string, out io.Writer) error {
	return serveHTTP("web", args, out, false)
}

func runServe(args []string, out io.Writer) error {
	return serveHTTP("serve", args, out, true)
}

// serveHTTP runs the dashboard until interrupted. With background set it also
// runs the scheduler and posts digests to the chat sinks.
func serveHTTP(name string, args []string, out io.Writer, background bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	port := fs.String("port", cfg.Server.Port, "Port to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier notify.Notifier = notify.Log{}
	chats := chatNotifiers(cfg)
	if background && len(chats) > 0 {
		notifier = append(notify.Multi{notify.Log{}}, chats...)
	}

	a, err := newApp(ctx, cfg, appOptions{notifier: notifier, autoSnapshot: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if background {
		var digest notify.Notifier
		if len(chats) > 0 {
			digest = chats
		}
		sched, err := startScheduler(ctx, a, digest)
		if err != nil {
			return err
		}
		if sched != nil {
			defer sched.Stop()
		}
		go a.orch.Refresh(ctx)
	}

	srv := server.NewServer(a.db, a.orch, cfg.Server.AllowedOrigins)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(out, "Dashboard at http://localhost:%s\n", *port)
	if err := srv.Start(fmt.Sprintf(":%s", *port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runListTasks(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list-tasks", flag.ContinueOnError)
	project := fs.String("project", "", "Only list tasks of this project (id or name)")
	all := fs.Bool("all", false, "Include completed tasks")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return err
	}

	projectID, err := resolveProject(ctx, database, *project)
	if err != nil {
		return err
	}
	var tasks []*models.Task
	if projectID == nil && !*all {
		tasks, err = database.ListIncompleteTasks(ctx)
	} else {
		tasks, err = database.ListTasks(ctx, projectID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%-6s %-4s %-36s %-15s %-10s\n", "ID", "DONE", "TITLE", "PROJECT", "ASSIST")
	fmt.Fprintln(out, strings.Repeat("-", 75))
	for _, t := range tasks {
		if t.IsCompleted && !*all {
			continue
		}
		done := ""
		if t.IsCompleted {
			done = "x"
		}
		assistLabel := ""
		if t.HasAssist() {
			assistLabel = t.AssistType.String()
		}
		fmt.Fprintf(out, "%-6d %-4s %-36s %-15s %-10s\n", t.ID, done, logging.Truncate(t.Title, 36), t.ProjectName, assistLabel)
	}
	return nil
}

func runAddTask(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-task", flag.ContinueOnError)
	project := fs.String("project", "", "Project to file the task under (id or name)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	title := strings.Join(fs.Args(), " ")

	ctx := context.Background()
	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	projectID, err := resolveProject(ctx, a.db, *project)
	if err != nil {
		return err
	}
	task, err := a.orch.AddTask(ctx, title, projectID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Added task %d: %s", task.ID, task.Title)
	if task.HasAssist() {
		fmt.Fprintf(out, " (%s)", task.AssistType)
	}
	fmt.Fprintln(out)
	return nil
}

// resolveProject accepts a project id or name. An empty value means no
// project.
func resolveProject(ctx context.Context, database *db.DB, value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if id, err := strconv.ParseInt(value, 10, 64); err == nil && id > 0 {
		return &id, nil
	}
	p, err := database.GetProjectByName(ctx, value)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project not found: %s", value)
	}
	return &p.ID, nil
}

func parseTaskID(name string, args []string) (int64, []string, error) {
	if len(args) == 0 {
		return 0, nil, fmt.Errorf("usage: telepathic %s <task-id>", name)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("invalid task id: %s", args[0])
	}
	return id, args[1:], nil
}

func runComplete(args []string, out io.Writer) error {
	id, rest, err := parseTaskID("complete", args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("complete", flag.ContinueOnError)
	undo := fs.Bool("undo", false, "Mark the task as not completed")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.orch.Task(id) == nil {
		return fmt.Errorf("task not found: %d", id)
	}
	if err := a.orch.ToggleComplete(ctx, id, !*undo); err != nil {
		return err
	}
	if *undo {
		fmt.Fprintf(out, "✓ Reopened task %d\n", id)
	} else {
		fmt.Fprintf(out, "✓ Completed task %d\n", id)
	}
	return nil
}

func runDelete(args []string, out io.Writer) error {
	id, _, err := parseTaskID("delete", args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.orch.DeleteTask(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Deleted task %d\n", id)
	return nil
}

func runClean(args []string, out io.Writer) error {
	ctx := context.Background()
	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.orch.CleanCompleted(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d completed tasks\n", n)
	return nil
}

func runPrioritize(args []string, out io.Writer) error {
	ctx := context.Background()
	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	user := a.orch.User()
	if !user.TelepathyEnabled || !user.HasAPIKey {
		fmt.Fprintln(out, "Priorities are off. Enable them with `telepathic settings -telepathy=on` and set an API key.")
		return nil
	}

	a.orch.Refresh(ctx)
	fmt.Fprintln(out, a.orch.Greeting())
	fmt.Fprintln(out, orchestrator.Digest(a.orch.PriorityTasks()))
	return nil
}

func runSettings(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	telepathy := fs.String("telepathy", "", "Turn priorities on or off")
	locationFlag := fs.String("location", "", "Turn location on or off")
	about := fs.String("about", "", "Text about you for personalization")
	apiKey := fs.String("api-key", "", "Save an API key")
	clearKey := fs.Bool("clear-api-key", false, "Forget the saved API key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	if *telepathy != "" {
		on, err := parseSwitch(*telepathy)
		if err != nil {
			return err
		}
		if err := a.orch.SetTelepathyEnabled(ctx, on); err != nil {
			return err
		}
	}
	if *locationFlag != "" {
		on, err := parseSwitch(*locationFlag)
		if err != nil {
			return err
		}
		if err := a.orch.SetLocationEnabled(ctx, on); err != nil {
			return err
		}
	}
	if *about != "" {
		if err := a.orch.SetAboutMe(ctx, *about); err != nil {
			return err
		}
	}
	if *apiKey != "" || *clearKey {
		if err := a.orch.SaveAPIKey(ctx, *apiKey); err != nil {
			return err
		}
	}

	user := a.orch.User()
	fmt.Fprintf(out, "Telepathy: %s\n", onOff(user.TelepathyEnabled))
	fmt.Fprintf(out, "API key:   %s\n", onOff(user.HasAPIKey))
	fmt.Fprintf(out, "Location:  %s (%s)\n", onOff(user.LocationEnabled), user.LocationLabel)
	if user.AboutMe != "" {
		fmt.Fprintf(out, "About me:  %s\n", logging.Truncate(user.AboutMe, 60))
	}
	return nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func runExtract(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	text := fs.String("text", "", "Transcript text to extract tasks from")
	audio := fs.String("audio", "", "Audio file to transcribe")
	image := fs.String("image", "", "Photo of a list or note")
	notes := fs.String("notes", "", "Extra notes sent along with an image")
	dryRun := fs.Bool("dry-run", false, "Print the extraction without saving it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	var result *models.ExtractionResult
	switch {
	case *text != "":
		result, err = a.extractor.FromTranscript(ctx, *text)
	case *audio != "":
		result, err = a.extractor.FromAudio(ctx, *audio)
	case *image != "":
		data, readErr := os.ReadFile(*image)
		if readErr != nil {
			return fmt.Errorf("failed to read image: %w", readErr)
		}
		result, err = a.extractor.FromImage(ctx, data, "", *notes)
	default:
		return fmt.Errorf("one of -text, -audio or -image is required")
	}
	if err != nil {
		return err
	}

	if *dryRun {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if result.IsEmpty() {
		fmt.Fprintln(out, "No tasks found")
		return nil
	}

	created, err := a.extractor.Save(ctx, result)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Saved %d tasks\n", len(created))
	for _, t := range created {
		fmt.Fprintf(out, "  - %s\n", t.Title)
	}
	return nil
}

func runCalendars(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("calendars", flag.ContinueOnError)
	selectID := fs.String("select", "", "Toggle the calendar with this id")
	disconnect := fs.Bool("disconnect", false, "Disconnect every calendar")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.orch.LoadCalendars(ctx); err != nil {
		return err
	}
	switch {
	case *disconnect:
		if err := a.orch.DisconnectCalendars(ctx); err != nil {
			return err
		}
	case *selectID != "":
		if err := a.orch.ToggleCalendar(ctx, *selectID); err != nil {
			return err
		}
	}

	cals := a.orch.Calendars()
	if len(cals) == 0 {
		fmt.Fprintln(out, "No calendars available")
		return nil
	}
	for _, c := range cals {
		mark := "[ ]"
		if c.IsSelected {
			mark = "[x]"
		}
		fmt.Fprintf(out, "%s %-30s %s\n", mark, c.Name, c.ID)
	}
	return nil
}

func runConfig(args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(out, "Usage: telepathic config <command>")
		fmt.Fprintln(out, "\nCommands:")
		fmt.Fprintln(out, "  init [--global]   Write the default config file")
		fmt.Fprintln(out, "  show              Print the merged config with secrets masked")
		return nil
	}

	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("config init", flag.ContinueOnError)
		global := fs.Bool("global", false, "Write to the global config in your home directory")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		path := config.ProjectConfigPath()
		if *global {
			path = config.GlobalConfigPath()
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote default config to %s\n", path)
		return nil
	case "show":
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rendered, err := cfg.Redacted()
		if err != nil {
			return err
		}
		for _, src := range cfg.Sources {
			fmt.Fprintf(out, "# %s\n", src)
		}
		fmt.Fprint(out, rendered)
		return nil
	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

func runStatus(args []string, out io.Writer) error {
	ctx := context.Background()
	a, err := openApp(ctx, out)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks := a.orch.Tasks()
	completed := 0
	withAssist := 0
	for _, t := range tasks {
		if t.IsCompleted {
			completed++
		}
		if t.HasAssist() {
			withAssist++
		}
	}
	projects, err := a.db.ListProjects(ctx)
	if err != nil {
		return err
	}
	counts, err := a.db.CategoryTaskCounts(ctx)
	if err != nil {
		return err
	}
	user := a.orch.User()

	fmt.Fprintln(out, "Telepathic Status")
	fmt.Fprintln(out, "=================")
	fmt.Fprintf(out, "Database:        %s\n", a.cfg.DBPath)
	fmt.Fprintf(out, "Projects:        %d\n", len(projects))
	fmt.Fprintf(out, "Total Tasks:     %d\n", len(tasks))
	fmt.Fprintf(out, "Open Tasks:      %d\n", len(tasks)-completed)
	fmt.Fprintf(out, "With Assist:     %d\n", withAssist)
	fmt.Fprintf(out, "Telepathy:       %s\n", onOff(user.TelepathyEnabled))
	fmt.Fprintf(out, "AI Ready:        %s\n", onOff(a.ai.IsInitialized()))
	fmt.Fprintf(out, "Calendars:       %d selected\n", len(user.SelectedCalendarIDs))

	if len(counts) > 0 {
		fmt.Fprintln(out, "\nBy Category:")
		for _, c := range counts {
			fmt.Fprintf(out, "  %-12s %d\n", c.Title+":", c.Count)
		}
	}
	return nil
}
