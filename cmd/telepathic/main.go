package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ldi/telepathic/internal/config"
	"github.com/ldi/telepathic/internal/logging"
	"github.com/ldi/telepathic/internal/ui"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

// runMenu is swapped out in tests.
var runMenu = ui.RunMenu

const rootHelp = `Usage: telepathic [flags] <command> [arguments]

Running ` + "`telepathic`" + ` with no command opens the menu.

Commands:
  init [dir]       Create the data directory, config and database
  tui              Open the terminal UI
  web              Serve the dashboard and JSON API
  serve            Serve the API with scheduled refreshes and chat digests
  mcp              Run the MCP server over stdio
  list-tasks       List tasks
  add-task         Add a task
  complete         Mark a task completed
  delete           Delete a task
  clean            Delete completed tasks
  prioritize       Ask for the priority view and print it
  settings         Show or change telepathy, location and personalization
  extract          Extract tasks from text, audio or an image
  calendars        List, select or disconnect calendars
  config           init | show
  status           Show a short summary

Flags:
`

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("telepathic", flag.ContinueOnError)
	fs.SetOutput(stderr)
	// Defaults keep any values set before execute.
	fs.StringVar(&configPath, "config", configPath, "Path to an extra config file")
	fs.StringVar(&dbPath, "db-path", dbPath, "Path to database file (overrides config)")
	fs.BoolVar(&verbose, "verbose", verbose, "Enable verbose logging")
	fs.Usage = func() {
		fmt.Fprint(stderr, rootHelp)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if verbose {
		logging.SetDebug(true)
	}

	var command string
	var rest []string
	if fs.NArg() == 0 {
		selected, err := runMenu()
		if err != nil {
			return fmt.Errorf("failed to run menu: %w", err)
		}
		if selected == "" {
			return nil
		}
		command = selected
	} else {
		command = fs.Arg(0)
		rest = fs.Args()[1:]
	}

	switch command {
	case "init":
		return runInit(rest, stdout)
	case "tui":
		return runTUI(rest)
	case "web":
		return runWeb(rest, stdout)
	case "serve":
		return runServe(rest, stdout)
	case "mcp":
		return runMCP(rest)
	case "list-tasks":
		return runListTasks(rest, stdout)
	case "add-task":
		return runAddTask(rest, stdout)
	case "complete":
		return runComplete(rest, stdout)
	case "delete":
		return runDelete(rest, stdout)
	case "clean":
		return runClean(rest, stdout)
	case "prioritize":
		return runPrioritize(rest, stdout)
	case "settings":
		return runSettings(rest, stdout)
	case "extract":
		return runExtract(rest, stdout)
	case "calendars":
		return runCalendars(rest, stdout)
	case "config":
		return runConfig(rest, stdout)
	case "status":
		return runStatus(rest, stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// loadConfig reads the merged configuration and applies the -db-path override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}
