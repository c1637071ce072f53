package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Strob0t/AgentDeck/internal/adapter/postgres"
	"github.com/Strob0t/AgentDeck/internal/config"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
	"github.com/Strob0t/AgentDeck/internal/port/database"
)

// runAdmin dispatches admin subcommands (list-threads, list-workspaces,
// set-defaults). They talk to the database directly and must not run
// against a live server's engine assumptions beyond the defaults table.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "list-threads":
		return runAdminListThreads(args[1:])
	case "list-workspaces":
		return runAdminListWorkspaces(args[1:])
	case "set-defaults":
		return runAdminSetDefaults(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: agentdeck admin <command> [options]

Commands:
  list-threads      List all threads with their entry counts
  list-workspaces   List all projects and workspaces
  set-defaults      Set the durable default run configuration
  help              Show this help message

Examples:
  agentdeck admin list-threads --all
  agentdeck admin set-defaults --runner claude --model sonnet
`)
}

func loadAdminDeps() (database.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	return postgres.NewStore(pool), pool.Close, nil
}

func runAdminListThreads(args []string) error {
	fs := flag.NewFlagSet("list-threads", flag.ContinueOnError)
	all := fs.Bool("all", false, "include archived threads")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	threads, err := store.LoadThreads(context.Background())
	if err != nil {
		return fmt.Errorf("load threads: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWORKSPACE\tTITLE\tRUNNER\tENTRIES\tARCHIVED")
	for i := range threads {
		t := &threads[i]
		if t.Archived && !*all {
			continue
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%t\n",
			t.ID, t.WorkspaceID, t.Title, t.Config.Runner, t.EntryCount, t.Archived)
	}
	return w.Flush()
}

func runAdminListWorkspaces(args []string) error {
	fs := flag.NewFlagSet("list-workspaces", flag.ContinueOnError)
	all := fs.Bool("all", false, "include archived workspaces")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	projects, err := store.LoadProjects(ctx)
	if err != nil {
		return fmt.Errorf("load projects: %w", err)
	}
	workspaces, err := store.LoadWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("load workspaces: %w", err)
	}

	names := make(map[int64]string, len(projects))
	for i := range projects {
		names[projects[i].ID] = projects[i].Name
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tNAME\tPATH\tARCHIVED")
	for i := range workspaces {
		ws := &workspaces[i]
		if ws.Archived && !*all {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n",
			ws.ID, names[ws.ProjectID], ws.Name, ws.Path, ws.Archived)
	}
	return w.Flush()
}

func runAdminSetDefaults(args []string) error {
	fs := flag.NewFlagSet("set-defaults", flag.ContinueOnError)
	runner := fs.String("runner", "", "default agent runner (required)")
	model := fs.String("model", "", "default model")
	effort := fs.String("effort", "", "default reasoning effort")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *runner == "" {
		return fmt.Errorf("--runner is required")
	}

	store, cleanup, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := &turn.RunConfig{Runner: *runner, Model: *model, Effort: *effort}
	if err := store.SaveDefaults(context.Background(), cfg); err != nil {
		return fmt.Errorf("save defaults: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Defaults updated: runner=%s model=%s effort=%s\n",
		*runner, *model, *effort)
	return nil
}
