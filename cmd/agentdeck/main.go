package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/AgentDeck/internal/adapter/claude"
	"github.com/Strob0t/AgentDeck/internal/adapter/codex"
	adhttp "github.com/Strob0t/AgentDeck/internal/adapter/http"
	"github.com/Strob0t/AgentDeck/internal/adapter/mcp"
	adnats "github.com/Strob0t/AgentDeck/internal/adapter/nats"
	adotel "github.com/Strob0t/AgentDeck/internal/adapter/otel"
	"github.com/Strob0t/AgentDeck/internal/adapter/postgres"
	"github.com/Strob0t/AgentDeck/internal/adapter/pty"
	"github.com/Strob0t/AgentDeck/internal/adapter/ristretto"
	"github.com/Strob0t/AgentDeck/internal/adapter/ws"
	"github.com/Strob0t/AgentDeck/internal/config"
	"github.com/Strob0t/AgentDeck/internal/domain"
	"github.com/Strob0t/AgentDeck/internal/domain/turn"
	"github.com/Strob0t/AgentDeck/internal/engine"
	"github.com/Strob0t/AgentDeck/internal/logger"
	"github.com/Strob0t/AgentDeck/internal/port/agentrunner"
	"github.com/Strob0t/AgentDeck/internal/port/broadcast"
	"github.com/Strob0t/AgentDeck/internal/port/database"
	"github.com/Strob0t/AgentDeck/internal/service"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"default_runner", cfg.Agents.DefaultRunner,
	)

	ctx := context.Background()

	// --- Observability ---

	shutdownOtel, err := adotel.Setup(ctx, cfg.Otel, log)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			log.Error("otel shutdown", "error", err)
		}
	}()

	metrics, err := adotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Storage ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	log.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied")

	store := postgres.NewStore(pool)

	if err := seedDefaults(ctx, store, cfg.Agents); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}

	// --- Event fan-out ---

	hub := ws.NewHub(nil, log)
	defer hub.Close()

	targets := []broadcast.Broadcaster{hub}
	if cfg.NATS.URL != "" {
		mirror, err := adnats.Connect(ctx, cfg.NATS.URL, log)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = mirror.Close() }()
		targets = append(targets, mirror)
		log.Info("nats mirror connected", "url", cfg.NATS.URL)
	}

	// --- Agent runners ---

	runners, err := buildRunners(cfg, log)
	if err != nil {
		return fmt.Errorf("runners: %w", err)
	}

	// --- Engine ---

	eng := engine.New(engine.Options{
		Store:        store,
		Broadcaster:  broadcast.Multi(targets...),
		Runners:      runners,
		Telemetry:    metrics,
		Logger:       log,
		QueueCap:     cfg.Engine.QueueCap,
		IntentBuffer: cfg.Engine.IntentBuffer,
		StopTimeout:  cfg.Engine.CancelGrace,
	})
	if err := eng.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate: %w", err)
	}
	eng.Start()
	hub.Bind(eng)

	// --- Read and attachment services ---

	blobCache, err := ristretto.New(cfg.Attachments.CacheSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer blobCache.Close()

	attachments, err := service.NewAttachments(cfg.Attachments, blobCache, log)
	if err != nil {
		return fmt.Errorf("attachments: %w", err)
	}
	query := service.NewQuery(eng, store)

	// --- Terminal multiplexer ---

	ptyManager := pty.NewManager(cfg.PTY, log)
	defer ptyManager.Close()
	ptyHandler := pty.NewHandler(ptyManager, workspaceDir(eng), log)

	// --- MCP ---

	mcpServer := mcp.NewServer(mcp.ServerConfig{
		Addr:    cfg.MCP.Addr,
		Name:    "agentdeck",
		Version: version,
		APIKey:  cfg.MCP.APIKey,
	}, mcp.ServerDeps{Snapshots: query, Entries: query, Turns: query}, log)
	if err := mcpServer.Start(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}

	// --- HTTP ---

	handlers := adhttp.NewHandlers(query, attachments, log)

	r := chi.NewRouter()
	r.Use(adhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(adhttp.SecurityHeaders)
	r.Use(adhttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(adotel.HTTPMiddleware(cfg.Otel.Service))

	adhttp.MountRoutes(r, handlers, hub.HandleWS, ptyHandler.ServeHTTP)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			done <- syscall.SIGTERM
		}
	}()

	<-done
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	if err := mcpServer.Stop(shutdownCtx); err != nil {
		log.Error("mcp shutdown", "error", err)
	}
	eng.Shutdown(shutdownCtx)
	return nil
}

// buildRunners registers every configured agent CLI and instantiates
// the runner set the engine dispatches turns to.
func buildRunners(cfg *config.Config, log *slog.Logger) (map[string]agentrunner.Runner, error) {
	for name, tool := range cfg.Agents.Tools {
		switch name {
		case "claude":
			claude.Register(claude.Options{
				Bin:       tool.Bin,
				ExtraArgs: tool.Args,
				Env:       tool.Env,
				StopGrace: cfg.Engine.CancelGrace,
				Logger:    log,
			})
		case "codex":
			codex.Register(codex.Options{
				Bin:       tool.Bin,
				ExtraArgs: tool.Args,
				Env:       tool.Env,
				StopGrace: cfg.Engine.CancelGrace,
				Logger:    log,
			})
		default:
			return nil, fmt.Errorf("unknown agent tool %q", name)
		}
	}

	runners := make(map[string]agentrunner.Runner, len(cfg.Agents.Tools))
	for _, name := range agentrunner.Available() {
		r, err := agentrunner.New(name, nil)
		if err != nil {
			return nil, err
		}
		runners[name] = adotel.WrapRunner(r)
	}
	if len(runners) == 0 {
		return nil, fmt.Errorf("no agent tools configured")
	}
	if _, ok := runners[cfg.Agents.DefaultRunner]; !ok {
		return nil, fmt.Errorf("default runner %q not configured", cfg.Agents.DefaultRunner)
	}
	return runners, nil
}

// seedDefaults writes the configured run defaults when the settings
// table is still empty, so a fresh install starts with a usable runner.
func seedDefaults(ctx context.Context, store database.Store, agents config.Agents) error {
	existing, err := store.LoadDefaults(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return store.SaveDefaults(ctx, &turn.RunConfig{
		Runner: agents.DefaultRunner,
		Model:  agents.DefaultModel,
		Effort: agents.DefaultEffort,
	})
}

// workspaceDir resolves a workspace id to its directory through the
// engine's live state.
func workspaceDir(eng *engine.Engine) pty.WorkspaceDirFunc {
	return func(ctx context.Context, workspaceID int64) (string, error) {
		snap, err := eng.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		for i := range snap.Workspaces {
			if snap.Workspaces[i].ID == workspaceID {
				return snap.Workspaces[i].Path, nil
			}
		}
		return "", fmt.Errorf("workspace %d: %w", workspaceID, domain.ErrNotFound)
	}
}
