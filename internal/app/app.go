package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vlm/flowforge/internal/artifact"
	"github.com/vlm/flowforge/internal/ctxlog"
	"github.com/vlm/flowforge/internal/flow"
	"github.com/vlm/flowforge/internal/loader"
	"github.com/vlm/flowforge/internal/project"
	"github.com/vlm/flowforge/internal/registry"
	"github.com/vlm/flowforge/internal/sandbox"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	flows     *flow.Catalog
	registry  *registry.Registry
	artifacts artifact.Registry
	manager   *project.Manager
	pool      *pgxpool.Pool
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Startup failures are fatal and panic; the entrypoint recovers them into a
// clean exit message.
func NewApp(outW io.Writer, appConfig *Config, ldr *loader.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	serverCfg, err := loadServerConfig(appConfig.ServerPath)
	if err != nil {
		panic(fmt.Errorf("failed to load server configuration: %w", err))
	}

	defs, err := ldr.Load(ctx, appConfig.FlowPath)
	if err != nil {
		panic(fmt.Errorf("failed to load flow definitions: %w", err))
	}
	flows := flow.NewCatalog()
	for _, d := range defs {
		if err := flows.Add(d); err != nil {
			panic(err)
		}
	}
	logger.Debug("Flow definitions loaded and validated.", "count", len(defs))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All executor modules registered.", "count", len(modules))

	// Every flow must resolve to compiled-in handlers before anything runs.
	for _, d := range defs {
		if err := reg.ValidateRefs(d); err != nil {
			panic(fmt.Errorf("flow %q: %w", d.ID, err))
		}
	}
	logger.Debug("Executor reference validation passed.")

	var (
		pool      *pgxpool.Pool
		artifacts artifact.Registry
		store     project.Store
	)
	if dsn := serverCfg.Postgres.DSN; dsn != "" {
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			panic(fmt.Errorf("failed to connect to postgres: %w", err))
		}
		pgArtifacts := artifact.NewPostgresRegistry(pool)
		pgStore := project.NewPostgresStore(pool)
		if err := pgArtifacts.EnsureSchema(ctx); err != nil {
			panic(fmt.Errorf("failed to prepare artifact schema: %w", err))
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			panic(fmt.Errorf("failed to prepare project schema: %w", err))
		}
		artifacts, store = pgArtifacts, pgStore
		logger.Info("Using Postgres-backed stores.")
	} else {
		artifacts, store = artifact.NewMemoryRegistry(), project.NewMemoryStore()
		logger.Debug("Using in-memory stores.")
	}

	root := appConfig.SandboxRoot
	if serverCfg.Sandbox.Root != "" {
		root = serverCfg.Sandbox.Root
	}
	sb := sandbox.NewLocalDir(root)

	return &App{
		outW:      outW,
		logger:    logger,
		flows:     flows,
		registry:  reg,
		artifacts: artifacts,
		manager:   project.NewManager(store, flows, artifacts, sb, reg),
		pool:      pool,
	}
}

// Manager returns the application's project manager. Primarily for testing.
func (a *App) Manager() *project.Manager {
	return a.manager
}

// Flows returns the application's flow catalog. Primarily for testing.
func (a *App) Flows() *flow.Catalog {
	return a.flows
}

// Close releases held resources.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// targetFlow resolves which flow a one-shot run is for. An explicit id wins;
// otherwise a single loaded flow is unambiguous.
func (a *App) targetFlow(appConfig *Config) (string, error) {
	if appConfig.FlowID != "" {
		if _, ok := a.flows.Get(appConfig.FlowID); !ok {
			return "", fmt.Errorf("flow %q is not defined in %s", appConfig.FlowID, appConfig.FlowPath)
		}
		return appConfig.FlowID, nil
	}
	ids := a.flows.IDs()
	if len(ids) != 1 {
		return "", fmt.Errorf("loaded %d flows, pick one with -flow-id: %v", len(ids), ids)
	}
	return ids[0], nil
}
