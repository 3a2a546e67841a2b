package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reasond/internal/config"
	"github.com/fyrsmithlabs/reasond/internal/engine"
	"github.com/fyrsmithlabs/reasond/internal/graph"
	"github.com/fyrsmithlabs/reasond/internal/logging"
	"github.com/fyrsmithlabs/reasond/internal/memory"
	"github.com/fyrsmithlabs/reasond/internal/server"
)

// decayInterval is the cadence of the periodic memory decay pass.
const decayInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reasoning agent HTTP server",
	Long: `Serve loads a knowledge graph from the configured JSON file and exposes
the reasoning engine over HTTP until interrupted.

Example:
  REASOND_GRAPH_PATH=graph.json reasond serve
  reasond serve --config ~/.config/reasond/config.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Graph.Path == "" {
		return fmt.Errorf("graph path is required (REASOND_GRAPH_PATH or graph.path)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := graph.NewMemoryStore(graph.MemoryStoreConfig{
		VectorSize:   cfg.Graph.VectorSize,
		DisableIndex: cfg.Graph.DisableIndex,
	}, logger.Named("graph"))
	if err != nil {
		return err
	}
	if err := graph.LoadFile(ctx, store, cfg.Graph.Path); err != nil {
		return err
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	logger.Info("knowledge graph loaded",
		zap.String("path", cfg.Graph.Path),
		zap.Int("entities", stats.Entities),
		zap.Int("relations", stats.Relations),
	)

	mem, err := memory.NewSystem(cfg.MemorySystemConfig(), logger.Named("memory"))
	if err != nil {
		return err
	}

	eng, err := engine.New(store, mem, cfg.EngineConfig(), logger.Named("engine"))
	if err != nil {
		return err
	}
	defer eng.Close()

	srv, err := server.NewServer(eng, store, logger.Named("http"), &server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	// Periodic forgetting.
	go func() {
		ticker := time.NewTicker(decayInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				mem.DecayPass(now)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
