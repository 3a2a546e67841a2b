package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reasond/internal/config"
	"github.com/fyrsmithlabs/reasond/internal/engine"
	"github.com/fyrsmithlabs/reasond/internal/graph"
	"github.com/fyrsmithlabs/reasond/internal/logging"
	"github.com/fyrsmithlabs/reasond/internal/memory"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run sample reasoning tasks against a built-in graph",
	Long: `Demo builds a small physics knowledge graph in memory, runs one task of
each type through the reasoning engine, and prints the results as JSON.`,
	RunE: runDemo,
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Logging.Format = "console"

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := buildDemoGraph(ctx)
	if err != nil {
		return err
	}

	mem, err := memory.NewSystem(cfg.MemorySystemConfig(), logger.Named("memory"))
	if err != nil {
		return err
	}
	eng, err := engine.New(store, mem, cfg.EngineConfig(), logger.Named("engine"))
	if err != nil {
		return err
	}
	defer eng.Close()

	tasks := []engine.Task{
		{
			ID:          "demo-path",
			Type:        engine.TaskPathFinding,
			Entities:    []string{"Einstein", "Nobel_Prize"},
			Description: "find a path from Einstein to the Nobel Prize",
		},
		{
			ID:          "demo-relation",
			Type:        engine.TaskRelationPrediction,
			Entities:    []string{"Einstein", "Theory_of_Relativity"},
			Description: "predict the relation between Einstein and relativity",
		},
		{
			ID:          "demo-complex",
			Type:        engine.TaskComplexReasoning,
			Entities:    []string{"Einstein", "Theory_of_Relativity", "Nobel_Prize"},
			Description: "reason over the chain from Einstein to the Nobel Prize",
		},
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, task := range tasks {
		res, err := eng.ProcessTask(ctx, task)
		if err != nil {
			return fmt.Errorf("task %s: %w", task.ID, err)
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return enc.Encode(eng.Summary())
}

// buildDemoGraph assembles a tiny physics graph with hand-rolled embeddings.
func buildDemoGraph(ctx context.Context) (*graph.MemoryStore, error) {
	store, err := graph.NewMemoryStore(graph.MemoryStoreConfig{VectorSize: 4}, nil)
	if err != nil {
		return nil, err
	}

	entities := []graph.Entity{
		{ID: "Einstein", Type: "person", Embedding: []float32{0.9, 0.1, 0.2, 0.1}},
		{ID: "Theory_of_Relativity", Type: "concept", Embedding: []float32{0.8, 0.3, 0.1, 0.2}},
		{ID: "Photoelectric_Effect", Type: "concept", Embedding: []float32{0.7, 0.2, 0.3, 0.1}},
		{ID: "Nobel_Prize", Type: "award", Embedding: []float32{0.2, 0.9, 0.1, 0.3}},
		{ID: "Physics", Type: "field", Embedding: []float32{0.6, 0.4, 0.4, 0.2}},
	}
	for _, e := range entities {
		if err := store.AddEntity(ctx, e); err != nil {
			return nil, err
		}
	}

	relations := []graph.Relation{
		{Source: "Einstein", Predicate: "developed", Target: "Theory_of_Relativity", Weight: 0.95},
		{Source: "Einstein", Predicate: "explained", Target: "Photoelectric_Effect", Weight: 0.9},
		{Source: "Photoelectric_Effect", Predicate: "earned", Target: "Nobel_Prize", Weight: 0.85},
		{Source: "Theory_of_Relativity", Predicate: "part_of", Target: "Physics", Weight: 0.9},
		{Source: "Photoelectric_Effect", Predicate: "part_of", Target: "Physics", Weight: 0.9},
		{Source: "Theory_of_Relativity", Predicate: "recognized_by", Target: "Nobel_Prize", Weight: 0.5},
	}
	for _, r := range relations {
		if err := store.AddRelation(ctx, r); err != nil {
			return nil, err
		}
	}

	relEmbeddings := map[string][]float32{
		"developed":     {0.85, 0.2, 0.15, 0.15},
		"explained":     {0.75, 0.25, 0.2, 0.1},
		"earned":        {0.3, 0.85, 0.2, 0.2},
		"part_of":       {0.4, 0.4, 0.6, 0.3},
		"recognized_by": {0.3, 0.7, 0.2, 0.4},
	}
	for pred, vec := range relEmbeddings {
		if err := store.RegisterRelationEmbedding(pred, vec); err != nil {
			return nil, err
		}
	}
	return store, nil
}
