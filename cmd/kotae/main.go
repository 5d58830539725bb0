// Package main is the Kotae CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/artifact"
	"github.com/hyperjump/kotae/internal/augment"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/consolidate"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/engine"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "pipeline":
		runPipeline()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds the wired application components.
type Components struct {
	Storage      storage.Storage
	Artifacts    *artifact.Store
	Embedder     embedding.Embedder
	VectorIndex  vector.Index
	KeywordIndex keyword.ChunkIndex
	Pipeline     *pipeline.Pipeline
	Engine       *engine.Engine
	cfg          *config.Config
	logger       *zap.Logger
}

// Close saves the vector snapshot and releases all component resources.
func (c *Components) Close() {
	if c.cfg.Storage.VectorIndexPath != "" {
		if err := c.VectorIndex.Save(c.cfg.Storage.VectorIndexPath); err != nil {
			c.logger.Warn("vector index save failed", zap.Error(err))
		}
	}
	_ = c.VectorIndex.Close()
	_ = c.KeywordIndex.Close()
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	_ = c.Storage.Close()
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	artifacts, err := artifact.NewStore(cfg.Storage.ArtifactRoot, store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	var embedder embedding.Embedder
	apiKey := os.Getenv(cfg.Embedding.APIKeyEnv)
	if apiKey != "" {
		embedder, err = embedding.NewOpenAIEmbedder(apiKey, cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	} else {
		logger.Warn("no embedding API key in environment, using mock embedder",
			zap.String("env", cfg.Embedding.APIKeyEnv))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	vectorIndex, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped", zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	var generator augment.Generator
	if genKey := os.Getenv(cfg.Generate.APIKeyEnv); genKey != "" {
		generator = augment.NewOpenAIGenerator(genKey, cfg.Generate.BaseURL, cfg.Generate.Model)
	}

	pipe := pipeline.NewPipeline(store, artifacts, embedder, vectorIndex, keywordIndex, logger)
	if d := models.VectorizationDecision(cfg.Pipeline.DefaultDecision); d == models.DecisionVectorize || d == models.DecisionSkip {
		pipe.DefaultDecision = d
	}

	retriever := retrieval.NewRetriever(store, vectorIndex, keywordIndex, embedder, logger)
	consolidator := consolidate.NewConsolidator(artifacts)
	eng := engine.NewEngine(store, retriever, vectorIndex, retrieval.OverlapReranker{}, consolidator, generator, logger)

	if err := ensureDefaultConfig(store); err != nil {
		return nil, err
	}

	return &Components{
		Storage:      store,
		Artifacts:    artifacts,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Pipeline:     pipe,
		Engine:       eng,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// ensureDefaultConfig creates the built-in parameter preset on first run.
func ensureDefaultConfig(store storage.Storage) error {
	ctx := context.Background()
	if _, err := store.GetDefaultRagConfig(ctx); err == nil {
		return nil
	}
	return store.CreateRagConfig(ctx, &models.RagConfig{
		Name:      "default",
		IsDefault: true,
		Config:    models.DefaultConfigGroups(),
	})
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	staleWatcher := watcher.NewWatcher(components.Artifacts, nil, logger)
	if err := staleWatcher.Start(ctx); err != nil {
		logger.Warn("artifact watcher failed to start", zap.Error(err))
	}
	defer staleWatcher.Stop()

	srv := server.NewServer(
		components.Engine,
		components.Pipeline,
		components.Artifacts,
		components.Storage,
		components.VectorIndex,
		components.KeywordIndex,
		&cfg.Server,
		logger,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	title := fs.String("title", "", "document title")
	docType := fs.String("type", "article", "document type")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ingest [flags] <markdown-file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}

	docTitle := *title
	if docTitle == "" {
		docTitle = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	doc := &models.Document{
		ID:      uuid.New().String(),
		Title:   docTitle,
		DocType: *docType,
	}

	ctx := context.Background()
	if err := components.Storage.CreateDocument(ctx, doc); err != nil {
		fmt.Printf("Failed to create document: %v\n", err)
		os.Exit(1)
	}
	if _, err := components.Artifacts.Write(ctx, doc.ID, models.ArtifactSanitized, content); err != nil {
		fmt.Printf("Failed to store sanitized artifact: %v\n", err)
		os.Exit(1)
	}
	if _, err := components.Pipeline.GenerateHeadingTitles(ctx, doc.ID); err != nil {
		fmt.Printf("Failed to generate heading titles: %v\n", err)
		os.Exit(1)
	}
	if _, err := components.Pipeline.GenerateVecSuggestions(ctx, doc.ID); err != nil {
		fmt.Printf("Failed to generate vectorization suggestions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %s as document %s\n", path, doc.ID)
}

func runPipeline() {
	fs := flag.NewFlagSet("pipeline", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "supersede existing chunks")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: kotae pipeline [flags] <evaluate|headings|content|all> <document-id>")
		os.Exit(1)
	}
	action := fs.Arg(0)
	docID := fs.Arg(1)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	switch action {
	case "evaluate":
		statuses, err := components.Pipeline.Evaluate(ctx, docID)
		if err != nil {
			fmt.Printf("Evaluate failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteFileStatuses(os.Stdout, docID, statuses, cli.OutputFormat(*output))
	case "headings":
		chunks, err := components.Pipeline.ApplyHeadingChunks(ctx, docID, *force)
		if err != nil {
			fmt.Printf("Heading chunks failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Heading chunks: %d\n", len(chunks))
	case "content":
		chunks, err := components.Pipeline.ApplyContentChunks(ctx, docID, *force)
		if err != nil {
			fmt.Printf("Content chunks failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Content chunks: %d\n", len(chunks))
	case "all":
		headings, err := components.Pipeline.ApplyHeadingChunks(ctx, docID, *force)
		if err != nil {
			fmt.Printf("Heading chunks failed: %v\n", err)
			os.Exit(1)
		}
		content, err := components.Pipeline.ApplyContentChunks(ctx, docID, *force)
		if err != nil {
			fmt.Printf("Content chunks failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Heading chunks: %d, content chunks: %d\n", len(headings), len(content))
	default:
		fmt.Printf("Unknown pipeline action: %s\n", action)
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	configName := fs.String("preset", "", "named parameter preset (default preset when empty)")
	generate := fs.Bool("generate", false, "call the language model and record the response")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [flags] <query>")
		os.Exit(1)
	}
	queryText := strings.Join(fs.Args(), " ")

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	answer, err := components.Engine.Ask(context.Background(), queryText, engine.AskOptions{
		ConfigName: *configName,
		Generate:   *generate,
	})
	if err != nil {
		fmt.Printf("Ask failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteAnswer(os.Stdout, answer, cli.OutputFormat(*output))
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	docCount, err := components.Storage.CountDocuments(ctx)
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	chunkCount, err := components.Storage.CountChunks(ctx)
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	report := &cli.StatusReport{
		Documents:       docCount,
		Chunks:          chunkCount,
		VectorIndexSize: components.VectorIndex.Size(),
	}
	_ = cli.WriteStatus(os.Stdout, report, cli.OutputFormat(*output))
}

func printUsage() {
	fmt.Println(`kotae - Document-to-knowledge retrieval pipeline

Usage:
  kotae server [flags]                      Start the HTTP server
  kotae ingest [flags] <markdown-file>      Create a document and its sanitized artifact
  kotae pipeline [flags] <action> <doc-id>  Run pipeline stages (evaluate|headings|content|all)
  kotae ask [flags] <query>                 Ask a question over the indexed chunks
  kotae status [flags]                      Show storage and index status
  kotae version                             Show version
  kotae help                                Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string    Config file path
  --title string     Document title (defaults to the file name)
  --type string      Document type (default: article)

Pipeline Flags:
  --config string    Config file path
  --force            Supersede existing chunks for the stage
  --output string    Output format: text or json (default: text)

Ask Flags:
  --config string    Config file path
  --preset string    Named parameter preset (default preset when empty)
  --generate         Call the language model and record the response
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ingest --title "Design Notes" notes.md
  kotae pipeline evaluate 6e1f...
  kotae pipeline all 6e1f...
  kotae ask "how does staleness detection work"
  kotae ask --generate --preset precise "what is the consolidation threshold"
  kotae status --output json`)
}
