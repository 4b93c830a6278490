// Package main wires config, storage, the marketplace/analyzer/embedder
// adapters, the pipeline, the scheduler, and the admin HTTP surface into a
// single server process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mhbka/itemtracker/internal/analyzer"
	"github.com/mhbka/itemtracker/internal/api"
	"github.com/mhbka/itemtracker/internal/auth"
	"github.com/mhbka/itemtracker/internal/embedder"
	"github.com/mhbka/itemtracker/internal/gallery"
	"github.com/mhbka/itemtracker/internal/marketplace"
	"github.com/mhbka/itemtracker/internal/marketplace/mercari"
	"github.com/mhbka/itemtracker/internal/pipeline"
	"github.com/mhbka/itemtracker/internal/scheduler"
	"github.com/mhbka/itemtracker/internal/sellergraph"
	"github.com/mhbka/itemtracker/internal/store"
	"github.com/mhbka/itemtracker/internal/vectorindex"
	"github.com/mhbka/itemtracker/pkg/metrics"
	"github.com/mhbka/itemtracker/pkg/mid"
)

// config holds every environment-sourced setting. Missing required values
// abort startup, per spec.
type config struct {
	hostAddr         string
	databaseURL      string
	embedderEndpoint string
	jwtSecret        string
	anthropicKey     string
	anthropicModel   string
	anthropicURL     string
	anthropicVersion string
	openaiKey        string
	openaiModel      string
	openaiURL        string
	neo4jURL         string
	neo4jUser        string
	neo4jPass        string
	qdrantAddr       string
	qdrantCollection string
	corsOrigin       string
}

func loadConfig() (config, error) {
	required := func(key string) (string, error) {
		v := os.Getenv(key)
		if v == "" {
			return "", fmt.Errorf("missing required environment variable %s", key)
		}
		return v, nil
	}

	cfg := config{}
	var err error
	if cfg.hostAddr, err = required("HOST_ADDR"); err != nil {
		return cfg, err
	}
	if cfg.databaseURL, err = required("DATABASE_URL"); err != nil {
		return cfg, err
	}
	if cfg.embedderEndpoint, err = required("EMBEDDER_ENDPOINT"); err != nil {
		return cfg, err
	}
	if cfg.jwtSecret, err = required("JWT_SECRET"); err != nil {
		return cfg, err
	}
	cfg.anthropicKey = envOr("ANTHROPIC_API_KEY", "")
	cfg.anthropicModel = envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest")
	cfg.anthropicURL = envOr("ANTHROPIC_URL", "https://api.anthropic.com/v1/messages")
	cfg.anthropicVersion = envOr("ANTHROPIC_VERSION", "2023-06-01")
	cfg.openaiKey = envOr("OPENAI_API_KEY", "")
	cfg.openaiModel = envOr("OPENAI_MODEL", "gpt-4o")
	cfg.openaiURL = envOr("OPENAI_URL", "https://api.openai.com/v1/chat/completions")
	cfg.neo4jURL = envOr("NEO4J_URL", "neo4j://localhost:7687")
	cfg.neo4jUser = envOr("NEO4J_USER", "neo4j")
	cfg.neo4jPass = envOr("NEO4J_PASS", "password")
	cfg.qdrantAddr = envOr("QDRANT_ADDR", "localhost:6334")
	cfg.qdrantCollection = envOr("QDRANT_COLLECTION", "itemtracker")
	cfg.corsOrigin = envOr("CORS_ORIGIN", "*")
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.databaseURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.neo4jURL, neo4j.BasicAuth(cfg.neo4jUser, cfg.neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)
	sellerGraph := sellergraph.New(neo4jDriver)

	vectorIndex, err := vectorindex.New(cfg.qdrantAddr, cfg.qdrantCollection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorIndex.Close()
	if err := vectorIndex.EnsureCollection(ctx, 1536); err != nil {
		logger.Warn("vectorindex.ensure_collection_failed", "error", err)
	}

	signer, err := mercari.NewSigner()
	if err != nil {
		return fmt.Errorf("mercari signer: %w", err)
	}
	registry := marketplace.Registry{
		gallery.Mercari: mercari.New(signer),
	}

	var vendor analyzer.VendorClient
	switch {
	case cfg.anthropicKey != "":
		vendor = analyzer.NewAnthropicClient(cfg.anthropicURL, cfg.anthropicKey, cfg.anthropicModel, cfg.anthropicVersion)
	case cfg.openaiKey != "":
		vendor = analyzer.NewOpenAIClient(cfg.openaiURL, cfg.openaiKey, cfg.openaiModel)
	default:
		return fmt.Errorf("no LLM vendor configured: set ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}
	llmAnalyzer := analyzer.New(vendor, logger)

	embedClient := embedder.New(cfg.embedderEndpoint)

	verifier := auth.New(cfg.jwtSecret, 24*time.Hour)

	sched := scheduler.New(nil, st, logger)

	p := pipeline.New(pipeline.Deps{
		Adapters:    registry,
		Analyzer:    llmAnalyzer,
		Embedder:    embedClient,
		Store:       st,
		SellerGraph: sellerGraph,
		VectorIndex: vectorIndex,
		Notifier:    sched,
		Logger:      logger,
	})
	sched.SetPipeline(p)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start: %w", err)
	}
	defer sched.Shutdown()

	apiServer := api.New(st, sched, sellerGraph, logger)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	apiServer.Routes(mux, verifier)

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.corsOrigin),
		mid.OTel("itemtracker"),
	)

	srv := &http.Server{
		Addr:         cfg.hostAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.hostAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
