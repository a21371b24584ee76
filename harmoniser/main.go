package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harmonia-labs/harmonia-go/internal/align"
	"github.com/harmonia-labs/harmonia-go/internal/engine"
	"github.com/harmonia-labs/harmonia-go/internal/extraction"
	"github.com/harmonia-labs/harmonia-go/internal/ingest"
	"github.com/harmonia-labs/harmonia-go/internal/ledger"
	"github.com/harmonia-labs/harmonia-go/internal/ontology"
	"github.com/harmonia-labs/harmonia-go/internal/platform/env"
	"github.com/harmonia-labs/harmonia-go/internal/platform/httpserver"
	"github.com/harmonia-labs/harmonia-go/internal/platform/objectstore"
	"github.com/harmonia-labs/harmonia-go/internal/platform/postgres"
	"github.com/harmonia-labs/harmonia-go/internal/query"
	"github.com/harmonia-labs/harmonia-go/internal/repo"
	repomemory "github.com/harmonia-labs/harmonia-go/internal/repo/memory"
	repopostgres "github.com/harmonia-labs/harmonia-go/internal/repo/postgres"
	"github.com/harmonia-labs/harmonia-go/internal/resolver"
	"github.com/harmonia-labs/harmonia-go/internal/schemas"
	"github.com/harmonia-labs/harmonia-go/internal/service/runs"
)

// backends groups the persistence wiring selected by HARMONISER_STORE.
type backends struct {
	runs        repo.RunRepository
	tasks       repo.TaskRepository
	decisions   repo.DecisionRepository
	schemas     repo.SchemaRepository
	entities    repo.EntityRepository
	corrections repo.CorrectionAuditAppender
	readiness   []httpserver.ReadinessCheck
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("HARMONISER_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("HARMONISER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	engineCfg, err := engine.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid engine config", "error", err)
		os.Exit(2)
	}

	storeKind := env.String("HARMONISER_STORE", "postgres")

	var (
		backend backends
		objects objectstore.Store
	)
	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}

	switch storeKind {
	case "memory":
		store := repomemory.NewStore()
		backend = backends{
			runs:        store,
			tasks:       store,
			decisions:   store,
			schemas:     store,
			entities:    store,
			corrections: store,
		}
		objects = objectstore.NewMemoryStore()

	case "postgres":
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid database config", "error", err)
			os.Exit(2)
		}
		db, err := postgres.Open(ctx, dbCfg)
		if err != nil {
			logger.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := repopostgres.Migrate(ctx, db); err != nil {
			logger.Error("database migration failed", "error", err)
			os.Exit(1)
		}

		storeClient, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.EnsureBuckets(startupCtx, storeClient, storeCfg); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()
		objects = objectstore.NewStore(storeClient)

		backend = backends{
			runs:        repopostgres.NewRunStore(db),
			tasks:       repopostgres.NewTaskStore(db),
			decisions:   repopostgres.NewDecisionStore(db),
			schemas:     repopostgres.NewSchemaStore(db),
			entities:    repopostgres.NewEntityStore(db),
			corrections: repopostgres.NewCorrectionStore(db),
			readiness: []httpserver.ReadinessCheck{
				{
					Name: "postgres",
					Check: func(ctx context.Context) error {
						checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
						defer cancel()
						return db.PingContext(checkCtx)
					},
				},
				{
					Name: "minio",
					Check: func(ctx context.Context) error {
						checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
						defer cancel()
						return objectstore.CheckBuckets(checkCtx, storeClient, storeCfg)
					},
				},
			},
		}

	default:
		logger.Error("unknown store backend", "store", storeKind)
		os.Exit(2)
	}

	entities, err := backend.entities.ListEntities(ctx)
	if err != nil {
		logger.Error("entity load failed", "error", err)
		os.Exit(1)
	}
	index := ontology.Build(entities)
	logger.Info("entity index built", "entities", index.Size(), "prefixes", len(index.Prefixes()))

	var extractor extraction.ContextExtractor = extraction.Noop{}
	if endpoint := env.String("HARMONISER_EXTRACTOR_URL", ""); endpoint != "" {
		extractor = extraction.NewRemote(endpoint, extraction.EnvKeySource{Variable: "HARMONISER_EXTRACTOR_KEY"})
		logger.Info("context extractor configured", "endpoint", endpoint)
	}

	led := ledger.New(backend.decisions, backend.corrections)
	registry := schemas.NewRegistry(backend.schemas)
	res := resolver.New(index)
	aligner := align.New(res, led, extractor)
	fetcher := ingest.NewFetcher(objects, storeCfg.BucketRaw)

	eng, err := engine.New(engineCfg, backend.runs, backend.tasks, led, registry, aligner, fetcher, objects, storeCfg, logger)
	if err != nil {
		logger.Error("engine init failed", "error", err)
		os.Exit(2)
	}
	if err := eng.Recover(ctx); err != nil {
		logger.Error("run recovery sweep failed", "error", err)
		os.Exit(1)
	}

	runSvc := runs.New(backend.runs, backend.tasks, eng, logger)
	submitter := query.LogSubmitter{Logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("harmoniser"))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks("harmoniser", backend.readiness...))

	api := newHarmoniserAPI(logger, runSvc, led, registry, res, index, objects, storeCfg, submitter)
	api.register(mux)

	cfg := httpserver.Config{
		Service:         "harmoniser",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "harmoniser", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
