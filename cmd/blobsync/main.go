package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dtcops/blobsync/internal/api"
	"github.com/dtcops/blobsync/internal/archive"
	"github.com/dtcops/blobsync/internal/cache"
	"github.com/dtcops/blobsync/internal/config"
	"github.com/dtcops/blobsync/internal/coordinator"
	"github.com/dtcops/blobsync/internal/influx"
	"github.com/dtcops/blobsync/internal/pipeline"
	"github.com/dtcops/blobsync/internal/repository/postgres"
	"github.com/dtcops/blobsync/internal/retry"
	"github.com/dtcops/blobsync/internal/scanner"
	"github.com/dtcops/blobsync/internal/storage"
	"github.com/dtcops/blobsync/internal/verify"
	"github.com/dtcops/blobsync/pkg/logger"
	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:  "blobsync",
		Usage: "Sync blob change metadata to Postgres and reconcile record counts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (trace, debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Emit JSON logs instead of console output",
				EnvVars: []string{"LOG_JSON"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Run the change-feed ingestion loop",
				Action: runSync,
			},
			{
				Name:   "process",
				Usage:  "Run the archive classification loop",
				Action: runProcess,
			},
			{
				Name:   "verify",
				Usage:  "Run the time-series verification loop",
				Action: runVerify,
			},
			{
				Name:   "run",
				Usage:  "Run all three loops plus the ops API in one process",
				Action: runAll,
			},
			{
				Name:  "init-db",
				Usage: "Create the change table and indexes, then exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db-url",
						Usage:    "Database connection string",
						Required: true,
						EnvVars:  []string{"DATABASE_URL"},
					},
				},
				Action: runInitDB,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("fatal error")
		os.Exit(1)
	}
}

// setup loads configuration, applies logging flags, and returns a context
// that cancels on SIGINT/SIGTERM. Loops check it at the top of each cycle
// and during the inter-cycle sleep; the in-flight item always completes.
func setup(c *cli.Context) (*config.Config, context.Context, context.CancelFunc) {
	cfg := config.Load()
	logger.SetLevel(c.String("log-level"))
	if c.Bool("log-json") {
		logger.UseJSON()
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	return cfg, ctx, stop
}

// openRepository validates database settings, connects, and ensures the
// schema exists.
func openRepository(ctx context.Context, cfg *config.Config) (*postgres.DB, *postgres.ChangeRepository, error) {
	if err := cfg.ValidateDatabase(); err != nil {
		return nil, nil, err
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := postgres.NewChangeRepository(db, cfg.Database.Schema, cfg.Database.Table)
	if err := repo.InitSchema(ctx); err != nil {
		return nil, nil, err
	}
	return db, repo, nil
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxRetries: cfg.Pipeline.MaxRetries,
		Base:       time.Duration(cfg.Pipeline.RetryBaseSeconds) * time.Second,
	}
}

func pollInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Pipeline.PollIntervalSeconds) * time.Second
}

func newIngester(cfg *config.Config, repo *postgres.ChangeRepository) (*pipeline.Ingester, *cache.CursorStore, error) {
	if err := cfg.ValidateBlob(false); err != nil {
		return nil, nil, err
	}

	source, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.Blob.Endpoint,
		AccessKey: cfg.Blob.AccessKey,
		SecretKey: cfg.Blob.SecretKey,
		Bucket:    cfg.Blob.Bucket,
		Region:    cfg.Blob.Region,
		UseSSL:    cfg.Blob.UseSSL,
	})
	if err != nil {
		return nil, nil, err
	}

	cursor, err := cache.NewCursorStore(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cursor cache: %w", err)
	}

	ingester := pipeline.NewIngester(
		scanner.New(source, ""),
		repo,
		cursor,
		cfg.Blob.ProcessHistorical,
	)
	return ingester, cursor, nil
}

func newProcessor(cfg *config.Config, repo *postgres.ChangeRepository) (*pipeline.Processor, error) {
	if err := cfg.ValidateBlob(true); err != nil {
		return nil, err
	}

	archiveStore, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.Blob.Endpoint,
		AccessKey: cfg.Blob.AccessKey,
		SecretKey: cfg.Blob.SecretKey,
		Bucket:    cfg.Blob.ArchiveBucket,
		Region:    cfg.Blob.Region,
		UseSSL:    cfg.Blob.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	coord := coordinator.New(repo, time.Duration(cfg.Pipeline.MinAgeMinutes)*time.Minute)
	classifier := archive.NewClassifier(archiveStore, retryPolicy(cfg))
	return pipeline.NewProcessor(coord, classifier), nil
}

func newVerifyRunner(cfg *config.Config, repo *postgres.ChangeRepository) (*pipeline.VerifyRunner, influx.Client, error) {
	if err := cfg.ValidateInflux(); err != nil {
		return nil, nil, err
	}

	client, err := influx.NewClient(cfg.Influx)
	if err != nil {
		return nil, nil, err
	}

	verifier, err := verify.New(client, cfg.Influx.QueryTemplate, retryPolicy(cfg))
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	coord := coordinator.New(repo, time.Duration(cfg.Pipeline.MinAgeMinutes)*time.Minute)
	return pipeline.NewVerifyRunner(coord, verifier), client, nil
}

func runSync(c *cli.Context) error {
	cfg, ctx, stop := setup(c)
	defer stop()

	db, repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ingester, cursor, err := newIngester(cfg, repo)
	if err != nil {
		return err
	}
	defer cursor.Close()

	return pipeline.NewLoop("ingestion", pollInterval(cfg), ingester.Cycle).Run(ctx)
}

func runProcess(c *cli.Context) error {
	cfg, ctx, stop := setup(c)
	defer stop()

	db, repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	processor, err := newProcessor(cfg, repo)
	if err != nil {
		return err
	}

	return pipeline.NewLoop("processing", pollInterval(cfg), processor.Cycle).Run(ctx)
}

func runVerify(c *cli.Context) error {
	cfg, ctx, stop := setup(c)
	defer stop()

	db, repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, client, err := newVerifyRunner(cfg, repo)
	if err != nil {
		return err
	}
	defer client.Close()

	return pipeline.NewLoop("verification", pollInterval(cfg), runner.Cycle).Run(ctx)
}

// runAll hosts the three loops and the ops API in one process. The loops stay
// fully independent: they share nothing in memory and coordinate only through
// the record store.
func runAll(c *cli.Context) error {
	cfg, ctx, stop := setup(c)
	defer stop()

	db, repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ingester, cursor, err := newIngester(cfg, repo)
	if err != nil {
		return err
	}
	defer cursor.Close()

	processor, err := newProcessor(cfg, repo)
	if err != nil {
		return err
	}

	runner, client, err := newVerifyRunner(cfg, repo)
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(repo, db),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	interval := pollInterval(cfg)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipeline.NewLoop("ingestion", interval, ingester.Cycle).Run(gctx) })
	g.Go(func() error { return pipeline.NewLoop("processing", interval, processor.Cycle).Run(gctx) })
	g.Go(func() error { return pipeline.NewLoop("verification", interval, runner.Cycle).Run(gctx) })
	g.Go(func() error {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("starting ops API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runInitDB creates the table and indexes and exits. Uses the pgx stdlib
// driver with a plain connection URL, the usual shape for one-shot admin
// commands.
func runInitDB(c *cli.Context) error {
	cfg, ctx, stop := setup(c)
	defer stop()

	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	schema := cfg.Database.Schema
	table := cfg.Database.Table
	if schema != "public" {
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
	}
	for _, stmt := range postgres.SchemaDDL(schema, table) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize table %s.%s: %w", schema, table, err)
		}
	}

	logger.Log.Info().Str("schema", schema).Str("table", table).Msg("database initialized")
	return nil
}
