package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/senyabanana/tender-lifecycle/internal/config"
	"github.com/senyabanana/tender-lifecycle/internal/db"
	"github.com/senyabanana/tender-lifecycle/internal/docgen"
	"github.com/senyabanana/tender-lifecycle/internal/handlers"
	"github.com/senyabanana/tender-lifecycle/internal/notify"
	"github.com/senyabanana/tender-lifecycle/internal/repository"
	"github.com/senyabanana/tender-lifecycle/internal/repository/memory"
	"github.com/senyabanana/tender-lifecycle/internal/router"
	"github.com/senyabanana/tender-lifecycle/internal/scheduler"
	"github.com/senyabanana/tender-lifecycle/internal/services"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store repository.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Println("using in-memory store, data is lost on exit")
		store = memory.New().Repositories()
	default:
		runDBMigration(cfg.MigrationURL, cfg.PostgresConn)

		dbPool, err := db.InitDb(ctx, cfg)
		if err != nil {
			log.Fatalf("error initializing database: %v", err)
		}
		defer dbPool.Close()

		store = repository.Store{
			Projects:  repository.NewPostgresProjectRepository(dbPool),
			Bids:      repository.NewPostgresBidRepository(dbPool),
			Contracts: repository.NewPostgresContractRepository(dbPool),
			Notices:   repository.NewPostgresNoticeRepository(dbPool),
		}
	}

	var docs docgen.Generator
	if cfg.DocumentServiceURL != "" {
		docs = docgen.NewClient(cfg.DocumentServiceURL)
	} else {
		logger.Println("DOCUMENT_SERVICE_URL is empty, documents are generated offline")
		docs = docgen.NewOffline("http://localhost/documents")
	}

	catalog, err := notify.DefaultCatalog()
	if err != nil {
		log.Fatalf("cannot load notice catalog: %v", err)
	}
	if missing := catalog.Missing(notify.Events); len(missing) > 0 {
		log.Fatalf("notice catalog has no templates for %v", missing)
	}
	emitter := notify.NewEmitter(store.Notices, catalog, logger)

	settings := cfg.Settings()
	workflow := services.NewContractWorkflow(store, docs, settings)
	lifecycle := services.NewProjectLifecycle(store, workflow, docs, settings)

	reconciler := scheduler.New(store, lifecycle, workflow, emitter, scheduler.WithLogger(logger))
	handle := scheduler.NewHandle(reconciler, cfg.CycleInterval, logger)

	adminHandler := handlers.NewAdminHandler(lifecycle, workflow, handle, emitter, store.Notices, logger, cfg.RequestTimeout)
	routes := router.InitRoutes(adminHandler, cfg.DebugEndpoints)
	if cfg.DebugEndpoints {
		logger.Println("debug endpoints are enabled")
	}

	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("server is listening on %s...", cfg.ServerAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := handle.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		handle.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
	log.Println("server stopped")
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
