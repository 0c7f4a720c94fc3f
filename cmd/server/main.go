// Server entrypoint: wires configuration, stores, services, and the HTTP
// router, then runs until interrupted. Business logic lives in the internal
// services packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	candidatehandler "passage/internal/candidate/handler"
	candidateservice "passage/internal/candidate/service"
	candidatestore "passage/internal/candidate/store/candidate"
	"passage/internal/duplicate"
	"passage/internal/facts"
	"passage/internal/identifier"
	"passage/internal/identifier/sequence"
	"passage/internal/platform/config"
	"passage/internal/platform/httpserver"
	"passage/internal/platform/logger"
	"passage/internal/platform/metrics"
	"passage/internal/platform/postgres"
	platformredis "passage/internal/platform/redis"
	"passage/internal/readmodel"
	screeninghandler "passage/internal/screening/handler"
	screeningservice "passage/internal/screening/service"
	screeningstore "passage/internal/screening/store/screening"
	httptransport "passage/internal/transport/http"
	audit "passage/pkg/platform/audit"
	auditpublisher "passage/pkg/platform/audit/publisher"
	auditmemory "passage/pkg/platform/audit/store/memory"
	auditpostgres "passage/pkg/platform/audit/store/postgres"
)

// factsProvider builds the collaborator fact bundle over a screening view.
type factsProvider interface {
	Facts(screenings candidateservice.ScreeningFacts) candidateservice.Facts
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New()

	var (
		db             *sql.DB
		candidateStore candidateservice.CandidateStore
		directory      duplicate.Directory
		screeningStore screeningservice.Store
		sequenceStore  identifier.SequenceStore
		auditStore     audit.Store
		factsStore     factsProvider
		txRunner       candidateservice.TxRunner
	)

	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}

		pgCandidates := candidatestore.NewPostgres(db)
		candidateStore = pgCandidates
		directory = pgCandidates
		screeningStore = screeningstore.NewPostgres(db)
		sequenceStore = sequence.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		factsStore = facts.NewPostgres(db)
		txRunner = newLifecycleTx(db)
		log.Info("using postgres stores")
	} else {
		memCandidates := candidatestore.NewInMemory()
		candidateStore = memCandidates
		directory = memCandidates
		screeningStore = screeningstore.NewInMemory()
		sequenceStore = sequence.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		factsStore = facts.NewInMemoryStore()
		log.Warn("no database configured, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisherOpts := []auditpublisher.Option{auditpublisher.WithLogger(log)}
	if cfg.AuditBuffer > 0 {
		publisherOpts = append(publisherOpts, auditpublisher.WithAsyncBuffer(cfg.AuditBuffer))
	}
	publisher := auditpublisher.NewPublisher(auditStore, publisherOpts...)
	defer publisher.Close()

	issuer, err := identifier.New(sequenceStore, cfg.CandidateIDPrefix)
	if err != nil {
		return err
	}
	detector := duplicate.NewDetector(directory)

	lifecycleOpts := []candidateservice.Option{
		candidateservice.WithLogger(log),
		candidateservice.WithAuditPublisher(publisher),
		candidateservice.WithMetrics(m),
		candidateservice.WithDuplicateFinder(detector),
	}
	if invalidator := readmodel.New(redisClient, readmodel.WithLogger(log), readmodel.WithMetrics(m)); invalidator != nil {
		lifecycleOpts = append(lifecycleOpts, candidateservice.WithChangeListener(invalidator))
	}
	if txRunner != nil {
		lifecycleOpts = append(lifecycleOpts, candidateservice.WithTxRunner(txRunner))
	}

	lifecycle, err := candidateservice.New(candidateStore, factsStore.Facts(screeningStore), issuer, lifecycleOpts...)
	if err != nil {
		return err
	}

	screenings, err := screeningservice.New(screeningStore, lifecycle,
		screeningservice.WithLogger(log),
		screeningservice.WithAuditPublisher(publisher),
		screeningservice.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Candidates:    candidatehandler.New(lifecycle, publisher),
		Screenings:    screeninghandler.New(screenings),
		Identifiers:   issuer,
		Logger:        log,
		JWTSigningKey: cfg.JWTSigningKey,
		AdminToken:    cfg.AdminToken,
		Ready: func() error {
			if db != nil {
				if err := db.Ping(); err != nil {
					return err
				}
			}
			if redisClient != nil {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := redisClient.Health(pingCtx); err != nil {
					return err
				}
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
