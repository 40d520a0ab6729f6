package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"stocktake/internal/audit"
	"stocktake/internal/audit/archive"
	"stocktake/internal/audit/queue"
	"stocktake/internal/events"
	"stocktake/internal/platform/config"
	"stocktake/internal/platform/httpserver"
	"stocktake/internal/platform/logger"
	"stocktake/internal/platform/metrics"
	platformredis "stocktake/internal/platform/redis"
	"stocktake/internal/remote"
	"stocktake/internal/selection"
	"stocktake/internal/session"
	httptransport "stocktake/internal/transport/http"
)

// main wires the audit engine: remote client, offline queue, session manager,
// write pipeline, bulk coordinator, and the HTTP surface. Business logic lives
// in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()
	bus := events.NewBus()

	// Redis backs the queue and session stores when configured; otherwise
	// everything runs in memory and state does not survive a restart.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected", "url", cfg.Redis.URL)
	}

	var client remote.Client
	if cfg.RemoteBaseURL != "" {
		client = remote.NewHTTPClient(cfg.RemoteBaseURL, cfg.RequestTimeout)
		log.Info("remote client configured", "base_url", cfg.RemoteBaseURL)
	} else {
		client = remote.NewMockClient()
		log.Warn("no remote URL configured, using mock client")
	}

	var queueStore queue.Store
	var sessionStore session.Store
	if redisClient != nil {
		queueStore = queue.NewRedisStore(redisClient.Client)
		sessionStore = session.NewRedisStore(redisClient.Client)
	} else {
		queueStore = queue.NewInMemoryStore()
		sessionStore = session.NewInMemoryStore()
	}

	var archiveStore archive.Store = archive.NewInMemoryStore()
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		pg := archive.NewPostgresStore(db)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Error("postgres migration failed", "error", err)
			os.Exit(1)
		}
		archiveStore = pg
		log.Info("audit archive backed by postgres")
	}

	q := queue.New(queueStore, client,
		queue.WithLogger(log),
		queue.WithMetrics(m),
		queue.WithCapacity(cfg.QueueCapacity),
	)

	sessions, err := session.NewManager(sessionStore,
		session.WithLogger(log),
		session.WithBus(bus),
		session.WithHistoryLimit(cfg.HistoryLimit),
	)
	if err != nil {
		log.Error("session manager init failed", "error", err)
		os.Exit(1)
	}

	conn := remote.NewConnectivity()
	set := selection.NewSet()

	pipeline := audit.NewPipeline(client, q, archiveStore, sessions, conn,
		audit.WithLogger(log),
		audit.WithBus(bus),
		audit.WithMetrics(m),
		audit.WithSelection(set),
		audit.WithMaxRetry(cfg.MaxRetry),
		audit.WithBackoffStep(cfg.BackoffStep),
	)

	coordinator := audit.NewCoordinator(pipeline, client,
		audit.WithCoordinatorLogger(log),
		audit.WithCoordinatorBus(bus),
		audit.WithCoordinatorMetrics(m),
		audit.WithChunkSize(cfg.ChunkSize),
		audit.WithPacing(cfg.DelayAfterOK, cfg.DelayAfterErr),
	)

	// Regained connectivity drains whatever queued while offline.
	conn.OnRestored(func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		result, err := q.Flush(ctx)
		if err != nil {
			log.Error("queue flush on reconnect failed", "error", err)
			return
		}
		if result.Flushed > 0 || result.Remaining > 0 {
			log.Info("queue flushed on reconnect", "flushed", result.Flushed, "remaining", result.Remaining)
		}
	})

	handler := httptransport.New(log, sessions, pipeline, coordinator, q, set, conn)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	handler.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, r)

	log.Info("starting stocktake engine", "addr", cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
