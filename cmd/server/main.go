// Command server runs the personnel pipeline tracker: the HTTP API, the SSE
// notification stream, and the optional Redis and Kafka fan-out. Business
// logic lives in the internal services; main only wires dependencies.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"talenttrack/internal/events"
	noteshandler "talenttrack/internal/notes/handler"
	notesservice "talenttrack/internal/notes/service"
	notesstore "talenttrack/internal/notes/store"
	notesmemory "talenttrack/internal/notes/store/memory"
	notespostgres "talenttrack/internal/notes/store/postgres"
	"talenttrack/internal/platform/config"
	"talenttrack/internal/platform/httpserver"
	"talenttrack/internal/platform/logger"
	"talenttrack/internal/platform/metrics"
	"talenttrack/internal/platform/middleware"
	platformredis "talenttrack/internal/platform/redis"
	rosterhandler "talenttrack/internal/roster/handler"
	rosterservice "talenttrack/internal/roster/service"
	rosterstore "talenttrack/internal/roster/store"
	rostermemory "talenttrack/internal/roster/store/memory"
	rosterpostgres "talenttrack/internal/roster/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roster, notes, closeStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	hub := events.NewHub(log, m, cfg.SubscriberBuffer)
	defer hub.Close()

	group, ctx := errgroup.WithContext(ctx)

	// The local hub is always the first publisher; Redis and Kafka attach
	// around it when configured.
	var publisher events.Publisher = hub
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		bridge := events.NewRedisBridge(redisClient, cfg.RedisChannel, hub, log)
		publisher = bridge
		group.Go(func() error {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("redis bridge: %w", err)
			}
			return nil
		})
		log.Info("redis notification bridge enabled", "channel", cfg.RedisChannel)
	}
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sink.Close(flushCtx); err != nil {
				log.Warn("kafka sink close", "error", err)
			}
		}()
		publisher = events.Fanout{publisher, sink}
		log.Info("kafka lifecycle sink enabled", "topic", cfg.KafkaTopic)
	}

	recorder := rosterservice.NewRecorder(roster, publisher, log, m)
	queries := rosterservice.NewQueries(roster, log)
	analytics := rosterservice.NewAnalytics(roster, log)
	noteSvc := notesservice.New(notes, roster, publisher, log)

	router := newRouter(log, recorder, queries, analytics, noteSvc, hub, redisClient)
	srv := httpserver.New(cfg.Addr, router)

	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		hub.Close() // unblocks SSE handlers so shutdown does not wait on them
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (rosterstore.Store, notesstore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("using in-memory stores")
		return rostermemory.New(), notesmemory.New(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, schema := range []string{rosterpostgres.Schema, notespostgres.Schema} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	log.Info("using postgres stores")
	return rosterpostgres.New(db), notespostgres.New(db), func() { db.Close() }, nil
}

func newRouter(
	log *slog.Logger,
	recorder *rosterservice.Recorder,
	queries *rosterservice.Queries,
	analytics *rosterservice.Analytics,
	noteSvc *notesservice.Service,
	hub *events.Hub,
	redisClient *platformredis.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))

	r.Route("/api", func(api chi.Router) {
		rosterhandler.New(recorder, queries, analytics, noteSvc, log).Register(api)
		noteshandler.New(noteSvc, log).Register(api)
		events.NewSSEHandler(hub, log).Register(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(req.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
