// jobmate-etl-service
//
// Daily ingestion of job listings into the job_data table:
//   - create_table → extract (Adzuna search API) → transform (experience
//     and skills normalization) → load (upsert on external_id + job_source)
//   - cron scheduler, plus an admin REST API (gin) to trigger and inspect runs
//   - gRPC health service following database reachability
//
// Publishes EVENT_JOBS_LOADED to Redis after each successful run.
//
// Flags:
//
//	-once            run the pipeline a single time and exit (file-locked)
//	-save-app-key    store ADZUNA_APP_KEY in the OS keychain for ADZUNA_APP_ID and exit
//	-delete-app-key  remove the keychain entry for ADZUNA_APP_ID and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"jobmate/etl-service/internal/api"
	"jobmate/etl-service/internal/config"
	"jobmate/etl-service/internal/db"
	"jobmate/etl-service/internal/grpcserver"
	"jobmate/etl-service/internal/logger"
	"jobmate/etl-service/internal/normalize"
	"jobmate/etl-service/internal/pipeline"
	"jobmate/etl-service/internal/scheduler"
	"jobmate/etl-service/internal/scraper"
	"jobmate/etl-service/internal/secrets"
	"jobmate/etl-service/internal/store"
)

const version = "1.0.0"

func main() {
	once := flag.Bool("once", false, "run the pipeline once and exit")
	saveKey := flag.Bool("save-app-key", false, "store ADZUNA_APP_KEY in the OS keychain and exit")
	deleteKey := flag.Bool("delete-app-key", false, "remove the ADZUNA_APP_ID entry from the OS keychain and exit")
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"))

	if *saveKey || *deleteKey {
		if err := keychainCommand(*saveKey, os.Getenv("ADZUNA_APP_ID"), os.Getenv("ADZUNA_APP_KEY")); err != nil {
			log.Fatal().Err(err).Msg("keychain")
		}
		return
	}

	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	logger.Init(cfg.LogLevel)
	for _, w := range cfg.Warnings {
		log.Warn().Msg(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ── Storage ─────────────────────────────────────────────────────────────
	log.Info().Msg("connecting to database…")
	st, err := store.Open(ctx, cfg.DatabaseURL, int32(cfg.Pipeline.Concurrency)+2)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer st.Close()
	log.Info().Msg("database connected ✓")

	// ── Redis (optional) ────────────────────────────────────────────────────
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	if rdb != nil {
		defer rdb.Close()
		log.Info().Msg("redis connected ✓")
	} else {
		log.Info().Msg("REDIS_URL not set: page cache and events disabled")
	}

	p := buildPipeline(cfg, st, rdb)

	if *once {
		code := runOnce(ctx, cfg, p)
		// os.Exit skips deferred calls.
		if rdb != nil {
			rdb.Close()
		}
		st.Close()
		cancel()
		os.Exit(code)
	}

	// ── Scheduler ───────────────────────────────────────────────────────────
	sched, err := scheduler.New(p, cfg.Schedule, cfg.RunOnStart)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler")
	}

	// ── gRPC health ─────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.GRPCPort).Msg("gRPC listen")
	}
	grpcSrv := grpcserver.NewServer(st)
	go grpcSrv.Watch(ctx, 30*time.Second)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server stopped")
		}
	}()

	// ── HTTP server ─────────────────────────────────────────────────────────
	gin.SetMode(gin.ReleaseMode)
	h := api.NewHandler(ctx, p, st, p.Normalizer(), version)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewRouter(h),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("version", version).Str("port", cfg.Port).Msg("etl-service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	<-ctx.Done()

	log.Info().Msg("shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	grpcSrv.Stop()
	sched.Stop(shutdownCtx)
	log.Info().Msg("stopped.")
}

func buildPipeline(cfg *config.Config, st store.Store, rdb *redis.Client) *pipeline.Pipeline {
	pc := cfg.Pipeline

	opts := scraper.Options{
		AppID:      cfg.AdzunaAppID,
		AppKey:     cfg.AdzunaAppKey,
		Country:    cfg.AdzunaCountry,
		MaxPages:   pc.MaxPages,
		MaxDaysOld: pc.MaxDaysOld,
		MaxRetries: pc.MaxRetries,
		RetryDelay: pc.RetryDelay(),
		RatePerSec: pc.RatePerSec,
	}
	var events pipeline.EventPublisher
	if rdb != nil {
		if pc.CacheTTL() > 0 {
			opts.Cache = scraper.NewRedisPageCache(rdb, pc.CacheTTL())
		}
		events = pipeline.NewRedisPublisher(rdb)
	}

	return pipeline.New(st, scraper.NewFetcher(opts), normalize.New(pc.Skills), events, pipeline.Options{
		Roles:          pc.Roles,
		Where:          pc.Where,
		ExcludeTerms:   pc.ExcludeTerms,
		BatchSize:      pc.BatchSize,
		Concurrency:    pc.Concurrency,
		TaskRetries:    pc.TaskRetries,
		TaskRetryDelay: pc.TaskRetryDelay(),
	})
}

// runOnce holds an exclusive file lock for the duration of one run so that
// overlapping invocations (cron, manual) do not load concurrently.
// It returns the process exit code.
func runOnce(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) int {
	lock := flock.New(cfg.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		log.Error().Err(err).Str("lock", cfg.LockFile).Msg("lock error")
		return 1
	}
	if !locked {
		log.Warn().Str("lock", cfg.LockFile).Msg("another run holds the lock, exiting")
		return 2
	}
	defer lock.Unlock()

	rep, err := p.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return 1
	}
	log.Info().Str("run_id", rep.RunID).Int("loaded", rep.Loaded).Msg("run complete")
	return 0
}

// keychainCommand stores (save) or removes the Adzuna app key for appID.
func keychainCommand(save bool, appID, key string) error {
	if save {
		if err := secrets.SetAdzunaAppKey(appID, key); err != nil {
			return fmt.Errorf("save app key: %w", err)
		}
		log.Info().Str("service", secrets.KeyringService).Msg("app key stored in keychain")
		return nil
	}
	if err := secrets.DeleteAdzunaAppKey(appID); err != nil {
		return fmt.Errorf("delete app key: %w", err)
	}
	log.Info().Str("service", secrets.KeyringService).Msg("app key removed from keychain")
	return nil
}
