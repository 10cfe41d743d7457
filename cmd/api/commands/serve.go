package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/denisok6893-rgb/condo-unit-matching/internal/cache"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/config"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/events"
	httpapi "github.com/denisok6893-rgb/condo-unit-matching/internal/http"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/matching"
	"github.com/denisok6893-rgb/condo-unit-matching/internal/storage"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the matching HTTP API.

Environment variables:
  API_ADDRESS    - listen address (default :8080)
  STORE_DRIVER   - sqlite or postgres (default sqlite)
  SQLITE_PATH    - SQLite database file (default data/units.db)
  DATABASE_URL   - PostgreSQL connection string (postgres driver)
  SEED_PATH      - JSON seed loaded into an empty store
  WEIGHTS_PATH   - YAML or JSON scoring weights
  CORS_ORIGINS   - comma-separated allowed origins
  REDIS_URL      - enables the match cache
  CACHE_TTL      - match cache TTL (default 10m)
  KAFKA_BROKERS  - enables change events and the re-ranking worker
  LOG_LEVEL      - debug/info/warn/error
  LOG_FORMAT     - text or json`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides API_ADDRESS)")
}

// store is what serve needs beyond the request-path Repository.
type store interface {
	storage.Repository
	EnsureSchema(ctx context.Context) error
	CountUnits(ctx context.Context) (int, error)
	UpsertMany(ctx context.Context, seed storage.Seed) error
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	configureLogging(cfg.LogLevel, cfg.LogFormat)
	if serveAddr != "" {
		cfg.Address = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := seedIfEmpty(ctx, st, cfg.SeedPath); err != nil {
		return err
	}

	engine := matching.NewEngine(loadWeights(cfg.WeightsPath))

	var ranker httpapi.Ranker = engine
	if cfg.RedisURL != "" {
		cached, err := cache.NewRanker(cfg.RedisURL, engine, cfg.CacheTTL)
		if err != nil {
			return err
		}
		defer cached.Close()
		ranker = cached
		log.WithField("ttl", cfg.CacheTTL).Info("match cache enabled")
	}

	opts := []httpapi.Option{
		httpapi.WithRanker(ranker),
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
	}

	var wg sync.WaitGroup
	if cfg.KafkaEnabled() {
		changes := events.NewProducer(cfg.KafkaBrokers, cfg.ChangesTopic)
		defer changes.Close()
		matches := events.NewProducer(cfg.KafkaBrokers, cfg.MatchesTopic)
		defer matches.Close()
		opts = append(opts, httpapi.WithNotifier(changes))

		consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.ChangesTopic, st, ranker, matches)
		defer consumer.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil {
				log.WithError(err).Error("change consumer failed")
				stop()
			}
		}()
		log.WithFields(log.Fields{
			"brokers": cfg.KafkaBrokers,
			"changes": cfg.ChangesTopic,
			"matches": cfg.MatchesTopic,
		}).Info("change events enabled")
	}

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           httpapi.NewServer(engine, st, opts...).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"address": cfg.Address,
			"store":   cfg.StoreDriver,
		}).Info("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	stop()
	wg.Wait()
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	var (
		st  store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		st, err = storage.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		st, err = storage.OpenSQLite(cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return st, nil
}

// seedIfEmpty loads the seed file into a store with no units. A missing seed
// file is not an error.
func seedIfEmpty(ctx context.Context, st store, path string) error {
	n, err := st.CountUnits(ctx)
	if err != nil {
		return fmt.Errorf("count units: %w", err)
	}
	if n > 0 || path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.WithField("path", path).Info("no seed file, starting empty")
		return nil
	}

	seed, err := storage.LoadSeedFromFile(path)
	if err != nil {
		return err
	}
	if err := st.UpsertMany(ctx, seed); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	log.WithFields(log.Fields{
		"units": len(seed.Units),
		"leads": len(seed.Leads),
	}).Info("store seeded")
	return nil
}

func loadWeights(path string) matching.Weights {
	w, err := matching.LoadWeightsFromFile(path)
	if err != nil {
		log.WithError(err).Warn("using default weights")
		return matching.DefaultWeights()
	}
	return w
}
