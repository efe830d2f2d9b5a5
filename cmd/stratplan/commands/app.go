package commands

import (
	"context"
	"fmt"

	"github.com/wonny/stratplan/internal/external/reportapi"
	"github.com/wonny/stratplan/internal/plan"
	"github.com/wonny/stratplan/internal/progress"
	"github.com/wonny/stratplan/internal/review"
	"github.com/wonny/stratplan/pkg/config"
	"github.com/wonny/stratplan/pkg/database"
	"github.com/wonny/stratplan/pkg/logger"
	"github.com/wonny/stratplan/pkg/redis"
)

// app holds the wired dependencies shared by the long-running commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *plan.Registry
	keywords review.KeywordTable
	rdb      *redis.Client
	db       *database.DB // nil unless PROGRESS_SOURCE=postgres
	report   *reportapi.Client
	repo     *progress.Repository
	progress *progress.CachedSource
	review   *review.Service
}

// loadConfig reads the environment and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if planFile != "" {
		cfg.Plan.Path = planFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// bootstrap connects every dependency in order. The caller must call close.
func bootstrap(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 2. Initialize logger
	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log}

	// 3. Load the strategic plan
	a.registry, err = plan.LoadRegistry(cfg.Plan.Path)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"path": cfg.Plan.Path,
		"hash": a.registry.Hash(),
		"kras": len(a.registry.KRAs()),
	}).Info("Strategic plan loaded")

	a.keywords = review.DefaultKeywords()
	if cfg.Plan.KeywordsPath != "" {
		a.keywords, err = review.LoadKeywords(cfg.Plan.KeywordsPath)
		if err != nil {
			return nil, fmt.Errorf("load keywords: %w", err)
		}
	}

	// 4. Connect to Redis (disabled unless REDIS_ENABLED)
	a.rdb, err = redis.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. Report service client
	a.report = reportapi.NewClient(cfg, a.rdb, log)

	// 6. Progress source
	var source progress.Source = a.report
	if cfg.UsesPostgres() {
		a.db, err = database.New(ctx, cfg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		log.Info("Connected to database")

		a.repo = progress.NewRepository(a.db.Pool)
		source = a.repo
	}
	a.progress = progress.NewCachedSource(source, redis.NewCache(a.rdb, "stratplan"), cfg.Review.ProgressCacheTTL, log)

	// 7. Review workflow. Progress is committed locally only when this
	// service owns the records.
	deps := review.Deps{
		Gateway:  a.report,
		Insights: a.report,
		Progress: a.progress,
		Catalog:  a.registry,
		Keywords: a.keywords,
		Store:    review.NewStore(cfg.Review.SessionTTL),
		Logger:   log,
	}
	if a.repo != nil {
		deps.Committer = a.progress
	}
	a.review = review.NewService(deps)

	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close redis")
		}
	}
}
