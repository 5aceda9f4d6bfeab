package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-reg-api/internal/graph"
	"github.com/noah-isme/course-reg-api/internal/persistence"
	"github.com/noah-isme/course-reg-api/internal/repository"
	"github.com/noah-isme/course-reg-api/pkg/config"
	"github.com/noah-isme/course-reg-api/pkg/database"
	"github.com/noah-isme/course-reg-api/pkg/logger"
	"github.com/noah-isme/course-reg-api/pkg/storage"
)

type instance struct {
	cfg      *config.Config
	logger   *zap.Logger
	validate *validator.Validate
	graph    *graph.Graph
	snapshot *persistence.Snapshotter
	closers  []func() error
}

func (r *instance) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = r.logger.Sync()
}

// bootstrap loads configuration, opens the configured snapshot backend and
// fills a fresh graph from it.
func bootstrap(ctx context.Context) (*instance, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	rt := &instance{cfg: cfg, logger: logr, validate: validator.New()}
	rows, err := rt.openRowStore(ctx)
	if err != nil {
		rt.close()
		return nil, err
	}

	rt.graph = graph.New(rt.validate, logr)
	rt.snapshot = persistence.NewSnapshotter(rows, logr)
	report, err := rt.snapshot.Load(ctx, rt.graph)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	logr.Info("snapshot loaded",
		zap.String("backend", cfg.Data.Backend),
		zap.Any("loaded", report.Loaded),
		zap.Any("skipped", report.Skipped))
	return rt, nil
}

func (r *instance) openRowStore(ctx context.Context) (persistence.RowStore, error) {
	switch r.cfg.Data.Backend {
	case config.BackendPostgres:
		db, err := database.NewPostgres(ctx, r.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		r.closers = append(r.closers, db.Close)
		if err := database.RunMigrations(db.DB, r.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return repository.NewRecordRepository(db), nil
	default:
		files, err := storage.NewLocalStorage(r.cfg.Data.Dir)
		if err != nil {
			return nil, fmt.Errorf("open data dir: %w", err)
		}
		return persistence.NewCSVStore(files), nil
	}
}
