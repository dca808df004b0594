package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/trainer/internal/branch"
	"github.com/zulandar/trainer/internal/clock"
	"github.com/zulandar/trainer/internal/config"
	"github.com/zulandar/trainer/internal/db"
	"github.com/zulandar/trainer/internal/dialogue"
	"github.com/zulandar/trainer/internal/history"
	"github.com/zulandar/trainer/internal/kv"
	"github.com/zulandar/trainer/internal/logging"
	"github.com/zulandar/trainer/internal/topic"
	"github.com/zulandar/trainer/internal/trainer"
)

const defaultConfigPath = "trainer.yaml"

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to trainer config file")
}

// loadConfig reads the config file. A missing default file falls back to the
// built-in defaults; a missing file named explicitly is an error.
func loadConfig(cmd *cobra.Command, configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured key/value backend. The returned close func
// is never nil.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, func() error, error) {
	noop := func() error { return nil }
	var (
		store kv.Store
		close = noop
	)
	switch cfg.Storage.Driver {
	case config.DriverSQLite, config.DriverMySQL:
		gormDB, err := openGorm(cfg)
		if err != nil {
			return nil, noop, err
		}
		if err := db.AutoMigrate(gormDB); err != nil {
			return nil, noop, err
		}
		gs, err := kv.NewGormStore(gormDB)
		if err != nil {
			return nil, noop, err
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			close = sqlDB.Close
		}
		store = gs
	case config.DriverRedis:
		rdb, err := kv.DialRedis(ctx, kv.RedisOpts{
			Addr:     cfg.Storage.Addr,
			Password: cfg.Storage.Password,
			DB:       cfg.Storage.DB,
		})
		if err != nil {
			return nil, noop, err
		}
		rs, err := kv.NewRedisStore(rdb)
		if err != nil {
			return nil, noop, err
		}
		store, close = rs, rs.Close
	case config.DriverMemory:
		store = kv.NewMemoryStore()
	default:
		return nil, noop, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	return kv.WithQuota(store, cfg.Storage.MaxBytes), close, nil
}

func openGorm(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Storage.Driver == config.DriverMySQL {
		gormDB, err := db.Connect(cfg.Storage.User, cfg.Storage.Host, cfg.Storage.Port, cfg.Storage.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", cfg.Storage.Database, err)
		}
		return gormDB, nil
	}
	return db.OpenSQLite(cfg.Storage.Path)
}

func loadCatalog(cfg *config.Config) (*topic.Catalog, error) {
	if cfg.TopicsFile == "" {
		return topic.Default(), nil
	}
	cat, err := topic.Load(cfg.TopicsFile)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	return cat, nil
}

func userContext(cfg *config.Config) topic.UserContext {
	return topic.UserContext{RoleID: cfg.User.Role, GradeID: cfg.User.Grade}
}

// app is everything a command needs to drive the trainer.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	catalog *topic.Catalog
	history *history.Store
	ctrl    *trainer.Controller
	close   func() error
}

// openApp loads config and wires storage, catalog and controller.
func openApp(ctx context.Context, cmd *cobra.Command, configPath string) (*app, error) {
	cfg, err := loadConfig(cmd, configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	hs, err := history.NewStore(history.StoreOpts{KV: store, Key: cfg.Storage.Key, Logger: logger})
	if err != nil {
		closeStore()
		return nil, err
	}

	clk := clock.Real{}
	registry, err := branch.NewRegistry(branch.RegistryOpts{
		Log:   dialogue.NewLog(clk),
		Clock: clk,
		Opener: func(topicID string) string {
			if t, ok := catalog.Get(topicID); ok {
				return t.Opener
			}
			return ""
		},
	})
	if err != nil {
		closeStore()
		return nil, err
	}
	ctrl, err := trainer.NewController(trainer.ControllerOpts{
		Catalog:   catalog,
		Branches:  registry,
		History:   hs,
		Clock:     clk,
		StepDelay: cfg.Analysis.StepDelay,
		Logger:    logger,
	})
	if err != nil {
		closeStore()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     logger,
		catalog: catalog,
		history: hs,
		ctrl:    ctrl,
		close: func() error {
			_ = logger.Sync()
			return closeStore()
		},
	}, nil
}
