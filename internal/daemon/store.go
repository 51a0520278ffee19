package daemon

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mdr-platform/settings-service/internal/config"
	settingctl "github.com/mdr-platform/settings-service/internal/db/controller/setting"
	"github.com/mdr-platform/settings-service/internal/db/dsn"
	"github.com/mdr-platform/settings-service/internal/db/mongodb"
	"github.com/mdr-platform/settings-service/internal/db/store"
)

const defaultConnectTimeout = 10 * time.Second

// openStore connects the configured engine and prepares its schema or indexes.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	timeout := defaultConnectTimeout
	if cfg.DB.Timeout > 0 {
		timeout = time.Duration(cfg.DB.Timeout) * time.Second
	}

	if cfg.DB.Engine == config.EngineMongoDB {
		connectCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		st, err := mongodb.Connect(connectCtx, mongodb.Options{
			URI:            dsn.Mongo(cfg),
			Database:       cfg.DB.Name,
			MaxPoolSize:    cfg.DB.PoolSize,
			ConnectTimeout: timeout,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		if err := st.EnsureIndexes(connectCtx); err != nil {
			_ = st.Close(ctx)

			return nil, errors.Wrap(err, "failed to create indexes")
		}

		return st, nil
	}

	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
	if cfg.DevMode {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if sqlDB, err := db.DB(); err == nil && cfg.DB.PoolSize > 0 {
		sqlDB.SetMaxOpenConns(int(cfg.DB.PoolSize)) //nolint:gosec
	}

	st, err := settingctl.New(db)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if err := st.Migrate(); err != nil {
		_ = st.Close(ctx)

		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return st, nil
}

func openDialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DB.Engine {
	case config.EngineSQLite:
		return sqlite.Open(dsn.SQLite(cfg)), nil
	case config.EngineMySQL:
		return gormmysql.Open(dsn.MySQL(cfg)), nil
	case config.EnginePostgres:
		return postgres.Open(dsn.Postgres(cfg)), nil
	default:
		return nil, errors.Wrapf(config.ErrUnknownEngine, "engine %q", cfg.DB.Engine)
	}
}
