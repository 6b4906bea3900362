package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"lettervault/internal/config"
	"lettervault/internal/logger"
	sqlstore "lettervault/internal/storage/sql"
)

// main 对配置的 SQL 数据库执行表结构迁移后退出。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Error("database.type and database.dsn must be configured for migration")
		os.Exit(1)
	}

	// NewStore 在建连后自动执行 AutoMigrate
	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	defer store.Close()

	log.Info("database migration completed", zap.String("type", cfg.Database.Type))
}
