package database

import (
	"time"

	"healthtrack-go/internal/config"
	"healthtrack-go/pkg/log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitPostgres 初始化 Postgres 数据库连接，并按配置执行迁移。
func InitPostgres(cfg config.PostgresConfig) {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	SetRLSRole(cfg.RLSRole)

	if cfg.Migrate {
		if err := RunMigrations(cfg.DSN); err != nil {
			log.Fatal("failed to run migrations", err)
		}
	}

	log.Info("Postgres database connected successfully")
}
