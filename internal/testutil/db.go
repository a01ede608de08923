// Package testutil 提供测试共用的数据库夹具。
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"healthtrack-go/internal/model"
	"healthtrack-go/pkg/database"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB 返回一个独立的内存 SQLite 数据库，表结构由 AutoMigrate 创建。
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Profile{}, &model.SymptomEntry{}, &model.RiskAssessment{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	// 共享缓存模式下并发写会返回 SQLITE_LOCKED，测试中串行化连接
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser 插入一个用户及其档案并返回对应的 Viewer。
func CreateUser(t *testing.T, db *gorm.DB, username, role string) model.Viewer {
	t.Helper()
	user := &model.User{Username: username, Password: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	// Postgres 上触发器已经创建了档案，这里用 upsert 统一两种方言
	profile := &model.Profile{UserID: user.ID, Role: role, DisplayName: username}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "display_name"}),
	}).Create(profile).Error
	if err != nil {
		t.Fatalf("failed to save profile: %v", err)
	}
	return model.Viewer{UserID: user.ID, Role: role}
}

// PostgresDB 持有共享的 Postgres 容器连接。
type PostgresDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

var (
	sharedPostgres     *PostgresDB
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error
)

// GetPostgresDB 返回一个已执行迁移的共享 Postgres 容器，short 模式下跳过。
// 应用连接使用非超级用户，使行级安全策略真正生效。
func GetPostgresDB(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	sharedPostgresOnce.Do(func() {
		sharedPostgres, sharedPostgresErr = setupPostgres()
	})
	if sharedPostgresErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedPostgresErr)
	}
	database.SetRLSRole("authenticated")
	return sharedPostgres
}

func setupPostgres() (*PostgresDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "healthtrack",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	superDSN := fmt.Sprintf("postgres://postgres:test_password@%s:%s/healthtrack?sslmode=disable", host, port.Port())
	superDB, err := gorm.Open(postgres.Open(superDSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect as superuser: %w", err)
	}
	// 应用账户拥有 schema 中的表，但不是超级用户
	for _, stmt := range []string{
		"CREATE ROLE healthtrack LOGIN CREATEROLE PASSWORD 'app_password'",
		"GRANT ALL ON SCHEMA public TO healthtrack",
		"ALTER DATABASE healthtrack OWNER TO healthtrack",
	} {
		if err := superDB.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("failed to prepare app role: %w", err)
		}
	}
	if sqlDB, err := superDB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	dsn := fmt.Sprintf("postgres://healthtrack:app_password@%s:%s/healthtrack?sslmode=disable", host, port.Port())
	if err := database.RunMigrations(dsn); err != nil {
		return nil, err
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect as app user: %w", err)
	}
	return &PostgresDB{Container: container, DB: db, DSN: dsn}, nil
}
