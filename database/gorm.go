package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/sahilchouksey/course-commerce-api/config"
	"github.com/sahilchouksey/course-commerce-api/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GORMStore struct {
	db  *gorm.DB
	log *slog.Logger
}

// StartGORM opens the primary PostgreSQL connection
func StartGORM(env *config.EnvironmentVariable, log *slog.Logger) (*GORMStore, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if env.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(env.PostgresDSN()), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Error("unable to connect to PostgreSQL", "error", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("connected to PostgreSQL", "host", env.DB_HOST, "database", env.DB_NAME)
	return &GORMStore{db: db, log: log}, nil
}

// NewGORMStore wraps an existing connection, used with sqlite in tests
func NewGORMStore(db *gorm.DB, log *slog.Logger) *GORMStore {
	return &GORMStore{db: db, log: log}
}

// Init runs AutoMigrate and the partial indexes GORM tags cannot express
func (s *GORMStore) Init() error {
	s.log.Info("running AutoMigrate", "models", len(model.All()))
	if err := s.db.AutoMigrate(model.All()...); err != nil {
		return err
	}
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}

	// one successful payment per order, enforced by the database
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_success
			ON payments (order_id) WHERE status = 'success'`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GORMStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
