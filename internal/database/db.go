package database

import (
	"strings"

	"estoque-backend/internal/config"
	"estoque-backend/internal/logging"
	"estoque-backend/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// IsPostgresDSN reports whether dsn targets postgres rather than a sqlite file.
func IsPostgresDSN(dsn string) bool {
	d := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(d, "postgres://") ||
		strings.HasPrefix(d, "postgresql://") ||
		strings.Contains(d, "host=")
}

// Open connects and migrates the app metadata tables (users, audit logs).
func Open(dsn string) (*gorm.DB, error) {
	dialector := sqlite.Open(dsn)
	if IsPostgresDSN(dsn) {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.AuditLog{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

func Init(cfg *config.Config) {
	db, err := Open(cfg.DatabaseDSN)
	if err != nil {
		logging.GetLogger().Fatalf("database init failed: %v", err)
	}
	DB = db

	driver := "sqlite"
	if IsPostgresDSN(cfg.DatabaseDSN) {
		driver = "postgres"
	}
	logging.Module("database").WithField("driver", driver).Info("database connected, migrations applied")
}
