package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Open opens a connection with the named driver ("postgres" or "sqlite").
// Unique-constraint violations are translated to gorm.ErrDuplicatedKey.
func Open(driver, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// SQLite serializes writers; a single connection also keeps
		// in-memory databases from splitting across the pool.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Connect opens the global database connection
func Connect(driver, dsn string, logLevel logger.LogLevel, log *zap.Logger) error {
	db, err := Open(driver, dsn, logLevel)
	if err != nil {
		return err
	}
	DB = db
	log.Info("database connection established", zap.String("driver", driver))
	return nil
}

// Migrate creates or updates the MEL tables on db
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&MelRule{}, &MelAlert{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// AutoMigrate runs database migrations on the global connection
func AutoMigrate(log *zap.Logger) error {
	log.Info("running database migrations")
	if err := Migrate(DB); err != nil {
		return err
	}
	log.Info("database migrations completed")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
