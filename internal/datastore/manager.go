package datastore

import (
	"fmt"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// Manager owns a database connection and its schema.
type Manager interface {
	// Initialize creates or migrates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location for display.
	Path() string
	// Ping checks that the database answers.
	Ping() error
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// SQLiteConfig holds configuration for the SQLite manager.
type SQLiteConfig struct {
	Path          string        // database file
	SlowThreshold time.Duration // slow statement warning threshold
	Logger        logger.Logger // nil uses the datastore module logger
}

// SQLiteManager handles the SQLite database.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
}

// allModels lists every entity in migration order.
func allModels() []any {
	return []any{
		&entities.Species{},
		&entities.Device{},
		&entities.Reading{},
		&entities.Alert{},
		&entities.Observation{},
	}
}

func gormConfig(l logger.Logger, slow time.Duration) *gorm.Config {
	if l == nil {
		l = GetLogger()
	}
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(l.Module("gorm"), slow),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

// NewSQLiteManager opens the SQLite database at cfg.Path.
func NewSQLiteManager(cfg SQLiteConfig) (*SQLiteManager, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path must be set")
	}

	// Immediate transactions take the write lock up front so a transition
	// never fails on a lock upgrade halfway through.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON&_txlock=immediate", cfg.Path)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cfg.Logger, cfg.SlowThreshold))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY churn.
	sqlDB.SetMaxOpenConns(1)

	return &SQLiteManager{db: db, dbPath: cfg.Path}, nil
}

// Initialize creates the schema.
func (m *SQLiteManager) Initialize() error {
	if err := m.db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	GetLogger().Debug("schema migrated", logger.String("path", m.dbPath))
	return nil
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB {
	return m.db
}

// Path returns the database file path.
func (m *SQLiteManager) Path() string {
	return m.dbPath
}

// Ping checks the connection.
func (m *SQLiteManager) Ping() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// Delete closes and removes the database file with its WAL and SHM files.
func (m *SQLiteManager) Delete() error {
	if err := m.Close(); err != nil {
		return fmt.Errorf("failed to close database before deletion: %w", err)
	}
	if err := os.Remove(m.dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete database file: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(m.dbPath + suffix)
	}
	return nil
}

// IsMySQL returns false for SQLite manager.
func (m *SQLiteManager) IsMySQL() bool {
	return false
}
