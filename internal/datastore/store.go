package datastore

import (
	"fmt"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// Store bundles the repositories over one database.
type Store struct {
	manager Manager

	Devices      repository.DeviceRepository
	Species      repository.SpeciesRepository
	Readings     repository.ReadingRepository
	Alerts       repository.AlertRepository
	Observations repository.ObservationRepository
}

// NewStore wires repositories over an initialized manager.
func NewStore(m Manager) *Store {
	db := m.DB()
	return &Store{
		manager:      m,
		Devices:      repository.NewDeviceRepository(db),
		Species:      repository.NewSpeciesRepository(db),
		Readings:     repository.NewReadingRepository(db),
		Alerts:       repository.NewAlertRepository(db),
		Observations: repository.NewObservationRepository(db),
	}
}

// Open creates the manager selected by settings, migrates the schema and
// returns the wired store.
func Open(settings *conf.DatabaseSettings) (*Store, error) {
	var (
		m   Manager
		err error
	)

	switch settings.Type {
	case conf.DatabaseMySQL:
		m, err = NewMySQLManager(&MySQLConfig{
			Host:          settings.MySQL.Host,
			Port:          settings.MySQL.Port,
			Username:      settings.MySQL.Username,
			Password:      settings.MySQL.Password,
			Database:      settings.MySQL.Database,
			SlowThreshold: settings.SlowThreshold,
		})
	default:
		m, err = NewSQLiteManager(SQLiteConfig{
			Path:          settings.SQLite.Path,
			SlowThreshold: settings.SlowThreshold,
		})
	}
	if err != nil {
		return nil, err
	}

	if err := m.Initialize(); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to initialize %s store: %w", settings.Type, err)
	}

	GetLogger().Info("store opened",
		logger.String("type", settings.Type),
		logger.String("location", m.Path()))

	return NewStore(m), nil
}

// Manager returns the underlying database manager.
func (s *Store) Manager() Manager {
	return s.manager
}

// Ping checks that the database answers.
func (s *Store) Ping() error {
	return s.manager.Ping()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.manager.Close()
}
