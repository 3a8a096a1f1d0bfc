//go:build integration

package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

func TestMySQLStoreTransitions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("sarawak_flora"),
		tcmysql.WithUsername("fieldwatch"),
		tcmysql.WithPassword("fieldwatch"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	m, err := NewMySQLManager(&MySQLConfig{
		Host:     host,
		Port:     port.Port(),
		Username: "fieldwatch",
		Password: "fieldwatch",
		Database: "sarawak_flora",
		Logger:   logger.NewDiscardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, m.Initialize())
	t.Cleanup(func() { _ = m.Close() })

	store := NewStore(m)
	seed, err := LoadSeed("")
	require.NoError(t, err)
	_, err = seed.Apply(ctx, store)
	require.NoError(t, err)

	// Same-value updates report zero affected rows on MySQL.
	dev, err := store.Devices.SetActive(ctx, "DEV-001", true)
	require.NoError(t, err)
	assert.True(t, dev.IsActive)

	soil := 15.0
	reading := &entities.Reading{DeviceID: "DEV-001", ReadingTimestamp: time.Now(), SoilMoisture: &soil}
	require.NoError(t, store.Readings.CreateReading(ctx, reading))

	res, err := store.Alerts.ApplyTransition(ctx, &repository.Transition{
		DeviceID:  "DEV-001",
		Open:      []*entities.Alert{{DeviceID: "DEV-001", ReadingID: reading.ID, AlertType: "SoilMoisture", Message: "low"}},
		ReadingID: reading.ID,
	})
	require.NoError(t, err)
	require.Len(t, res.Opened, 1)

	_, err = store.Alerts.ApplyTransition(ctx, &repository.Transition{
		DeviceID: "DEV-001",
		Open:     []*entities.Alert{{DeviceID: "DEV-001", ReadingID: reading.ID, AlertType: "SoilMoisture", Message: "low"}},
	})
	require.ErrorIs(t, err, repository.ErrConcurrencyConflict)

	stored, err := store.Readings.GetReading(ctx, reading.ID)
	require.NoError(t, err)
	assert.True(t, stored.Evaluated)
	assert.True(t, stored.AlertGenerated)
}
