package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

func ptr[T any](v T) *T { return &v }

func TestWriteAlerts(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 5, 2, 6, 0, 0, 0, time.UTC)
	resolved := created.Add(90 * time.Minute)
	alerts := []entities.Alert{
		{
			ID:            2,
			DeviceID:      "DEV-001",
			AlertType:     "SoilMoisture",
			Severity:      entities.SeverityHigh,
			MeasuredValue: ptr(15.0),
			Message:       "Soil moisture 15.0% below safe minimum 20.0% (DEV-001)",
			CreatedAt:     created,
			IsResolved:    true,
			ResolvedAt:    &resolved,
			ResolvedBy:    ptr("ranger"),
			Resolution:    ptr(entities.ResolutionOperator),
		},
		{
			ID:        1,
			DeviceID:  "DEV-020",
			AlertType: "Motion",
			Severity:  entities.SeverityMedium,
			Message:   "Motion detected (DEV-020)",
			CreatedAt: created,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAlerts(&buf, alerts, time.FixedZone("MYT", 8*3600)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{AlertSheet}, f.GetSheetList())
	rows, err := f.GetRows(AlertSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, AlertHeader, rows[0])
	assert.Equal(t, []string{"2", "DEV-001", "SoilMoisture", "high", "15",
		"Soil moisture 15.0% below safe minimum 20.0% (DEV-001)",
		"2026-05-02 14:00:00", "Yes", "2026-05-02 15:30:00", "ranger", "operator"}, rows[1])
	require.GreaterOrEqual(t, len(rows[2]), 8)
	assert.Equal(t, []string{"1", "DEV-020", "Motion", "medium", "", "Motion detected (DEV-020)",
		"2026-05-02 14:00:00", "No"}, rows[2][:8])
	for _, cell := range rows[2][8:] {
		assert.Empty(t, cell)
	}
}

func TestWriteAlertsEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteAlerts(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(AlertSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
