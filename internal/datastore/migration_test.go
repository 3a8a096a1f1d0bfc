package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type foreignKey struct {
	Table string `gorm:"column:table"`
	From  string `gorm:"column:from"`
	To    string `gorm:"column:to"`
}

func TestMigratedForeignKeys(t *testing.T) {
	t.Parallel()
	db := NewTestStore(t).Manager().DB()

	tests := []struct {
		table string
		want  []foreignKey
	}{
		{"species", nil},
		{"sensor_devices", []foreignKey{{"species", "species_id", "species_id"}}},
		{"sensor_readings", []foreignKey{{"sensor_devices", "device_id", "device_id"}}},
		{"alerts", []foreignKey{
			{"sensor_devices", "device_id", "device_id"},
			{"sensor_readings", "reading_id", "reading_id"},
		}},
		{"plant_observations", []foreignKey{{"species", "species_id", "species_id"}}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			var got []foreignKey
			require.NoError(t, db.Raw("SELECT \"table\", \"from\", \"to\" FROM pragma_foreign_key_list(?)", tt.table).Scan(&got).Error)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}
