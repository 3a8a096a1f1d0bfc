package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/evaluator"
)

func f(v float64) *float64 { return &v }

func TestSeverity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		breach evaluator.Breach
		want   string
	}{
		{"soil just below", evaluator.Breach{Condition: evaluator.SoilMoisture, Value: 15, Band: evaluator.NewBand(20, 60)}, entities.SeverityHigh},
		{"soil far below", evaluator.Breach{Condition: evaluator.SoilMoisture, Value: 5, Band: evaluator.NewBand(20, 60)}, entities.SeverityCritical},
		{"temperature slightly high", evaluator.Breach{Condition: evaluator.Temperature, Value: 36, Band: evaluator.NewBand(15, 35)}, entities.SeverityMedium},
		{"temperature far high", evaluator.Breach{Condition: evaluator.Temperature, Value: 45, Band: evaluator.NewBand(15, 35)}, entities.SeverityHigh},
		{"one sided band", evaluator.Breach{Condition: "co2", Value: 1500, Band: evaluator.Band{Max: f(1000)}}, entities.SeverityHigh},
		{"one sided zero bound", evaluator.Breach{Condition: "frost", Value: -0.2, Band: evaluator.Band{Min: f(0)}}, entities.SeverityMedium},
		{"motion", evaluator.Breach{Condition: evaluator.Motion, Value: 1}, entities.SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Severity(tt.breach, DefaultEscalationRatio))
		})
	}

	assert.Equal(t, entities.SeverityHigh, Severity(tests[1].breach, 0), "zero ratio never escalates")
	assert.Equal(t, entities.SeverityCritical, escalate(entities.SeverityCritical))
	assert.Less(t, SeverityRank(entities.SeverityLow), SeverityRank(entities.SeverityCritical))
	assert.Equal(t, -1, SeverityRank("urgent"))
}

func TestMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Soil moisture 15.0% below safe minimum 20.0% (DEV-001)",
		Message("DEV-001", evaluator.Breach{Condition: evaluator.SoilMoisture, Value: 15, Band: evaluator.NewBand(20, 60)}))
	assert.Equal(t, "Humidity 97.5% above safe maximum 95.0% (DEV-014)",
		Message("DEV-014", evaluator.Breach{Condition: evaluator.Humidity, Value: 97.5, Band: evaluator.NewBand(40, 95)}))
	assert.Equal(t, "Motion detected (DEV-020)",
		Message("DEV-020", evaluator.Breach{Condition: evaluator.Motion, Value: 1}))
	assert.Equal(t, "lux 90000.0 above safe maximum 50000.0 (DEV-001)",
		Message("DEV-001", evaluator.Breach{Condition: "lux", Value: 90000, Band: evaluator.NewBand(0, 50000)}))
}
