package alerting

import (
	"fmt"
	"math"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/evaluator"
)

// DefaultEscalationRatio is the share of the band width a value must exceed
// the band by to raise severity one level.
const DefaultEscalationRatio = 0.25

var severityOrder = []string{
	entities.SeverityLow,
	entities.SeverityMedium,
	entities.SeverityHigh,
	entities.SeverityCritical,
}

// BaseSeverity maps a condition to its severity before escalation.
func BaseSeverity(c evaluator.Condition) string {
	switch c {
	case evaluator.Motion, evaluator.SoilMoisture:
		return entities.SeverityHigh
	default:
		return entities.SeverityMedium
	}
}

// SeverityRank orders severities; unknown values rank below low.
func SeverityRank(severity string) int {
	for i, s := range severityOrder {
		if s == severity {
			return i
		}
	}
	return -1
}

func escalate(severity string) string {
	i := SeverityRank(severity)
	if i < 0 || i == len(severityOrder)-1 {
		return severity
	}
	return severityOrder[i+1]
}

// Severity assigns the severity of a breach. A value beyond its band by
// more than ratio of the band width escalates one level; one-sided bands
// measure against the magnitude of the bound instead.
func Severity(b evaluator.Breach, ratio float64) string {
	base := BaseSeverity(b.Condition)
	if ratio <= 0 {
		return base
	}

	distance, reference := excess(b)
	if distance > 0 && distance > ratio*reference {
		return escalate(base)
	}
	return base
}

// excess returns how far the breach lies outside its band and the
// reference length the escalation ratio applies to.
func excess(b evaluator.Breach) (distance, reference float64) {
	band := b.Band
	switch {
	case band.Min != nil && b.Value < *band.Min:
		distance = *band.Min - b.Value
	case band.Max != nil && b.Value > *band.Max:
		distance = b.Value - *band.Max
	default:
		return 0, 0
	}

	if band.Min != nil && band.Max != nil && *band.Max > *band.Min {
		return distance, *band.Max - *band.Min
	}
	bound := band.Min
	if bound == nil || (band.Max != nil && b.Value > *band.Max) {
		bound = band.Max
	}
	reference = math.Abs(*bound)
	if reference == 0 {
		reference = 1
	}
	return distance, reference
}

// Message renders the human readable text of a breach.
func Message(deviceID string, b evaluator.Breach) string {
	if b.Condition == evaluator.Motion {
		return fmt.Sprintf("Motion detected (%s)", deviceID)
	}

	unit := b.Condition.Unit()
	label := b.Condition.Label()
	switch {
	case b.Band.Min != nil && b.Value < *b.Band.Min:
		return fmt.Sprintf("%s %.1f%s below safe minimum %.1f%s (%s)", label, b.Value, unit, *b.Band.Min, unit, deviceID)
	case b.Band.Max != nil && b.Value > *b.Band.Max:
		return fmt.Sprintf("%s %.1f%s above safe maximum %.1f%s (%s)", label, b.Value, unit, *b.Band.Max, unit, deviceID)
	default:
		return fmt.Sprintf("%s %.1f%s outside safe range %s (%s)", label, b.Value, unit, b.Band, deviceID)
	}
}
