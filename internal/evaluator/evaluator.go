// Package evaluator maps a reading and a device profile to the conditions
// the reading breaches. Everything here is pure: no I/O and no hidden state,
// so replaying a reading always yields the same breaches.
package evaluator

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// Condition names a threshold breach category. The set is open: any named
// metric a reading carries becomes a condition when the profile has a band
// for it.
type Condition string

// Built-in conditions in evaluation order.
const (
	Temperature  Condition = "Temperature"
	Humidity     Condition = "Humidity"
	SoilMoisture Condition = "SoilMoisture"
	Motion       Condition = "Motion"
)

var builtIn = []Condition{Temperature, Humidity, SoilMoisture, Motion}

// BuiltIn returns the built-in conditions in evaluation order.
func BuiltIn() []Condition {
	return slices.Clone(builtIn)
}

// IsBuiltIn reports whether c is one of the built-in conditions.
func (c Condition) IsBuiltIn() bool {
	return slices.Contains(builtIn, c)
}

// Unit returns the display unit of a condition's measured value.
func (c Condition) Unit() string {
	switch c {
	case Temperature:
		return "°C"
	case Humidity, SoilMoisture:
		return "%"
	default:
		return ""
	}
}

// Label returns the human readable name of a condition.
func (c Condition) Label() string {
	switch c {
	case Temperature:
		return "Temperature"
	case Humidity:
		return "Humidity"
	case SoilMoisture:
		return "Soil moisture"
	case Motion:
		return "Motion"
	default:
		return string(c)
	}
}

// Band is an inclusive safe range. A nil side is unbounded.
type Band struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// NewBand returns a band bounded on both sides.
func NewBand(lo, hi float64) Band {
	return Band{Min: &lo, Max: &hi}
}

// Contains reports whether v lies within the band.
func (b Band) Contains(v float64) bool {
	if b.Min != nil && v < *b.Min {
		return false
	}
	if b.Max != nil && v > *b.Max {
		return false
	}
	return true
}

// Bounded reports whether the band constrains anything.
func (b Band) Bounded() bool {
	return b.Min != nil || b.Max != nil
}

// String formats the band as [min, max] with open sides shown as -inf/+inf.
func (b Band) String() string {
	lo, hi := "-inf", "+inf"
	if b.Min != nil {
		lo = fmt.Sprintf("%g", *b.Min)
	}
	if b.Max != nil {
		hi = fmt.Sprintf("%g", *b.Max)
	}
	return "[" + lo + ", " + hi + "]"
}

// over returns the side of b that overrides, falling back to base per side.
func (b Band) over(base Band) Band {
	out := base
	if b.Min != nil {
		out.Min = b.Min
	}
	if b.Max != nil {
		out.Max = b.Max
	}
	return out
}

// Profile is the effective safe configuration of one device.
type Profile struct {
	Bands           map[Condition]Band
	MotionSensitive bool
}

// Policy holds the default bands applied to devices without their own.
type Policy struct {
	Bands map[Condition]Band
}

// DefaultPolicy returns the built-in default bands.
func DefaultPolicy() *Policy {
	return &Policy{Bands: map[Condition]Band{
		Temperature:  NewBand(15, 35),
		Humidity:     NewBand(40, 95),
		SoilMoisture: NewBand(20, 80),
	}}
}

// PolicyFromSettings builds the default policy from configuration. Custom
// bands are keyed by the metric name readings carry.
func PolicyFromSettings(t *conf.ThresholdSettings) *Policy {
	if t == nil {
		return DefaultPolicy()
	}
	p := &Policy{Bands: map[Condition]Band{
		Temperature:  NewBand(t.Temperature.Min, t.Temperature.Max),
		Humidity:     NewBand(t.Humidity.Min, t.Humidity.Max),
		SoilMoisture: NewBand(t.SoilMoisture.Min, t.SoilMoisture.Max),
	}}
	for name, b := range t.Custom {
		p.Bands[Condition(name)] = NewBand(b.Min, b.Max)
	}
	return p
}

// ProfileFor merges the bands configured on device over the policy.
func ProfileFor(device *entities.Device, policy *Policy) Profile {
	if policy == nil {
		policy = DefaultPolicy()
	}
	prof := Profile{Bands: maps.Clone(policy.Bands)}
	if prof.Bands == nil {
		prof.Bands = make(map[Condition]Band)
	}
	if device == nil {
		return prof
	}

	prof.MotionSensitive = device.MotionSensitive
	overrides := map[Condition]Band{
		Temperature:  {Min: device.TemperatureMin, Max: device.TemperatureMax},
		Humidity:     {Min: device.HumidityMin, Max: device.HumidityMax},
		SoilMoisture: {Min: device.SoilMoistureMin, Max: device.SoilMoistureMax},
	}
	for c, b := range overrides {
		if b.Bounded() {
			prof.Bands[c] = b.over(prof.Bands[c])
		}
	}
	return prof
}

// Breach is one condition a reading triggered.
type Breach struct {
	Condition Condition
	Value     float64
	Band      Band
}

// Evaluate returns the conditions reading breaches under profile. Built-in
// conditions come first in declaration order, extension conditions after in
// name order. Missing metrics are skipped. An empty result means nominal.
func Evaluate(reading *entities.Reading, profile Profile) []Breach {
	if reading == nil {
		return nil
	}

	var breaches []Breach
	check := func(c Condition, v *float64) {
		if v == nil {
			return
		}
		band, ok := profile.Bands[c]
		if !ok || band.Contains(*v) {
			return
		}
		breaches = append(breaches, Breach{Condition: c, Value: *v, Band: band})
	}

	check(Temperature, reading.Temperature)
	check(Humidity, reading.Humidity)
	check(SoilMoisture, reading.SoilMoisture)
	if reading.MotionDetected && profile.MotionSensitive {
		breaches = append(breaches, Breach{Condition: Motion, Value: 1})
	}

	for _, name := range slices.Sorted(maps.Keys(reading.Metrics)) {
		c := Condition(name)
		if c.IsBuiltIn() {
			continue
		}
		v := reading.Metrics[name]
		check(c, &v)
	}
	return breaches
}

// Conditions returns the condition labels of breaches in order.
func Conditions(breaches []Breach) []Condition {
	out := make([]Condition, len(breaches))
	for i, b := range breaches {
		out[i] = b.Condition
	}
	return out
}
