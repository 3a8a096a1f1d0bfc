// Package privacy decides which locations may be shown to whom and scrubs
// sensitive data from log and telemetry messages.
//
// The location of a device or observation tied to an endangered species is
// hidden from public viewers while its mask flag is set. Every external
// read path projects locations through Policy.Project; operators always see
// raw coordinates together with the masking decision.
package privacy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sarawakflora/fieldwatch/internal/conf"
	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// DefaultCoarseGrid is the default region cell size in degrees.
const DefaultCoarseGrid = 0.5

// Viewer is the privilege tier of whoever reads a location.
type Viewer string

const (
	ViewerPublic   Viewer = "public"
	ViewerOperator Viewer = "operator"
)

// ParseViewer maps a role name to a viewer; anything but "operator" is public.
func ParseViewer(role string) Viewer {
	if strings.EqualFold(strings.TrimSpace(role), string(ViewerOperator)) {
		return ViewerOperator
	}
	return ViewerPublic
}

// IsOperator reports whether v may see masked locations.
func (v Viewer) IsOperator() bool {
	return v == ViewerOperator
}

// Subject is a located entity together with the species it is tied to.
type Subject struct {
	Latitude     *float64
	Longitude    *float64
	LocationName string
	Masked       bool
	Species      *entities.Species
}

// DeviceSubject describes the registered location of a device.
func DeviceSubject(d *entities.Device, species *entities.Species) Subject {
	if d == nil {
		return Subject{Species: species}
	}
	return Subject{
		Latitude:     d.Latitude,
		Longitude:    d.Longitude,
		LocationName: d.LocationName,
		Masked:       d.LocationMasked,
		Species:      species,
	}
}

// ObservationSubject describes the location of an observation.
func ObservationSubject(o *entities.Observation, species *entities.Species) Subject {
	if o == nil {
		return Subject{Species: species}
	}
	lat, lon := o.Latitude, o.Longitude
	return Subject{
		Latitude:     &lat,
		Longitude:    &lon,
		LocationName: o.LocationName,
		Masked:       o.IsMasked,
		Species:      species,
	}
}

// IsLocationVisible reports whether the precise location of s may be shown
// to anyone. It is false only for masked entities of endangered species.
func IsLocationVisible(s Subject) bool {
	return !(s.Species != nil && s.Species.IsEndangered && s.Masked)
}

// ProjectedLocation is a location as one viewer may see it.
type ProjectedLocation struct {
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	Region       string   `json:"region,omitempty"`
	Masked       bool     `json:"masked"`
}

// Policy projects locations for viewers.
type Policy struct {
	grid float64
}

// NewPolicy returns a policy labelling hidden locations with cells of grid
// degrees. A non-positive grid uses DefaultCoarseGrid.
func NewPolicy(grid float64) *Policy {
	if grid <= 0 || math.IsNaN(grid) || math.IsInf(grid, 0) {
		grid = DefaultCoarseGrid
	}
	return &Policy{grid: grid}
}

// PolicyFromSettings builds a policy from privacy settings.
func PolicyFromSettings(s *conf.PrivacySettings) *Policy {
	if s == nil {
		return NewPolicy(DefaultCoarseGrid)
	}
	return NewPolicy(s.CoarseGrid)
}

// Project returns the location of s as v may see it. Hidden locations lose
// their coordinates and name for public viewers and keep only a coarse
// region label; operators get everything plus Masked.
func (p *Policy) Project(s Subject, v Viewer) ProjectedLocation {
	visible := IsLocationVisible(s)
	if visible || v.IsOperator() {
		return ProjectedLocation{
			Latitude:     copyFloat(s.Latitude),
			Longitude:    copyFloat(s.Longitude),
			LocationName: s.LocationName,
			Masked:       !visible,
		}
	}

	loc := ProjectedLocation{}
	if s.Latitude != nil && s.Longitude != nil {
		loc.Region = p.RegionLabel(*s.Latitude, *s.Longitude)
	}
	return loc
}

// ProjectReading returns a copy of r whose coordinates follow the decision
// made for the device subject s.
func (p *Policy) ProjectReading(r *entities.Reading, s Subject, v Viewer) *entities.Reading {
	if r == nil {
		return nil
	}
	out := *r
	if IsLocationVisible(s) || v.IsOperator() {
		out.Latitude = copyFloat(r.Latitude)
		out.Longitude = copyFloat(r.Longitude)
	} else {
		out.Latitude = nil
		out.Longitude = nil
	}
	return &out
}

// RegionLabel names the grid cell containing (lat, lon) by its south-west
// corner, e.g. "1.0°N 110.0°E (0.5° cell)".
func (p *Policy) RegionLabel(lat, lon float64) string {
	snap := func(v float64) float64 {
		return math.Floor(v/p.grid) * p.grid
	}
	return fmt.Sprintf("%s %s (%s° cell)",
		hemisphere(snap(lat), "N", "S"),
		hemisphere(snap(lon), "E", "W"),
		trimFloat(p.grid))
}

func hemisphere(v float64, pos, neg string) string {
	suffix := pos
	if v < 0 {
		suffix = neg
		v = -v
	}
	s := trimFloat(v)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "°" + suffix
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e4)/1e4, 'f', -1, 64)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
