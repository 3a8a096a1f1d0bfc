package datastore

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

//go:embed seed.yaml
var defaultSeed []byte

// SeedSpecies is a species entry of a seed file.
type SeedSpecies struct {
	ScientificName string `yaml:"scientific_name"`
	CommonName     string `yaml:"common_name"`
	IsEndangered   bool   `yaml:"is_endangered"`
	Description    string `yaml:"description"`
	ImageURL       string `yaml:"image_url"`
}

// SeedDevice is a device entry of a seed file. Species refers to a
// scientific name.
type SeedDevice struct {
	DeviceID        string   `yaml:"device_id"`
	NodeID          string   `yaml:"node_id"`
	Name            string   `yaml:"name"`
	Species         string   `yaml:"species"`
	LocationName    string   `yaml:"location_name"`
	Latitude        *float64 `yaml:"latitude"`
	Longitude       *float64 `yaml:"longitude"`
	LocationMasked  bool     `yaml:"location_masked"`
	MotionSensitive bool     `yaml:"motion_sensitive"`
	TemperatureMin  *float64 `yaml:"temperature_min"`
	TemperatureMax  *float64 `yaml:"temperature_max"`
	HumidityMin     *float64 `yaml:"humidity_min"`
	HumidityMax     *float64 `yaml:"humidity_max"`
	SoilMoistureMin *float64 `yaml:"soil_moisture_min"`
	SoilMoistureMax *float64 `yaml:"soil_moisture_max"`
}

// SeedObservation is an observation entry of a seed file.
type SeedObservation struct {
	UserID       uint    `yaml:"user_id"`
	Species      string  `yaml:"species"`
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
	LocationName string  `yaml:"location_name"`
	Notes        string  `yaml:"notes"`
	PhotoURL     string  `yaml:"photo_url"`
	Source       string  `yaml:"source"`
	Status       string  `yaml:"status"`
	IsMasked     bool    `yaml:"is_masked"`
}

// SeedData is the content of a seed file.
type SeedData struct {
	Species      []SeedSpecies     `yaml:"species"`
	Devices      []SeedDevice      `yaml:"devices"`
	Observations []SeedObservation `yaml:"observations"`
}

// SeedResult counts the rows a seed run created.
type SeedResult struct {
	Species      int
	Devices      int
	Observations int
}

// LoadSeed reads seed data from path, or the built-in demo data when path is empty.
func LoadSeed(path string) (*SeedData, error) {
	data := defaultSeed
	if path != "" {
		raw, err := os.ReadFile(path) //nolint:gosec // operator supplied seed file
		if err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("operation", "read_seed").
				Context("path", path).
				Build()
		}
		data = raw
	}

	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, errors.New(fmt.Errorf("parse seed data: %w", err)).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("operation", "parse_seed").
			Build()
	}
	return &seed, nil
}

// Apply inserts the seed rows that do not exist yet. Species match by
// scientific name, devices by id and observations by user, species and
// coordinates, so running it twice creates nothing the second time.
func (s *SeedData) Apply(ctx context.Context, store *Store) (*SeedResult, error) {
	result := &SeedResult{}
	speciesIDs := make(map[string]uint, len(s.Species))

	for _, sp := range s.Species {
		existing, err := store.Species.GetByScientificName(ctx, sp.ScientificName)
		switch {
		case err == nil:
			speciesIDs[sp.ScientificName] = existing.ID
			continue
		case !errors.Is(err, repository.ErrSpeciesNotFound):
			return result, err
		}

		species := &entities.Species{
			ScientificName: sp.ScientificName,
			CommonName:     sp.CommonName,
			IsEndangered:   sp.IsEndangered,
			Description:    sp.Description,
			ImageURL:       sp.ImageURL,
		}
		if err := store.Species.CreateSpecies(ctx, species); err != nil {
			return result, err
		}
		speciesIDs[sp.ScientificName] = species.ID
		result.Species++
	}

	resolve := func(name string) (uint, error) {
		if id, ok := speciesIDs[name]; ok {
			return id, nil
		}
		sp, err := store.Species.GetByScientificName(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("seed references species %q: %w", name, err)
		}
		speciesIDs[name] = sp.ID
		return sp.ID, nil
	}

	for i := range s.Devices {
		sd := &s.Devices[i]
		if _, err := store.Devices.GetDevice(ctx, sd.DeviceID); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrDeviceNotFound) {
			return result, err
		}

		device := &entities.Device{
			DeviceID:        sd.DeviceID,
			NodeID:          sd.NodeID,
			Name:            sd.Name,
			LocationName:    sd.LocationName,
			Latitude:        sd.Latitude,
			Longitude:       sd.Longitude,
			IsActive:        true,
			LocationMasked:  sd.LocationMasked,
			MotionSensitive: sd.MotionSensitive,
			TemperatureMin:  sd.TemperatureMin,
			TemperatureMax:  sd.TemperatureMax,
			HumidityMin:     sd.HumidityMin,
			HumidityMax:     sd.HumidityMax,
			SoilMoistureMin: sd.SoilMoistureMin,
			SoilMoistureMax: sd.SoilMoistureMax,
		}
		if sd.Species != "" {
			id, err := resolve(sd.Species)
			if err != nil {
				return result, err
			}
			device.SpeciesID = &id
		}
		if err := store.Devices.CreateDevice(ctx, device); err != nil {
			return result, err
		}
		result.Devices++
	}

	existing, err := store.Observations.ListObservations(ctx, 0)
	if err != nil {
		return result, err
	}
	type obsKey struct {
		user, species uint
		lat, lon      float64
	}
	seen := make(map[obsKey]bool, len(existing))
	for i := range existing {
		o := &existing[i]
		seen[obsKey{o.UserID, o.SpeciesID, o.Latitude, o.Longitude}] = true
	}

	for i := range s.Observations {
		so := &s.Observations[i]
		speciesID, err := resolve(so.Species)
		if err != nil {
			return result, err
		}
		key := obsKey{so.UserID, speciesID, so.Latitude, so.Longitude}
		if seen[key] {
			continue
		}

		obs := &entities.Observation{
			UserID:       so.UserID,
			SpeciesID:    speciesID,
			PhotoURL:     so.PhotoURL,
			Latitude:     so.Latitude,
			Longitude:    so.Longitude,
			LocationName: so.LocationName,
			Notes:        so.Notes,
			Source:       so.Source,
			Status:       so.Status,
			IsMasked:     so.IsMasked,
		}
		if err := store.Observations.CreateObservation(ctx, obs); err != nil {
			return result, err
		}
		seen[key] = true
		result.Observations++
	}

	GetLogger().Info("seed applied",
		logger.Int("species", result.Species),
		logger.Int("devices", result.Devices),
		logger.Int("observations", result.Observations))

	return result, nil
}
