// Package registry provides read-mostly lookups of devices and species.
// Species change rarely and are cached; devices are always read from the
// store so operator updates are visible immediately.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
	"github.com/sarawakflora/fieldwatch/internal/datastore/repository"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// DefaultCacheTTL is used when no TTL is configured.
const DefaultCacheTTL = 5 * time.Minute

// Registry resolves devices and species.
type Registry struct {
	devices repository.DeviceRepository
	species repository.SpeciesRepository
	cache   *cache.Cache
}

// New creates a registry. A non-positive ttl uses DefaultCacheTTL.
func New(devices repository.DeviceRepository, species repository.SpeciesRepository, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Registry{
		devices: devices,
		species: species,
		cache:   cache.New(ttl, ttl*2),
	}
}

// Device returns the device with id or repository.ErrDeviceNotFound.
func (r *Registry) Device(ctx context.Context, deviceID string) (*entities.Device, error) {
	return r.devices.GetDevice(ctx, deviceID)
}

// Devices lists registered devices ordered by name.
func (r *Registry) Devices(ctx context.Context, activeOnly bool) ([]entities.Device, error) {
	return r.devices.ListDevices(ctx, activeOnly)
}

func speciesKey(id uint) string {
	return fmt.Sprintf("species:%d", id)
}

// Species returns the species with id, served from the cache when possible.
func (r *Registry) Species(ctx context.Context, id uint) (*entities.Species, error) {
	key := speciesKey(id)
	if cached, found := r.cache.Get(key); found {
		if sp, ok := cached.(*entities.Species); ok {
			clone := *sp
			return &clone, nil
		}
	}

	sp, err := r.species.GetSpecies(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, sp, cache.DefaultExpiration)

	GetLogger().Trace("species cached",
		logger.Uint64("species_id", uint64(id)),
		logger.String("scientific_name", sp.ScientificName))

	clone := *sp
	return &clone, nil
}

// SpeciesOf returns the species linked to device, or nil when none is linked.
func (r *Registry) SpeciesOf(ctx context.Context, device *entities.Device) (*entities.Species, error) {
	if device == nil || device.SpeciesID == nil {
		return nil, nil
	}
	return r.Species(ctx, *device.SpeciesID)
}

// AllSpecies lists the catalog. The result primes the cache.
func (r *Registry) AllSpecies(ctx context.Context) ([]entities.Species, error) {
	list, err := r.species.ListSpecies(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		sp := list[i]
		r.cache.Set(speciesKey(sp.ID), &sp, cache.DefaultExpiration)
	}
	return list, nil
}

// InvalidateSpecies drops a cached species, or every species when id is 0.
func (r *Registry) InvalidateSpecies(id uint) {
	if id == 0 {
		r.cache.Flush()
		return
	}
	r.cache.Delete(speciesKey(id))
}

// CachedItems reports the number of cached species.
func (r *Registry) CachedItems() int {
	return r.cache.ItemCount()
}
