// Package entities defines the GORM entity models of the fieldwatch store.
//
// # Core Entities
//
//   - Device: a registered field sensor unit with its safe bands and mask flag
//   - Reading: one timestamped telemetry sample, append-only
//   - Alert: a durable record that a device is (or was) breaching one condition
//
// # Catalog Entities
//
//   - Species: plant species, read-only for the alerting core
//   - Observation: a user sighting of a species at a location
//
// Table and column names follow the plant-observation backend the service
// replaces (sensor_devices, sensor_readings, alerts, species,
// plant_observations) so existing clients keep working.
package entities
