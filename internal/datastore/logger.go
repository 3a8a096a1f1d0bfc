// Package datastore opens the fieldwatch store, migrates its schema and
// wires the repositories.
package datastore

import "github.com/sarawakflora/fieldwatch/internal/logger"

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
