// Package metrics provides the Prometheus collectors of fieldwatch components.
package metrics

import "github.com/sarawakflora/fieldwatch/internal/logger"

// GetLogger returns the metrics module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}
