package alerting

import "github.com/sarawakflora/fieldwatch/internal/logger"

// GetLogger returns the alerting module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("alerting")
}
