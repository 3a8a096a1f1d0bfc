package readings

import "github.com/sarawakflora/fieldwatch/internal/logger"

// GetLogger returns the readings module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("readings")
}
