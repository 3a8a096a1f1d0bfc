package registry

import "github.com/sarawakflora/fieldwatch/internal/logger"

// GetLogger returns the registry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("registry")
}
