package events

import "github.com/sarawakflora/fieldwatch/internal/logger"

// GetLogger returns the events module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("events")
}
