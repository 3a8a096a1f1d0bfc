package dashboard

import "github.com/sarawakflora/fieldwatch/internal/logger"

// GetLogger returns the dashboard module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("dashboard")
}
