// Package conf provides configuration management for fieldwatch.
package conf

import "github.com/sarawakflora/fieldwatch/internal/logger"

// GetLogger returns the config package logger. It is resolved on every call
// so it follows the global logger installed after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
