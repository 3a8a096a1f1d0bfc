// Package notification pushes opened alerts to external services.
//
// The Dispatcher consumes alert events from the event bus and delivers
// those at or above the configured severity to every enabled provider.
// Each provider sits behind its own circuit breaker.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sarawakflora/fieldwatch/internal/events"
	"github.com/sarawakflora/fieldwatch/internal/logger"
)

// Notification is one message handed to providers.
type Notification struct {
	ID        string
	Title     string
	Message   string
	Severity  string
	DeviceID  string
	AlertID   uint
	Timestamp time.Time
}

// NewAlertNotification renders the notification for an opened alert.
func NewAlertNotification(ev *events.AlertEvent) *Notification {
	a := ev.Alert
	return &Notification{
		ID:        uuid.NewString(),
		Title:     fmt.Sprintf("[%s] %s alert on %s", a.Severity, a.AlertType, ev.DeviceID),
		Message:   a.Message,
		Severity:  a.Severity,
		DeviceID:  ev.DeviceID,
		AlertID:   a.ID,
		Timestamp: ev.Timestamp,
	}
}

// Provider is a push delivery backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	GetName() string
	ValidateConfig() error
	Send(ctx context.Context, n *Notification) error
	IsEnabled() bool
}

// GetLogger returns the notification module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}
