// Package events provides an asynchronous event bus that fans alert
// lifecycle events out to consumers without blocking the alert path.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/sarawakflora/fieldwatch/internal/datastore/entities"
)

// AlertEventType identifies an alert lifecycle transition.
type AlertEventType string

const (
	AlertOpened   AlertEventType = "alert.opened"
	AlertResolved AlertEventType = "alert.resolved"
)

// AlertEvent describes one alert transition.
type AlertEvent struct {
	ID        string         `json:"event_id"`
	Type      AlertEventType `json:"type"`
	DeviceID  string         `json:"device_id"`
	Alert     entities.Alert `json:"alert"`
	Actor     string         `json:"actor,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewAlertEvent captures a copy of alert as an event of type t.
func NewAlertEvent(t AlertEventType, alert *entities.Alert, actor string) *AlertEvent {
	return &AlertEvent{
		ID:        uuid.NewString(),
		Type:      t,
		DeviceID:  alert.DeviceID,
		Alert:     *alert,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher accepts events without blocking.
type Publisher interface {
	// TryPublish returns false when the event was dropped.
	TryPublish(event *AlertEvent) bool
}

// EventConsumer processes alert events
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event *AlertEvent) error
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
