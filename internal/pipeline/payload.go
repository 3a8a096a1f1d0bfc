package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sarawakflora/fieldwatch/internal/readings"
)

// Payload is the wire form of a reading, shared by HTTP and MQTT ingest.
type Payload struct {
	DeviceID       string             `json:"device_id"`
	Temperature    *float64           `json:"temperature"`
	Humidity       *float64           `json:"humidity"`
	SoilMoisture   *float64           `json:"soil_moisture"`
	MotionDetected Flag               `json:"motion_detected"`
	ReadingStatus  string             `json:"reading_status,omitempty"`
	Latitude       *float64           `json:"location_latitude,omitempty"`
	Longitude      *float64           `json:"location_longitude,omitempty"`
	Timestamp      *time.Time         `json:"reading_timestamp,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

// Sample converts the payload to a ledger sample.
func (p *Payload) Sample() *readings.Sample {
	s := &readings.Sample{
		Temperature:    p.Temperature,
		Humidity:       p.Humidity,
		SoilMoisture:   p.SoilMoisture,
		MotionDetected: bool(p.MotionDetected),
		Metrics:        p.Metrics,
		Status:         p.ReadingStatus,
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
	}
	if p.Timestamp != nil {
		s.Timestamp = *p.Timestamp
	}
	return s
}

// Flag is a boolean that also accepts the 0/1 and string forms sent by
// older device firmware.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = n != 0
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = false
			return nil
		}
		if b, err := strconv.ParseBool(s); err == nil {
			*f = Flag(b)
			return nil
		}
	}
	return fmt.Errorf("motion_detected: cannot use %s as a flag", data)
}
