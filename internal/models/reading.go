package models

import "time"

// TemperatureReading is one calibrated sensor sample.
type TemperatureReading struct {
	ID           int64     `json:"id,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	RecordedAt   time.Time `json:"timestamp"`
	WaterTempF   float64   `json:"water_temp_f"`
	AmbientTempF *float64  `json:"ambient_temp_f,omitempty"`
}
