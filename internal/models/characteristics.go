package models

import "time"

// Characteristics is the fitted thermal model of the tub.
type Characteristics struct {
	HeatingVelocityFPerMin  float64   `json:"heating_velocity_f_per_min"`
	StartupLagMinutes       float64   `json:"startup_lag_minutes"`
	OvershootF              float64   `json:"overshoot_f"`
	CoolingRateDayFPerMin   *float64  `json:"cooling_rate_day_f_per_min,omitempty"`
	CoolingRateNightFPerMin *float64  `json:"cooling_rate_night_f_per_min,omitempty"`
	CoolingKDay             *float64  `json:"cooling_k_day,omitempty"`
	CoolingKNight           *float64  `json:"cooling_k_night,omitempty"`
	SessionsAnalyzed        int       `json:"sessions_analyzed"`
	CoolingSegments         int       `json:"cooling_segments"`
	RangeFrom               time.Time `json:"range_from,omitzero"`
	RangeTo                 time.Time `json:"range_to,omitzero"`
	GeneratedAt             time.Time `json:"generated_at"`
}

// HeatingSession is one reconstructed heater on/off interval.
type HeatingSession struct {
	OnAt     time.Time            `json:"on_at"`
	OffAt    time.Time            `json:"off_at"`
	Readings []TemperatureReading `json:"readings"`
}
