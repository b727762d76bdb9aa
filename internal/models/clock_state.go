package models

import "time"

// ClockState is the last thing the clock showed, plus loop health.
type ClockState struct {
	ID                  int       `json:"id"`
	Rating              string    `json:"rating"`
	Red                 uint8     `json:"red"`
	Green               uint8     `json:"green"`
	Blue                uint8     `json:"blue"`
	LEDCount            int       `json:"led_count"`
	MaxHeight           int       `json:"max_height"`   // ft
	MinHeight           int       `json:"min_height"`   // ft
	DisplayTime         string    `json:"display_time"` // HH:MM or --:--
	Label               string    `json:"label"`
	LastOutcome         string    `json:"last_outcome"` // one of the Event* types
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Paused              bool      `json:"paused"`
	UpdatedAt           time.Time `json:"updated_at"`
}
