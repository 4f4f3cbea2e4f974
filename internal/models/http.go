package models

import "time"

// ErrorResponse is returned on every failed request
type ErrorResponse struct {
	Error   string `json:"error" example:"Internal server error"`
	Message string `json:"message,omitempty" example:"inference call failed: 502 Bad Gateway"`
}

type HealthResponse struct {
	Status    string    `json:"status" example:"OK"`
	Timestamp time.Time `json:"timestamp"`
}
