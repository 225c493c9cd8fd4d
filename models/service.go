package models

import "time"

// Service is a catalog entry. The booking core only reads services; catalog
// management lives in the admin application.
type Service struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Active    bool      `json:"active"`
	Available bool      `json:"available"`
	Stock     *int      `json:"stock,omitempty"` // nil = not tracked
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ServiceOption is a priced variant of a service (e.g. express vs standard).
type ServiceOption struct {
	ID        int     `json:"id"`
	ServiceID int     `json:"service_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
}
