package models

import "time"

type Cart struct {
	ID        int        `json:"id"`
	UserID    int        `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem holds at most one row per (cart, service, option); repeated adds
// increment Quantity instead of inserting a second row.
type CartItem struct {
	ID           int       `json:"id"`
	CartID       int       `json:"cart_id"`
	ServiceID    int       `json:"service_id"`
	OptionID     *int      `json:"option_id,omitempty"`
	Quantity     int       `json:"quantity"`
	ServiceTitle string    `json:"service_title"`
	UnitPrice    float64   `json:"unit_price"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AddItemRequest struct {
	ServiceID int  `json:"service_id" binding:"required"`
	OptionID  *int `json:"option_id"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}
