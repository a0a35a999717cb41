package domain

import "time"

// Category groups transactions for a single user. Names are unique per user.
type Category struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Type      TransactionType `json:"type"`
	Color     string          `json:"color"`
	Icon      string          `json:"icon"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewCategory holds the fields needed to create a category.
type NewCategory struct {
	UserID string
	Name   string
	Type   TransactionType
	Color  string
	Icon   string
}
