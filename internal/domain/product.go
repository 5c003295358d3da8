package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a sellable item in the catalog
type Product struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Name       string     `json:"name" db:"name"`
	SKU        string     `json:"sku" db:"sku"`
	Price      float64    `json:"price" db:"price"`
	CategoryID *uuid.UUID `json:"category_id,omitempty" db:"category_id"`
	ImageURL   string     `json:"image_url,omitempty" db:"image_url"`
	Stock      int        `json:"stock" db:"stock"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Category represents a product category
type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
