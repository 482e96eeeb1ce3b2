// Package catalogmodel holds the resources exchanged with the REST backend.
package catalogmodel

import "time"

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductDraft    ProductStatus = "draft"
	ProductArchived ProductStatus = "archived"
)

type Product struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Price       float64        `json:"price"`
	Stock       int            `json:"stock"`
	Category    string         `json:"category,omitempty"`
	Status      ProductStatus  `json:"status,omitempty"`
	Images      []ProductImage `json:"images,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// ProductInput is the body of a product create.
type ProductInput struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description,omitempty" validate:"max=5000"`
	Price       float64       `json:"price" validate:"gte=0"`
	Stock       int           `json:"stock" validate:"gte=0"`
	Category    string        `json:"category,omitempty" validate:"max=100"`
	Status      ProductStatus `json:"status,omitempty" validate:"omitempty,oneof=active draft archived"`
}

// ProductUpdate is a partial update; nil fields are left unchanged.
type ProductUpdate struct {
	Name        *string        `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=5000"`
	Price       *float64       `json:"price,omitempty" validate:"omitempty,gte=0"`
	Stock       *int           `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Category    *string        `json:"category,omitempty" validate:"omitempty,max=100"`
	Status      *ProductStatus `json:"status,omitempty" validate:"omitempty,oneof=active draft archived"`
}

// IsEmpty reports whether the update changes nothing.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Price == nil &&
		u.Stock == nil && u.Category == nil && u.Status == nil
}

// ProductImage is the metadata record linking a stored object to a product.
type ProductImage struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	URL        string    `json:"url"`
	StorageKey string    `json:"storage_key"`
	Position   int       `json:"position"`
	IsPrimary  bool      `json:"is_primary"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

type ProductImageInput struct {
	URL        string `json:"url" validate:"required,url"`
	StorageKey string `json:"storage_key" validate:"required"`
	Position   int    `json:"position" validate:"gte=0"`
	IsPrimary  bool   `json:"is_primary"`
}

// StoredObject is the result of an upload: where the object can be fetched
// and the key it is stored under.
type StoredObject struct {
	URL string `json:"url"`
	Key string `json:"key"`
}
