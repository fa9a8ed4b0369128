package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"isActive"`
	Images      []string        `json:"images"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ListFilter struct {
	Category string
	Search   string
	IsActive *bool
}

// CreateInput carries the fields of a new product. Images are filled in by the
// service from uploaded files.
type CreateInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	IsActive    bool
}

// UpdateInput replaces every editable field of a product.
type UpdateInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	IsActive    bool
}

// PatchInput enumerates the fields a partial update may touch. Nil means unchanged.
type PatchInput struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
}

func (p PatchInput) Empty() bool {
	return p.Name == nil &&
		p.Description == nil &&
		p.Category == nil &&
		p.Price == nil &&
		p.Stock == nil
}

// MaxImages is the most images a product may carry.
const MaxImages = 5
