package product

import "errors"

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidProductID = errors.New("invalid product id")
	ErrNameRequired     = errors.New("product name is required")
	ErrNegativePrice    = errors.New("price must not be negative")
	ErrNegativeStock    = errors.New("stock must not be negative")
	ErrTooManyImages    = errors.New("a product may have at most 5 images")
	ErrNoFieldsToUpdate = errors.New("no updatable fields provided")
	ErrInvalidImage     = errors.New("unsupported image type")
)
