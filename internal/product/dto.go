package product

import (
	"strings"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/internal/core/common/validation"
)

type ProductResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	PriceMinor  int64  `json:"price_minor"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url,omitempty"`
	SKU         string `json:"sku,omitempty"`
	Available   bool   `json:"available"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

type ListFilter struct {
	Category      string
	OnlyAvailable bool
}

type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	SKU         string          `json:"sku"`
	Available   *bool           `json:"available"`
}

func (r *ProductRequest) Validate() error {
	validator := validation.NewValidator()
	validator.Field("name", r.Name).Required().MaxLength(200)
	validator.Field("category", r.Category).Required().MaxLength(100)
	validator.Field("sku", r.SKU).MaxLength(64)
	validator.Field("price", r.Price).Custom(func(value interface{}) *errors.AppError {
		price := value.(decimal.Decimal)
		if !price.IsPositive() {
			return errors.NewValidationFieldError("price", "price must be positive", errors.ErrCodeInvalidAmount)
		}
		if price.Exponent() < -2 {
			return errors.NewValidationFieldError("price", "price has more than two decimal places", errors.ErrCodeInvalidAmount)
		}
		return nil
	})

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// SeedProduct is one entry of a catalog import file.
type SeedProduct struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Images      []string        `json:"images"`
	SKU         string          `json:"sku"`
	InStock     *bool           `json:"inStock"`
}

func (s SeedProduct) toProduct() *Product {
	p := NewProduct(strings.TrimSpace(s.Name), s.Description, s.Price, s.Category)
	p.SKU = s.SKU
	p.ImageURL = s.Image
	if p.ImageURL == "" && len(s.Images) > 0 {
		p.ImageURL = s.Images[0]
	}
	if s.InStock != nil {
		p.Available = *s.InStock
	}
	return p
}
