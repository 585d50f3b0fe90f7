package product

import (
	"time"

	"github.com/shopspring/decimal"

	productDatamodel "github.com/frahmantamala/storefront/internal/core/datamodel/product"
)

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	ImageURL    string
	SKU         string
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Product) IsAvailable() bool {
	return p.Available
}

// PriceMinor converts the catalog price to kopecks.
func (p *Product) PriceMinor() int64 {
	return ToMinor(p.Price)
}

func (p *Product) ToResponse() ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		PriceMinor:  p.PriceMinor(),
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		SKU:         p.SKU,
		Available:   p.Available,
	}
}

func (p *Product) Deactivate() {
	p.Available = false
	p.UpdatedAt = time.Now()
}

// ToMinor rounds a major-unit amount to whole minor units.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func NewProduct(name, description string, price decimal.Decimal, category string) *Product {
	now := time.Now()
	return &Product{
		Name:        name,
		Description: description,
		Price:       price,
		Category:    category,
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ToDataModel(p *Product) *productDatamodel.Product {
	return &productDatamodel.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		SKU:         p.SKU,
		Available:   p.Available,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func FromDataModel(p *productDatamodel.Product) *Product {
	return &Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		SKU:         p.SKU,
		Available:   p.Available,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
