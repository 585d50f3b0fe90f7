package product

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product prices are stored in major currency units.
type Product struct {
	ID          int64           `gorm:"primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Description string          `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(12,2);not null"`
	Category    string          `gorm:"column:category;index"`
	ImageURL    string          `gorm:"column:image_url"`
	SKU         string          `gorm:"column:sku"`
	Available   bool            `gorm:"column:available;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}

func (Product) TableName() string {
	return "products"
}
