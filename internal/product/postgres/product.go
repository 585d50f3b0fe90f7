package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	productDatamodel "github.com/frahmantamala/storefront/internal/core/datamodel/product"
	"github.com/frahmantamala/storefront/internal/product"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) product.RepositoryAPI {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) List(ctx context.Context, filter product.ListFilter) ([]*productDatamodel.Product, error) {
	q := r.db.WithContext(ctx).Order("category ASC, name ASC")
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.OnlyAvailable {
		q = q.Where("available = ?", true)
	}

	var products []*productDatamodel.Product
	err := q.Find(&products).Error
	return products, err
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*productDatamodel.Product, error) {
	var p productDatamodel.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]*productDatamodel.Product, error) {
	var products []*productDatamodel.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *ProductRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&productDatamodel.Product{}).Count(&n).Error
	return n, err
}

func (r *ProductRepository) Create(ctx context.Context, p *productDatamodel.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update writes every column so that Available=false is persisted.
func (r *ProductRepository) Update(ctx context.Context, p *productDatamodel.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&productDatamodel.Product{}).Where("id = ?", id).Update("available", false).Error
}
