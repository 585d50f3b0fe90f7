package product

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/storefront/internal"
	productDatamodel "github.com/frahmantamala/storefront/internal/core/datamodel/product"
)

type RepositoryAPI interface {
	List(ctx context.Context, filter ListFilter) ([]*productDatamodel.Product, error)
	GetByID(ctx context.Context, id int64) (*productDatamodel.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*productDatamodel.Product, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, p *productDatamodel.Product) error
	Update(ctx context.Context, p *productDatamodel.Product) error
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]ProductResponse, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list products", "error", err)
		return nil, err
	}

	responses := make([]ProductResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, FromDataModel(row).ToResponse())
	}
	return responses, nil
}

// GetProduct returns ErrProductNotFound for unknown ids.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.ErrProductNotFound
	}
	return FromDataModel(row), nil
}

// GetProducts loads every id or fails with ErrProductNotFound.
func (s *Service) GetProducts(ctx context.Context, ids []int64) (map[int64]*Product, error) {
	rows, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]*Product, len(rows))
	for _, row := range rows {
		out[row.ID] = FromDataModel(row)
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, errors.NewNotFoundError("Product not found", errors.ErrCodeProductNotFound).
				WithDetails(map[string]int64{"product_id": id})
		}
	}
	return out, nil
}

func (s *Service) CreateProduct(ctx context.Context, req ProductRequest) (*Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := NewProduct(req.Name, req.Description, req.Price, req.Category)
	p.ImageURL = req.ImageURL
	p.SKU = req.SKU
	if req.Available != nil {
		p.Available = *req.Available
	}

	row := ToDataModel(p)
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create product", "error", err, "name", req.Name)
		return nil, err
	}

	s.logger.Info("product created", "product_id", row.ID, "name", row.Name)
	return FromDataModel(row), nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req ProductRequest) (*Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Name = req.Name
	p.Description = req.Description
	p.Price = req.Price
	p.Category = req.Category
	p.ImageURL = req.ImageURL
	p.SKU = req.SKU
	if req.Available != nil {
		p.Available = *req.Available
	}
	p.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, ToDataModel(p)); err != nil {
		s.logger.Error("failed to update product", "error", err, "product_id", id)
		return nil, err
	}

	s.logger.Info("product updated", "product_id", id)
	return p, nil
}

// DeleteProduct hides the product. Past orders keep referring to it.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.GetProduct(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete product", "error", err, "product_id", id)
		return err
	}
	s.logger.Info("product hidden", "product_id", id)
	return nil
}

// Seed imports products into an empty catalog and reports how many were created.
func (s *Service) Seed(ctx context.Context, items []SeedProduct) (int, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("catalog already populated, skipping seed", "existing", count)
		return 0, nil
	}

	created := 0
	for i, item := range items {
		p := item.toProduct()
		req := ProductRequest{Name: p.Name, Price: p.Price, Category: p.Category, SKU: p.SKU}
		if err := req.Validate(); err != nil {
			s.logger.Warn("skipping invalid seed product", "index", i, "name", item.Name, "error", err)
			continue
		}
		if err := s.repo.Create(ctx, ToDataModel(p)); err != nil {
			return created, err
		}
		created++
	}

	s.logger.Info("catalog seeded", "created", created, "total", len(items))
	return created, nil
}
