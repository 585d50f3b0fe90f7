package order

import (
	"context"
	"log/slog"
	"strings"
	"time"

	errors "github.com/frahmantamala/storefront/internal"
	orderDatamodel "github.com/frahmantamala/storefront/internal/core/datamodel/order"
	"github.com/frahmantamala/storefront/internal/core/events"
	"github.com/frahmantamala/storefront/internal/product"
)

type RepositoryAPI interface {
	Create(ctx context.Context, o *orderDatamodel.Order) error
	GetByID(ctx context.Context, id int64) (*orderDatamodel.Order, error)
	List(ctx context.Context, filter ListFilter) ([]*orderDatamodel.Order, error)
}

// Catalog resolves the products referenced by an order.
type Catalog interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]*product.Product, error)
}

type Service struct {
	repo      RepositoryAPI
	catalog   Catalog
	publisher events.Publisher
	currency  string
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, catalog Catalog, publisher events.Publisher, currency string, logger *slog.Logger) *Service {
	if currency == "" {
		currency = "RUB"
	}
	return &Service{
		repo:      repo,
		catalog:   catalog,
		publisher: publisher,
		currency:  currency,
		logger:    logger,
	}
}

// CreateOrder prices every item from the catalog and stores a pending order.
// Client supplied prices are never trusted.
func (s *Service) CreateOrder(ctx context.Context, dto CreateOrderDTO) (*Order, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(dto.Items))
	for _, item := range dto.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(dto.Items))
	var total int64
	for _, item := range dto.Items {
		p := products[item.ProductID]
		if !p.IsAvailable() {
			return nil, errors.NewConflictError("product is not available: "+p.Name, errors.ErrCodeProductUnavailable).
				WithDetails(map[string]int64{"product_id": p.ID})
		}

		unit := p.PriceMinor()
		line := Line{
			ProductID: p.ID,
			Name:      p.Name,
			SKU:       p.SKU,
			UnitPrice: unit,
			Quantity:  item.Quantity,
			Amount:    unit * int64(item.Quantity),
		}
		total += line.Amount
		lines = append(lines, line)
	}

	now := time.Now().UTC()
	o := &Order{
		Customer: Customer{
			TelegramUserID: dto.TelegramUserID,
			Name:           strings.TrimSpace(dto.Customer.Name),
			Email:          strings.TrimSpace(dto.Customer.Email),
			Phone:          strings.TrimSpace(dto.Customer.Phone),
		},
		Comment:     strings.TrimSpace(dto.Comment),
		Lines:       lines,
		TotalAmount: total,
		Currency:    s.currency,
		Status:      orderDatamodel.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	row, err := ToDataModel(o)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create order", "error", err)
		return nil, err
	}
	o.ID = row.ID

	s.logger.Info("order created", "order_id", o.ID, "total_amount", o.TotalAmount, "lines", len(lines))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewOrderCreatedEvent(o.ID, o.TotalAmount, o.Currency)); err != nil {
			s.logger.Warn("failed to publish order created event", "error", err, "order_id", o.ID)
		}
	}

	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.ErrOrderNotFound
	}
	return FromDataModel(row)
}

func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]*Order, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list orders", "error", err)
		return nil, err
	}

	orders := make([]*Order, 0, len(rows))
	for _, row := range rows {
		o, err := FromDataModel(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
