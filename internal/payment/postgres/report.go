package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	paymentpkg "github.com/frahmantamala/storefront/internal/payment"
)

// StatsRepository serves the admin dashboard with plain SQL.
type StatsRepository struct {
	db *sqlx.DB
}

var _ paymentpkg.StatsReader = (*StatsRepository)(nil)

func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) CountByStatus(ctx context.Context) ([]paymentpkg.StatusCount, error) {
	const query = `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount
		FROM payments
		GROUP BY status
		ORDER BY status`

	var rows []paymentpkg.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *StatsRepository) OrdersByStatus(ctx context.Context) (map[string]int64, error) {
	const query = `SELECT status, COUNT(*) AS count FROM orders GROUP BY status`

	var rows []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
