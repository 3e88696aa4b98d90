package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-intake-service/internal/domain"
)

// BuyerHistoryRepository reads audit entries. Writes happen only inside the
// buyer repository's transactions, keeping the append-only relation coupled
// to the row change that produced it.
type BuyerHistoryRepository interface {
	ListByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.BuyerHistory, error)
}

type buyerHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewBuyerHistoryRepository builds the repository.
func NewBuyerHistoryRepository(pool *pgxpool.Pool) BuyerHistoryRepository {
	return &buyerHistoryRepository{pool: pool}
}

func (r *buyerHistoryRepository) ListByBuyer(ctx context.Context, buyerID string, limit int) ([]domain.BuyerHistory, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `
        SELECT id, buyer_id, changed_by, action, diff, created_at
        FROM buyer_history WHERE buyer_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, buyerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BuyerHistory
	for rows.Next() {
		var entry domain.BuyerHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.BuyerID,
			&entry.ChangedBy,
			&entry.Action,
			&entry.Diff,
			&entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
