package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lead-intake-service/internal/domain"
)

// ErrVersionConflict signals that the buyer row changed since the caller
// read it; the caller must refetch and retry.
var ErrVersionConflict = errors.New("buyer record changed since last read")

// BuyerFilter captures listing parameters. Search matches case-insensitive
// substrings of fullName, phone and email; the remaining filters are exact
// and ANDed together.
type BuyerFilter struct {
	Search       *string
	City         *domain.City
	PropertyType *domain.PropertyType
	Status       *domain.BuyerStatus
	Timeline     *domain.Timeline
	Limit        int
	Offset       int
}

// BuyerRepository encapsulates buyer persistence. Create and UpdateWithAudit
// couple the row write with its history entry in a single transaction.
type BuyerRepository interface {
	Create(ctx context.Context, buyer *domain.Buyer, entry *domain.BuyerHistory) error
	GetByID(ctx context.Context, id string) (*domain.Buyer, error)
	ListWithFilter(ctx context.Context, filter BuyerFilter) ([]domain.Buyer, int, error)
	UpdateWithAudit(ctx context.Context, buyer *domain.Buyer, expectedUpdatedAt time.Time, entry *domain.BuyerHistory) error
	Delete(ctx context.Context, id string) error
}

type buyerRepository struct {
	pool *pgxpool.Pool
}

// NewBuyerRepository instantiates a Postgres-backed repository.
func NewBuyerRepository(pool *pgxpool.Pool) BuyerRepository {
	return &buyerRepository{pool: pool}
}

func (r *buyerRepository) Create(ctx context.Context, buyer *domain.Buyer, entry *domain.BuyerHistory) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO buyers (full_name, email, phone, city, property_type, bhk, purpose,
                            budget_min, budget_max, timeline, source, status, notes, tags)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, query,
		buyer.FullName,
		buyer.Email,
		buyer.Phone,
		buyer.City,
		buyer.PropertyType,
		buyer.BHK,
		buyer.Purpose,
		buyer.BudgetMin,
		buyer.BudgetMax,
		buyer.Timeline,
		buyer.Source,
		buyer.Status,
		buyer.Notes,
		buyer.Tags,
	).Scan(&buyer.ID, &buyer.CreatedAt, &buyer.UpdatedAt); err != nil {
		return err
	}

	if entry != nil {
		entry.BuyerID = buyer.ID
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *buyerRepository) GetByID(ctx context.Context, id string) (*domain.Buyer, error) {
	const query = `
        SELECT id, full_name, email, phone, city, property_type, bhk, purpose,
               budget_min, budget_max, timeline, source, status, notes, tags, created_at, updated_at
        FROM buyers WHERE id=$1`

	var buyer domain.Buyer
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&buyer.ID,
		&buyer.FullName,
		&buyer.Email,
		&buyer.Phone,
		&buyer.City,
		&buyer.PropertyType,
		&buyer.BHK,
		&buyer.Purpose,
		&buyer.BudgetMin,
		&buyer.BudgetMax,
		&buyer.Timeline,
		&buyer.Source,
		&buyer.Status,
		&buyer.Notes,
		&buyer.Tags,
		&buyer.CreatedAt,
		&buyer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &buyer, nil
}

func (r *buyerRepository) ListWithFilter(ctx context.Context, filter BuyerFilter) ([]domain.Buyer, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(full_name) LIKE %s OR LOWER(phone) LIKE %s OR LOWER(COALESCE(email,'')) LIKE %s)",
			placeholder, placeholder, placeholder))
	}
	if filter.City != nil {
		args = append(args, *filter.City)
		clauses = append(clauses, fmt.Sprintf("city=$%d", len(args)))
	}
	if filter.PropertyType != nil {
		args = append(args, *filter.PropertyType)
		clauses = append(clauses, fmt.Sprintf("property_type=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Timeline != nil {
		args = append(args, *filter.Timeline)
		clauses = append(clauses, fmt.Sprintf("timeline=$%d", len(args)))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM buyers WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
        SELECT id, full_name, email, phone, city, property_type, bhk, purpose,
               budget_min, budget_max, timeline, source, status, notes, tags, created_at, updated_at
        FROM buyers WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	buyers, err := scanBuyers(rows)
	if err != nil {
		return nil, 0, err
	}
	return buyers, total, nil
}

// UpdateWithAudit applies the merged record only if the stored updated_at
// still equals the value the workflow read. The equality predicate is part
// of the UPDATE itself, so concurrent writers cannot both pass the check;
// the history insert rides in the same transaction.
func (r *buyerRepository) UpdateWithAudit(ctx context.Context, buyer *domain.Buyer, expectedUpdatedAt time.Time, entry *domain.BuyerHistory) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        UPDATE buyers SET full_name=$1, email=$2, phone=$3, city=$4, property_type=$5, bhk=$6,
            purpose=$7, budget_min=$8, budget_max=$9, timeline=$10, source=$11, status=$12,
            notes=$13, tags=$14, updated_at=NOW()
        WHERE id=$15 AND updated_at=$16
        RETURNING updated_at`
	err = tx.QueryRow(ctx, query,
		buyer.FullName,
		buyer.Email,
		buyer.Phone,
		buyer.City,
		buyer.PropertyType,
		buyer.BHK,
		buyer.Purpose,
		buyer.BudgetMin,
		buyer.BudgetMax,
		buyer.Timeline,
		buyer.Source,
		buyer.Status,
		buyer.Notes,
		buyer.Tags,
		buyer.ID,
		expectedUpdatedAt,
	).Scan(&buyer.UpdatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		// Zero rows: either the buyer is gone or its timestamp moved.
		var exists bool
		if probeErr := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM buyers WHERE id=$1)`, buyer.ID).Scan(&exists); probeErr != nil {
			return probeErr
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrVersionConflict
	}

	if entry != nil {
		entry.ChangedAt = buyer.UpdatedAt
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *buyerRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM buyers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, entry *domain.BuyerHistory) error {
	const query = `
        INSERT INTO buyer_history (buyer_id, changed_by, action, diff)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return tx.QueryRow(ctx, query,
		entry.BuyerID,
		entry.ChangedBy,
		entry.Action,
		entry.Diff,
	).Scan(&entry.ID, &entry.ChangedAt)
}

func scanBuyers(rows pgx.Rows) ([]domain.Buyer, error) {
	var result []domain.Buyer
	for rows.Next() {
		var buyer domain.Buyer
		if err := rows.Scan(
			&buyer.ID,
			&buyer.FullName,
			&buyer.Email,
			&buyer.Phone,
			&buyer.City,
			&buyer.PropertyType,
			&buyer.BHK,
			&buyer.Purpose,
			&buyer.BudgetMin,
			&buyer.BudgetMax,
			&buyer.Timeline,
			&buyer.Source,
			&buyer.Status,
			&buyer.Notes,
			&buyer.Tags,
			&buyer.CreatedAt,
			&buyer.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, buyer)
	}
	return result, rows.Err()
}
