package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/daruliman/pondok/core/catalog"
)

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) GetItem(ctx context.Context, id uuid.UUID) (catalog.Item, error) {
	var item catalog.Item
	err := repo.db.GetContext(ctx, &item, `SELECT * FROM catalog_item WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, err
}

func (repo *catalogRepository) FilterItems(ctx context.Context, filter catalog.QueryFilter) ([]catalog.Item, error) {
	q := `SELECT * FROM catalog_item WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		idx := itoa(len(args))
		q += ` AND (name ILIKE $` + idx + ` OR code ILIKE $` + idx + `)`
	}
	if filter.HasCostBasis != nil {
		if *filter.HasCostBasis {
			q += ` AND cost_basis IS NOT NULL`
		} else {
			q += ` AND cost_basis IS NULL`
		}
	}
	q += ` ORDER BY name`

	items := make([]catalog.Item, 0)
	err := repo.db.SelectContext(ctx, &items, q, args...)
	return items, err
}

func (repo *catalogRepository) UpdateCostBasis(ctx context.Context, id uuid.UUID, costBasis decimal.Decimal, updatedBy string) (catalog.Item, error) {
	var item catalog.Item
	err := repo.db.GetContext(ctx, &item,
		`UPDATE catalog_item SET cost_basis = $2, updated_by = $3, updated_at = now()
		 WHERE id = $1 RETURNING *`,
		id, costBasis, updatedBy)
	if err == sql.ErrNoRows {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, err
}
