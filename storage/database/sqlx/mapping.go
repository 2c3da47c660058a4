package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/daruliman/pondok/core/finance"
)

// Mapping scopes
const (
	scopeCategory    = "category"
	scopeSubcategory = "subcategory"
)

type mappingRepository struct {
	db *sqlx.DB
}

var _ finance.MappingProvider = (*mappingRepository)(nil) // interface compliance check

func NewMappingRepository(db *sqlx.DB) finance.MappingProvider {
	return &mappingRepository{db: db}
}

func (repo *mappingRepository) lookup(ctx context.Context, scope, name string) (finance.CategoryMapping, error) {
	var m finance.CategoryMapping
	err := repo.db.GetContext(ctx, &m,
		`SELECT kind, pillar, active FROM category_mapping WHERE scope = $1 AND name = $2`,
		scope, name)
	if err == sql.ErrNoRows {
		return finance.CategoryMapping{}, finance.ErrMappingNotFound
	}
	return m, err
}

func (repo *mappingRepository) SubcategoryMapping(ctx context.Context, subcategory string) (finance.CategoryMapping, error) {
	return repo.lookup(ctx, scopeSubcategory, subcategory)
}

func (repo *mappingRepository) CategoryMapping(ctx context.Context, category string) (finance.CategoryMapping, error) {
	return repo.lookup(ctx, scopeCategory, category)
}
