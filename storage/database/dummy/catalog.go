package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/daruliman/pondok/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) query() []catalog.Item {
	items := make([]catalog.Item, 0, len(repo.db.items))
	for _, item := range repo.db.items {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

func (repo *catalogRepository) GetItem(_ context.Context, id uuid.UUID) (catalog.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if item, ok := repo.db.items[id]; ok {
		return *item, nil
	}
	return catalog.Item{}, catalog.ErrNotFound
}

func (repo *catalogRepository) FilterItems(_ context.Context, filter catalog.QueryFilter) ([]catalog.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := repo.query()
	if filter.IsEmpty() {
		return items, nil
	}

	filtered := make([]catalog.Item, 0, len(items))
	search := strings.ToLower(filter.Search)
	for _, item := range items {
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Name), search) &&
			!strings.Contains(strings.ToLower(item.Code), search) {
			continue
		}
		if filter.HasCostBasis != nil && item.CostBasis.Valid != *filter.HasCostBasis {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered, nil
}

func (repo *catalogRepository) UpdateCostBasis(_ context.Context, id uuid.UUID, costBasis decimal.Decimal, updatedBy string) (catalog.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	item, ok := repo.db.items[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	item.CostBasis = decimal.NewNullDecimal(costBasis)
	item.UpdatedBy = null.NewString(updatedBy, updatedBy != "")
	item.UpdatedAt = time.Now().UTC()
	return *item, nil
}
