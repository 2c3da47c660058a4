package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daruliman/pondok/core"
)

var (
	ErrNotFound          = errors.New("catalog item not found")
	ErrNegativeCostBasis = errors.New("cost basis must be zero or positive")
)

type (
	Repository interface {
		GetItem(ctx context.Context, id uuid.UUID) (Item, error)
		// FilterItems applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Item.Name or Item.Code.
		FilterItems(ctx context.Context, filter QueryFilter) ([]Item, error)
		UpdateCostBasis(ctx context.Context, id uuid.UUID, costBasis decimal.Decimal, updatedBy string) (Item, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetByID(ctx context.Context, id uuid.UUID) (Item, error) {
	return svc.repo.GetItem(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Item, error) {
	return svc.repo.FilterItems(ctx, filter)
}

// SetCostBasis updates an item's cost basis override.
func (svc *Service) SetCostBasis(ctx context.Context, id uuid.UUID, costBasis decimal.Decimal, updatedBy string) (Item, error) {
	if costBasis.IsNegative() {
		return Item{}, core.NewValidationError(ErrNegativeCostBasis,
			core.FieldError{Field: "cost_basis", Error: ErrNegativeCostBasis.Error()})
	}
	return svc.repo.UpdateCostBasis(ctx, id, costBasis, updatedBy)
}
