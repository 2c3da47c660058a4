package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

type Item struct {
	ID               uuid.UUID           `json:"id" db:"id"`
	Name             string              `json:"name" db:"name"`
	Code             string              `json:"code" db:"code"`
	Category         string              `json:"category" db:"category"`
	AcquisitionPrice decimal.NullDecimal `json:"acquisition_price" db:"acquisition_price"`
	// CostBasis is the per-unit cost used to value margin on every future
	// sale of this item until changed again.
	CostBasis decimal.NullDecimal `json:"cost_basis" db:"cost_basis"`
	UpdatedBy null.String         `json:"updated_by" db:"updated_by"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time           `json:"updated_at" db:"updated_at"` // UTC
}

// EffectiveCostBasis falls back to the acquisition price when no explicit
// cost basis has been set.
func (i Item) EffectiveCostBasis() decimal.Decimal {
	if i.CostBasis.Valid {
		return i.CostBasis.Decimal
	}
	if i.AcquisitionPrice.Valid {
		return i.AcquisitionPrice.Decimal
	}
	return decimal.Zero
}

type QueryFilter struct {
	Search string `query:"search"`
	// HasCostBasis filters items on whether a cost basis has been set.
	HasCostBasis *bool `query:"has_cost_basis"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.HasCostBasis == nil
}
