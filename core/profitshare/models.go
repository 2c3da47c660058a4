package profitshare

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/daruliman/pondok/core"
)

// Modes
const (
	ModeCostBasis      = "cost_basis"      // per-item margin over recorded cost basis
	ModeAggregateSplit = "aggregate_split" // net result split by scheme percentages
)

// Decision statuses
const (
	StatusFinal = "final"
)

// SoldItem is one catalog item's sales aggregate over the selected period.
// Name is a snapshot; the catalog row may be renamed or deleted later.
type SoldItem struct {
	ItemID    uuid.UUID           `json:"item_id" db:"item_id"`
	Name      string              `json:"name" db:"name"`
	Quantity  decimal.Decimal     `json:"quantity" db:"quantity"`
	Revenue   decimal.Decimal     `json:"revenue" db:"revenue"`
	CostBasis decimal.NullDecimal `json:"cost_basis" db:"cost_basis"` // per unit
}

// OperatingCost is one cooperative expense transaction counted against the
// period's revenue.
type OperatingCost struct {
	TransactionID uuid.UUID       `json:"transaction_id" db:"transaction_id"`
	Date          time.Time       `json:"date" db:"date"`
	Category      string          `json:"category" db:"category"`
	Description   null.String     `json:"description" db:"description"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
}

// Scheme is the foundation/cooperative percentage split.
type Scheme struct {
	FoundationPct  int64 `json:"foundation_pct" validate:"min=0,max=100"`
	CooperativePct int64 `json:"cooperative_pct" validate:"min=0,max=100"`
}

var ErrInvalidScheme = errors.New("scheme percentages must sum to 100")

func (s Scheme) Validate() error {
	if s.FoundationPct+s.CooperativePct != 100 {
		return core.NewValidationError(ErrInvalidScheme,
			core.FieldError{Field: "scheme", Error: "foundation and cooperative percentages must sum to 100"},
		)
	}
	return nil
}

// Input is one profit-share session: everything the operator selected and
// edited before asking for a preview or a final decision. It is explicit
// state owned by the caller.
type Input struct {
	PeriodStart    time.Time                       `json:"period_start" validate:"required"`
	PeriodEnd      time.Time                       `json:"period_end" validate:"required"`
	Mode           string                          `json:"mode" validate:"required,oneof=cost_basis aggregate_split"`
	Items          []SoldItem                      `json:"items"`
	Costs          []OperatingCost                 `json:"costs"`
	Scheme         Scheme                          `json:"scheme"`
	CostBasisEdits map[uuid.UUID]decimal.Decimal   `json:"cost_basis_edits"`
	Note           string                          `json:"note"`
	DecidedBy      string                          `json:"decided_by"`
}

// ItemResult is one sold item's contribution to the period result.
type ItemResult struct {
	ItemID         uuid.UUID       `json:"item_id"`
	Name           string          `json:"name"`
	Quantity       decimal.Decimal `json:"quantity"`
	Revenue        decimal.Decimal `json:"revenue"`
	CostBasis      decimal.Decimal `json:"cost_basis"` // per unit, after edits
	TotalCost      decimal.Decimal `json:"total_cost"`
	Margin         decimal.Decimal `json:"margin"` // revenue − total cost, may be negative
	NeedsCostBasis bool            `json:"needs_cost_basis"`
}

// Result is a computed (not yet saved) profit-share outcome.
type Result struct {
	Mode             string          `json:"mode"`
	Items            []ItemResult    `json:"items"`
	Revenue          decimal.Decimal `json:"revenue"`
	CostBasisTotal   decimal.Decimal `json:"cost_basis_total"`
	Margin           decimal.Decimal `json:"margin"`
	OperatingCost    decimal.Decimal `json:"operating_cost"`
	Net              decimal.Decimal `json:"net"` // may be negative
	FoundationShare  decimal.Decimal `json:"foundation_share"`
	CooperativeShare decimal.Decimal `json:"cooperative_share"`
	NeedsCostBasis   []uuid.UUID     `json:"needs_cost_basis,omitempty"`
}

// Decision is the immutable audit row of one finalized profit share.
type Decision struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	PeriodStart      time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd        time.Time       `json:"period_end" db:"period_end"`
	Mode             string          `json:"mode" db:"mode"`
	FoundationPct    int64           `json:"foundation_pct" db:"foundation_pct"`
	CooperativePct   int64           `json:"cooperative_pct" db:"cooperative_pct"`
	Revenue          decimal.Decimal `json:"revenue" db:"revenue"`
	CostBasisTotal   decimal.Decimal `json:"cost_basis_total" db:"cost_basis_total"`
	OperatingCost    decimal.Decimal `json:"operating_cost" db:"operating_cost"`
	Net              decimal.Decimal `json:"net" db:"net"`
	FoundationShare  decimal.Decimal `json:"foundation_share" db:"foundation_share"`
	CooperativeShare decimal.Decimal `json:"cooperative_share" db:"cooperative_share"`
	Note             null.String     `json:"note" db:"note"`
	DecidedBy        null.String     `json:"decided_by" db:"decided_by"`
	Status           string          `json:"status" db:"status"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"` // UTC
}

// Entry is one financial posting a decision produces: the cooperative's
// income and the liability owed to the foundation.
type Entry struct {
	Direction   string          `json:"direction"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"` // "profit-share:<decision id>"
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
}

// CostBasisOverride is one pending per-unit cost edit saved with a decision.
type CostBasisOverride struct {
	ItemID    uuid.UUID       `json:"item_id"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

type DecisionFilter struct {
	Mode     string
	DateFrom time.Time
	DateTo   time.Time
}
