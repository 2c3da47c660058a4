package finance

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/daruliman/pondok/core"
)

// Directions
const (
	DirectionIncome  = "income"
	DirectionExpense = "expense"
)

// Statuses
const (
	StatusDraft  = "draft"
	StatusPosted = "posted"
)

// AllocationKind says how a transaction's amount is allocated to students.
type AllocationKind string

const (
	AllocationNone     AllocationKind = "none"
	AllocationOverhead AllocationKind = "overhead"
	AllocationDirect   AllocationKind = "direct"
)

// RecordSource says how an AllocationRecord came to be.
type RecordSource string

const (
	RecordManual   RecordSource = "manual"
	RecordOverhead RecordSource = "overhead"
)

// ComputeSource tags ledger entries with the computation that produced them.
type ComputeSource string

const (
	ComputeOverhead ComputeSource = "overhead"
	ComputeDirect   ComputeSource = "direct"
)

// Pillar buckets realized costs by the service they fund.
type Pillar string

const (
	PillarFormalEducation   Pillar = "formal_education"
	PillarInternalEducation Pillar = "internal_education"
	PillarHousingMeals      Pillar = "housing_meals"
	PillarDirectAid         Pillar = "direct_aid"
)

// Pillars lists every valid pillar, for validation and pickers.
var Pillars = []Pillar{PillarFormalEducation, PillarInternalEducation, PillarHousingMeals, PillarDirectAid}

// SumTolerance is the accepted difference, in currency minor units, between
// the line-item total and the allocation total of one transaction.
var SumTolerance = decimal.NewFromInt(100)

type Transaction struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Date           time.Time       `json:"date" db:"date"`
	Direction      string          `json:"direction" db:"direction"`
	Category       string          `json:"category" db:"category"`
	Subcategory    string          `json:"subcategory" db:"subcategory"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	CashAccountID  uuid.UUID       `json:"cash_account_id" db:"cash_account_id"`
	Counterparty   null.String     `json:"counterparty" db:"counterparty"`
	Description    null.String     `json:"description" db:"description"`
	AllocationKind AllocationKind  `json:"allocation_kind" db:"allocation_kind"`
	IsRealExpense  bool            `json:"is_real_expense" db:"is_real_expense"`
	Status         string          `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"` // UTC
}

// Period returns the transaction's year-month period.
func (t Transaction) Period() string {
	return core.Period(t.Date)
}

// LineItem is owned exclusively by its Transaction and deleted with it.
type LineItem struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	TransactionID uuid.UUID       `json:"transaction_id" db:"transaction_id"`
	Name          string          `json:"name" db:"name"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	Unit          string          `json:"unit" db:"unit"`
	UnitPrice     decimal.Decimal `json:"unit_price" db:"unit_price"`
	Total         decimal.Decimal `json:"total" db:"total"` // quantity × unit price
}

// AllocationRecord assigns a portion of a transaction to one student. It is
// derived data: superseded whenever the same transaction is reprocessed.
// StudentName and StudentCode are display snapshots kept so historical rows
// remain readable after the source record is deleted.
type AllocationRecord struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Source        RecordSource    `json:"source" db:"source"`
	TransactionID uuid.NullUUID   `json:"transaction_id" db:"transaction_id"`
	LineItemID    uuid.NullUUID   `json:"line_item_id" db:"line_item_id"`
	StudentID     uuid.UUID       `json:"student_id" db:"student_id"`
	StudentName   string          `json:"student_name" db:"student_name"`
	StudentCode   string          `json:"student_code" db:"student_code"`
	Period        string          `json:"period" db:"period"` // YYYY-MM
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Percent       decimal.Decimal `json:"percent" db:"percent"` // of the transaction total
	Label         string          `json:"label" db:"label"`     // allocation category, e.g. the item name
	Pillar        Pillar          `json:"pillar" db:"pillar"`
	Note          null.String     `json:"note" db:"note"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"` // UTC
}

// LedgerEntry is a recomputable realization row used by downstream
// reporting. The set keyed by (transaction, pillar, source) is always fully
// replaced, never appended to.
type LedgerEntry struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	StudentID     uuid.UUID       `json:"student_id" db:"student_id"`
	Period        string          `json:"period" db:"period"`
	Pillar        Pillar          `json:"pillar" db:"pillar"`
	Value         decimal.Decimal `json:"value" db:"value"`
	Source        ComputeSource   `json:"source" db:"source"`
	TransactionID uuid.UUID       `json:"transaction_id" db:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"` // UTC
}

// LedgerKey identifies one replaceable generation batch.
type LedgerKey struct {
	TransactionID uuid.UUID
	Pillar        Pillar
	Source        ComputeSource
}

// NewLineItem contains information needed to record one expense line item.
type NewLineItem struct {
	Name      string          `json:"name" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (li NewLineItem) Total() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// NewTransaction contains information needed to post a new expense.
type NewTransaction struct {
	Date          time.Time       `json:"date" validate:"required"`
	Category      string          `json:"category" validate:"required"`
	Subcategory   string          `json:"subcategory"`
	CashAccountID uuid.UUID       `json:"cash_account_id" validate:"required"`
	Counterparty  string          `json:"counterparty"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Items         []NewLineItem   `json:"items" validate:"omitempty,dive"`
}

// ItemsTotal sums the line item totals.
func (nt NewTransaction) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range nt.Items {
		total = total.Add(it.Total())
	}
	return total
}

// Total is the transaction amount: the line-item sum when items exist,
// the explicit amount otherwise.
func (nt NewTransaction) Total() decimal.Decimal {
	if len(nt.Items) > 0 {
		return nt.ItemsTotal()
	}
	return nt.Amount
}

func (nt *NewTransaction) Validate() error {
	nt.Category = core.CleanString(nt.Category)
	nt.Subcategory = core.CleanString(nt.Subcategory)
	nt.Counterparty = core.CleanString(nt.Counterparty)

	if err := core.Validate.Struct(nt); err != nil {
		return err
	}

	var flds []core.FieldError
	for i, it := range nt.Items {
		if !it.Quantity.IsPositive() {
			flds = append(flds, core.FieldError{Field: itemField(i, "quantity"), Error: "must be greater than 0"})
		}
		if !it.UnitPrice.IsPositive() {
			flds = append(flds, core.FieldError{Field: itemField(i, "unit_price"), Error: "must be greater than 0"})
		}
	}
	if !nt.Total().IsPositive() {
		flds = append(flds, core.FieldError{Field: "amount", Error: "must be greater than 0"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(ErrInvalidTransaction, flds...)
	}
	return nil
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}

type AllocationFilter struct {
	TransactionID uuid.NullUUID
	StudentID     uuid.NullUUID
	Source        RecordSource
	Period        string
}

type TransactionFilter struct {
	Direction string
	Category  string
	DateFrom  time.Time
	DateTo    time.Time
}
