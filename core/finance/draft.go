package finance

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/daruliman/pondok/core"
	"github.com/daruliman/pondok/core/student"
)

var (
	ErrDuplicateStudent   = errors.New("student is already in the allocation draft")
	ErrRecordNotFound     = errors.New("allocation record not found in draft")
	ErrNegativeAmount     = errors.New("allocation amount must be zero or positive")
	ErrNoStudentsSelected = errors.New("no students selected")
	ErrNothingToSplit     = errors.New("nothing to split: add line items or amounts first")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrDraftInvalid       = errors.New("allocation draft is invalid")
)

var oneHundred = decimal.NewFromInt(100)

// DraftAllocation is one in-progress (student, amount) assignment.
// ItemIndex points at the source line item for auto-generated rows; item
// names are display labels and may repeat, so the index is the real link.
type DraftAllocation struct {
	ID          uuid.UUID       `json:"id"`
	StudentID   uuid.UUID       `json:"student_id"`
	StudentName string          `json:"student_name"`
	StudentCode string          `json:"student_code"`
	Amount      decimal.Decimal `json:"amount"`
	Percent     decimal.Decimal `json:"percent"`
	Label       string          `json:"label"`
	Period      string          `json:"period"`
	Note        string          `json:"note"`
	ItemIndex   null.Int        `json:"item_index"`
}

// Draft is the user-curated allocation of one expense before commit.
// It is an explicit session object passed by the caller; nothing in this
// package keeps draft state between calls.
type Draft struct {
	Period  string            `json:"period" validate:"required,period"`
	Label   string            `json:"label"` // default allocation category
	Items   []NewLineItem     `json:"items"`
	Records []DraftAllocation `json:"records"`
}

func NewDraft(period, label string, items []NewLineItem) *Draft {
	return &Draft{Period: period, Label: label, Items: items}
}

// AddStudent appends one allocation row for the student with a zero amount.
func (d *Draft) AddStudent(s student.Student) error {
	for _, rec := range d.Records {
		if rec.StudentID == s.ID {
			return ErrDuplicateStudent
		}
	}
	d.Records = append(d.Records, DraftAllocation{
		ID:          uuid.New(),
		StudentID:   s.ID,
		StudentName: s.FullName,
		StudentCode: s.Code,
		Label:       d.Label,
		Period:      d.Period,
	})
	return nil
}

func (d *Draft) RemoveStudent(studentID uuid.UUID) {
	kept := d.Records[:0]
	for _, rec := range d.Records {
		if rec.StudentID != studentID {
			kept = append(kept, rec)
		}
	}
	d.Records = kept
	d.recomputePercents()
}

// SetAmount updates one record's amount and recomputes every record's
// percentage of the draft total.
func (d *Draft) SetAmount(recordID uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	for i := range d.Records {
		if d.Records[i].ID == recordID {
			d.Records[i].Amount = amount
			d.recomputePercents()
			return nil
		}
	}
	return ErrRecordNotFound
}

// AutoGenerateFromItems derives allocation rows from the line items.
// With N items and M students: N == M is treated as a 1:1 mapping (record i
// gets item i's total); otherwise every item's total is split evenly across
// all students, one row per (item, student) pair. The item name becomes the
// row's allocation category.
func (d *Draft) AutoGenerateFromItems() error {
	if len(d.Items) == 0 {
		return ErrNothingToSplit
	}
	if len(d.Records) == 0 {
		return ErrNoStudentsSelected
	}

	students := d.uniqueStudents()

	if len(d.Items) == len(students) {
		// one item per student, at the item's total
		recs := make([]DraftAllocation, 0, len(students))
		for i, s := range students {
			item := d.Items[i]
			recs = append(recs, DraftAllocation{
				ID:          uuid.New(),
				StudentID:   s.StudentID,
				StudentName: s.StudentName,
				StudentCode: s.StudentCode,
				Amount:      item.Total(),
				Label:       item.Name,
				Period:      d.Period,
				ItemIndex:   null.IntFrom(i),
			})
		}
		d.Records = recs
		d.recomputePercents()
		return nil
	}

	count := decimal.NewFromInt(int64(len(students)))
	recs := make([]DraftAllocation, 0, len(d.Items)*len(students))
	for i, item := range d.Items {
		perStudent := item.Total().Div(count).Round(2)
		for _, s := range students {
			recs = append(recs, DraftAllocation{
				ID:          uuid.New(),
				StudentID:   s.StudentID,
				StudentName: s.StudentName,
				StudentCode: s.StudentCode,
				Amount:      perStudent,
				Label:       item.Name,
				Period:      d.Period,
				ItemIndex:   null.IntFrom(i),
			})
		}
	}
	d.Records = recs
	d.recomputePercents()
	return nil
}

// AutoSplitEvenly divides the transaction total evenly across the selected
// students. The total comes from the line items, or from the current
// allocation sum when no line items exist.
func (d *Draft) AutoSplitEvenly() error {
	if len(d.Records) == 0 {
		return ErrNoStudentsSelected
	}
	total := d.ItemsTotal()
	if total.IsZero() {
		total = d.AllocatedTotal()
	}
	if total.IsZero() {
		return ErrNothingToSplit
	}

	perStudent := total.Div(decimal.NewFromInt(int64(len(d.Records)))).Round(2)
	for i := range d.Records {
		d.Records[i].Amount = perStudent
	}
	d.recomputePercents()
	return nil
}

func (d *Draft) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.Total())
	}
	return total
}

func (d *Draft) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, rec := range d.Records {
		total = total.Add(rec.Amount)
	}
	return total
}

// Validate checks the draft is internally consistent: a well-formed
// YYYY-MM period, positive amounts, category label and period on every
// row, and, when line items exist, the allocation total within
// SumTolerance of the line-item total.
func (d *Draft) Validate() error {
	if err := core.Validate.Struct(d); err != nil {
		return err
	}

	var flds []core.FieldError
	for i, rec := range d.Records {
		if !rec.Amount.IsPositive() {
			flds = append(flds, core.FieldError{Field: recordField(i, "amount"), Error: "must be greater than 0"})
		}
		if rec.Label == "" {
			flds = append(flds, core.FieldError{Field: recordField(i, "label"), Error: "this field is required"})
		}
		if rec.Period == "" {
			flds = append(flds, core.FieldError{Field: recordField(i, "period"), Error: "this field is required"})
		}
	}
	if len(d.Items) > 0 && len(d.Records) > 0 {
		diff := d.ItemsTotal().Sub(d.AllocatedTotal()).Abs()
		if diff.GreaterThan(SumTolerance) {
			flds = append(flds, core.FieldError{
				Field: "records",
				Error: "allocation total must match the line-item total (difference " + diff.String() + ")",
			})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(ErrDraftInvalid, flds...)
	}
	return nil
}

func (d *Draft) recomputePercents() {
	total := d.AllocatedTotal()
	for i := range d.Records {
		if total.IsPositive() {
			d.Records[i].Percent = d.Records[i].Amount.Div(total).Mul(oneHundred).Round(4)
		} else {
			d.Records[i].Percent = decimal.Zero
		}
	}
}

func (d *Draft) uniqueStudents() []DraftAllocation {
	seen := make(map[uuid.UUID]struct{}, len(d.Records))
	students := make([]DraftAllocation, 0, len(d.Records))
	for _, rec := range d.Records {
		if _, ok := seen[rec.StudentID]; ok {
			continue
		}
		seen[rec.StudentID] = struct{}{}
		students = append(students, rec)
	}
	return students
}

func recordField(i int, name string) string {
	return "records[" + strconv.Itoa(i) + "]." + name
}
