package finance

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/daruliman/pondok/core"
	"github.com/daruliman/pondok/core/student"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newStudent(name, code string) student.Student {
	return student.Student{
		FullName: name,
		Code:     code,
		Category: student.CategoryResident,
		Status:   student.StatusActive,
	}
}

func TestDraft_AddStudent_rejectsDuplicates(t *testing.T) {
	draft := NewDraft("2026-08", "School Fees", nil)
	s := newStudent("Ahmad", "S-001")
	s.ID = uuid.New()

	assert.NoError(t, draft.AddStudent(s))
	assert.Equal(t, ErrDuplicateStudent, draft.AddStudent(s))
	assert.Len(t, draft.Records, 1)
}

func TestDraft_SetAmount_recomputesPercents(t *testing.T) {
	draft := NewDraft("2026-08", "School Fees", nil)
	a := newStudent("Ahmad", "S-001")
	a.ID = uuid.New()
	b := newStudent("Budi", "S-002")
	b.ID = uuid.New()
	assert.NoError(t, draft.AddStudent(a))
	assert.NoError(t, draft.AddStudent(b))

	assert.NoError(t, draft.SetAmount(draft.Records[0].ID, d(600000)))
	assert.NoError(t, draft.SetAmount(draft.Records[1].ID, d(400000)))

	assert.True(t, draft.Records[0].Percent.Equal(d(60)), "got %s", draft.Records[0].Percent)
	assert.True(t, draft.Records[1].Percent.Equal(d(40)), "got %s", draft.Records[1].Percent)

	// updating one amount shifts every percentage
	assert.NoError(t, draft.SetAmount(draft.Records[1].ID, d(600000)))
	assert.True(t, draft.Records[0].Percent.Equal(d(50)))
	assert.True(t, draft.Records[1].Percent.Equal(d(50)))
}

func TestDraft_SetAmount_rejectsNegative(t *testing.T) {
	draft := NewDraft("2026-08", "School Fees", nil)
	s := newStudent("Ahmad", "S-001")
	s.ID = uuid.New()
	assert.NoError(t, draft.AddStudent(s))

	assert.Equal(t, ErrNegativeAmount, draft.SetAmount(draft.Records[0].ID, d(-1)))
}

func TestDraft_AutoGenerateFromItems_oneToOne(t *testing.T) {
	items := []NewLineItem{
		{Name: "Tuition", Quantity: d(1), UnitPrice: d(600000)},
		{Name: "Books", Quantity: d(2), UnitPrice: d(200000)},
	}
	draft := NewDraft("2026-08", "School Fees", items)
	a := newStudent("Ahmad", "S-001")
	a.ID = uuid.New()
	b := newStudent("Budi", "S-002")
	b.ID = uuid.New()
	assert.NoError(t, draft.AddStudent(a))
	assert.NoError(t, draft.AddStudent(b))

	assert.NoError(t, draft.AutoGenerateFromItems())

	// two items, two students: record i gets item i's total
	assert.Len(t, draft.Records, 2)
	assert.True(t, draft.Records[0].Amount.Equal(d(600000)), "got %s", draft.Records[0].Amount)
	assert.Equal(t, "Tuition", draft.Records[0].Label)
	assert.True(t, draft.Records[1].Amount.Equal(d(400000)), "got %s", draft.Records[1].Amount)
	assert.Equal(t, "Books", draft.Records[1].Label)
	assert.True(t, draft.AllocatedTotal().Equal(draft.ItemsTotal()))

	// each record remembers which item produced it
	assert.Equal(t, 0, draft.Records[0].ItemIndex.Int)
	assert.Equal(t, 1, draft.Records[1].ItemIndex.Int)
	assert.True(t, draft.Records[0].ItemIndex.Valid)
	assert.True(t, draft.Records[1].ItemIndex.Valid)
}

func TestDraft_AutoGenerateFromItems_evenSplit(t *testing.T) {
	items := []NewLineItem{
		{Name: "Uniforms", Quantity: d(1), UnitPrice: d(900000)},
	}
	draft := NewDraft("2026-08", "School Fees", items)
	for _, code := range []string{"S-001", "S-002", "S-003"} {
		s := newStudent("Student "+code, code)
		s.ID = uuid.New()
		assert.NoError(t, draft.AddStudent(s))
	}

	assert.NoError(t, draft.AutoGenerateFromItems())

	// one item, three students: 1×3 rows at a third of the item total
	assert.Len(t, draft.Records, 3)
	for _, rec := range draft.Records {
		assert.True(t, rec.Amount.Equal(d(300000)), "got %s", rec.Amount)
		assert.Equal(t, "Uniforms", rec.Label)
	}
}

func TestDraft_AutoGenerateFromItems_requiresItemsAndStudents(t *testing.T) {
	draft := NewDraft("2026-08", "School Fees", nil)
	assert.Equal(t, ErrNothingToSplit, draft.AutoGenerateFromItems())

	draft.Items = []NewLineItem{{Name: "Tuition", Quantity: d(1), UnitPrice: d(100)}}
	assert.Equal(t, ErrNoStudentsSelected, draft.AutoGenerateFromItems())
}

func TestDraft_AutoSplitEvenly(t *testing.T) {
	items := []NewLineItem{
		{Name: "Meals", Quantity: d(10), UnitPrice: d(100000)},
	}
	draft := NewDraft("2026-08", "Meals", items)
	a := newStudent("Ahmad", "S-001")
	a.ID = uuid.New()
	b := newStudent("Budi", "S-002")
	b.ID = uuid.New()
	c := newStudent("Citra", "S-003")
	c.ID = uuid.New()
	assert.NoError(t, draft.AddStudent(a))
	assert.NoError(t, draft.AddStudent(b))
	assert.NoError(t, draft.AddStudent(c))

	assert.NoError(t, draft.AutoSplitEvenly())

	want := decimal.NewFromFloat(333333.33)
	for _, rec := range draft.Records {
		assert.True(t, rec.Amount.Equal(want), "got %s", rec.Amount)
	}
}

func TestDraft_Validate(t *testing.T) {
	items := []NewLineItem{
		{Name: "Tuition", Quantity: d(1), UnitPrice: d(1000000)},
	}

	t.Run("allocation total within tolerance", func(t *testing.T) {
		draft := NewDraft("2026-08", "School Fees", items)
		s := newStudent("Ahmad", "S-001")
		s.ID = uuid.New()
		assert.NoError(t, draft.AddStudent(s))
		// 60 units under the item total, inside the 100-unit tolerance
		assert.NoError(t, draft.SetAmount(draft.Records[0].ID, d(999940)))
		assert.NoError(t, draft.Validate())
	})

	t.Run("allocation total outside tolerance", func(t *testing.T) {
		draft := NewDraft("2026-08", "School Fees", items)
		s := newStudent("Ahmad", "S-001")
		s.ID = uuid.New()
		assert.NoError(t, draft.AddStudent(s))
		assert.NoError(t, draft.SetAmount(draft.Records[0].ID, d(999899)))

		err := draft.Validate()
		assert.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		assert.True(t, ok)
		assert.Equal(t, "records", vErr.Fields[0].Field)
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		draft := NewDraft("2026-08", "School Fees", nil)
		s := newStudent("Ahmad", "S-001")
		s.ID = uuid.New()
		assert.NoError(t, draft.AddStudent(s))
		assert.Error(t, draft.Validate())
	})

	t.Run("missing label rejected", func(t *testing.T) {
		draft := NewDraft("2026-08", "", nil)
		s := newStudent("Ahmad", "S-001")
		s.ID = uuid.New()
		assert.NoError(t, draft.AddStudent(s))
		assert.NoError(t, draft.SetAmount(draft.Records[0].ID, d(100)))

		err := draft.Validate()
		assert.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		assert.True(t, ok)
		assert.Len(t, vErr.Fields, 1)
		assert.Equal(t, "records[0].label", vErr.Fields[0].Field)
	})

	t.Run("malformed period rejected", func(t *testing.T) {
		for _, period := range []string{"", "08-2026", "2026-13", "202608"} {
			draft := NewDraft(period, "School Fees", nil)
			s := newStudent("Ahmad", "S-001")
			s.ID = uuid.New()
			assert.NoError(t, draft.AddStudent(s))
			assert.NoError(t, draft.SetAmount(draft.Records[0].ID, d(100)))

			err := draft.Validate()
			assert.Error(t, err, "period %q", period)
			_, ok := err.(validator.ValidationErrors)
			assert.True(t, ok, "period %q", period)
		}
	})
}
