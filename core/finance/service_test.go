package finance_test

import (
	"context"
	"errors"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daruliman/pondok/core"
	"github.com/daruliman/pondok/core/finance"
	"github.com/daruliman/pondok/core/student"
	dummydb "github.com/daruliman/pondok/storage/database/dummy"
)

func setup(t *testing.T) (*finance.Service, *dummydb.DB) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := dummydb.NewFinanceRepository(db)
	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	classifier := finance.NewClassifier(repo, logger)
	svc := finance.NewService(repo, dummydb.NewStudentRepository(db), classifier, logger)
	return svc, db
}

func addResident(db *dummydb.DB, name, code string) student.Student {
	return db.AddStudent(student.Student{
		FullName: name,
		Code:     code,
		Category: student.CategoryResident,
		Status:   student.StatusActive,
	})
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newExpense(category string, amount int64) finance.NewTransaction {
	return finance.NewTransaction{
		Date:          time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Category:      category,
		CashAccountID: uuid.New(),
		Amount:        d(amount),
	}
}

func TestService_CommitManual(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	a := addResident(db, "Ahmad", "S-001")
	b := addResident(db, "Budi", "S-002")

	nt := newExpense("Direct Student Aid", 0)
	nt.Items = []finance.NewLineItem{
		{Name: "Tuition", Quantity: d(1), UnitPrice: d(600000)},
		{Name: "Books", Quantity: d(1), UnitPrice: d(400000)},
	}

	draft := finance.NewDraft("2026-08", nt.Category, nt.Items)
	require.NoError(t, draft.AddStudent(a))
	require.NoError(t, draft.AddStudent(b))
	require.NoError(t, draft.AutoGenerateFromItems())

	txn, err := svc.CommitManual(ctx, nt, draft)
	require.NoError(t, err)

	assert.Equal(t, finance.StatusPosted, txn.Status)
	assert.Equal(t, finance.AllocationDirect, txn.AllocationKind)
	assert.True(t, txn.Amount.Equal(d(1000000)))

	items, err := svc.LineItems(ctx, txn.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	recs, err := svc.Allocations(ctx, finance.AllocationFilter{
		TransactionID: uuid.NullUUID{UUID: txn.ID, Valid: true},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, finance.RecordManual, rec.Source)
		assert.Equal(t, finance.PillarDirectAid, rec.Pillar)
		assert.True(t, rec.LineItemID.Valid, "allocation should link to its line item")
	}

	entries, err := svc.Ledger(ctx, finance.LedgerKey{
		TransactionID: txn.ID,
		Pillar:        finance.PillarDirectAid,
		Source:        finance.ComputeDirect,
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Value)
	}
	assert.True(t, total.Equal(d(1000000)), "got %s", total)
}

func TestService_CommitManual_duplicateItemNames(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	a := addResident(db, "Ahmad", "S-001")
	b := addResident(db, "Budi", "S-002")

	nt := newExpense("Direct Student Aid", 0)
	nt.Items = []finance.NewLineItem{
		{Name: "Books", Quantity: d(1), UnitPrice: d(600000)},
		{Name: "Books", Quantity: d(1), UnitPrice: d(400000)},
	}

	draft := finance.NewDraft("2026-08", nt.Category, nt.Items)
	require.NoError(t, draft.AddStudent(a))
	require.NoError(t, draft.AddStudent(b))
	require.NoError(t, draft.AutoGenerateFromItems())

	txn, err := svc.CommitManual(ctx, nt, draft)
	require.NoError(t, err)

	// same-named items must still link to distinct line items
	recs, err := svc.Allocations(ctx, finance.AllocationFilter{
		TransactionID: uuid.NullUUID{UUID: txn.ID, Valid: true},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.True(t, recs[0].LineItemID.Valid)
	require.True(t, recs[1].LineItemID.Valid)
	assert.NotEqual(t, recs[0].LineItemID.UUID, recs[1].LineItemID.UUID)
}

func TestService_CommitManual_invalidDraft(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	a := addResident(db, "Ahmad", "S-001")

	nt := newExpense("Direct Student Aid", 0)
	nt.Items = []finance.NewLineItem{
		{Name: "Tuition", Quantity: d(1), UnitPrice: d(1000000)},
	}

	draft := finance.NewDraft("2026-08", nt.Category, nt.Items)
	require.NoError(t, draft.AddStudent(a))
	require.NoError(t, draft.SetAmount(draft.Records[0].ID, d(500000))) // way off the item total

	_, err := svc.CommitManual(ctx, nt, draft)
	require.Error(t, err)
	_, ok := err.(*core.ValidationError)
	assert.True(t, ok)

	// nothing was written
	txns, err := svc.Transactions(ctx, finance.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestService_DistributeOverhead(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	for _, code := range []string{"S-001", "S-002", "S-003", "S-004"} {
		addResident(db, "Student "+code, code)
	}
	// ineligible students are not part of the split
	db.AddStudent(student.Student{FullName: "Alumni", Code: "S-900", Category: student.CategoryResident, Status: student.StatusAlumni})
	db.AddStudent(student.Student{FullName: "Day", Code: "S-901", Category: student.CategoryDay, Status: student.StatusActive})

	res, err := svc.DistributeOverhead(ctx, newExpense("Student Operations & Meals", 1000000))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Students)
	assert.True(t, res.PerHead.Equal(d(250000)), "got %s", res.PerHead)
	assert.Empty(t, res.Warning)
	assert.Equal(t, finance.AllocationOverhead, res.Transaction.AllocationKind)

	recs, err := svc.Allocations(ctx, finance.AllocationFilter{
		TransactionID: uuid.NullUUID{UUID: res.Transaction.ID, Valid: true},
	})
	require.NoError(t, err)
	require.Len(t, recs, 4)
	for _, rec := range recs {
		assert.Equal(t, finance.RecordOverhead, rec.Source)
		assert.True(t, rec.Amount.Equal(d(250000)))
		assert.True(t, rec.Percent.Equal(d(25)))
		assert.Equal(t, "2026-08", rec.Period)
	}

	entries, err := svc.Ledger(ctx, finance.LedgerKey{
		TransactionID: res.Transaction.ID,
		Pillar:        finance.PillarHousingMeals,
		Source:        finance.ComputeOverhead,
	})
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestService_DistributeOverhead_noEligibleStudents(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	res, err := svc.DistributeOverhead(ctx, newExpense("Student Operations & Meals", 1000000))
	require.NoError(t, err)

	// the expense posts, the distribution is skipped with a warning
	assert.Equal(t, finance.WarnNoEligibleStudents, res.Warning)
	assert.Equal(t, 0, res.Students)

	txn, err := svc.GetTransaction(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.StatusPosted, txn.Status)

	recs, err := svc.Allocations(ctx, finance.AllocationFilter{
		TransactionID: uuid.NullUUID{UUID: txn.ID, Valid: true},
	})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestService_DistributeOverhead_wrongKind(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.DistributeOverhead(context.Background(), newExpense("Internal Education", 1000000))
	assert.Equal(t, finance.ErrNotOverhead, err)
}

func TestService_Redistribute(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	s1 := addResident(db, "Ahmad", "S-001")
	addResident(db, "Budi", "S-002")
	addResident(db, "Citra", "S-003")
	s4 := addResident(db, "Dewi", "S-004")

	res, err := svc.DistributeOverhead(ctx, newExpense("Student Operations & Meals", 1000000))
	require.NoError(t, err)
	require.Equal(t, 4, res.Students)

	key := finance.LedgerKey{
		TransactionID: res.Transaction.ID,
		Pillar:        finance.PillarHousingMeals,
		Source:        finance.ComputeOverhead,
	}

	// one student leaves; redistribution fully replaces the batch
	db.AddStudent(student.Student{
		ID: s4.ID, FullName: s4.FullName, Code: s4.Code,
		Category: student.CategoryResident, Status: student.StatusInactive,
	})

	res2, err := svc.Redistribute(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res2.Students)

	want := decimal.NewFromFloat(333333.33)
	assert.True(t, res2.PerHead.Equal(want), "got %s", res2.PerHead)

	recs, err := svc.Allocations(ctx, finance.AllocationFilter{
		TransactionID: uuid.NullUUID{UUID: res.Transaction.ID, Valid: true},
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.True(t, rec.Amount.Equal(want))
		assert.NotEqual(t, s4.ID, rec.StudentID)
	}

	entries, err := svc.Ledger(ctx, key)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// unchanged set: re-running yields the same state
	res3, err := svc.Redistribute(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res3.Students)
	assert.True(t, res3.PerHead.Equal(want))

	entries, err = svc.Ledger(ctx, key)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	found := false
	for _, entry := range entries {
		if entry.StudentID == s1.ID {
			found = true
		}
	}
	assert.True(t, found)
}

func TestService_Redistribute_pillarChange(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	addResident(db, "Ahmad", "S-001")
	addResident(db, "Budi", "S-002")

	res, err := svc.DistributeOverhead(ctx, newExpense("Student Operations & Meals", 1000000))
	require.NoError(t, err)

	oldKey := finance.LedgerKey{
		TransactionID: res.Transaction.ID,
		Pillar:        finance.PillarHousingMeals,
		Source:        finance.ComputeOverhead,
	}
	entries, err := svc.Ledger(ctx, oldKey)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// the category is remapped to another pillar after posting
	db.SetCategoryMapping("Student Operations & Meals", finance.CategoryMapping{
		Kind:   finance.MappingAllResidents,
		Pillar: finance.PillarInternalEducation,
		Active: true,
	})

	_, err = svc.Redistribute(ctx, res.Transaction.ID)
	require.NoError(t, err)

	// the batch moved: nothing may linger under the old pillar's key
	entries, err = svc.Ledger(ctx, oldKey)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = svc.Ledger(ctx, finance.LedgerKey{
		TransactionID: res.Transaction.ID,
		Pillar:        finance.PillarInternalEducation,
		Source:        finance.ComputeOverhead,
	})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	recs, err := svc.Allocations(ctx, finance.AllocationFilter{
		TransactionID: uuid.NullUUID{UUID: res.Transaction.ID, Valid: true},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		assert.Equal(t, finance.PillarInternalEducation, rec.Pillar)
	}
}

// ledgerFailRepo fails every ledger write while delegating the rest.
type ledgerFailRepo struct {
	finance.Repository
	err error
}

func (repo ledgerFailRepo) ReplaceLedgerEntries(context.Context, finance.LedgerKey, []finance.LedgerEntry) error {
	return repo.err
}

func TestService_Redistribute_partialWrite(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	addResident(db, "Ahmad", "S-001")
	addResident(db, "Budi", "S-002")

	res, err := svc.DistributeOverhead(ctx, newExpense("Student Operations & Meals", 1000000))
	require.NoError(t, err)

	repo := dummydb.NewFinanceRepository(db)
	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	failing := finance.NewService(
		ledgerFailRepo{Repository: repo, err: errors.New("connection reset")},
		dummydb.NewStudentRepository(db),
		finance.NewClassifier(repo, logger),
		logger,
	)

	_, err = failing.Redistribute(ctx, res.Transaction.ID)
	require.Error(t, err)
	require.True(t, core.IsPartialWrite(err))

	pwErr := err.(*core.PartialWriteError)
	assert.Equal(t, res.Transaction.ID, pwErr.TransactionID)
	assert.Equal(t, "ledger", pwErr.Step)
}

func TestService_Redistribute_notOverhead(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()

	a := addResident(db, "Ahmad", "S-001")

	nt := newExpense("Direct Student Aid", 0)
	nt.Items = []finance.NewLineItem{{Name: "Aid", Quantity: d(1), UnitPrice: d(100000)}}

	draft := finance.NewDraft("2026-08", nt.Category, nt.Items)
	require.NoError(t, draft.AddStudent(a))
	require.NoError(t, draft.AutoGenerateFromItems())

	txn, err := svc.CommitManual(ctx, nt, draft)
	require.NoError(t, err)

	_, err = svc.Redistribute(ctx, txn.ID)
	assert.Equal(t, finance.ErrNotOverhead, err)
}
