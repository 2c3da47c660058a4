package echoapi

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daruliman/pondok/core"
	"github.com/daruliman/pondok/core/finance"
	"github.com/daruliman/pondok/core/student"
	dummydb "github.com/daruliman/pondok/storage/database/dummy"
)

func setup(t *testing.T) (*financeApi, *dummydb.DB) {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo := dummydb.NewFinanceRepository(db)
	logger := core.NewStdLogger(log.New(ioutil.Discard, "", 0))
	classifier := finance.NewClassifier(repo, logger)
	svc := finance.NewService(repo, dummydb.NewStudentRepository(db), classifier, logger)
	students := student.NewService(dummydb.NewStudentRepository(db))
	return &financeApi{svc: svc, students: students}, db
}

func newRequest(e *echo.Echo, method, path string, data ...[]byte) (echo.Context, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	return ctx, rec
}

func createResident(t *testing.T, db *dummydb.DB, name, code string) student.Student {
	t.Helper()
	return db.AddStudent(student.Student{
		FullName: name,
		Code:     code,
		Category: student.CategoryResident,
		Status:   student.StatusActive,
	})
}

func marshalRequest(t *testing.T, data interface{}) []byte {
	body, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshalRequest() failed: %v", err)
	}
	return body
}

func Test_financeApi_create_overhead(t *testing.T) {
	api, db := setup(t)
	e := echo.New()

	createResident(t, db, "Ahmad", "S-001")
	createResident(t, db, "Budi", "S-002")

	body := marshalRequest(t, ExpenseRequest{
		NewTransaction: finance.NewTransaction{
			Date:          time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			Category:      "Student Operations & Meals",
			CashAccountID: uuid.New(),
			Amount:        decimal.NewFromInt(1000000),
		},
	})

	ctx, rec := newRequest(e, http.MethodPost, "/expenses", body)
	require.NoError(t, api.create(ctx))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp ExpenseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Students)
	assert.True(t, resp.PerHead.Equal(decimal.NewFromInt(500000)))
	assert.Empty(t, resp.Warning)
	assert.Equal(t, finance.AllocationOverhead, resp.Transaction.AllocationKind)
}

func Test_financeApi_create_selectionRequired(t *testing.T) {
	api, _ := setup(t)
	e := echo.New()

	body := marshalRequest(t, ExpenseRequest{
		NewTransaction: finance.NewTransaction{
			Date:          time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			Category:      "Direct Student Aid",
			CashAccountID: uuid.New(),
			Amount:        decimal.NewFromInt(100000),
		},
	})

	ctx, _ := newRequest(e, http.MethodPost, "/expenses", body)
	err := api.create(ctx)
	require.Error(t, err)
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, finance.ErrSelectionRequired, verr.Err)
}

func Test_financeApi_create_manualAutoGenerate(t *testing.T) {
	api, db := setup(t)
	e := echo.New()

	a := createResident(t, db, "Ahmad", "S-001")
	b := createResident(t, db, "Budi", "S-002")

	body := marshalRequest(t, ExpenseRequest{
		NewTransaction: finance.NewTransaction{
			Date:          time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			Category:      "Direct Student Aid",
			CashAccountID: uuid.New(),
			Items: []finance.NewLineItem{
				{Name: "Tuition", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(600000)},
				{Name: "Books", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(400000)},
			},
		},
		Allocations: []AllocationRequest{
			{StudentID: a.ID},
			{StudentID: b.ID},
		},
		AutoGenerate: true,
	})

	ctx, rec := newRequest(e, http.MethodPost, "/expenses", body)
	require.NoError(t, api.create(ctx))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp ExpenseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Transaction.Amount.Equal(decimal.NewFromInt(1000000)))

	recs, err := api.svc.Allocations(ctx.Request().Context(), finance.AllocationFilter{
		TransactionID: uuid.NullUUID{UUID: resp.Transaction.ID, Valid: true},
	})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func Test_financeApi_create_unknownStudent(t *testing.T) {
	api, _ := setup(t)
	e := echo.New()

	body := marshalRequest(t, ExpenseRequest{
		NewTransaction: finance.NewTransaction{
			Date:          time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			Category:      "Direct Student Aid",
			CashAccountID: uuid.New(),
			Items: []finance.NewLineItem{
				{Name: "Aid", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100000)},
			},
		},
		Allocations:  []AllocationRequest{{StudentID: uuid.New()}},
		AutoGenerate: true,
	})

	ctx, _ := newRequest(e, http.MethodPost, "/expenses", body)
	err := api.create(ctx)
	require.Error(t, err)
	_, ok := err.(*core.ValidationError)
	assert.True(t, ok)
}

func Test_financeApi_rule(t *testing.T) {
	api, db := setup(t)
	e := echo.New()

	db.SetSubcategoryMapping("Teacher Salaries", finance.CategoryMapping{
		Kind:   finance.MappingNotAllocated,
		Active: true,
	})

	tests := []struct {
		name     string
		path     string
		wantKind finance.AllocationKind
		wantSrc  finance.RuleSource
	}{
		{
			name:     "configured subcategory",
			path:     "/rules?category=Formal+Education&subcategory=Teacher+Salaries",
			wantKind: finance.AllocationNone,
			wantSrc:  finance.RuleConfigured,
		},
		{
			name:     "fallback category",
			path:     "/rules?category=Student+Operations+%26+Meals",
			wantKind: finance.AllocationOverhead,
			wantSrc:  finance.RuleFallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, rec := newRequest(e, http.MethodGet, tt.path)
			require.NoError(t, api.rule(ctx))
			assert.Equal(t, http.StatusOK, rec.Code)

			var rule finance.AllocationRule
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
			assert.Equal(t, tt.wantKind, rule.Kind)
			assert.Equal(t, tt.wantSrc, rule.Source)
		})
	}
}
