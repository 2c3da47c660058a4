package echoapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/daruliman/pondok/core"
	"github.com/daruliman/pondok/core/finance"
	"github.com/daruliman/pondok/core/student"
)

type financeApi struct {
	svc      *finance.Service
	students *student.Service
}

func registerFinanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *finance.Service, students *student.Service) {
	api := financeApi{svc: svc, students: students}

	ag := g.Group("", jwt)

	ag.GET("/rules", api.rule)
	ag.GET("/students", api.queryStudents)

	eg := ag.Group("/expenses")
	eg.POST("", api.create, adminMiddleware())
	eg.GET("", api.query)
	eg.GET("/:id", api.retrieve)
	eg.GET("/:id/items", api.lineItems)
	eg.GET("/:id/ledger", api.ledger)
	eg.POST("/:id/redistribute", api.redistribute, adminMiddleware())

	ag.GET("/allocations", api.allocations)
}

type (
	// AllocationRequest is one hand-picked (student, amount) row.
	AllocationRequest struct {
		StudentID uuid.UUID       `json:"student_id" validate:"required"`
		Amount    decimal.Decimal `json:"amount"`
		Note      string          `json:"note"`
	}

	// ExpenseRequest posts a new expense. Allocations are required when the
	// resolved rule requires a per-student selection; AutoGenerate asks the
	// server to derive amounts from the line items instead.
	ExpenseRequest struct {
		finance.NewTransaction
		Allocations  []AllocationRequest `json:"allocations" validate:"omitempty,dive"`
		AutoGenerate bool                `json:"auto_generate"`
	}

	// ExpenseResponse reports the posted transaction plus distribution
	// details when the expense was an overhead one.
	ExpenseResponse struct {
		Transaction finance.Transaction `json:"transaction"`
		PerHead     decimal.Decimal     `json:"per_head,omitempty"`
		Students    int                 `json:"students,omitempty"`
		Warning     string              `json:"warning,omitempty"`
	}
)

// create posts an expense, routing on the resolved allocation rule:
// overhead expenses are distributed across active residents, selection
// expenses need the request's allocation rows, the rest post as plain
// transactions.
func (api *financeApi) create(ctx echo.Context) error {
	var data ExpenseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExpenseRequest")
	}

	reqCtx := ctx.Request().Context()
	rule := api.svc.Rule(reqCtx, data.Category, data.Subcategory)

	if rule.Kind == finance.AllocationOverhead {
		res, err := api.svc.DistributeOverhead(reqCtx, data.NewTransaction)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusCreated, ExpenseResponse{
			Transaction: res.Transaction,
			PerHead:     res.PerHead,
			Students:    res.Students,
			Warning:     res.Warning,
		})
	}

	if rule.RequiresSelection && len(data.Allocations) == 0 {
		return core.NewValidationError(finance.ErrSelectionRequired,
			core.FieldError{Field: "allocations", Error: finance.ErrSelectionRequired.Error()})
	}

	draft, err := api.buildDraft(ctx, data)
	if err != nil {
		return err
	}

	txn, err := api.svc.CommitManual(reqCtx, data.NewTransaction, draft)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ExpenseResponse{Transaction: txn})
}

func (api *financeApi) buildDraft(ctx echo.Context, data ExpenseRequest) (*finance.Draft, error) {
	reqCtx := ctx.Request().Context()
	period := core.Period(data.Date)
	draft := finance.NewDraft(period, data.Category, data.Items)

	for _, alloc := range data.Allocations {
		s, err := api.students.GetByID(reqCtx, alloc.StudentID)
		if err != nil {
			if errors.Cause(err) == student.ErrNotFound {
				return nil, core.NewValidationError(err,
					core.FieldError{Field: "allocations", Error: "student " + alloc.StudentID.String() + " not found"})
			}
			return nil, errors.Wrap(err, "finding student")
		}
		if err = draft.AddStudent(s); err != nil {
			return nil, core.NewValidationError(err,
				core.FieldError{Field: "allocations", Error: err.Error()})
		}
	}

	if data.AutoGenerate {
		if err := draft.AutoGenerateFromItems(); err != nil {
			return nil, core.NewValidationError(err,
				core.FieldError{Field: "allocations", Error: err.Error()})
		}
		return draft, nil
	}

	for i, alloc := range data.Allocations {
		if err := draft.SetAmount(draft.Records[i].ID, alloc.Amount); err != nil {
			return nil, core.NewValidationError(err,
				core.FieldError{Field: "allocations", Error: err.Error()})
		}
		draft.Records[i].Note = alloc.Note
	}
	return draft, nil
}

func (api *financeApi) redistribute(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	res, err := api.svc.Redistribute(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == finance.ErrTransactionNotFound {
			return errHttpNotFound
		}
		return err
	}
	return ctx.JSON(http.StatusOK, ExpenseResponse{
		Transaction: res.Transaction,
		PerHead:     res.PerHead,
		Students:    res.Students,
		Warning:     res.Warning,
	})
}

func (api *financeApi) rule(ctx echo.Context) error {
	rule := api.svc.Rule(ctx.Request().Context(),
		ctx.QueryParam("category"), ctx.QueryParam("subcategory"))
	return ctx.JSON(http.StatusOK, rule)
}

func (api *financeApi) query(ctx echo.Context) error {
	var filter finance.TransactionFilter
	filter.Direction = ctx.QueryParam("direction")
	filter.Category = ctx.QueryParam("category")
	if from := ctx.QueryParam("date_from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "date_from", Error: "invalid date"})
		}
		filter.DateFrom = t
	}
	if to := ctx.QueryParam("date_to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "date_to", Error: "invalid date"})
		}
		filter.DateTo = t
	}

	txns, err := api.svc.Transactions(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	return ctx.JSON(http.StatusOK, txns)
}

func (api *financeApi) retrieve(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	txn, err := api.svc.GetTransaction(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == finance.ErrTransactionNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting transaction")
	}
	return ctx.JSON(http.StatusOK, txn)
}

func (api *financeApi) lineItems(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	items, err := api.svc.LineItems(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying line items")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *financeApi) ledger(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	key := finance.LedgerKey{
		TransactionID: id,
		Pillar:        finance.Pillar(ctx.QueryParam("pillar")),
		Source:        finance.ComputeSource(ctx.QueryParam("source")),
	}
	entries, err := api.svc.Ledger(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "querying ledger entries")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *financeApi) allocations(ctx echo.Context) error {
	var filter finance.AllocationFilter
	if raw := ctx.QueryParam("transaction_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "transaction_id", Error: "invalid id"})
		}
		filter.TransactionID = uuid.NullUUID{UUID: id, Valid: true}
	}
	if raw := ctx.QueryParam("student_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "student_id", Error: "invalid id"})
		}
		filter.StudentID = uuid.NullUUID{UUID: id, Valid: true}
	}
	filter.Source = finance.RecordSource(ctx.QueryParam("source"))
	filter.Period = ctx.QueryParam("period")

	recs, err := api.svc.Allocations(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying allocations")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *financeApi) queryStudents(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	students, err := api.students.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}
