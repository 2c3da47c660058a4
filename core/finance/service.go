package finance

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/daruliman/pondok/core"
	"github.com/daruliman/pondok/core/student"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSelectionRequired   = errors.New("this expense category requires a per-student allocation draft")
	ErrNotOverhead         = errors.New("transaction is not an overhead expense")
)

// WarnNoEligibleStudents is attached to a DistributionResult when an
// overhead expense posts with an empty eligible set. The expense itself
// still posts; only the distribution is skipped.
const WarnNoEligibleStudents = "no active resident students: expense posted without allocations"

type (
	// ExpenseRecord bundles everything one expense write produces. The
	// repository persists it in a single transaction so a half-written
	// expense can never be observed.
	ExpenseRecord struct {
		Transaction Transaction
		Items       []LineItem
		Allocations []AllocationRecord
		LedgerKey   *LedgerKey // nil when the expense produces no ledger batch
		Ledger      []LedgerEntry
	}

	// Repository is the finance storage.
	Repository interface {
		// CreateExpense persists the whole record atomically. When
		// record.LedgerKey is set, existing ledger entries under that key are
		// deleted before record.Ledger is inserted.
		CreateExpense(ctx context.Context, record ExpenseRecord) error
		GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
		// FilterTransactions applies AND operation on available TransactionFilter fields.
		FilterTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
		LineItems(ctx context.Context, transactionID uuid.UUID) ([]LineItem, error)
		// ReplaceAllocations swaps every allocation row of the transaction with
		// source RecordOverhead for the given rows, atomically.
		ReplaceAllocations(ctx context.Context, transactionID uuid.UUID, source RecordSource, records []AllocationRecord) error
		// FilterAllocations applies AND operation on available AllocationFilter fields.
		FilterAllocations(ctx context.Context, filter AllocationFilter) ([]AllocationRecord, error)
		// ReplaceLedgerEntries deletes the batch under key and inserts entries,
		// atomically.
		ReplaceLedgerEntries(ctx context.Context, key LedgerKey, entries []LedgerEntry) error
		LedgerEntries(ctx context.Context, key LedgerKey) ([]LedgerEntry, error)
	}

	// StudentDirectory is the slice of the student service the engine needs.
	StudentDirectory interface {
		QueryActiveResident(ctx context.Context) ([]student.Student, error)
	}

	// DistributionResult reports what an overhead distribution produced.
	DistributionResult struct {
		Transaction Transaction     `json:"transaction"`
		PerHead     decimal.Decimal `json:"per_head"`
		Students    int             `json:"students"`
		Warning     string          `json:"warning,omitempty"`
	}

	Service struct {
		repo       Repository
		students   StudentDirectory
		classifier *Classifier
		logger     core.Logger
		keys       *keyedMutex
	}
)

func NewService(repo Repository, students StudentDirectory, classifier *Classifier, logger core.Logger) *Service {
	return &Service{
		repo:       repo,
		students:   students,
		classifier: classifier,
		logger:     logger,
		keys:       newKeyedMutex(),
	}
}

// Rule resolves the allocation behavior for a category/subcategory pair.
func (svc *Service) Rule(ctx context.Context, category, subcategory string) AllocationRule {
	return svc.classifier.Resolve(ctx, category, subcategory)
}

// CommitManual posts an expense whose allocation was curated by hand in a
// Draft. The draft must validate against the transaction's line items; on
// success the transaction, its items, the allocation rows and the direct
// realization batch are written atomically.
func (svc *Service) CommitManual(ctx context.Context, nt NewTransaction, draft *Draft) (Transaction, error) {
	if err := nt.Validate(); err != nil {
		return Transaction{}, err
	}
	if err := draft.Validate(); err != nil {
		return Transaction{}, err
	}

	rule := svc.classifier.Resolve(ctx, nt.Category, nt.Subcategory)

	now := time.Now().UTC()
	txn := svc.buildTransaction(nt, rule, now)
	items := buildLineItems(txn.ID, nt.Items)

	record := ExpenseRecord{
		Transaction: txn,
		Items:       items,
		Allocations: make([]AllocationRecord, 0, len(draft.Records)),
	}
	for _, rec := range draft.Records {
		record.Allocations = append(record.Allocations, AllocationRecord{
			ID:            rec.ID,
			Source:        RecordManual,
			TransactionID: uuid.NullUUID{UUID: txn.ID, Valid: true},
			LineItemID:    matchLineItem(items, rec),
			StudentID:     rec.StudentID,
			StudentName:   rec.StudentName,
			StudentCode:   rec.StudentCode,
			Period:        rec.Period,
			Amount:        rec.Amount,
			Percent:       rec.Percent,
			Label:         rec.Label,
			Pillar:        rule.Pillar,
			Note:          null.NewString(rec.Note, rec.Note != ""),
			CreatedAt:     now,
		})
	}

	if rule.IsRealExpense && rule.Pillar != "" {
		key := LedgerKey{TransactionID: txn.ID, Pillar: rule.Pillar, Source: ComputeDirect}
		record.LedgerKey = &key
		record.Ledger = ledgerFromAllocations(key, record.Allocations, now)
	}

	unlock := svc.keys.lock(LedgerKey{TransactionID: txn.ID, Pillar: rule.Pillar, Source: ComputeDirect})
	defer unlock()

	if err := svc.repo.CreateExpense(ctx, record); err != nil {
		return Transaction{}, errors.Wrap(err, "committing manual expense")
	}
	svc.logger.Info("manual expense posted",
		"transaction="+txn.ID.String(),
		"allocations="+strconv.Itoa(len(record.Allocations)))
	return txn, nil
}

// DistributeOverhead posts an overhead expense and splits its total evenly
// across the live set of active resident students. An empty eligible set
// posts the expense without allocations and reports a warning.
func (svc *Service) DistributeOverhead(ctx context.Context, nt NewTransaction) (DistributionResult, error) {
	if err := nt.Validate(); err != nil {
		return DistributionResult{}, err
	}

	rule := svc.classifier.Resolve(ctx, nt.Category, nt.Subcategory)
	if rule.Kind != AllocationOverhead {
		return DistributionResult{}, ErrNotOverhead
	}

	eligible, err := svc.students.QueryActiveResident(ctx)
	if err != nil {
		return DistributionResult{}, errors.Wrap(err, "querying eligible students")
	}

	now := time.Now().UTC()
	txn := svc.buildTransaction(nt, rule, now)
	record := ExpenseRecord{
		Transaction: txn,
		Items:       buildLineItems(txn.ID, nt.Items),
	}

	res := DistributionResult{Transaction: txn, Students: len(eligible)}
	if len(eligible) == 0 {
		res.Warning = WarnNoEligibleStudents
		svc.logger.Warn("overhead expense has no eligible students", "transaction="+txn.ID.String())
	} else {
		res.PerHead = txn.Amount.Div(decimal.NewFromInt(int64(len(eligible)))).Round(2)
		record.Allocations = overheadAllocations(txn, eligible, res.PerHead, rule.Pillar, now)
		key := LedgerKey{TransactionID: txn.ID, Pillar: rule.Pillar, Source: ComputeOverhead}
		record.LedgerKey = &key
		record.Ledger = ledgerFromAllocations(key, record.Allocations, now)
	}

	unlock := svc.keys.lock(LedgerKey{TransactionID: txn.ID, Pillar: rule.Pillar, Source: ComputeOverhead})
	defer unlock()

	if err = svc.repo.CreateExpense(ctx, record); err != nil {
		return DistributionResult{}, errors.Wrap(err, "committing overhead expense")
	}
	svc.logger.Info("overhead expense distributed",
		"transaction="+txn.ID.String(),
		"students="+strconv.Itoa(res.Students))
	return res, nil
}

// Redistribute recomputes the overhead allocation of an already-posted
// expense against the current eligible set. The previous allocation rows
// and ledger batch are fully replaced; re-running with an unchanged set is
// a no-op in effect.
func (svc *Service) Redistribute(ctx context.Context, transactionID uuid.UUID) (DistributionResult, error) {
	txn, err := svc.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return DistributionResult{}, err
	}
	if txn.AllocationKind != AllocationOverhead {
		return DistributionResult{}, ErrNotOverhead
	}

	rule := svc.classifier.Resolve(ctx, txn.Category, txn.Subcategory)
	eligible, err := svc.students.QueryActiveResident(ctx)
	if err != nil {
		return DistributionResult{}, errors.Wrap(err, "querying eligible students")
	}

	prior, err := svc.repo.FilterAllocations(ctx, AllocationFilter{
		TransactionID: uuid.NullUUID{UUID: txn.ID, Valid: true},
		Source:        RecordOverhead,
	})
	if err != nil {
		return DistributionResult{}, errors.Wrap(err, "querying existing allocations")
	}

	key := LedgerKey{TransactionID: txn.ID, Pillar: rule.Pillar, Source: ComputeOverhead}
	unlock := svc.keys.lock(key)
	defer unlock()

	// A mapping change since posting moves the batch to a new pillar; the
	// batch under the old pillar's key must be cleared explicitly or it
	// would survive the replace below.
	var staleKey *LedgerKey
	if len(prior) > 0 && prior[0].Pillar != rule.Pillar {
		sk := LedgerKey{TransactionID: txn.ID, Pillar: prior[0].Pillar, Source: ComputeOverhead}
		staleKey = &sk
		unlockStale := svc.keys.lock(sk)
		defer unlockStale()
	}

	now := time.Now().UTC()
	res := DistributionResult{Transaction: txn, Students: len(eligible)}

	var allocs []AllocationRecord
	var entries []LedgerEntry
	if len(eligible) == 0 {
		res.Warning = WarnNoEligibleStudents
	} else {
		res.PerHead = txn.Amount.Div(decimal.NewFromInt(int64(len(eligible)))).Round(2)
		allocs = overheadAllocations(txn, eligible, res.PerHead, rule.Pillar, now)
		entries = ledgerFromAllocations(key, allocs, now)
	}

	if err = svc.repo.ReplaceAllocations(ctx, txn.ID, RecordOverhead, allocs); err != nil {
		return DistributionResult{}, errors.Wrap(err, "replacing allocations")
	}
	if staleKey != nil {
		if err = svc.repo.ReplaceLedgerEntries(ctx, *staleKey, nil); err != nil {
			return DistributionResult{}, core.NewPartialWriteError(txn.ID, "ledger", err)
		}
	}
	if err = svc.repo.ReplaceLedgerEntries(ctx, key, entries); err != nil {
		return DistributionResult{}, core.NewPartialWriteError(txn.ID, "ledger", err)
	}
	svc.logger.Info("overhead expense redistributed",
		"transaction="+txn.ID.String(),
		"students="+strconv.Itoa(res.Students))
	return res, nil
}

func (svc *Service) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return svc.repo.GetTransaction(ctx, id)
}

func (svc *Service) Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	return svc.repo.FilterTransactions(ctx, filter)
}

func (svc *Service) LineItems(ctx context.Context, transactionID uuid.UUID) ([]LineItem, error) {
	return svc.repo.LineItems(ctx, transactionID)
}

func (svc *Service) Allocations(ctx context.Context, filter AllocationFilter) ([]AllocationRecord, error) {
	return svc.repo.FilterAllocations(ctx, filter)
}

func (svc *Service) Ledger(ctx context.Context, key LedgerKey) ([]LedgerEntry, error) {
	return svc.repo.LedgerEntries(ctx, key)
}

func (svc *Service) buildTransaction(nt NewTransaction, rule AllocationRule, now time.Time) Transaction {
	return Transaction{
		ID:             uuid.New(),
		Date:           nt.Date,
		Direction:      DirectionExpense,
		Category:       nt.Category,
		Subcategory:    nt.Subcategory,
		Amount:         nt.Total(),
		CashAccountID:  nt.CashAccountID,
		Counterparty:   null.NewString(nt.Counterparty, nt.Counterparty != ""),
		Description:    null.NewString(nt.Description, nt.Description != ""),
		AllocationKind: rule.Kind,
		IsRealExpense:  rule.IsRealExpense,
		Status:         StatusPosted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func buildLineItems(transactionID uuid.UUID, items []NewLineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, LineItem{
			ID:            uuid.New(),
			TransactionID: transactionID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			Unit:          it.Unit,
			UnitPrice:     it.UnitPrice,
			Total:         it.Total(),
		})
	}
	return out
}

func overheadAllocations(txn Transaction, eligible []student.Student, perHead decimal.Decimal, pillar Pillar, now time.Time) []AllocationRecord {
	percent := oneHundred.Div(decimal.NewFromInt(int64(len(eligible)))).Round(4)
	out := make([]AllocationRecord, 0, len(eligible))
	for _, s := range eligible {
		out = append(out, AllocationRecord{
			ID:            uuid.New(),
			Source:        RecordOverhead,
			TransactionID: uuid.NullUUID{UUID: txn.ID, Valid: true},
			StudentID:     s.ID,
			StudentName:   s.FullName,
			StudentCode:   s.Code,
			Period:        txn.Period(),
			Amount:        perHead,
			Percent:       percent,
			Label:         txn.Category,
			Pillar:        pillar,
			CreatedAt:     now,
		})
	}
	return out
}

func ledgerFromAllocations(key LedgerKey, allocs []AllocationRecord, now time.Time) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, LedgerEntry{
			ID:            uuid.New(),
			StudentID:     a.StudentID,
			Period:        a.Period,
			Pillar:        key.Pillar,
			Value:         a.Amount,
			Source:        key.Source,
			TransactionID: key.TransactionID,
			CreatedAt:     now,
		})
	}
	return out
}

// matchLineItem links an allocation row to its source item. Auto-generated
// rows carry the item index; item names may repeat, so hand-curated rows
// matched by label only bind when the name is unambiguous.
func matchLineItem(items []LineItem, rec DraftAllocation) uuid.NullUUID {
	if rec.ItemIndex.Valid {
		if i := rec.ItemIndex.Int; i >= 0 && i < len(items) {
			return uuid.NullUUID{UUID: items[i].ID, Valid: true}
		}
		return uuid.NullUUID{}
	}
	var match uuid.NullUUID
	for _, it := range items {
		if it.Name == rec.Label {
			if match.Valid {
				return uuid.NullUUID{}
			}
			match = uuid.NullUUID{UUID: it.ID, Valid: true}
		}
	}
	return match
}
