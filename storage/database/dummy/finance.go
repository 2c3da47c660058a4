package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/daruliman/pondok/core/finance"
)

type financeRepository struct {
	db *DB
}

var _ finance.Repository = (*financeRepository)(nil)      // interface compliance check
var _ finance.MappingProvider = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *DB) *financeRepository {
	return &financeRepository{db: db}
}

func (repo *financeRepository) CreateExpense(_ context.Context, record finance.ExpenseRecord) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	txn := record.Transaction
	repo.db.txns[txn.ID] = &txn
	for _, item := range record.Items {
		item := item
		repo.db.lineItems[item.ID] = &item
	}
	for _, alloc := range record.Allocations {
		alloc := alloc
		repo.db.allocations[alloc.ID] = &alloc
	}
	if record.LedgerKey != nil {
		repo.replaceLedgerLocked(*record.LedgerKey, record.Ledger)
	}
	return nil
}

func (repo *financeRepository) GetTransaction(_ context.Context, id uuid.UUID) (finance.Transaction, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if txn, ok := repo.db.txns[id]; ok {
		return *txn, nil
	}
	return finance.Transaction{}, finance.ErrTransactionNotFound
}

func (repo *financeRepository) FilterTransactions(_ context.Context, filter finance.TransactionFilter) ([]finance.Transaction, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	txns := make([]finance.Transaction, 0, len(repo.db.txns))
	for _, txn := range repo.db.txns {
		if filter.Direction != "" && txn.Direction != filter.Direction {
			continue
		}
		if filter.Category != "" && txn.Category != filter.Category {
			continue
		}
		if !filter.DateFrom.IsZero() && txn.Date.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && txn.Date.After(filter.DateTo) {
			continue
		}
		txns = append(txns, *txn)
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].Date.After(txns[j].Date) })
	return txns, nil
}

func (repo *financeRepository) LineItems(_ context.Context, transactionID uuid.UUID) ([]finance.LineItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]finance.LineItem, 0)
	for _, item := range repo.db.lineItems {
		if item.TransactionID == transactionID {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (repo *financeRepository) ReplaceAllocations(_ context.Context, transactionID uuid.UUID, source finance.RecordSource, records []finance.AllocationRecord) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, alloc := range repo.db.allocations {
		if alloc.TransactionID.Valid && alloc.TransactionID.UUID == transactionID && alloc.Source == source {
			delete(repo.db.allocations, id)
		}
	}
	for _, rec := range records {
		rec := rec
		repo.db.allocations[rec.ID] = &rec
	}
	return nil
}

func (repo *financeRepository) FilterAllocations(_ context.Context, filter finance.AllocationFilter) ([]finance.AllocationRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	recs := make([]finance.AllocationRecord, 0)
	for _, alloc := range repo.db.allocations {
		if filter.TransactionID.Valid &&
			(!alloc.TransactionID.Valid || alloc.TransactionID.UUID != filter.TransactionID.UUID) {
			continue
		}
		if filter.StudentID.Valid && alloc.StudentID != filter.StudentID.UUID {
			continue
		}
		if filter.Source != "" && alloc.Source != filter.Source {
			continue
		}
		if filter.Period != "" && alloc.Period != filter.Period {
			continue
		}
		recs = append(recs, *alloc)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].StudentName < recs[j].StudentName })
	return recs, nil
}

func (repo *financeRepository) ReplaceLedgerEntries(_ context.Context, key finance.LedgerKey, entries []finance.LedgerEntry) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.replaceLedgerLocked(key, entries)
	return nil
}

func (repo *financeRepository) replaceLedgerLocked(key finance.LedgerKey, entries []finance.LedgerEntry) {
	for id, entry := range repo.db.ledger {
		if entry.TransactionID == key.TransactionID && entry.Pillar == key.Pillar && entry.Source == key.Source {
			delete(repo.db.ledger, id)
		}
	}
	for _, entry := range entries {
		entry := entry
		repo.db.ledger[entry.ID] = &entry
	}
}

func (repo *financeRepository) LedgerEntries(_ context.Context, key finance.LedgerKey) ([]finance.LedgerEntry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]finance.LedgerEntry, 0)
	for _, entry := range repo.db.ledger {
		if entry.TransactionID == key.TransactionID && entry.Pillar == key.Pillar && entry.Source == key.Source {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].StudentID.String() < entries[j].StudentID.String() })
	return entries, nil
}

func (repo *financeRepository) SubcategoryMapping(_ context.Context, subcategory string) (finance.CategoryMapping, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.mappings[mappingKey{scope: "subcategory", name: subcategory}]; ok {
		return *m, nil
	}
	return finance.CategoryMapping{}, finance.ErrMappingNotFound
}

func (repo *financeRepository) CategoryMapping(_ context.Context, category string) (finance.CategoryMapping, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if m, ok := repo.db.mappings[mappingKey{scope: "category", name: category}]; ok {
		return *m, nil
	}
	return finance.CategoryMapping{}, finance.ErrMappingNotFound
}
