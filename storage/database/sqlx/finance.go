package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/daruliman/pondok/core/finance"
)

type financeRepository struct {
	db *sqlx.DB
}

var _ finance.Repository = (*financeRepository)(nil) // interface compliance check

func NewFinanceRepository(db *sqlx.DB) finance.Repository {
	return &financeRepository{db: db}
}

const insertTransactionQ = `
INSERT INTO transaction (id, date, direction, category, subcategory, amount, cash_account_id,
                         counterparty, description, allocation_kind, is_real_expense, status,
                         created_at, updated_at)
VALUES (:id, :date, :direction, :category, :subcategory, :amount, :cash_account_id,
        :counterparty, :description, :allocation_kind, :is_real_expense, :status,
        :created_at, :updated_at)`

const insertLineItemQ = `
INSERT INTO line_item (id, transaction_id, name, quantity, unit, unit_price, total)
VALUES (:id, :transaction_id, :name, :quantity, :unit, :unit_price, :total)`

const insertAllocationQ = `
INSERT INTO allocation_record (id, source, transaction_id, line_item_id, student_id, student_name,
                               student_code, period, amount, percent, label, pillar, note, created_at)
VALUES (:id, :source, :transaction_id, :line_item_id, :student_id, :student_name,
        :student_code, :period, :amount, :percent, :label, :pillar, :note, :created_at)`

const insertLedgerEntryQ = `
INSERT INTO ledger_entry (id, student_id, period, pillar, value, source, transaction_id, created_at)
VALUES (:id, :student_id, :period, :pillar, :value, :source, :transaction_id, :created_at)`

const deleteLedgerBatchQ = `
DELETE FROM ledger_entry WHERE transaction_id = $1 AND pillar = $2 AND source = $3`

func (repo *financeRepository) CreateExpense(ctx context.Context, record finance.ExpenseRecord) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.NamedExecContext(ctx, insertTransactionQ, record.Transaction); err != nil {
		return errors.Wrap(err, "inserting transaction")
	}
	for _, item := range record.Items {
		if _, err = tx.NamedExecContext(ctx, insertLineItemQ, item); err != nil {
			return errors.Wrap(err, "inserting line item")
		}
	}
	for _, alloc := range record.Allocations {
		if _, err = tx.NamedExecContext(ctx, insertAllocationQ, alloc); err != nil {
			return errors.Wrap(err, "inserting allocation record")
		}
	}
	if record.LedgerKey != nil {
		key := *record.LedgerKey
		if _, err = tx.ExecContext(ctx, deleteLedgerBatchQ, key.TransactionID, key.Pillar, key.Source); err != nil {
			return errors.Wrap(err, "deleting ledger batch")
		}
		for _, entry := range record.Ledger {
			if _, err = tx.NamedExecContext(ctx, insertLedgerEntryQ, entry); err != nil {
				return errors.Wrap(err, "inserting ledger entry")
			}
		}
	}
	return errors.Wrap(tx.Commit(), "committing expense")
}

func (repo *financeRepository) GetTransaction(ctx context.Context, id uuid.UUID) (finance.Transaction, error) {
	var txn finance.Transaction
	err := repo.db.GetContext(ctx, &txn, `SELECT * FROM transaction WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return finance.Transaction{}, finance.ErrTransactionNotFound
	}
	return txn, err
}

func (repo *financeRepository) FilterTransactions(ctx context.Context, filter finance.TransactionFilter) ([]finance.Transaction, error) {
	q := `SELECT * FROM transaction WHERE 1=1`
	args := make([]interface{}, 0, 4)
	if filter.Direction != "" {
		args = append(args, filter.Direction)
		q += ` AND direction = $` + itoa(len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		q += ` AND category = $` + itoa(len(args))
	}
	if !filter.DateFrom.IsZero() {
		args = append(args, filter.DateFrom)
		q += ` AND date >= $` + itoa(len(args))
	}
	if !filter.DateTo.IsZero() {
		args = append(args, filter.DateTo)
		q += ` AND date <= $` + itoa(len(args))
	}
	q += ` ORDER BY date DESC, created_at DESC`

	txns := make([]finance.Transaction, 0)
	err := repo.db.SelectContext(ctx, &txns, q, args...)
	return txns, err
}

func (repo *financeRepository) LineItems(ctx context.Context, transactionID uuid.UUID) ([]finance.LineItem, error) {
	items := make([]finance.LineItem, 0)
	err := repo.db.SelectContext(ctx, &items,
		`SELECT * FROM line_item WHERE transaction_id = $1 ORDER BY name`, transactionID)
	return items, err
}

func (repo *financeRepository) ReplaceAllocations(ctx context.Context, transactionID uuid.UUID, source finance.RecordSource, records []finance.AllocationRecord) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM allocation_record WHERE transaction_id = $1 AND source = $2`,
		transactionID, source); err != nil {
		return errors.Wrap(err, "deleting allocation records")
	}
	for _, rec := range records {
		if _, err = tx.NamedExecContext(ctx, insertAllocationQ, rec); err != nil {
			return errors.Wrap(err, "inserting allocation record")
		}
	}
	return errors.Wrap(tx.Commit(), "committing allocation replace")
}

func (repo *financeRepository) FilterAllocations(ctx context.Context, filter finance.AllocationFilter) ([]finance.AllocationRecord, error) {
	q := `SELECT * FROM allocation_record WHERE 1=1`
	args := make([]interface{}, 0, 4)
	if filter.TransactionID.Valid {
		args = append(args, filter.TransactionID.UUID)
		q += ` AND transaction_id = $` + itoa(len(args))
	}
	if filter.StudentID.Valid {
		args = append(args, filter.StudentID.UUID)
		q += ` AND student_id = $` + itoa(len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		q += ` AND source = $` + itoa(len(args))
	}
	if filter.Period != "" {
		args = append(args, filter.Period)
		q += ` AND period = $` + itoa(len(args))
	}
	q += ` ORDER BY created_at, student_name`

	recs := make([]finance.AllocationRecord, 0)
	err := repo.db.SelectContext(ctx, &recs, q, args...)
	return recs, err
}

func (repo *financeRepository) ReplaceLedgerEntries(ctx context.Context, key finance.LedgerKey, entries []finance.LedgerEntry) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, deleteLedgerBatchQ, key.TransactionID, key.Pillar, key.Source); err != nil {
		return errors.Wrap(err, "deleting ledger batch")
	}
	for _, entry := range entries {
		if _, err = tx.NamedExecContext(ctx, insertLedgerEntryQ, entry); err != nil {
			return errors.Wrap(err, "inserting ledger entry")
		}
	}
	return errors.Wrap(tx.Commit(), "committing ledger replace")
}

func (repo *financeRepository) LedgerEntries(ctx context.Context, key finance.LedgerKey) ([]finance.LedgerEntry, error) {
	entries := make([]finance.LedgerEntry, 0)
	err := repo.db.SelectContext(ctx, &entries,
		`SELECT * FROM ledger_entry WHERE transaction_id = $1 AND pillar = $2 AND source = $3 ORDER BY created_at`,
		key.TransactionID, key.Pillar, key.Source)
	return entries, err
}
