package dummydb

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/daruliman/pondok/core/catalog"
	"github.com/daruliman/pondok/core/finance"
	"github.com/daruliman/pondok/core/profitshare"
	"github.com/daruliman/pondok/core/student"
)

type (
	// DB is an in-memory implementation of every repository, used by tests.
	DB struct {
		mu sync.RWMutex

		students    map[uuid.UUID]*student.Student
		items       map[uuid.UUID]*catalog.Item
		txns        map[uuid.UUID]*finance.Transaction
		lineItems   map[uuid.UUID]*finance.LineItem
		allocations map[uuid.UUID]*finance.AllocationRecord
		ledger      map[uuid.UUID]*finance.LedgerEntry
		mappings    map[mappingKey]*finance.CategoryMapping
		sales       []sale
		decisions   map[uuid.UUID]*profitshare.Decision
		entries     map[uuid.UUID][]profitshare.Entry
	}

	mappingKey struct {
		scope string // category | subcategory
		name  string
	}

	sale struct {
		itemID   uuid.UUID
		date     time.Time
		quantity decimal.Decimal
		revenue  decimal.Decimal
	}
)

func Open() (*DB, error) {
	db := &DB{
		students:    make(map[uuid.UUID]*student.Student),
		items:       make(map[uuid.UUID]*catalog.Item),
		txns:        make(map[uuid.UUID]*finance.Transaction),
		lineItems:   make(map[uuid.UUID]*finance.LineItem),
		allocations: make(map[uuid.UUID]*finance.AllocationRecord),
		ledger:      make(map[uuid.UUID]*finance.LedgerEntry),
		mappings:    make(map[mappingKey]*finance.CategoryMapping),
		decisions:   make(map[uuid.UUID]*profitshare.Decision),
		entries:     make(map[uuid.UUID][]profitshare.Entry),
	}
	return db, nil
}

// --- test seed helpers ---

func (db *DB) AddStudent(s student.Student) student.Student {
	db.mu.Lock()
	defer db.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	db.students[s.ID] = &s
	return s
}

func (db *DB) AddItem(item catalog.Item) catalog.Item {
	db.mu.Lock()
	defer db.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	db.items[item.ID] = &item
	return item
}

func (db *DB) AddSale(itemID uuid.UUID, date time.Time, quantity, revenue decimal.Decimal) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.sales = append(db.sales, sale{itemID: itemID, date: date, quantity: quantity, revenue: revenue})
}

func (db *DB) AddTransaction(txn finance.Transaction) finance.Transaction {
	db.mu.Lock()
	defer db.mu.Unlock()

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	db.txns[txn.ID] = &txn
	return txn
}

func (db *DB) SetCategoryMapping(category string, m finance.CategoryMapping) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.mappings[mappingKey{scope: "category", name: category}] = &m
}

func (db *DB) SetSubcategoryMapping(subcategory string, m finance.CategoryMapping) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.mappings[mappingKey{scope: "subcategory", name: subcategory}] = &m
}

// DecisionEntries returns the financial postings saved with a decision.
func (db *DB) DecisionEntries(decisionID uuid.UUID) []profitshare.Entry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.entries[decisionID]
}
