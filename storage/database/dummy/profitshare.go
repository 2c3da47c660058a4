package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/daruliman/pondok/core/finance"
	"github.com/daruliman/pondok/core/profitshare"
)

type profitShareRepository struct {
	db *DB
}

var _ profitshare.Repository = (*profitShareRepository)(nil) // interface compliance check

func NewProfitShareRepository(db *DB) profitshare.Repository {
	return &profitShareRepository{db: db}
}

func (repo *profitShareRepository) SoldItems(_ context.Context, from, to time.Time) ([]profitshare.SoldItem, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byItem := make(map[uuid.UUID]*profitshare.SoldItem)
	for _, s := range repo.db.sales {
		if s.date.Before(from) || s.date.After(to) {
			continue
		}
		agg, ok := byItem[s.itemID]
		if !ok {
			agg = &profitshare.SoldItem{ItemID: s.itemID}
			if item, found := repo.db.items[s.itemID]; found {
				agg.Name = item.Name
				agg.CostBasis = item.CostBasis
			}
			byItem[s.itemID] = agg
		}
		agg.Quantity = agg.Quantity.Add(s.quantity)
		agg.Revenue = agg.Revenue.Add(s.revenue)
	}

	items := make([]profitshare.SoldItem, 0, len(byItem))
	for _, agg := range byItem {
		items = append(items, *agg)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (repo *profitShareRepository) OperatingCosts(_ context.Context, from, to time.Time) ([]profitshare.OperatingCost, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	costs := make([]profitshare.OperatingCost, 0)
	for _, txn := range repo.db.txns {
		if txn.Direction != finance.DirectionExpense || txn.Date.Before(from) || txn.Date.After(to) {
			continue
		}
		costs = append(costs, profitshare.OperatingCost{
			TransactionID: txn.ID,
			Date:          txn.Date,
			Category:      txn.Category,
			Description:   txn.Description,
			Amount:        txn.Amount,
		})
	}
	sort.Slice(costs, func(i, j int) bool { return costs[i].Date.Before(costs[j].Date) })
	return costs, nil
}

func (repo *profitShareRepository) SaveDecision(_ context.Context, dec profitshare.Decision, entries []profitshare.Entry, overrides []profitshare.CostBasisOverride) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.decisions[dec.ID] = &dec
	repo.db.entries[dec.ID] = entries
	for _, ov := range overrides {
		if item, ok := repo.db.items[ov.ItemID]; ok {
			item.CostBasis = decimal.NewNullDecimal(ov.CostBasis)
			item.UpdatedBy = null.NewString(dec.DecidedBy.String, dec.DecidedBy.Valid)
			item.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (repo *profitShareRepository) GetDecision(_ context.Context, id uuid.UUID) (profitshare.Decision, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if dec, ok := repo.db.decisions[id]; ok {
		return *dec, nil
	}
	return profitshare.Decision{}, profitshare.ErrDecisionNotFound
}

func (repo *profitShareRepository) FilterDecisions(_ context.Context, filter profitshare.DecisionFilter) ([]profitshare.Decision, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	decs := make([]profitshare.Decision, 0, len(repo.db.decisions))
	for _, dec := range repo.db.decisions {
		if filter.Mode != "" && dec.Mode != filter.Mode {
			continue
		}
		if !filter.DateFrom.IsZero() && dec.PeriodEnd.Before(filter.DateFrom) {
			continue
		}
		if !filter.DateTo.IsZero() && dec.PeriodStart.After(filter.DateTo) {
			continue
		}
		decs = append(decs, *dec)
	}
	sort.Slice(decs, func(i, j int) bool { return decs[i].CreatedAt.After(decs[j].CreatedAt) })
	return decs, nil
}
