package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/daruliman/pondok/core/finance"
	"github.com/daruliman/pondok/core/profitshare"
)

type profitShareRepository struct {
	db *sqlx.DB
}

var _ profitshare.Repository = (*profitShareRepository)(nil) // interface compliance check

func NewProfitShareRepository(db *sqlx.DB) profitshare.Repository {
	return &profitShareRepository{db: db}
}

func (repo *profitShareRepository) SoldItems(ctx context.Context, from, to time.Time) ([]profitshare.SoldItem, error) {
	items := make([]profitshare.SoldItem, 0)
	err := repo.db.SelectContext(ctx, &items, `
		SELECT s.item_id,
		       i.name,
		       SUM(s.quantity) AS quantity,
		       SUM(s.revenue)  AS revenue,
		       i.cost_basis
		FROM sale s
		JOIN catalog_item i ON i.id = s.item_id
		WHERE s.date >= $1 AND s.date <= $2
		GROUP BY s.item_id, i.name, i.cost_basis
		ORDER BY i.name`,
		from, to)
	return items, err
}

func (repo *profitShareRepository) OperatingCosts(ctx context.Context, from, to time.Time) ([]profitshare.OperatingCost, error) {
	costs := make([]profitshare.OperatingCost, 0)
	err := repo.db.SelectContext(ctx, &costs, `
		SELECT t.id AS transaction_id, t.date, t.category, t.description, t.amount
		FROM transaction t
		JOIN cash_account ca ON ca.id = t.cash_account_id
		WHERE ca.entity = 'cooperative' AND t.direction = $1 AND t.date >= $2 AND t.date <= $3
		ORDER BY t.date`,
		finance.DirectionExpense, from, to)
	return costs, err
}

const insertDecisionQ = `
INSERT INTO profit_share_decision (id, period_start, period_end, mode, foundation_pct, cooperative_pct,
                                   revenue, cost_basis_total, operating_cost, net,
                                   foundation_share, cooperative_share, note, decided_by, status, created_at)
VALUES (:id, :period_start, :period_end, :mode, :foundation_pct, :cooperative_pct,
        :revenue, :cost_basis_total, :operating_cost, :net,
        :foundation_share, :cooperative_share, :note, :decided_by, :status, :created_at)`

func (repo *profitShareRepository) SaveDecision(ctx context.Context, dec profitshare.Decision, entries []profitshare.Entry, overrides []profitshare.CostBasisOverride) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.NamedExecContext(ctx, insertDecisionQ, dec); err != nil {
		return errors.Wrap(err, "inserting decision")
	}
	for _, entry := range entries {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO profit_share_entry (decision_id, direction, category, subcategory, description, reference, amount, date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			dec.ID, entry.Direction, entry.Category, entry.Subcategory, entry.Description, entry.Reference, entry.Amount, entry.Date); err != nil {
			return errors.Wrap(err, "inserting decision entry")
		}
	}
	for _, ov := range overrides {
		if _, err = tx.ExecContext(ctx, `
			UPDATE catalog_item SET cost_basis = $2, updated_by = $3, updated_at = now()
			WHERE id = $1`,
			ov.ItemID, ov.CostBasis, dec.DecidedBy); err != nil {
			return errors.Wrap(err, "applying cost-basis override")
		}
	}
	return errors.Wrap(tx.Commit(), "committing decision")
}

func (repo *profitShareRepository) GetDecision(ctx context.Context, id uuid.UUID) (profitshare.Decision, error) {
	var dec profitshare.Decision
	err := repo.db.GetContext(ctx, &dec, `SELECT * FROM profit_share_decision WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return profitshare.Decision{}, profitshare.ErrDecisionNotFound
	}
	return dec, err
}

func (repo *profitShareRepository) FilterDecisions(ctx context.Context, filter profitshare.DecisionFilter) ([]profitshare.Decision, error) {
	q := `SELECT * FROM profit_share_decision WHERE 1=1`
	args := make([]interface{}, 0, 3)
	if filter.Mode != "" {
		args = append(args, filter.Mode)
		q += ` AND mode = $` + itoa(len(args))
	}
	if !filter.DateFrom.IsZero() {
		args = append(args, filter.DateFrom)
		q += ` AND period_end >= $` + itoa(len(args))
	}
	if !filter.DateTo.IsZero() {
		args = append(args, filter.DateTo)
		q += ` AND period_start <= $` + itoa(len(args))
	}
	q += ` ORDER BY created_at DESC`

	decs := make([]profitshare.Decision, 0)
	err := repo.db.SelectContext(ctx, &decs, q, args...)
	return decs, err
}
