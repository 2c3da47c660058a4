package profitshare

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/daruliman/pondok/core"
)

var (
	ErrNoItemsSelected  = errors.New("no sold items selected for the period")
	ErrDecisionNotFound = errors.New("profit-share decision not found")
)

// Entry categories
const (
	EntryCategory            = "Profit Share"
	SubcategoryManagementFee = "Management Fee"
	SubcategoryCoopShare     = "Cooperative Share"
	SubcategoryFoundation    = "Foundation Share"
)

type (
	// Repository is the profit-share storage.
	Repository interface {
		// SoldItems aggregates cooperative sales per catalog item over the
		// period, with each item's current cost basis.
		SoldItems(ctx context.Context, from, to time.Time) ([]SoldItem, error)
		// OperatingCosts lists cooperative expense transactions in the period.
		OperatingCosts(ctx context.Context, from, to time.Time) ([]OperatingCost, error)
		// SaveDecision persists the decision, its financial entries and any
		// cost-basis overrides in a single unit of work.
		SaveDecision(ctx context.Context, dec Decision, entries []Entry, overrides []CostBasisOverride) error
		GetDecision(ctx context.Context, id uuid.UUID) (Decision, error)
		// FilterDecisions applies AND operation on available DecisionFilter fields.
		FilterDecisions(ctx context.Context, filter DecisionFilter) ([]Decision, error)
	}

	Service struct {
		repo    Repository
		mail    core.EmailService
		logger  core.Logger
		notify  string // foundation address for decision summaries
	}
)

func NewService(repo Repository, mail core.EmailService, logger core.Logger, notifyAddr string) *Service {
	return &Service{repo: repo, mail: mail, logger: logger, notify: notifyAddr}
}

// Session loads the period's sold items and operating costs into a fresh
// Input the operator can then edit.
func (svc *Service) Session(ctx context.Context, from, to time.Time, mode string, scheme Scheme) (Input, error) {
	items, err := svc.repo.SoldItems(ctx, from, to)
	if err != nil {
		return Input{}, errors.Wrap(err, "loading sold items")
	}
	costs, err := svc.repo.OperatingCosts(ctx, from, to)
	if err != nil {
		return Input{}, errors.Wrap(err, "loading operating costs")
	}
	return Input{
		PeriodStart:    from,
		PeriodEnd:      to,
		Mode:           mode,
		Items:          items,
		Costs:          costs,
		Scheme:         scheme,
		CostBasisEdits: make(map[uuid.UUID]decimal.Decimal),
	}, nil
}

// Preview validates the session shape and computes the result without
// writing anything.
func (svc *Service) Preview(ctx context.Context, in Input) (Result, error) {
	if err := svc.validate(in); err != nil {
		return Result{}, err
	}
	return Calculate(in), nil
}

// SaveDecision finalizes the session: recomputes the result, writes the
// decision row, the two financial entries and any pending cost-basis
// overrides in one storage transaction, then mails a summary to the
// foundation. A validation failure writes nothing.
func (svc *Service) SaveDecision(ctx context.Context, in Input) (Decision, error) {
	if err := svc.validate(in); err != nil {
		return Decision{}, err
	}

	res := Calculate(in)
	now := time.Now().UTC()
	dec := Decision{
		ID:               uuid.New(),
		PeriodStart:      in.PeriodStart,
		PeriodEnd:        in.PeriodEnd,
		Mode:             in.Mode,
		FoundationPct:    in.Scheme.FoundationPct,
		CooperativePct:   in.Scheme.CooperativePct,
		Revenue:          res.Revenue,
		CostBasisTotal:   res.CostBasisTotal,
		OperatingCost:    res.OperatingCost,
		Net:              res.Net,
		FoundationShare:  res.FoundationShare,
		CooperativeShare: res.CooperativeShare,
		Note:             nullString(in.Note),
		DecidedBy:        nullString(in.DecidedBy),
		Status:           StatusFinal,
		CreatedAt:        now,
	}

	entries := buildEntries(dec, res)
	overrides := make([]CostBasisOverride, 0, len(in.CostBasisEdits))
	for itemID, basis := range in.CostBasisEdits {
		overrides = append(overrides, CostBasisOverride{ItemID: itemID, CostBasis: basis})
	}

	if err := svc.repo.SaveDecision(ctx, dec, entries, overrides); err != nil {
		return Decision{}, errors.Wrap(err, "saving profit-share decision")
	}
	svc.logger.Info("profit-share decision saved", "decision="+dec.ID.String())

	svc.notifyFoundation(dec)
	return dec, nil
}

func (svc *Service) Decision(ctx context.Context, id uuid.UUID) (Decision, error) {
	return svc.repo.GetDecision(ctx, id)
}

func (svc *Service) Decisions(ctx context.Context, filter DecisionFilter) ([]Decision, error) {
	return svc.repo.FilterDecisions(ctx, filter)
}

func (svc *Service) validate(in Input) error {
	if err := core.Validate.Struct(in); err != nil {
		return err
	}
	if len(in.Items) == 0 {
		return core.NewValidationError(ErrNoItemsSelected,
			core.FieldError{Field: "items", Error: "select at least one sold item"},
		)
	}
	if in.Mode == ModeAggregateSplit {
		if err := in.Scheme.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// buildEntries derives the financial postings of a decision. A profitable
// period produces the cooperative's income entry and the liability owed to
// the foundation; a break-even or losing period produces a single liability
// for the full revenue, so the foundation is made whole first.
func buildEntries(dec Decision, res Result) []Entry {
	ref := "profit-share:" + dec.ID.String()
	date := dec.PeriodEnd

	if !res.Net.IsPositive() {
		return []Entry{{
			Direction:   "expense",
			Category:    EntryCategory,
			Subcategory: SubcategoryFoundation,
			Description: "Foundation settlement for losing period (full revenue)",
			Reference:   ref,
			Amount:      res.Revenue,
			Date:        date,
		}}
	}

	if dec.Mode == ModeAggregateSplit {
		return []Entry{
			{
				Direction:   "income",
				Category:    EntryCategory,
				Subcategory: SubcategoryCoopShare,
				Description: "Cooperative share of period net result",
				Reference:   ref,
				Amount:      res.CooperativeShare,
				Date:        date,
			},
			{
				Direction:   "expense",
				Category:    EntryCategory,
				Subcategory: SubcategoryFoundation,
				Description: "Foundation share of period net result",
				Reference:   ref,
				Amount:      res.FoundationShare,
				Date:        date,
			},
		}
	}

	return []Entry{
		{
			Direction:   "income",
			Category:    EntryCategory,
			Subcategory: SubcategoryManagementFee,
			Description: "Management fee (net margin over cost basis)",
			Reference:   ref,
			Amount:      res.Net,
			Date:        date,
		},
		{
			Direction:   "expense",
			Category:    EntryCategory,
			Subcategory: SubcategoryFoundation,
			Description: "Cost-basis settlement owed to the foundation",
			Reference:   ref,
			Amount:      res.CostBasisTotal,
			Date:        date,
		},
	}
}

func (svc *Service) notifyFoundation(dec Decision) {
	if svc.mail == nil || svc.notify == "" {
		return
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Address: svc.notify}},
		Subject: "Profit-share decision " + dec.PeriodStart.Format("2006-01-02") + " to " + dec.PeriodEnd.Format("2006-01-02"),
		BodyStr: "Mode: " + dec.Mode +
			"\nRevenue: " + dec.Revenue.StringFixed(2) +
			"\nOperating cost: " + dec.OperatingCost.StringFixed(2) +
			"\nNet: " + dec.Net.StringFixed(2) +
			"\nFoundation share: " + dec.FoundationShare.StringFixed(2) +
			"\nCooperative share: " + dec.CooperativeShare.StringFixed(2),
	}
	svc.mail.SendMessages(msg)
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
