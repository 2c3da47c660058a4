package profitshare

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func basis(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(v))
}

func testInput(mode string, items ...SoldItem) Input {
	return Input{
		PeriodStart: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Mode:        mode,
		Items:       items,
	}
}

func TestCalculate_costBasis(t *testing.T) {
	in := testInput(ModeCostBasis,
		SoldItem{ItemID: uuid.New(), Name: "Rice", Quantity: d(100), Revenue: d(500000), CostBasis: basis(3000)},
		SoldItem{ItemID: uuid.New(), Name: "Soap", Quantity: d(50), Revenue: d(250000), CostBasis: basis(4000)},
	)
	in.Costs = []OperatingCost{{Amount: d(150000)}}

	res := Calculate(in)

	// cost basis: 100×3000 + 50×4000 = 500000
	assert.True(t, res.Revenue.Equal(d(750000)), "revenue %s", res.Revenue)
	assert.True(t, res.CostBasisTotal.Equal(d(500000)), "cost basis %s", res.CostBasisTotal)
	assert.True(t, res.Margin.Equal(d(250000)), "margin %s", res.Margin)
	assert.True(t, res.Net.Equal(d(100000)), "net %s", res.Net)

	// the foundation recovers the cost basis, the cooperative keeps the net
	assert.True(t, res.FoundationShare.Equal(d(500000)))
	assert.True(t, res.CooperativeShare.Equal(d(100000)))
	assert.Empty(t, res.NeedsCostBasis)
}

func TestCalculate_missingCostBasisFlaggedNotRejected(t *testing.T) {
	withBasis := uuid.New()
	missing := uuid.New()
	in := testInput(ModeCostBasis,
		SoldItem{ItemID: withBasis, Name: "Rice", Quantity: d(10), Revenue: d(50000), CostBasis: basis(3000)},
		SoldItem{ItemID: missing, Name: "New Item", Quantity: d(5), Revenue: d(40000)},
	)

	res := Calculate(in)

	assert.Equal(t, []uuid.UUID{missing}, res.NeedsCostBasis)
	assert.True(t, res.Items[1].NeedsCostBasis)
	assert.True(t, res.Items[1].TotalCost.IsZero())
	// the missing basis counts as zero, so the item's full revenue is margin
	assert.True(t, res.Items[1].Margin.Equal(d(40000)))
	assert.True(t, res.CostBasisTotal.Equal(d(30000)))
}

func TestCalculate_costBasisEditsWinOverStored(t *testing.T) {
	itemID := uuid.New()
	in := testInput(ModeCostBasis,
		SoldItem{ItemID: itemID, Name: "Rice", Quantity: d(10), Revenue: d(50000), CostBasis: basis(3000)},
	)
	in.CostBasisEdits = map[uuid.UUID]decimal.Decimal{itemID: d(3500)}

	res := Calculate(in)

	assert.True(t, res.Items[0].CostBasis.Equal(d(3500)))
	assert.True(t, res.CostBasisTotal.Equal(d(35000)))
	assert.True(t, res.Margin.Equal(d(15000)))
	assert.Empty(t, res.NeedsCostBasis)
}

func TestCalculate_aggregateSplit(t *testing.T) {
	in := testInput(ModeAggregateSplit,
		SoldItem{ItemID: uuid.New(), Name: "Rice", Quantity: d(100), Revenue: d(600000), CostBasis: basis(3000)},
	)
	in.Costs = []OperatingCost{{Amount: d(100000)}}
	in.Scheme = Scheme{FoundationPct: 60, CooperativePct: 40}

	res := Calculate(in)

	// per-item costs are ignored in this mode
	assert.True(t, res.Net.Equal(d(500000)), "net %s", res.Net)
	assert.True(t, res.FoundationShare.Equal(d(300000)))
	assert.True(t, res.CooperativeShare.Equal(d(200000)))
}

func TestCalculate_negativeNetUnclamped(t *testing.T) {
	in := testInput(ModeCostBasis,
		SoldItem{ItemID: uuid.New(), Name: "Rice", Quantity: d(100), Revenue: d(200000), CostBasis: basis(3000)},
	)
	in.Costs = []OperatingCost{{Amount: d(50000)}}

	res := Calculate(in)

	assert.True(t, res.Margin.Equal(d(-100000)), "margin %s", res.Margin)
	assert.True(t, res.Net.Equal(d(-150000)), "net %s", res.Net)
	assert.True(t, res.CooperativeShare.Equal(d(-150000)))
}

func TestCalculate_emptyPeriod(t *testing.T) {
	res := Calculate(testInput(ModeCostBasis))

	assert.True(t, res.Revenue.IsZero())
	assert.True(t, res.Net.IsZero())
	assert.Empty(t, res.Items)
}
