package profitshare

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// Calculate computes the period result for the given session. It is pure:
// no storage, no clock, deterministic for a given input.
//
// Cost-basis mode prices each item at its per-unit cost basis (session edits
// win over the stored value; a missing basis counts as zero and is flagged,
// not rejected) and nets the summed margins against operating costs.
// Aggregate-split mode ignores per-item costs and splits
// revenue − operating costs by the scheme percentages.
//
// Negative margins and a negative net are carried through unclamped so a
// losing period is visible in the preview instead of silently floored.
func Calculate(in Input) Result {
	res := Result{Mode: in.Mode, Items: make([]ItemResult, 0, len(in.Items))}

	for _, it := range in.Items {
		ir := ItemResult{
			ItemID:   it.ItemID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Revenue:  it.Revenue,
		}
		if edit, ok := in.CostBasisEdits[it.ItemID]; ok {
			ir.CostBasis = edit
		} else if it.CostBasis.Valid {
			ir.CostBasis = it.CostBasis.Decimal
		} else {
			ir.NeedsCostBasis = true
			res.NeedsCostBasis = append(res.NeedsCostBasis, it.ItemID)
		}
		ir.TotalCost = ir.CostBasis.Mul(it.Quantity)
		ir.Margin = ir.Revenue.Sub(ir.TotalCost)

		res.Items = append(res.Items, ir)
		res.Revenue = res.Revenue.Add(ir.Revenue)
		res.CostBasisTotal = res.CostBasisTotal.Add(ir.TotalCost)
		res.Margin = res.Margin.Add(ir.Margin)
	}
	for _, c := range in.Costs {
		res.OperatingCost = res.OperatingCost.Add(c.Amount)
	}

	switch in.Mode {
	case ModeAggregateSplit:
		res.Net = res.Revenue.Sub(res.OperatingCost)
		foundationPct := decimal.NewFromInt(in.Scheme.FoundationPct)
		cooperativePct := decimal.NewFromInt(in.Scheme.CooperativePct)
		res.FoundationShare = res.Net.Mul(foundationPct).Div(oneHundred).Round(2)
		res.CooperativeShare = res.Net.Mul(cooperativePct).Div(oneHundred).Round(2)
	default: // ModeCostBasis
		res.Net = res.Margin.Sub(res.OperatingCost)
		// the foundation recovers its cost basis; the cooperative keeps the net
		res.FoundationShare = res.CostBasisTotal
		res.CooperativeShare = res.Net
	}
	return res
}
