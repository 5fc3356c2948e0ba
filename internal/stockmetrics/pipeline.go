package stockmetrics

import (
	"sort"

	"estoque-backend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	three   = decimal.NewFromInt(3)
)

// Options carries the knobs that differed between dashboard versions.
type Options struct {
	// SubtractDamaged also removes damaged stock from the available quantity.
	SubtractDamaged bool
}

// EnrichedItem is a joined stock row plus its derived columns.
type EnrichedItem struct {
	models.StockItem

	AvailableQty       decimal.Decimal `json:"available_qty"`
	InventoryValue     decimal.Decimal `json:"inventory_value"`
	SalesValueCurrent  decimal.Decimal `json:"sales_value_current"`
	SalesValueM1       decimal.Decimal `json:"sales_value_m1"`
	SalesValueM2       decimal.Decimal `json:"sales_value_m2"`
	SalesValueM3       decimal.Decimal `json:"sales_value_m3"`
	AvgMonthlySalesQty decimal.Decimal `json:"avg_monthly_sales_qty"`

	// Null when the trailing average is zero
	CoverageMonths decimal.NullDecimal `json:"coverage_months"`
	// Null when the total inventory value of the set is not positive
	PctOfTotalValue decimal.NullDecimal `json:"pct_of_total_value"`
}

// JoinReport counts how the name lookup matched.
type JoinReport struct {
	Total        int `json:"total"`
	Matched      int `json:"matched"`
	Unmatched    int `json:"unmatched"`
	Classified   int `json:"classified"`
	Unclassified int `json:"unclassified"`
}

// Join left-joins stock rows to the name and classification lookups on
// product code. Rows without a description are kept and flagged Unmatched;
// no row is ever dropped. The input slice is not modified.
func Join(stock []models.StockItem, names, classes map[int]string) ([]models.StockItem, JoinReport) {
	out := make([]models.StockItem, len(stock))
	rep := JoinReport{Total: len(stock)}

	for i, s := range stock {
		if desc, ok := names[s.ProductCode]; ok && desc != "" {
			s.Description = desc
			s.Unmatched = false
			rep.Matched++
		} else {
			s.Description = ""
			s.Unmatched = true
			rep.Unmatched++
		}

		if cls, ok := classes[s.ProductCode]; ok && cls != "" {
			s.Classification = cls
			rep.Classified++
		} else {
			s.Classification = ""
			rep.Unclassified++
		}
		out[i] = s
	}
	return out, rep
}

// ComputeAvailable is on hand minus reserved minus blocked (and damaged when
// configured). Negative results are returned as-is so anomalies stay visible.
func ComputeAvailable(s models.StockItem, opts Options) decimal.Decimal {
	avail := s.OnHandQty.Sub(s.ReservedQty).Sub(s.BlockedQty)
	if opts.SubtractDamaged {
		avail = avail.Sub(s.DamagedQty)
	}
	return avail
}

// Enrich derives every computed column. Percent-of-total is relative to the
// full slice passed in, so call it on the unfiltered set.
func Enrich(stock []models.StockItem, opts Options) []EnrichedItem {
	out := make([]EnrichedItem, len(stock))
	total := decimal.Zero

	for i, s := range stock {
		e := EnrichedItem{StockItem: s}
		e.AvailableQty = ComputeAvailable(s, opts)
		e.InventoryValue = s.OnHandQty.Mul(s.UnitCost)
		e.SalesValueCurrent = s.SalesQtyCurrent.Mul(s.UnitCost)
		e.SalesValueM1 = s.SalesQtyM1.Mul(s.UnitCost)
		e.SalesValueM2 = s.SalesQtyM2.Mul(s.UnitCost)
		e.SalesValueM3 = s.SalesQtyM3.Mul(s.UnitCost)
		e.AvgMonthlySalesQty = s.SalesQtyM1.Add(s.SalesQtyM2).Add(s.SalesQtyM3).Div(three)
		if e.AvgMonthlySalesQty.IsPositive() {
			e.CoverageMonths = decimal.NewNullDecimal(e.AvailableQty.Div(e.AvgMonthlySalesQty))
		}
		total = total.Add(e.InventoryValue)
		out[i] = e
	}

	if total.IsPositive() {
		for i := range out {
			out[i].PctOfTotalValue = decimal.NewNullDecimal(out[i].InventoryValue.Mul(hundred).Div(total))
		}
	}
	return out
}

// RankTopN returns the n largest items by col, descending. Ties keep their
// original order. n <= 0 or n > len(items) returns every item.
func RankTopN(items []EnrichedItem, col Column, n int) []EnrichedItem {
	sorted := sortedDesc(items, col)
	if n <= 0 || n > len(sorted) {
		return sorted
	}
	return sorted[:n]
}

func sortedDesc(items []EnrichedItem, col Column) []EnrichedItem {
	sorted := make([]EnrichedItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value(col).GreaterThan(sorted[j].Value(col))
	})
	return sorted
}

// KPIs are the top-of-page cards.
type KPIs struct {
	TotalItems           int             `json:"total_items"`
	UnmatchedItems       int             `json:"unmatched_items"`
	TotalSalesQtyCurrent decimal.Decimal `json:"total_sales_qty_current"`
	TotalAvailableQty    decimal.Decimal `json:"total_available_qty"`
	TotalOnHandQty       decimal.Decimal `json:"total_on_hand_qty"`
	TotalInventoryValue  decimal.Decimal `json:"total_inventory_value"`
	NegativeAvailable    int             `json:"negative_available"`
}

func Summarize(items []EnrichedItem) KPIs {
	k := KPIs{TotalItems: len(items)}
	for _, e := range items {
		if e.Unmatched {
			k.UnmatchedItems++
		}
		if e.AvailableQty.IsNegative() {
			k.NegativeAvailable++
		}
		k.TotalSalesQtyCurrent = k.TotalSalesQtyCurrent.Add(e.SalesQtyCurrent)
		k.TotalAvailableQty = k.TotalAvailableQty.Add(e.AvailableQty)
		k.TotalOnHandQty = k.TotalOnHandQty.Add(e.OnHandQty)
		k.TotalInventoryValue = k.TotalInventoryValue.Add(e.InventoryValue)
	}
	return k
}
