package stockmetrics

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUndefinedTotal means no row has a positive value, so a percentage of
// the total has no meaning.
var ErrUndefinedTotal = errors.New("grand total is not positive; percentage undefined")

type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

var (
	limitA = decimal.NewFromInt(80)
	limitB = decimal.NewFromInt(95)
)

// ParetoPoint is one item on the cumulative curve.
type ParetoPoint struct {
	ProductCode   int             `json:"product_code"`
	Branch        int             `json:"branch"`
	Description   string          `json:"description"`
	Value         decimal.Decimal `json:"value"`
	Cumulative    decimal.Decimal `json:"cumulative"`
	Pct           decimal.Decimal `json:"pct"`
	CumulativePct decimal.Decimal `json:"cumulative_pct"`
	Class         ABCClass        `json:"class"`
}

type ParetoCurve struct {
	Column Column `json:"column"`
	// Sum of the positive values, the 100% mark of the curve
	GrandTotal decimal.Decimal `json:"grand_total"`
	Points     []ParetoPoint   `json:"points"`
	// Rows with a zero or negative value, left off the curve
	Excluded int `json:"excluded"`
}

// Pareto sorts items descending by col and accumulates each positive value's
// share of the positive total. Rows at or below zero are only counted in
// Excluded, so the series never decreases and the last point is exactly 100.
// Classes: A up to 80%, B up to 95%, C after.
func Pareto(items []EnrichedItem, col Column) (*ParetoCurve, error) {
	sorted := sortedDesc(items, col)

	curve := &ParetoCurve{Column: col, GrandTotal: decimal.Zero}
	n := 0
	for _, e := range sorted {
		v := e.Value(col)
		if !v.IsPositive() {
			curve.Excluded++
			continue
		}
		curve.GrandTotal = curve.GrandTotal.Add(v)
		n++
	}
	if n == 0 {
		return nil, ErrUndefinedTotal
	}

	total := curve.GrandTotal
	curve.Points = make([]ParetoPoint, 0, n)
	running := decimal.Zero
	for _, e := range sorted[:n] {
		v := e.Value(col)
		running = running.Add(v)
		cumPct := running.Mul(hundred).Div(total)

		curve.Points = append(curve.Points, ParetoPoint{
			ProductCode:   e.ProductCode,
			Branch:        e.Branch,
			Description:   DisplayDescription(e),
			Value:         v,
			Cumulative:    running,
			Pct:           v.Mul(hundred).Div(total),
			CumulativePct: cumPct,
			Class:         classify(cumPct),
		})
	}
	// division rounding can leave the tail a hair off 100
	curve.Points[n-1].CumulativePct = hundred
	curve.Points[n-1].Class = classify(hundred)
	return curve, nil
}

func classify(cumPct decimal.Decimal) ABCClass {
	switch {
	case cumPct.LessThanOrEqual(limitA):
		return ClassA
	case cumPct.LessThanOrEqual(limitB):
		return ClassB
	}
	return ClassC
}

// ItemKey identifies a stock row: the same product appears once per branch.
type ItemKey struct {
	ProductCode int
	Branch      int
}

func KeyOf(e EnrichedItem) ItemKey {
	return ItemKey{ProductCode: e.ProductCode, Branch: e.Branch}
}

// ClassOf maps each row on the curve to its ABC class.
func (c *ParetoCurve) ClassOf() map[ItemKey]ABCClass {
	m := make(map[ItemKey]ABCClass, len(c.Points))
	for _, p := range c.Points {
		m[ItemKey{ProductCode: p.ProductCode, Branch: p.Branch}] = p.Class
	}
	return m
}
