package stockmetrics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnknownColumn = errors.New("unknown column")

// Column names a numeric column of EnrichedItem. These are the internal
// computation names; display labels live in DisplayLabels.
type Column string

const (
	ColOnHandQty          Column = "on_hand_qty"
	ColReservedQty        Column = "reserved_qty"
	ColBlockedQty         Column = "blocked_qty"
	ColDamagedQty         Column = "damaged_qty"
	ColAvailableQty       Column = "available_qty"
	ColUnitCost           Column = "unit_cost"
	ColInventoryValue     Column = "inventory_value"
	ColSalesQtyCurrent    Column = "sales_qty_current"
	ColSalesQtyM1         Column = "sales_qty_m1"
	ColSalesQtyM2         Column = "sales_qty_m2"
	ColSalesQtyM3         Column = "sales_qty_m3"
	ColSalesValueCurrent  Column = "sales_value_current"
	ColSalesValueM1       Column = "sales_value_m1"
	ColSalesValueM2       Column = "sales_value_m2"
	ColSalesValueM3       Column = "sales_value_m3"
	ColAvgMonthlySalesQty Column = "avg_monthly_sales_qty"
)

var numericColumns = []Column{
	ColOnHandQty, ColReservedQty, ColBlockedQty, ColDamagedQty, ColAvailableQty,
	ColUnitCost, ColInventoryValue,
	ColSalesQtyCurrent, ColSalesQtyM1, ColSalesQtyM2, ColSalesQtyM3,
	ColSalesValueCurrent, ColSalesValueM1, ColSalesValueM2, ColSalesValueM3,
	ColAvgMonthlySalesQty,
}

func Columns() []Column {
	out := make([]Column, len(numericColumns))
	copy(out, numericColumns)
	return out
}

func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range numericColumns {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownColumn, s)
}

// Value returns the column value for an item. Unknown columns read as zero;
// callers validate with ParseColumn first.
func (e EnrichedItem) Value(col Column) decimal.Decimal {
	switch col {
	case ColOnHandQty:
		return e.OnHandQty
	case ColReservedQty:
		return e.ReservedQty
	case ColBlockedQty:
		return e.BlockedQty
	case ColDamagedQty:
		return e.DamagedQty
	case ColAvailableQty:
		return e.AvailableQty
	case ColUnitCost:
		return e.UnitCost
	case ColInventoryValue:
		return e.InventoryValue
	case ColSalesQtyCurrent:
		return e.SalesQtyCurrent
	case ColSalesQtyM1:
		return e.SalesQtyM1
	case ColSalesQtyM2:
		return e.SalesQtyM2
	case ColSalesQtyM3:
		return e.SalesQtyM3
	case ColSalesValueCurrent:
		return e.SalesValueCurrent
	case ColSalesValueM1:
		return e.SalesValueM1
	case ColSalesValueM2:
		return e.SalesValueM2
	case ColSalesValueM3:
		return e.SalesValueM3
	case ColAvgMonthlySalesQty:
		return e.AvgMonthlySalesQty
	}
	return decimal.Zero
}

// Category names a grouping key for AggregateByCategory.
type Category string

const (
	CategoryClassification Category = "classification"
	CategoryBranch         Category = "branch"
	CategoryMatched        Category = "matched"
	CategoryABC            Category = "abc"
)

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryClassification, CategoryBranch, CategoryMatched, CategoryABC:
		return c, nil
	}
	return "", fmt.Errorf("%w: category %q", ErrUnknownColumn, s)
}

// DisplayLabels maps computation columns to the labels shown on the dashboard.
var DisplayLabels = map[Column]string{
	ColOnHandQty:          "Estoque Total",
	ColReservedQty:        "Reservado",
	ColBlockedQty:         "Bloqueado",
	ColDamagedQty:         "Avariado",
	ColAvailableQty:       "Estoque Disponível",
	ColUnitCost:           "Custo Unitário",
	ColInventoryValue:     "Valor em Estoque",
	ColSalesQtyCurrent:    "Venda Mês",
	ColSalesQtyM1:         "Venda M-1",
	ColSalesQtyM2:         "Venda M-2",
	ColSalesQtyM3:         "Venda M-3",
	ColSalesValueCurrent:  "Venda Mês (R$)",
	ColSalesValueM1:       "Venda M-1 (R$)",
	ColSalesValueM2:       "Venda M-2 (R$)",
	ColSalesValueM3:       "Venda M-3 (R$)",
	ColAvgMonthlySalesQty: "Média Venda 3M",
}

const (
	LabelProductCode    = "Código"
	LabelDescription    = "Descrição"
	LabelClassification = "Classificação"
	LabelBranch         = "Filial"
	UnmatchedLabel      = "(sem descrição)"
	UnclassifiedLabel   = "SEM CLASSIFICAÇÃO"
)

func Label(col Column) string {
	if l, ok := DisplayLabels[col]; ok {
		return l
	}
	return string(col)
}

// DisplayDescription is the presentation-side placeholder for unmatched rows.
func DisplayDescription(e EnrichedItem) string {
	if e.Unmatched || e.Description == "" {
		return UnmatchedLabel
	}
	return e.Description
}
