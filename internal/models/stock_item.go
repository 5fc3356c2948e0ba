package models

import "github.com/shopspring/decimal"

// StockItem: one warehouse row per product per branch (quantities in kg)
type StockItem struct {
	ProductCode int `db:"product_code" json:"product_code"`
	Branch      int `db:"branch" json:"branch"`

	// Filled by the lookup join, never by the warehouse query
	Description    string `db:"-" json:"description"`
	Classification string `db:"-" json:"classification"`
	Unmatched      bool   `db:"-" json:"unmatched"`

	OnHandQty   decimal.Decimal `db:"on_hand_qty" json:"on_hand_qty"`
	ReservedQty decimal.Decimal `db:"reserved_qty" json:"reserved_qty"`
	BlockedQty  decimal.Decimal `db:"blocked_qty" json:"blocked_qty"`
	DamagedQty  decimal.Decimal `db:"damaged_qty" json:"damaged_qty"`
	UnitCost    decimal.Decimal `db:"unit_cost" json:"unit_cost"`

	SalesQtyCurrent decimal.Decimal `db:"sales_qty_current" json:"sales_qty_current"`
	SalesQtyM1      decimal.Decimal `db:"sales_qty_m1" json:"sales_qty_m1"`
	SalesQtyM2      decimal.Decimal `db:"sales_qty_m2" json:"sales_qty_m2"`
	SalesQtyM3      decimal.Decimal `db:"sales_qty_m3" json:"sales_qty_m3"`
}
