package dashboard

import (
	"errors"
	"sort"

	"estoque-backend/internal/audit"
	"estoque-backend/internal/auth"
	"estoque-backend/internal/models"
	"estoque-backend/internal/stockcache"
	"estoque-backend/internal/stockmetrics"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const (
	defaultTopN    = 15
	maxTableLimit  = 5000
	defaultColumn  = stockmetrics.ColSalesQtyCurrent
	statusOK       = "ok"
	statusNoData   = "no_data"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// loadSnapshot answers 200 no_data itself when the cache has nothing; the
// caller returns early when ok is false.
func loadSnapshot(c *fiber.Ctx, cache *stockcache.Cache) (*stockcache.Snapshot, bool, error) {
	s, err := cache.Get(c.UserContext())
	if err != nil {
		if errors.Is(err, stockcache.ErrNoData) {
			return nil, false, c.JSON(fiber.Map{
				"status": statusNoData,
				"reason": err.Error(),
			})
		}
		return nil, false, err
	}
	return s, true, nil
}

func envelope(s *stockcache.Snapshot, data fiber.Map) fiber.Map {
	data["status"] = statusOK
	data["fetched_at"] = s.FetchedAt.Format(dateTimeLayout)
	data["stale"] = s.Stale
	if s.Warning != "" {
		data["warning"] = s.Warning
	}
	return data
}

func columnQuery(c *fiber.Ctx, key string) (stockmetrics.Column, error) {
	v := c.Query(key)
	if v == "" {
		return defaultColumn, nil
	}
	col, err := stockmetrics.ParseColumn(v)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "Coluna desconhecida: "+v)
	}
	return col, nil
}

type ItemRow struct {
	Rank           int                 `json:"rank,omitempty"`
	ProductCode    int                 `json:"product_code"`
	Branch         int                 `json:"branch"`
	Description    string              `json:"description"`
	Classification string              `json:"classification"`
	Unmatched      bool                `json:"unmatched"`
	Value          *decimal.Decimal    `json:"value,omitempty"`
	AvailableQty   decimal.Decimal     `json:"available_qty"`
	OnHandQty      decimal.Decimal     `json:"on_hand_qty"`
	InventoryValue decimal.Decimal     `json:"inventory_value"`
	SalesQty       decimal.Decimal     `json:"sales_qty_current"`
	AvgSalesQty    decimal.Decimal     `json:"avg_monthly_sales_qty"`
	CoverageMonths decimal.NullDecimal `json:"coverage_months"`
	PctOfTotal     decimal.NullDecimal `json:"pct_of_total_value"`
}

func toRow(e stockmetrics.EnrichedItem) ItemRow {
	cls := e.Classification
	if cls == "" {
		cls = stockmetrics.UnclassifiedLabel
	}
	return ItemRow{
		ProductCode:    e.ProductCode,
		Branch:         e.Branch,
		Description:    stockmetrics.DisplayDescription(e),
		Classification: cls,
		Unmatched:      e.Unmatched,
		AvailableQty:   e.AvailableQty,
		OnHandQty:      e.OnHandQty,
		InventoryValue: e.InventoryValue,
		SalesQty:       e.SalesQtyCurrent,
		AvgSalesQty:    e.AvgMonthlySalesQty,
		CoverageMonths: e.CoverageMonths,
		PctOfTotal:     e.PctOfTotalValue,
	}
}

// GET /api/dashboard/kpis
func KPIsHandler(cache *stockcache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, ok, err := loadSnapshot(c, cache)
		if !ok {
			return err
		}
		return c.JSON(envelope(s, fiber.Map{
			"kpis": stockmetrics.Summarize(s.Items),
			"join": s.Join,
		}))
	}
}

// GET /api/dashboard/top?column=sales_qty_current&n=15
func TopHandler(cache *stockcache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		col, err := columnQuery(c, "column")
		if err != nil {
			return err
		}
		n := c.QueryInt("n", defaultTopN)

		s, ok, err := loadSnapshot(c, cache)
		if !ok {
			return err
		}

		top := stockmetrics.RankTopN(s.Items, col, n)
		rows := make([]ItemRow, 0, len(top))
		for i, e := range top {
			row := toRow(e)
			row.Rank = i + 1
			v := e.Value(col)
			row.Value = &v
			rows = append(rows, row)
		}
		return c.JSON(envelope(s, fiber.Map{
			"column": col,
			"label":  stockmetrics.Label(col),
			"items":  rows,
		}))
	}
}

// GET /api/dashboard/pareto?column=sales_qty_current
func ParetoHandler(cache *stockcache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		col, err := columnQuery(c, "column")
		if err != nil {
			return err
		}

		s, ok, err := loadSnapshot(c, cache)
		if !ok {
			return err
		}

		curve, err := stockmetrics.Pareto(s.Items, col)
		if errors.Is(err, stockmetrics.ErrUndefinedTotal) {
			resp := envelope(s, fiber.Map{"reason": err.Error(), "column": col})
			resp["status"] = statusNoData
			return c.JSON(resp)
		}
		if err != nil {
			return err
		}
		counts := map[stockmetrics.ABCClass]int{}
		for _, p := range curve.Points {
			counts[p.Class]++
		}
		resp := envelope(s, fiber.Map{
			"label":  stockmetrics.Label(col),
			"curve":  curve,
			"counts": counts,
		})
		return c.JSON(resp)
	}
}

// GET /api/dashboard/breakdown?category=classification&value=sales_qty_current
func BreakdownHandler(cache *stockcache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, err := stockmetrics.ParseCategory(c.Query("category", string(stockmetrics.CategoryClassification)))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Categoria desconhecida: "+c.Query("category"))
		}
		col, err := columnQuery(c, "value")
		if err != nil {
			return err
		}

		s, ok, err := loadSnapshot(c, cache)
		if !ok {
			return err
		}

		totals, err := stockmetrics.AggregateByCategory(s.Items, category, col)
		if err != nil {
			return err
		}
		return c.JSON(envelope(s, fiber.Map{
			"category": category,
			"column":   col,
			"label":    stockmetrics.Label(col),
			"groups":   totals,
		}))
	}
}

// GET /api/dashboard/table?q=&classification=&branch=&only_unmatched=true&negative_available=true&sort=&limit=&offset=
func TableHandler(cache *stockcache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := stockmetrics.TableFilter{
			Search:            c.Query("q"),
			Classification:    c.Query("classification"),
			Branch:            c.QueryInt("branch", 0),
			OnlyUnmatched:     c.QueryBool("only_unmatched", false),
			NegativeAvailable: c.QueryBool("negative_available", false),
		}

		var sortCol stockmetrics.Column
		if v := c.Query("sort"); v != "" {
			col, err := stockmetrics.ParseColumn(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Coluna desconhecida: "+v)
			}
			sortCol = col
		}

		limit := c.QueryInt("limit", 500)
		if limit <= 0 || limit > maxTableLimit {
			limit = maxTableLimit
		}
		offset := c.QueryInt("offset", 0)
		if offset < 0 {
			offset = 0
		}

		s, ok, err := loadSnapshot(c, cache)
		if !ok {
			return err
		}

		items := stockmetrics.Filter(s.Items, f)
		if sortCol != "" {
			items = stockmetrics.RankTopN(items, sortCol, 0)
		} else {
			sort.SliceStable(items, func(i, j int) bool {
				if items[i].ProductCode != items[j].ProductCode {
					return items[i].ProductCode < items[j].ProductCode
				}
				return items[i].Branch < items[j].Branch
			})
		}

		total := len(items)
		if offset > total {
			offset = total
		}
		end := offset + limit
		if end > total {
			end = total
		}

		rows := make([]ItemRow, 0, end-offset)
		for _, e := range items[offset:end] {
			rows = append(rows, toRow(e))
		}
		return c.JSON(envelope(s, fiber.Map{
			"total":  total,
			"offset": offset,
			"items":  rows,
		}))
	}
}

// GET /api/dashboard/columns
func ColumnsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cols := stockmetrics.Columns()
		out := make([]fiber.Map, 0, len(cols))
		for _, col := range cols {
			out = append(out, fiber.Map{"column": col, "label": stockmetrics.Label(col)})
		}
		return c.JSON(out)
	}
}

// POST /api/dashboard/refresh (admin)
func RefreshHandler(cache *stockcache.Cache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName := auth.CurrentUser(c)

		s, err := cache.Refresh(c.UserContext(), true)
		if err != nil && !errors.Is(err, stockcache.ErrNoData) {
			return err
		}

		desc := "Atualização manual do estoque"
		var data fiber.Map
		if err != nil {
			desc += " (falhou)"
			data = fiber.Map{"error": err.Error()}
		} else {
			data = fiber.Map{"items": s.Join.Total, "stale": s.Stale, "warning": s.Warning}
		}
		_ = audit.WriteLog(audit.LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  audit.EntityStockSnapshot,
			Action:      models.AuditActionRefresh,
			Description: desc,
			Data:        data,
		})

		if err != nil {
			return c.JSON(fiber.Map{"status": statusNoData, "reason": err.Error()})
		}
		return c.JSON(envelope(s, fiber.Map{"join": s.Join}))
	}
}
