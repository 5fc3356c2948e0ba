package yield

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"estoque-backend/internal/audit"
	"estoque-backend/internal/auth"
	"estoque-backend/internal/logging"
	"estoque-backend/internal/models"
	"estoque-backend/internal/report"
	"estoque-backend/internal/validation"
	"estoque-backend/internal/yieldstore"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
	defaultWindow  = 5
)

type CreateYieldRecordRequest struct {
	RecordDate    string                     `json:"record_date" validate:"required,datetime=2006-01-02"`
	InvoiceNumber string                     `json:"invoice_number" validate:"required,max=50"`
	Supplier      string                     `json:"supplier" validate:"max=120"`
	AnimalType    string                     `json:"animal_type" validate:"max=60"`
	PieceCount    int                        `json:"piece_count" validate:"gte=0"`
	InputWeight   decimal.Decimal            `json:"input_weight"`
	Cuts          map[string]decimal.Decimal `json:"cuts"`
}

type YieldRecordResponse struct {
	ID              string                     `json:"id"`
	RecordDate      string                     `json:"record_date"`
	InvoiceNumber   string                     `json:"invoice_number"`
	Supplier        string                     `json:"supplier"`
	AnimalType      string                     `json:"animal_type"`
	PieceCount      int                        `json:"piece_count"`
	InputWeight     decimal.Decimal            `json:"input_weight"`
	Cuts            map[string]decimal.Decimal `json:"cuts"`
	TotalOutput     decimal.Decimal            `json:"total_output"`
	OverallYieldPct decimal.NullDecimal        `json:"overall_yield_pct"`
	CreatedAt       string                     `json:"created_at"`
	CreatedBy       string                     `json:"created_by"`
}

func toResponse(r models.YieldRecord) YieldRecordResponse {
	resp := YieldRecordResponse{
		ID:            r.ID,
		RecordDate:    r.RecordDate.Format(dateLayout),
		InvoiceNumber: r.InvoiceNumber,
		Supplier:      r.Supplier,
		AnimalType:    r.AnimalType,
		PieceCount:    r.PieceCount,
		InputWeight:   r.InputWeight,
		Cuts:          r.Cuts,
		TotalOutput:   r.TotalOutput(),
		CreatedBy:     r.CreatedBy,
	}
	if !r.CreatedAt.IsZero() {
		resp.CreatedAt = r.CreatedAt.Local().Format(dateTimeLayout)
	}
	if p, ok := r.OverallYieldPct(); ok {
		resp.OverallYieldPct = decimal.NewNullDecimal(p)
	}
	return resp
}

func storeError(funcName string, err error) error {
	var ve *yieldstore.ValidationError
	if errors.As(err, &ve) {
		return fiber.NewError(fiber.StatusBadRequest, ve.Error())
	}
	logging.LogError("yield", funcName, "yield store", nil, err)
	return fiber.NewError(fiber.StatusInternalServerError, "Falha ao acessar os registros de desossa")
}

// parseFilter reads from/to/invoice/supplier/animal_type query params.
func parseFilter(c *fiber.Ctx) (yieldstore.Filter, error) {
	f := yieldstore.Filter{
		InvoiceNumber: c.Query("invoice"),
		Supplier:      c.Query("supplier"),
		AnimalType:    c.Query("animal_type"),
	}
	if v := c.Query("from"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "Formato de data deve ser 'AAAA-MM-DD'")
		}
		f.From = d
	}
	if v := c.Query("to"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "Formato de data deve ser 'AAAA-MM-DD'")
		}
		f.To = d
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fiber.NewError(fiber.StatusBadRequest, "Data final anterior à inicial")
	}
	return f, nil
}

func query(c *fiber.Ctx, store *yieldstore.Store, funcName string) (yieldstore.QueryResult, error) {
	f, err := parseFilter(c)
	if err != nil {
		return yieldstore.QueryResult{}, err
	}
	res, err := store.Query(c.UserContext(), f)
	if err != nil {
		return res, storeError(funcName, err)
	}
	return res, nil
}

// POST /api/yield-records
func CreateYieldRecordHandler(store *yieldstore.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateYieldRecordRequest
		if err := validation.Body(c, &body); err != nil {
			return err
		}

		d, err := time.Parse(dateLayout, body.RecordDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Formato de data deve ser 'AAAA-MM-DD'")
		}

		userID, userName := auth.CurrentUser(c)
		rec := models.YieldRecord{
			RecordDate:    d,
			InvoiceNumber: body.InvoiceNumber,
			Supplier:      body.Supplier,
			AnimalType:    body.AnimalType,
			PieceCount:    body.PieceCount,
			InputWeight:   body.InputWeight,
			Cuts:          body.Cuts,
			CreatedBy:     userName,
		}

		res, err := store.Append(c.UserContext(), rec)
		if err != nil {
			return storeError("CreateYieldRecordHandler", err)
		}

		overall := "-"
		if p, ok := res.Record.OverallYieldPct(); ok {
			overall = p.StringFixed(1) + "%"
		}
		_ = audit.WriteLog(audit.LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  audit.EntityYieldRecord,
			EntityRef:   res.Record.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Desossa NF %s (%s): entrada %s kg, rendimento %s", res.Record.InvoiceNumber, res.Record.RecordDate.Format("02/01/2006"), res.Record.InputWeight.StringFixed(2), overall),
			Data:        res.Record,
		})

		resp := fiber.Map{
			"record":      toResponse(res.Record),
			"duplicate":   res.Duplicate,
			"new_columns": res.NewColumns,
		}
		if res.Duplicate {
			resp["warning"] = "Já existe um registro com esta nota e data"
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// GET /api/yield-records?from=&to=&invoice=&supplier=&animal_type=
func ListYieldRecordsHandler(store *yieldstore.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := query(c, store, "ListYieldRecordsHandler")
		if err != nil {
			return err
		}

		records := make([]YieldRecordResponse, 0, len(res.Records))
		for i := len(res.Records) - 1; i >= 0; i-- {
			records = append(records, toResponse(res.Records[i]))
		}
		return c.JSON(fiber.Map{
			"records":      records,
			"stored_count": res.StoredCount,
			"store_empty":  res.StoreEmpty(),
			"skipped":      res.Skipped,
			"cut_names":    res.CutNames,
		})
	}
}

// GET /api/yield-records/supplier-yield?cut=PICANHA (no cut: overall yield)
func SupplierYieldHandler(store *yieldstore.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := query(c, store, "SupplierYieldHandler")
		if err != nil {
			return err
		}

		cut := strings.TrimSpace(c.Query("cut"))
		var groups []yieldstore.SupplierYield
		if cut == "" {
			groups = yieldstore.AggregateOverallBySupplier(res.Records)
		} else {
			groups = yieldstore.AggregateYieldBySupplier(res.Records, cut)
		}
		return c.JSON(fiber.Map{
			"cut":         cut,
			"suppliers":   groups,
			"store_empty": res.StoreEmpty(),
		})
	}
}

// GET /api/yield-records/cut-trend?cut=PICANHA&window=5
func CutTrendHandler(store *yieldstore.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cut := strings.TrimSpace(c.Query("cut"))
		if cut == "" {
			return fiber.NewError(fiber.StatusBadRequest, "cut é obrigatório")
		}
		window := c.QueryInt("window", defaultWindow)
		if window < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "window deve ser maior que zero")
		}

		res, err := query(c, store, "CutTrendHandler")
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"cut":         cut,
			"window":      window,
			"points":      yieldstore.CutTrend(res.Records, cut, window),
			"store_empty": res.StoreEmpty(),
		})
	}
}

// GET /api/yield-records/cut-averages
func CutAveragesHandler(store *yieldstore.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := query(c, store, "CutAveragesHandler")
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"cuts":        yieldstore.CutAverages(res.Records),
			"store_empty": res.StoreEmpty(),
		})
	}
}

// GET /api/yield-records/duplicates
func DuplicatesHandler(store *yieldstore.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := query(c, store, "DuplicatesHandler")
		if err != nil {
			return err
		}
		groups := yieldstore.FindDuplicates(res.Records)
		if groups == nil {
			groups = []yieldstore.DuplicateGroup{}
		}
		return c.JSON(groups)
	}
}

// GET /api/yield-records/options
func OptionsHandler(store *yieldstore.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := store.All(c.UserContext())
		if err != nil {
			return storeError("OptionsHandler", err)
		}
		cuts := res.CutNames
		if cuts == nil {
			cuts = []string{}
		}
		return c.JSON(fiber.Map{
			"suppliers":    yieldstore.Suppliers(res.Records),
			"animal_types": yieldstore.AnimalTypes(res.Records),
			"cut_names":    cuts,
		})
	}
}

// GET /api/yield-records/report?format=pdf|html|xlsx&summary=true&from=&to=&invoice=&supplier=&animal_type=
func ReportHandler(store *yieldstore.Store, attribution string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, err := report.ParseFormat(c.Query("format"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Formato inválido, use pdf, html ou xlsx")
		}

		res, err := query(c, store, "ReportHandler")
		if err != nil {
			return err
		}
		if res.StoreEmpty() {
			return fiber.NewError(fiber.StatusNotFound, "Nenhum registro de desossa cadastrado")
		}

		now := time.Now()
		doc, err := report.Build(res.Records, report.Options{
			Attribution: attribution,
			Summary:     c.QueryBool("summary", false),
			Now:         now,
		})
		if errors.Is(err, report.ErrNoRecords) {
			return fiber.NewError(fiber.StatusNotFound, "Nenhum registro encontrado para os filtros")
		}
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := report.Render(&buf, doc, format); err != nil {
			logging.LogError("yield", "ReportHandler", "rendering report", fiber.Map{"format": format}, err)
			return fiber.NewError(fiber.StatusInternalServerError, "Relatório não pôde ser gerado")
		}

		userID, userName := auth.CurrentUser(c)
		refs := make([]string, 0, len(res.Records))
		for _, r := range res.Records {
			refs = append(refs, r.ID)
		}
		_ = audit.WriteLog(audit.LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  audit.EntityYieldReport,
			Action:      models.AuditActionExport,
			Description: fmt.Sprintf("Relatório %s com %d registro(s)", format, len(res.Records)),
			Data:        fiber.Map{"format": format, "record_ids": refs},
		})

		disposition := "attachment"
		if format == report.FormatHTML {
			disposition = "inline"
		}
		c.Set(fiber.HeaderContentType, format.ContentType())
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, format.Filename(now)))
		return c.Send(buf.Bytes())
	}
}
