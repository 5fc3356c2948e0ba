package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const summarySheet = "Resumo"

func RenderXLSX(w io.Writer, doc *Document) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	used := map[string]bool{}
	if doc.Summary != nil {
		if _, err := f.NewSheet(summarySheet); err != nil {
			return err
		}
		used[summarySheet] = true
		if err := xlsxSummary(f, doc.Summary, bold); err != nil {
			return err
		}
	}

	for i, sec := range doc.Sections {
		name := sheetName(fmt.Sprintf("%d %s", i+1, sec.Record.InvoiceNumber), used)
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := xlsxSection(f, name, sec, bold); err != nil {
			return err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	f.SetActiveSheet(0)
	_ = f.SetDocProps(&excelize.DocProperties{Title: doc.Title, Creator: doc.Attribution})

	_, err = f.WriteTo(w)
	return err
}

func xlsxSection(f *excelize.File, sheet string, sec Section, bold int) error {
	r := sec.Record
	rows := [][]any{
		{"Nota", r.InvoiceNumber},
		{"Data", date(r.RecordDate)},
		{"Fornecedor", r.Supplier},
		{"Tipo de animal", r.AnimalType},
		{"Peso de entrada (kg)", r.InputWeight.InexactFloat64()},
		{"Peças", r.PieceCount},
		{},
		{"Corte", "Peso (kg)", "Rendimento (%)"},
	}
	for _, c := range sec.Cuts {
		rows = append(rows, []any{c.Name, c.Weight.InexactFloat64(), pctCell(c.YieldPct)})
	}
	rows = append(rows, []any{"Total de saída", sec.TotalOutput.InexactFloat64(), pctCell(sec.OverallPct)})

	if err := writeRows(f, sheet, rows); err != nil {
		return err
	}
	last := len(rows)
	_ = f.SetCellStyle(sheet, "A1", fmt.Sprintf("A%d", 6), bold)
	_ = f.SetCellStyle(sheet, "A8", "C8", bold)
	_ = f.SetCellStyle(sheet, fmt.Sprintf("A%d", last), fmt.Sprintf("C%d", last), bold)
	_ = f.SetColWidth(sheet, "A", "A", 24)
	_ = f.SetColWidth(sheet, "B", "C", 16)
	return nil
}

func xlsxSummary(f *excelize.File, s *Summary, bold int) error {
	head := []any{"Data", "Nota", "Fornecedor", "Tipo", "Entrada (kg)", "Saída (kg)", "Rend. total (%)"}
	for _, n := range s.CutNames {
		head = append(head, n+" (%)")
	}
	rows := [][]any{head}
	for _, r := range s.Rows {
		row := []any{date(r.RecordDate), r.InvoiceNumber, r.Supplier, r.AnimalType,
			r.InputWeight.InexactFloat64(), r.TotalOutput.InexactFloat64(), pctCell(r.OverallPct)}
		for _, p := range r.CutPct {
			row = append(row, pctCell(p))
		}
		rows = append(rows, row)
	}
	mean := []any{"Média", "", "", "", "", "", ""}
	for _, m := range s.MeanPct {
		mean = append(mean, pctCell(m))
	}
	rows = append(rows, mean)

	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(head))
	_ = f.SetCellStyle(summarySheet, "A1", lastCol+"1", bold)
	_ = f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", len(rows)), fmt.Sprintf("%s%d", lastCol, len(rows)), bold)
	return f.SetPanes(summarySheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// pctCell rounds to two places; undefined yields are left blank.
func pctCell(v decimal.NullDecimal) any {
	if !v.Valid {
		return ""
	}
	return v.Decimal.Round(2).InexactFloat64()
}

var sheetNameReplacer = strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")

// sheetName makes s a valid, unused sheet name (31 chars max).
func sheetName(s string, used map[string]bool) string {
	s = sheetNameReplacer.Replace(s)
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	name := s
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(s)
		if len(r)+len(suffix) > 31 {
			r = r[:31-len(suffix)]
		}
		name = string(r) + suffix
	}
	used[name] = true
	return name
}
