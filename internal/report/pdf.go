package report

import (
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"
)

const (
	pdfFont   = "Helvetica"
	rowHeight = 6.0
)

func RenderPDF(w io.Writer, doc *Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 18)
	// core fonts are cp1252; translate so accents survive
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(doc.Title, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(pdfFont, "I", 8)
		left, _, _, _ := pdf.GetMargins()
		pdf.CellFormat(0, 5, tr(doc.Attribution+"  |  Gerado em "+timestamp(doc.GeneratedAt)), "", 0, "L", false, 0, "")
		pdf.SetX(left)
		pdf.CellFormat(0, 5, tr("Página ")+strconv.Itoa(pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	if doc.Summary != nil {
		pdf.AddPageFormat("L", pdf.GetPageSizeStr("A4"))
		pdfTitle(pdf, tr, doc.Title+" - Resumo comparativo")
		pdfSummary(pdf, tr, doc.Summary)
	}

	for _, sec := range doc.Sections {
		pdf.AddPageFormat("P", pdf.GetPageSizeStr("A4"))
		pdfTitle(pdf, tr, doc.Title)
		pdfSection(pdf, tr, sec)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func pdfTitle(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont(pdfFont, "B", 14)
	pdf.CellFormat(0, 9, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func pdfSection(pdf *fpdf.Fpdf, tr func(string) string, sec Section) {
	r := sec.Record
	pdf.SetFont(pdfFont, "B", 11)
	pdf.CellFormat(0, 7, tr("Nota "+r.InvoiceNumber+" - "+date(r.RecordDate)), "B", 1, "L", false, 0, "")
	pdf.Ln(1)

	meta := [][2]string{
		{"Fornecedor", r.Supplier},
		{"Tipo de animal", r.AnimalType},
		{"Peso de entrada", kg(r.InputWeight) + " kg"},
		{"Peças", strconv.Itoa(r.PieceCount)},
	}
	for _, m := range meta {
		pdf.SetFont(pdfFont, "B", 10)
		pdf.CellFormat(40, rowHeight, tr(m[0]+":"), "", 0, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 10)
		pdf.CellFormat(0, rowHeight, tr(m[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	widths := []float64{90, 45, 45}
	pdf.SetFont(pdfFont, "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range []string{"Corte", "Peso (kg)", "Rendimento"} {
		pdf.CellFormat(widths[i], rowHeight+1, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", 10)
	for _, c := range sec.Cuts {
		pdf.CellFormat(widths[0], rowHeight, tr(c.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], rowHeight, kg(c.Weight), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], rowHeight, pct(c.YieldPct), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont(pdfFont, "B", 10)
	pdf.CellFormat(widths[0], rowHeight, tr("Total de saída"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(widths[1], rowHeight, kg(sec.TotalOutput), "1", 0, "R", true, 0, "")
	pdf.CellFormat(widths[2], rowHeight, pct(sec.OverallPct), "1", 1, "R", true, 0, "")
}

func pdfSummary(pdf *fpdf.Fpdf, tr func(string) string, s *Summary) {
	head := []string{"Data", "Nota", "Fornecedor", "Entrada", "Saída", "Rend."}
	fixed := []float64{20, 25, 45, 22, 22, 16}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	used := 0.0
	for _, w := range fixed {
		used += w
	}
	cutW := 18.0
	if n := len(s.CutNames); n > 0 {
		if avail := (pageW - left - right - used) / float64(n); avail < cutW {
			cutW = avail
		}
	}

	pdf.SetFont(pdfFont, "B", 8)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range head {
		pdf.CellFormat(fixed[i], rowHeight, tr(h), "1", 0, "C", true, 0, "")
	}
	for _, n := range s.CutNames {
		pdf.CellFormat(cutW, rowHeight, tr(n), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", 8)
	for _, row := range s.Rows {
		cells := []string{date(row.RecordDate), row.InvoiceNumber, row.Supplier, kg(row.InputWeight), kg(row.TotalOutput), pct(row.OverallPct)}
		for i, c := range cells {
			align := "R"
			if i < 3 {
				align = "L"
			}
			pdf.CellFormat(fixed[i], rowHeight, tr(c), "1", 0, align, false, 0, "")
		}
		for _, p := range row.CutPct {
			pdf.CellFormat(cutW, rowHeight, pct(p), "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont(pdfFont, "B", 8)
	pdf.CellFormat(used, rowHeight, tr("Média"), "1", 0, "L", true, 0, "")
	for _, m := range s.MeanPct {
		pdf.CellFormat(cutW, rowHeight, pct(m), "1", 0, "R", true, 0, "")
	}
	pdf.Ln(-1)
}
