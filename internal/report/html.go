package report

import (
	"embed"
	"html/template"
	"io"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var htmlTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"kg":        kg,
	"pct":       pct,
	"date":      date,
	"timestamp": timestamp,
}).ParseFS(templateFS, "templates/report.html.tmpl"))

func RenderHTML(w io.Writer, doc *Document) error {
	return htmlTemplate.Execute(w, doc)
}
