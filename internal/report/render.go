package report

import (
	"fmt"
	"io"
)

// Render writes doc in the given format.
func Render(w io.Writer, doc *Document, f Format) error {
	switch f {
	case FormatHTML:
		return RenderHTML(w, doc)
	case FormatXLSX:
		return RenderXLSX(w, doc)
	case FormatPDF:
		return RenderPDF(w, doc)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}
