package pages

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/ppiankov/sixc/internal/model"
)

// LoadPDF reads the text layer of a PDF, one string per page
// Scanned PDFs without a text layer yield empty pages; OCR is not attempted.
func LoadPDF(path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	count := r.NumPage()
	pages := make(model.Pages, 0, count)
	for i := 1; i <= count; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := pageText(p)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	return &Document{Path: path, Pages: pages}, nil
}

// pageText rebuilds the page line by line so footnote lines stay separate
func pageText(p pdf.Page) (string, error) {
	rows, err := p.GetTextByRow()
	if err != nil {
		return p.GetPlainText(nil)
	}

	var buf strings.Builder
	for _, row := range rows {
		if row == nil || len(row.Content) == 0 {
			continue
		}
		line := rowText(row.Content)
		if strings.TrimSpace(line) != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	return buf.String(), nil
}

// rowText joins the text runs of one row, inserting a space where runs are visibly apart
func rowText(runs []pdf.Text) string {
	var buf strings.Builder
	for i, run := range runs {
		buf.WriteString(run.S)
		if i == len(runs)-1 || strings.HasSuffix(run.S, " ") {
			continue
		}

		fontSize := run.FontSize
		if fontSize <= 0 {
			fontSize = 10
		}
		width := run.W
		if width <= 0 {
			// Rows carry no widths; assume half an em per glyph
			width = float64(utf8.RuneCountInString(run.S)) * fontSize * 0.5
		}
		if runs[i+1].X-(run.X+width) > fontSize*0.2 {
			buf.WriteString(" ")
		}
	}
	return buf.String()
}
