package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Layout describes one physical receipt format: page dimensions in mm, a
// relative font scale, and how many receipts are tiled onto each page.
// Single-receipt formats use a 1x1 grid with one page per receipt.
type Layout struct {
	Name         string
	PageWidthMM  float64
	PageHeightMM float64
	MarginMM     float64
	FontScale    float64
	Columns      int
	Rows         int
}

// Supported layout names.
const (
	LayoutThermal2x3 = "2x3-thermal"
	Layout3x5        = "3x5"
	LayoutA6         = "a6"
	LayoutA4NineUp   = "a4-9up"
)

var layouts = map[string]Layout{
	LayoutThermal2x3: {Name: LayoutThermal2x3, PageWidthMM: 50.8, PageHeightMM: 76.2, MarginMM: 3, FontScale: 0.7, Columns: 1, Rows: 1},
	Layout3x5:        {Name: Layout3x5, PageWidthMM: 76.2, PageHeightMM: 127, MarginMM: 5, FontScale: 0.85, Columns: 1, Rows: 1},
	LayoutA6:         {Name: LayoutA6, PageWidthMM: 105, PageHeightMM: 148, MarginMM: 8, FontScale: 1, Columns: 1, Rows: 1},
	LayoutA4NineUp:   {Name: LayoutA4NineUp, PageWidthMM: 210, PageHeightMM: 297, MarginMM: 8, FontScale: 0.75, Columns: 3, Rows: 3},
}

// LayoutFor resolves a layout by name.
func LayoutFor(name string) (Layout, error) {
	layout, ok := layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("unknown receipt layout %q", name)
	}
	return layout, nil
}

// LayoutNames lists the supported layout names.
func LayoutNames() []string {
	return []string{LayoutThermal2x3, Layout3x5, LayoutA6, LayoutA4NineUp}
}

// ReceiptLine is one label/amount row on a receipt.
type ReceiptLine struct {
	Label  string
	Amount string
}

// Receipt is the logical content of a single rendered receipt. Every layout
// renders the same fields; only geometry and font size differ.
type Receipt struct {
	SchoolName     string
	SchoolSubtitle string
	SchoolLocation string
	ReceiptNo      string
	Date           string
	StudentName    string
	AdmissionNo    string
	ClassLabel     string
	Lines          []ReceiptLine
	Total          string
	BalanceLines   []ReceiptLine
}

// ReceiptPDF renders receipts into PDF pages according to a Layout.
type ReceiptPDF struct{}

// NewReceiptPDF constructs a receipt renderer.
func NewReceiptPDF() *ReceiptPDF {
	return &ReceiptPDF{}
}

// Render tiles the receipts onto pages of the given layout and returns the
// PDF bytes. Tiled layouts start a new page when the grid is full; 1x1
// layouts produce one page per receipt.
func (e *ReceiptPDF) Render(layout Layout, receipts []Receipt) ([]byte, error) {
	if len(receipts) == 0 {
		return nil, fmt.Errorf("no receipts to render")
	}
	if layout.Columns <= 0 || layout.Rows <= 0 {
		return nil, fmt.Errorf("layout %q has an invalid tile grid", layout.Name)
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: layout.PageWidthMM, Ht: layout.PageHeightMM},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	perPage := layout.Columns * layout.Rows
	cellW := (layout.PageWidthMM - 2*layout.MarginMM) / float64(layout.Columns)
	cellH := (layout.PageHeightMM - 2*layout.MarginMM) / float64(layout.Rows)

	for i, receipt := range receipts {
		slot := i % perPage
		if slot == 0 {
			pdf.AddPage()
		}
		col := slot % layout.Columns
		row := slot / layout.Columns
		x := layout.MarginMM + float64(col)*cellW
		y := layout.MarginMM + float64(row)*cellH
		e.drawReceipt(pdf, receipt, x, y, cellW, cellH, layout.FontScale)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *ReceiptPDF) drawReceipt(pdf *gofpdf.Fpdf, r Receipt, x, y, w, h, scale float64) {
	pad := 1.5
	innerX := x + pad
	innerW := w - 2*pad
	lineH := 4.2 * scale

	pdf.Rect(x, y, w, h, "D")

	cursor := y + pad + 0.5
	center := func(text string, style string, size float64) {
		pdf.SetFont("Arial", style, size*scale)
		pdf.SetXY(innerX, cursor)
		pdf.CellFormat(innerW, lineH, text, "", 0, "C", false, 0, "")
		cursor += lineH
	}
	pair := func(label, value string, style string, size float64) {
		pdf.SetFont("Arial", style, size*scale)
		pdf.SetXY(innerX, cursor)
		pdf.CellFormat(innerW/2, lineH, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(innerW/2, lineH, value, "", 0, "R", false, 0, "")
		cursor += lineH
	}
	rule := func() {
		pdf.SetLineWidth(0.2)
		pdf.Line(innerX, cursor+0.4, innerX+innerW, cursor+0.4)
		cursor += 1.2
	}

	center(r.SchoolName, "B", 11)
	if r.SchoolSubtitle != "" {
		center(r.SchoolSubtitle, "", 8)
	}
	if r.SchoolLocation != "" {
		center(r.SchoolLocation, "", 7)
	}
	rule()

	pair("Receipt No: "+r.ReceiptNo, r.Date, "", 8)
	pair("Name", r.StudentName, "", 8)
	pair("Adm No", r.AdmissionNo, "", 8)
	pair("Class", r.ClassLabel, "", 8)
	rule()

	for _, line := range r.Lines {
		pair(line.Label, line.Amount, "", 8)
	}
	rule()
	pair("Total Paid", r.Total, "B", 9)

	if len(r.BalanceLines) > 0 {
		rule()
		center("Remaining Balance", "B", 8)
		for _, line := range r.BalanceLines {
			pair(line.Label, line.Amount, "", 8)
		}
	}
}
