// Package render produces the printable ticket PDF and its QR scan code.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/kirinyoku/amparena/internal/domain"
	"github.com/kirinyoku/amparena/internal/money"
)

const (
	pageWidth   = 595.28 // A4 in points
	margin      = 50.0
	contentW    = pageWidth - 2*margin
	qrImageName = "ticket-qr"
	qrSide      = 150.0
)

var fallbackLines = []string{"Present ticket code", "at venue entrance"}

var notes = []string{
	"Arrive early - doors open 30 minutes before start time",
	"Bring a valid ID that matches your ticket registration",
	"This ticket is non-transferable and non-refundable",
	"Keep this ticket or the QR code handy for entry",
	"Event time and details will be updated via email",
}

type Renderer struct {
	scanCode   func(payload string) ([]byte, error)
	placeImage func(pdf *fpdf.Fpdf, name string, x, y float64, opts fpdf.ImageOptions)
	compress   bool
}

func New() *Renderer {
	return &Renderer{
		scanCode:   encodeQR,
		placeImage: placeImage,
		compress:   true,
	}
}

func placeImage(pdf *fpdf.Fpdf, name string, x, y float64, opts fpdf.ImageOptions) {
	pdf.ImageOptions(name, x, y, qrSide, qrSide, false, opts, 0, "")
}

// RenderTicketDocument lays out a single-page A4 ticket. A failing QR code
// never fails the document: the image slot gets manual-entry instructions.
func (r *Renderer) RenderTicketDocument(t domain.Ticket, ev domain.Event) ([]byte, error) {
	const op = "render.Renderer.RenderTicketDocument"

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(ev.Name+" Ticket "+t.Code, true)
	pdf.SetAuthor(ev.Name, true)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// header band
	pdf.SetFillColor(0, 0, 0)
	pdf.Rect(0, 0, pageWidth, 120, "F")
	pdf.SetTextColor(74, 124, 89)
	pdf.SetFont("Helvetica", "B", 30)
	pdf.SetXY(margin, 35)
	pdf.CellFormat(contentW, 36, tr(strings.ToUpper(ev.Name)), "", 1, "C", false, 0, "")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "", 13)
	pdf.SetX(margin)
	pdf.CellFormat(contentW, 20, "OFFICIAL EVENT TICKET", "", 1, "C", false, 0, "")

	// details table
	rows := [][2]string{
		{"Event", ev.Name},
		{"Date", ev.DateLabel},
		{"Venue", ev.Location()},
		{"Ticket Type", t.Kind.Label()},
		{"Price", money.Format(t.PriceMinorUnits, ev.CurrencySymbol)},
		{"Email", t.Email},
	}

	y := 150.0
	pdf.SetDrawColor(220, 220, 220)
	for _, row := range rows {
		pdf.SetXY(margin, y)
		pdf.SetTextColor(90, 90, 90)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(110, 22, tr(row[0]+":"), "B", 0, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(contentW-110, 22, tr(row[1]), "B", 0, "L", false, 0, "")
		y += 24
	}

	// ticket code
	y += 18
	pdf.SetXY(margin, y)
	pdf.SetTextColor(90, 90, 90)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 14, "TICKET CODE", "", 1, "C", false, 0, "")
	y += 18
	pdf.SetFillColor(242, 247, 243)
	pdf.Rect(margin, y, contentW, 36, "F")
	drawSpaced(pdf, t.Code, y+8)
	y += 52

	// scan code
	qrX := (pageWidth - qrSide) / 2
	if ok := r.embedScanCode(pdf, t.Code, qrX, y); !ok {
		pdf.SetDrawColor(74, 124, 89)
		pdf.Rect(qrX, y, qrSide, qrSide, "D")
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "B", 12)
		for i, line := range fallbackLines {
			pdf.SetXY(qrX, y+qrSide/2-14+float64(i)*16)
			pdf.CellFormat(qrSide, 16, line, "", 0, "C", false, 0, "")
		}
	}
	y += qrSide + 24

	// notes
	pdf.SetXY(margin, y)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 18, "Important Information", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, n := range notes {
		pdf.SetX(margin)
		pdf.CellFormat(contentW, 15, "- "+n, "", 1, "L", false, 0, "")
	}

	// footer
	pdf.SetFillColor(0, 0, 0)
	pdf.Rect(0, 772, pageWidth, 70, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetXY(margin, 785)
	pdf.CellFormat(contentW, 12, tr(ev.Name+" - "+ev.Tagline), "", 1, "C", false, 0, "")
	pdf.SetX(margin)
	pdf.CellFormat(contentW, 12, tr("Questions? Contact "+ev.SupportEmail), "", 1, "C", false, 0, "")
	pdf.SetX(margin)
	pdf.CellFormat(contentW, 12, "Non-transferable. Non-refundable. Valid for one entry.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

func (r *Renderer) embedScanCode(pdf *fpdf.Fpdf, payload string, x, y float64) bool {
	png, err := r.RenderScanCode(payload)
	if err != nil {
		return false
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(png))
	if !pdf.Ok() {
		pdf.ClearError()
		return false
	}

	r.placeImage(pdf, qrImageName, x, y, opts)
	if !pdf.Ok() {
		// the fallback text is drawn on the same document
		pdf.ClearError()
		return false
	}

	return true
}

// drawSpaced prints s centered in Courier with a fixed advance per glyph.
func drawSpaced(pdf *fpdf.Fpdf, s string, y float64) {
	const advance = 16.0

	pdf.SetFont("Courier", "B", 18)
	pdf.SetTextColor(0, 0, 0)

	x := (pageWidth - advance*float64(len(s))) / 2
	for _, ch := range s {
		pdf.SetXY(x, y)
		pdf.CellFormat(advance, 20, string(ch), "", 0, "C", false, 0, "")
		x += advance
	}
}
