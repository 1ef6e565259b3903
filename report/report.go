/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package report composes downloadable PDF reports for a visit and,
// optionally, one of its trend comparisons.
package report

import (
	"bytes"
	"fmt"
	"image/png"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/skip2/go-qrcode"

	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/logging"
)

var logger = logging.Logger(logging.SourceReport)

// DefaultDisclaimer is printed when the caller supplies none.
const DefaultDisclaimer = "This report is generated automatically from the recorded assessments " +
	"and is not a medical diagnosis. Please review the results with a qualified clinician."

// GeneratedLayout formats the generation time on the report.
const GeneratedLayout = "January 02, 2006 03:04 PM"

const (
	pageMargin  = 15.0
	lineHeight  = 6.0
	qrSize      = 32.0
	chartWidth  = 170.0
	placeholder = "-"
)

// compressOutput is switched off in tests so page text can be inspected.
var compressOutput = true

// Options controls the parts of a report that come from the caller.
type Options struct {
	Assets      charts.Assets
	GeneratedAt time.Time
	// DownloadURL, when set, is encoded as a QR code on the report.
	DownloadURL string
	Disclaimer  string
	// Narrative is the stored doctor report of a single visit. It is
	// ignored when a comparison is given.
	Narrative string
}

type composer struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	opts  Options
	width float64
}

// Compose renders the report for pred. With a comparison it adds the
// narrative, the visit table and the trend chart; without one it adds the
// single visit's measurements and, when set, its doctor report. Charts whose files are gone are left out.
func Compose(pred *db.Prediction, cmp *db.Comparison, opts Options) ([]byte, error) {
	if pred == nil {
		return nil, ErrNoPrediction
	}

	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now().UTC()
	}

	if opts.Disclaimer == "" {
		opts.Disclaimer = DefaultDisclaimer
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(compressOutput)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin+5)
	pdf.AliasNbPages("")
	pdf.SetCreationDate(opts.GeneratedAt)
	pdf.SetCreator("glycowatch", false)

	pageWidth, _ := pdf.GetPageSize()

	c := &composer{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		opts:  opts,
		width: pageWidth - 2*pageMargin,
	}

	title := "Diabetes Risk Report"
	if cmp != nil {
		title = "Diabetes Trend Comparison"
	}

	pdf.SetTitle(title, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	c.header(title, pred)

	if cmp != nil {
		c.narrative("Clinical Summary", cmp.Explanation)
		c.visitTable(cmp.SelectedPredictions)
		c.chart("Current vs Normal", pred.CurrentVsNormalGraphPath)
		c.chart("Historical Comparison", cmp.GraphRelativePath)
	} else {
		c.measurements(pred)

		if strings.TrimSpace(opts.Narrative) != "" {
			c.narrative("Clinical Assessment", opts.Narrative)
		}

		c.chart("Current vs Normal", pred.CurrentVsNormalGraphPath)
	}

	c.qr()
	c.disclaimer()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", errRenderPDF, err)
	}

	return buf.Bytes(), nil
}

func (c *composer) text(s string) string {
	return c.tr(s)
}

func (c *composer) section(title string) {
	c.pdf.Ln(4)
	c.pdf.SetFont("Helvetica", "B", 13)
	c.pdf.SetTextColor(37, 99, 235)
	c.pdf.CellFormat(0, 8, c.text(title), "", 1, "L", false, 0, "")
	c.pdf.SetTextColor(31, 41, 55)
	c.pdf.SetFont("Helvetica", "", 11)
}

func (c *composer) header(title string, pred *db.Prediction) {
	pdf := c.pdf

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(31, 41, 55)
	pdf.CellFormat(0, 12, c.text(title), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	name := pred.PatientName
	if name == "" {
		name = "Patient"
	}

	rows := [][2]string{
		{"Patient", name},
		{"Sex", orPlaceholder(pred.Sex)},
		{"Contact", orPlaceholder(pred.Contact)},
		{"Visit", pred.VisitLabel()},
		{"Latest Assessment", orPlaceholder(pred.Prediction)},
		{"Model Confidence", fmt.Sprintf("%.1f%%", pred.Confidence)},
		{"Generated on", c.opts.GeneratedAt.In(db.DisplayLocation()).Format(GeneratedLayout + " MST")},
	}

	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, lineHeight, c.text(row[0]+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, lineHeight, c.text(row[1]), "", 1, "L", false, 0, "")
	}
}

// narrative prints each non-empty line as its own paragraph.
func (c *composer) narrative(title, explanation string) {
	c.section(title)

	explanation = strings.TrimSpace(strings.ReplaceAll(explanation, "**", ""))
	if explanation == "" {
		explanation = "No analysis available."
	}

	for _, line := range strings.Split(explanation, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			line = "• " + strings.TrimSpace(line[2:])
		}

		c.pdf.MultiCell(0, lineHeight, c.text(line), "", "L", false)
		c.pdf.Ln(1)
	}
}

func (c *composer) tableHeader(cols []string, widths []float64) {
	pdf := c.pdf

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(37, 99, 235)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetDrawColor(226, 232, 240)

	for i, col := range cols {
		pdf.CellFormat(widths[i], 8, c.text(col), "1", 0, "C", true, 0, "")
	}

	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(31, 41, 55)
	pdf.SetFillColor(248, 250, 252)
}

func (c *composer) visitTable(rows []db.VisitSummary) {
	if len(rows) == 0 {
		return
	}

	c.section("Compared Visits")

	cols := []string{"Visit", "Glucose", "Blood Pressure", "BMI", "Insulin", "Risk / Confidence"}
	widths := []float64{40, 20, 26, 16, 18, 0}
	widths[5] = c.width - 120

	c.tableHeader(cols, widths)

	for _, row := range rows {
		cells := []string{
			row.Label,
			formatOptional(row.Glucose),
			formatOptional(row.BloodPressure),
			formatOptional(row.BMI),
			formatOptional(row.Insulin),
			fmt.Sprintf("%s (%.1f%%)", orPlaceholder(row.Result), row.Confidence),
		}

		for i, cell := range cells {
			align := "C"
			if i == 0 || i == 5 {
				align = "L"
			}

			c.pdf.CellFormat(widths[i], 7, c.text(cell), "1", 0, align, true, 0, "")
		}

		c.pdf.Ln(-1)
	}
}

func (c *composer) measurements(pred *db.Prediction) {
	c.section("Clinical Measurements")

	widths := []float64{80, 50, c.width - 130}
	c.tableHeader([]string{"Parameter", "Value", "Normal Limit"}, widths)

	for _, param := range db.Parameters {
		limit := placeholder
		if v, ok := charts.NormalLimits[param]; ok {
			limit = "<= " + formatNumber(v)
		}

		value := placeholder
		if v, ok := pred.Value(param); ok {
			value = formatNumber(v)
		}

		for i, cell := range []string{param.Label(), value, limit} {
			align := "C"
			if i == 0 {
				align = "L"
			}

			c.pdf.CellFormat(widths[i], 7, c.text(cell), "1", 0, align, true, 0, "")
		}

		c.pdf.Ln(-1)
	}
}

// chart embeds the PNG at rel. Missing or unreadable files are skipped.
func (c *composer) chart(title, rel string) {
	if rel == "" || !c.opts.Assets.Exists(rel) {
		if rel != "" {
			logger.Debug("Skipping missing chart", "path", rel)
		}

		return
	}

	data, err := c.opts.Assets.Read(rel)
	if err != nil {
		logger.Warn("Skipping unreadable chart", "path", rel, "error", err)
		return
	}

	// The whole image is decoded so a corrupt body never reaches Output.
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Warn("Skipping invalid chart image", "path", rel, "error", err)
		return
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		logger.Warn("Skipping empty chart image", "path", rel)
		return
	}

	opt := fpdf.ImageOptions{ImageType: "PNG"}
	c.pdf.RegisterImageOptionsReader(rel, opt, bytes.NewReader(data))

	if err := c.pdf.Error(); err != nil {
		logger.Warn("Skipping chart rejected by PDF writer", "path", rel, "error", err)
		c.pdf.ClearError()

		return
	}

	height := chartWidth * float64(bounds.Dy()) / float64(bounds.Dx())

	c.section(title)

	_, pageHeight := c.pdf.GetPageSize()
	if c.pdf.GetY()+height > pageHeight-pageMargin-5 {
		c.pdf.AddPage()
	}

	c.pdf.ImageOptions(rel, pageMargin+(c.width-chartWidth)/2, c.pdf.GetY(), chartWidth, height, true, opt, 0, "")
}

func (c *composer) qr() {
	if c.opts.DownloadURL == "" {
		return
	}

	png, err := qrcode.Encode(c.opts.DownloadURL, qrcode.Medium, 256)
	if err != nil {
		logger.Warn("Skipping QR code", "error", err)
		return
	}

	_, pageHeight := c.pdf.GetPageSize()
	if c.pdf.GetY()+qrSize+10 > pageHeight-pageMargin-5 {
		c.pdf.AddPage()
	}

	c.pdf.Ln(4)
	y := c.pdf.GetY()

	opt := fpdf.ImageOptions{ImageType: "PNG"}
	c.pdf.RegisterImageOptionsReader("download-qr", opt, bytes.NewReader(png))
	c.pdf.ImageOptions("download-qr", pageMargin, y, qrSize, qrSize, false, opt, 0, c.opts.DownloadURL)

	c.pdf.SetXY(pageMargin+qrSize+4, y+qrSize/2-lineHeight)
	c.pdf.SetFont("Helvetica", "", 9)
	c.pdf.MultiCell(0, 5, c.text("Scan to download this report again:\n"+c.opts.DownloadURL), "", "L", false)
	c.pdf.SetY(y + qrSize + 2)
}

func (c *composer) disclaimer() {
	c.pdf.Ln(4)
	c.pdf.SetFont("Helvetica", "I", 9)
	c.pdf.SetTextColor(100, 100, 100)
	c.pdf.MultiCell(0, 5, c.text(c.opts.Disclaimer), "T", "L", false)
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}

	return s
}

func formatOptional(v *float64) string {
	if v == nil {
		return placeholder
	}

	return formatNumber(*v)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
