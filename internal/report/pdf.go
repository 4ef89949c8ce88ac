// Package report renders quotes as PDF and moves the product catalog in and out as CSV.
package report

import (
	"bytes"
	"fmt"

	"github.com/estmator/estmator/internal/quoting"
	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "Jan 2, 2006"

// QuotePDF renders a priced quote as an A4 document.
func QuotePDF(pq *quoting.PricedQuote) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Moving estimate "+pq.Quote.Name), false)
	pdf.SetAuthor("estmator", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(pq.Quote.Name))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Date: %s", pq.Quote.Date.Format(dateLayout))))
	pdf.Ln(6)
	client := pq.Client.Name
	if pq.Client.Company != "" {
		client += ", " + pq.Client.Company
	}
	pdf.Cell(0, 6, tr("Client: "+client))
	pdf.Ln(6)
	if pq.Operator != nil {
		pdf.Cell(0, 6, tr("Prepared by: "+operatorName(pq)))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	headers := []string{"Item", "Count", "Minutes", "Dollies", "M cart", "L cart", "P cart", "S pack"}
	widths := []float64{62, 16, 18, 18, 18, 18, 18, 18}

	for _, cat := range pq.Categories {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, tr(cat.Name))
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "B", 9)
		for i, h := range headers {
			pdf.CellFormat(widths[i], 6, h, "B", 0, "L", false, 0, "")
		}
		pdf.Ln(6)

		pdf.SetFont("Helvetica", "", 9)
		for _, l := range cat.Lines {
			cells := []string{
				trim(l.Name, 38),
				fmt.Sprint(l.Count),
				fmt.Sprint(l.Minutes),
				fmt.Sprint(l.Dollies),
				fmt.Sprint(l.MachineCarts),
				fmt.Sprint(l.LibraryCarts),
				fmt.Sprint(l.PanelCarts),
				fmt.Sprint(l.SpeedPacks),
			}
			for i, c := range cells {
				pdf.CellFormat(widths[i], 6, tr(c), "", 0, "L", false, 0, "")
			}
			pdf.Ln(6)
		}
		pdf.Ln(2)
	}

	t := pq.Totals
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 7, "Equipment")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Dollies %d, machine carts %d, library carts %d, panel carts %d, speed packs %d",
		t.Equipment.Dollies, t.Equipment.MachineCarts, t.Equipment.LibraryCarts, t.Equipment.PanelCarts, t.Equipment.SpeedPacks))
	pdf.Ln(8)

	money := func(label string, value decimal.Decimal) {
		pdf.CellFormat(120, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, Money(value), "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}
	money(fmt.Sprintf("Labor (%d min)", t.TotalMinutes), t.Subtotal)
	for _, a := range t.Adjustments {
		money(fmt.Sprintf("%s (%s%%)", a.Flag.String(), a.Rate.Shift(2).String()), a.Amount)
	}
	money(fmt.Sprintf("Travel (%d min)", t.TravelMinutes), t.TravelCost)

	pdf.SetFont("Helvetica", "B", 11)
	money("Total, straight time", t.StraightTimeCost)
	money("Total, overtime", t.OverTimeCost)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		zap.L().Error("quote pdf output failed",
			zap.Int64("quote_id", pq.Quote.ID),
			zap.Error(err),
			zap.String("namespace", "report"))
		return nil, errors.Wrap(err, "render quote pdf")
	}
	return buf.Bytes(), nil
}

func operatorName(pq *quoting.PricedQuote) string {
	if pq.Operator.Realname != "" {
		return pq.Operator.Realname
	}
	return pq.Operator.Username
}

func trim(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
