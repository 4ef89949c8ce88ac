package report

import (
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"

	"github.com/estmator/estmator/internal/domain"
)

const quoteSheet = "Sheet1"

var quoteColumns = []string{"ID", "Name", "Client", "Date", "Travel (min)", "Subtotal", "Grand total", "Sent"}

func cellName(col, row int) string {
	return fmt.Sprintf("%c%d", 'A'+col, row)
}

// ExportQuotes writes quotes as an XLSX workbook, one row per quote.
// clients maps client IDs to display names.
func ExportQuotes(w io.Writer, quotes []domain.Quote, clients map[int64]string) error {
	f := excelize.NewFile()
	for i, title := range quoteColumns {
		f.SetCellValue(quoteSheet, cellName(i, 1), title)
	}
	for r, q := range quotes {
		row := r + 2
		sent := ""
		if q.SentAt != nil {
			sent = q.SentAt.Format("2006-01-02 15:04")
		}
		values := []interface{}{
			fmt.Sprint(q.ID),
			q.Name,
			clients[q.ClientID],
			q.Date.Format("2006-01-02"),
			q.TravelTime,
			q.SubTotal.InexactFloat64(),
			q.GrandTotal.InexactFloat64(),
			sent,
		}
		for c, v := range values {
			f.SetCellValue(quoteSheet, cellName(c, row), v)
		}
	}
	return f.Write(w)
}
