// Package export renders invoice read models into downloadable documents.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/casehub/backend/internal/domain/ledger"
	"github.com/casehub/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Record types in the first CSV column
const (
	RecordInvoice = "INVOICE"
	RecordItem    = "ITEM"
	RecordPayment = "PAYMENT"
)

// ContentTypeCSV is the media type of CSVWriter output
const ContentTypeCSV = "text/csv; charset=utf-8"

// CSVHeader lists the columns written by CSVWriter. Columns that do not
// apply to a record type are left empty.
var CSVHeader = []string{
	"record_type",
	"invoice_number",
	"client_id",
	"status",
	"currency",
	"issue_date",
	"due_date",
	"subtotal",
	"tax_amount",
	"total_amount",
	"paid_amount",
	"balance_due",
	"line_number",
	"description",
	"quantity",
	"unit_price",
	"tax_rate",
	"discount",
	"amount",
	"receipt_number",
	"payment_date",
	"method",
	"transaction_id",
}

const dateLayout = "2006-01-02"

// CSVWriter writes invoices as one INVOICE row followed by its ITEM and
// PAYMENT rows.
type CSVWriter struct{}

// NewCSVWriter creates a CSVWriter
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// Write writes the header and every invoice to w
func (CSVWriter) Write(w io.Writer, invoices []ledger.InvoiceExport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range invoices {
		for _, row := range invoiceRows(&invoices[i]) {
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write invoice %s: %w", invoices[i].InvoiceNumber, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func invoiceRows(exp *ledger.InvoiceExport) [][]string {
	rows := make([][]string, 0, 1+len(exp.Items)+len(exp.Payments))
	scale := valueobject.Currency(exp.Currency).Scale()

	head := newRow(RecordInvoice, exp)
	head[2] = exp.ClientID.String()
	head[3] = exp.Status.String()
	head[4] = exp.Currency
	head[5] = formatDate(exp.IssueDate)
	head[6] = formatDate(exp.DueDate)
	head[7] = fixed(exp.Subtotal, scale)
	head[8] = fixed(exp.TaxAmount, scale)
	head[9] = fixed(exp.TotalAmount, scale)
	head[10] = fixed(exp.PaidAmount, scale)
	head[11] = fixed(exp.BalanceDue, scale)
	rows = append(rows, head)

	for _, item := range exp.Items {
		row := newRow(RecordItem, exp)
		row[4] = exp.Currency
		row[12] = strconv.Itoa(item.LineNumber)
		row[13] = item.Description
		row[14] = item.Quantity.String()
		row[15] = item.UnitPrice.String()
		row[16] = item.TaxRate.String()
		row[17] = fixed(item.Discount, scale)
		row[18] = fixed(item.Total, scale)
		rows = append(rows, row)
	}

	for _, p := range exp.Payments {
		row := newRow(RecordPayment, exp)
		row[4] = exp.Currency
		row[18] = fixed(p.Amount, scale)
		row[19] = p.ReceiptNumber
		row[20] = formatDate(p.PaymentDate)
		row[21] = string(p.Method)
		row[22] = p.TransactionID
		rows = append(rows, row)
	}
	return rows
}

func newRow(recordType string, exp *ledger.InvoiceExport) []string {
	row := make([]string, len(CSVHeader))
	row[0] = recordType
	row[1] = exp.InvoiceNumber
	return row
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func fixed(d decimal.Decimal, scale int32) string {
	return d.StringFixed(scale)
}
