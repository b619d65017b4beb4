package export

import (
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Invoice {{.InvoiceNumber}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 11px; color: #222; }
h1 { font-size: 20px; margin-bottom: 4px; }
.meta td { padding: 1px 12px 1px 0; }
table.lines { width: 100%; border-collapse: collapse; margin-top: 16px; }
table.lines th, table.lines td { border-bottom: 1px solid #ddd; padding: 4px; }
.num { text-align: right; }
.totals { margin-top: 12px; margin-left: auto; }
.totals td { padding: 2px 8px; }
.status { font-weight: bold; }
</style>
</head>
<body>
<h1>Invoice {{.InvoiceNumber}}</h1>
<table class="meta">
<tr><td>Status</td><td class="status">{{.Status}}</td></tr>
<tr><td>Client</td><td>{{.ClientID}}</td></tr>
{{- if .ProjectID}}
<tr><td>Project</td><td>{{.ProjectID}}</td></tr>
{{- end}}
<tr><td>Issued</td><td>{{date .IssueDate}}</td></tr>
<tr><td>Due</td><td>{{date .DueDate}}</td></tr>
</table>

<table class="lines">
<thead>
<tr><th>#</th><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Tax rate</th><th class="num">Discount</th><th class="num">Total</th></tr>
</thead>
<tbody>
{{- range .Items}}
<tr>
<td>{{.LineNumber}}</td>
<td>{{.Description}}</td>
<td class="num">{{.Quantity}}</td>
<td class="num">{{.UnitPrice}}</td>
<td class="num">{{percent .TaxRate}}</td>
<td class="num">{{.Discount}}</td>
<td class="num">{{.Total}}</td>
</tr>
{{- end}}
</tbody>
</table>

<table class="totals">
<tr><td>Subtotal</td><td class="num">{{.DisplaySubtotal}}</td></tr>
<tr><td>Tax</td><td class="num">{{.DisplayTax}}</td></tr>
<tr><td><b>Total</b></td><td class="num"><b>{{.DisplayTotal}}</b></td></tr>
<tr><td>Paid</td><td class="num">{{.DisplayPaid}}</td></tr>
<tr><td>Balance due</td><td class="num">{{.DisplayBalance}}</td></tr>
</table>

{{- if .Payments}}
<h3>Payments</h3>
<table class="lines">
<thead><tr><th>Receipt</th><th>Date</th><th>Method</th><th class="num">Amount</th></tr></thead>
<tbody>
{{- range .Payments}}
<tr><td>{{.ReceiptNumber}}</td><td>{{date .PaymentDate}}</td><td>{{.Method}}</td><td class="num">{{.Amount}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}

{{- if .Notes}}
<p>{{.Notes}}</p>
{{- end}}
<p style="color:#888">Generated {{date .GeneratedAt}}</p>
</body>
</html>`

func parseInvoiceTemplate() (*template.Template, error) {
	return template.New("invoice").Funcs(template.FuncMap{
		"date": func(t time.Time) string {
			return formatDate(t)
		},
		"percent": func(rate decimal.Decimal) string {
			return rate.Mul(decimal.NewFromInt(100)).String() + "%"
		},
	}).Parse(invoiceTemplate)
}
