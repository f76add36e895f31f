package export

import (
	"html/template"
	"io"

	"dokan/internal/domain"
	"dokan/internal/money"
)

// Statement is the data behind the printable HTML statement.
type Statement struct {
	ShopName     string
	Title        string
	Currency     string
	Language     domain.Language
	Transactions []domain.Transaction
	Totals       domain.Aggregate
}

type printableRow struct {
	Date        string
	Description string
	Category    string
	Type        string
	Amount      string
}

type printableView struct {
	ShopName string
	Title    string
	Rows     []printableRow
	Income   string
	Expense  string
	Dues     string
	Balance  string
}

var statementHTMLTmpl = template.Must(template.New("statement").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>{{.ShopName}}</h2>
  <h3>{{.Title}}</h3>
  <p>Income: {{.Income}} | Expense: {{.Expense}} | Dues: {{.Dues}} | Balance: {{.Balance}}</p>
  <table>
    <thead><tr><th>Date</th><th>Description</th><th>Category</th><th>Type</th><th>Amount</th></tr></thead>
    <tbody>{{range .Rows}}<tr><td>{{.Date}}</td><td>{{.Description}}</td><td>{{.Category}}</td><td>{{.Type}}</td><td class="num">{{.Amount}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

// WriteHTML renders a print-ready statement. Amounts use the shop currency
// and the reader's language.
func WriteHTML(w io.Writer, st Statement) error {
	view := printableView{
		ShopName: st.ShopName,
		Title:    st.Title,
		Income:   money.Format(st.Totals.Income, st.Currency, st.Language),
		Expense:  money.Format(st.Totals.Expense, st.Currency, st.Language),
		Dues:     money.Format(st.Totals.Dues, st.Currency, st.Language),
		Balance:  money.Format(st.Totals.Balance(), st.Currency, st.Language),
		Rows:     make([]printableRow, 0, len(st.Transactions)),
	}
	for _, tx := range st.Transactions {
		view.Rows = append(view.Rows, printableRow{
			Date:        tx.Date,
			Description: tx.Description,
			Category:    tx.Category,
			Type:        string(tx.Type),
			Amount:      money.Format(tx.Amount, st.Currency, st.Language),
		})
	}
	return statementHTMLTmpl.Execute(w, view)
}
