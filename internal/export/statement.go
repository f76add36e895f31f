// Package export renders ledger statements (CSV, XLSX, printable HTML) and
// the JSON backup of a whole shop.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"dokan/internal/domain"
)

const statementSheet = "Statement"

var statementHeader = []string{"Description", "Category", "Type", "Amount", "Date"}

// Filename names a statement download: one day's statement when day is set,
// the full report otherwise.
func Filename(day string, now time.Time, ext string) string {
	if day != "" {
		return fmt.Sprintf("Statement_%s.%s", day, ext)
	}
	return fmt.Sprintf("Full_Report_%s.%s", now.Format(domain.DateLayout), ext)
}

func statementRow(tx domain.Transaction) []string {
	return []string{tx.Description, tx.Category, string(tx.Type), tx.Amount.String(), tx.Date}
}

// WriteCSV writes txs in the given order under the statement header.
func WriteCSV(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statementHeader); err != nil {
		return err
	}
	for _, tx := range txs {
		if err := cw.Write(statementRow(tx)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same table as WriteCSV as a single-sheet workbook.
// Amounts are numeric cells so the sheet can sum them.
func WriteXLSX(w io.Writer, txs []domain.Transaction) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(statementSheet)
	if err != nil {
		return errors.Wrap(err, "create sheet")
	}
	f.SetActiveSheet(index)

	for i, h := range statementHeader {
		if err := f.SetCellValue(statementSheet, fmt.Sprintf("%c%d", 'A'+i, 1), h); err != nil {
			return err
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "header style")
	}
	if err := f.SetRowStyle(statementSheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, tx := range txs {
		row := i + 2
		values := []any{tx.Description, tx.Category, string(tx.Type), tx.Amount.InexactFloat64(), tx.Date}
		for col, v := range values {
			if err := f.SetCellValue(statementSheet, fmt.Sprintf("%c%d", 'A'+col, row), v); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(statementSheet, "A", "A", 40)
	_ = f.SetColWidth(statementSheet, "B", "E", 16)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return errors.Wrap(err, "write workbook")
}
