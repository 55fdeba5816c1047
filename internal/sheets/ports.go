// Package sheets exports transaction listings to spreadsheets.
package sheets

import (
	"context"
	"strconv"
	"time"

	"budget/internal/core"
)

type (
	// Exporter appends transactions to an external sheet and returns a
	// reference to the written range.
	Exporter interface {
		Export(ctx context.Context, txs []core.Transaction) (ref string, err error)
	}
)

// Header is the column order of an exported row.
var Header = []string{"Date", "Description", "Amount", "Category", "Owner"}

// Row renders a transaction in Header order. The amount stays numeric so
// the spreadsheet can total it.
func Row(t core.Transaction) []any {
	owner := t.Username
	if owner == "" && t.UserID != 0 {
		owner = "#" + strconv.FormatInt(t.UserID, 10)
	}
	return []any{
		t.Date.UTC().Format(time.DateOnly),
		t.Description,
		t.Amount.InexactFloat64(),
		t.Category,
		owner,
	}
}

// Rows renders every transaction, preserving order.
func Rows(txs []core.Transaction) [][]any {
	out := make([][]any, 0, len(txs))
	for _, t := range txs {
		out = append(out, Row(t))
	}
	return out
}
