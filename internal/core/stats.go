package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StatsQuery selects a calendar month.
type StatsQuery struct {
	Month int
	Year  int
}

// StatsResult is the income/expense summary of a month.
type StatsResult struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	NetBalance   decimal.Decimal `json:"net_balance"`
}

func (q StatsQuery) Validate() error {
	if q.Month < 1 || q.Month > 12 {
		return &ValidationError{Field: "month", Reason: fmt.Sprintf("%d is not between 1 and 12", q.Month)}
	}
	if q.Year < 1 {
		return &ValidationError{Field: "year", Reason: fmt.Sprintf("%d is not a valid year", q.Year)}
	}
	return nil
}

// Summarize computes the totals of the transactions dated in q's month.
// Expenses are reported as a negative total.
func Summarize(txs []Transaction, q StatsQuery) StatsResult {
	res := StatsResult{TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
	for _, t := range txs {
		if t.Date.Year() != q.Year || int(t.Date.Month()) != q.Month {
			continue
		}
		if t.IsExpense() {
			res.TotalExpense = res.TotalExpense.Add(t.Amount)
		} else {
			res.TotalIncome = res.TotalIncome.Add(t.Amount)
		}
	}
	res.NetBalance = res.TotalIncome.Add(res.TotalExpense)
	return res
}
