// Package core provides the domain types shared by the ledger client.
//
// This file contains amount parsing and currency handling. Amounts are
// signed decimals: negative values are expenses, the rest income.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is one of the currency codes a user may choose for display.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	HUF Currency = "HUF"
	CHF Currency = "CHF"
	JPY Currency = "JPY"

	DefaultCurrency = USD
)

// Currencies lists the selectable currency codes in display order.
var Currencies = []Currency{USD, EUR, GBP, HUF, CHF, JPY}

// ParseCurrency validates a currency code against the selectable set.
func ParseCurrency(s string) (Currency, error) {
	code := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range Currencies {
		if c == code && money.GetCurrency(string(code)) != nil {
			return code, nil
		}
	}
	return "", &ValidationError{Field: "currency", Reason: "unsupported currency " + s}
}

// OrDefault returns c, or the default currency when c is empty.
func (c Currency) OrDefault() Currency {
	if c == "" {
		return DefaultCurrency
	}
	return c
}

// ParseAmount parses a signed decimal amount. Both dot and comma decimal
// separators are accepted.
//
// Examples:
//
//	ParseAmount("-50")    -> -50
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("abc")    -> ValidationError
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must not be empty"}
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must be a number"}
	}
	return d, nil
}

// FormatAmount renders an amount in the currency's conventional format,
// e.g. "-$50.00" or "1 200 Ft".
func FormatAmount(amount decimal.Decimal, c Currency) string {
	cur := money.New(0, string(c.OrDefault())).Currency()
	minor := amount.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}
