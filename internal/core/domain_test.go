package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDraftValidate(t *testing.T) {
	cases := []struct {
		name string
		d    Draft
		ok   bool
	}{
		{"valid", Draft{Description: "Coffee", Amount: decimal.NewFromInt(-50)}, true},
		{"zero amount allowed", Draft{Description: "Gift", Amount: decimal.Zero}, true},
		{"blank description", Draft{Description: "   ", Amount: decimal.NewFromInt(1)}, false},
		{"empty description", Draft{Amount: decimal.NewFromInt(1)}, false},
		{"long description", Draft{Description: strings.Repeat("x", 201), Amount: decimal.NewFromInt(1)}, true},
		{"long accented description", Draft{Description: strings.Repeat("é", 120), Amount: decimal.NewFromInt(1)}, true},
		{"long category", Draft{Description: "Rent", Category: strings.Repeat("c", 80), Amount: decimal.NewFromInt(1)}, true},
	}
	for _, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: expected ok, got %v", tc.name, err)
		}
		if !tc.ok && !IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestNewDraftDefaultsCategory(t *testing.T) {
	d, err := NewDraft("Coffee", "-50", "", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Category != DefaultCategory {
		t.Fatalf("category = %q, want %q", d.Category, DefaultCategory)
	}
	if !d.Amount.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("amount = %s, want -50", d.Amount)
	}

	if _, err := NewDraft("Coffee", "fifty", "", time.Time{}); !IsValidation(err) {
		t.Fatalf("expected validation error for non-numeric amount, got %v", err)
	}
}

func TestSessionValidate(t *testing.T) {
	if err := (Session{}).Validate(); err != nil {
		t.Fatalf("anonymous session should be valid: %v", err)
	}
	if err := (Session{Token: "t"}).Validate(); err == nil {
		t.Fatal("token without user should be invalid")
	}
	if err := (Session{User: &User{ID: 1}}).Validate(); err == nil {
		t.Fatal("user without token should be invalid")
	}
	if err := (Session{Token: "t", User: &User{ID: 1}}).Validate(); err != nil {
		t.Fatalf("complete session should be valid: %v", err)
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := Session{Token: "t", User: &User{ID: 1, Roles: []Role{RoleUser}}}
	c := s.Clone()
	c.User.Roles[0] = RoleAdmin
	c.User.Username = "changed"
	if s.User.Roles[0] != RoleUser || s.User.Username != "" {
		t.Fatalf("clone shares memory with original: %+v", s.User)
	}
}

func TestPatchApply(t *testing.T) {
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	orig := Transaction{ID: 7, Description: "Lunch", Amount: decimal.NewFromInt(-12), Category: "Food", Date: date}

	desc := "Dinner"
	got := Patch{Description: &desc}.Apply(orig)
	if got.Description != "Dinner" {
		t.Fatalf("description not patched: %q", got.Description)
	}
	if !got.Amount.Equal(orig.Amount) || got.Category != orig.Category || !got.Date.Equal(orig.Date) || got.ID != orig.ID {
		t.Fatalf("unpatched fields changed: %+v", got)
	}

	if err := (Patch{}).Validate(); !IsValidation(err) {
		t.Fatalf("empty patch should be rejected, got %v", err)
	}
}

func TestUserHasRole(t *testing.T) {
	u := User{Roles: []Role{RoleUser}}
	if !u.HasRole(RoleUser) || u.IsAdmin() {
		t.Fatalf("unexpected roles check for %+v", u)
	}
	u.Roles = append(u.Roles, RoleAdmin)
	if !u.IsAdmin() {
		t.Fatal("expected admin")
	}
}

func TestSummarize(t *testing.T) {
	march := func(d int) time.Time { return time.Date(2025, 3, d, 10, 0, 0, 0, time.UTC) }
	txs := []Transaction{
		{Amount: decimal.NewFromInt(1000), Date: march(1)},
		{Amount: decimal.RequireFromString("-49.50"), Date: march(2)},
		{Amount: decimal.NewFromInt(-100), Date: march(3)},
		{Amount: decimal.NewFromInt(500), Date: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	got := Summarize(txs, StatsQuery{Month: 3, Year: 2025})
	if !got.TotalIncome.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("income = %s", got.TotalIncome)
	}
	if !got.TotalExpense.Equal(decimal.RequireFromString("-149.50")) {
		t.Fatalf("expense = %s", got.TotalExpense)
	}
	if !got.NetBalance.Equal(decimal.RequireFromString("850.50")) {
		t.Fatalf("net = %s", got.NetBalance)
	}
}

func TestStatsQueryValidate(t *testing.T) {
	for _, q := range []StatsQuery{{0, 2025}, {13, 2025}, {1, 0}} {
		if err := q.Validate(); !IsValidation(err) {
			t.Fatalf("%+v: expected validation error, got %v", q, err)
		}
	}
	if err := (StatsQuery{12, 2025}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
