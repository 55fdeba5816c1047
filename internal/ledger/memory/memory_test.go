package memory

import (
	"context"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := New()
	l.HashCost = bcrypt.MinCost
	if _, err := l.AddUser("admin", "admin@example.com", "secret", core.RoleAdmin); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if _, err := l.AddUser("alice", "alice@example.com", "secret", core.RoleUser); err != nil {
		t.Fatalf("add alice: %v", err)
	}
	if _, err := l.AddUser("bob", "bob@example.com", "secret", core.RoleUser); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	return l
}

func login(t *testing.T, l *Ledger, email string) string {
	t.Helper()
	res, err := l.Login(email, "secret")
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res.Token
}

func TestLogin(t *testing.T) {
	l := newTestLedger(t)
	res, err := l.Login("alice@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token == "" || res.User.Username != "alice" || !res.User.HasRole(core.RoleUser) {
		t.Fatalf("unexpected login result: %+v", res)
	}

	if _, err := l.Login("alice@example.com", "wrong"); !core.IsAuth(err) {
		t.Fatalf("expected auth error for bad password, got %v", err)
	}
	if _, err := l.Login("nobody@example.com", "secret"); !core.IsAuth(err) {
		t.Fatalf("expected auth error for unknown email, got %v", err)
	}
}

func TestTransactionsAreScopedToOwner(t *testing.T) {
	l := newTestLedger(t)
	alice := login(t, l, "alice@example.com")
	bob := login(t, l, "bob@example.com")

	if _, err := l.CreateTransaction(alice, core.Draft{Description: "Coffee", Amount: decimal.NewFromInt(-3)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := l.CreateTransaction(bob, core.Draft{Description: "Rent", Amount: decimal.NewFromInt(-900), Category: "Home"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := l.ListTransactions(alice, core.Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Description != "Coffee" || got[0].Category != core.DefaultCategory {
		t.Fatalf("unexpected alice listing: %+v", got)
	}

	if _, err := l.ListTransactions("", core.Query{}); !core.IsAuth(err) {
		t.Fatalf("expected auth error without token, got %v", err)
	}
}

func TestListTransactionsQueryAndOrder(t *testing.T) {
	l := newTestLedger(t)
	alice := login(t, l, "alice@example.com")
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, d := range []core.Draft{
		{Description: "Salary", Amount: decimal.NewFromInt(3000), Category: "Income", Date: base},
		{Description: "Coffee beans", Amount: decimal.NewFromInt(-15), Category: "Food", Date: base.Add(24 * time.Hour)},
		{Description: "coffee shop", Amount: decimal.NewFromInt(-4), Category: "Eating out", Date: base.Add(48 * time.Hour)},
	} {
		if _, err := l.CreateTransaction(alice, d); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	all, _ := l.ListTransactions(alice, core.Query{})
	if len(all) != 3 || all[0].Description != "coffee shop" || all[2].Description != "Salary" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	got, _ := l.ListTransactions(alice, core.Query{Search: "COFFEE"})
	if len(got) != 2 {
		t.Fatalf("search should be case-insensitive, got %+v", got)
	}
	got, _ = l.ListTransactions(alice, core.Query{Search: "coffee", Category: "Food"})
	if len(got) != 1 || got[0].Description != "Coffee beans" {
		t.Fatalf("unexpected combined query result: %+v", got)
	}
}

func TestOwnershipAndAdminOverride(t *testing.T) {
	l := newTestLedger(t)
	alice := login(t, l, "alice@example.com")
	bob := login(t, l, "bob@example.com")
	admin := login(t, l, "admin@example.com")

	tx, err := l.CreateTransaction(alice, core.Draft{Description: "Lunch", Amount: decimal.NewFromInt(-12)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	desc := "Hacked"
	if _, err := l.UpdateTransaction(bob, tx.ID, core.Patch{Description: &desc}); !core.IsAuthorization(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := l.DeleteTransaction(bob, tx.ID); !core.IsAuthorization(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	desc = "Team lunch"
	updated, err := l.UpdateTransaction(admin, tx.ID, core.Patch{Description: &desc})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Description != "Team lunch" || updated.UserID != tx.UserID {
		t.Fatalf("unexpected update: %+v", updated)
	}

	if err := l.DeleteTransaction(alice, 999); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := l.DeleteTransaction(admin, tx.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestListAllTransactionsRequiresAdmin(t *testing.T) {
	l := newTestLedger(t)
	alice := login(t, l, "alice@example.com")
	admin := login(t, l, "admin@example.com")
	_, _ = l.CreateTransaction(alice, core.Draft{Description: "Book", Amount: decimal.NewFromInt(-20)})

	if _, err := l.ListAllTransactions(alice); !core.IsAuthorization(err) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	all, err := l.ListAllTransactions(admin)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || all[0].Username != "alice" || all[0].Currency != core.DefaultCurrency {
		t.Fatalf("admin listing should carry owner details: %+v", all)
	}
}

func TestStatsAndCategories(t *testing.T) {
	l := newTestLedger(t)
	alice := login(t, l, "alice@example.com")
	day := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	_, _ = l.CreateTransaction(alice, core.Draft{Description: "Pay", Amount: decimal.NewFromInt(100), Category: "Income", Date: day})
	_, _ = l.CreateTransaction(alice, core.Draft{Description: "Food", Amount: decimal.NewFromInt(-40), Category: "Food", Date: day})

	res, err := l.GetStats(alice, core.StatsQuery{Month: 2, Year: 2025})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !res.NetBalance.Equal(decimal.NewFromInt(60)) || !res.TotalExpense.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("unexpected stats: %+v", res)
	}

	empty, err := l.GetStats(alice, core.StatsQuery{Month: 3, Year: 2025})
	if err != nil || !empty.NetBalance.IsZero() {
		t.Fatalf("empty month should be zero: %+v err=%v", empty, err)
	}

	cats, err := l.ListCategories(alice)
	if err != nil || len(cats) != 2 || cats[0] != "Food" || cats[1] != "Income" {
		t.Fatalf("unexpected categories: %v err=%v", cats, err)
	}
}

func TestAdminUserManagement(t *testing.T) {
	l := newTestLedger(t)
	admin := login(t, l, "admin@example.com")
	bob := login(t, l, "bob@example.com")
	_, _ = l.CreateTransaction(bob, core.Draft{Description: "x", Amount: decimal.NewFromInt(1)})

	users, err := l.ListUsers(admin)
	if err != nil || len(users) != 3 {
		t.Fatalf("list users: %v err=%v", users, err)
	}
	bobID := users[2].ID

	bad := core.Role("owner")
	if _, err := l.UpdateUser(admin, bobID, core.UserPatch{Role: &bad}); !core.IsValidation(err) {
		t.Fatalf("expected validation error for unknown role, got %v", err)
	}
	role := core.RoleAdmin
	acc, err := l.UpdateUser(admin, bobID, core.UserPatch{Role: &role})
	if err != nil || acc.Role != core.RoleAdmin {
		t.Fatalf("update user: %+v err=%v", acc, err)
	}

	if err := l.DeleteUser(admin, bobID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := l.ListTransactions(bob, core.Query{}); !core.IsAuth(err) {
		t.Fatalf("deleted user's token should be revoked, got %v", err)
	}
	all, _ := l.ListAllTransactions(admin)
	if len(all) != 0 {
		t.Fatalf("deleted user's transactions should be gone: %+v", all)
	}
}

func TestClientReadsCredentialPerCall(t *testing.T) {
	l := newTestLedger(t)
	var token string
	c := l.Client(ledger.CredentialFunc(func() string { return token }))
	ctx := context.Background()

	if _, err := c.ListTransactions(ctx, core.Query{}); !core.IsAuth(err) {
		t.Fatalf("expected auth error before login, got %v", err)
	}
	res, err := c.Login(ctx, "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	token = res.Token
	if _, err := c.ListTransactions(ctx, core.Query{}); err != nil {
		t.Fatalf("list after login: %v", err)
	}
}
