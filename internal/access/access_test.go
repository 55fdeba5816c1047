package access

import (
	"context"
	"testing"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/ledger/memory"
	"budget/internal/log"
	"budget/internal/session"

	"golang.org/x/crypto/bcrypt"
)

var (
	anonymous = core.Session{}
	member    = core.Session{Token: "t1", User: &core.User{ID: 1, Roles: []core.Role{core.RoleUser}}}
	admin     = core.Session{Token: "t2", User: &core.User{ID: 2, Roles: []core.Role{core.RoleUser, core.RoleAdmin}}}
)

func TestStateOf(t *testing.T) {
	tests := []struct {
		name string
		s    core.Session
		want State
	}{
		{"anonymous", anonymous, Anonymous},
		{"member", member, Authenticated},
		{"admin", admin, AuthenticatedAdmin},
		{"token without identity", core.Session{Token: "t"}, Anonymous},
	}
	for _, tt := range tests {
		if got := StateOf(tt.s); got != tt.want {
			t.Errorf("%s: StateOf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		s       core.Session
		v       View
		allowed bool
		target  View
	}{
		{"anonymous public", anonymous, ViewLogin, true, ViewLogin},
		{"anonymous dashboard", anonymous, ViewDashboard, false, ViewLogin},
		{"anonymous transactions", anonymous, ViewTransactions, false, ViewLogin},
		{"anonymous admin", anonymous, ViewAdmin, false, ViewLogin},
		{"member dashboard", member, ViewDashboard, true, ViewDashboard},
		{"member admin", member, ViewAdmin, false, ViewDefault},
		{"member user management", member, ViewUserManagement, false, ViewDefault},
		{"admin admin", admin, ViewAdmin, true, ViewAdmin},
		{"admin user management", admin, ViewUserManagement, true, ViewUserManagement},
		{"admin dashboard", admin, ViewDashboard, true, ViewDashboard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.s, tt.v)
			if d.Allowed != tt.allowed || d.Target() != tt.target {
				t.Fatalf("Decide = %+v, want allowed=%v target=%v", d, tt.allowed, tt.target.Name)
			}
			if !d.Allowed && d.Reason == nil {
				t.Fatal("denied decision without a reason")
			}
		})
	}
}

func TestDenialReasons(t *testing.T) {
	if d := Decide(anonymous, ViewAdmin); !core.IsAuth(d.Reason) {
		t.Errorf("anonymous admin reason = %v, want auth error", d.Reason)
	}
	if d := Decide(member, ViewAdmin); !core.IsAuthorization(d.Reason) {
		t.Errorf("member admin reason = %v, want authorization error", d.Reason)
	}
}

func TestLookup(t *testing.T) {
	if Lookup("transactions") != ViewTransactions {
		t.Error("transactions not found")
	}
	if Lookup("does-not-exist") != ViewNotFound {
		t.Error("unknown name should resolve to not-found")
	}
}

func TestGuardWatchFollowsSession(t *testing.T) {
	l := memory.New()
	l.HashCost = bcrypt.MinCost
	if _, err := l.AddUser("root", "root@example.com", "pw", core.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	var store *session.Store
	store = session.New(l.Client(ledger.CredentialFunc(func() string { return store.Credential() })), nil, log.Discard())
	guard := NewGuard(store, log.Discard())

	var targets []string
	stop := guard.Watch(ViewAdmin, func(d Decision) { targets = append(targets, d.Target().Name) })

	ctx := context.Background()
	if _, err := store.Login(ctx, "root@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	store.Logout(ctx)
	stop()
	if _, err := store.Login(ctx, "root@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	want := []string{"login", "admin", "login"}
	if len(targets) != len(want) {
		t.Fatalf("targets = %v, want %v", targets, want)
	}
	for i := range want {
		if targets[i] != want[i] {
			t.Fatalf("targets = %v, want %v", targets, want)
		}
	}
	if d := guard.Resolve(ViewAdmin); !d.Allowed {
		t.Fatalf("Resolve after login = %+v", d)
	}
}
