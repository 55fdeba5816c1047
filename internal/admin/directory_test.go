package admin

import (
	"context"
	"errors"
	"testing"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/ledger/memory"
	"budget/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDirectory(t *testing.T, as string) (*Directory, *memory.Ledger) {
	t.Helper()
	l := memory.New()
	l.HashCost = bcrypt.MinCost
	_, err := l.AddUser("admin", "admin@example.com", "secret", core.RoleAdmin)
	require.NoError(t, err)
	_, err = l.AddUser("alice", "alice@example.com", "secret", core.RoleUser)
	require.NoError(t, err)

	res, err := l.Login(as+"@example.com", "secret")
	require.NoError(t, err)
	client := l.Client(ledger.CredentialFunc(func() string { return res.Token }))
	return New(client, log.Discard()), l
}

func TestLoad(t *testing.T) {
	d, _ := newDirectory(t, "admin")
	require.NoError(t, d.Load(context.Background()))
	assert.Len(t, d.Users(), 2)
	assert.ElementsMatch(t, []core.Role{core.RoleAdmin, core.RoleUser}, d.Roles())
}

func TestLoadRequiresAdmin(t *testing.T) {
	d, _ := newDirectory(t, "alice")
	err := d.Load(context.Background())
	assert.True(t, core.IsAuthorization(err))
	assert.Empty(t, d.Users())
}

func TestUpdateUser(t *testing.T) {
	d, _ := newDirectory(t, "admin")
	ctx := context.Background()
	require.NoError(t, d.Load(ctx))
	alice := d.Users()[1]

	bogus := core.Role("owner")
	_, err := d.UpdateUser(ctx, alice.ID, core.UserPatch{Role: &bogus})
	assert.True(t, core.IsValidation(err))

	_, err = d.UpdateUser(ctx, 999, core.UserPatch{Role: &bogus})
	assert.True(t, core.IsNotFound(err))

	_, err = d.UpdateUser(ctx, alice.ID, core.UserPatch{})
	assert.True(t, core.IsValidation(err))

	role := core.RoleAdmin
	name := "alice2"
	acc, err := d.UpdateUser(ctx, alice.ID, core.UserPatch{Role: &role, Username: &name})
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, acc.Role)

	users := d.Users()
	assert.Equal(t, acc, users[1], "updated in place")
	assert.Equal(t, "admin", users[0].Username)
}

func TestDeleteUser(t *testing.T) {
	d, _ := newDirectory(t, "admin")
	ctx := context.Background()
	require.NoError(t, d.Load(ctx))
	alice := d.Users()[1]

	deleted, err := d.DeleteUser(ctx, alice.ID, core.ConfirmFunc(func(context.Context, string) bool { return false }))
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Len(t, d.Users(), 2)

	deleted, err = d.DeleteUser(ctx, alice.ID, core.Confirmed)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Len(t, d.Users(), 1)

	_, err = d.DeleteUser(ctx, alice.ID, core.Confirmed)
	assert.True(t, core.IsNotFound(err))
}

type failingRoles struct {
	ledger.AdminClient
}

func (failingRoles) ListUsers(context.Context) ([]core.Account, error) {
	return []core.Account{{ID: 1}}, nil
}

func (failingRoles) ListRoles(context.Context) ([]core.Role, error) {
	return nil, &core.NetworkError{Op: "list", Err: errors.New("boom")}
}

func TestLoadFailureKeepsPreviousListing(t *testing.T) {
	d := New(failingRoles{}, log.Discard())
	err := d.Load(context.Background())
	var ne *core.NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Empty(t, d.Users())
}
