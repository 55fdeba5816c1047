package session

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

func newTestStore(t *testing.T, p Persister) (*Store, *memory.Ledger) {
	t.Helper()
	l := memory.New()
	l.HashCost = bcrypt.MinCost
	_, err := l.AddUser("alice", "alice@example.com", "secret", core.RoleUser)
	require.NoError(t, err)

	var store *Store
	client := l.Client(ledger.CredentialFunc(func() string { return store.Credential() }))
	store = New(client, p, log.Discard())
	return store, l
}

func TestLoginEstablishesAndPersistsSession(t *testing.T) {
	p := NewMemoryPersister()
	store, _ := newTestStore(t, p)
	ctx := context.Background()

	var seen []core.Session
	store.Subscribe(func(s core.Session) { seen = append(seen, s) })

	sess, err := store.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	require.NotNil(t, sess.User)
	assert.True(t, sess.User.HasRole(core.RoleUser))
	assert.Equal(t, sess.Token, store.Credential())

	require.Len(t, seen, 1)
	assert.Equal(t, "alice", seen[0].User.Username)

	persisted, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.Token, persisted.Token)
}

func TestLoginFailures(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.Login(ctx, "alice@example.com", "wrong")
	var ae *core.AuthError
	require.ErrorAs(t, err, &ae)
	assert.True(t, store.Current().Anonymous())

	_, err = store.Login(ctx, "", "secret")
	assert.True(t, core.IsValidation(err))
}

func TestInitRehydrates(t *testing.T) {
	p := NewMemoryPersister()
	first, _ := newTestStore(t, p)
	ctx := context.Background()
	sess, err := first.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	second := New(nil, p, log.Discard())
	require.NoError(t, second.Init(ctx))
	assert.Equal(t, sess.Token, second.Credential())
	assert.Equal(t, "alice", second.Current().User.Username)
}

type brokenPersister struct {
	session core.Session
	loadErr error
	cleared bool
}

func (b *brokenPersister) Load(context.Context) (core.Session, error) { return b.session, b.loadErr }
func (b *brokenPersister) Save(context.Context, core.Session) error   { return nil }
func (b *brokenPersister) Clear(context.Context) error {
	b.cleared = true
	return nil
}

func TestInitDiscardsBadSnapshots(t *testing.T) {
	tests := []struct {
		name string
		p    *brokenPersister
	}{
		{"token without identity", &brokenPersister{session: core.Session{Token: "t"}}},
		{"identity without token", &brokenPersister{session: core.Session{User: &core.User{ID: 1}}}},
		{"unreadable", &brokenPersister{loadErr: errors.New("corrupt snapshot")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New(nil, tt.p, log.Discard())
			require.NoError(t, store.Init(context.Background()))
			assert.True(t, store.Current().Anonymous())
			assert.True(t, tt.p.cleared)
		})
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	p := NewMemoryPersister()
	store, _ := newTestStore(t, p)
	ctx := context.Background()
	_, err := store.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	notified := 0
	store.Subscribe(func(core.Session) { notified++ })

	store.Logout(ctx)
	store.Logout(ctx)
	assert.True(t, store.Current().Anonymous())
	assert.Empty(t, store.Credential())
	assert.Equal(t, 1, notified)

	persisted, err := p.Load(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.Anonymous())
}

func TestUpdateIdentity(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	eur := core.EUR
	store.UpdateIdentity(ctx, core.UserPatch{Currency: &eur})
	assert.True(t, store.Current().Anonymous(), "anonymous update must be a no-op")

	_, err := store.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	store.UpdateIdentity(ctx, core.UserPatch{Currency: &eur})

	u := store.Current().User
	assert.Equal(t, core.EUR, u.Currency)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
}

func TestUpdateCurrency(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	_, err := store.UpdateCurrency(ctx, "EUR")
	assert.True(t, core.IsAuth(err))

	_, err = store.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	_, err = store.UpdateCurrency(ctx, "XYZ")
	assert.True(t, core.IsValidation(err))

	u, err := store.UpdateCurrency(ctx, "gbp")
	require.NoError(t, err)
	assert.Equal(t, core.GBP, u.Currency)
	assert.Equal(t, core.GBP, store.Current().User.Currency)
}

// logoutMidUpdate ends the session while the profile request is in flight.
type logoutMidUpdate struct {
	Client
	store *Store
}

func (c *logoutMidUpdate) UpdateProfileSettings(ctx context.Context, cur core.Currency) (core.User, error) {
	c.store.Logout(ctx)
	return core.User{ID: 1, Username: "alice", Currency: cur}, nil
}

func TestUpdateCurrencyWhenLoggedOutMidRequest(t *testing.T) {
	p := NewMemoryPersister()
	store, _ := newTestStore(t, p)
	ctx := context.Background()
	_, err := store.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	store.client = &logoutMidUpdate{Client: store.client, store: store}

	var u core.User
	require.NotPanics(t, func() { u, err = store.UpdateCurrency(ctx, "EUR") })
	assert.True(t, core.IsAuth(err))
	assert.Zero(t, u)

	assert.True(t, store.Current().Anonymous())
	assert.Empty(t, store.Credential())
	persisted, err := p.Load(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.Anonymous(), "logout must not be undone")
}

func TestUpdateIdentityAfterLogoutStaysAnonymous(t *testing.T) {
	p := NewMemoryPersister()
	store, _ := newTestStore(t, p)
	ctx := context.Background()
	_, err := store.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Logout(ctx)
	}()
	eur := core.EUR
	store.UpdateIdentity(ctx, core.UserPatch{Currency: &eur})
	<-done

	// Whichever ran first, the logout wins.
	assert.True(t, store.Current().Anonymous())
	persisted, err := p.Load(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.Anonymous())
}

func TestRegisterLogsIn(t *testing.T) {
	store, _ := newTestStore(t, nil)
	sess, err := store.Register(context.Background(), "bob", "bob@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob", sess.User.Username)
	assert.Equal(t, sess.Token, store.Credential())

	_, err = store.Register(context.Background(), "bob", "bob2@example.com", "pw")
	assert.True(t, core.IsValidation(err))
}

func TestSubscribersRunInOrderAndUnsubscribe(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	var order []string
	unsubA := store.Subscribe(func(core.Session) { order = append(order, "a") })
	store.Subscribe(func(core.Session) { order = append(order, "b") })

	_, err := store.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)

	unsubA()
	unsubA()
	store.Logout(ctx)
	assert.Equal(t, []string{"a", "b", "b"}, order)
}

func TestHandleUnauthorizedDropsSession(t *testing.T) {
	store, l := newTestStore(t, nil)
	ctx := context.Background()
	sess, err := store.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	l.Revoke(sess.Token)
	store.HandleUnauthorized()
	assert.True(t, store.Current().Anonymous())

	store.HandleUnauthorized()
	assert.True(t, store.Current().Anonymous())
}

func TestSnapshotsAreIndependent(t *testing.T) {
	store, _ := newTestStore(t, nil)
	_, err := store.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)

	snap := store.Current()
	snap.User.Username = "mallory"
	snap.User.Roles[0] = core.RoleAdmin
	assert.Equal(t, "alice", store.Current().User.Username)
	assert.False(t, store.Current().User.IsAdmin())
}
