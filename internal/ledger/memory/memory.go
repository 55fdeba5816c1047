// Package memory is an in-process ledger that applies the same rules as the
// remote service: bcrypt-checked logins, bearer tokens, ownership checks with
// an administrator override, and newest-first listings.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"

	"golang.org/x/crypto/bcrypt"
)

type account struct {
	core.Account
	passwordHash []byte
}

type Ledger struct {
	mu       sync.Mutex
	users    map[int64]*account
	tokens   map[string]int64
	txs      []core.Transaction
	roles    []core.Role
	nextUser int64
	nextTx   int64

	// HashCost is the bcrypt cost for new passwords.
	HashCost int
	// Now stamps transactions created without a date.
	Now func() time.Time
}

// Ensure interface conformance
var _ ledger.Client = (*Client)(nil)

func New() *Ledger {
	return &Ledger{
		users:    make(map[int64]*account),
		tokens:   make(map[string]int64),
		roles:    []core.Role{core.RoleAdmin, core.RoleUser},
		HashCost: bcrypt.DefaultCost,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewSeeded returns a ledger holding an administrator and a regular user,
// both with the password "password".
func NewSeeded() *Ledger {
	l := New()
	_, _ = l.AddUser("admin", "admin@example.com", "password", core.RoleAdmin)
	_, _ = l.AddUser("demo", "demo@example.com", "password", core.RoleUser)
	return l
}

// AddUser creates an account directly, bypassing registration.
func (l *Ledger) AddUser(username, email, password string, role core.Role) (core.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addUserLocked(username, email, password, role)
}

func (l *Ledger) addUserLocked(username, email, password string, role core.Role) (core.Account, error) {
	if username == "" || email == "" || password == "" {
		return core.Account{}, &core.ValidationError{Reason: "email, username and password are required"}
	}
	for _, u := range l.users {
		if strings.EqualFold(u.Email, email) {
			return core.Account{}, &core.ValidationError{Field: "email", Reason: "already taken"}
		}
		if u.Username == username {
			return core.Account{}, &core.ValidationError{Field: "username", Reason: "already taken"}
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.HashCost)
	if err != nil {
		return core.Account{}, err
	}
	l.nextUser++
	acc := &account{
		Account: core.Account{
			ID:       l.nextUser,
			Username: username,
			Email:    email,
			Role:     role,
			Currency: core.DefaultCurrency,
		},
		passwordHash: hash,
	}
	l.users[acc.ID] = acc
	return acc.Account, nil
}

// Client returns a ledger.Client that authenticates every call with the
// credential creds yields at call time.
func (l *Ledger) Client(creds ledger.CredentialSource) *Client {
	return &Client{ledger: l, creds: creds}
}

func (l *Ledger) Login(email, password string) (ledger.AuthResult, error) {
	if email == "" || password == "" {
		return ledger.AuthResult{}, &core.ValidationError{Reason: "email and password are required"}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.users {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
			break
		}
		return l.issueLocked(u), nil
	}
	return ledger.AuthResult{}, &core.AuthError{Message: "invalid email or password"}
}

func (l *Ledger) Register(r ledger.Registration) (ledger.AuthResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, err := l.addUserLocked(r.Username, r.Email, r.Password, core.RoleUser)
	if err != nil {
		return ledger.AuthResult{}, err
	}
	return l.issueLocked(l.users[acc.ID]), nil
}

func (l *Ledger) issueLocked(u *account) ledger.AuthResult {
	token := newToken()
	l.tokens[token] = u.ID
	return ledger.AuthResult{Token: token, User: userOf(u)}
}

// Revoke invalidates a token, as an expiry on the real service would.
func (l *Ledger) Revoke(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tokens, token)
}

func (l *Ledger) callerLocked(token string) (*account, error) {
	if token == "" {
		return nil, &core.AuthError{Message: "missing token"}
	}
	id, ok := l.tokens[token]
	if !ok {
		return nil, &core.AuthError{Message: "invalid token"}
	}
	u, ok := l.users[id]
	if !ok {
		return nil, &core.AuthError{Message: "user not found"}
	}
	return u, nil
}

func (l *Ledger) adminLocked(token string) (*account, error) {
	u, err := l.callerLocked(token)
	if err != nil {
		return nil, err
	}
	if u.Role != core.RoleAdmin {
		return nil, &core.AuthorizationError{Required: core.RoleAdmin, Message: "admin role required for this operation"}
	}
	return u, nil
}

func (l *Ledger) ListTransactions(token string, q core.Query) ([]core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.callerLocked(token)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]core.Transaction, 0)
	for _, t := range l.txs {
		if t.UserID != u.ID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		if q.Category != "" && t.Category != q.Category {
			continue
		}
		t.Username = ""
		t.Currency = ""
		out = append(out, t)
	}
	sortNewestFirst(out)
	return out, nil
}

func (l *Ledger) ListAllTransactions(token string) ([]core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.adminLocked(token); err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(l.txs))
	for _, t := range l.txs {
		if owner, ok := l.users[t.UserID]; ok {
			t.Username = owner.Username
			t.Currency = owner.Currency
		}
		out = append(out, t)
	}
	sortNewestFirst(out)
	return out, nil
}

func (l *Ledger) CreateTransaction(token string, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	d = d.Normalize()
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.callerLocked(token)
	if err != nil {
		return core.Transaction{}, err
	}
	date := d.Date
	if date.IsZero() {
		date = l.Now()
	}
	l.nextTx++
	t := core.Transaction{
		ID:          l.nextTx,
		UserID:      u.ID,
		Description: d.Description,
		Amount:      d.Amount,
		Category:    d.Category,
		Date:        date,
	}
	l.txs = append(l.txs, t)
	return t, nil
}

func (l *Ledger) UpdateTransaction(token string, id int64, p core.Patch) (core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.callerLocked(token)
	if err != nil {
		return core.Transaction{}, err
	}
	i, err := l.ownedIndexLocked(u, id)
	if err != nil {
		return core.Transaction{}, err
	}
	l.txs[i] = p.Apply(l.txs[i])
	return l.txs[i], nil
}

func (l *Ledger) DeleteTransaction(token string, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.callerLocked(token)
	if err != nil {
		return err
	}
	i, err := l.ownedIndexLocked(u, id)
	if err != nil {
		return err
	}
	l.txs = append(l.txs[:i], l.txs[i+1:]...)
	return nil
}

func (l *Ledger) ownedIndexLocked(u *account, id int64) (int, error) {
	for i, t := range l.txs {
		if t.ID != id {
			continue
		}
		if t.UserID != u.ID && u.Role != core.RoleAdmin {
			return -1, &core.AuthorizationError{Message: "not allowed to modify this transaction"}
		}
		return i, nil
	}
	return -1, &core.NotFoundError{Resource: "transaction", ID: id}
}

func (l *Ledger) GetStats(token string, q core.StatsQuery) (core.StatsResult, error) {
	if err := q.Validate(); err != nil {
		return core.StatsResult{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.callerLocked(token)
	if err != nil {
		return core.StatsResult{}, err
	}
	var own []core.Transaction
	for _, t := range l.txs {
		if t.UserID == u.ID {
			own = append(own, t)
		}
	}
	return core.Summarize(own, q), nil
}

func (l *Ledger) ListCategories(token string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.callerLocked(token)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, t := range l.txs {
		if t.UserID != u.ID {
			continue
		}
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out, nil
}

func (l *Ledger) UpdateProfileSettings(token string, c core.Currency) (core.User, error) {
	if _, err := core.ParseCurrency(string(c)); err != nil {
		return core.User{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	u, err := l.callerLocked(token)
	if err != nil {
		return core.User{}, err
	}
	u.Currency = c
	return userOf(u), nil
}

func (l *Ledger) ListUsers(token string) ([]core.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.adminLocked(token); err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(l.users))
	for _, u := range l.users {
		out = append(out, u.Account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *Ledger) UpdateUser(token string, id int64, p core.UserPatch) (core.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.adminLocked(token); err != nil {
		return core.Account{}, err
	}
	u, ok := l.users[id]
	if !ok {
		return core.Account{}, &core.NotFoundError{Resource: "user", ID: id}
	}
	if p.Role != nil && !l.knownRoleLocked(*p.Role) {
		return core.Account{}, &core.ValidationError{Field: "role", Reason: "unknown role " + string(*p.Role)}
	}
	for _, other := range l.users {
		if other.ID == id {
			continue
		}
		if p.Email != nil && strings.EqualFold(other.Email, *p.Email) {
			return core.Account{}, &core.ValidationError{Field: "email", Reason: "already taken"}
		}
		if p.Username != nil && other.Username == *p.Username {
			return core.Account{}, &core.ValidationError{Field: "username", Reason: "already taken"}
		}
	}
	u.Account = p.ApplyToAccount(u.Account)
	return u.Account, nil
}

// DeleteUser removes an account together with its transactions and tokens.
func (l *Ledger) DeleteUser(token string, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.adminLocked(token); err != nil {
		return err
	}
	if _, ok := l.users[id]; !ok {
		return &core.NotFoundError{Resource: "user", ID: id}
	}
	delete(l.users, id)
	kept := l.txs[:0]
	for _, t := range l.txs {
		if t.UserID != id {
			kept = append(kept, t)
		}
	}
	l.txs = kept
	for tok, uid := range l.tokens {
		if uid == id {
			delete(l.tokens, tok)
		}
	}
	return nil
}

func (l *Ledger) ListRoles(token string) ([]core.Role, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.adminLocked(token); err != nil {
		return nil, err
	}
	return append([]core.Role(nil), l.roles...), nil
}

func (l *Ledger) knownRoleLocked(r core.Role) bool {
	for _, have := range l.roles {
		if have == r {
			return true
		}
	}
	return false
}

func userOf(u *account) core.User {
	return core.User{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Roles:    []core.Role{u.Role},
		Currency: u.Currency,
	}
}

func sortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].Date.Equal(txs[j].Date) {
			return txs[i].ID > txs[j].ID
		}
		return txs[i].Date.After(txs[j].Date)
	})
}

func newToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "tok_" + time.Now().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}

// Client adapts a Ledger to ledger.Client for one credential source.
type Client struct {
	ledger *Ledger
	creds  ledger.CredentialSource
}

func (c *Client) token() string {
	if c.creds == nil {
		return ""
	}
	return c.creds.Credential()
}

func (c *Client) Login(_ context.Context, email, password string) (ledger.AuthResult, error) {
	return c.ledger.Login(email, password)
}

func (c *Client) Register(_ context.Context, r ledger.Registration) (ledger.AuthResult, error) {
	return c.ledger.Register(r)
}

func (c *Client) ListTransactions(_ context.Context, q core.Query) ([]core.Transaction, error) {
	return c.ledger.ListTransactions(c.token(), q)
}

func (c *Client) ListAllTransactions(_ context.Context) ([]core.Transaction, error) {
	return c.ledger.ListAllTransactions(c.token())
}

func (c *Client) CreateTransaction(_ context.Context, d core.Draft) (core.Transaction, error) {
	return c.ledger.CreateTransaction(c.token(), d)
}

func (c *Client) UpdateTransaction(_ context.Context, id int64, p core.Patch) (core.Transaction, error) {
	return c.ledger.UpdateTransaction(c.token(), id, p)
}

func (c *Client) DeleteTransaction(_ context.Context, id int64) error {
	return c.ledger.DeleteTransaction(c.token(), id)
}

func (c *Client) GetStats(_ context.Context, q core.StatsQuery) (core.StatsResult, error) {
	return c.ledger.GetStats(c.token(), q)
}

func (c *Client) ListCategories(_ context.Context) ([]string, error) {
	return c.ledger.ListCategories(c.token())
}

func (c *Client) UpdateProfileSettings(_ context.Context, cur core.Currency) (core.User, error) {
	return c.ledger.UpdateProfileSettings(c.token(), cur)
}

func (c *Client) ListUsers(_ context.Context) ([]core.Account, error) {
	return c.ledger.ListUsers(c.token())
}

func (c *Client) UpdateUser(_ context.Context, id int64, p core.UserPatch) (core.Account, error) {
	return c.ledger.UpdateUser(c.token(), id, p)
}

func (c *Client) DeleteUser(_ context.Context, id int64) error {
	return c.ledger.DeleteUser(c.token(), id)
}

func (c *Client) ListRoles(_ context.Context) ([]core.Role, error) {
	return c.ledger.ListRoles(c.token())
}
