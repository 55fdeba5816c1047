// Package httpapi implements the ledger ports against the service's REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
	"budget/internal/middleware/trace"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 64 << 10
)

// Client talks to the ledger service. The bearer credential is read from the
// CredentialSource on every request.
type Client struct {
	baseURL        string
	http           *http.Client
	creds          ledger.CredentialSource
	onUnauthorized func()
	logger         *log.Logger
}

// Ensure interface conformance
var _ ledger.Client = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its transport is used as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUnauthorizedHook registers fn to run whenever an authenticated call is
// answered with 401. The session layer uses it to drop the credential.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, creds ledger.CredentialSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ledger base URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		creds:   creds,
	}
	c.http = &http.Client{Timeout: defaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrDefault(c.logger, log.ComponentLedger)
	if c.http.Transport == nil {
		c.http.Transport = trace.NewTransport(nil, c.logger)
	}
	return c, nil
}

// SetUnauthorizedHook replaces the 401 hook after construction, for callers
// whose session store is built on top of this client.
func (c *Client) SetUnauthorizedHook(fn func()) {
	c.onUnauthorized = fn
}

type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	resource string
	id       int64
	// public calls carry no credential and never trigger the 401 hook.
	public bool
}

func (c *Client) Login(ctx context.Context, email, password string) (ledger.AuthResult, error) {
	var out authResponse
	err := c.do(ctx, call{
		op:     log.OpLogin,
		method: http.MethodPost,
		path:   "/api/login",
		body:   map[string]string{"email": email, "password": password},
		public: true,
	}, &out)
	if err != nil {
		return ledger.AuthResult{}, err
	}
	if out.Token == "" || out.User == nil {
		return ledger.AuthResult{}, &core.AuthError{}
	}
	return out.result(), nil
}

func (c *Client) Register(ctx context.Context, r ledger.Registration) (ledger.AuthResult, error) {
	var out authResponse
	err := c.do(ctx, call{
		op:     log.OpRegister,
		method: http.MethodPost,
		path:   "/api/register",
		body:   r,
		public: true,
	}, &out)
	if err != nil {
		return ledger.AuthResult{}, err
	}
	if out.User == nil {
		return ledger.AuthResult{Token: out.Token}, nil
	}
	return out.result(), nil
}

func (c *Client) ListTransactions(ctx context.Context, q core.Query) ([]core.Transaction, error) {
	params := url.Values{}
	if s := strings.TrimSpace(q.Search); s != "" {
		params.Set("search", s)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	var out struct {
		Transactions []ledger.TransactionJSON `json:"transactions"`
	}
	if err := c.do(ctx, call{op: log.OpList, method: http.MethodGet, path: "/api/transactions", query: params}, &out); err != nil {
		return nil, err
	}
	return transactionsFromJSON(out.Transactions)
}

func (c *Client) ListAllTransactions(ctx context.Context) ([]core.Transaction, error) {
	var out struct {
		Transactions []ledger.TransactionJSON `json:"all_transactions"`
	}
	if err := c.do(ctx, call{op: log.OpList, method: http.MethodGet, path: "/api/transactions/all"}, &out); err != nil {
		return nil, err
	}
	return transactionsFromJSON(out.Transactions)
}

func (c *Client) CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, error) {
	var out struct {
		Transaction *ledger.TransactionJSON `json:"transaction"`
	}
	err := c.do(ctx, call{
		op:     log.OpCreate,
		method: http.MethodPost,
		path:   "/api/transactions",
		body:   ledger.DraftToJSON(d),
	}, &out)
	if err != nil {
		return core.Transaction{}, err
	}
	return transactionFromEnvelope(log.OpCreate, out.Transaction)
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, p core.Patch) (core.Transaction, error) {
	var out struct {
		Transaction *ledger.TransactionJSON `json:"transaction"`
	}
	err := c.do(ctx, call{
		op:       log.OpUpdate,
		method:   http.MethodPut,
		path:     "/api/transactions/" + strconv.FormatInt(id, 10),
		body:     ledger.PatchToJSON(p),
		resource: "transaction",
		id:       id,
	}, &out)
	if err != nil {
		return core.Transaction{}, err
	}
	return transactionFromEnvelope(log.OpUpdate, out.Transaction)
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.do(ctx, call{
		op:       log.OpDelete,
		method:   http.MethodDelete,
		path:     "/api/transactions/" + strconv.FormatInt(id, 10),
		resource: "transaction",
		id:       id,
	}, nil)
}

func (c *Client) GetStats(ctx context.Context, q core.StatsQuery) (core.StatsResult, error) {
	params := url.Values{}
	params.Set("month", strconv.Itoa(q.Month))
	params.Set("year", strconv.Itoa(q.Year))
	var out ledger.StatsJSON
	if err := c.do(ctx, call{op: log.OpStats, method: http.MethodGet, path: "/api/stats", query: params}, &out); err != nil {
		return core.StatsResult{}, err
	}
	return out.Core(), nil
}

func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var out struct {
		Categories []string `json:"categories"`
	}
	if err := c.do(ctx, call{op: log.OpList, method: http.MethodGet, path: "/api/categories"}, &out); err != nil {
		return nil, err
	}
	if out.Categories == nil {
		return []string{}, nil
	}
	return out.Categories, nil
}

func (c *Client) UpdateProfileSettings(ctx context.Context, currency core.Currency) (core.User, error) {
	var out struct {
		User *ledger.UserJSON `json:"user"`
	}
	err := c.do(ctx, call{
		op:     log.OpUpdate,
		method: http.MethodPut,
		path:   "/api/profile/settings",
		body:   map[string]string{"currency": string(currency)},
	}, &out)
	if err != nil {
		return core.User{}, err
	}
	if out.User == nil {
		return core.User{}, &core.NetworkError{Op: log.OpUpdate, Err: errors.New("response carries no user")}
	}
	return out.User.Core(), nil
}

func (c *Client) ListUsers(ctx context.Context) ([]core.Account, error) {
	var out struct {
		Users []ledger.AccountJSON `json:"users"`
	}
	if err := c.do(ctx, call{op: log.OpList, method: http.MethodGet, path: "/api/admin/users"}, &out); err != nil {
		return nil, err
	}
	accounts := make([]core.Account, len(out.Users))
	for i, u := range out.Users {
		accounts[i] = u.Core()
	}
	return accounts, nil
}

func (c *Client) UpdateUser(ctx context.Context, id int64, p core.UserPatch) (core.Account, error) {
	var out struct {
		User *ledger.AccountJSON `json:"user"`
	}
	err := c.do(ctx, call{
		op:       log.OpUpdate,
		method:   http.MethodPut,
		path:     "/api/admin/users/" + strconv.FormatInt(id, 10),
		body:     p,
		resource: "user",
		id:       id,
	}, &out)
	if err != nil {
		return core.Account{}, err
	}
	if out.User == nil {
		return core.Account{}, &core.NetworkError{Op: log.OpUpdate, Err: errors.New("response carries no user")}
	}
	return out.User.Core(), nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, call{
		op:       log.OpDelete,
		method:   http.MethodDelete,
		path:     "/api/admin/users/" + strconv.FormatInt(id, 10),
		resource: "user",
		id:       id,
	}, nil)
}

func (c *Client) ListRoles(ctx context.Context) ([]core.Role, error) {
	var out struct {
		Roles []core.Role `json:"roles"`
	}
	if err := c.do(ctx, call{op: log.OpList, method: http.MethodGet, path: "/api/roles"}, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		buf, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", cl.op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !cl.public && c.creds != nil {
		if token := c.creds.Credential(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &core.NetworkError{Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(ctx, cl, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.NetworkError{Op: cl.op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// statusError maps a non-2xx answer onto the error taxonomy, surfacing the
// body's "error" field when present.
func (c *Client) statusError(ctx context.Context, cl call, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload ledger.ErrorJSON
	_ = json.Unmarshal(raw, &payload)
	msg := strings.TrimSpace(payload.Error)

	var err error
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		if msg == "" {
			msg = "rejected by the ledger"
		}
		err = &core.ValidationError{Reason: msg}
	case resp.StatusCode == http.StatusUnauthorized:
		err = &core.AuthError{Message: msg}
		if !cl.public && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	case resp.StatusCode == http.StatusForbidden:
		err = &core.AuthorizationError{Message: msg}
	case resp.StatusCode == http.StatusNotFound:
		resource := cl.resource
		if resource == "" {
			resource = strings.TrimPrefix(cl.path, "/api/")
		}
		err = &core.NotFoundError{Resource: resource, ID: cl.id}
	default:
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		err = &core.NetworkError{Op: cl.op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, msg)}
	}

	fields := log.NewFields().WithHTTPResponse(cl.method, cl.path, resp.StatusCode, 0)
	c.logger.LogFailure(ctx, "Ledger call rejected", err, core.Kind(err), cl.op, fields)
	return err
}

type authResponse struct {
	Message string           `json:"message"`
	Token   string           `json:"token"`
	User    *ledger.UserJSON `json:"user"`
}

func (a authResponse) result() ledger.AuthResult {
	return ledger.AuthResult{Token: a.Token, User: a.User.Core()}
}

func transactionsFromJSON(in []ledger.TransactionJSON) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(in))
	for _, j := range in {
		t, err := j.Core()
		if err != nil {
			return nil, &core.NetworkError{Op: log.OpList, Err: fmt.Errorf("transaction %d: %w", j.ID, err)}
		}
		out = append(out, t)
	}
	return out, nil
}

func transactionFromEnvelope(op string, j *ledger.TransactionJSON) (core.Transaction, error) {
	if j == nil {
		return core.Transaction{}, &core.NetworkError{Op: op, Err: errors.New("response carries no transaction")}
	}
	t, err := j.Core()
	if err != nil {
		return core.Transaction{}, &core.NetworkError{Op: op, Err: err}
	}
	return t, nil
}
