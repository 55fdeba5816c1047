// Package transactions keeps the per-view cache of ledger transactions and
// reconciles it with successful mutations, without re-fetching.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
)

// Scope selects which listing call feeds the cache.
type Scope int

const (
	// ScopeOwn lists the caller's transactions with server-side filtering.
	ScopeOwn Scope = iota
	// ScopeAll lists every user's transactions (administrators only).
	ScopeAll
)

func (s Scope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "own"
}

// Notifier is told about every successful mutation.
type Notifier interface {
	Notify(ctx context.Context, c core.Change) error
}

// SessionSource is the part of the session store the cache observes.
type SessionSource interface {
	Current() core.Session
	Subscribe(fn func(core.Session)) (unsubscribe func())
}

// Store caches one view's transactions. Entries are unique by id and kept in
// server order; created records go to the head. Fetches are tagged with a
// sequence number and only the latest issued fetch may replace the cache.
type Store struct {
	client   ledger.TransactionClient
	scope    Scope
	notifier Notifier
	catalog  *Catalog
	logger   *log.Logger
	now      func() time.Time

	mu      sync.Mutex
	records []core.Transaction
	seq     uint64
	owner   int64
}

type Option func(*Store)

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithCatalog invalidates c after every mutation.
func WithCatalog(c *Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(client ledger.TransactionClient, scope Scope, opts ...Option) *Store {
	s := &Store{
		client: client,
		scope:  scope,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger, log.ComponentTransactions).With(log.FieldScope, scope.String())
	return s
}

// Observe resets the cache whenever the session identity changes, so one
// user's records are never shown to the next. Pending fetches are
// invalidated as well.
func (s *Store) Observe(sessions SessionSource) (stop func()) {
	s.mu.Lock()
	s.owner = ownerOf(sessions.Current())
	s.mu.Unlock()

	return sessions.Subscribe(func(sess core.Session) {
		id := ownerOf(sess)
		s.mu.Lock()
		defer s.mu.Unlock()
		if id == s.owner {
			return
		}
		s.owner = id
		s.records = nil
		s.seq++
		s.logger.Debug("Identity changed, cache reset", log.FieldUserID, id)
	})
}

func ownerOf(sess core.Session) int64 {
	if sess.User == nil {
		return 0
	}
	return sess.User.ID
}

// Fetch replaces the cache with the server's answer. If another fetch was
// issued while this one was in flight, the answer is dropped and
// core.ErrSuperseded returned. An empty answer is not an error.
func (s *Store) Fetch(ctx context.Context, q core.Query) ([]core.Transaction, error) {
	s.mu.Lock()
	s.seq++
	token := s.seq
	s.mu.Unlock()

	var (
		txs []core.Transaction
		err error
	)
	if s.scope == ScopeAll {
		txs, err = s.client.ListAllTransactions(ctx)
	} else {
		txs, err = s.client.ListTransactions(ctx, q)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A rejected credential ends the session, which also resets the cache;
	// the caller still learns why.
	if token != s.seq && !core.IsAuth(err) {
		s.logger.DebugContext(ctx, "Discarding superseded fetch", log.FieldSequence, token, "latest", s.seq)
		return nil, core.ErrSuperseded
	}
	if err != nil {
		fields := log.NewFields().WithQuery(q.Search, q.Category)
		s.logger.LogFailure(ctx, "Fetch failed", err, core.Kind(err), log.OpFetch, fields)
		return nil, err
	}

	s.records = dedupe(txs)
	s.logger.DebugContext(ctx, "Cache replaced", log.FieldSequence, token, log.FieldCount, len(s.records))
	return clone(s.records), nil
}

// Create stores a draft and puts the result at the head of the cache.
func (s *Store) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	d = d.Normalize()

	t, err := s.client.CreateTransaction(ctx, d)
	if err != nil {
		s.logger.LogFailure(ctx, "Create failed", err, core.Kind(err), log.OpCreate, nil)
		return core.Transaction{}, err
	}
	if t.Category == "" {
		t.Category = core.DefaultCategory
	}

	s.mu.Lock()
	s.records = append([]core.Transaction{t}, without(s.records, t.ID)...)
	s.mu.Unlock()

	s.changed(ctx, core.ChangeCreated, t)
	return t, nil
}

// Update patches a cached record. The record keeps its position; an id not in
// the cache fails with *core.NotFoundError before any remote call.
func (s *Store) Update(ctx context.Context, id int64, p core.Patch) (core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if !s.has(id) {
		return core.Transaction{}, &core.NotFoundError{Resource: "transaction", ID: id}
	}

	t, err := s.client.UpdateTransaction(ctx, id, p)
	if err != nil {
		fields := log.NewFields().WithTransaction(id, 0)
		s.logger.LogFailure(ctx, "Update failed", err, core.Kind(err), log.OpUpdate, fields)
		return core.Transaction{}, err
	}

	s.mu.Lock()
	for i := range s.records {
		if s.records[i].ID == id {
			// Listing-only fields are not part of the update response.
			if t.Username == "" {
				t.Username = s.records[i].Username
			}
			if t.Currency == "" {
				t.Currency = s.records[i].Currency
			}
			s.records[i] = t
			break
		}
	}
	s.mu.Unlock()

	s.changed(ctx, core.ChangeUpdated, t)
	return t, nil
}

// Delete removes a record after confirm approves it. A declined (or nil)
// confirmation is a no-op and reports false.
func (s *Store) Delete(ctx context.Context, id int64, confirm core.Confirmer) (bool, error) {
	t, ok := s.get(id)
	if !ok {
		return false, &core.NotFoundError{Resource: "transaction", ID: id}
	}
	if confirm == nil || !confirm.Confirm(ctx, fmt.Sprintf("Delete %q (%s)?", t.Description, t.Amount.String())) {
		s.logger.DebugContext(ctx, "Delete declined", log.FieldTxID, id)
		return false, nil
	}

	if err := s.client.DeleteTransaction(ctx, id); err != nil {
		fields := log.NewFields().WithTransaction(id, t.UserID)
		s.logger.LogFailure(ctx, "Delete failed", err, core.Kind(err), log.OpDelete, fields)
		return false, err
	}

	s.mu.Lock()
	s.records = without(s.records, id)
	s.mu.Unlock()

	s.changed(ctx, core.ChangeDeleted, t)
	return true, nil
}

// Snapshot returns a copy of the cache in display order.
func (s *Store) Snapshot() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.records)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) Get(id int64) (core.Transaction, bool) {
	return s.get(id)
}

func (s *Store) Scope() Scope { return s.scope }

func (s *Store) has(id int64) bool {
	_, ok := s.get(id)
	return ok
}

func (s *Store) get(id int64) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.records {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

func (s *Store) changed(ctx context.Context, kind core.ChangeKind, t core.Transaction) {
	s.logger.InfoContext(ctx, "Transaction "+string(kind), log.FieldTxID, t.ID)

	if s.catalog != nil {
		s.catalog.Invalidate()
	}
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, core.Change{Kind: kind, TransactionID: t.ID, UserID: t.UserID, At: s.now().UTC()})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.LogFailure(ctx, "Change notification failed", err, core.Kind(err), log.OpPublish, nil)
	}
}

func clone(txs []core.Transaction) []core.Transaction {
	return append(make([]core.Transaction, 0, len(txs)), txs...)
}

func without(txs []core.Transaction, id int64) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// dedupe keeps the first occurrence of each id.
func dedupe(txs []core.Transaction) []core.Transaction {
	seen := make(map[int64]struct{}, len(txs))
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
