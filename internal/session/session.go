// Package session holds the process-wide credential and identity. Every other
// component reads the session through a Store injected at construction.
package session

import (
	"context"
	"strings"
	"sync"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"
)

// Client is the slice of the ledger the session layer calls.
type Client interface {
	ledger.AuthClient
	ledger.ProfileClient
}

// Persister keeps the session across process restarts. Load returns the
// anonymous session when nothing has been stored.
type Persister interface {
	Load(ctx context.Context) (core.Session, error)
	Save(ctx context.Context, s core.Session) error
	Clear(ctx context.Context) error
}

// Listener observes session changes. It runs synchronously on the goroutine
// that made the change and must not block.
type Listener = func(core.Session)

type subscription struct {
	id int
	fn Listener
}

// Store owns the current session.
type Store struct {
	client    Client
	persister Persister
	logger    *log.Logger

	mu      sync.Mutex
	current core.Session
	subs    []subscription
	nextSub int
}

// Ensure interface conformance
var _ ledger.CredentialSource = (*Store)(nil)

func New(client Client, persister Persister, logger *log.Logger) *Store {
	if persister == nil {
		persister = NewMemoryPersister()
	}
	return &Store{
		client:    client,
		persister: persister,
		logger:    log.OrDefault(logger, log.ComponentSession),
	}
}

// Init rehydrates the persisted session. An unreadable or half-present
// snapshot is discarded and the store stays anonymous.
func (s *Store) Init(ctx context.Context) error {
	restored, err := s.persister.Load(ctx)
	if err == nil {
		err = restored.Validate()
	}
	if err != nil {
		s.logger.LogFailure(ctx, "Discarding persisted session", err, core.Kind(err), log.OpRestore, nil)
		if cerr := s.persister.Clear(ctx); cerr != nil {
			s.logger.WarnContext(ctx, "Failed to clear persisted session", "error", cerr)
		}
		return nil
	}
	if restored.Anonymous() {
		return nil
	}
	s.logger.InfoContext(ctx, "Session restored", log.FieldUserID, restored.User.ID, log.FieldUsername, restored.User.Username)
	s.set(restored)
	return nil
}

func (s *Store) Login(ctx context.Context, email, password string) (core.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return core.Session{}, &core.ValidationError{Reason: "email and password are required"}
	}

	res, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.logger.LogFailure(ctx, "Login failed", err, core.Kind(err), log.OpLogin, nil)
		return core.Session{}, err
	}
	if res.Token == "" {
		return core.Session{}, &core.AuthError{}
	}
	return s.establish(ctx, res, log.OpLogin), nil
}

// Register creates an account. When the service answers with a credential
// the session is established as with Login; otherwise the anonymous session
// is returned and the caller logs in separately.
func (s *Store) Register(ctx context.Context, username, email, password string) (core.Session, error) {
	r := ledger.Registration{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if r.Username == "" || r.Email == "" || r.Password == "" {
		return core.Session{}, &core.ValidationError{Reason: "username, email and password are required"}
	}

	res, err := s.client.Register(ctx, r)
	if err != nil {
		s.logger.LogFailure(ctx, "Registration failed", err, core.Kind(err), log.OpRegister, nil)
		return core.Session{}, err
	}
	if res.Token == "" {
		s.logger.InfoContext(ctx, "Account registered", log.FieldUsername, r.Username)
		return core.Session{}, nil
	}
	return s.establish(ctx, res, log.OpRegister), nil
}

func (s *Store) establish(ctx context.Context, res ledger.AuthResult, op string) core.Session {
	user := res.User
	next, _ := s.commit(ctx, func(core.Session) (core.Session, bool) {
		return core.Session{Token: res.Token, User: user.Clone()}, true
	})
	s.logger.InfoContext(ctx, "Session established",
		log.FieldOperation, op,
		log.FieldUserID, user.ID,
		log.FieldUsername, user.Username)
	return next
}

// Logout clears the credential and identity. It is idempotent.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	err := s.persister.Clear(ctx)
	wasAnonymous := s.current.Anonymous()
	s.current = core.Session{}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	if err != nil {
		s.logger.LogFailure(ctx, "Failed to clear persisted session", err, core.Kind(err), log.OpLogout, nil)
	}
	if wasAnonymous {
		return
	}
	notify(subs, core.Session{})
	s.logger.InfoContext(ctx, "Session cleared")
}

// HandleUnauthorized destroys the session after the service rejected its
// credential. The ledger transport calls it on every 401.
func (s *Store) HandleUnauthorized() {
	if s.Current().Anonymous() {
		return
	}
	s.logger.Warn("Credential rejected by the ledger, logging out")
	s.Logout(context.Background())
}

// UpdateIdentity merges the supplied fields into the current identity. It
// does nothing when nobody is logged in.
func (s *Store) UpdateIdentity(ctx context.Context, p core.UserPatch) {
	if p.IsEmpty() {
		return
	}
	s.mergeIdentity(ctx, p)
}

// mergeIdentity applies p to the logged-in user and returns the result. It
// reports false when the session is anonymous at the time of the merge.
func (s *Store) mergeIdentity(ctx context.Context, p core.UserPatch) (core.User, bool) {
	next, ok := s.commit(ctx, func(cur core.Session) (core.Session, bool) {
		if cur.User == nil {
			return cur, false
		}
		user := p.ApplyToUser(*cur.User)
		return core.Session{Token: cur.Token, User: &user}, true
	})
	if !ok {
		return core.User{}, false
	}
	return *next.User, true
}

// UpdateCurrency changes the preferred currency remotely, then mirrors the
// service's answer into the identity. If the session ended while the request
// was in flight the result is an AuthError and nothing is restored.
func (s *Store) UpdateCurrency(ctx context.Context, raw string) (core.User, error) {
	c, err := core.ParseCurrency(raw)
	if err != nil {
		return core.User{}, err
	}
	if s.Current().Anonymous() {
		return core.User{}, &core.AuthError{Message: "not logged in"}
	}

	u, err := s.client.UpdateProfileSettings(ctx, c)
	if err != nil {
		s.logger.LogFailure(ctx, "Currency update failed", err, core.Kind(err), log.OpUpdate, nil)
		return core.User{}, err
	}
	currency := u.Currency
	if currency == "" {
		currency = c
	}
	user, ok := s.mergeIdentity(ctx, core.UserPatch{Currency: &currency})
	if !ok {
		return core.User{}, &core.AuthError{Message: "session ended during the update"}
	}
	return user, nil
}

// Current returns a snapshot of the session.
func (s *Store) Current() core.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Credential returns the bearer token, or "" when anonymous. Transports call
// it per request.
func (s *Store) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Token
}

// Subscribe registers fn for every subsequent change. Listeners run in
// subscription order. The returned function removes the subscription.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) set(next core.Session) {
	s.mu.Lock()
	s.current = next
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, next)
}

// commit computes the next session from the current one, persists it and
// installs it in one critical section, then notifies subscribers. fn returns
// false to leave the session untouched.
func (s *Store) commit(ctx context.Context, fn func(core.Session) (core.Session, bool)) (core.Session, bool) {
	s.mu.Lock()
	next, ok := fn(s.current)
	if !ok {
		s.mu.Unlock()
		return core.Session{}, false
	}
	if err := s.persister.Save(ctx, next); err != nil {
		s.logger.LogFailure(ctx, "Failed to persist session", err, core.Kind(err), log.OpPersist, nil)
	}
	s.current = next
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, next)
	return next.Clone(), true
}

// snapshotSubs copies the subscriber list. The caller holds mu.
func (s *Store) snapshotSubs() []subscription {
	return append([]subscription(nil), s.subs...)
}

func notify(subs []subscription, next core.Session) {
	for _, sub := range subs {
		sub.fn(next.Clone())
	}
}
