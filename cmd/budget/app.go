package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"budget/internal/access"
	"budget/internal/amqp"
	"budget/internal/cache"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/ledger/httpapi"
	"budget/internal/log"
	"budget/internal/session"
	"budget/internal/sheets"
	"budget/internal/storage"
	"budget/internal/transactions"
)

const publisherConnectAttempts = 3

// env is what every command receives before it opens the ledger.
type env struct {
	cfg    *config.Config
	logger *log.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// newExporter overrides the Google Sheets exporter.
	newExporter func(context.Context) (sheets.Exporter, error)
}

// app is an opened ledger connection with its persisted session.
type app struct {
	*env
	repo      *storage.SQLiteRepository
	client    *httpapi.Client
	sessions  *session.Store
	guard     *access.Guard
	publisher *amqp.Publisher
	caches    *cache.Manager
	catalog   *transactions.Catalog
	watches   []func()
}

func (e *env) open(ctx context.Context) (*app, error) {
	repo, err := storage.NewSQLiteRepository(e.cfg.SessionDBPath, e.logger)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	a := &app{env: e, repo: repo}
	a.client, err = httpapi.New(e.cfg.LedgerBaseURL,
		ledger.CredentialFunc(func() string { return a.sessions.Credential() }),
		httpapi.WithTimeout(e.cfg.LedgerTimeout),
		httpapi.WithLogger(e.logger))
	if err != nil {
		repo.Close()
		return nil, err
	}
	a.sessions = session.New(a.client, repo, e.logger)
	a.client.SetUnauthorizedHook(a.sessions.HandleUnauthorized)
	if err := a.sessions.Init(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	a.guard = access.NewGuard(a.sessions, e.logger)

	categories := cache.NewLRUCache[[]string](16, e.cfg.CategoryCacheTTL)
	a.caches = cache.NewManager(e.logger)
	a.caches.Register(categories)
	a.catalog = transactions.NewCatalogWithCache(a.client, a.sessions, categories, e.logger)

	if e.cfg.NotificationsEnabled() {
		a.publisher = amqp.NewPublisher(e.cfg.AMQPURL, e.cfg.AMQPExchange, e.cfg.AMQPRoutingKey, e.logger)
		if err := a.publisher.Connect(ctx, publisherConnectAttempts); err != nil {
			e.logger.Warn("Change notifications unavailable", log.FieldError, err)
		}
	}
	return a, nil
}

func (a *app) Close() {
	for _, stop := range a.watches {
		stop()
	}
	a.caches.Sweep()
	a.caches.Stop()
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("Failed to close publisher", log.FieldError, err)
		}
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("Failed to close session store", log.FieldError, err)
	}
}

// require resolves view against the current session and explains a denial.
// Once granted, the view stays watched so a session revoked by the ledger
// mid-command is reported.
func (a *app) require(view access.View) error {
	d := a.guard.Resolve(view)
	if d.Allowed {
		a.watches = append(a.watches, a.guard.Watch(view, a.onRevoked(view)))
		return nil
	}
	switch {
	case core.IsAuth(d.Reason):
		return errors.New("not logged in; run 'budget login' first")
	case core.IsAuthorization(d.Reason):
		return errors.New("this command requires the admin role")
	default:
		return fmt.Errorf("%s is not available", view.Name)
	}
}

func (a *app) onRevoked(view access.View) func(access.Decision) {
	var once sync.Once
	return func(d access.Decision) {
		if d.Allowed {
			return
		}
		once.Do(func() {
			fmt.Fprintf(a.stderr, "Session ended while using %s; run 'budget login' again\n", view.Name)
		})
	}
}

// store builds a transaction cache for scope that follows the session and
// reports mutations to the publisher when one is configured.
func (a *app) store(scope transactions.Scope) (*transactions.Store, func()) {
	opts := []transactions.Option{
		transactions.WithCatalog(a.catalog),
		transactions.WithLogger(a.logger),
	}
	if a.publisher != nil {
		opts = append(opts, transactions.WithNotifier(a.publisher))
	}
	s := transactions.NewStore(a.client, scope, opts...)
	return s, s.Observe(a.sessions)
}

// currency is the display currency of the logged-in user.
func (a *app) currency() core.Currency {
	if u := a.sessions.Current().User; u != nil {
		return u.Currency.OrDefault()
	}
	return core.DefaultCurrency
}
