// Package ledger defines the boundary to the remote ledger service.
//
// The service is a black-box REST API. Callers depend on the small port
// interfaces below; httpapi implements them over HTTP and memory implements
// them in-process with the same server-side rules.
package ledger

import (
	"context"

	"budget/internal/core"
)

type (
	// CredentialSource yields the bearer credential to attach to a request.
	// It is consulted on every call, never cached by the transport.
	CredentialSource interface {
		Credential() string
	}

	// CredentialFunc adapts a function to CredentialSource.
	CredentialFunc func() string

	// AuthResult is the payload of a successful login or registration.
	AuthResult struct {
		Token string    `json:"token"`
		User  core.User `json:"user"`
	}

	Registration struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	AuthClient interface {
		Login(ctx context.Context, email, password string) (AuthResult, error)
		// Register creates an account. The token is empty when the service
		// does not log the new account in.
		Register(ctx context.Context, r Registration) (AuthResult, error)
	}

	TransactionClient interface {
		// ListTransactions returns the caller's transactions, newest first.
		ListTransactions(ctx context.Context, q core.Query) ([]core.Transaction, error)
		// ListAllTransactions returns every user's transactions (administrators only).
		ListAllTransactions(ctx context.Context) ([]core.Transaction, error)
		CreateTransaction(ctx context.Context, d core.Draft) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, id int64, p core.Patch) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) error
	}

	StatsClient interface {
		GetStats(ctx context.Context, q core.StatsQuery) (core.StatsResult, error)
	}

	CategoryClient interface {
		ListCategories(ctx context.Context) ([]string, error)
	}

	ProfileClient interface {
		UpdateProfileSettings(ctx context.Context, currency core.Currency) (core.User, error)
	}

	AdminClient interface {
		ListUsers(ctx context.Context) ([]core.Account, error)
		UpdateUser(ctx context.Context, id int64, p core.UserPatch) (core.Account, error)
		DeleteUser(ctx context.Context, id int64) error
		ListRoles(ctx context.Context) ([]core.Role, error)
	}

	// Client is the complete remote surface consumed by the core.
	Client interface {
		AuthClient
		TransactionClient
		StatsClient
		CategoryClient
		ProfileClient
		AdminClient
	}
)

func (f CredentialFunc) Credential() string { return f() }
