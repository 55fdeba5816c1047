// Package admin manages user accounts on behalf of an administrator.
package admin

import (
	"context"
	"fmt"
	"sync"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/log"

	"golang.org/x/sync/errgroup"
)

// Directory caches the account and role listings. Like the transaction
// cache, it is reconciled with successful mutations instead of re-fetched.
type Directory struct {
	client ledger.AdminClient
	logger *log.Logger

	mu    sync.Mutex
	users []core.Account
	roles []core.Role
}

func New(client ledger.AdminClient, logger *log.Logger) *Directory {
	return &Directory{client: client, logger: log.OrDefault(logger, log.ComponentAdmin)}
}

// Load fetches users and roles concurrently. Either failure fails the load
// and leaves the previous listing in place.
func (d *Directory) Load(ctx context.Context) error {
	var (
		users []core.Account
		roles []core.Role
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = d.client.ListUsers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = d.client.ListRoles(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		d.logger.LogFailure(ctx, "Directory load failed", err, core.Kind(err), log.OpList, nil)
		return err
	}

	d.mu.Lock()
	d.users = users
	d.roles = roles
	d.mu.Unlock()
	d.logger.DebugContext(ctx, "Directory loaded", log.FieldCount, len(users))
	return nil
}

func (d *Directory) Users() []core.Account {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.Account(nil), d.users...)
}

func (d *Directory) Roles() []core.Role {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]core.Role(nil), d.roles...)
}

// UpdateUser applies p remotely and replaces the cached account in place.
func (d *Directory) UpdateUser(ctx context.Context, id int64, p core.UserPatch) (core.Account, error) {
	if p.IsEmpty() {
		return core.Account{}, &core.ValidationError{Field: "user", Reason: "no fields to update"}
	}
	if p.Currency != nil {
		if _, err := core.ParseCurrency(string(*p.Currency)); err != nil {
			return core.Account{}, err
		}
	}

	d.mu.Lock()
	idx := d.indexLocked(id)
	known := d.knownRoleLocked(p.Role)
	d.mu.Unlock()
	if idx < 0 {
		return core.Account{}, &core.NotFoundError{Resource: "user", ID: id}
	}
	if !known {
		return core.Account{}, &core.ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %q", *p.Role)}
	}

	acc, err := d.client.UpdateUser(ctx, id, p)
	if err != nil {
		fields := log.NewFields()
		fields[log.FieldUserID] = id
		d.logger.LogFailure(ctx, "User update failed", err, core.Kind(err), log.OpUpdate, fields)
		return core.Account{}, err
	}

	d.mu.Lock()
	if i := d.indexLocked(id); i >= 0 {
		d.users[i] = acc
	}
	d.mu.Unlock()
	d.logger.InfoContext(ctx, "User updated", log.FieldUserID, id)
	return acc, nil
}

// DeleteUser removes an account after confirm approves it. A declined (or
// nil) confirmation is a no-op and reports false.
func (d *Directory) DeleteUser(ctx context.Context, id int64, confirm core.Confirmer) (bool, error) {
	d.mu.Lock()
	idx := d.indexLocked(id)
	var acc core.Account
	if idx >= 0 {
		acc = d.users[idx]
	}
	d.mu.Unlock()
	if idx < 0 {
		return false, &core.NotFoundError{Resource: "user", ID: id}
	}
	if confirm == nil || !confirm.Confirm(ctx, fmt.Sprintf("Delete user %q and all of their transactions?", acc.Username)) {
		return false, nil
	}

	if err := d.client.DeleteUser(ctx, id); err != nil {
		d.logger.LogFailure(ctx, "User delete failed", err, core.Kind(err), log.OpDelete, nil)
		return false, err
	}

	d.mu.Lock()
	if i := d.indexLocked(id); i >= 0 {
		d.users = append(d.users[:i:i], d.users[i+1:]...)
	}
	d.mu.Unlock()
	d.logger.InfoContext(ctx, "User deleted", log.FieldUserID, id)
	return true, nil
}

func (d *Directory) indexLocked(id int64) int {
	for i, u := range d.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (d *Directory) knownRoleLocked(r *core.Role) bool {
	if r == nil {
		return true
	}
	for _, have := range d.roles {
		if have == *r {
			return true
		}
	}
	return false
}
