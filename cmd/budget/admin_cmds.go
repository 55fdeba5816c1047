package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"budget/internal/access"
	"budget/internal/admin"
	"budget/internal/core"
	"budget/internal/filter"
	"budget/internal/transactions"
)

type adminTxCmd struct {
	*env
	search   string
	category string
	owner    string
}

func (*adminTxCmd) Name() string     { return "admin-tx" }
func (*adminTxCmd) Synopsis() string { return "list every user's transactions (admin only)" }
func (*adminTxCmd) Usage() string {
	return `budget admin-tx [-search <text>] [-category <name>] [-owner <id or name>]

  Fetches all transactions once and filters them locally.
`
}

func (c *adminTxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.search, "search", "", "Only transactions whose description contains the text.")
	f.StringVar(&c.category, "category", "", "Only transactions in this category.")
	f.StringVar(&c.owner, "owner", "", "Only transactions whose owner id or username contains the text.")
}

func (c *adminTxCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		if err := a.require(access.ViewAdmin); err != nil {
			return err
		}
		store, stop := a.store(transactions.ScopeAll)
		defer stop()

		v := transactions.NewView(store, filter.Hybrid{})
		if _, err := v.Load(ctx); err != nil {
			return err
		}
		txs, err := v.SetFilter(ctx, filter.State{Term: c.search, Category: c.category, Owner: c.owner})
		if err != nil {
			return err
		}
		return printTransactions(c.stdout, txs, a.currency(), true)
	})
}

type adminUsersCmd struct {
	*env
	update   int64
	remove   int64
	username string
	email    string
	role     string
	currency string
	yes      bool
}

func (*adminUsersCmd) Name() string     { return "admin-users" }
func (*adminUsersCmd) Synopsis() string { return "list, change or delete accounts (admin only)" }
func (*adminUsersCmd) Usage() string {
	return `budget admin-users [-update <id> [-username ..] [-email ..] [-role ..] [-currency ..]] [-delete <id> [-yes]]

  Without -update or -delete, lists every account and the assignable roles.
`
}

func (c *adminUsersCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.update, "update", 0, "Id of the account to change.")
	f.Int64Var(&c.remove, "delete", 0, "Id of the account to delete.")
	f.StringVar(&c.username, "username", "", "New username.")
	f.StringVar(&c.email, "email", "", "New email address.")
	f.StringVar(&c.role, "role", "", "New role.")
	f.StringVar(&c.currency, "currency", "", "New currency code.")
	f.BoolVar(&c.yes, "yes", false, "Do not ask for confirmation before deleting.")
}

func (c *adminUsersCmd) patch(f *flag.FlagSet) core.UserPatch {
	var p core.UserPatch
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "username":
			v := c.username
			p.Username = &v
		case "email":
			v := c.email
			p.Email = &v
		case "role":
			v := core.Role(strings.ToLower(strings.TrimSpace(c.role)))
			p.Role = &v
		case "currency":
			v := core.Currency(c.currency)
			p.Currency = &v
		}
	})
	return p
}

func (c *adminUsersCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		if err := a.require(access.ViewUserManagement); err != nil {
			return err
		}
		dir := admin.New(a.client, c.logger)
		if err := dir.Load(ctx); err != nil {
			return err
		}

		switch {
		case c.update != 0:
			acc, err := dir.UpdateUser(ctx, c.update, c.patch(f))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Updated user #%d %s (%s)\n", acc.ID, acc.Username, acc.Role)
		case c.remove != 0:
			var confirm core.Confirmer = promptConfirmer{in: c.stdin, out: c.stderr}
			if c.yes {
				confirm = core.Confirmed
			}
			deleted, err := dir.DeleteUser(ctx, c.remove, confirm)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintln(c.stdout, "Cancelled")
				return nil
			}
			fmt.Fprintf(c.stdout, "Deleted user #%d\n", c.remove)
		default:
			var rows [][]string
			for _, u := range dir.Users() {
				rows = append(rows, []string{strconv.FormatInt(u.ID, 10), u.Username, u.Email, string(u.Role), string(u.Currency.OrDefault())})
			}
			if err := writeTable(c.stdout, []string{"ID", "USERNAME", "EMAIL", "ROLE", "CURRENCY"}, rows); err != nil {
				return err
			}
			roles := make([]string, 0, len(dir.Roles()))
			for _, r := range dir.Roles() {
				roles = append(roles, string(r))
			}
			fmt.Fprintf(c.stdout, "\nRoles: %s\n", strings.Join(roles, ", "))
		}
		return nil
	})
}
