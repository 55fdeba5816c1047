package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"budget/internal/access"
	"budget/internal/core"
)

type loginCmd struct {
	*env
	email string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in and remember the session" }
func (*loginCmd) Usage() string {
	return `budget login -email <email>

  Prompts for the password and stores the session for later commands.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email address.")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		password, err := readPassword(c.stdin, c.stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		s, err := a.sessions.Login(ctx, c.email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Logged in as %s\n", s.User.Username)
		return nil
	})
}

type logoutCmd struct{ *env }

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "forget the stored session" }
func (*logoutCmd) Usage() string            { return "budget logout\n" }
func (*logoutCmd) SetFlags(_ *flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		a.sessions.Logout(ctx)
		fmt.Fprintln(c.stdout, "Logged out")
		return nil
	})
}

type whoamiCmd struct{ *env }

func (*whoamiCmd) Name() string             { return "whoami" }
func (*whoamiCmd) Synopsis() string         { return "show the logged-in identity" }
func (*whoamiCmd) Usage() string            { return "budget whoami\n" }
func (*whoamiCmd) SetFlags(_ *flag.FlagSet) {}

func (c *whoamiCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		s := a.sessions.Current()
		if s.Anonymous() {
			fmt.Fprintln(c.stdout, "anonymous")
			return nil
		}
		u := s.User
		roles := make([]string, len(u.Roles))
		for i, r := range u.Roles {
			roles[i] = string(r)
		}
		fmt.Fprintf(c.stdout, "%s <%s>\nid: %d\nroles: %s\ncurrency: %s\naccess: %s\n",
			u.Username, u.Email, u.ID, strings.Join(roles, ", "), u.Currency.OrDefault(), access.StateOf(s))
		return nil
	})
}

type registerCmd struct {
	*env
	username string
	email    string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create a new account" }
func (*registerCmd) Usage() string {
	return `budget register -username <name> -email <email>

  Prompts for the password. When the service logs the new account in, the
  session is stored as with login.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.username, "username", "", "Display name of the new account.")
	f.StringVar(&c.email, "email", "", "Email address of the new account.")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		if err := a.require(access.ViewRegister); err != nil {
			return err
		}
		password, err := readPassword(c.stdin, c.stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		s, err := a.sessions.Register(ctx, c.username, c.email, password)
		if err != nil {
			return err
		}
		if s.Anonymous() {
			fmt.Fprintln(c.stdout, "Account created; run 'budget login' to continue")
			return nil
		}
		fmt.Fprintf(c.stdout, "Account created, logged in as %s\n", s.User.Username)
		return nil
	})
}

type currencyCmd struct{ *env }

func (*currencyCmd) Name() string     { return "currency" }
func (*currencyCmd) Synopsis() string { return "show or change the display currency" }
func (*currencyCmd) Usage() string {
	return `budget currency [code]

  Without an argument, lists the selectable currencies and marks the
  current one.
`
}
func (*currencyCmd) SetFlags(_ *flag.FlagSet) {}

func (c *currencyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		if err := a.require(access.ViewDashboard); err != nil {
			return err
		}
		if f.NArg() == 0 {
			current := a.currency()
			for _, cur := range core.Currencies {
				mark := " "
				if cur == current {
					mark = "*"
				}
				fmt.Fprintf(c.stdout, "%s %s\n", mark, cur)
			}
			return nil
		}
		u, err := a.sessions.UpdateCurrency(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Currency set to %s\n", u.Currency)
		return nil
	})
}
