// Command budget is a terminal client for the budget ledger service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	e := &env{cfg: cfg, logger: logger, stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(int(run(context.Background(), e, os.Args[1:])))
}

func run(ctx context.Context, e *env, args []string) subcommands.ExitStatus {
	fs := flag.NewFlagSet("budget", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	commander := subcommands.NewCommander(fs, "budget")
	commander.Output = e.stdout
	commander.Error = e.stderr

	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&loginCmd{env: e}, "session")
	commander.Register(&logoutCmd{env: e}, "session")
	commander.Register(&whoamiCmd{env: e}, "session")
	commander.Register(&registerCmd{env: e}, "session")
	commander.Register(&currencyCmd{env: e}, "session")

	commander.Register(&listCmd{env: e}, "transactions")
	commander.Register(&addCmd{env: e}, "transactions")
	commander.Register(&editCmd{env: e}, "transactions")
	commander.Register(&rmCmd{env: e}, "transactions")
	commander.Register(&categoriesCmd{env: e}, "transactions")
	commander.Register(&statsCmd{env: e}, "transactions")
	commander.Register(&exportCmd{env: e}, "transactions")

	commander.Register(&adminTxCmd{env: e}, "admin")
	commander.Register(&adminUsersCmd{env: e}, "admin")

	if err := fs.Parse(args); err != nil {
		return subcommands.ExitUsageError
	}
	return commander.Execute(ctx)
}

// withApp opens the ledger, runs fn and reports its error on stderr.
func (e *env) withApp(ctx context.Context, fn func(*app) error) subcommands.ExitStatus {
	a, err := e.open(ctx)
	if err != nil {
		fmt.Fprintln(e.stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(a); err != nil {
		fmt.Fprintln(e.stderr, describe(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// describe turns the error taxonomy into a message for the terminal.
func describe(err error) string {
	switch core.Kind(err) {
	case "auth_error":
		return err.Error() + " (run 'budget login')"
	case "network_error":
		return "ledger unavailable: " + err.Error()
	default:
		return err.Error()
	}
}
