package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"

	"budget/internal/access"
	"budget/internal/core"
	"budget/internal/filter"
	"budget/internal/ledger"
	"budget/internal/sheets"
	gsheet "budget/internal/sheets/google"
	"budget/internal/stats"
	"budget/internal/transactions"
)

func printTransactions(w io.Writer, txs []core.Transaction, cur core.Currency, withOwner bool) error {
	if len(txs) == 0 {
		_, err := fmt.Fprintln(w, "No transactions")
		return err
	}
	header := []string{"ID", "DATE", "DESCRIPTION", "CATEGORY", "AMOUNT"}
	if withOwner {
		header = append(header, "OWNER")
	}
	rows := make([][]string, 0, len(txs))
	for _, t := range txs {
		c := cur
		if t.Currency != "" {
			c = t.Currency
		}
		row := []string{strconv.FormatInt(t.ID, 10), t.Date.Format(time.DateOnly), t.Description, t.Category, core.FormatAmount(t.Amount, c)}
		if withOwner {
			owner := t.Username
			if owner == "" {
				owner = strconv.FormatInt(t.UserID, 10)
			}
			row = append(row, owner)
		}
		rows = append(rows, row)
	}
	return writeTable(w, header, rows)
}

func parseID(f *flag.FlagSet) (int64, error) {
	if f.NArg() != 1 {
		return 0, &core.ValidationError{Field: "id", Reason: "exactly one transaction id is required"}
	}
	id, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a valid id", f.Arg(0))}
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return ledger.ParseTimestamp(s)
}

type listCmd struct {
	*env
	search   string
	category string
	recent   bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list your transactions" }
func (*listCmd) Usage() string {
	return `budget list [-search <text>] [-category <name>] [-recent]

  Lists your transactions, newest first. Search and category are applied by
  the ledger service. With -recent only the latest few are shown.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.search, "search", "", "Only transactions whose description contains the text.")
	f.StringVar(&c.category, "category", "", "Only transactions in this category.")
	f.BoolVar(&c.recent, "recent", false, "Show the dashboard slice of recent transactions.")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		view := access.ViewTransactions
		if c.recent {
			view = access.ViewDashboard
		}
		if err := a.require(view); err != nil {
			return err
		}
		store, stop := a.store(transactions.ScopeOwn)
		defer stop()

		var (
			txs []core.Transaction
			err error
		)
		if c.recent {
			txs, err = transactions.NewView(store, filter.ClientSlice{Limit: c.cfg.DashboardLimit}).Load(ctx)
		} else {
			v := transactions.NewView(store, filter.ServerQuery{})
			txs, err = v.SetFilter(ctx, filter.State{Term: c.search, Category: c.category})
		}
		if err != nil {
			return err
		}
		return printTransactions(c.stdout, txs, a.currency(), false)
	})
}

type addCmd struct {
	*env
	description string
	amount      string
	category    string
	date        string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a transaction" }
func (*addCmd) Usage() string {
	return `budget add -desc <text> -amount <number> [-category <name>] [-date YYYY-MM-DD]

  Negative amounts are expenses. A blank category is stored as "Other" and a
  missing date means today.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.description, "desc", "", "Description of the transaction.")
	f.StringVar(&c.amount, "amount", "", "Signed amount; negative for expenses.")
	f.StringVar(&c.category, "category", "", "Category label.")
	f.StringVar(&c.date, "date", "", "Date of the transaction (YYYY-MM-DD).")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		if err := a.require(access.ViewTransactions); err != nil {
			return err
		}
		date, err := parseDate(c.date)
		if err != nil {
			return err
		}
		draft, err := core.NewDraft(c.description, c.amount, c.category, date)
		if err != nil {
			return err
		}
		store, stop := a.store(transactions.ScopeOwn)
		defer stop()

		t, err := store.Create(ctx, draft)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Added #%d %s %s (%s)\n", t.ID, t.Description, core.FormatAmount(t.Amount, a.currency()), t.Category)
		return nil
	})
}

type editCmd struct {
	*env
	description string
	amount      string
	category    string
	date        string
	all         bool
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change a transaction" }
func (*editCmd) Usage() string {
	return `budget edit [-desc <text>] [-amount <number>] [-category <name>] [-date YYYY-MM-DD] [-all] <id>

  Only the flags given are changed. Administrators may pass -all to edit
  another user's transaction.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.description, "desc", "", "New description.")
	f.StringVar(&c.amount, "amount", "", "New signed amount.")
	f.StringVar(&c.category, "category", "", "New category.")
	f.StringVar(&c.date, "date", "", "New date (YYYY-MM-DD).")
	f.BoolVar(&c.all, "all", false, "Look the transaction up among every user's (admin only).")
}

func (c *editCmd) patch(f *flag.FlagSet) (core.Patch, error) {
	var (
		p   core.Patch
		err error
	)
	f.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "desc":
			d := c.description
			p.Description = &d
		case "amount":
			amt, perr := core.ParseAmount(c.amount)
			err = perr
			p.Amount = &amt
		case "category":
			cat := strings.TrimSpace(c.category)
			if cat == "" {
				cat = core.DefaultCategory
			}
			p.Category = &cat
		case "date":
			var d time.Time
			d, err = ledger.ParseTimestamp(c.date)
			p.Date = &d
		}
	})
	if err != nil {
		return core.Patch{}, err
	}
	return p, p.Validate()
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		scope, view := transactions.ScopeOwn, access.ViewTransactions
		if c.all {
			scope, view = transactions.ScopeAll, access.ViewAdmin
		}
		if err := a.require(view); err != nil {
			return err
		}
		id, err := parseID(f)
		if err != nil {
			return err
		}
		p, err := c.patch(f)
		if err != nil {
			return err
		}
		store, stop := a.store(scope)
		defer stop()

		if _, err := store.Fetch(ctx, core.Query{}); err != nil {
			return err
		}
		t, err := store.Update(ctx, id, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Updated #%d %s %s (%s)\n", t.ID, t.Description, core.FormatAmount(t.Amount, a.currency()), t.Category)
		return nil
	})
}

type rmCmd struct {
	*env
	yes bool
	all bool
}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete a transaction" }
func (*rmCmd) Usage() string {
	return `budget rm [-yes] [-all] <id>

  Asks for confirmation unless -yes is given. Administrators may pass -all
  to delete another user's transaction.
`
}

func (c *rmCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "Do not ask for confirmation.")
	f.BoolVar(&c.all, "all", false, "Look the transaction up among every user's (admin only).")
}

func (c *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		scope, view := transactions.ScopeOwn, access.ViewTransactions
		if c.all {
			scope, view = transactions.ScopeAll, access.ViewAdmin
		}
		if err := a.require(view); err != nil {
			return err
		}
		id, err := parseID(f)
		if err != nil {
			return err
		}
		store, stop := a.store(scope)
		defer stop()

		if _, err := store.Fetch(ctx, core.Query{}); err != nil {
			return err
		}
		var confirm core.Confirmer = promptConfirmer{in: c.stdin, out: c.stderr}
		if c.yes {
			confirm = core.Confirmed
		}
		deleted, err := store.Delete(ctx, id, confirm)
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Fprintln(c.stdout, "Cancelled")
			return nil
		}
		fmt.Fprintf(c.stdout, "Deleted #%d\n", id)
		return nil
	})
}

type categoriesCmd struct{ *env }

func (*categoriesCmd) Name() string             { return "categories" }
func (*categoriesCmd) Synopsis() string         { return "list the categories you have used" }
func (*categoriesCmd) Usage() string            { return "budget categories\n" }
func (*categoriesCmd) SetFlags(_ *flag.FlagSet) {}

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		if err := a.require(access.ViewTransactions); err != nil {
			return err
		}
		cats, err := a.catalog.Categories(ctx)
		if err != nil {
			return err
		}
		for _, cat := range cats {
			fmt.Fprintln(c.stdout, cat)
		}
		return nil
	})
}

type statsCmd struct {
	*env
	month int
	year  int
	years int
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "show the income and expense totals of a month" }
func (*statsCmd) Usage() string {
	return `budget stats [-month <1-12>] [-year <yyyy>] [-years <n>]

  Defaults to the current month. With -years, lists the selectable years
  instead.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.month, "month", 0, "Month to summarize (defaults to the current one).")
	f.IntVar(&c.year, "year", 0, "Year to summarize (defaults to the current one).")
	f.IntVar(&c.years, "years", 0, "List this many selectable years and exit.")
}

func (c *statsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		if err := a.require(access.ViewDashboard); err != nil {
			return err
		}
		agg := stats.New(a.client, time.Now, c.logger)
		if c.years > 0 {
			for _, y := range agg.YearOptions(c.years) {
				fmt.Fprintln(c.stdout, y)
			}
			return nil
		}

		sel := agg.Selection()
		if c.month != 0 {
			sel.Month = c.month
		}
		if c.year != 0 {
			sel.Year = c.year
		}
		if err := agg.Select(sel.Month, sel.Year); err != nil {
			return err
		}
		res, err := agg.Query(ctx)
		if err != nil {
			return err
		}
		cur := a.currency()
		return writeTable(c.stdout, []string{fmt.Sprintf("%s %d", time.Month(sel.Month), sel.Year), "TOTAL"}, [][]string{
			{"Income", core.FormatAmount(res.TotalIncome, cur)},
			{"Expenses", core.FormatAmount(res.TotalExpense, cur)},
			{"Net", core.FormatAmount(res.NetBalance, cur)},
		})
	})
}

type exportCmd struct {
	*env
	search   string
	category string
	all      bool
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "append transactions to the configured Google Sheet" }
func (*exportCmd) Usage() string {
	return `budget export [-search <text>] [-category <name>] [-all]

  Requires GOOGLE_SPREADSHEET_ID and service account credentials.
  Administrators may pass -all to export every user's transactions.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.search, "search", "", "Only transactions whose description contains the text.")
	f.StringVar(&c.category, "category", "", "Only transactions in this category.")
	f.BoolVar(&c.all, "all", false, "Export every user's transactions (admin only).")
}

func (c *exportCmd) exporter(ctx context.Context) (sheets.Exporter, error) {
	if c.newExporter != nil {
		return c.newExporter(ctx)
	}
	if !c.cfg.ExportEnabled() {
		return nil, errors.New("export is not configured; set GOOGLE_SPREADSHEET_ID")
	}
	return gsheet.NewFromEnv(ctx, c.logger)
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app) error {
		state := filter.State{Term: c.search, Category: c.category}
		scope, view, policy := transactions.ScopeOwn, access.ViewTransactions, filter.Policy(filter.ServerQuery{})
		if c.all {
			scope, view, policy = transactions.ScopeAll, access.ViewAdmin, filter.Hybrid{}
		}
		if err := a.require(view); err != nil {
			return err
		}
		exp, err := c.exporter(ctx)
		if err != nil {
			return err
		}
		store, stop := a.store(scope)
		defer stop()

		v := transactions.NewView(store, policy)
		if !policy.Remote() {
			if _, err := v.Load(ctx); err != nil {
				return err
			}
		}
		txs, err := v.SetFilter(ctx, state)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			fmt.Fprintln(c.stdout, "Nothing to export")
			return nil
		}
		ref, err := exp.Export(ctx, txs)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "Exported %d transactions to %s\n", len(txs), ref)
		return nil
	})
}
