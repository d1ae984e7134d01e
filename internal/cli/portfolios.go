package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/portfolio"
)

// portfoliosCmd lists or deletes saved portfolios
type portfoliosCmd struct {
	app *App

	delete string
}

func (*portfoliosCmd) Name() string     { return "portfolios" }
func (*portfoliosCmd) Synopsis() string { return "list saved portfolios" }
func (*portfoliosCmd) Usage() string {
	return `folio portfolios [-delete <id>]

  Lists the saved portfolios. When the backend is unreachable the last
  cached listing is shown. With -delete the portfolio is removed first.
`
}

func (c *portfoliosCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.delete, "delete", "", "delete the portfolio with this id")
}

func (c *portfoliosCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}

	if c.delete != "" {
		if err := container.Persistence.Delete(ctx, c.delete); err != nil {
			return c.app.fail("Delete failed: %s", backend.ErrorMessage(err))
		}
	}

	dir, err := container.Persistence.List(ctx)
	if err != nil {
		return c.app.fail("Error listing portfolios: %s", backend.ErrorMessage(err))
	}
	c.app.Print(DirectoryMarkdown(dir))
	return subcommands.ExitSuccess
}

// openDetail opens and loads the portfolio named by the first argument
func openDetail(ctx context.Context, app *App, f *flag.FlagSet) (*portfolio.Detail, subcommands.ExitStatus, bool) {
	if f.NArg() < 1 {
		return nil, app.usage("Error: portfolio id is required"), false
	}
	container, err := app.Container(ctx)
	if err != nil {
		return nil, app.fail("Error: %v", err), false
	}

	d, _ := container.Details.Open(f.Arg(0))
	if err := d.Load(ctx); err != nil {
		return nil, app.fail("Error loading portfolio: %s", backend.ErrorMessage(err)), false
	}
	return d, subcommands.ExitSuccess, true
}

// showCmd prints one portfolio
type showCmd struct {
	app *App
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "show a saved portfolio" }
func (*showCmd) Usage() string {
	return `folio show <id>

  Prints the portfolio's allocation, statistics, chart summary and
  reminders.
`
}

func (*showCmd) SetFlags(*flag.FlagSet) {}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	d, status, ok := openDetail(ctx, c.app, f)
	if !ok {
		return status
	}
	d.Wait()
	c.app.Print(DetailMarkdown(d.Snapshot()))
	return subcommands.ExitSuccess
}

// rebalanceCmd proposes a new allocation and optionally accepts it
type rebalanceCmd struct {
	app *App

	method  string
	capital float64
	asOf    string
	accept  bool
}

func (*rebalanceCmd) Name() string     { return "rebalance" }
func (*rebalanceCmd) Synopsis() string { return "propose a rebalanced allocation" }
func (*rebalanceCmd) Usage() string {
	return `folio rebalance [-method <risk model>] [-c <capital>] [-d <date>] [-accept] <id>

  Asks the backend for a rebalanced allocation and prints it next to the
  portfolio. Without -accept nothing is stored. Unset options default to
  the portfolio's own values.
`
}

func (c *rebalanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.method, "method", "", "rebalance method (a risk model id)")
	f.Float64Var(&c.capital, "c", 0, "capital to rebalance with")
	f.StringVar(&c.asOf, "d", "", "as-of date YYYY-MM-DD")
	f.BoolVar(&c.accept, "accept", false, "store the proposed allocation")
}

func (c *rebalanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var asOf domain.Date
	if c.asOf != "" {
		d, err := domain.ParseDate(c.asOf)
		if err != nil {
			return c.app.usage("Error parsing date: %v", err)
		}
		asOf = d
	}

	d, status, ok := openDetail(ctx, c.app, f)
	if !ok {
		return status
	}

	params := d.Snapshot().Params
	if c.method != "" {
		params.Method = c.method
	}
	if c.capital > 0 {
		params.Capital = c.capital
	}
	if !asOf.IsZero() {
		params.AsOf = asOf
	}

	if err := d.RunRebalance(ctx, params); err != nil {
		return c.app.fail("Rebalance failed: %s", backend.ErrorMessage(err))
	}

	if c.accept {
		if err := d.AcceptRebalance(ctx); err != nil {
			return c.app.fail("Accept failed: %s", backend.ErrorMessage(err))
		}
	}
	d.Wait()
	c.app.Print(DetailMarkdown(d.Snapshot()))
	return subcommands.ExitSuccess
}

// remindCmd toggles a reminder
type remindCmd struct {
	app *App
}

func (*remindCmd) Name() string     { return "remind" }
func (*remindCmd) Synopsis() string { return "toggle a portfolio reminder" }
func (*remindCmd) Usage() string {
	return `folio remind <id> <daily|weekly|quarterly>

  Turns the reminder of the given cadence on or off.
`
}

func (*remindCmd) SetFlags(*flag.FlagSet) {}

func (c *remindCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 2 {
		return c.app.usage("Error: portfolio id and cadence are required")
	}
	cadence, err := domain.ParseCadence(f.Arg(1))
	if err != nil {
		return c.app.usage("Error: %v", err)
	}

	d, status, ok := openDetail(ctx, c.app, f)
	if !ok {
		return status
	}
	if _, exists := d.Snapshot().Reminders.Cadences[cadence]; !exists {
		return c.app.fail("Error: portfolio has no %s reminder", cadence)
	}

	if err := d.Reminders().Toggle(ctx, cadence); err != nil {
		return c.app.fail("Toggle failed: %s", backend.ErrorMessage(err))
	}
	c.app.Print(fmt.Sprintf("## Reminders\n\n%s", RemindersMarkdown(d.Snapshot())))
	return subcommands.ExitSuccess
}
