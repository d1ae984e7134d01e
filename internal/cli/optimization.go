package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/domain"
)

// modelsCmd lists the selectable models
type modelsCmd struct {
	app *App
}

func (*modelsCmd) Name() string     { return "models" }
func (*modelsCmd) Synopsis() string { return "list stock-picking and risk models" }
func (*modelsCmd) Usage() string {
	return `folio models

  Lists the model ids accepted by 'optimize'. Risk models double as
  rebalance methods.
`
}

func (*modelsCmd) SetFlags(*flag.FlagSet) {}

func (c *modelsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	catalog := container.ReferenceLoader.Load(ctx)
	if len(catalog.Models) == 0 && len(catalog.RiskModels) == 0 {
		return c.app.fail("Error: backend returned no models (is it running at %s?)", container.Backend.BaseURL())
	}
	c.app.Print(CatalogMarkdown(catalog))
	return subcommands.ExitSuccess
}

// optimizeCmd runs one optimization and optionally saves it
type optimizeCmd struct {
	app *App

	model     string
	riskModel string
	capital   float64
	date      string
	save      string
	notes     string
}

func (*optimizeCmd) Name() string     { return "optimize" }
func (*optimizeCmd) Synopsis() string { return "optimize a portfolio and optionally save it" }
func (*optimizeCmd) Usage() string {
	return `folio optimize -m <model> -r <risk model> [-c <capital>] [-d <date>] [-save <name> [-notes <text>]]

  Runs an optimization against the backend and prints the allocation,
  statistics and chart summary. With -save the result is stored as a
  named portfolio.
`
}

func (c *optimizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.model, "m", "", "stock-picking model id (see 'folio models')")
	f.StringVar(&c.riskModel, "r", "", "risk model id (see 'folio models')")
	f.Float64Var(&c.capital, "c", 0, "capital to allocate; the configured default when 0")
	f.StringVar(&c.date, "d", "", "snapshot date YYYY-MM-DD; most recent data when empty")
	f.StringVar(&c.save, "save", "", "save the result under this name")
	f.StringVar(&c.notes, "notes", "", "notes stored with -save")
}

func (c *optimizeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.model == "" || c.riskModel == "" {
		return c.app.usage("Error: -m and -r are required")
	}
	var snapshot domain.Date
	if c.date != "" {
		d, err := domain.ParseDate(c.date)
		if err != nil {
			return c.app.usage("Error parsing date: %v", err)
		}
		snapshot = d
	}

	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	container.ReferenceLoader.Load(ctx)

	session := container.Session
	if err := session.SetModel(c.model); err != nil {
		return c.app.usage("Error: %v", err)
	}
	if err := session.SetRiskModel(c.riskModel); err != nil {
		return c.app.usage("Error: %v", err)
	}
	if c.capital != 0 {
		if err := session.SetCapital(c.capital); err != nil {
			return c.app.usage("Error: %v", err)
		}
	}
	if !snapshot.IsZero() {
		session.SetSnapshotDate(snapshot)
	}

	if err := session.Run(ctx); err != nil {
		return c.app.fail("Optimization failed: %s", backend.ErrorMessage(err))
	}
	session.Wait()
	c.app.Print(SessionMarkdown(session.Snapshot()))

	if c.save == "" {
		return subcommands.ExitSuccess
	}
	rec, err := container.Persistence.Save(ctx, c.save, c.notes)
	if err != nil {
		return c.app.fail("Save failed: %s", backend.ErrorMessage(err))
	}
	c.app.Print(fmt.Sprintf("Saved **%s** as `%s`\n", rec.Name, rec.ID))
	return subcommands.ExitSuccess
}
