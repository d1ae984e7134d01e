package cli

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/aristath/folio/internal/clients/backend"
	"github.com/aristath/folio/internal/modules/history"
	"github.com/aristath/folio/internal/modules/settings"
)

// settingsCmd shows or updates notification settings
type settingsCmd struct {
	app *App

	telegramID int64
	email      string
}

func (*settingsCmd) Name() string     { return "settings" }
func (*settingsCmd) Synopsis() string { return "show or update notification settings" }
func (*settingsCmd) Usage() string {
	return `folio settings [-telegram <id>] [-email <address>]

  Without flags prints the current settings. With flags the settings are
  updated; unset flags keep their current value.
`
}

func (c *settingsCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.telegramID, "telegram", 0, "telegram chat id")
	f.StringVar(&c.email, "email", "", "notification email address")
}

func (c *settingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	set := map[string]bool{}
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	svc := container.SettingsService

	view, err := svc.Get(ctx)
	if err != nil {
		return c.app.fail("Error loading settings: %s", backend.ErrorMessage(err))
	}
	if len(set) == 0 {
		c.app.Print(SettingsMarkdown(view))
		return subcommands.ExitSuccess
	}

	telegramID, email := view.Settings.TelegramID, view.Settings.Email
	if set["telegram"] {
		telegramID = c.telegramID
	}
	if set["email"] {
		email = c.email
	}
	if err := settings.Validate(telegramID, email); err != nil {
		return c.app.usage("Error: %v", err)
	}

	updated, err := svc.Update(ctx, telegramID, email)
	if err != nil {
		return c.app.fail("Update failed: %s", backend.ErrorMessage(err))
	}
	c.app.Print(SettingsMarkdown(&settings.View{Settings: *updated}))
	return subcommands.ExitSuccess
}

// historyCmd prints the activity journal
type historyCmd struct {
	app *App

	limit       int
	portfolioID string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show recent activity" }
func (*historyCmd) Usage() string {
	return `folio history [-n <count>] [-p <portfolio id>]

  Prints the most recent journal entries, newest first.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", history.DefaultLimit, "number of entries")
	f.StringVar(&c.portfolioID, "p", "", "only entries of this portfolio")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	container, err := c.app.Container(ctx)
	if err != nil {
		return c.app.fail("Error: %v", err)
	}
	entries, err := container.HistoryRepo.Recent(ctx, history.Query{Limit: c.limit, PortfolioID: c.portfolioID})
	if err != nil {
		return c.app.fail("Error reading history: %v", err)
	}
	c.app.Print(HistoryMarkdown(entries))
	return subcommands.ExitSuccess
}
