package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/charts"
	"github.com/aristath/folio/internal/modules/history"
	"github.com/aristath/folio/internal/modules/optimization"
	"github.com/aristath/folio/internal/modules/portfolio"
	"github.com/aristath/folio/internal/modules/reference"
	"github.com/aristath/folio/internal/modules/settings"
)

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func percent(v float64) string {
	return decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func dateOr(d domain.Date, fallback string) string {
	if d.IsZero() {
		return fallback
	}
	return d.String()
}

// CatalogMarkdown lists the selectable models
func CatalogMarkdown(c reference.Catalog) string {
	var b strings.Builder
	b.WriteString("# Models\n\n")
	writeList(&b, c.Models)
	b.WriteString("\n# Risk models\n\n")
	writeList(&b, c.RiskModels)
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("_none available_\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- `%s`\n", item)
	}
}

// PositionsMarkdown is the allocation table
func PositionsMarkdown(positions []domain.PositionView) string {
	if len(positions) == 0 {
		return "_no positions_\n"
	}
	var b strings.Builder
	b.WriteString("| Ticker | Company | Sector | Weight | Allocated | Shares | Price |\n")
	b.WriteString("|---|---|---|---:|---:|---:|---:|\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %d | %s |\n",
			p.Ticker, p.Company, p.Sector, percent(p.Weight), money(p.Allocated), p.Shares, money(p.Price))
	}
	return b.String()
}

func capitalLines(a domain.Allocation) string {
	var b strings.Builder
	if a.TotalCapital > 0 {
		fmt.Fprintf(&b, "- Total capital: %s\n", money(a.TotalCapital))
	}
	fmt.Fprintf(&b, "- Invested: %s\n", money(a.Invested()))
	if a.LeftoverCapital > 0 {
		fmt.Fprintf(&b, "- Leftover: %s\n", money(a.LeftoverCapital))
	}
	return b.String()
}

// StatsMarkdown lists the statistics sorted by name
func StatsMarkdown(stats domain.Statistics) string {
	if len(stats) == 0 {
		return ""
	}
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("| Statistic | Value |\n|---|---:|\n")
	for _, name := range names {
		fmt.Fprintf(&b, "| %s | %s |\n", name, stats[name].String())
	}
	return b.String()
}

// ChartsMarkdown summarizes a chart derivation
func ChartsMarkdown(s charts.Snapshot) string {
	switch {
	case s.Error != "":
		return fmt.Sprintf("Charts unavailable: %s\n", s.Error)
	case s.Loading:
		return "_charts loading_\n"
	case s.Bundle == nil:
		return ""
	}

	var b strings.Builder
	eq := s.Bundle.EquityPoints()
	if len(eq) > 0 {
		first, last := eq[0], eq[len(eq)-1]
		fmt.Fprintf(&b, "- Equity: %s (%s) to %s (%s)\n",
			money(first.Value), first.Date, money(last.Value), last.Date)
	}
	if dd := s.Bundle.Drawdown; len(dd) > 0 {
		worst := dd[0]
		for _, v := range dd[1:] {
			if v < worst {
				worst = v
			}
		}
		fmt.Fprintf(&b, "- Max drawdown: %s\n", percent(worst))
	}
	sectors := s.Bundle.SectorMap()
	names := make([]string, 0, len(sectors))
	for name := range sectors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, percent(sectors[name]))
	}
	return b.String()
}

// SessionMarkdown renders an optimization session
func SessionMarkdown(s optimization.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Optimization: %s / %s\n\n", s.Parameters.Model, s.Parameters.RiskModel)
	fmt.Fprintf(&b, "- State: %s\n", s.State)
	fmt.Fprintf(&b, "- Capital: %s\n", money(s.Capital))
	fmt.Fprintf(&b, "- Snapshot date: %s\n", dateOr(s.Parameters.SnapshotDate, "latest"))
	if s.Error != "" {
		fmt.Fprintf(&b, "\n**Error:** %s\n", s.Error)
	}
	if s.Result == nil {
		return b.String()
	}

	b.WriteString("\n## Allocation\n\n")
	b.WriteString(PositionsMarkdown(s.Positions))
	b.WriteString("\n")
	b.WriteString(capitalLines(s.Result.Allocation))
	if stats := StatsMarkdown(s.Result.Stats); stats != "" {
		b.WriteString("\n## Statistics\n\n")
		b.WriteString(stats)
	}
	if c := ChartsMarkdown(s.Charts); c != "" {
		b.WriteString("\n## Charts\n\n")
		b.WriteString(c)
	}
	return b.String()
}

// DirectoryMarkdown renders the saved portfolio listing
func DirectoryMarkdown(dir *portfolio.Directory) string {
	var b strings.Builder
	b.WriteString("# Portfolios\n\n")
	if dir.Stale {
		fmt.Fprintf(&b, "_Backend unreachable (%s), showing cached list._\n\n", dir.Error)
	}
	if len(dir.Portfolios) == 0 {
		b.WriteString("_no saved portfolios_\n")
		return b.String()
	}
	b.WriteString("| ID | Name | Model | Risk model | Capital | End date | Positions |\n")
	b.WriteString("|---|---|---|---|---:|---|---:|\n")
	for _, p := range dir.Portfolios {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %d |\n",
			p.ID, p.Name, p.Model, p.RiskModel, money(p.Capital), dateOr(p.EndDate, "-"), p.Positions)
	}
	return b.String()
}

// RemindersMarkdown lists the reminder state per cadence
func RemindersMarkdown(s portfolio.DetailSnapshot) string {
	var b strings.Builder
	if s.Reminders.LoadError != "" {
		fmt.Fprintf(&b, "Reminders unavailable: %s\n", s.Reminders.LoadError)
		return b.String()
	}
	for _, c := range domain.Cadences() {
		entry, ok := s.Reminders.Cadences[c]
		if !ok {
			continue
		}
		state := "off"
		if entry.Reminder.Active {
			state = "on"
		}
		fmt.Fprintf(&b, "- %s: %s", c, state)
		if entry.Error != "" {
			fmt.Fprintf(&b, " (error: %s)", entry.Error)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		b.WriteString("_no reminders_\n")
	}
	return b.String()
}

// DetailMarkdown renders an open portfolio
func DetailMarkdown(s portfolio.DetailSnapshot) string {
	var b strings.Builder
	if s.Record == nil {
		fmt.Fprintf(&b, "# Portfolio %s\n\n", s.PortfolioID)
		if s.LoadError != "" {
			fmt.Fprintf(&b, "**Error:** %s\n", s.LoadError)
		}
		return b.String()
	}

	rec := s.Record
	fmt.Fprintf(&b, "# %s\n\n", rec.Name)
	if rec.Notes != "" {
		fmt.Fprintf(&b, "%s\n\n", rec.Notes)
	}
	fmt.Fprintf(&b, "- ID: %s\n", rec.ID)
	fmt.Fprintf(&b, "- Model: %s / %s\n", rec.Model, rec.RiskModel)
	fmt.Fprintf(&b, "- Capital: %s\n", money(rec.Capital))
	fmt.Fprintf(&b, "- End date: %s\n", dateOr(rec.EndDate, "-"))
	fmt.Fprintf(&b, "- Rebalance: %s\n", s.State)
	if s.Error != "" {
		fmt.Fprintf(&b, "\n**Error:** %s\n", s.Error)
	}

	fmt.Fprintf(&b, "\n## Allocation (%s)\n\n", s.DisplayLabel)
	b.WriteString(PositionsMarkdown(s.Display))
	if s.Proposal != nil {
		b.WriteString("\n")
		b.WriteString(capitalLines(s.Proposal.Allocation))
	} else {
		b.WriteString("\n")
		b.WriteString(capitalLines(rec.Allocation))
	}

	if stats := StatsMarkdown(rec.Stats); stats != "" {
		b.WriteString("\n## Statistics\n\n")
		b.WriteString(stats)
	}
	if c := ChartsMarkdown(s.Charts); c != "" {
		b.WriteString("\n## Charts\n\n")
		b.WriteString(c)
	}
	b.WriteString("\n## Reminders\n\n")
	b.WriteString(RemindersMarkdown(s))
	return b.String()
}

// SettingsMarkdown renders the notification settings
func SettingsMarkdown(v *settings.View) string {
	var b strings.Builder
	b.WriteString("# Settings\n\n")
	if v.Stale {
		fmt.Fprintf(&b, "_Backend unreachable (%s), showing cached settings._\n\n", v.Error)
	}
	telegram := "-"
	if v.Settings.TelegramID != 0 {
		telegram = fmt.Sprint(v.Settings.TelegramID)
	}
	email := v.Settings.Email
	if email == "" {
		email = "-"
	}
	fmt.Fprintf(&b, "- Telegram: %s\n- Email: %s\n", telegram, email)
	return b.String()
}

// HistoryMarkdown lists journal entries
func HistoryMarkdown(entries []history.Entry) string {
	var b strings.Builder
	b.WriteString("# Activity\n\n")
	if len(entries) == 0 {
		b.WriteString("_nothing recorded yet_\n")
		return b.String()
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s %s", e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Summary)
		if e.PortfolioID != "" {
			fmt.Fprintf(&b, " (`%s`)", e.PortfolioID)
		}
		b.WriteString("\n")
	}
	return b.String()
}
