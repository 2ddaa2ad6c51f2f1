package main

import (
	"flag"
	"fmt"

	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/ledger"
	"github.com/dvloznov/budget-ledger/internal/report"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func runInstallments(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("installments", flag.ExitOnError)
	user := userFlag(fs)
	description := fs.String("description", "", "Description of the purchase")
	categoryID := fs.String("category", "", "Category ID")
	amount := fs.String("amount", "", "Amount of each installment")
	total := fs.String("total", "", "Total to split into installments (instead of -amount)")
	count := fs.Int("count", 1, "Number of installments")
	start := fs.String("start", "", "Due date of the first installment, YYYY-MM-DD (default: today)")
	direction := fs.String("direction", string(domain.DirectionExpense), "income or expense")
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	startDate, err := parseDate(*start)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -start")
	}
	if startDate.IsZero() {
		startDate = e.session.Today()
	}

	each, err := parseOptionalDecimal(*amount)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -amount")
	}
	whole, err := parseOptionalDecimal(*total)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -total")
	}
	if !each.Valid && whole.Valid {
		split, err := ledger.SplitTotal(whole.Decimal, *count)
		if err != nil {
			e.log.Fatal().Err(err).Msg("Error: cannot split total")
		}
		each = decimal.NewNullDecimal(split)
	}

	entries, err := e.app.Engine.Generate(e.ctx, e.session, ledger.GenerateRequest{
		StartDate:   startDate,
		Description: *description,
		CategoryID:  *categoryID,
		Amount:      each.Decimal,
		Direction:   domain.Direction(*direction),
		Count:       *count,
	})
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to create installments")
	}

	printEntries(entries)
}

func runSeries(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("series", flag.ExitOnError)
	user := userFlag(fs)
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	series, err := e.app.Engine.PendingSeries(e.ctx, e.session)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to list series")
	}
	if len(series) == 0 {
		fmt.Println("No pending installments.")
		return
	}

	tw := newTable()
	fmt.Fprintln(tw, "KEY\tDESCRIPTION\tPENDING\tTOTAL\tNEXT DUE")
	for _, s := range series {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n", s.Key, s.Description, len(s.Entries), s.Total, s.PendingTotal.StringFixed(2), s.NextDue)
	}
	tw.Flush()
}

func runSettle(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("settle", flag.ExitOnError)
	user := userFlag(fs)
	seriesKey := fs.String("series", "", "Series key: settle every pending installment in full")
	ids := fs.String("ids", "", "Comma separated entry IDs to settle")
	kind := fs.String("kind", string(domain.SettlementPartial), "full or partial, with -ids")
	discount := fs.String("discount", "0", "Discount on the pending total")
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	off, err := parseOptionalDecimal(*discount)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -discount")
	}

	var result *ledger.SettleResult
	switch {
	case *seriesKey != "" && *ids != "":
		e.log.Fatal().Msg("Error: give either -series or -ids")
	case *seriesKey != "":
		result, err = e.app.Engine.SettleSeries(e.ctx, e.session, *seriesKey, off.Decimal)
	case *ids != "":
		result, err = e.app.Engine.SettleByIDs(e.ctx, e.session, domain.SettlementKind(*kind), splitIDs(*ids), off.Decimal)
	default:
		e.log.Fatal().Msg("Error: -series or -ids is required")
	}
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to settle")
	}

	fmt.Printf("Settled %d installment(s): paid %s of %s (discount %s) on %s.\n",
		result.Settlement.Count,
		result.Settlement.AmountPaid.StringFixed(2),
		result.Settlement.OriginalTotal.StringFixed(2),
		result.Settlement.Discount.StringFixed(2),
		result.Entry.Date)
}

func runToggle(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("toggle", flag.ExitOnError)
	user := userFlag(fs)
	id := fs.String("id", "", "Entry ID")
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	entry, err := e.app.Engine.ToggleStatus(e.ctx, e.session, *id)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to toggle entry")
	}
	fmt.Printf("%s is now %s.\n", entry.Description, entry.Status)
}

func runReschedule(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("reschedule", flag.ExitOnError)
	user := userFlag(fs)
	id := fs.String("id", "", "Entry ID")
	date := fs.String("date", "", "New due date, YYYY-MM-DD")
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	d, err := parseDate(*date)
	if err != nil || d.IsZero() {
		e.log.Fatal().Err(err).Msg("Error: -date is required as YYYY-MM-DD")
	}

	entry, err := e.app.Engine.Reschedule(e.ctx, e.session, *id, d)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to reschedule entry")
	}
	fmt.Printf("%s moved to %s.\n", entry.Description, entry.Date)
}

func runCarry(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("carry", flag.ExitOnError)
	user := userFlag(fs)
	what := fs.String("what", "pending", "pending or balance")
	month := fs.String("month", "", "Target month, YYYY-MM (default: current month)")
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	year, m, err := parseMonth(*month, e.session.Today())
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -month")
	}

	switch *what {
	case "pending":
		result, err := e.app.Engine.CarryPending(e.ctx, e.session, year, m)
		if err != nil {
			e.log.Fatal().Err(err).Msg("Failed to carry pending entries")
		}
		fmt.Printf("%d pending entries moved into %s %d.\n", result.Moved, m, year)

	case "balance":
		entry, err := e.app.Engine.CarryBalance(e.ctx, e.session, year, m)
		if err != nil {
			e.log.Fatal().Err(err).Msg("Failed to carry balance")
		}
		if entry == nil {
			fmt.Println("Previous month closed at zero, nothing carried.")
			return
		}
		fmt.Printf("%s: %s %s\n", entry.Description, entry.Direction, entry.Amount.StringFixed(2))

	default:
		e.log.Fatal().Str("what", *what).Msg("Error: -what must be pending or balance")
	}
}

func runDeleteSeries(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("delete-series", flag.ExitOnError)
	user := userFlag(fs)
	key := fs.String("key", "", "Series key, as printed by the series command")
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	if *key == "" {
		e.log.Fatal().Msg("Error: -key is required")
	}
	n, err := e.app.Engine.DeleteSeries(e.ctx, e.session, *key)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to delete series")
	}
	fmt.Printf("Deleted %d entries.\n", n)
}

func runSummary(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	user := userFlag(fs)
	month := fs.String("month", "", "Month, YYYY-MM (default: current month)")
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	year, m, err := parseMonth(*month, e.session.Today())
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -month")
	}
	from, to := ledger.MonthBounds(year, m)

	entries, err := e.app.Engine.Entries(e.ctx, e.session, domain.EntryFilter{From: from, To: to})
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to load entries")
	}
	s := report.Summarize(entries)

	fmt.Printf("%s %d\n\n", m, year)
	tw := newTable()
	fmt.Fprintln(tw, "\tPAID\tPENDING")
	fmt.Fprintf(tw, "Income\t%s (%d)\t%s (%d)\n", s.PaidIncome.Amount.StringFixed(2), s.PaidIncome.Count, s.PendingIncome.Amount.StringFixed(2), s.PendingIncome.Count)
	fmt.Fprintf(tw, "Expense\t%s (%d)\t%s (%d)\n", s.PaidExpense.Amount.StringFixed(2), s.PaidExpense.Count, s.PendingExpense.Amount.StringFixed(2), s.PendingExpense.Count)
	tw.Flush()
	fmt.Printf("\nRealized: %s\nProjected: %s\n", s.Realized.StringFixed(2), s.Projected.StringFixed(2))

	alerts := report.BuildDueAlerts(e.session.Today(), entries)
	if !alerts.Empty() {
		fmt.Printf("\nOverdue: %d, due today: %d, within 3 days: %d, within 7 days: %d\n",
			len(alerts.Overdue), len(alerts.DueToday), len(alerts.Within3Days), len(alerts.Within7Days))
	}
}

func runReport(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	user := userFlag(fs)
	fromStr := fs.String("from", "", "Start date, YYYY-MM-DD (default: first of this month)")
	toStr := fs.String("to", "", "End date, YYYY-MM-DD (default: end of this month)")
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	today := e.session.Today()
	monthStart, monthEnd := ledger.MonthBounds(today.Year, today.Month)
	from, err := parseDate(*fromStr)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -from")
	}
	to, err := parseDate(*toStr)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Error: invalid -to")
	}
	if from.IsZero() {
		from = monthStart
	}
	if to.IsZero() {
		to = monthEnd
	}
	if to.Before(from) {
		e.log.Fatal().Msg("Error: -to must not be before -from")
	}

	entries, err := e.app.Engine.Entries(e.ctx, e.session, domain.EntryFilter{From: from, To: to, Status: domain.StatusPaid})
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to load entries")
	}
	categories, err := e.app.Engine.Categories(e.ctx, e.session, "")
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to load categories")
	}
	r := report.BuildPeriod(from, to, entries, categories)

	tw := newTable()
	fmt.Fprintln(tw, "CATEGORY\tINCOME\tEXPENSE\tNET\tCOUNT")
	for _, line := range r.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", line.Name, line.Income.StringFixed(2), line.Expense.StringFixed(2), line.Net.StringFixed(2), line.Count)
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\t%d\n", r.Income.StringFixed(2), r.Expense.StringFixed(2), r.Balance.StringFixed(2), r.Count)
	tw.Flush()
}

func runRecurring(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("recurring", flag.ExitOnError)
	user := userFlag(fs)
	action := fs.String("action", "list", "list, add, generate, pause or resume")
	id := fs.String("id", "", "Bill ID, for pause and resume")
	description := fs.String("description", "", "Bill description, for add")
	categoryID := fs.String("category", "", "Category ID, for add")
	amount := fs.String("amount", "", "Monthly amount, for add")
	direction := fs.String("direction", string(domain.DirectionExpense), "income or expense, for add")
	dueDay := fs.Int("due-day", 1, "Day of month the bill is due, for add")
	month := fs.String("month", "", "Month to generate, YYYY-MM (default: current month)")
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	switch *action {
	case "list":
		bills, err := e.app.Engine.RecurringBills(e.ctx, e.session, false)
		if err != nil {
			e.log.Fatal().Err(err).Msg("Failed to list recurring bills")
		}
		tw := newTable()
		fmt.Fprintln(tw, "ID\tDESCRIPTION\tAMOUNT\tDUE DAY\tACTIVE")
		for _, b := range bills {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", b.ID, b.Description, b.Amount.StringFixed(2), b.DueDay, b.Active)
		}
		tw.Flush()

	case "add":
		value, err := parseOptionalDecimal(*amount)
		if err != nil || !value.Valid {
			e.log.Fatal().Err(err).Msg("Error: -amount is required")
		}
		bill, err := e.app.Engine.CreateRecurringBill(e.ctx, e.session, ledger.NewRecurringBill{
			Description: *description,
			CategoryID:  *categoryID,
			Amount:      value.Decimal,
			Direction:   domain.Direction(*direction),
			DueDay:      *dueDay,
		})
		if err != nil {
			e.log.Fatal().Err(err).Msg("Failed to create recurring bill")
		}
		fmt.Printf("Created recurring bill %s.\n", bill.ID)

	case "generate":
		year, m, err := parseMonth(*month, e.session.Today())
		if err != nil {
			e.log.Fatal().Err(err).Msg("Error: invalid -month")
		}
		result, err := e.app.Engine.GenerateRecurring(e.ctx, e.session, year, m)
		if err != nil {
			e.log.Fatal().Err(err).Msg("Failed to generate recurring entries")
		}
		fmt.Printf("%s %d: %d generated, %d already present, %d skipped.\n",
			m, year, result.Generated, result.AlreadyPresent, result.Skipped)

	case "pause", "resume":
		if err := e.app.Engine.SetRecurringBillActive(e.ctx, e.session, *id, *action == "resume"); err != nil {
			e.log.Fatal().Err(err).Msg("Failed to update recurring bill")
		}
		fmt.Printf("Recurring bill %s %sd.\n", *id, *action)

	default:
		e.log.Fatal().Str("action", *action).Msg("Error: unknown -action")
	}
}

func runSeedCategories(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("seed-categories", flag.ExitOnError)
	user := userFlag(fs)
	fs.Parse(args)

	e, done := open(log, *user)
	defer done()

	n, err := e.app.Engine.SeedDefaultCategories(e.ctx, e.session)
	if err != nil {
		e.log.Fatal().Err(err).Msg("Failed to seed categories")
	}
	if n == 0 {
		fmt.Println("Categories already present, nothing seeded.")
		return
	}
	fmt.Printf("Seeded %d categories.\n", n)
}

func printEntries(entries []domain.Entry) {
	tw := newTable()
	fmt.Fprintln(tw, "ID\tDATE\tDESCRIPTION\tPOSITION\tAMOUNT\tSTATUS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Date, e.Description, positionLabel(e), e.Amount.StringFixed(2), e.Status)
	}
	tw.Flush()
}

