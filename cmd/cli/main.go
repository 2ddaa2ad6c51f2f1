package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-ledger/internal/app"
	"github.com/dvloznov/budget-ledger/internal/config"
	"github.com/dvloznov/budget-ledger/internal/domain"
	"github.com/dvloznov/budget-ledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type command struct {
	name  string
	usage string
	run   func(log zerolog.Logger, args []string)
}

var commands = []command{
	{"installments", "Create an installment series", runInstallments},
	{"series", "List installment series with pending installments", runSeries},
	{"settle", "Settle a series or selected installments", runSettle},
	{"toggle", "Toggle an entry between paid and pending", runToggle},
	{"reschedule", "Move a pending entry to another date", runReschedule},
	{"carry", "Bring last month's pending entries or balance into a month", runCarry},
	{"delete-series", "Delete every entry of an installment series", runDeleteSeries},
	{"summary", "Show the month summary", runSummary},
	{"report", "Show paid totals by category for a period", runReport},
	{"recurring", "List, add or generate recurring bills", runRecurring},
	{"seed-categories", "Create the default categories for a user", runSeedCategories},
	{"parse", "Parse an OFX statement and print its transactions", runParse},
	{"import", "Import transactions from an OFX statement", runImport},
	{"upload", "Archive an OFX statement and import it", runUpload},
}

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage()
		return
	}
	for _, c := range commands {
		if c.name == name {
			c.run(log, os.Args[2:])
			return
		}
	}

	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
	printUsage()
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Budget Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	for _, c := range commands {
		fmt.Printf("  %-16s %s\n", c.name, c.usage)
	}
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// env is what a command needs once its flags are parsed.
type env struct {
	ctx     context.Context
	log     zerolog.Logger
	app     *app.App
	session domain.Session
}

// userFlag registers the -user flag every ledger command takes.
func userFlag(fs *flag.FlagSet) *string {
	return fs.String("user", os.Getenv("LEDGER_USER"), "User ID (or set LEDGER_USER env)")
}

// open loads configuration and wires the application for userID. The
// returned func releases it.
func open(log zerolog.Logger, userID string) (*env, func()) {
	if userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.WithUser(logger.NewWithLevel(cfg.LogLevel), userID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	e := &env{ctx: ctx, log: log, app: a, session: domain.NewSession(userID)}
	return e, func() {
		_ = a.Close()
		cancel()
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

// parseDate parses YYYY-MM-DD; empty yields the zero date.
func parseDate(s string) (civil.Date, error) {
	if strings.TrimSpace(s) == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// parseMonth parses YYYY-MM; empty yields the month of today.
func parseMonth(s string, today civil.Date) (int, time.Month, error) {
	if strings.TrimSpace(s) == "" {
		return today.Year, today.Month, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, expected YYYY-MM", s)
	}
	return t.Year(), t.Month(), nil
}

// parseOptionalDecimal parses s, treating empty as not set.
func parseOptionalDecimal(s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return decimal.NewNullDecimal(d), nil
}

// splitIDs splits a comma separated list, dropping blanks.
func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func positionLabel(e domain.Entry) string {
	if e.Position == nil {
		return ""
	}
	return e.Position.Label()
}
